package factors

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/tom-sims/quant-research-toolkit/internal/monitoring"
)

// Refresher re-downloads the factor dataset.
type Refresher interface {
	Refresh(ctx context.Context) (*Dataset, error)
}

// RefreshJob keeps the cached factor dataset current.
type RefreshJob struct {
	client  Refresher
	timeout time.Duration
	log     zerolog.Logger
}

// NewRefreshJob creates a new factor refresh job
func NewRefreshJob(client Refresher, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		client:  client,
		timeout: 2 * time.Minute,
		log:     log.With().Str("job", "factor_refresh").Logger(),
	}
}

// Run downloads the dataset and updates the row gauge
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	ds, err := j.client.Refresh(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to refresh factor dataset")
		return err
	}

	monitoring.UpdateFactorRows(len(ds.Rows))
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *RefreshJob) Name() string {
	return "factor_refresh"
}
