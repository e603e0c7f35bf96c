package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tom-sims/quant-research-toolkit/internal/clientdata"
	"github.com/tom-sims/quant-research-toolkit/internal/config"
	"github.com/tom-sims/quant-research-toolkit/internal/database"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/factors"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/reporting"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/runs"
	"github.com/tom-sims/quant-research-toolkit/internal/reliability"
	"github.com/tom-sims/quant-research-toolkit/internal/scheduler"
)

// InitializeRepositories creates all repositories
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	container.ClientDataRepo = clientdata.NewRepository(container.CacheDB.Conn())
	container.RunRepo = runs.NewRepository(container.RunsDB.Conn(), log)

	log.Info().Msg("Repositories initialized")
	return nil
}

// InitializeServices creates all services
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.FactorClient = factors.NewClient(cfg.FactorsURL, container.ClientDataRepo, log)
	container.FactorModel = factors.NewModel(container.FactorClient, log)
	container.ReportBuilder = reporting.NewBuilder(log)

	if cfg.Storage.Enabled() {
		uploader, err := reporting.NewUploader(context.Background(), reporting.StorageConfig{
			Endpoint:        reporting.R2Endpoint(cfg.Storage.AccountID),
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			Prefix:          "reports",
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create report uploader: %w", err)
		}
		container.ReportUploader = uploader

		// cache.db is re-downloadable, only run history is backed up
		container.BackupService = reliability.NewBackupService(
			map[string]*database.DB{"runs": container.RunsDB},
			uploader,
			cfg.DataDir,
			log,
		)
	}

	container.Scheduler = scheduler.New(log)

	log.Info().Bool("uploads", container.ReportUploader != nil).Msg("Services initialized")
	return nil
}
