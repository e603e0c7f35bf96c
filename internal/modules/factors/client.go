package factors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tom-sims/quant-research-toolkit/internal/clientdata"
)

// DefaultURL is the Kenneth French library's daily five-factor (2x3) file.
const DefaultURL = "https://mba.tuck.dartmouth.edu/pages/faculty/ken.french/ftp/F-F_Research_Data_5_Factors_2x3_daily_CSV.zip"

// cacheKey identifies the daily five-factor dataset in the cache table.
const cacheKey = "ff5_daily"

// maxArchiveBytes bounds the downloaded archive size.
const maxArchiveBytes = 64 << 20

// Client downloads the factor dataset with a persistent cache in front.
type Client struct {
	url       string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new factor dataset client
// cacheRepo is optional - if nil, caching is disabled
func NewClient(url string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url:       url,
		client:    &http.Client{Timeout: 60 * time.Second},
		log:       log.With().Str("client", "french-library").Logger(),
		cacheRepo: cacheRepo,
	}
}

// Dataset returns the factor dataset, preferring fresh cached data.
// If the download fails, stale cached data is returned when available.
func (c *Client) Dataset(ctx context.Context) (*Dataset, error) {
	if c.cacheRepo != nil {
		var cached Dataset
		found, err := c.cacheRepo.GetIfFresh(clientdata.TableFrenchFactors, cacheKey, &cached)
		if err != nil {
			c.log.Warn().Err(err).Msg("Failed to read factor cache")
		}
		if found {
			cached.normalize()
			c.log.Debug().Int("rows", len(cached.Rows)).Msg("Cache hit")
			return &cached, nil
		}
	}

	ds, err := c.Refresh(ctx)
	if err != nil {
		if stale, ok := c.getStaleFromCache(); ok {
			c.log.Warn().
				Err(err).
				Time("fetched_at", stale.FetchedAt).
				Msg("Download failed, using stale cached factors")
			return stale, nil
		}
		return nil, err
	}
	return ds, nil
}

// Refresh downloads and parses the dataset, bypassing the cache, and stores
// the result for later calls.
func (c *Client) Refresh(ctx context.Context) (*Dataset, error) {
	c.log.Debug().Str("url", c.url).Msg("Downloading factor dataset")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("factor download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("factor download returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read factor archive: %w", err)
	}

	ds, err := ParseZip(body)
	if err != nil {
		return nil, err
	}
	ds.FetchedAt = time.Now().UTC()

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableFrenchFactors, cacheKey, ds, clientdata.TTLFrenchFactors); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache factor dataset")
		}
	}

	first, last := ds.Span()
	c.log.Info().
		Int("rows", len(ds.Rows)).
		Time("from", first).
		Time("to", last).
		Msg("Fetched factor dataset")

	return ds, nil
}

// getStaleFromCache retrieves the cached dataset even if expired.
func (c *Client) getStaleFromCache() (*Dataset, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	var cached Dataset
	found, err := c.cacheRepo.Get(clientdata.TableFrenchFactors, cacheKey, &cached)
	if err != nil || !found {
		return nil, false
	}
	cached.normalize()
	return &cached, true
}
