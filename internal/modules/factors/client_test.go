package factors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tom-sims/quant-research-toolkit/internal/clientdata"
	testingpkg "github.com/tom-sims/quant-research-toolkit/internal/testing"
)

func newCacheRepo(t *testing.T) *clientdata.Repository {
	db, cleanup := testingpkg.NewTestDB(t, "cache")
	t.Cleanup(cleanup)
	return clientdata.NewRepository(db.Conn())
}

func newArchiveServer(t *testing.T, archive []byte, status *atomic.Int32, hits *atomic.Int32) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if code := int(status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(archive)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_DatasetUsesCache(t *testing.T) {
	var status, hits atomic.Int32
	status.Store(http.StatusOK)
	srv := newArchiveServer(t, buildZip(t, "F-F_Research_Data_5_Factors_2x3_daily.CSV", sampleFactorCSV), &status, &hits)

	client := NewClient(srv.URL, newCacheRepo(t), zerolog.Nop())
	ctx := context.Background()

	ds, err := client.Dataset(ctx)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 3)
	assert.False(t, ds.FetchedAt.IsZero())

	again, err := client.Dataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	require.Len(t, again.Rows, 3)
	assert.Equal(t, time.UTC, again.Rows[0].Date.Location())
	assert.Equal(t, ds.Rows[2].Date, again.Rows[2].Date)
	assert.InDelta(t, ds.Rows[1].MktRF, again.Rows[1].MktRF, 1e-15)
}

func TestClient_StaleFallback(t *testing.T) {
	var status, hits atomic.Int32
	status.Store(http.StatusInternalServerError)
	srv := newArchiveServer(t, nil, &status, &hits)

	repo := newCacheRepo(t)
	stale := &Dataset{
		Name: "cached",
		Rows: []FactorRow{{Date: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), MktRF: 0.01}},
	}
	require.NoError(t, repo.Store(clientdata.TableFrenchFactors, cacheKey, stale, -time.Hour))

	client := NewClient(srv.URL, repo, zerolog.Nop())
	ds, err := client.Dataset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "cached", ds.Name)
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, "20230601", dateKey(ds.Rows[0].Date))
}

func TestClient_DownloadErrorWithoutCache(t *testing.T) {
	var status, hits atomic.Int32
	status.Store(http.StatusBadGateway)
	srv := newArchiveServer(t, nil, &status, &hits)

	client := NewClient(srv.URL, nil, zerolog.Nop())
	_, err := client.Dataset(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestRefreshJob(t *testing.T) {
	var status, hits atomic.Int32
	status.Store(http.StatusOK)
	srv := newArchiveServer(t, buildZip(t, "factors.csv", sampleFactorCSV), &status, &hits)

	job := NewRefreshJob(NewClient(srv.URL, nil, zerolog.Nop()), zerolog.Nop())
	assert.Equal(t, "factor_refresh", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, int32(1), hits.Load())

	status.Store(http.StatusServiceUnavailable)
	assert.Error(t, job.Run())
}
