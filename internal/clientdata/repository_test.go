package clientdata

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingpkg "github.com/tom-sims/quant-research-toolkit/internal/testing"
	"github.com/vmihailenco/msgpack/v5"
)

type cachedPayload struct {
	Name  string
	Rows  []float64
	Count int
}

func setupTestDB(t *testing.T) *sql.DB {
	db, cleanup := testingpkg.NewTestDB(t, "cache")
	t.Cleanup(cleanup)
	return db.Conn()
}

func insertRaw(t *testing.T, db *sql.DB, key string, v interface{}, expiresAt int64) {
	t.Helper()
	blob, err := msgpack.Marshal(v)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO french_factors (dataset, data, expires_at) VALUES (?, ?, ?)", key, blob, expiresAt)
	require.NoError(t, err)
}

func TestStore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	data := cachedPayload{Name: "ff5_daily", Rows: []float64{0.01, -0.002}, Count: 2}
	err := repo.Store(TableFrenchFactors, "ff5_daily", data, TTLFrenchFactors)
	require.NoError(t, err)

	var blob []byte
	var expiresAt int64
	err = db.QueryRow("SELECT data, expires_at FROM french_factors WHERE dataset = ?", "ff5_daily").Scan(&blob, &expiresAt)
	require.NoError(t, err)

	var decoded cachedPayload
	require.NoError(t, msgpack.Unmarshal(blob, &decoded))
	assert.Equal(t, data, decoded)

	expectedExpires := time.Now().Add(TTLFrenchFactors).Unix()
	assert.InDelta(t, expectedExpires, expiresAt, 5) // Allow 5 second tolerance
}

func TestStoreUpsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.Store(TableFrenchFactors, "ff5_daily", cachedPayload{Count: 1}, time.Hour))
	require.NoError(t, repo.Store(TableFrenchFactors, "ff5_daily", cachedPayload{Count: 2}, time.Hour))

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM french_factors").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var got cachedPayload
	found, err := repo.GetIfFresh(TableFrenchFactors, "ff5_daily", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, got.Count)
}

func TestGetIfFresh_Expired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	insertRaw(t, db, "ff5_daily", cachedPayload{Name: "stale_but_useful"}, time.Now().Add(-time.Hour).Unix())

	var got cachedPayload
	found, err := repo.GetIfFresh(TableFrenchFactors, "ff5_daily", &got)
	require.NoError(t, err)
	assert.False(t, found, "expired data is not fresh")

	// Get returns stale data for fallback use
	found, err = repo.Get(TableFrenchFactors, "ff5_daily", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "stale_but_useful", got.Name)
}

func TestGet_NotFound(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	var got cachedPayload
	found, err := repo.Get(TableFrenchFactors, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.GetIfFresh(TableFrenchFactors, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGet_CorruptBlob(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	_, err := db.Exec("INSERT INTO french_factors (dataset, data, expires_at) VALUES (?, ?, ?)",
		"ff5_daily", []byte{0xc1}, time.Now().Add(time.Hour).Unix())
	require.NoError(t, err)

	var got cachedPayload
	_, err = repo.Get(TableFrenchFactors, "ff5_daily", &got)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.Store(TableFrenchFactors, "ff5_daily", cachedPayload{Count: 1}, time.Hour))
	require.NoError(t, repo.Delete(TableFrenchFactors, "ff5_daily"))

	var got cachedPayload
	found, err := repo.Get(TableFrenchFactors, "ff5_daily", &got)
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting a missing key is not an error
	assert.NoError(t, repo.Delete(TableFrenchFactors, "ff5_daily"))
}

func TestDeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	now := time.Now()
	insertRaw(t, db, "a", cachedPayload{}, now.Add(-time.Hour).Unix())
	insertRaw(t, db, "b", cachedPayload{}, now.Add(-2*time.Hour).Unix())
	insertRaw(t, db, "c", cachedPayload{}, now.Add(time.Hour).Unix())

	deleted, err := repo.DeleteExpired(TableFrenchFactors)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	results, err := repo.DeleteAllExpired()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{TableFrenchFactors: 0}, results)
}

func TestInvalidTable(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	var got cachedPayload
	assert.Error(t, repo.Store("users; DROP TABLE runs", "k", got, time.Hour))
	_, err := repo.Get("unknown", "k", &got)
	assert.Error(t, err)
	_, err = repo.GetIfFresh("unknown", "k", &got)
	assert.Error(t, err)
	assert.Error(t, repo.Delete("unknown", "k"))
	_, err = repo.DeleteExpired("unknown")
	assert.Error(t, err)
}
