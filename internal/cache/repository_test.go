package cache

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// In-memory databases are per-connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db)
	require.NoError(t, repo.InitSchema())
	return repo
}

func TestRepository_StoreAndGetFresh(t *testing.T) {
	repo := testRepo(t)

	err := repo.Store("quotes", "AAPL", map[string]float64{"price": 191.5}, TTLQuote)
	require.NoError(t, err)

	raw, err := repo.GetIfFresh("quotes", "AAPL")
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":191.5}`, string(raw))
}

func TestRepository_MissingKeyReturnsNil(t *testing.T) {
	repo := testRepo(t)

	raw, err := repo.GetIfFresh("quotes", "UNKNOWN")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestRepository_ExpiredNotFreshButStillGettable(t *testing.T) {
	repo := testRepo(t)

	// Negative TTL: already expired at insert time.
	err := repo.Store("quotes", "MSFT", map[string]float64{"price": 410}, -time.Minute)
	require.NoError(t, err)

	fresh, err := repo.GetIfFresh("quotes", "MSFT")
	require.NoError(t, err)
	assert.Nil(t, fresh)

	stale, err := repo.Get("quotes", "MSFT")
	require.NoError(t, err)
	assert.NotNil(t, stale)
}

func TestRepository_InvalidTableRejected(t *testing.T) {
	repo := testRepo(t)

	err := repo.Store("jobs; DROP TABLE quotes", "k", "v", time.Minute)
	assert.Error(t, err)

	_, err = repo.Get("nope", "k")
	assert.Error(t, err)
}

func TestRepository_DeleteExpired(t *testing.T) {
	repo := testRepo(t)

	require.NoError(t, repo.Store("quotes", "OLD", "x", -time.Minute))
	require.NoError(t, repo.Store("quotes", "NEW", "y", time.Hour))

	deleted, err := repo.DeleteExpired("quotes")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	raw, err := repo.Get("quotes", "NEW")
	require.NoError(t, err)
	assert.NotNil(t, raw)
}

func TestRepository_DeleteAllExpired(t *testing.T) {
	repo := testRepo(t)

	require.NoError(t, repo.Store("quotes", "OLD", "x", -time.Minute))
	require.NoError(t, repo.Store("news_items", "old-item", "x", -time.Minute))

	results, err := repo.DeleteAllExpired()
	require.NoError(t, err)

	assert.Equal(t, int64(1), results["quotes"])
	assert.Equal(t, int64(1), results["news_items"])
	assert.Equal(t, int64(0), results["candles"])
}

func TestCandles_RoundTrip(t *testing.T) {
	repo := testRepo(t)

	require.NoError(t, repo.StoreCandles("AAPL", []float64{100, 101, 102}))

	closes, err := repo.GetCandles("AAPL")
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 101, 102}, closes)
}

func TestCandles_AppendTrims(t *testing.T) {
	repo := testRepo(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.AppendClose("TSLA", float64(100+i), 3))
	}

	closes, err := repo.GetCandles("TSLA")
	require.NoError(t, err)
	assert.Equal(t, []float64{102, 103, 104}, closes)
}

func TestCandles_UnknownSymbol(t *testing.T) {
	repo := testRepo(t)

	closes, err := repo.GetCandles("NOPE")
	require.NoError(t, err)
	assert.Nil(t, closes)
}

func TestKeys_ListsCachedSymbols(t *testing.T) {
	repo := testRepo(t)

	require.NoError(t, repo.StoreCandles("NVDA", []float64{1, 2}))
	require.NoError(t, repo.StoreCandles("AAPL", []float64{3}))

	symbols, err := repo.CachedSymbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "NVDA"}, symbols)

	_, err = repo.Keys("no_such_table")
	assert.Error(t, err)
}
