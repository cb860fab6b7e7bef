package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/beacon/internal/analysis"
	"github.com/aristath/beacon/internal/cache"
	"github.com/aristath/beacon/internal/events"
	"github.com/aristath/beacon/internal/signals"
)

func testServer(t *testing.T) (*Server, *cache.Repository) {
	t.Helper()
	log := zerolog.Nop()

	openDB := func() *sql.DB {
		db, err := sql.Open("sqlite", ":memory:")
		require.NoError(t, err)
		db.SetMaxOpenConns(1)
		t.Cleanup(func() { db.Close() })
		return db
	}

	candles := cache.NewRepository(openDB())
	require.NoError(t, candles.InitSchema())

	sigRepo := signals.NewRepository(openDB())
	require.NoError(t, sigRepo.InitSchema())

	analyzer := analysis.NewService(nil, log)
	sigSvc := signals.NewService(sigRepo, analyzer, candles, events.NewBus(log), log)

	srv := New(Config{
		Log:         log,
		Port:        0,
		Analysis:    analyzer,
		Signals:     sigSvc,
		SignalsRepo: sigRepo,
	})
	return srv, candles
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleTechnical(t *testing.T) {
	srv, _ := testServer(t)

	closes := make([]string, 40)
	for i := range closes {
		closes[i] = "100"
	}
	body := `{"symbol": "AAPL", "closes": [` + strings.Join(closes, ",") + `]}`

	rec := doRequest(t, srv, http.MethodPost, "/api/analysis/technical", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result analysis.TechnicalResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "AAPL", result.Symbol)
	assert.Equal(t, 100.0, result.LastClose)
	require.NotNil(t, result.SMA)
	assert.Equal(t, 100.0, *result.SMA)
}

func TestHandleTechnical_BadRequest(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/analysis/technical", `{"symbol": "AAPL"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/analysis/technical", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBacktest(t *testing.T) {
	srv, _ := testServer(t)

	closes := make([]string, 0, 120)
	for i := 0; i < 120; i++ {
		if i%40 < 20 {
			closes = append(closes, "100")
		} else {
			closes = append(closes, "120")
		}
	}
	body := `{"symbol": "NVDA", "closes": [` + strings.Join(closes, ",") + `]}`

	rec := doRequest(t, srv, http.MethodPost, "/api/analysis/backtest", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result analysis.BacktestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "NVDA", result.Symbol)
	assert.Greater(t, result.FinalEquity, 0.0)
}

func TestHandleBacktest_InvalidPeriods(t *testing.T) {
	srv, _ := testServer(t)

	body := `{"symbol": "NVDA", "closes": [1,2,3], "fast_period": 50, "slow_period": 10}`
	rec := doRequest(t, srv, http.MethodPost, "/api/analysis/backtest", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlePoolStats_Disabled(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/analysis/pool", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["enabled"])
}

func TestSignalsEndpoints(t *testing.T) {
	srv, candles := testServer(t)

	// Falling closes trigger an oversold buy signal.
	closesList := make([]float64, 40)
	for i := range closesList {
		closesList[i] = 200 - float64(i)
	}
	require.NoError(t, candles.StoreCandles("AAPL", closesList))

	rec := doRequest(t, srv, http.MethodPost, "/api/signals/scan/AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var scanResp struct {
		Signal *signals.Signal `json:"signal"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scanResp))
	require.NotNil(t, scanResp.Signal)
	assert.Equal(t, signals.DirectionBuy, scanResp.Signal.Direction)

	rec = doRequest(t, srv, http.MethodGet, "/api/signals/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Signals []signals.Signal `json:"signals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Signals, 1)

	rec = doRequest(t, srv, http.MethodGet, "/api/signals/AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Signals, 1)

	rec = doRequest(t, srv, http.MethodGet, "/api/signals/MISSING", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Empty(t, listResp.Signals)
}

func TestHandleClassifyNews(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/news/classify",
		`{"title": "[Breaking] $NVDA rallies after earnings crush the estimates - Reuters"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Language string   `json:"language"`
		Tickers  []string `json:"tickers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "en", resp.Language)
	assert.Contains(t, resp.Tickers, "NVDA")

	rec = doRequest(t, srv, http.MethodPost, "/api/news/classify", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Nil(t, resp["pool"])
	assert.NotContains(t, resp, "feed_connected")
}
