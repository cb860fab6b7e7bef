package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/beacon/internal/analysis"
	"github.com/aristath/beacon/internal/news"
	"github.com/aristath/beacon/internal/pool"
)

// Handlers bundles the HTTP handlers and their dependencies.
type Handlers struct {
	cfg     Config
	log     zerolog.Logger
	started time.Time
}

func NewHandlers(cfg Config) *Handlers {
	return &Handlers{
		cfg:     cfg,
		log:     cfg.Log.With().Str("component", "handlers").Logger(),
		started: time.Now(),
	}
}

// HandleHealth reports process health and subsystem status.
// GET /health
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	cpuAvg, ramPercent := h.getSystemStats()

	resp := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"cpu_percent":    cpuAvg,
		"ram_percent":    ramPercent,
	}

	if h.cfg.Analysis != nil {
		if stats, ok := h.cfg.Analysis.PoolStats(); ok {
			resp["pool"] = stats
		} else {
			resp["pool"] = nil
		}
	}
	if h.cfg.Feed != nil {
		resp["feed_connected"] = h.cfg.Feed.IsConnected()
	}
	if h.cfg.Queue != nil {
		resp["queued_jobs"] = h.cfg.Queue.Size()
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleTechnical runs the indicator pipeline for a close-price series.
// POST /api/analysis/technical
func (h *Handlers) HandleTechnical(w http.ResponseWriter, r *http.Request) {
	var req analysis.TechnicalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Closes) == 0 {
		h.writeError(w, http.StatusBadRequest, "closes is required")
		return
	}

	result, err := h.cfg.Analysis.Technical(r.Context(), req)
	if err != nil {
		h.analysisError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleBacktest runs a crossover backtest for a close-price series.
// POST /api/analysis/backtest
func (h *Handlers) HandleBacktest(w http.ResponseWriter, r *http.Request) {
	var req analysis.BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Closes) == 0 {
		h.writeError(w, http.StatusBadRequest, "closes is required")
		return
	}

	result, err := h.cfg.Analysis.Backtest(r.Context(), req)
	if err != nil {
		h.analysisError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandlePoolStats reports worker pool statistics.
// GET /api/analysis/pool
func (h *Handlers) HandlePoolStats(w http.ResponseWriter, r *http.Request) {
	stats, ok := h.cfg.Analysis.PoolStats()
	if !ok {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"enabled": false,
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled": true,
		"stats":   stats,
	})
}

// HandleRecentSignals lists the newest signals.
// GET /api/signals?limit=50
func (h *Handlers) HandleRecentSignals(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	list, err := h.cfg.SignalsRepo.Recent(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list signals")
		h.writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"signals": list})
}

// HandleSymbolSignals lists the newest signals for one symbol.
// GET /api/signals/{symbol}
func (h *Handlers) HandleSymbolSignals(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	list, err := h.cfg.SignalsRepo.BySymbol(symbol, queryInt(r, "limit", 50))
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to list signals")
		h.writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"signals": list})
}

// HandleScan runs a signal scan for one symbol immediately.
// POST /api/signals/scan/{symbol}
func (h *Handlers) HandleScan(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	sig, err := h.cfg.Signals.Scan(r.Context(), symbol)
	if err != nil {
		h.analysisError(w, err)
		return
	}
	if sig == nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"signal": nil})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"signal": sig})
}

// HandleClassifyNews classifies a news title.
// POST /api/news/classify
func (h *Handlers) HandleClassifyNews(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		h.writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	h.writeJSON(w, http.StatusOK, news.Classify(req.Title))
}

// HandleListBackups lists remote backups.
// GET /api/backups
func (h *Handlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.cfg.Backups.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		h.writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"backups": backups})
}

// analysisError maps analysis failures to HTTP status codes.
func (h *Handlers) analysisError(w http.ResponseWriter, err error) {
	if errors.Is(err, pool.ErrShuttingDown) {
		h.writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	h.writeError(w, http.StatusUnprocessableEntity, err.Error())
}

// getSystemStats returns CPU and RAM usage percentages. The short sampling
// interval keeps the health endpoint responsive.
func (h *Handlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
