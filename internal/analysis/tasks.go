package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/beacon/internal/pool"
)

// Handler resolves the worker entry point: a single function dispatching on
// the task type. Payloads cross the pool boundary as msgpack so workers and
// callers share no memory beyond the encoded bytes.
func Handler(log zerolog.Logger) pool.Handler {
	log = log.With().Str("component", "analysis_handler").Logger()

	return func(task pool.Task) ([]byte, error) {
		switch task.Type {
		case pool.TaskTechnicalAnalysis:
			var req TechnicalRequest
			if err := msgpack.Unmarshal(task.Payload, &req); err != nil {
				return nil, fmt.Errorf("failed to decode technical request: %w", err)
			}
			result := RunTechnical(req)
			return msgpack.Marshal(result)

		case pool.TaskBatchBacktest:
			var req BacktestRequest
			if err := msgpack.Unmarshal(task.Payload, &req); err != nil {
				return nil, fmt.Errorf("failed to decode backtest request: %w", err)
			}
			result, err := RunBacktest(req)
			if err != nil {
				return nil, err
			}
			return msgpack.Marshal(result)

		default:
			log.Warn().Str("type", string(task.Type)).Msg("Unknown task type")
			return nil, fmt.Errorf("unknown task type: %s", task.Type)
		}
	}
}

// RunTechnical computes the indicator snapshot synchronously. It is both the
// worker-side implementation and the in-process fallback when the pool is
// unavailable.
func RunTechnical(req TechnicalRequest) *TechnicalResult {
	rsiPeriod := req.RSIPeriod
	if rsiPeriod <= 0 {
		rsiPeriod = DefaultRSIPeriod
	}
	smaPeriod := req.SMAPeriod
	if smaPeriod <= 0 {
		smaPeriod = DefaultSMAPeriod
	}

	result := &TechnicalResult{Symbol: req.Symbol}
	if len(req.Closes) == 0 {
		return result
	}
	result.LastClose = req.Closes[len(req.Closes)-1]

	result.RSI = CalculateRSI(req.Closes, rsiPeriod)
	result.SMA = CalculateSMA(req.Closes, smaPeriod)
	result.EMA = CalculateEMA(req.Closes, smaPeriod)
	result.MACD, result.MACDSignal, result.MACDHist = CalculateMACD(
		req.Closes, DefaultFastPeriod, DefaultSlowPeriod, 9)
	result.BollingerUp, result.BollingerMid, result.BollingerLow = CalculateBollinger(
		req.Closes, smaPeriod)

	return result
}

// Service runs analysis pool-first and falls back to the caller's own
// goroutine when no pool is available. The pool is an optimization, never a
// required dependency.
type Service struct {
	pool *pool.Supervisor // nil when the pool is unavailable
	log  zerolog.Logger
}

// NewService creates an analysis service. Pass a nil supervisor when the
// pool facade reported unavailable.
func NewService(p *pool.Supervisor, log zerolog.Logger) *Service {
	return &Service{
		pool: p,
		log:  log.With().Str("component", "analysis_service").Logger(),
	}
}

// Pooled reports whether analysis runs on the worker pool.
func (s *Service) Pooled() bool {
	return s.pool != nil
}

// PoolStats returns pool statistics, or ok=false when running without a pool.
func (s *Service) PoolStats() (pool.Stats, bool) {
	if s.pool == nil {
		return pool.Stats{}, false
	}
	return s.pool.Stats(), true
}

// Technical computes an indicator snapshot, on the pool when possible.
func (s *Service) Technical(ctx context.Context, req TechnicalRequest) (*TechnicalResult, error) {
	if s.pool == nil {
		return RunTechnical(req), nil
	}

	payload, err := msgpack.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode technical request: %w", err)
	}

	handle, err := s.pool.Submit(pool.TaskTechnicalAnalysis, payload)
	if err != nil {
		if errors.Is(err, pool.ErrShuttingDown) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to submit technical analysis: %w", err)
	}

	raw, err := handle.Wait(ctx)
	if err != nil {
		return nil, err
	}

	var result TechnicalResult
	if err := msgpack.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode technical result: %w", err)
	}
	return &result, nil
}

// Backtest runs a crossover backtest, on the pool when possible.
func (s *Service) Backtest(ctx context.Context, req BacktestRequest) (*BacktestResult, error) {
	if s.pool == nil {
		return RunBacktest(req)
	}

	payload, err := msgpack.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode backtest request: %w", err)
	}

	handle, err := s.pool.Submit(pool.TaskBatchBacktest, payload)
	if err != nil {
		if errors.Is(err, pool.ErrShuttingDown) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to submit backtest: %w", err)
	}

	raw, err := handle.Wait(ctx)
	if err != nil {
		return nil, err
	}

	var result BacktestResult
	if err := msgpack.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode backtest result: %w", err)
	}
	return &result, nil
}
