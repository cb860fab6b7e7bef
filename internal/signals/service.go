package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/beacon/internal/analysis"
	"github.com/aristath/beacon/internal/cache"
	"github.com/aristath/beacon/internal/events"
)

// Thresholds for the rule set. RSI bands follow the usual 30/70 convention.
const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0
)

// Service scans cached close-price series, runs the indicator pipeline and
// stores a signal whenever the rules fire.
type Service struct {
	repo     *Repository
	analyzer *analysis.Service
	candles  *cache.Repository
	bus      *events.Bus
	log      zerolog.Logger
}

func NewService(repo *Repository, analyzer *analysis.Service, candles *cache.Repository, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		analyzer: analyzer,
		candles:  candles,
		bus:      bus,
		log:      log.With().Str("component", "signals").Logger(),
	}
}

// Scan evaluates one symbol against the rules. Returns nil, nil when no rule
// fires or the cached series is too short to compute RSI.
func (s *Service) Scan(ctx context.Context, symbol string) (*Signal, error) {
	closes, err := s.candles.GetCandles(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load candles for %s: %w", symbol, err)
	}
	if len(closes) == 0 {
		return nil, nil
	}

	result, err := s.analyzer.Technical(ctx, analysis.TechnicalRequest{
		Symbol: symbol,
		Closes: closes,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis failed for %s: %w", symbol, err)
	}

	sig := Evaluate(result)
	if sig == nil {
		return nil, nil
	}

	sig.ID = uuid.NewString()
	sig.CreatedAt = time.Now()
	if err := s.repo.Save(sig); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("symbol", sig.Symbol).
		Str("direction", string(sig.Direction)).
		Float64("strength", sig.Strength).
		Str("reason", sig.Reason).
		Msg("Signal generated")

	if s.bus != nil {
		s.bus.PublishData(&events.SignalGeneratedData{
			Symbol:    sig.Symbol,
			Direction: string(sig.Direction),
			Strength:  sig.Strength,
			Source:    "scan",
		})
	}
	return sig, nil
}

// ScanAll runs Scan over every symbol with cached candles and returns the
// signals that fired. Individual symbol failures are logged and skipped.
func (s *Service) ScanAll(ctx context.Context, symbols []string) []Signal {
	var fired []Signal
	for _, symbol := range symbols {
		sig, err := s.Scan(ctx, symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Scan failed")
			continue
		}
		if sig != nil {
			fired = append(fired, *sig)
		}
	}
	return fired
}

// Cleanup removes signals created before the cutoff.
func (s *Service) Cleanup(cutoff time.Time) error {
	deleted, err := s.repo.DeleteOlderThan(cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Old signals removed")
	}
	return nil
}

// Evaluate applies the rule set to an indicator snapshot. Returns nil when no
// rule fires.
//
// Rules, in order of precedence:
//   - RSI below 30: buy. Strength grows as RSI approaches 0 and gets a bonus
//     when the MACD histogram has already turned positive.
//   - RSI above 70: sell. Mirrored strength, with a bonus when the histogram
//     has turned negative.
func Evaluate(result *analysis.TechnicalResult) *Signal {
	if result == nil || result.RSI == nil {
		return nil
	}
	rsi := *result.RSI

	switch {
	case rsi < rsiOversold:
		strength := (rsiOversold - rsi) / rsiOversold
		reason := fmt.Sprintf("RSI %.1f below %.0f", rsi, rsiOversold)
		if result.MACDHist != nil && *result.MACDHist > 0 {
			strength = min(1, strength+0.2)
			reason += ", MACD histogram positive"
		}
		return &Signal{
			Symbol:    result.Symbol,
			Direction: DirectionBuy,
			Strength:  strength,
			Reason:    reason,
			Price:     result.LastClose,
		}
	case rsi > rsiOverbought:
		strength := (rsi - rsiOverbought) / (100 - rsiOverbought)
		reason := fmt.Sprintf("RSI %.1f above %.0f", rsi, rsiOverbought)
		if result.MACDHist != nil && *result.MACDHist < 0 {
			strength = min(1, strength+0.2)
			reason += ", MACD histogram negative"
		}
		return &Signal{
			Symbol:    result.Symbol,
			Direction: DirectionSell,
			Strength:  strength,
			Reason:    reason,
			Price:     result.LastClose,
		}
	}
	return nil
}
