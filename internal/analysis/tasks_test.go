package analysis

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/beacon/internal/pool"
)

func TestService_FallbackWithoutPool(t *testing.T) {
	svc := NewService(nil, zerolog.Nop())
	assert.False(t, svc.Pooled())

	result, err := svc.Technical(context.Background(), TechnicalRequest{
		Symbol: "AAPL",
		Closes: ascending(30),
	})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", result.Symbol)
	assert.NotNil(t, result.RSI)

	_, ok := svc.PoolStats()
	assert.False(t, ok)
}

func TestService_PooledExecutionMatchesFallback(t *testing.T) {
	p, err := pool.FromConfig(pool.Config{Enabled: true, Workers: 2}, Handler(zerolog.Nop()), zerolog.Nop())
	require.NoError(t, err)
	defer p.Shutdown()

	svc := NewService(p, zerolog.Nop())
	assert.True(t, svc.Pooled())

	req := TechnicalRequest{Symbol: "MSFT", Closes: ascending(40)}

	pooled, err := svc.Technical(context.Background(), req)
	require.NoError(t, err)

	local := RunTechnical(req)

	assert.Equal(t, local.Symbol, pooled.Symbol)
	assert.InDelta(t, local.LastClose, pooled.LastClose, 1e-9)
	require.NotNil(t, pooled.RSI)
	assert.InDelta(t, *local.RSI, *pooled.RSI, 1e-9)
}

func TestService_PooledBacktest(t *testing.T) {
	p, err := pool.FromConfig(pool.Config{Enabled: true, Workers: 2}, Handler(zerolog.Nop()), zerolog.Nop())
	require.NoError(t, err)
	defer p.Shutdown()

	svc := NewService(p, zerolog.Nop())

	result, err := svc.Backtest(context.Background(), BacktestRequest{
		Symbol: "GOOG",
		Closes: ascending(100),
	})
	require.NoError(t, err)
	assert.Equal(t, "GOOG", result.Symbol)
	assert.Greater(t, result.FinalEquity, 0.0)
}

func TestService_BacktestErrorPropagates(t *testing.T) {
	p, err := pool.FromConfig(pool.Config{Enabled: true, Workers: 1}, Handler(zerolog.Nop()), zerolog.Nop())
	require.NoError(t, err)
	defer p.Shutdown()

	svc := NewService(p, zerolog.Nop())

	_, err = svc.Backtest(context.Background(), BacktestRequest{
		Symbol: "SHORT",
		Closes: ascending(5),
	})
	assert.Error(t, err)
}

func TestHandler_UnknownTaskType(t *testing.T) {
	handler := Handler(zerolog.Nop())

	_, err := handler(pool.Task{ID: "t1", Type: pool.TaskType("bogus")})
	assert.Error(t, err)
}
