package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBacktest_RejectsShortSeries(t *testing.T) {
	_, err := RunBacktest(BacktestRequest{
		Symbol: "AAPL",
		Closes: ascending(10),
	})
	assert.Error(t, err)
}

func TestRunBacktest_RejectsInvertedPeriods(t *testing.T) {
	_, err := RunBacktest(BacktestRequest{
		Symbol:     "AAPL",
		Closes:     ascending(100),
		FastPeriod: 30,
		SlowPeriod: 10,
	})
	assert.Error(t, err)
}

func TestRunBacktest_FlatSeriesNeverTrades(t *testing.T) {
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 50
	}

	result, err := RunBacktest(BacktestRequest{
		Symbol:         "FLAT",
		Closes:         closes,
		InitialCapital: 10_000,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Trades)
	assert.InDelta(t, 10_000, result.FinalEquity, 1e-9)
	assert.InDelta(t, 0, result.TotalReturn, 1e-9)
	assert.Zero(t, result.Sharpe)
	assert.Zero(t, result.MaxDrawdown)
}

func TestRunBacktest_CyclicalSeriesTrades(t *testing.T) {
	// Three full price cycles: enough slope changes to force crossovers.
	closes := make([]float64, 0, 240)
	for i := 0; i < 240; i++ {
		closes = append(closes, 100+20*math.Sin(float64(i)/12))
	}

	result, err := RunBacktest(BacktestRequest{
		Symbol:     "CYC",
		Closes:     closes,
		FastPeriod: 5,
		SlowPeriod: 15,
	})
	require.NoError(t, err)

	assert.Greater(t, result.Trades, 0)
	assert.Greater(t, result.FinalEquity, 0.0)
	assert.GreaterOrEqual(t, result.MaxDrawdown, 0.0)
	assert.LessOrEqual(t, result.MaxDrawdown, 1.0)
	assert.GreaterOrEqual(t, result.WinRate, 0.0)
	assert.LessOrEqual(t, result.WinRate, 1.0)
}

func TestRollingMean(t *testing.T) {
	out := rollingMean([]float64{1, 2, 3, 4}, 3)

	assert.InDelta(t, 1.0, out[0], 1e-9)
	assert.InDelta(t, 1.5, out[1], 1e-9)
	assert.InDelta(t, 2.0, out[2], 1e-9)
	assert.InDelta(t, 3.0, out[3], 1e-9)
}

func TestSharpe(t *testing.T) {
	assert.Zero(t, sharpe(nil))
	assert.Zero(t, sharpe([]float64{0.01}))
	assert.Zero(t, sharpe([]float64{0.01, 0.01, 0.01})) // zero variance

	positive := sharpe([]float64{0.01, 0.02, 0.015, 0.005})
	assert.Greater(t, positive, 0.0)
}
