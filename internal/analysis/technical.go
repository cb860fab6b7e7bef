// Package analysis implements the CPU-bound computations the worker pool
// executes: technical indicator snapshots and batch backtests. All functions
// here are deterministic and safe to run from any worker.
package analysis

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Default indicator periods. Callers can override per request.
const (
	DefaultRSIPeriod  = 14
	DefaultFastPeriod = 12
	DefaultSlowPeriod = 26
	DefaultSMAPeriod  = 20
)

// CalculateRSI calculates the Relative Strength Index.
//
// RSI = 100 - (100 / (1 + RS)) where RS = avg gain / avg loss over N periods.
// Returns nil if there is not enough data.
func CalculateRSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}

	rsi := talib.Rsi(closes, length)
	return lastValid(rsi)
}

// CalculateSMA calculates the Simple Moving Average over the given period.
// Returns nil if there is not enough data.
func CalculateSMA(closes []float64, period int) *float64 {
	if len(closes) < period {
		return nil
	}

	sma := talib.Sma(closes, period)
	return lastValid(sma)
}

// CalculateEMA calculates the Exponential Moving Average over the given
// period. Returns nil if there is not enough data.
func CalculateEMA(closes []float64, period int) *float64 {
	if len(closes) < period {
		return nil
	}

	ema := talib.Ema(closes, period)
	return lastValid(ema)
}

// CalculateMACD returns the current MACD line, signal line and histogram
// values. Returns nils if there is not enough data.
func CalculateMACD(closes []float64, fast, slow, signal int) (macd, sig, hist *float64) {
	if len(closes) < slow+signal {
		return nil, nil, nil
	}

	m, s, h := talib.Macd(closes, fast, slow, signal)
	return lastValid(m), lastValid(s), lastValid(h)
}

// CalculateBollinger returns the current upper, middle and lower Bollinger
// band values using 2 standard deviations. Returns nils if there is not
// enough data.
func CalculateBollinger(closes []float64, period int) (upper, middle, lower *float64) {
	if len(closes) < period {
		return nil, nil, nil
	}

	u, m, l := talib.BBands(closes, period, 2.0, 2.0, talib.SMA)
	return lastValid(u), lastValid(m), lastValid(l)
}

// lastValid returns a pointer to the last non-NaN value of a talib output
// series, or nil when the series is empty or ends in NaN.
func lastValid(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	v := series[len(series)-1]
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
