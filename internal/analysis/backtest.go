package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// tradingDaysPerYear is used to annualize the Sharpe ratio from daily
// returns.
const tradingDaysPerYear = 252

// RunBacktest simulates a long-only moving-average crossover strategy over
// the given close-price series: enter when the fast SMA crosses above the
// slow SMA, exit when it crosses back below. Equity is marked to market on
// every bar; summary statistics are computed over the per-bar returns.
func RunBacktest(req BacktestRequest) (*BacktestResult, error) {
	fast := req.FastPeriod
	if fast <= 0 {
		fast = DefaultFastPeriod
	}
	slow := req.SlowPeriod
	if slow <= 0 {
		slow = DefaultSlowPeriod
	}
	if fast >= slow {
		return nil, fmt.Errorf("fast period %d must be shorter than slow period %d", fast, slow)
	}
	if len(req.Closes) < slow+2 {
		return nil, fmt.Errorf("need at least %d closes for a %d/%d crossover backtest, got %d",
			slow+2, fast, slow, len(req.Closes))
	}

	capital := req.InitialCapital
	if capital <= 0 {
		capital = 10_000
	}

	fastSMA := rollingMean(req.Closes, fast)
	slowSMA := rollingMean(req.Closes, slow)

	equity := capital
	units := 0.0
	entryEquity := 0.0
	trades := 0
	wins := 0
	peak := equity
	maxDrawdown := 0.0
	returns := make([]float64, 0, len(req.Closes))

	for i := slow; i < len(req.Closes); i++ {
		price := req.Closes[i]
		prevEquity := equity

		inPosition := units > 0
		crossUp := fastSMA[i] > slowSMA[i] && fastSMA[i-1] <= slowSMA[i-1]
		crossDown := fastSMA[i] < slowSMA[i] && fastSMA[i-1] >= slowSMA[i-1]

		switch {
		case !inPosition && crossUp:
			units = equity / price
			entryEquity = equity
		case inPosition && crossDown:
			equity = units * price
			units = 0
			trades++
			if equity > entryEquity {
				wins++
			}
		}

		if units > 0 {
			equity = units * price
		}

		if prevEquity > 0 {
			returns = append(returns, equity/prevEquity-1)
		}
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}

	// Close any open position at the final price.
	if units > 0 {
		equity = units * req.Closes[len(req.Closes)-1]
		trades++
		if equity > entryEquity {
			wins++
		}
	}

	result := &BacktestResult{
		Symbol:      req.Symbol,
		Trades:      trades,
		FinalEquity: equity,
		TotalReturn: equity/capital - 1,
		Sharpe:      sharpe(returns),
		MaxDrawdown: maxDrawdown,
	}
	if trades > 0 {
		result.WinRate = float64(wins) / float64(trades)
	}

	return result, nil
}

// sharpe annualizes the mean/stddev ratio of per-bar returns. Zero when the
// return series is flat or too short.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}

	return mean / std * math.Sqrt(tradingDaysPerYear)
}

// rollingMean returns the trailing simple moving average at every index.
// Positions before the first full window hold the partial-window mean so the
// series lines up index-for-index with the input.
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
			out[i] = sum / float64(window)
		} else {
			out[i] = sum / float64(i+1)
		}
	}
	return out
}
