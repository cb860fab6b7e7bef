package analysis

// TechnicalRequest asks for an indicator snapshot over a close-price series.
// Periods of zero fall back to the package defaults.
type TechnicalRequest struct {
	Symbol    string    `msgpack:"symbol" json:"symbol"`
	Closes    []float64 `msgpack:"closes" json:"closes"`
	RSIPeriod int       `msgpack:"rsi_period" json:"rsi_period,omitempty"`
	SMAPeriod int       `msgpack:"sma_period" json:"sma_period,omitempty"`
}

// TechnicalResult is the indicator snapshot for one symbol. Nil fields mean
// the series was too short for that indicator.
type TechnicalResult struct {
	Symbol       string   `msgpack:"symbol" json:"symbol"`
	LastClose    float64  `msgpack:"last_close" json:"last_close"`
	RSI          *float64 `msgpack:"rsi" json:"rsi,omitempty"`
	SMA          *float64 `msgpack:"sma" json:"sma,omitempty"`
	EMA          *float64 `msgpack:"ema" json:"ema,omitempty"`
	MACD         *float64 `msgpack:"macd" json:"macd,omitempty"`
	MACDSignal   *float64 `msgpack:"macd_signal" json:"macd_signal,omitempty"`
	MACDHist     *float64 `msgpack:"macd_hist" json:"macd_hist,omitempty"`
	BollingerUp  *float64 `msgpack:"bollinger_up" json:"bollinger_up,omitempty"`
	BollingerMid *float64 `msgpack:"bollinger_mid" json:"bollinger_mid,omitempty"`
	BollingerLow *float64 `msgpack:"bollinger_low" json:"bollinger_low,omitempty"`
}

// BacktestRequest asks for a moving-average crossover backtest over a
// close-price series.
type BacktestRequest struct {
	Symbol         string    `msgpack:"symbol" json:"symbol"`
	Closes         []float64 `msgpack:"closes" json:"closes"`
	FastPeriod     int       `msgpack:"fast_period" json:"fast_period,omitempty"`
	SlowPeriod     int       `msgpack:"slow_period" json:"slow_period,omitempty"`
	InitialCapital float64   `msgpack:"initial_capital" json:"initial_capital,omitempty"`
}

// BacktestResult is the outcome of one backtest run.
type BacktestResult struct {
	Symbol      string  `msgpack:"symbol" json:"symbol"`
	Trades      int     `msgpack:"trades" json:"trades"`
	FinalEquity float64 `msgpack:"final_equity" json:"final_equity"`
	TotalReturn float64 `msgpack:"total_return" json:"total_return"`
	Sharpe      float64 `msgpack:"sharpe" json:"sharpe"`
	MaxDrawdown float64 `msgpack:"max_drawdown" json:"max_drawdown"`
	WinRate     float64 `msgpack:"win_rate" json:"win_rate"`
}
