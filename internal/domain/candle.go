package domain

import "time"

// Candle represents a single OHLCV bar. Immutable once fetched.
type Candle struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string    // Trading symbol
	Timeframe string    // Bar interval (e.g., "1m", "1h")
	Open      float64   // Opening price
	High      float64   // Highest price
	Low       float64   // Lowest price
	Close     float64   // Closing price
	Volume    float64   // Traded volume
	IsFinal   bool      // Whether the bar is closed (streamed bars only)
}
