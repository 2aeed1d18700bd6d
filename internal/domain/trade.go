package domain

import "time"

// TradeSource identifies which stage of the lifecycle produced a trade.
// Confidence scoring counts trades across all sources.
type TradeSource string

const (
	SourceBacktest TradeSource = "backtest"
	SourcePaper    TradeSource = "paper"
	SourceLive     TradeSource = "live"
)

// Trade is an immutable record of a single fill, either an entry or an exit.
type Trade struct {
	ID         string      // Unique identifier (uuid)
	PositionID string      // Position this fill belongs to
	StrategyID string      // Owning strategy
	Symbol     string      // Trading symbol
	Side       Side        // long or short
	Type       TradeType   // entry or exit
	Size       float64     // Filled size in base units
	Price      float64     // Fill price after slippage
	Fee        float64     // Fee paid for this fill
	PnL        float64     // Realized PnL (exit fills only)
	Reason     TradeReason // Signal name, stop_loss, take_profit or backtest_end
	Source     TradeSource // backtest, paper or live
	Timestamp  time.Time   // Fill time
}
