package domain

import "time"

// Position represents a single open or closed position held by a strategy.
// At most one position may be open per strategy-symbol pair at a time.
type Position struct {
	ID            string         // Unique identifier (uuid)
	StrategyID    string         // Owning strategy
	Symbol        string         // Trading symbol (e.g., "BTCUSDT")
	Side          Side           // long or short
	Size          float64        // Position size in base units
	EntryPrice    float64        // Fill price at entry
	EntryTime     time.Time      // Timestamp of the entry fill
	ExitPrice     float64        // Fill price at exit (0 while open)
	ExitTime      time.Time      // Timestamp of the exit fill (zero while open)
	StopLoss      float64        // Stop-loss price level
	TakeProfit    float64        // Take-profit price level
	Status        PositionStatus // open or closed
	UnrealizedPnL float64        // Mark-to-market PnL while open
	RealizedPnL   float64        // PnL captured on close
}

// IsOpen reports whether the position is still open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}
