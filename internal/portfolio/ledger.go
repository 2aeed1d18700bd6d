// Package portfolio tracks cash, margin and PnL as simulated trades occur.
// Each backtest gets its own ledger instance, so runs can execute in
// parallel with no shared mutable state.
package portfolio

import (
	"fmt"

	"quantpilot/internal/domain"
)

// Ledger is the source of truth for portfolio state during a simulation.
// TotalValue is always recomputed from the three state fields rather than
// adjusted incrementally, so rounding drift cannot compound.
type Ledger struct {
	cash          float64
	margin        float64
	unrealizedPnL float64
	realizedPnL   float64
	entryNotional float64 // Margin booked at entry, released on exit
}

// NewLedger creates a ledger funded with the given initial capital.
func NewLedger(initialCapital float64) (*Ledger, error) {
	if initialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive, got %f", initialCapital)
	}
	return &Ledger{cash: initialCapital}, nil
}

// Cash returns the free cash balance.
func (l *Ledger) Cash() float64 { return l.cash }

// Margin returns the capital locked in the open position.
func (l *Ledger) Margin() float64 { return l.margin }

// UnrealizedPnL returns the current mark-to-market PnL of the open position.
func (l *Ledger) UnrealizedPnL() float64 { return l.unrealizedPnL }

// RealizedPnL returns the cumulative PnL of closed positions.
func (l *Ledger) RealizedPnL() float64 { return l.realizedPnL }

// TotalValue recomputes total equity from the state fields.
func (l *Ledger) TotalValue() float64 {
	return l.cash + l.margin + l.unrealizedPnL
}

// ApplyEntry books an entry fill: the notional moves from cash to margin
// and the fee is deducted from cash.
func (l *Ledger) ApplyEntry(size, price, fee float64) error {
	if size <= 0 || price <= 0 {
		return fmt.Errorf("entry size and price must be positive, got size=%f price=%f", size, price)
	}
	notional := size * price
	l.cash -= notional
	l.cash -= fee
	l.margin += notional
	l.entryNotional = notional
	return nil
}

// ApplyExit books an exit fill: the entry margin is released back to cash
// together with the trade PnL, and the fee is deducted. For a long this is
// identical to crediting size*exitPrice (entryNotional + pnl equals the
// exit notional); for a short the same formula keeps the sign right.
func (l *Ledger) ApplyExit(fee, tradePnL float64) error {
	if l.entryNotional == 0 {
		return fmt.Errorf("exit with no booked entry")
	}
	l.cash += l.entryNotional + tradePnL
	l.cash -= fee
	l.margin -= l.entryNotional
	l.realizedPnL += tradePnL
	l.entryNotional = 0
	l.unrealizedPnL = 0
	return nil
}

// MarkToMarket updates unrealized PnL for the open position at the current
// price. A ledger with no open position should be marked with size 0.
func (l *Ledger) MarkToMarket(side domain.Side, size, entryPrice, currentPrice float64) {
	if size == 0 {
		l.unrealizedPnL = 0
		return
	}
	if side == domain.Short {
		l.unrealizedPnL = size * (entryPrice - currentPrice)
		return
	}
	l.unrealizedPnL = size * (currentPrice - entryPrice)
}
