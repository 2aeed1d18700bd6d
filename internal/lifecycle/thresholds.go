package lifecycle

import (
	"fmt"

	"quantpilot/internal/domain"
)

// BacktestThresholds gate the created -> backtested transition. Gates are
// evaluated in a fixed priority order; the first violated gate is the
// recorded failure reason, even when later gates would also fail.
type BacktestThresholds struct {
	MinTotalReturn float64
	MinWinRate     float64
	MinSharpe      float64
	MaxDrawdown    float64
}

// Evaluate returns ok=true when every gate passes, otherwise the failure
// reason of the first violated gate.
func (t BacktestThresholds) Evaluate(m domain.BacktestMetrics) (reason string, ok bool) {
	if m.TotalReturn < t.MinTotalReturn {
		return fmt.Sprintf("total return %.4f below minimum %.4f", m.TotalReturn, t.MinTotalReturn), false
	}
	if m.WinRate < t.MinWinRate {
		return fmt.Sprintf("win rate %.4f below minimum %.4f", m.WinRate, t.MinWinRate), false
	}
	if m.SharpeRatio < t.MinSharpe {
		return fmt.Sprintf("sharpe ratio %.4f below minimum %.4f", m.SharpeRatio, t.MinSharpe), false
	}
	if m.MaxDrawdown > t.MaxDrawdown {
		return fmt.Sprintf("max drawdown %.4f above maximum %.4f", m.MaxDrawdown, t.MaxDrawdown), false
	}
	return "", true
}

// PaperThresholds gate the paper_trading -> live promotion at observation
// window expiry. Same first-gate-failed rule as backtests.
type PaperThresholds struct {
	MinProfit  float64 // Realized PnL over the observation window
	MinTrades  int     // Closed trades during the window
	MinWinRate float64
}

// Evaluate applies the paper-trading gates to the session outcome.
func (t PaperThresholds) Evaluate(profit float64, trades int, winRate float64) (reason string, ok bool) {
	if profit < t.MinProfit {
		return fmt.Sprintf("paper profit %.4f below minimum %.4f", profit, t.MinProfit), false
	}
	if trades < t.MinTrades {
		return fmt.Sprintf("paper trade count %d below minimum %d", trades, t.MinTrades), false
	}
	if winRate < t.MinWinRate {
		return fmt.Sprintf("paper win rate %.4f below minimum %.4f", winRate, t.MinWinRate), false
	}
	return "", true
}

// RetirementThresholds trigger live -> retired on the periodic check over
// the recent trade window.
type RetirementThresholds struct {
	MaxDrawdown     float64 // Recent drawdown ceiling, as a fraction of capital
	MinWinRate      float64 // Win-rate floor
	MinProfitFactor float64 // Profit-factor floor (default 0.8)
}

// Evaluate returns a retirement reason when any limit is breached.
func (t RetirementThresholds) Evaluate(drawdown, winRate, profitFactor float64) (reason string, retire bool) {
	if drawdown > t.MaxDrawdown {
		return fmt.Sprintf("recent drawdown %.4f above ceiling %.4f", drawdown, t.MaxDrawdown), true
	}
	if winRate < t.MinWinRate {
		return fmt.Sprintf("recent win rate %.4f below floor %.4f", winRate, t.MinWinRate), true
	}
	if profitFactor < t.MinProfitFactor {
		return fmt.Sprintf("recent profit factor %.4f below floor %.4f", profitFactor, t.MinProfitFactor), true
	}
	return "", false
}
