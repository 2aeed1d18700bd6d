// Package analytics derives performance statistics from a completed
// backtest's trade list and equity curve.
package analytics

import (
	"math"
	"time"

	"quantpilot/internal/domain"
)

// PeriodsPerYear returns the annualization basis for a bar timeframe.
// Unknown timeframes fall back to daily bars.
func PeriodsPerYear(timeframe string) float64 {
	switch timeframe {
	case "1m":
		return 525600
	case "5m":
		return 105120
	case "15m":
		return 35040
	case "30m":
		return 17520
	case "1h":
		return 8760
	case "4h":
		return 2190
	case "1d":
		return 365
	case "1w":
		return 52
	default:
		return 365
	}
}

// Analyze computes the full metric set from exit trades and the equity
// curve. periodsPerYear annualizes the ratio metrics.
func Analyze(trades []*domain.Trade, equity []domain.EquityPoint, initialCapital, periodsPerYear float64) domain.BacktestMetrics {
	m := domain.BacktestMetrics{FinalValue: initialCapital}
	if len(equity) > 0 {
		m.FinalValue = equity[len(equity)-1].TotalValue
	}
	if initialCapital > 0 {
		m.TotalReturn = (m.FinalValue - initialCapital) / initialCapital
	}

	m.MaxDrawdown = maxDrawdown(equity)

	returns := periodicReturns(equity)
	annualize := math.Sqrt(periodsPerYear)
	m.SharpeRatio = sharpe(returns) * annualize
	m.SortinoRatio = sortino(returns) * annualize

	if m.MaxDrawdown > 0 {
		m.CalmarRatio = m.TotalReturn / m.MaxDrawdown
	} else {
		// No drawdown means the ratio is undefined; callers must check the
		// flag instead of displaying a bare zero or Inf.
		m.CalmarUndefined = true
	}

	var grossProfit, grossLoss, totalPnL float64
	var consecWins, consecLosses int
	var totalDuration time.Duration
	var durations int
	entryTimes := entryTimesByPosition(trades)

	for _, t := range trades {
		if t.Type != domain.TradeExit {
			continue
		}
		m.TotalTrades++
		totalPnL += t.PnL
		if t.PnL > 0 {
			m.WinningTrades++
			grossProfit += t.PnL
			m.AverageWin = (m.AverageWin*float64(m.WinningTrades-1) + t.PnL) / float64(m.WinningTrades)
			consecWins++
			consecLosses = 0
		} else {
			m.LosingTrades++
			grossLoss += -t.PnL
			m.AverageLoss = (m.AverageLoss*float64(m.LosingTrades-1) + t.PnL) / float64(m.LosingTrades)
			consecLosses++
			consecWins = 0
		}
		if consecWins > m.MaxConsecWins {
			m.MaxConsecWins = consecWins
		}
		if consecLosses > m.MaxConsecLosses {
			m.MaxConsecLosses = consecLosses
		}
		if entry, ok := entryTimes[t.PositionID]; ok {
			totalDuration += t.Timestamp.Sub(entry)
			durations++
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
		m.Expectancy = totalPnL / float64(m.TotalTrades)
	}
	if durations > 0 {
		m.AvgTradeTime = totalDuration / time.Duration(durations)
	}
	m.ProfitFactor = profitFactor(grossProfit, grossLoss)

	return m
}

// profitFactor is gross profit over gross loss: +Inf when there are profits
// and no losses, 0 when there is nothing to divide.
func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}

// maxDrawdown finds the largest peak-to-trough drop in the equity curve,
// tracked against a running peak.
func maxDrawdown(equity []domain.EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0].TotalValue
	maxDD := 0.0
	for _, p := range equity {
		if p.TotalValue > peak {
			peak = p.TotalValue
		}
		if peak > 0 {
			dd := (peak - p.TotalValue) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// periodicReturns derives per-bar returns from successive equity deltas.
func periodicReturns(equity []domain.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].TotalValue
		if prev == 0 {
			continue
		}
		returns = append(returns, (equity[i].TotalValue-prev)/prev)
	}
	return returns
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sharpe is the per-period Sharpe ratio (risk-free rate 0); 0 when the
// standard deviation is 0.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mu := mean(returns)
	variance := 0.0
	for _, r := range returns {
		variance += (r - mu) * (r - mu)
	}
	variance /= float64(len(returns) - 1)
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mu / std
}

// sortino penalizes only downside volatility. With no negative returns it
// reduces to the mean return rather than an undefined division.
func sortino(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mu := mean(returns)
	downside := 0.0
	negatives := 0
	for _, r := range returns {
		if r < 0 {
			downside += r * r
			negatives++
		}
	}
	if negatives == 0 {
		return mu
	}
	dev := math.Sqrt(downside / float64(negatives))
	if dev == 0 {
		return 0
	}
	return mu / dev
}

func entryTimesByPosition(trades []*domain.Trade) map[string]time.Time {
	out := make(map[string]time.Time)
	for _, t := range trades {
		if t.Type == domain.TradeEntry {
			out[t.PositionID] = t.Timestamp
		}
	}
	return out
}
