// Package backtest replays historical candles through a strategy's signal
// logic with realistic execution costs and produces trades, an equity curve
// and performance metrics. A run is a single deterministic pass: indicators
// and exit checks at candle i use only data through i.
package backtest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"quantpilot/internal/analytics"
	"quantpilot/internal/domain"
	"quantpilot/internal/execution"
	"quantpilot/internal/portfolio"
	"quantpilot/internal/ports"
	"quantpilot/internal/signal"
)

// Runner drives bar-by-bar strategy replay. It holds no per-run state, so
// one runner can serve parallel backtests of independent strategies (each
// run gets its own ledger).
type Runner struct {
	registry *signal.Registry
	sim      *execution.Simulator
	logger   ports.Logger

	// Cooperative stop flag, read every iteration. Clearing it halts all
	// in-flight runs; partial results stay inspectable.
	running atomic.Bool
}

// NewRunner creates a backtest runner.
func NewRunner(registry *signal.Registry, sim *execution.Simulator, logger ports.Logger) (*Runner, error) {
	if registry == nil || sim == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for backtest runner")
	}
	r := &Runner{registry: registry, sim: sim, logger: logger}
	r.running.Store(true)
	return r, nil
}

// Stop flags all in-flight runs to halt at their next iteration. Already
// applied ledger mutations are not rolled back.
func (r *Runner) Stop() {
	r.running.Store(false)
}

// Run replays candles through the strategy and returns the full result.
func (r *Runner) Run(ctx context.Context, strat *domain.Strategy, candles []*domain.Candle, cfg domain.BacktestConfig) (*domain.BacktestResult, error) {
	gen, err := r.registry.Lookup(strat.Category)
	if err != nil {
		return nil, err
	}

	warmup := gen.Lookback(strat)
	if len(candles) <= warmup {
		return nil, fmt.Errorf("backtest needs more than %d candles, got %d: %w", warmup, len(candles), ports.ErrInsufficientData)
	}
	if err := validateAscending(candles); err != nil {
		return nil, err
	}
	if cfg.StopLossPct <= 0 || cfg.TakeProfitPct <= 0 {
		return nil, fmt.Errorf("stop-loss and take-profit percentages must be positive")
	}
	if cfg.ExitPriority == "" {
		cfg.ExitPriority = domain.ExitStopLossFirst
	}

	ledger, err := portfolio.NewLedger(cfg.InitialCapital)
	if err != nil {
		return nil, err
	}

	result := &domain.BacktestResult{
		StrategyID:  strat.ID,
		Config:      cfg,
		Trades:      make([]*domain.Trade, 0),
		EquityCurve: make([]domain.EquityPoint, 0, len(candles)-warmup),
	}

	var pos *domain.Position
	seq := 0 // Deterministic id counter; two identical runs must produce identical trade lists
	lastProcessed := warmup

	for i := warmup; i < len(candles); i++ {
		if !r.running.Load() || ctx.Err() != nil {
			result.Stopped = true
			break
		}

		candle := candles[i]
		window := candles[: i+1 : i+1]

		if pos != nil {
			reason, hit := CheckExit(pos, candle.Close, cfg.ExitPriority)
			if hit {
				if err := r.closePosition(result, ledger, pos, candle, reason); err != nil {
					return nil, err
				}
				pos = nil
			}
		}

		if pos == nil {
			sig, err := gen.Evaluate(ctx, strat, window)
			if err != nil {
				return nil, fmt.Errorf("signal evaluation failed at %s: %w", candle.OpenTime, err)
			}
			if sig != nil {
				pos, err = r.openPosition(result, ledger, strat, candle, sig, cfg, &seq)
				if err != nil {
					return nil, err
				}
			}
		}

		if pos != nil {
			ledger.MarkToMarket(pos.Side, pos.Size, pos.EntryPrice, candle.Close)
			pos.UnrealizedPnL = ledger.UnrealizedPnL()
		} else {
			ledger.MarkToMarket(domain.Long, 0, 0, candle.Close)
		}

		result.EquityCurve = append(result.EquityCurve, domain.EquityPoint{
			Timestamp:     candle.CloseTime,
			TotalValue:    ledger.TotalValue(),
			Cash:          ledger.Cash(),
			UnrealizedPnL: ledger.UnrealizedPnL(),
		})
		lastProcessed = i
	}

	// Force-close anything still open at the final processed candle.
	if pos != nil {
		last := candles[lastProcessed]
		if err := r.closePosition(result, ledger, pos, last, domain.ReasonBacktestEnd); err != nil {
			return nil, err
		}
		if len(result.EquityCurve) > 0 {
			p := &result.EquityCurve[len(result.EquityCurve)-1]
			p.TotalValue = ledger.TotalValue()
			p.Cash = ledger.Cash()
			p.UnrealizedPnL = 0
		}
	}

	result.Metrics = analytics.Analyze(result.Trades, result.EquityCurve, cfg.InitialCapital, analytics.PeriodsPerYear(cfg.Timeframe))
	result.CompletedAt = time.Now().UTC()
	return result, nil
}

// exitTolerance absorbs the float error in targets derived as
// entry * (1 ± pct), so a close exactly at the nominal level still
// counts as touched.
const exitTolerance = 1e-9

// CheckExit evaluates stop-loss and take-profit against the current close
// in the configured priority order. A candle satisfying both resolves to
// whichever rule has priority (stop-loss by default, biasing toward the
// conservative exit).
func CheckExit(pos *domain.Position, price float64, priority domain.ExitPriority) (domain.TradeReason, bool) {
	var hitSL, hitTP bool
	if pos.Side == domain.Long {
		hitSL = price <= pos.StopLoss*(1+exitTolerance)
		hitTP = price >= pos.TakeProfit*(1-exitTolerance)
	} else {
		hitSL = price >= pos.StopLoss*(1-exitTolerance)
		hitTP = price <= pos.TakeProfit*(1+exitTolerance)
	}

	if priority == domain.ExitTakeProfitFirst {
		if hitTP {
			return domain.ReasonTakeProfit, true
		}
		if hitSL {
			return domain.ReasonStopLoss, true
		}
		return "", false
	}
	if hitSL {
		return domain.ReasonStopLoss, true
	}
	if hitTP {
		return domain.ReasonTakeProfit, true
	}
	return "", false
}

func (r *Runner) openPosition(result *domain.BacktestResult, ledger *portfolio.Ledger, strat *domain.Strategy, candle *domain.Candle, sig *ports.EntrySignal, cfg domain.BacktestConfig, seq *int) (*domain.Position, error) {
	equity := ledger.TotalValue()
	if equity <= 0 {
		return nil, fmt.Errorf("equity exhausted at %s", candle.OpenTime)
	}

	// Risk-based fraction: riskAmount / stopDistance expressed as a
	// fraction of equity, clamped to the configured bounds.
	fraction := cfg.RiskPerTrade / cfg.StopLossPct
	if fraction < cfg.MinPositionSize {
		fraction = cfg.MinPositionSize
	}
	if fraction > cfg.MaxPositionSize {
		fraction = cfg.MaxPositionSize
	}
	size := equity * fraction / candle.Close

	isBuy := sig.Side == domain.Long
	fill, err := r.sim.Fill(candle.Close, isBuy, size, domain.OrderMarket)
	if err != nil {
		return nil, fmt.Errorf("entry fill simulation failed: %w", err)
	}
	if err := ledger.ApplyEntry(size, fill.Price, fill.Fee); err != nil {
		return nil, err
	}

	*seq++
	pos := &domain.Position{
		ID:         fmt.Sprintf("%s-pos-%04d", strat.ID, *seq),
		StrategyID: strat.ID,
		Symbol:     cfg.Symbol,
		Side:       sig.Side,
		Size:       size,
		EntryPrice: fill.Price,
		EntryTime:  candle.CloseTime,
		Status:     domain.StatusOpen,
	}
	if sig.Side == domain.Long {
		pos.StopLoss = fill.Price * (1 - cfg.StopLossPct)
		pos.TakeProfit = fill.Price * (1 + cfg.TakeProfitPct)
	} else {
		pos.StopLoss = fill.Price * (1 + cfg.StopLossPct)
		pos.TakeProfit = fill.Price * (1 - cfg.TakeProfitPct)
	}

	result.Trades = append(result.Trades, &domain.Trade{
		ID:         fmt.Sprintf("%s-entry", pos.ID),
		PositionID: pos.ID,
		StrategyID: strat.ID,
		Symbol:     cfg.Symbol,
		Side:       sig.Side,
		Type:       domain.TradeEntry,
		Size:       size,
		Price:      fill.Price,
		Fee:        fill.Fee,
		Reason:     domain.TradeReason(sig.Reason),
		Source:     domain.SourceBacktest,
		Timestamp:  candle.CloseTime,
	})
	return pos, nil
}

func (r *Runner) closePosition(result *domain.BacktestResult, ledger *portfolio.Ledger, pos *domain.Position, candle *domain.Candle, reason domain.TradeReason) error {
	// Closing a long sells; closing a short buys back.
	isBuy := pos.Side == domain.Short
	fill, err := r.sim.Fill(candle.Close, isBuy, pos.Size, domain.OrderMarket)
	if err != nil {
		return fmt.Errorf("exit fill simulation failed: %w", err)
	}

	var pnl float64
	if pos.Side == domain.Long {
		pnl = pos.Size * (fill.Price - pos.EntryPrice)
	} else {
		pnl = pos.Size * (pos.EntryPrice - fill.Price)
	}

	if err := ledger.ApplyExit(fill.Fee, pnl); err != nil {
		return err
	}

	pos.Status = domain.StatusClosed
	pos.ExitPrice = fill.Price
	pos.ExitTime = candle.CloseTime
	pos.RealizedPnL = pnl
	pos.UnrealizedPnL = 0

	result.Trades = append(result.Trades, &domain.Trade{
		ID:         fmt.Sprintf("%s-exit", pos.ID),
		PositionID: pos.ID,
		StrategyID: pos.StrategyID,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		Type:       domain.TradeExit,
		Size:       pos.Size,
		Price:      fill.Price,
		Fee:        fill.Fee,
		PnL:        pnl,
		Reason:     reason,
		Source:     domain.SourceBacktest,
		Timestamp:  candle.CloseTime,
	})
	return nil
}

func validateAscending(candles []*domain.Candle) error {
	for i := 1; i < len(candles); i++ {
		if !candles[i].OpenTime.After(candles[i-1].OpenTime) {
			return fmt.Errorf("candle %d at %s not after candle %d: %w",
				i, candles[i].OpenTime, i-1, ports.ErrUnorderedCandles)
		}
	}
	return nil
}
