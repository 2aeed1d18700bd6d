package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"quantpilot/internal/backtest"
	"quantpilot/internal/domain"
	"quantpilot/internal/execution"
	"quantpilot/internal/portfolio"
	"quantpilot/internal/ports"
)

// paperCandleCap bounds the in-memory candle window of a paper session.
const paperCandleCap = 500

// paperSession runs a strategy against streamed candles with simulated
// fills and its own isolated ledger. The session only mutates its own
// state; the coordinator reads the outcome after stopping the stream.
type paperSession struct {
	strategy *domain.Strategy
	gen      ports.SignalGenerator
	sim      *execution.Simulator
	cfg      domain.BacktestConfig
	logger   ports.Logger

	mu      sync.Mutex
	candles []*domain.Candle
	ledger  *portfolio.Ledger
	pos     *domain.Position
	trades  []*domain.Trade
	winners int
	closed  int
	seq     int
	lastErr error
}

func newPaperSession(s *domain.Strategy, gen ports.SignalGenerator, sim *execution.Simulator, cfg domain.BacktestConfig, logger ports.Logger) (*paperSession, error) {
	ledger, err := portfolio.NewLedger(cfg.InitialCapital)
	if err != nil {
		return nil, err
	}
	if cfg.ExitPriority == "" {
		cfg.ExitPriority = domain.ExitStopLossFirst
	}
	return &paperSession{
		strategy: s,
		gen:      gen,
		sim:      sim,
		cfg:      cfg,
		logger:   logger,
		ledger:   ledger,
	}, nil
}

// OnCandle processes one streamed candle. Non-final bars are ignored so
// decisions only ever use closed data.
func (p *paperSession) OnCandle(candle *domain.Candle) {
	if !candle.IsFinal {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.candles = append(p.candles, candle)
	if len(p.candles) > paperCandleCap {
		p.candles = p.candles[len(p.candles)-paperCandleCap:]
	}

	ctx := context.Background()
	price := candle.Close

	if p.pos != nil {
		if reason, hit := backtest.CheckExit(p.pos, price, p.cfg.ExitPriority); hit {
			if err := p.closePosition(candle, reason); err != nil {
				p.lastErr = err
				p.logger.Error(ctx, err, "Paper session failed to close position", map[string]interface{}{"strategyID": p.strategy.ID})
			}
			return
		}
		p.ledger.MarkToMarket(p.pos.Side, p.pos.Size, p.pos.EntryPrice, price)
		return
	}

	if len(p.candles) <= p.gen.Lookback(p.strategy) {
		return
	}
	sig, err := p.gen.Evaluate(ctx, p.strategy, p.candles)
	if err != nil {
		p.lastErr = err
		p.logger.Error(ctx, err, "Paper session signal evaluation failed", map[string]interface{}{"strategyID": p.strategy.ID})
		return
	}
	if sig == nil {
		return
	}
	if err := p.openPosition(candle, sig); err != nil {
		p.lastErr = err
		p.logger.Error(ctx, err, "Paper session failed to open position", map[string]interface{}{"strategyID": p.strategy.ID})
	}
}

func (p *paperSession) openPosition(candle *domain.Candle, sig *ports.EntrySignal) error {
	equity := p.ledger.TotalValue()
	if equity <= 0 {
		return fmt.Errorf("paper equity exhausted")
	}

	fraction := p.cfg.RiskPerTrade / p.cfg.StopLossPct
	if fraction < p.cfg.MinPositionSize {
		fraction = p.cfg.MinPositionSize
	}
	if fraction > p.cfg.MaxPositionSize {
		fraction = p.cfg.MaxPositionSize
	}
	size := equity * fraction / candle.Close

	fill, err := p.sim.Fill(candle.Close, sig.Side == domain.Long, size, domain.OrderMarket)
	if err != nil {
		return err
	}
	if err := p.ledger.ApplyEntry(size, fill.Price, fill.Fee); err != nil {
		return err
	}

	p.seq++
	pos := &domain.Position{
		ID:         fmt.Sprintf("%s-paper-%04d", p.strategy.ID, p.seq),
		StrategyID: p.strategy.ID,
		Symbol:     p.cfg.Symbol,
		Side:       sig.Side,
		Size:       size,
		EntryPrice: fill.Price,
		EntryTime:  candle.CloseTime,
		Status:     domain.StatusOpen,
	}
	if sig.Side == domain.Long {
		pos.StopLoss = fill.Price * (1 - p.cfg.StopLossPct)
		pos.TakeProfit = fill.Price * (1 + p.cfg.TakeProfitPct)
	} else {
		pos.StopLoss = fill.Price * (1 + p.cfg.StopLossPct)
		pos.TakeProfit = fill.Price * (1 - p.cfg.TakeProfitPct)
	}
	p.pos = pos

	p.trades = append(p.trades, &domain.Trade{
		ID:         pos.ID + "-entry",
		PositionID: pos.ID,
		StrategyID: p.strategy.ID,
		Symbol:     p.cfg.Symbol,
		Side:       sig.Side,
		Type:       domain.TradeEntry,
		Size:       size,
		Price:      fill.Price,
		Fee:        fill.Fee,
		Reason:     domain.TradeReason(sig.Reason),
		Source:     domain.SourcePaper,
		Timestamp:  candle.CloseTime,
	})
	return nil
}

func (p *paperSession) closePosition(candle *domain.Candle, reason domain.TradeReason) error {
	pos := p.pos
	fill, err := p.sim.Fill(candle.Close, pos.Side == domain.Short, pos.Size, domain.OrderMarket)
	if err != nil {
		return err
	}

	var pnl float64
	if pos.Side == domain.Long {
		pnl = pos.Size * (fill.Price - pos.EntryPrice)
	} else {
		pnl = pos.Size * (pos.EntryPrice - fill.Price)
	}
	if err := p.ledger.ApplyExit(fill.Fee, pnl); err != nil {
		return err
	}

	pos.Status = domain.StatusClosed
	pos.ExitPrice = fill.Price
	pos.ExitTime = candle.CloseTime
	pos.RealizedPnL = pnl
	p.pos = nil

	p.closed++
	if pnl > 0 {
		p.winners++
	}
	p.trades = append(p.trades, &domain.Trade{
		ID:         pos.ID + "-exit",
		PositionID: pos.ID,
		StrategyID: p.strategy.ID,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		Type:       domain.TradeExit,
		Size:       pos.Size,
		Price:      fill.Price,
		Fee:        fill.Fee,
		PnL:        pnl,
		Reason:     reason,
		Source:     domain.SourcePaper,
		Timestamp:  candle.CloseTime,
	})
	return nil
}

// outcome summarizes the session for threshold evaluation. Profit is the
// realized PnL net of every fee the session paid, entries included, so the
// number matches what a restart recomputes from the persisted trades.
func (p *paperSession) outcome() (profit float64, closed int, winRate float64, trades []*domain.Trade) {
	p.mu.Lock()
	defer p.mu.Unlock()
	profit = p.ledger.RealizedPnL()
	for _, t := range p.trades {
		profit -= t.Fee
	}
	closed = p.closed
	if p.closed > 0 {
		winRate = float64(p.winners) / float64(p.closed)
	}
	trades = append([]*domain.Trade(nil), p.trades...)
	return
}
