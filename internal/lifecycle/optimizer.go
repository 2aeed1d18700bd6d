// Package lifecycle moves strategies through the promotion pipeline:
// created -> backtested -> paper_trading -> live -> retired, with terminal
// failure states at every gate. All lifecycle state transitions happen on a
// single coordinator goroutine; backtests and candle streams run on their
// own goroutines and report back through channels.
package lifecycle

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"quantpilot/internal/backtest"
	"quantpilot/internal/confidence"
	"quantpilot/internal/domain"
	"quantpilot/internal/execution"
	"quantpilot/internal/ports"
	"quantpilot/internal/signal"
)

// Config holds optimizer tuning. Zero values fall back to defaults.
type Config struct {
	Backtest       domain.BacktestConfig // Template for every backtest and paper session
	BacktestWindow time.Duration         // Historical candle window (default 30 days)

	BacktestGates BacktestThresholds
	PaperGates    PaperThresholds
	PaperDuration time.Duration // Paper observation window (default 48h)

	RetirementGates    RetirementThresholds
	RetirementLookback time.Duration // Trade window for retirement checks (default 7 days)

	LivePromotionThreshold float64 // Minimum confidence score for live (default 75)

	MaxConcurrentBacktests  int           // default 2
	PollInterval            time.Duration // Queue drain cadence (default 10s)
	RetirementCheckInterval time.Duration // default 1h
}

func (c *Config) applyDefaults() {
	if c.BacktestWindow <= 0 {
		c.BacktestWindow = 30 * 24 * time.Hour
	}
	if c.PaperDuration <= 0 {
		c.PaperDuration = 48 * time.Hour
	}
	if c.RetirementLookback <= 0 {
		c.RetirementLookback = 7 * 24 * time.Hour
	}
	if c.LivePromotionThreshold <= 0 {
		c.LivePromotionThreshold = 75
	}
	if c.MaxConcurrentBacktests <= 0 {
		c.MaxConcurrentBacktests = 2
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.RetirementCheckInterval <= 0 {
		c.RetirementCheckInterval = time.Hour
	}
}

// Stats is a point-in-time snapshot of pipeline occupancy.
type Stats struct {
	ByStatus        map[domain.StrategyStatus]int
	BacktestQueue   int
	PaperQueue      int
	PromotionQueue  int
	ActiveBacktests int
	ActiveSessions  int
}

// activePaper pairs a running paper session with its stream handles and the
// wall-clock deadline at which it gets evaluated.
type activePaper struct {
	session  *paperSession
	deadline time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// backtestOutcome is what a worker goroutine reports back to the
// coordinator. Exactly one of result, err or panicMsg is meaningful.
type backtestOutcome struct {
	strategyID string
	result     *domain.BacktestResult
	err        error
	panicMsg   string
}

// streamFailure reports a fatal candle stream error for a paper session.
type streamFailure struct {
	strategyID string
	err        error
}

// Optimizer owns the strategy registry and drives every lifecycle
// transition. Public queue methods only append to queues; the coordinator
// goroutine is the sole writer of strategy status.
type Optimizer struct {
	cfg        Config
	logger     ports.Logger
	market     ports.MarketDataProvider
	strategies ports.StrategyRepository
	results    ports.BacktestResultRepository
	trades     ports.TradeRepository
	runner     *backtest.Runner
	scorer     *confidence.Scorer
	registry   *signal.Registry
	sim        *execution.Simulator

	// mu guards the maps and queues below and every strategy field write,
	// so StrategyStatus and GetStats read consistent values while the
	// coordinator transitions strategies.
	mu              sync.Mutex
	byID            map[string]*domain.Strategy
	backtestQueue   []string
	paperQueue      []string
	promotionQueue  []string
	sessions        map[string]*activePaper
	activeBacktests int
	started         bool

	resultsCh   chan backtestOutcome
	streamErrCh chan streamFailure
	stopCh      chan struct{}
	doneCh      chan struct{}

	now func() time.Time
}

// NewOptimizer creates a lifecycle optimizer.
func NewOptimizer(
	cfg Config,
	market ports.MarketDataProvider,
	strategies ports.StrategyRepository,
	results ports.BacktestResultRepository,
	trades ports.TradeRepository,
	runner *backtest.Runner,
	scorer *confidence.Scorer,
	registry *signal.Registry,
	sim *execution.Simulator,
	logger ports.Logger,
) (*Optimizer, error) {
	if market == nil || strategies == nil || results == nil || trades == nil ||
		runner == nil || scorer == nil || registry == nil || sim == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for lifecycle optimizer")
	}
	cfg.applyDefaults()
	return &Optimizer{
		cfg:         cfg,
		logger:      logger,
		market:      market,
		strategies:  strategies,
		results:     results,
		trades:      trades,
		runner:      runner,
		scorer:      scorer,
		registry:    registry,
		sim:         sim,
		byID:        make(map[string]*domain.Strategy),
		sessions:    make(map[string]*activePaper),
		resultsCh:   make(chan backtestOutcome),
		streamErrCh: make(chan streamFailure, 8),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start reloads persisted strategies, re-queues unfinished work and starts
// the coordinator goroutine. It is not safe to call twice.
func (o *Optimizer) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("lifecycle optimizer already started")
	}
	o.started = true
	o.mu.Unlock()

	if err := o.recover(ctx); err != nil {
		return fmt.Errorf("lifecycle recovery failed: %w", err)
	}

	go o.coordinate(ctx)
	o.logger.Info(ctx, "Lifecycle optimizer started", map[string]interface{}{
		"pollInterval":  o.cfg.PollInterval.String(),
		"paperDuration": o.cfg.PaperDuration.String(),
	})
	return nil
}

// Stop halts the coordinator, flags in-flight backtests to stop and shuts
// down all candle streams. It blocks until the coordinator has exited.
func (o *Optimizer) Stop() {
	o.runner.Stop()
	close(o.stopCh)
	<-o.doneCh
}

// QueueForBacktest persists a new strategy and schedules its backtest. The
// strategy enters the pipeline in status created.
func (o *Optimizer) QueueForBacktest(ctx context.Context, s *domain.Strategy) error {
	if s.ID == "" {
		return fmt.Errorf("strategy ID is required")
	}
	if _, err := o.registry.Lookup(s.Category); err != nil {
		return err
	}

	s.Status = domain.StatusCreated
	if s.CreatedAt.IsZero() {
		s.CreatedAt = o.now()
	}
	if err := o.strategies.CreateStrategy(ctx, s); err != nil {
		return fmt.Errorf("failed to persist strategy: %w", err)
	}

	o.mu.Lock()
	o.byID[s.ID] = s
	o.backtestQueue = append(o.backtestQueue, s.ID)
	o.mu.Unlock()

	o.logger.Info(ctx, "Strategy queued for backtest", map[string]interface{}{
		"strategyID": s.ID, "category": string(s.Category),
	})
	return nil
}

// QueueForPaperTrading schedules a backtested strategy for its paper
// observation window.
func (o *Optimizer) QueueForPaperTrading(id string) error {
	return o.enqueue(id, domain.StatusBacktested, &o.paperQueue)
}

// QueueForLivePromotion schedules a paper-trading strategy for its
// confidence check. Used when the observation window already elapsed.
func (o *Optimizer) QueueForLivePromotion(id string) error {
	return o.enqueue(id, domain.StatusPaperTrading, &o.promotionQueue)
}

func (o *Optimizer) enqueue(id string, want domain.StrategyStatus, queue *[]string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.byID[id]
	if !ok {
		return fmt.Errorf("strategy %s: %w", id, ports.ErrNotFound)
	}
	if s.Status != want {
		return fmt.Errorf("strategy %s is %s, want %s", id, s.Status, want)
	}
	*queue = append(*queue, id)
	return nil
}

// StrategyStatus returns the current lifecycle status of a strategy.
func (o *Optimizer) StrategyStatus(id string) (domain.StrategyStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.byID[id]
	if !ok {
		return "", fmt.Errorf("strategy %s: %w", id, ports.ErrNotFound)
	}
	return s.Status, nil
}

// GetStats returns a snapshot of pipeline occupancy.
func (o *Optimizer) GetStats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	stats := Stats{
		ByStatus:        make(map[domain.StrategyStatus]int),
		BacktestQueue:   len(o.backtestQueue),
		PaperQueue:      len(o.paperQueue),
		PromotionQueue:  len(o.promotionQueue),
		ActiveBacktests: o.activeBacktests,
		ActiveSessions:  len(o.sessions),
	}
	for _, s := range o.byID {
		stats.ByStatus[s.Status]++
	}
	return stats
}

// recover reloads every persisted strategy and re-queues unfinished
// pipeline stages. Paper strategies whose observation deadline passed while
// the process was down are evaluated from their persisted trades.
func (o *Optimizer) recover(ctx context.Context) error {
	all, err := o.strategies.FindAllStrategies(ctx)
	if err != nil {
		return err
	}

	o.mu.Lock()
	for _, s := range all {
		o.byID[s.ID] = s
		switch s.Status {
		case domain.StatusCreated:
			o.backtestQueue = append(o.backtestQueue, s.ID)
		case domain.StatusBacktested:
			o.paperQueue = append(o.paperQueue, s.ID)
		}
	}
	o.mu.Unlock()

	// paper_trading strategies keep their original deadline across
	// restarts. Expired ones are evaluated right away from persisted
	// trades; the rest get a fresh session for the remaining window.
	for _, s := range all {
		if s.Status != domain.StatusPaperTrading {
			continue
		}
		deadline := s.PaperStartedAt.Add(o.cfg.PaperDuration)
		if !deadline.After(o.now()) {
			o.evaluatePaperFromStore(ctx, s)
			continue
		}
		if err := o.startPaperSession(ctx, s, deadline); err != nil {
			o.failStrategy(ctx, s, domain.StatusPaperTradingError, err.Error())
		}
	}
	return nil
}

// coordinate is the single goroutine that owns all lifecycle transitions.
func (o *Optimizer) coordinate(ctx context.Context) {
	defer close(o.doneCh)

	poll := time.NewTicker(o.cfg.PollInterval)
	defer poll.Stop()
	retire := time.NewTicker(o.cfg.RetirementCheckInterval)
	defer retire.Stop()

	for {
		select {
		case <-o.stopCh:
			o.shutdownSessions(ctx)
			return
		case <-ctx.Done():
			o.shutdownSessions(ctx)
			return
		case outcome := <-o.resultsCh:
			o.handleBacktestOutcome(ctx, outcome)
		case fail := <-o.streamErrCh:
			o.handleStreamFailure(ctx, fail)
		case <-poll.C:
			o.dispatchBacktests(ctx)
			o.checkPaperDeadlines(ctx)
			o.drainPaperQueue(ctx)
			o.drainPromotionQueue(ctx)
		case <-retire.C:
			o.checkRetirements(ctx)
		}
	}
}

// dispatchBacktests starts worker goroutines for queued strategies up to
// the concurrency limit. Each run gets its own ledger inside the runner, so
// parallel runs cannot share portfolio state.
func (o *Optimizer) dispatchBacktests(ctx context.Context) {
	for {
		o.mu.Lock()
		if len(o.backtestQueue) == 0 || o.activeBacktests >= o.cfg.MaxConcurrentBacktests {
			o.mu.Unlock()
			return
		}
		id := o.backtestQueue[0]
		o.backtestQueue = o.backtestQueue[1:]
		s := o.byID[id]
		o.activeBacktests++
		o.mu.Unlock()

		go o.runBacktest(ctx, s)
	}
}

// runBacktest executes one backtest on a worker goroutine. A panic in
// strategy code is contained here and reported as an outcome rather than
// taking down the process.
func (o *Optimizer) runBacktest(ctx context.Context, s *domain.Strategy) {
	outcome := backtestOutcome{strategyID: s.ID}
	defer func() {
		if r := recover(); r != nil {
			outcome.panicMsg = fmt.Sprintf("panic: %v", r)
			o.logger.Error(ctx, fmt.Errorf("%v", r), "Backtest worker panicked", map[string]interface{}{
				"strategyID": s.ID, "stack": string(debug.Stack()),
			})
		}
		select {
		case o.resultsCh <- outcome:
		case <-o.stopCh:
		}
	}()

	end := o.now()
	start := end.Add(-o.cfg.BacktestWindow)
	candles, err := o.market.GetCandles(ctx, s.Symbol, s.Timeframe, start, end)
	if err != nil {
		outcome.err = fmt.Errorf("candle fetch failed: %w", err)
		return
	}

	cfg := o.cfg.Backtest
	cfg.Symbol = s.Symbol
	cfg.Timeframe = s.Timeframe
	cfg.StartTime = start
	cfg.EndTime = end

	outcome.result, outcome.err = o.runner.Run(ctx, s, candles, cfg)
}

func (o *Optimizer) handleBacktestOutcome(ctx context.Context, out backtestOutcome) {
	o.mu.Lock()
	o.activeBacktests--
	s := o.byID[out.strategyID]
	o.mu.Unlock()
	if s == nil {
		return
	}

	if out.panicMsg != "" {
		o.failStrategy(ctx, s, domain.StatusBacktestError, out.panicMsg)
		return
	}
	if out.err != nil {
		o.failStrategy(ctx, s, domain.StatusBacktestError, out.err.Error())
		return
	}

	res := out.result
	if err := o.results.SaveBacktestResult(ctx, res); err != nil {
		o.failStrategy(ctx, s, domain.StatusBacktestError, fmt.Sprintf("result persistence failed: %v", err))
		return
	}
	if err := o.trades.SaveTrades(ctx, res.Trades); err != nil {
		o.logger.Warn(ctx, "Failed to persist backtest trades", map[string]interface{}{
			"strategyID": s.ID, "error": err.Error(),
		})
	}

	now := o.now()
	o.mu.Lock()
	s.Performance = domain.PerformanceSnapshot{
		TotalTrades: res.Metrics.TotalTrades,
		WinRate:     res.Metrics.WinRate,
		TotalReturn: res.Metrics.TotalReturn,
		MaxDrawdown: res.Metrics.MaxDrawdown,
		SharpeRatio: res.Metrics.SharpeRatio,
		UpdatedAt:   now,
	}
	o.mu.Unlock()

	if reason, ok := o.cfg.BacktestGates.Evaluate(res.Metrics); !ok {
		o.failStrategy(ctx, s, domain.StatusFailedBacktest, reason)
		return
	}

	o.mu.Lock()
	s.Status = domain.StatusBacktested
	s.BacktestedAt = now
	s.FailureReason = ""
	o.paperQueue = append(o.paperQueue, s.ID)
	o.mu.Unlock()
	o.persist(ctx, s)

	o.logger.Info(ctx, "Strategy passed backtest gates", map[string]interface{}{
		"strategyID": s.ID,
		"return":     res.Metrics.TotalReturn,
		"sharpe":     res.Metrics.SharpeRatio,
	})
}

// drainPaperQueue starts a paper session for every queued strategy.
func (o *Optimizer) drainPaperQueue(ctx context.Context) {
	o.mu.Lock()
	queued := o.paperQueue
	o.paperQueue = nil
	o.mu.Unlock()

	for _, id := range queued {
		o.mu.Lock()
		s := o.byID[id]
		o.mu.Unlock()
		if s == nil || s.Status != domain.StatusBacktested {
			continue
		}

		now := o.now()
		o.mu.Lock()
		s.Status = domain.StatusPaperTrading
		s.PaperStartedAt = now
		o.mu.Unlock()
		o.persist(ctx, s)

		if err := o.startPaperSession(ctx, s, now.Add(o.cfg.PaperDuration)); err != nil {
			o.failStrategy(ctx, s, domain.StatusPaperTradingError, err.Error())
		}
	}
}

func (o *Optimizer) startPaperSession(ctx context.Context, s *domain.Strategy, deadline time.Time) error {
	gen, err := o.registry.Lookup(s.Category)
	if err != nil {
		return err
	}

	cfg := o.cfg.Backtest
	cfg.Symbol = s.Symbol
	cfg.Timeframe = s.Timeframe
	session, err := newPaperSession(s, gen, o.sim, cfg, o.logger)
	if err != nil {
		return err
	}

	id := s.ID
	doneCh, stopCh, err := o.market.StreamCandles(ctx, s.Symbol, s.Timeframe,
		session.OnCandle,
		func(streamErr error) {
			select {
			case o.streamErrCh <- streamFailure{strategyID: id, err: streamErr}:
			default:
			}
		})
	if err != nil {
		return fmt.Errorf("candle stream start failed: %w", err)
	}

	o.mu.Lock()
	o.sessions[s.ID] = &activePaper{session: session, deadline: deadline, stopCh: stopCh, doneCh: doneCh}
	o.mu.Unlock()

	o.logger.Info(ctx, "Paper trading session started", map[string]interface{}{
		"strategyID": s.ID, "deadline": deadline.Format(time.RFC3339),
	})
	return nil
}

// checkPaperDeadlines evaluates every session whose observation window has
// elapsed.
func (o *Optimizer) checkPaperDeadlines(ctx context.Context) {
	now := o.now()

	o.mu.Lock()
	var due []string
	for id, ap := range o.sessions {
		if !ap.deadline.After(now) {
			due = append(due, id)
		}
	}
	o.mu.Unlock()

	for _, id := range due {
		o.evaluatePaperSession(ctx, id)
	}
}

func (o *Optimizer) evaluatePaperSession(ctx context.Context, id string) {
	o.mu.Lock()
	ap := o.sessions[id]
	s := o.byID[id]
	delete(o.sessions, id)
	o.mu.Unlock()
	if ap == nil || s == nil {
		return
	}

	close(ap.stopCh)
	<-ap.doneCh

	profit, closed, winRate, trades := ap.session.outcome()
	if len(trades) > 0 {
		if err := o.trades.SaveTrades(ctx, trades); err != nil {
			o.logger.Warn(ctx, "Failed to persist paper trades", map[string]interface{}{
				"strategyID": id, "error": err.Error(),
			})
		}
	}

	o.mu.Lock()
	s.Performance.TotalTrades += closed
	s.Performance.WinRate = winRate
	s.Performance.UpdatedAt = o.now()
	o.mu.Unlock()

	o.applyPaperGates(ctx, s, profit, closed, winRate)
}

// evaluatePaperFromStore applies the paper gates using persisted trades.
// Used on recovery when the observation window expired while the process
// was down. Profit follows the same convention as a live session's outcome:
// realized PnL net of every paper fee, entry fills included.
func (o *Optimizer) evaluatePaperFromStore(ctx context.Context, s *domain.Strategy) {
	trades, err := o.trades.FindTradesSince(ctx, s.ID, s.PaperStartedAt)
	if err != nil {
		o.failStrategy(ctx, s, domain.StatusPaperTradingError, fmt.Sprintf("paper trade reload failed: %v", err))
		return
	}

	var profit float64
	var closed, winners int
	for _, t := range trades {
		if t.Source != domain.SourcePaper {
			continue
		}
		profit -= t.Fee
		if t.Type != domain.TradeExit {
			continue
		}
		profit += t.PnL
		closed++
		if t.PnL > 0 {
			winners++
		}
	}
	winRate := 0.0
	if closed > 0 {
		winRate = float64(winners) / float64(closed)
	}

	o.applyPaperGates(ctx, s, profit, closed, winRate)
}

func (o *Optimizer) applyPaperGates(ctx context.Context, s *domain.Strategy, profit float64, closed int, winRate float64) {
	if reason, ok := o.cfg.PaperGates.Evaluate(profit, closed, winRate); !ok {
		o.failStrategy(ctx, s, domain.StatusFailedPaper, reason)
		return
	}

	o.mu.Lock()
	o.promotionQueue = append(o.promotionQueue, s.ID)
	o.mu.Unlock()

	o.logger.Info(ctx, "Strategy passed paper gates", map[string]interface{}{
		"strategyID": s.ID, "profit": profit, "closedTrades": closed,
	})
}

// drainPromotionQueue runs the confidence check on each candidate and
// promotes or terminates it.
func (o *Optimizer) drainPromotionQueue(ctx context.Context) {
	o.mu.Lock()
	queued := o.promotionQueue
	o.promotionQueue = nil
	o.mu.Unlock()

	for _, id := range queued {
		o.mu.Lock()
		s := o.byID[id]
		o.mu.Unlock()
		if s == nil || s.Status != domain.StatusPaperTrading {
			continue
		}

		assessment, err := o.scorer.Score(ctx, s.ID, s.Symbol, s.Timeframe)
		if err != nil {
			o.logger.Error(ctx, err, "Confidence scoring failed, re-queueing", map[string]interface{}{
				"strategyID": s.ID,
			})
			o.mu.Lock()
			o.promotionQueue = append(o.promotionQueue, id)
			o.mu.Unlock()
			continue
		}

		if assessment.Score < o.cfg.LivePromotionThreshold {
			o.failStrategy(ctx, s, domain.StatusFailedConfidence,
				fmt.Sprintf("confidence score %.1f below promotion threshold %.1f", assessment.Score, o.cfg.LivePromotionThreshold))
			continue
		}

		o.mu.Lock()
		s.Status = domain.StatusLive
		s.PromotedAt = o.now()
		s.FailureReason = ""
		o.mu.Unlock()
		o.persist(ctx, s)

		o.logger.Info(ctx, "Strategy promoted to live", map[string]interface{}{
			"strategyID":      s.ID,
			"confidence":      assessment.Score,
			"recommendedSize": assessment.RecommendedSize,
		})
	}
}

// checkRetirements evaluates every live strategy against the retirement
// thresholds over the recent trade window.
func (o *Optimizer) checkRetirements(ctx context.Context) {
	o.mu.Lock()
	var live []*domain.Strategy
	for _, s := range o.byID {
		if s.Status == domain.StatusLive {
			live = append(live, s)
		}
	}
	o.mu.Unlock()

	since := o.now().Add(-o.cfg.RetirementLookback)
	for _, s := range live {
		trades, err := o.trades.FindTradesSince(ctx, s.ID, since)
		if err != nil {
			o.logger.Error(ctx, err, "Retirement trade fetch failed", map[string]interface{}{
				"strategyID": s.ID,
			})
			continue
		}

		drawdown, winRate, profitFactor, closed := recentTradeStats(trades, o.cfg.Backtest.InitialCapital)
		if closed == 0 {
			continue
		}

		if reason, retire := o.cfg.RetirementGates.Evaluate(drawdown, winRate, profitFactor); retire {
			o.mu.Lock()
			s.Status = domain.StatusRetired
			s.RetiredAt = o.now()
			s.FailureReason = reason
			o.mu.Unlock()
			o.persist(ctx, s)
			o.logger.Warn(ctx, "Strategy retired", map[string]interface{}{
				"strategyID": s.ID, "reason": reason,
			})
		}
	}
}

// recentTradeStats derives drawdown (peak-to-trough of cumulative realized
// PnL as a fraction of capital), win rate and profit factor from exit fills.
func recentTradeStats(trades []*domain.Trade, capital float64) (drawdown, winRate, profitFactor float64, closed int) {
	var cum, peak, maxFall float64
	var winners int
	var grossProfit, grossLoss float64

	for _, t := range trades {
		if t.Type != domain.TradeExit {
			continue
		}
		closed++
		cum += t.PnL - t.Fee
		if cum > peak {
			peak = cum
		}
		if fall := peak - cum; fall > maxFall {
			maxFall = fall
		}
		if t.PnL > 0 {
			winners++
			grossProfit += t.PnL
		} else {
			grossLoss += -t.PnL
		}
	}
	if closed == 0 {
		return 0, 0, 0, 0
	}

	if capital > 0 {
		drawdown = maxFall / capital
	}
	winRate = float64(winners) / float64(closed)
	if grossLoss > 0 {
		profitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		profitFactor = math.Inf(1)
	}
	return drawdown, winRate, profitFactor, closed
}

func (o *Optimizer) handleStreamFailure(ctx context.Context, fail streamFailure) {
	o.mu.Lock()
	ap := o.sessions[fail.strategyID]
	s := o.byID[fail.strategyID]
	delete(o.sessions, fail.strategyID)
	o.mu.Unlock()
	if ap == nil || s == nil {
		return
	}

	close(ap.stopCh)
	<-ap.doneCh

	// Keep whatever fills happened before the stream died.
	if _, _, _, trades := ap.session.outcome(); len(trades) > 0 {
		if err := o.trades.SaveTrades(ctx, trades); err != nil {
			o.logger.Warn(ctx, "Failed to persist paper trades after stream failure", map[string]interface{}{
				"strategyID": fail.strategyID, "error": err.Error(),
			})
		}
	}

	o.failStrategy(ctx, s, domain.StatusPaperTradingError, fmt.Sprintf("candle stream failed: %v", fail.err))
}

// shutdownSessions stops all candle streams and persists session trades.
// Sessions stay in paper_trading status; recovery re-evaluates them on the
// next start from their persisted deadline.
func (o *Optimizer) shutdownSessions(ctx context.Context) {
	o.mu.Lock()
	sessions := o.sessions
	o.sessions = make(map[string]*activePaper)
	o.mu.Unlock()

	for id, ap := range sessions {
		close(ap.stopCh)
		<-ap.doneCh
		if _, _, _, trades := ap.session.outcome(); len(trades) > 0 {
			if err := o.trades.SaveTrades(ctx, trades); err != nil {
				o.logger.Warn(ctx, "Failed to persist paper trades on shutdown", map[string]interface{}{
					"strategyID": id, "error": err.Error(),
				})
			}
		}
	}
}

// failStrategy records a terminal failure and persists it. Callers must not
// hold o.mu.
func (o *Optimizer) failStrategy(ctx context.Context, s *domain.Strategy, status domain.StrategyStatus, reason string) {
	o.mu.Lock()
	s.Status = status
	switch status {
	case domain.StatusBacktestError, domain.StatusPaperTradingError:
		s.LastError = reason
	default:
		s.FailureReason = reason
	}
	o.mu.Unlock()
	o.persist(ctx, s)

	o.logger.Warn(ctx, "Strategy moved to terminal status", map[string]interface{}{
		"strategyID": s.ID, "status": string(status), "reason": reason,
	})
}

func (o *Optimizer) persist(ctx context.Context, s *domain.Strategy) {
	if err := o.strategies.UpdateStrategy(ctx, s); err != nil {
		o.logger.Error(ctx, err, "Failed to persist strategy update", map[string]interface{}{
			"strategyID": s.ID, "status": string(s.Status),
		})
	}
}
