// Package confidence combines historical performance, consistency, risk
// and live market conditions into a 0-100 confidence score and a
// recommended position size for a strategy.
package confidence

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"quantpilot/internal/domain"
	"quantpilot/internal/ports"
)

// insufficientDataScore is the fixed low-confidence result returned when a
// strategy has too little trade history to score properly.
const insufficientDataScore = 20

// Config holds scorer parameters.
type Config struct {
	MinTrades int           // Minimum exit trades required across all sources (default 30)
	Lookback  time.Duration // Trade history window (default 90 days)
	CacheTTL  time.Duration // Assessment cache lifetime (default 5 minutes)

	PerformanceWeight float64 // default 0.40
	ConsistencyWeight float64 // default 0.20
	RiskWeight        float64 // default 0.10
	MarketWeight      float64 // default 0.30

	BasePositionSize float64 // Starting sizing fraction (default 0.05)
	MinPositionSize  float64 // default 0.01
	MaxPositionSize  float64 // default 0.25

	ConsistencyWindow int // Equity points per rolling window (default 20)
}

func (c *Config) applyDefaults() {
	if c.MinTrades <= 0 {
		c.MinTrades = 30
	}
	if c.Lookback <= 0 {
		c.Lookback = 90 * 24 * time.Hour
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.PerformanceWeight == 0 && c.ConsistencyWeight == 0 && c.RiskWeight == 0 && c.MarketWeight == 0 {
		c.PerformanceWeight = 0.40
		c.ConsistencyWeight = 0.20
		c.RiskWeight = 0.10
		c.MarketWeight = 0.30
	}
	if c.BasePositionSize <= 0 {
		c.BasePositionSize = 0.05
	}
	if c.MinPositionSize <= 0 {
		c.MinPositionSize = 0.01
	}
	if c.MaxPositionSize <= 0 {
		c.MaxPositionSize = 0.25
	}
	if c.ConsistencyWindow <= 0 {
		c.ConsistencyWindow = 20
	}
}

// Scorer computes confidence assessments. Assessments are cached with a
// short TTL and persisted through the assessment repository.
type Scorer struct {
	cfg         Config
	market      ports.MarketDataProvider
	results     ports.BacktestResultRepository
	trades      ports.TradeRepository
	assessments ports.AssessmentRepository
	logger      ports.Logger
	now         func() time.Time

	mu    sync.Mutex
	cache map[string]cachedAssessment
}

type cachedAssessment struct {
	assessment *domain.ConfidenceAssessment
	expires    time.Time
}

// NewScorer creates a confidence scorer.
func NewScorer(cfg Config, market ports.MarketDataProvider, results ports.BacktestResultRepository, trades ports.TradeRepository, assessments ports.AssessmentRepository, logger ports.Logger) (*Scorer, error) {
	if market == nil || results == nil || trades == nil || assessments == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for confidence scorer")
	}
	cfg.applyDefaults()
	return &Scorer{
		cfg:         cfg,
		market:      market,
		results:     results,
		trades:      trades,
		assessments: assessments,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		cache:       make(map[string]cachedAssessment),
	}, nil
}

// Score computes (or returns a cached) confidence assessment for the
// strategy on the given symbol/timeframe.
func (s *Scorer) Score(ctx context.Context, strategyID, symbol, timeframe string) (*domain.ConfidenceAssessment, error) {
	key := strategyID + "|" + symbol + "|" + timeframe
	now := s.now()

	s.mu.Lock()
	if c, ok := s.cache[key]; ok && now.Before(c.expires) {
		s.mu.Unlock()
		return c.assessment, nil
	}
	s.mu.Unlock()

	assessment, err := s.compute(ctx, strategyID, symbol, timeframe, now)
	if err != nil {
		return nil, err
	}

	if err := s.assessments.SaveAssessment(ctx, assessment); err != nil {
		s.logger.Warn(ctx, "Failed to persist confidence assessment", map[string]interface{}{
			"strategyID": strategyID, "error": err.Error(),
		})
	}

	s.mu.Lock()
	s.cache[key] = cachedAssessment{assessment: assessment, expires: now.Add(s.cfg.CacheTTL)}
	s.mu.Unlock()
	return assessment, nil
}

func (s *Scorer) compute(ctx context.Context, strategyID, symbol, timeframe string, now time.Time) (*domain.ConfidenceAssessment, error) {
	trades, err := s.trades.FindTradesSince(ctx, strategyID, now.Add(-s.cfg.Lookback))
	if err != nil {
		return nil, fmt.Errorf("trade history fetch failed: %w", err)
	}

	exits := make([]*domain.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Type == domain.TradeExit {
			exits = append(exits, t)
		}
	}

	assessment := &domain.ConfidenceAssessment{
		ID:         uuid.NewString(),
		StrategyID: strategyID,
		Symbol:     symbol,
		Timeframe:  timeframe,
		CreatedAt:  now,
	}

	if len(exits) < s.cfg.MinTrades {
		assessment.Score = insufficientDataScore
		assessment.RecommendedSize = s.cfg.MinPositionSize
		assessment.Warnings = append(assessment.Warnings, domain.AssessmentWarning{
			Code:     domain.WarnInsufficientData,
			Severity: domain.SeverityCritical,
			Message:  fmt.Sprintf("only %d trades in lookback window, %d required", len(exits), s.cfg.MinTrades),
		})
		return assessment, nil
	}

	latest, err := s.results.FindLatestResult(ctx, strategyID)
	if err != nil {
		return nil, fmt.Errorf("latest result fetch failed: %w", err)
	}

	snapshot, err := takeSnapshot(ctx, s.market, symbol, timeframe)
	if err != nil {
		return nil, err
	}

	assessment.PerformanceScore = performanceScore(exits)
	assessment.ConsistencyScore = s.consistencyScore(latest)
	assessment.RiskScore = riskScore(latest)
	assessment.MarketScore = marketScore(snapshot)

	assessment.Score = clamp(
		assessment.PerformanceScore*s.cfg.PerformanceWeight+
			assessment.ConsistencyScore*s.cfg.ConsistencyWeight+
			assessment.RiskScore*s.cfg.RiskWeight+
			assessment.MarketScore*s.cfg.MarketWeight,
		0, 100)

	assessment.Warnings = s.buildWarnings(assessment.Score, snapshot)
	assessment.RecommendedSize = s.recommendSize(assessment.Score, snapshot)
	return assessment, nil
}

// performanceScore blends win rate, profit factor and normalized total PnL.
func performanceScore(exits []*domain.Trade) float64 {
	var winners int
	var totalPnL, grossProfit, grossLoss float64
	for _, t := range exits {
		totalPnL += t.PnL
		if t.PnL > 0 {
			winners++
			grossProfit += t.PnL
		} else {
			grossLoss += -t.PnL
		}
	}

	winRate := float64(winners) / float64(len(exits))

	pfScore := 0.0
	if grossLoss == 0 {
		if grossProfit > 0 {
			pfScore = 100
		}
	} else {
		// Profit factor 2.0 or better scores full marks.
		pfScore = clamp(grossProfit/grossLoss/2.0*100, 0, 100)
	}

	// Normalize total PnL against gross activity so symbol price scale
	// does not distort the score.
	pnlScore := 50.0
	if gross := grossProfit + grossLoss; gross > 0 {
		pnlScore = clamp(50+totalPnL/gross*50, 0, 100)
	}

	return clamp(winRate*100*0.4+pfScore*0.3+pnlScore*0.3, 0, 100)
}

// consistencyScore rewards stable rolling-window returns: low coefficient
// of variation and a high fraction of profitable windows.
func (s *Scorer) consistencyScore(latest *domain.BacktestResult) float64 {
	if latest == nil || len(latest.EquityCurve) < s.cfg.ConsistencyWindow*2 {
		return 50 // Neutral when there is no curve to judge
	}

	window := s.cfg.ConsistencyWindow
	curve := latest.EquityCurve
	windowReturns := make([]float64, 0, len(curve)/window)
	for i := window; i < len(curve); i += window {
		start := curve[i-window].TotalValue
		if start == 0 {
			continue
		}
		windowReturns = append(windowReturns, (curve[i].TotalValue-start)/start)
	}
	if len(windowReturns) == 0 {
		return 50
	}

	profitable := 0
	for _, r := range windowReturns {
		if r > 0 {
			profitable++
		}
	}
	profitableFrac := float64(profitable) / float64(len(windowReturns))

	mu := mean(windowReturns)
	sd := stdDev(windowReturns)
	covScore := 50.0
	if mu != 0 {
		cov := math.Abs(sd / mu)
		// CoV of 0 is perfectly stable; 3+ is noise.
		covScore = clamp((3-cov)/3*100, 0, 100)
	}

	return clamp(profitableFrac*100*0.6+covScore*0.4, 0, 100)
}

// riskScore penalizes drawdown and return volatility and rewards a
// positive Sharpe ratio.
func riskScore(latest *domain.BacktestResult) float64 {
	if latest == nil {
		return 50
	}
	m := latest.Metrics

	score := 100.0
	score -= clamp(m.MaxDrawdown/0.30*60, 0, 60) // 30% drawdown forfeits the full penalty
	if m.SharpeRatio > 0 {
		score += clamp(m.SharpeRatio*10, 0, 20)
	} else {
		score -= 20
	}
	return clamp(score, 0, 100)
}

// marketScore favors low/medium volatility, a strong trend, high liquidity
// and a trending phase; heavy funding costs pull it down.
func marketScore(snap marketSnapshot) float64 {
	score := 50.0

	switch {
	case snap.lowVolatility():
		score += 15
	case snap.highVolatility():
		score -= 20
	default:
		score += 10 // Medium volatility is still workable
	}

	score += clamp(snap.TrendStrength/0.03*20, 0, 20)

	if snap.Liquidity >= 1 {
		score += 10
	} else if snap.lowLiquidity() {
		score -= 15
	}

	if snap.Phase == PhaseTrending {
		score += 10
	}

	score -= clamp(math.Abs(snap.FundingRate)/0.01*15, 0, 15)

	return clamp(score, 0, 100)
}

func (s *Scorer) buildWarnings(score float64, snap marketSnapshot) []domain.AssessmentWarning {
	var warnings []domain.AssessmentWarning
	if score < 40 {
		warnings = append(warnings, domain.AssessmentWarning{
			Code:     domain.WarnLowConfidence,
			Severity: domain.SeverityCaution,
			Message:  fmt.Sprintf("composite confidence %.1f is below 40", score),
		})
	}
	if snap.highVolatility() {
		warnings = append(warnings, domain.AssessmentWarning{
			Code:     domain.WarnHighVolatility,
			Severity: domain.SeverityCaution,
			Message:  fmt.Sprintf("per-bar volatility %.4f exceeds %.4f", snap.Volatility, highVolThreshold),
		})
	}
	if snap.lowLiquidity() {
		warnings = append(warnings, domain.AssessmentWarning{
			Code:     domain.WarnLowLiquidity,
			Severity: domain.SeverityCaution,
			Message:  fmt.Sprintf("recent volume at %.0f%% of window average", snap.Liquidity*100),
		})
	}
	if math.Abs(snap.FundingRate) > 0.01 {
		warnings = append(warnings, domain.AssessmentWarning{
			Code:     domain.WarnHighFundingRate,
			Severity: domain.SeverityInfo,
			Message:  fmt.Sprintf("funding rate magnitude %.4f", snap.FundingRate),
		})
	}
	return warnings
}

// recommendSize starts from the base fraction, scales with confidence and
// market conditions, and clamps to the configured bounds.
func (s *Scorer) recommendSize(score float64, snap marketSnapshot) float64 {
	size := s.cfg.BasePositionSize

	switch {
	case score >= 80:
		size *= 1.25
	case score < 40:
		size *= 0.5
	}
	if snap.highVolatility() {
		size *= 0.7
	}
	if snap.lowLiquidity() {
		size *= 0.8
	}
	if snap.highVolatility() && math.Abs(snap.FundingRate) > 0.01 {
		// Both risk signals firing at once is the highest-risk regime.
		size *= 0.7
	}

	return clamp(size, s.cfg.MinPositionSize, s.cfg.MaxPositionSize)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
