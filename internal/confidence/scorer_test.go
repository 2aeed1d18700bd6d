package confidence

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantpilot/internal/domain"
	"quantpilot/internal/ports"
)

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type fakeMarket struct {
	candles []*domain.Candle
	funding float64
}

func (f *fakeMarket) GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]*domain.Candle, error) {
	return f.candles, nil
}

func (f *fakeMarket) GetRecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]*domain.Candle, error) {
	if limit > len(f.candles) {
		limit = len(f.candles)
	}
	return f.candles[len(f.candles)-limit:], nil
}

func (f *fakeMarket) StreamCandles(ctx context.Context, symbol, timeframe string, handler func(candle *domain.Candle), errHandler func(err error)) (chan struct{}, chan struct{}, error) {
	doneCh := make(chan struct{})
	stopCh := make(chan struct{})
	go func() {
		<-stopCh
		close(doneCh)
	}()
	return doneCh, stopCh, nil
}

func (f *fakeMarket) GetFundingRate(ctx context.Context, symbol string) (float64, error) {
	return f.funding, nil
}

type fakeResultRepo struct {
	latest *domain.BacktestResult
}

func (f *fakeResultRepo) SaveBacktestResult(ctx context.Context, res *domain.BacktestResult) error {
	f.latest = res
	return nil
}

func (f *fakeResultRepo) FindLatestResult(ctx context.Context, strategyID string) (*domain.BacktestResult, error) {
	return f.latest, nil
}

type fakeTradeRepo struct {
	trades []*domain.Trade
}

func (f *fakeTradeRepo) SaveTrades(ctx context.Context, trades []*domain.Trade) error {
	f.trades = append(f.trades, trades...)
	return nil
}

func (f *fakeTradeRepo) FindTradesSince(ctx context.Context, strategyID string, since time.Time) ([]*domain.Trade, error) {
	out := make([]*domain.Trade, 0, len(f.trades))
	for _, t := range f.trades {
		if t.StrategyID == strategyID && !t.Timestamp.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeAssessmentRepo struct {
	saved []*domain.ConfidenceAssessment
}

func (f *fakeAssessmentRepo) SaveAssessment(ctx context.Context, a *domain.ConfidenceAssessment) error {
	f.saved = append(f.saved, a)
	return nil
}

func (f *fakeAssessmentRepo) FindLatestAssessment(ctx context.Context, strategyID string) (*domain.ConfidenceAssessment, error) {
	if len(f.saved) == 0 {
		return nil, nil
	}
	return f.saved[len(f.saved)-1], nil
}

func calmCandles(n int) []*domain.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]*domain.Candle, n)
	price := 100.0
	for i := range candles {
		// Tiny alternating moves keep volatility in the low regime.
		if i%2 == 0 {
			price *= 1.001
		} else {
			price *= 0.9995
		}
		candles[i] = &domain.Candle{
			OpenTime:  base.Add(time.Duration(i) * time.Hour),
			CloseTime: base.Add(time.Duration(i+1) * time.Hour),
			Close:     price,
			Volume:    1000,
			IsFinal:   true,
		}
	}
	return candles
}

func exitTrades(strategyID string, n int, pnlFor func(i int) float64, at time.Time) []*domain.Trade {
	trades := make([]*domain.Trade, 0, n)
	for i := 0; i < n; i++ {
		trades = append(trades, &domain.Trade{
			ID:         fmt.Sprintf("%s-exit-%04d", strategyID, i),
			StrategyID: strategyID,
			Type:       domain.TradeExit,
			PnL:        pnlFor(i),
			Source:     domain.SourceBacktest,
			Timestamp:  at.Add(time.Duration(i) * time.Hour),
		})
	}
	return trades
}

func newTestScorer(t *testing.T, cfg Config, market ports.MarketDataProvider, results ports.BacktestResultRepository, trades ports.TradeRepository, assessments ports.AssessmentRepository) *Scorer {
	t.Helper()
	s, err := NewScorer(cfg, market, results, trades, assessments, noopLogger{})
	require.NoError(t, err)
	return s
}

func TestScoreInsufficientData(t *testing.T) {
	market := &fakeMarket{candles: calmCandles(120)}
	tradeRepo := &fakeTradeRepo{}
	assessRepo := &fakeAssessmentRepo{}
	scorer := newTestScorer(t, Config{MinTrades: 30}, market, &fakeResultRepo{}, tradeRepo, assessRepo)

	// Only 5 trades in the lookback window: the scorer must return the
	// fixed low-confidence result with a critical warning.
	now := time.Now().UTC()
	trades := exitTrades("s1", 5, func(i int) float64 { return 10 }, now.Add(-24*time.Hour))
	require.NoError(t, tradeRepo.SaveTrades(context.Background(), trades))

	assessment, err := scorer.Score(context.Background(), "s1", "ETHUSDT", "1h")
	require.NoError(t, err)

	assert.Equal(t, float64(insufficientDataScore), assessment.Score)
	require.Len(t, assessment.Warnings, 1)
	assert.Equal(t, domain.WarnInsufficientData, assessment.Warnings[0].Code)
	assert.Equal(t, domain.SeverityCritical, assessment.Warnings[0].Severity)
	assert.Greater(t, assessment.RecommendedSize, 0.0)

	// The low-confidence result is still persisted.
	require.Len(t, assessRepo.saved, 1)
}

func TestScoreHealthyStrategy(t *testing.T) {
	market := &fakeMarket{candles: calmCandles(120)}
	tradeRepo := &fakeTradeRepo{}
	assessRepo := &fakeAssessmentRepo{}
	results := &fakeResultRepo{latest: &domain.BacktestResult{
		Metrics: domain.BacktestMetrics{MaxDrawdown: 0.05, SharpeRatio: 1.8},
	}}
	scorer := newTestScorer(t, Config{}, market, results, tradeRepo, assessRepo)

	// 40 trades, 70% winners with larger wins than losses.
	now := time.Now().UTC()
	trades := exitTrades("s1", 40, func(i int) float64 {
		if i%10 < 7 {
			return 50
		}
		return -20
	}, now.Add(-48*time.Hour))
	require.NoError(t, tradeRepo.SaveTrades(context.Background(), trades))

	assessment, err := scorer.Score(context.Background(), "s1", "ETHUSDT", "1h")
	require.NoError(t, err)

	assert.Greater(t, assessment.Score, 50.0)
	assert.LessOrEqual(t, assessment.Score, 100.0)
	assert.Greater(t, assessment.PerformanceScore, 60.0)
	assert.Greater(t, assessment.RecommendedSize, 0.0)
	assert.LessOrEqual(t, assessment.RecommendedSize, 0.25)
}

func TestScoreCacheHit(t *testing.T) {
	market := &fakeMarket{candles: calmCandles(120)}
	tradeRepo := &fakeTradeRepo{}
	assessRepo := &fakeAssessmentRepo{}
	scorer := newTestScorer(t, Config{}, market, &fakeResultRepo{}, tradeRepo, assessRepo)

	first, err := scorer.Score(context.Background(), "s1", "ETHUSDT", "1h")
	require.NoError(t, err)
	second, err := scorer.Score(context.Background(), "s1", "ETHUSDT", "1h")
	require.NoError(t, err)

	// Same pointer back: the second call hit the TTL cache and nothing new
	// was persisted.
	assert.Same(t, first, second)
	assert.Len(t, assessRepo.saved, 1)
}

func TestScoreWeightsSumToComposite(t *testing.T) {
	market := &fakeMarket{candles: calmCandles(120)}
	tradeRepo := &fakeTradeRepo{}
	scorer := newTestScorer(t, Config{}, market, &fakeResultRepo{}, tradeRepo, &fakeAssessmentRepo{})

	now := time.Now().UTC()
	trades := exitTrades("s1", 35, func(i int) float64 {
		if i%2 == 0 {
			return 30
		}
		return -25
	}, now.Add(-48*time.Hour))
	require.NoError(t, tradeRepo.SaveTrades(context.Background(), trades))

	a, err := scorer.Score(context.Background(), "s1", "ETHUSDT", "1h")
	require.NoError(t, err)

	want := a.PerformanceScore*0.40 + a.ConsistencyScore*0.20 + a.RiskScore*0.10 + a.MarketScore*0.30
	assert.InDelta(t, want, a.Score, 1e-9)
}

func TestRecommendSizeBounds(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()
	s := &Scorer{cfg: cfg}

	volatile := marketSnapshot{Volatility: 0.05, Liquidity: 0.3, FundingRate: 0.02}
	size := s.recommendSize(20, volatile)
	assert.GreaterOrEqual(t, size, cfg.MinPositionSize)

	calm := marketSnapshot{Volatility: 0.001, Liquidity: 1.2}
	size = s.recommendSize(95, calm)
	assert.LessOrEqual(t, size, cfg.MaxPositionSize)
	assert.InDelta(t, cfg.BasePositionSize*1.25, size, 1e-9)
}

func TestMarketSnapshotPhases(t *testing.T) {
	// Strong steady climb: trend strength over 1% puts the phase at trending.
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]*domain.Candle, 100)
	for i := range candles {
		candles[i] = &domain.Candle{
			OpenTime:  base.Add(time.Duration(i) * time.Hour),
			CloseTime: base.Add(time.Duration(i+1) * time.Hour),
			Close:     100 * math.Pow(1.002, float64(i)),
			Volume:    1000,
		}
	}
	snap := buildSnapshot(candles, 0)
	assert.Equal(t, PhaseTrending, snap.Phase)
	assert.Greater(t, snap.TrendStrength, 0.01)
}
