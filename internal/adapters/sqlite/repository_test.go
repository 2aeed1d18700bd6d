package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quantpilot/internal/domain"
	"quantpilot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "quantpilot-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, cleanup
}

func testStrategy(id string, createdAt time.Time) *domain.Strategy {
	return &domain.Strategy{
		ID:         id,
		Name:       "trend-" + id,
		Category:   domain.CategoryTrendFollowing,
		Symbol:     "ETHUSDT",
		Timeframe:  "1h",
		Indicators: []string{"sma", "ema"},
		Params:     map[string]float64{"short_period": 9, "long_period": 21},
		Status:     domain.StatusCreated,
		CreatedAt:  createdAt,
	}
}

func TestRepository_StrategyRoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	createdAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := testStrategy("s1", createdAt)
	require.NoError(t, repo.CreateStrategy(ctx, s))

	got, err := repo.FindStrategyByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.Name, got.Name)
	assert.Equal(t, s.Category, got.Category)
	assert.Equal(t, s.Symbol, got.Symbol)
	assert.Equal(t, s.Timeframe, got.Timeframe)
	assert.Equal(t, s.Indicators, got.Indicators)
	assert.Equal(t, s.Params, got.Params)
	assert.Equal(t, domain.StatusCreated, got.Status)
	assert.WithinDuration(t, createdAt, got.CreatedAt, time.Second)

	// Unset lifecycle timestamps survive the round trip as zero values.
	assert.True(t, got.BacktestedAt.IsZero())
	assert.True(t, got.PaperStartedAt.IsZero())
	assert.True(t, got.PromotedAt.IsZero())
	assert.True(t, got.RetiredAt.IsZero())
}

func TestRepository_FindStrategyByIDNotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	got, err := repo.FindStrategyByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_UpdateStrategy(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	s := testStrategy("s1", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, repo.CreateStrategy(ctx, s))

	s.Status = domain.StatusFailedBacktest
	s.FailureReason = "total return 0.010 below minimum 0.050"
	s.BacktestedAt = time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	s.Performance = domain.PerformanceSnapshot{TotalTrades: 12, WinRate: 0.25}
	require.NoError(t, repo.UpdateStrategy(ctx, s))

	got, err := repo.FindStrategyByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusFailedBacktest, got.Status)
	assert.Equal(t, s.FailureReason, got.FailureReason)
	assert.WithinDuration(t, s.BacktestedAt, got.BacktestedAt, time.Second)
	assert.Equal(t, 12, got.Performance.TotalTrades)
	assert.InDelta(t, 0.25, got.Performance.WinRate, 1e-9)
}

func TestRepository_UpdateStrategyNotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	s := testStrategy("ghost", time.Now().UTC())
	err := repo.UpdateStrategy(context.Background(), s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRepository_FindStrategiesByStatusOrder(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	// Insert out of creation order to prove the query sorts.
	for _, spec := range []struct {
		id     string
		offset time.Duration
		status domain.StrategyStatus
	}{
		{"s3", 2 * time.Hour, domain.StatusCreated},
		{"s1", 0, domain.StatusCreated},
		{"s2", time.Hour, domain.StatusCreated},
		{"other", 30 * time.Minute, domain.StatusLive},
	} {
		s := testStrategy(spec.id, base.Add(spec.offset))
		s.Status = spec.status
		require.NoError(t, repo.CreateStrategy(ctx, s))
	}

	got, err := repo.FindStrategiesByStatus(ctx, domain.StatusCreated)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "s1", got[0].ID)
	assert.Equal(t, "s2", got[1].ID)
	assert.Equal(t, "s3", got[2].ID)

	all, err := repo.FindAllStrategies(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func testTrade(id, positionID, strategyID string, tradeType domain.TradeType, pnl float64, ts time.Time) *domain.Trade {
	return &domain.Trade{
		ID:         id,
		PositionID: positionID,
		StrategyID: strategyID,
		Symbol:     "ETHUSDT",
		Side:       domain.Long,
		Type:       tradeType,
		Size:       0.5,
		Price:      2000,
		Fee:        0.4,
		PnL:        pnl,
		Reason:     domain.ReasonTakeProfit,
		Source:     domain.SourceBacktest,
		Timestamp:  ts,
	}
}

func TestRepository_BacktestResultRoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	res := &domain.BacktestResult{
		StrategyID: "s1",
		Config: domain.BacktestConfig{
			Symbol:         "ETHUSDT",
			Timeframe:      "1h",
			InitialCapital: 10000,
			RiskPerTrade:   0.02,
			StopLossPct:    0.02,
			TakeProfitPct:  0.04,
			ExitPriority:   domain.ExitStopLossFirst,
		},
		Trades: []*domain.Trade{
			testTrade("t1", "p1", "s1", domain.TradeEntry, 0, base),
			testTrade("t2", "p1", "s1", domain.TradeExit, 80, base.Add(2*time.Hour)),
		},
		EquityCurve: []domain.EquityPoint{
			{Timestamp: base, TotalValue: 10000, Cash: 9000, UnrealizedPnL: 0},
			{Timestamp: base.Add(time.Hour), TotalValue: 10040, Cash: 9000, UnrealizedPnL: 40},
			{Timestamp: base.Add(2 * time.Hour), TotalValue: 10080, Cash: 10080, UnrealizedPnL: 0},
		},
		Metrics: domain.BacktestMetrics{
			TotalTrades: 1, WinningTrades: 1, WinRate: 1,
			TotalReturn: 0.008, FinalValue: 10080,
		},
		CompletedAt: base.Add(3 * time.Hour),
	}

	require.NoError(t, repo.SaveBacktestResult(ctx, res))
	assert.NotEmpty(t, res.ID, "an ID should be assigned on save")

	got, err := repo.FindLatestResult(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, res.ID, got.ID)
	assert.Equal(t, res.Config, got.Config)
	assert.Equal(t, res.Metrics, got.Metrics)
	require.Len(t, got.Trades, 2)
	assert.Equal(t, "t1", got.Trades[0].ID)
	assert.Equal(t, "t2", got.Trades[1].ID)
	assert.InDelta(t, 80, got.Trades[1].PnL, 1e-9)
	require.Len(t, got.EquityCurve, 3)
	assert.InDelta(t, 10080, got.EquityCurve[2].TotalValue, 1e-9)
}

func TestRepository_FindLatestResultPicksNewest(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	older := &domain.BacktestResult{StrategyID: "s1", CompletedAt: base}
	newer := &domain.BacktestResult{StrategyID: "s1", CompletedAt: base.Add(24 * time.Hour)}
	require.NoError(t, repo.SaveBacktestResult(ctx, older))
	require.NoError(t, repo.SaveBacktestResult(ctx, newer))

	got, err := repo.FindLatestResult(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer.ID, got.ID)
}

func TestRepository_FindLatestResultNotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	got, err := repo.FindLatestResult(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_SaveTradesIdempotent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	batch := []*domain.Trade{
		testTrade("t1", "p1", "s1", domain.TradeEntry, 0, base),
		testTrade("t2", "p1", "s1", domain.TradeExit, 50, base.Add(time.Hour)),
	}

	// Replaying the same batch after a crash must not duplicate rows.
	require.NoError(t, repo.SaveTrades(ctx, batch))
	require.NoError(t, repo.SaveTrades(ctx, batch))

	got, err := repo.FindTradesSince(ctx, "s1", base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].ID)
	assert.Equal(t, domain.TradeEntry, got[0].Type)
	assert.Equal(t, "t2", got[1].ID)
	assert.Equal(t, domain.TradeExit, got[1].Type)
	assert.Equal(t, domain.Long, got[1].Side)
	assert.Equal(t, domain.ReasonTakeProfit, got[1].Reason)
	assert.Equal(t, domain.SourceBacktest, got[1].Source)
	assert.InDelta(t, 50, got[1].PnL, 1e-9)
}

func TestRepository_FindTradesSinceFilters(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveTrades(ctx, []*domain.Trade{
		testTrade("old", "p1", "s1", domain.TradeExit, 10, base),
		testTrade("recent", "p2", "s1", domain.TradeExit, 20, base.Add(48*time.Hour)),
		testTrade("foreign", "p3", "s2", domain.TradeExit, 30, base.Add(48*time.Hour)),
	}))

	got, err := repo.FindTradesSince(ctx, "s1", base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "recent", got[0].ID)

	empty, err := repo.FindTradesSince(ctx, "s1", base.Add(100*24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepository_AssessmentRoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	first := &domain.ConfidenceAssessment{
		ID: "a1", StrategyID: "s1", Symbol: "ETHUSDT", Timeframe: "1h",
		Score: 55, PerformanceScore: 60, ConsistencyScore: 50, RiskScore: 70, MarketScore: 45,
		RecommendedSize: 0.05,
		Warnings: []domain.AssessmentWarning{
			{Code: domain.WarnHighVolatility, Severity: domain.SeverityCaution, Message: "per-bar volatility elevated"},
		},
		CreatedAt: base,
	}
	second := &domain.ConfidenceAssessment{
		ID: "a2", StrategyID: "s1", Symbol: "ETHUSDT", Timeframe: "1h",
		Score: 82, PerformanceScore: 85, ConsistencyScore: 75, RiskScore: 80, MarketScore: 88,
		RecommendedSize: 0.0625,
		CreatedAt:       base.Add(time.Hour),
	}
	require.NoError(t, repo.SaveAssessment(ctx, first))
	require.NoError(t, repo.SaveAssessment(ctx, second))

	got, err := repo.FindLatestAssessment(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a2", got.ID)
	assert.InDelta(t, 82, got.Score, 1e-9)
	assert.InDelta(t, 0.0625, got.RecommendedSize, 1e-9)
	assert.Empty(t, got.Warnings)

	none, err := repo.FindLatestAssessment(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, none)
}
