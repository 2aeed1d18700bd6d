package ports

import (
	"context"
	"time"

	"quantpilot/internal/domain"
)

// StrategyRepository defines the interface for storing and retrieving
// strategies. It is the durable backing of the lifecycle optimizer's
// registry: reload on restart reconstructs in-flight lifecycle state.
type StrategyRepository interface {
	// CreateStrategy saves a new strategy.
	CreateStrategy(ctx context.Context, s *domain.Strategy) error
	// UpdateStrategy modifies an existing strategy.
	UpdateStrategy(ctx context.Context, s *domain.Strategy) error
	// FindStrategyByID retrieves a strategy by ID. Returns nil, nil if not found.
	FindStrategyByID(ctx context.Context, id string) (*domain.Strategy, error)
	// FindStrategiesByStatus retrieves all strategies in the given status,
	// ordered by creation time ascending (FIFO recovery order).
	FindStrategiesByStatus(ctx context.Context, status domain.StrategyStatus) ([]*domain.Strategy, error)
	// FindAllStrategies retrieves every strategy.
	FindAllStrategies(ctx context.Context) ([]*domain.Strategy, error)
}

// BacktestResultRepository stores completed backtest runs, including the
// full trade list and equity curve.
type BacktestResultRepository interface {
	// SaveBacktestResult persists a result with its trades and equity curve.
	SaveBacktestResult(ctx context.Context, res *domain.BacktestResult) error
	// FindLatestResult retrieves the most recent result for a strategy.
	// Returns nil, nil if none exists.
	FindLatestResult(ctx context.Context, strategyID string) (*domain.BacktestResult, error)
}

// TradeRepository stores individual fills from every lifecycle stage
// (backtest, paper, live) so confidence scoring can count them together.
type TradeRepository interface {
	// SaveTrades persists a batch of trades.
	SaveTrades(ctx context.Context, trades []*domain.Trade) error
	// FindTradesSince retrieves all trades for a strategy with a timestamp
	// at or after since, ascending.
	FindTradesSince(ctx context.Context, strategyID string, since time.Time) ([]*domain.Trade, error)
}

// AssessmentRepository stores confidence assessments.
type AssessmentRepository interface {
	// SaveAssessment persists an assessment.
	SaveAssessment(ctx context.Context, a *domain.ConfidenceAssessment) error
	// FindLatestAssessment retrieves the most recent assessment for a
	// strategy. Returns nil, nil if none exists.
	FindLatestAssessment(ctx context.Context, strategyID string) (*domain.ConfidenceAssessment, error)
}
