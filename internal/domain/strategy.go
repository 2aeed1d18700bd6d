package domain

import "time"

// Category classifies the signal logic a strategy uses.
type Category string

const (
	CategoryMomentum       Category = "momentum"
	CategoryMeanReversion  Category = "mean_reversion"
	CategoryBreakout       Category = "breakout"
	CategoryTrendFollowing Category = "trend_following"
	CategoryCustom         Category = "custom"
)

// StrategyStatus represents a strategy's position in the promotion lifecycle.
type StrategyStatus string

const (
	StatusCreated           StrategyStatus = "created"
	StatusBacktested        StrategyStatus = "backtested"
	StatusPaperTrading      StrategyStatus = "paper_trading"
	StatusLive              StrategyStatus = "live"
	StatusRetired           StrategyStatus = "retired"
	StatusFailedBacktest    StrategyStatus = "failed_backtest"
	StatusFailedPaper       StrategyStatus = "failed_paper_trading"
	StatusFailedConfidence  StrategyStatus = "failed_confidence"
	StatusBacktestError     StrategyStatus = "backtest_error"
	StatusPaperTradingError StrategyStatus = "paper_trading_error"
)

// IsValid reports whether s is a known lifecycle status.
func (s StrategyStatus) IsValid() bool {
	switch s {
	case StatusCreated, StatusBacktested, StatusPaperTrading, StatusLive,
		StatusRetired, StatusFailedBacktest, StatusFailedPaper,
		StatusFailedConfidence, StatusBacktestError, StatusPaperTradingError:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are possible from s.
func (s StrategyStatus) IsTerminal() bool {
	switch s {
	case StatusRetired, StatusFailedBacktest, StatusFailedPaper,
		StatusFailedConfidence, StatusBacktestError, StatusPaperTradingError:
		return true
	default:
		return false
	}
}

// PerformanceSnapshot is the last known headline performance of a strategy,
// refreshed after each evaluation stage.
type PerformanceSnapshot struct {
	TotalTrades int
	WinRate     float64
	TotalReturn float64
	MaxDrawdown float64
	SharpeRatio float64
	UpdatedAt   time.Time
}

// Strategy is the unit of work moving through the promotion lifecycle.
// It is owned exclusively by the lifecycle optimizer and mutated only
// through state-transition operations.
type Strategy struct {
	ID            string
	Name          string
	Category      Category
	Symbol        string
	Timeframe     string
	Indicators    []string           // Indicator names the signal logic consults
	Params        map[string]float64 // Numeric signal parameters (periods, thresholds)
	Status        StrategyStatus
	FailureReason string // First violated threshold, for failed_* statuses
	LastError     string // Retained message for *_error statuses
	Performance   PerformanceSnapshot

	CreatedAt      time.Time
	BacktestedAt   time.Time
	PaperStartedAt time.Time // Persisted so the observation deadline survives restarts
	PromotedAt     time.Time
	RetiredAt      time.Time
}

// Param returns the named parameter or the given default when unset.
func (s *Strategy) Param(name string, def float64) float64 {
	if v, ok := s.Params[name]; ok {
		return v
	}
	return def
}
