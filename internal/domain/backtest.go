package domain

import "time"

// ExitPriority selects which exit rule wins when stop-loss and take-profit
// are both satisfied by the same candle. Stop-loss-first is the conservative
// default; it is a policy choice, not a market fact, so it stays tunable.
type ExitPriority string

const (
	ExitStopLossFirst   ExitPriority = "stop_loss_first"
	ExitTakeProfitFirst ExitPriority = "take_profit_first"
)

// BacktestConfig holds the replay parameters for one backtest run.
type BacktestConfig struct {
	Symbol          string
	Timeframe       string
	StartTime       time.Time
	EndTime         time.Time
	InitialCapital  float64
	RiskPerTrade    float64      // Fraction of equity risked per trade (e.g., 0.02)
	MinPositionSize float64      // Floor on position notional as a fraction of equity
	MaxPositionSize float64      // Ceiling on position notional as a fraction of equity
	StopLossPct     float64      // Stop distance from entry (e.g., 0.02)
	TakeProfitPct   float64      // Profit target distance from entry
	ExitPriority    ExitPriority // Same-candle SL/TP tie-break, default stop_loss_first
}

// EquityPoint is one sample of the portfolio state, recorded every candle.
type EquityPoint struct {
	Timestamp     time.Time
	TotalValue    float64
	Cash          float64
	UnrealizedPnL float64
}

// BacktestMetrics are the derived statistics of a completed backtest.
type BacktestMetrics struct {
	TotalTrades     int // Closed positions
	WinningTrades   int
	LosingTrades    int
	WinRate         float64
	TotalReturn     float64
	MaxDrawdown     float64
	SharpeRatio     float64
	SortinoRatio    float64
	CalmarRatio     float64
	CalmarUndefined bool // True when max drawdown is zero; CalmarRatio is then 0, not Inf
	ProfitFactor    float64
	Expectancy      float64
	AverageWin      float64
	AverageLoss     float64
	MaxConsecWins   int
	MaxConsecLosses int
	AvgTradeTime    time.Duration
	FinalValue      float64
}

// BacktestResult is the full output of one backtest run.
type BacktestResult struct {
	ID          string
	StrategyID  string
	Config      BacktestConfig
	Trades      []*Trade
	EquityCurve []EquityPoint
	Metrics     BacktestMetrics
	Stopped     bool // True when the run was cancelled; partial but inspectable
	CompletedAt time.Time
}
