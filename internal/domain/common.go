package domain

// Side represents the direction of a position or fill.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// TradeType distinguishes entry fills from exit fills.
type TradeType string

const (
	TradeEntry TradeType = "entry"
	TradeExit  TradeType = "exit"
)

// OrderType selects the fee schedule applied to a simulated fill.
type OrderType string

const (
	OrderMarket OrderType = "market" // taker
	OrderLimit  OrderType = "limit"  // maker
)

// TradeReason indicates why a fill happened.
type TradeReason string

const (
	ReasonStopLoss    TradeReason = "stop_loss"
	ReasonTakeProfit  TradeReason = "take_profit"
	ReasonBacktestEnd TradeReason = "backtest_end"
	ReasonSignal      TradeReason = "signal"
)
