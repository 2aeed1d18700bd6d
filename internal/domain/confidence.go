package domain

import "time"

// WarningSeverity tags how serious an assessment warning is.
type WarningSeverity string

const (
	SeverityInfo     WarningSeverity = "info"
	SeverityCaution  WarningSeverity = "caution"
	SeverityCritical WarningSeverity = "critical"
)

// AssessmentWarning is a structured warning attached to a confidence
// assessment. Warnings are reported, never silently dropped.
type AssessmentWarning struct {
	Code     string
	Severity WarningSeverity
	Message  string
}

const (
	WarnInsufficientData = "insufficient_data"
	WarnLowConfidence    = "low_confidence"
	WarnHighVolatility   = "high_volatility"
	WarnLowLiquidity     = "low_liquidity"
	WarnHighFundingRate  = "high_funding_rate"
)

// ConfidenceAssessment is the composite 0-100 confidence in a strategy for
// a symbol/timeframe, with its weighted sub-scores and sizing advice.
type ConfidenceAssessment struct {
	ID         string
	StrategyID string
	Symbol     string
	Timeframe  string

	Score            float64 // 0-100 composite
	PerformanceScore float64
	ConsistencyScore float64
	RiskScore        float64
	MarketScore      float64

	RecommendedSize float64 // Position size as a fraction of equity
	Warnings        []AssessmentWarning
	CreatedAt       time.Time
}
