package confidence

import (
	"context"
	"fmt"
	"math"

	"quantpilot/internal/domain"
	"quantpilot/internal/indicators"
	"quantpilot/internal/ports"
)

// MarketPhase is a coarse classification of the current market regime.
type MarketPhase string

const (
	PhaseTrending MarketPhase = "trending"
	PhaseRanging  MarketPhase = "ranging"
	PhaseVolatile MarketPhase = "volatile"
)

// Volatility regime cutoffs on per-bar return standard deviation.
const (
	lowVolThreshold  = 0.005
	highVolThreshold = 0.02
)

// marketSnapshot captures the live market-condition signals feeding the
// market sub-score.
type marketSnapshot struct {
	Volatility    float64 // Std dev of per-bar returns
	TrendStrength float64 // Short/long MA divergence as a fraction of the long MA
	Liquidity     float64 // Recent volume relative to the window average
	FundingRate   float64
	Phase         MarketPhase
}

func (m marketSnapshot) highVolatility() bool { return m.Volatility > highVolThreshold }
func (m marketSnapshot) lowVolatility() bool  { return m.Volatility < lowVolThreshold }
func (m marketSnapshot) lowLiquidity() bool   { return m.Liquidity < 0.5 }

// snapshotWindow is how many recent bars the snapshot inspects.
const snapshotWindow = 100

func takeSnapshot(ctx context.Context, provider ports.MarketDataProvider, symbol, timeframe string) (marketSnapshot, error) {
	candles, err := provider.GetRecentCandles(ctx, symbol, timeframe, snapshotWindow)
	if err != nil {
		return marketSnapshot{}, fmt.Errorf("snapshot candle fetch failed: %w", err)
	}
	if len(candles) < 60 {
		return marketSnapshot{}, fmt.Errorf("snapshot needs at least 60 candles, got %d: %w", len(candles), ports.ErrInsufficientData)
	}

	funding, err := provider.GetFundingRate(ctx, symbol)
	if err != nil {
		// Funding is a secondary signal; a fetch failure downgrades it to
		// zero rather than failing the whole assessment.
		funding = 0
	}

	return buildSnapshot(candles, funding), nil
}

func buildSnapshot(candles []*domain.Candle, funding float64) marketSnapshot {
	prices := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
		volumes[i] = c.Volume
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
		}
	}
	volatility := stdDev(returns)

	shortMA, errShort := indicators.SMA(prices, 20)
	longMA, errLong := indicators.SMA(prices, 50)
	trend := 0.0
	if errShort == nil && errLong == nil && longMA != 0 {
		trend = math.Abs(shortMA-longMA) / longMA
	}

	avgVolume := mean(volumes)
	recentVolume := mean(volumes[len(volumes)-10:])
	liquidity := 1.0
	if avgVolume > 0 {
		liquidity = recentVolume / avgVolume
	}

	phase := PhaseRanging
	switch {
	case volatility > highVolThreshold:
		phase = PhaseVolatile
	case trend > 0.01:
		phase = PhaseTrending
	}

	return marketSnapshot{
		Volatility:    volatility,
		TrendStrength: trend,
		Liquidity:     liquidity,
		FundingRate:   funding,
		Phase:         phase,
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mu := mean(values)
	variance := 0.0
	for _, v := range values {
		variance += (v - mu) * (v - mu)
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}
