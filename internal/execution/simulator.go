// Package execution simulates order fills with realistic costs: fixed base
// slippage plus size-dependent market impact, and maker/taker fees. Fills
// are pure functions of their inputs and the simulator configuration; the
// backtest path carries no randomness.
package execution

import (
	"fmt"
	"math"

	"quantpilot/internal/domain"
)

// Size below this is clamped before the impact logarithm so ln(0) can never occur.
const minSizeEpsilon = 1e-9

// Config holds the cost model parameters.
type Config struct {
	BaseSlippage    float64 // Flat slippage fraction applied to every fill (e.g., 0.0005)
	MarketImpact    float64 // Coefficient on ln(size/1000) for size-dependent impact
	TakerFeeRate    float64 // Fee fraction for market orders
	MakerFeeRate    float64 // Fee fraction for limit orders
	ImpactReference float64 // Size at which impact is zero; defaults to 1000
}

// Fill is the outcome of a simulated order.
type Fill struct {
	Price            float64 // Execution price after slippage
	SlippageFraction float64 // Total slippage applied, as a fraction of the reference price
	Fee              float64 // size * price * feeRate
}

// Simulator converts desired orders into realistic fills.
type Simulator struct {
	cfg Config
}

// NewSimulator creates a fill simulator.
func NewSimulator(cfg Config) (*Simulator, error) {
	if cfg.BaseSlippage < 0 || cfg.MarketImpact < 0 {
		return nil, fmt.Errorf("slippage parameters cannot be negative")
	}
	if cfg.TakerFeeRate < 0 || cfg.MakerFeeRate < 0 {
		return nil, fmt.Errorf("fee rates cannot be negative")
	}
	if cfg.ImpactReference <= 0 {
		cfg.ImpactReference = 1000
	}
	return &Simulator{cfg: cfg}, nil
}

// Fill simulates execution of an order at the given reference price.
// isBuy is true for orders that add long exposure (long entries, short
// exits); slippage always worsens the price from the trader's view.
func (s *Simulator) Fill(referencePrice float64, isBuy bool, size float64, orderType domain.OrderType) (Fill, error) {
	if referencePrice <= 0 {
		return Fill{}, fmt.Errorf("reference price must be positive, got %f", referencePrice)
	}
	if size < 0 {
		return Fill{}, fmt.Errorf("size cannot be negative, got %f", size)
	}

	clamped := math.Max(size, minSizeEpsilon)
	slippage := s.cfg.BaseSlippage + s.cfg.MarketImpact*math.Log(clamped/s.cfg.ImpactReference)
	if slippage < 0 {
		// Small orders would otherwise get negative impact, i.e. a price
		// improvement; the model only ever charges the trader.
		slippage = 0
	}

	price := referencePrice
	if isBuy {
		price *= 1 + slippage
	} else {
		price *= 1 - slippage
	}

	feeRate := s.cfg.TakerFeeRate
	if orderType == domain.OrderLimit {
		feeRate = s.cfg.MakerFeeRate
	}

	return Fill{
		Price:            price,
		SlippageFraction: slippage,
		Fee:              size * price * feeRate,
	}, nil
}
