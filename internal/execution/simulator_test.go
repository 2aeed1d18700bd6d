package execution

import (
	"math"
	"testing"

	"quantpilot/internal/domain"
)

const floatTolerance = 1e-9

func newTestSimulator(t *testing.T, cfg Config) *Simulator {
	t.Helper()
	sim, err := NewSimulator(cfg)
	if err != nil {
		t.Fatalf("NewSimulator() unexpected error: %v", err)
	}
	return sim
}

func TestFillSlippageDirection(t *testing.T) {
	sim := newTestSimulator(t, Config{BaseSlippage: 0.001, TakerFeeRate: 0.0004})

	buy, err := sim.Fill(100, true, 10, domain.OrderMarket)
	if err != nil {
		t.Fatalf("Fill() unexpected error: %v", err)
	}
	if math.Abs(buy.Price-100.1) > floatTolerance {
		t.Errorf("buy fill price = %v, want 100.1", buy.Price)
	}

	sell, err := sim.Fill(100, false, 10, domain.OrderMarket)
	if err != nil {
		t.Fatalf("Fill() unexpected error: %v", err)
	}
	if math.Abs(sell.Price-99.9) > floatTolerance {
		t.Errorf("sell fill price = %v, want 99.9", sell.Price)
	}

	// Both directions must cost the trader relative to the reference.
	if buy.Price <= 100 || sell.Price >= 100 {
		t.Errorf("slippage improved the price: buy=%v sell=%v", buy.Price, sell.Price)
	}
}

func TestFillMarketImpact(t *testing.T) {
	sim := newTestSimulator(t, Config{BaseSlippage: 0.0005, MarketImpact: 0.0001})

	// At the reference size the logarithm is zero and only base applies.
	atRef, err := sim.Fill(100, true, 1000, domain.OrderMarket)
	if err != nil {
		t.Fatalf("Fill() unexpected error: %v", err)
	}
	if math.Abs(atRef.SlippageFraction-0.0005) > floatTolerance {
		t.Errorf("slippage at reference size = %v, want 0.0005", atRef.SlippageFraction)
	}

	large, err := sim.Fill(100, true, 10000, domain.OrderMarket)
	if err != nil {
		t.Fatalf("Fill() unexpected error: %v", err)
	}
	if large.SlippageFraction <= atRef.SlippageFraction {
		t.Errorf("larger order slippage %v should exceed reference slippage %v", large.SlippageFraction, atRef.SlippageFraction)
	}
}

func TestFillSmallOrderClampedToZeroSlippage(t *testing.T) {
	// Tiny orders would get a negative impact term, i.e. price improvement.
	sim := newTestSimulator(t, Config{MarketImpact: 0.001})
	fill, err := sim.Fill(100, true, 1, domain.OrderMarket)
	if err != nil {
		t.Fatalf("Fill() unexpected error: %v", err)
	}
	if fill.SlippageFraction != 0 {
		t.Errorf("small order slippage = %v, want 0", fill.SlippageFraction)
	}
	if fill.Price != 100 {
		t.Errorf("small order price = %v, want 100", fill.Price)
	}
}

func TestFillZeroSizeDoesNotPanic(t *testing.T) {
	sim := newTestSimulator(t, Config{MarketImpact: 0.001})
	fill, err := sim.Fill(100, true, 0, domain.OrderMarket)
	if err != nil {
		t.Fatalf("Fill() with zero size unexpected error: %v", err)
	}
	if math.IsNaN(fill.Price) || math.IsInf(fill.Price, 0) {
		t.Errorf("zero-size fill produced non-finite price %v", fill.Price)
	}
}

func TestFillFees(t *testing.T) {
	sim := newTestSimulator(t, Config{TakerFeeRate: 0.0004, MakerFeeRate: 0.0002})

	market, err := sim.Fill(100, true, 10, domain.OrderMarket)
	if err != nil {
		t.Fatalf("Fill() unexpected error: %v", err)
	}
	if math.Abs(market.Fee-10*market.Price*0.0004) > floatTolerance {
		t.Errorf("market order fee = %v, want taker rate applied", market.Fee)
	}

	limit, err := sim.Fill(100, true, 10, domain.OrderLimit)
	if err != nil {
		t.Fatalf("Fill() unexpected error: %v", err)
	}
	if math.Abs(limit.Fee-10*limit.Price*0.0002) > floatTolerance {
		t.Errorf("limit order fee = %v, want maker rate applied", limit.Fee)
	}
}

func TestFillInvalidInputs(t *testing.T) {
	sim := newTestSimulator(t, Config{})
	if _, err := sim.Fill(0, true, 10, domain.OrderMarket); err == nil {
		t.Error("Fill() with zero price should return an error")
	}
	if _, err := sim.Fill(100, true, -1, domain.OrderMarket); err == nil {
		t.Error("Fill() with negative size should return an error")
	}
}

func TestNewSimulatorRejectsNegativeRates(t *testing.T) {
	if _, err := NewSimulator(Config{BaseSlippage: -0.001}); err == nil {
		t.Error("NewSimulator() with negative slippage should return an error")
	}
	if _, err := NewSimulator(Config{TakerFeeRate: -0.001}); err == nil {
		t.Error("NewSimulator() with negative fee should return an error")
	}
}
