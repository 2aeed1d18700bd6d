package signal

import (
	"context"
	"math"
	"testing"
	"time"

	"quantpilot/internal/domain"
)

func candleSeries(closes []float64, volumes []float64) []*domain.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]*domain.Candle, len(closes))
	for i, c := range closes {
		vol := 100.0
		if volumes != nil {
			vol = volumes[i]
		}
		candles[i] = &domain.Candle{
			OpenTime:  base.Add(time.Duration(i) * time.Hour),
			CloseTime: base.Add(time.Duration(i+1) * time.Hour),
			Open:      c,
			High:      c * 1.005,
			Low:       c * 0.995,
			Close:     c,
			Volume:    vol,
			IsFinal:   true,
		}
	}
	return candles
}

func flatCloses(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

func testStrategy(cat domain.Category, params map[string]float64) *domain.Strategy {
	return &domain.Strategy{
		ID:       "strat-test",
		Category: cat,
		Symbol:   "ETHUSDT",
		Params:   params,
	}
}

func TestRegistryLookup(t *testing.T) {
	r := DefaultRegistry()
	for _, cat := range []domain.Category{
		domain.CategoryMomentum,
		domain.CategoryMeanReversion,
		domain.CategoryBreakout,
		domain.CategoryTrendFollowing,
	} {
		if _, err := r.Lookup(cat); err != nil {
			t.Errorf("Lookup(%s) unexpected error: %v", cat, err)
		}
	}
	if _, err := r.Lookup(domain.CategoryCustom); err == nil {
		t.Error("Lookup of unregistered category should return an error")
	}
}

func TestFlatSeriesProducesNoEntries(t *testing.T) {
	// A perfectly flat series must never trigger an entry from any builtin.
	ctx := context.Background()
	r := DefaultRegistry()

	for _, cat := range []domain.Category{
		domain.CategoryMomentum,
		domain.CategoryMeanReversion,
		domain.CategoryBreakout,
		domain.CategoryTrendFollowing,
	} {
		gen, err := r.Lookup(cat)
		if err != nil {
			t.Fatalf("Lookup(%s) unexpected error: %v", cat, err)
		}
		strat := testStrategy(cat, nil)
		candles := candleSeries(flatCloses(gen.Lookback(strat)+10, 100), nil)

		sig, err := gen.Evaluate(ctx, strat, candles)
		if err != nil {
			t.Fatalf("%s Evaluate() on flat series unexpected error: %v", cat, err)
		}
		if sig != nil {
			t.Errorf("%s produced entry %+v on flat series, want none", cat, sig)
		}
	}
}

func TestTrendFollowingLongOnUptrend(t *testing.T) {
	gen := &TrendFollowing{}
	strat := testStrategy(domain.CategoryTrendFollowing, map[string]float64{
		ParamShortPeriod: 5,
		ParamLongPeriod:  10,
		ParamEMAPeriod:   5,
	})

	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)*2
	}
	sig, err := gen.Evaluate(context.Background(), strat, candleSeries(closes, nil))
	if err != nil {
		t.Fatalf("Evaluate() unexpected error: %v", err)
	}
	if sig == nil || sig.Side != domain.Long {
		t.Fatalf("Evaluate() on steady uptrend = %+v, want long entry", sig)
	}
}

func TestTrendFollowingShortOnDowntrend(t *testing.T) {
	gen := &TrendFollowing{}
	strat := testStrategy(domain.CategoryTrendFollowing, map[string]float64{
		ParamShortPeriod: 5,
		ParamLongPeriod:  10,
		ParamEMAPeriod:   5,
	})

	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 200 - float64(i)*2
	}
	sig, err := gen.Evaluate(context.Background(), strat, candleSeries(closes, nil))
	if err != nil {
		t.Fatalf("Evaluate() unexpected error: %v", err)
	}
	if sig == nil || sig.Side != domain.Short {
		t.Fatalf("Evaluate() on steady downtrend = %+v, want short entry", sig)
	}
}

func TestBreakoutRequiresVolume(t *testing.T) {
	gen := &Breakout{}
	strat := testStrategy(domain.CategoryBreakout, map[string]float64{ParamLookback: 10})

	n := 12
	closes := flatCloses(n, 100)
	closes[n-1] = 120 // Clear break above the prior range

	lowVol := make([]float64, n)
	for i := range lowVol {
		lowVol[i] = 100
	}
	sig, err := gen.Evaluate(context.Background(), strat, candleSeries(closes, lowVol))
	if err != nil {
		t.Fatalf("Evaluate() unexpected error: %v", err)
	}
	if sig != nil {
		t.Errorf("breakout without volume confirmation = %+v, want none", sig)
	}

	highVol := make([]float64, n)
	for i := range highVol {
		highVol[i] = 100
	}
	highVol[n-1] = 500
	sig, err = gen.Evaluate(context.Background(), strat, candleSeries(closes, highVol))
	if err != nil {
		t.Fatalf("Evaluate() unexpected error: %v", err)
	}
	if sig == nil || sig.Side != domain.Long {
		t.Fatalf("breakout with volume confirmation = %+v, want long entry", sig)
	}
}

func TestBreakoutShortOnRangeBreakdown(t *testing.T) {
	gen := &Breakout{}
	strat := testStrategy(domain.CategoryBreakout, map[string]float64{ParamLookback: 10})

	n := 12
	closes := flatCloses(n, 100)
	closes[n-1] = 80
	volumes := make([]float64, n)
	for i := range volumes {
		volumes[i] = 100
	}
	volumes[n-1] = 500

	sig, err := gen.Evaluate(context.Background(), strat, candleSeries(closes, volumes))
	if err != nil {
		t.Fatalf("Evaluate() unexpected error: %v", err)
	}
	if sig == nil || sig.Side != domain.Short {
		t.Fatalf("range breakdown = %+v, want short entry", sig)
	}
}

func TestMeanReversionLongBelowLowerBand(t *testing.T) {
	gen := &MeanReversion{}
	strat := testStrategy(domain.CategoryMeanReversion, nil)

	// Gentle noise around 100, then a collapse well below the lower band.
	n := 40
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + math.Sin(float64(i))*0.5
	}
	for i := n - 4; i < n; i++ {
		closes[i] = 100 - float64(i-(n-5))*3 // Successive drops keep RSI pinned low
	}

	sig, err := gen.Evaluate(context.Background(), strat, candleSeries(closes, nil))
	if err != nil {
		t.Fatalf("Evaluate() unexpected error: %v", err)
	}
	if sig == nil || sig.Side != domain.Long {
		t.Fatalf("collapse below lower band = %+v, want long entry", sig)
	}
}

func TestLookbackCoversIndicatorNeeds(t *testing.T) {
	// Evaluate with exactly Lookback+1 candles must not return an
	// insufficient-data error for any builtin.
	ctx := context.Background()
	r := DefaultRegistry()

	for _, cat := range []domain.Category{
		domain.CategoryMomentum,
		domain.CategoryMeanReversion,
		domain.CategoryBreakout,
		domain.CategoryTrendFollowing,
	} {
		gen, err := r.Lookup(cat)
		if err != nil {
			t.Fatalf("Lookup(%s) unexpected error: %v", cat, err)
		}
		strat := testStrategy(cat, nil)
		candles := candleSeries(flatCloses(gen.Lookback(strat)+1, 100), nil)
		if _, err := gen.Evaluate(ctx, strat, candles); err != nil {
			t.Errorf("%s Evaluate() at minimum window errored: %v", cat, err)
		}
	}
}
