package portfolio

import (
	"math"
	"testing"

	"quantpilot/internal/domain"
)

const floatTolerance = 1e-9

func TestNewLedgerRejectsNonPositiveCapital(t *testing.T) {
	if _, err := NewLedger(0); err == nil {
		t.Error("NewLedger(0) should return an error")
	}
	if _, err := NewLedger(-100); err == nil {
		t.Error("NewLedger(-100) should return an error")
	}
}

func TestLongRoundTrip(t *testing.T) {
	// Entry at 100 for size 10, exit at 110, no fees: equity ends at 10100.
	l, err := NewLedger(10000)
	if err != nil {
		t.Fatalf("NewLedger() unexpected error: %v", err)
	}

	if err := l.ApplyEntry(10, 100, 0); err != nil {
		t.Fatalf("ApplyEntry() unexpected error: %v", err)
	}
	if math.Abs(l.Cash()-9000) > floatTolerance {
		t.Errorf("cash after entry = %v, want 9000", l.Cash())
	}
	if math.Abs(l.Margin()-1000) > floatTolerance {
		t.Errorf("margin after entry = %v, want 1000", l.Margin())
	}
	if math.Abs(l.TotalValue()-10000) > floatTolerance {
		t.Errorf("total value after entry = %v, want 10000", l.TotalValue())
	}

	l.MarkToMarket(domain.Long, 10, 100, 110)
	if math.Abs(l.UnrealizedPnL()-100) > floatTolerance {
		t.Errorf("unrealized PnL at 110 = %v, want 100", l.UnrealizedPnL())
	}
	if math.Abs(l.TotalValue()-10100) > floatTolerance {
		t.Errorf("total value at 110 = %v, want 10100", l.TotalValue())
	}

	pnl := 10 * (110.0 - 100.0)
	if err := l.ApplyExit(0, pnl); err != nil {
		t.Fatalf("ApplyExit() unexpected error: %v", err)
	}
	if math.Abs(l.Cash()-10100) > floatTolerance {
		t.Errorf("cash after exit = %v, want 10100", l.Cash())
	}
	if math.Abs(l.Margin()) > floatTolerance {
		t.Errorf("margin after exit = %v, want 0", l.Margin())
	}
	if math.Abs(l.RealizedPnL()-100) > floatTolerance {
		t.Errorf("realized PnL = %v, want 100", l.RealizedPnL())
	}
	if math.Abs(l.TotalValue()-10100) > floatTolerance {
		t.Errorf("total value after exit = %v, want 10100", l.TotalValue())
	}
}

func TestShortRoundTrip(t *testing.T) {
	// Short at 100 for size 10, cover at 90: +100 PnL.
	l, err := NewLedger(10000)
	if err != nil {
		t.Fatalf("NewLedger() unexpected error: %v", err)
	}

	if err := l.ApplyEntry(10, 100, 0); err != nil {
		t.Fatalf("ApplyEntry() unexpected error: %v", err)
	}

	l.MarkToMarket(domain.Short, 10, 100, 90)
	if math.Abs(l.UnrealizedPnL()-100) > floatTolerance {
		t.Errorf("short unrealized PnL at 90 = %v, want 100", l.UnrealizedPnL())
	}

	pnl := 10 * (100.0 - 90.0)
	if err := l.ApplyExit(0, pnl); err != nil {
		t.Fatalf("ApplyExit() unexpected error: %v", err)
	}
	if math.Abs(l.TotalValue()-10100) > floatTolerance {
		t.Errorf("total value after short round trip = %v, want 10100", l.TotalValue())
	}
}

func TestFeesReduceEquity(t *testing.T) {
	l, err := NewLedger(10000)
	if err != nil {
		t.Fatalf("NewLedger() unexpected error: %v", err)
	}

	if err := l.ApplyEntry(10, 100, 4); err != nil {
		t.Fatalf("ApplyEntry() unexpected error: %v", err)
	}
	if err := l.ApplyExit(4, 0); err != nil {
		t.Fatalf("ApplyExit() unexpected error: %v", err)
	}
	if math.Abs(l.TotalValue()-9992) > floatTolerance {
		t.Errorf("total value after fee-only round trip = %v, want 9992", l.TotalValue())
	}
}

func TestTotalValueInvariant(t *testing.T) {
	// TotalValue must equal cash + margin + unrealized at every step.
	l, err := NewLedger(5000)
	if err != nil {
		t.Fatalf("NewLedger() unexpected error: %v", err)
	}

	check := func(stage string) {
		want := l.Cash() + l.Margin() + l.UnrealizedPnL()
		if math.Abs(l.TotalValue()-want) > floatTolerance {
			t.Errorf("%s: TotalValue() = %v, want %v", stage, l.TotalValue(), want)
		}
	}

	check("initial")
	if err := l.ApplyEntry(5, 200, 1); err != nil {
		t.Fatalf("ApplyEntry() unexpected error: %v", err)
	}
	check("after entry")
	l.MarkToMarket(domain.Long, 5, 200, 195)
	check("after adverse mark")
	if err := l.ApplyExit(1, 5*(195.0-200.0)); err != nil {
		t.Fatalf("ApplyExit() unexpected error: %v", err)
	}
	check("after exit")
}

func TestApplyExitWithoutEntry(t *testing.T) {
	l, err := NewLedger(1000)
	if err != nil {
		t.Fatalf("NewLedger() unexpected error: %v", err)
	}
	if err := l.ApplyExit(0, 10); err == nil {
		t.Error("ApplyExit() with no booked entry should return an error")
	}
}

func TestMarkToMarketFlat(t *testing.T) {
	l, err := NewLedger(1000)
	if err != nil {
		t.Fatalf("NewLedger() unexpected error: %v", err)
	}
	l.MarkToMarket(domain.Long, 0, 0, 123)
	if l.UnrealizedPnL() != 0 {
		t.Errorf("flat mark-to-market unrealized = %v, want 0", l.UnrealizedPnL())
	}
}
