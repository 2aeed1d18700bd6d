package indicators

import (
	"fmt"

	"quantpilot/internal/ports"
)

// Standard MACD periods.
const (
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
)

// MACDResult holds the MACD line, its signal line and their difference.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD computes the Moving Average Convergence Divergence: the difference
// between the fast and slow EMAs, an EMA of that difference as the signal
// line, and the histogram between them.
func MACD(values []float64, fast, slow, signal int) (MACDResult, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return MACDResult{}, fmt.Errorf("MACD periods must be positive, got %d/%d/%d", fast, slow, signal)
	}
	if fast >= slow {
		return MACDResult{}, fmt.Errorf("MACD fast period %d must be less than slow period %d", fast, slow)
	}
	required := slow + signal - 1
	if len(values) < required {
		return MACDResult{}, fmt.Errorf("MACD needs %d samples, got %d: %w", required, len(values), ports.ErrInsufficientData)
	}

	fastSeries, err := emaSeries(values, fast)
	if err != nil {
		return MACDResult{}, err
	}
	slowSeries, err := emaSeries(values, slow)
	if err != nil {
		return MACDResult{}, err
	}

	// Align the two EMA series on the slow seed point.
	offset := slow - fast
	macdLine := make([]float64, len(slowSeries))
	for i := range slowSeries {
		macdLine[i] = fastSeries[i+offset] - slowSeries[i]
	}

	signalSeries, err := emaSeries(macdLine, signal)
	if err != nil {
		return MACDResult{}, err
	}

	macd := macdLine[len(macdLine)-1]
	sig := signalSeries[len(signalSeries)-1]
	return MACDResult{
		MACD:      macd,
		Signal:    sig,
		Histogram: macd - sig,
	}, nil
}
