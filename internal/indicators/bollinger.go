package indicators

import (
	"fmt"

	"quantpilot/internal/ports"
)

// Standard Bollinger parameters.
const (
	DefaultBollingerPeriod = 20
	DefaultBollingerStdDev = 2.0
)

// BollingerResult holds the three Bollinger band levels.
type BollingerResult struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// BollingerBands computes the middle SMA band and the upper/lower bands at
// numStdDev standard deviations.
func BollingerBands(values []float64, period int, numStdDev float64) (BollingerResult, error) {
	if period < 2 {
		return BollingerResult{}, fmt.Errorf("Bollinger period must be at least 2, got %d", period)
	}
	if len(values) < period {
		return BollingerResult{}, fmt.Errorf("Bollinger needs %d samples, got %d: %w", period, len(values), ports.ErrInsufficientData)
	}

	middle, err := SMA(values, period)
	if err != nil {
		return BollingerResult{}, err
	}
	sd, err := StdDev(values, period)
	if err != nil {
		return BollingerResult{}, err
	}

	return BollingerResult{
		Upper:  middle + numStdDev*sd,
		Middle: middle,
		Lower:  middle - numStdDev*sd,
	}, nil
}
