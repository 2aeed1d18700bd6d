// Package indicators provides pure, stateless technical indicator math over
// ordered price samples. Every function returns a typed insufficient-data
// error when the input window is shorter than the requested period; callers
// never receive a silent zero.
package indicators

import (
	"fmt"
	"math"

	"quantpilot/internal/ports"
)

// SMA computes the Simple Moving Average of the trailing period samples.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("SMA period must be positive, got %d", period)
	}
	if len(values) < period {
		return 0, fmt.Errorf("SMA needs %d samples, got %d: %w", period, len(values), ports.ErrInsufficientData)
	}

	total := 0.0
	for i := len(values) - period; i < len(values); i++ {
		total += values[i]
	}
	return total / float64(period), nil
}

// EMA computes the Exponential Moving Average, seeded with the SMA of the
// first period samples.
func EMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("EMA period must be positive, got %d", period)
	}
	if len(values) < period {
		return 0, fmt.Errorf("EMA needs %d samples, got %d: %w", period, len(values), ports.ErrInsufficientData)
	}

	series, err := emaSeries(values, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// emaSeries returns the EMA value at each index from period-1 onward.
// The first element corresponds to values[period-1].
func emaSeries(values []float64, period int) ([]float64, error) {
	if len(values) < period {
		return nil, fmt.Errorf("EMA series needs %d samples, got %d: %w", period, len(values), ports.ErrInsufficientData)
	}

	multiplier := 2.0 / float64(period+1)

	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)

	series := make([]float64, 0, len(values)-period+1)
	series = append(series, seed)
	ema := seed
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		series = append(series, ema)
	}
	return series, nil
}

// StdDev computes the sample standard deviation of the trailing period samples.
func StdDev(values []float64, period int) (float64, error) {
	if period < 2 {
		return 0, fmt.Errorf("StdDev period must be at least 2, got %d", period)
	}
	if len(values) < period {
		return 0, fmt.Errorf("StdDev needs %d samples, got %d: %w", period, len(values), ports.ErrInsufficientData)
	}

	window := values[len(values)-period:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(period)

	variance := 0.0
	for _, v := range window {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(period - 1)
	return math.Sqrt(variance), nil
}
