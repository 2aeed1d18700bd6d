package signal

import (
	"context"
	"math"

	"quantpilot/internal/domain"
	"quantpilot/internal/indicators"
	"quantpilot/internal/ports"
)

// Strategy parameter names shared by the built-in generators. Unset
// parameters fall back to the defaults below.
const (
	ParamShortPeriod   = "short_period"
	ParamLongPeriod    = "long_period"
	ParamEMAPeriod     = "ema_period"
	ParamRSIPeriod     = "rsi_period"
	ParamRSIOverbought = "rsi_overbought"
	ParamRSIOversold   = "rsi_oversold"
	ParamLookback      = "lookback"
	ParamBandStdDev    = "band_stddev"
	ParamVolumeFactor  = "volume_factor"
)

// Momentum enters in the direction of MACD momentum confirmed by RSI.
type Momentum struct{}

func (g *Momentum) Lookback(s *domain.Strategy) int {
	rsiPeriod := int(s.Param(ParamRSIPeriod, indicators.DefaultRSIPeriod))
	macdNeed := indicators.DefaultMACDSlow + indicators.DefaultMACDSignal - 1
	return maxInt(macdNeed, rsiPeriod+1)
}

func (g *Momentum) Evaluate(ctx context.Context, s *domain.Strategy, candles []*domain.Candle) (*ports.EntrySignal, error) {
	prices := closes(candles)

	macd, err := indicators.MACD(prices, indicators.DefaultMACDFast, indicators.DefaultMACDSlow, indicators.DefaultMACDSignal)
	if err != nil {
		return nil, err
	}
	rsi, err := indicators.RSI(prices, int(s.Param(ParamRSIPeriod, indicators.DefaultRSIPeriod)))
	if err != nil {
		return nil, err
	}

	overbought := s.Param(ParamRSIOverbought, 70)
	oversold := s.Param(ParamRSIOversold, 30)

	if macd.Histogram > 0 && rsi > 50 && rsi < overbought {
		return &ports.EntrySignal{Side: domain.Long, Reason: "momentum_long"}, nil
	}
	if macd.Histogram < 0 && rsi < 50 && rsi > oversold {
		return &ports.EntrySignal{Side: domain.Short, Reason: "momentum_short"}, nil
	}
	return nil, nil
}

// MeanReversion fades moves outside the Bollinger bands when RSI confirms
// the extreme.
type MeanReversion struct{}

func (g *MeanReversion) Lookback(s *domain.Strategy) int {
	bandPeriod := int(s.Param(ParamLongPeriod, indicators.DefaultBollingerPeriod))
	rsiPeriod := int(s.Param(ParamRSIPeriod, indicators.DefaultRSIPeriod))
	return maxInt(bandPeriod, rsiPeriod+1)
}

func (g *MeanReversion) Evaluate(ctx context.Context, s *domain.Strategy, candles []*domain.Candle) (*ports.EntrySignal, error) {
	prices := closes(candles)
	current := prices[len(prices)-1]

	bands, err := indicators.BollingerBands(prices,
		int(s.Param(ParamLongPeriod, indicators.DefaultBollingerPeriod)),
		s.Param(ParamBandStdDev, indicators.DefaultBollingerStdDev))
	if err != nil {
		return nil, err
	}
	rsi, err := indicators.RSI(prices, int(s.Param(ParamRSIPeriod, indicators.DefaultRSIPeriod)))
	if err != nil {
		return nil, err
	}

	if current < bands.Lower && rsi <= s.Param(ParamRSIOversold, 30) {
		return &ports.EntrySignal{Side: domain.Long, Reason: "mean_reversion_long"}, nil
	}
	if current > bands.Upper && rsi >= s.Param(ParamRSIOverbought, 70) {
		return &ports.EntrySignal{Side: domain.Short, Reason: "mean_reversion_short"}, nil
	}
	return nil, nil
}

// Breakout enters when the current close clears the prior range extreme on
// above-average volume.
type Breakout struct{}

func (g *Breakout) Lookback(s *domain.Strategy) int {
	return int(s.Param(ParamLookback, 20)) + 1
}

func (g *Breakout) Evaluate(ctx context.Context, s *domain.Strategy, candles []*domain.Candle) (*ports.EntrySignal, error) {
	lookback := int(s.Param(ParamLookback, 20))
	if len(candles) < lookback+1 {
		return nil, ports.ErrInsufficientData
	}

	current := candles[len(candles)-1]
	window := candles[len(candles)-1-lookback : len(candles)-1] // Excludes the current candle

	highest := math.Inf(-1)
	lowest := math.Inf(1)
	avgVolume := 0.0
	for _, c := range window {
		highest = math.Max(highest, c.High)
		lowest = math.Min(lowest, c.Low)
		avgVolume += c.Volume
	}
	avgVolume /= float64(lookback)

	volumeOK := current.Volume > avgVolume*s.Param(ParamVolumeFactor, 1.5)

	if current.Close > highest && volumeOK {
		return &ports.EntrySignal{Side: domain.Long, Reason: "breakout_long"}, nil
	}
	if current.Close < lowest && volumeOK {
		return &ports.EntrySignal{Side: domain.Short, Reason: "breakout_short"}, nil
	}
	return nil, nil
}

// TrendFollowing enters with an established moving-average trend. On a flat
// price series the short and long averages coincide, so the strict
// inequalities never trigger an entry.
type TrendFollowing struct{}

func (g *TrendFollowing) Lookback(s *domain.Strategy) int {
	long := int(s.Param(ParamLongPeriod, 50))
	ema := int(s.Param(ParamEMAPeriod, 20))
	return maxInt(long, ema) + 1
}

func (g *TrendFollowing) Evaluate(ctx context.Context, s *domain.Strategy, candles []*domain.Candle) (*ports.EntrySignal, error) {
	prices := closes(candles)
	current := prices[len(prices)-1]

	shortMA, err := indicators.SMA(prices, int(s.Param(ParamShortPeriod, 20)))
	if err != nil {
		return nil, err
	}
	longMA, err := indicators.SMA(prices, int(s.Param(ParamLongPeriod, 50)))
	if err != nil {
		return nil, err
	}
	ema, err := indicators.EMA(prices, int(s.Param(ParamEMAPeriod, 20)))
	if err != nil {
		return nil, err
	}

	if shortMA > longMA && current > shortMA && current > ema {
		return &ports.EntrySignal{Side: domain.Long, Reason: "trend_long"}, nil
	}
	if shortMA < longMA && current < shortMA && current < ema {
		return &ports.EntrySignal{Side: domain.Short, Reason: "trend_short"}, nil
	}
	return nil, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
