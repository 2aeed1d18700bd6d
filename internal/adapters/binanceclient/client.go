// Package binanceclient implements the ports.MarketDataProvider interface
// on Binance USD-M futures endpoints. It is a read-only adapter: candles and
// funding rates only, no order placement.
package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"quantpilot/internal/domain"
	"quantpilot/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/jpillora/backoff"
)

const (
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// Binance caps a single klines request at 1500 rows.
	maxKlinesPerRequest = 1500
)

// Client implements ports.MarketDataProvider using the go-binance library.
type Client struct {
	futuresClient        *futures.Client
	logger               ports.Logger
	reconnectDelay       time.Duration
	maxReconnectAttempts int
	maxFetchRetries      int
}

// Config holds configuration specific to the Binance adapter.
type Config struct {
	APIKey               string
	SecretKey            string
	UseTestnet           bool
	Logger               ports.Logger
	ReconnectDelay       time.Duration // Base stream reconnect delay (default 1s)
	MaxReconnectAttempts int           // Stream reconnect attempts before giving up (default 10)
	MaxFetchRetries      int           // REST retries on rate limit / connection errors (default 3)
}

// New creates a new Binance market data adapter. Keys may be empty; all
// endpoints this adapter touches are public.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{
		"baseURL": client.BaseURL, "testnet": cfg.UseTestnet,
	})

	reconnectDelay := cfg.ReconnectDelay
	if reconnectDelay <= 0 {
		reconnectDelay = time.Second
	}
	maxAttempts := cfg.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	maxFetchRetries := cfg.MaxFetchRetries
	if maxFetchRetries <= 0 {
		maxFetchRetries = 3
	}

	return &Client{
		futuresClient:        client,
		logger:               cfg.Logger,
		reconnectDelay:       reconnectDelay,
		maxReconnectAttempts: maxAttempts,
		maxFetchRetries:      maxFetchRetries,
	}, nil
}

// handleError translates Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Invalid signature
			mappedErr = ports.ErrAuthenticationFailed
		case -2014, -2015: // API key invalid / permissions
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1120, -1121, -1127:
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrProviderUnavailable
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "use of closed network connection"),
		strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrProviderUnavailable, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// retryable reports whether a fetch is worth retrying.
func retryable(err error) bool {
	return errors.Is(err, ports.ErrRateLimited) ||
		errors.Is(err, ports.ErrConnectionFailed) ||
		errors.Is(err, ports.ErrProviderUnavailable)
}

// GetCandles retrieves all candles between start and end, paginating past
// the per-request row cap. Transient failures are retried with exponential
// backoff before the error surfaces.
func (c *Client) GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]*domain.Candle, error) {
	op := "GetCandles"
	var all []*domain.Candle
	from := start

	for {
		klines, err := c.fetchKlines(ctx, op, func() ([]*futures.Kline, error) {
			return c.futuresClient.NewKlinesService().
				Symbol(symbol).
				Interval(timeframe).
				StartTime(from.UnixMilli()).
				EndTime(end.UnixMilli()).
				Limit(maxKlinesPerRequest).
				Do(ctx)
		})
		if err != nil {
			return nil, err
		}
		if len(klines) == 0 {
			break
		}
		for _, bk := range klines {
			candle, err := translateKline(bk, symbol, timeframe)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical candle: %w", err), op)
			}
			all = append(all, candle)
		}
		last := klines[len(klines)-1]
		from = time.UnixMilli(last.CloseTime)
		if from.After(end) || len(klines) < maxKlinesPerRequest {
			break
		}
	}

	return all, nil
}

// GetRecentCandles retrieves the most recent limit candles.
func (c *Client) GetRecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]*domain.Candle, error) {
	op := "GetRecentCandles"
	klines, err := c.fetchKlines(ctx, op, func() ([]*futures.Kline, error) {
		return c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(timeframe).
			Limit(limit).
			Do(ctx)
	})
	if err != nil {
		return nil, err
	}

	candles := make([]*domain.Candle, 0, len(klines))
	for _, bk := range klines {
		candle, err := translateKline(bk, symbol, timeframe)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate recent candle: %w", err), op)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// fetchKlines executes a klines request with retry on transient errors.
func (c *Client) fetchKlines(ctx context.Context, op string, do func() ([]*futures.Kline, error)) ([]*futures.Kline, error) {
	b := &backoff.Backoff{
		Min:    c.reconnectDelay,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxFetchRetries; attempt++ {
		klines, err := do()
		if err == nil {
			return klines, nil
		}
		lastErr = c.handleError(ctx, err, op)
		if !retryable(lastErr) {
			return nil, lastErr
		}

		delay := b.Duration()
		c.logger.Warn(ctx, op+": transient fetch error, retrying", map[string]interface{}{
			"attempt": attempt + 1, "delay": delay.String(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, c.handleError(ctx, ctx.Err(), op)
		}
	}
	return nil, lastErr
}

// GetFundingRate retrieves the current funding rate for a perpetual symbol.
func (c *Client) GetFundingRate(ctx context.Context, symbol string) (float64, error) {
	op := "GetFundingRate"
	tickers, err := c.futuresClient.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		return 0, c.handleError(ctx, fmt.Errorf("no premium index data returned for symbol %s", symbol), op)
	}

	rate, err := strconv.ParseFloat(tickers[0].LastFundingRate, 64)
	if err != nil {
		parseErr := fmt.Errorf("could not parse funding rate '%s': %w", tickers[0].LastFundingRate, err)
		return 0, c.handleError(ctx, parseErr, op)
	}
	return rate, nil
}

// StreamCandles starts a WebSocket candle stream with automatic
// reconnection. The returned doneCh closes when the stream shuts down for
// good; closing stopCh requests shutdown.
func (c *Client) StreamCandles(ctx context.Context, symbol, timeframe string, handler func(candle *domain.Candle), errHandler func(err error)) (doneCh chan struct{}, stopCh chan struct{}, err error) {
	op := "StreamCandles"
	wsCtx, cancelWs := context.WithCancel(ctx)

	binanceHandler := func(event *futures.WsKlineEvent) {
		candle, translateErr := translateWsKline(event)
		if translateErr != nil {
			// A malformed event is dropped, not fatal to the stream.
			c.logger.Error(wsCtx, translateErr, op+": failed to translate kline event", map[string]interface{}{"symbol": symbol})
			return
		}
		handler(candle)
	}
	binanceErrHandler := func(wsErr error) {
		c.logger.Warn(wsCtx, op+": WebSocket error reported", map[string]interface{}{
			"symbol": symbol, "error": wsErr.Error(),
		})
	}

	go func() {
		defer cancelWs()

		b := &backoff.Backoff{
			Min:    c.reconnectDelay,
			Max:    time.Minute,
			Factor: 2,
			Jitter: true,
		}
		attempt := 0
		for {
			select {
			case <-wsCtx.Done():
				return
			default:
			}

			innerDoneCh, innerStopCh, connectErr := futures.WsKlineServe(symbol, timeframe, binanceHandler, binanceErrHandler)
			if connectErr != nil {
				attempt++
				if attempt >= c.maxReconnectAttempts {
					finalErr := c.handleError(wsCtx, connectErr, op+" connection")
					c.logger.Error(wsCtx, connectErr, op+": max reconnection attempts exceeded, giving up", map[string]interface{}{
						"symbol": symbol, "maxAttempts": c.maxReconnectAttempts,
					})
					errHandler(finalErr)
					return
				}
				delay := b.Duration()
				c.logger.Warn(wsCtx, op+": connection failed, retrying", map[string]interface{}{
					"symbol": symbol, "attempt": attempt, "delay": delay.String(),
				})
				select {
				case <-time.After(delay):
					continue
				case <-wsCtx.Done():
					return
				}
			}

			c.logger.Info(wsCtx, op+": WebSocket connection established", map[string]interface{}{
				"symbol": symbol, "timeframe": timeframe,
			})
			attempt = 0
			b.Reset()

			select {
			case <-innerDoneCh:
				c.logger.Warn(wsCtx, op+": WebSocket closed unexpectedly, reconnecting", map[string]interface{}{"symbol": symbol})
			case <-wsCtx.Done():
				select {
				case innerStopCh <- struct{}{}:
				default:
				}
				return
			}
		}
	}()

	doneCh = make(chan struct{})
	stopCh = make(chan struct{})

	go func() {
		select {
		case <-stopCh:
			cancelWs()
		case <-wsCtx.Done():
		}
	}()
	go func() {
		<-wsCtx.Done()
		close(doneCh)
	}()

	return doneCh, stopCh, nil
}

// --- Translation Helpers ---

func translateWsKline(event *futures.WsKlineEvent) (*domain.Candle, error) {
	if event == nil {
		return nil, errors.New("received nil kline event")
	}
	k := event.Kline
	open, high, low, cls, vol, err := parseOHLCV(k.Open, k.High, k.Low, k.Close, k.Volume)
	if err != nil {
		return nil, err
	}

	return &domain.Candle{
		OpenTime:  time.UnixMilli(k.StartTime),
		CloseTime: time.UnixMilli(k.EndTime),
		Symbol:    k.Symbol,
		Timeframe: k.Interval,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
		IsFinal:   k.IsFinal,
	}, nil
}

func translateKline(bk *futures.Kline, symbol, timeframe string) (*domain.Candle, error) {
	if bk == nil {
		return nil, errors.New("received nil historical kline")
	}
	open, high, low, cls, vol, err := parseOHLCV(bk.Open, bk.High, bk.Low, bk.Close, bk.Volume)
	if err != nil {
		return nil, err
	}

	return &domain.Candle{
		OpenTime:  time.UnixMilli(bk.OpenTime),
		CloseTime: time.UnixMilli(bk.CloseTime),
		Symbol:    symbol,
		Timeframe: timeframe,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
		IsFinal:   true, // Historical klines are always final
	}, nil
}

func parseOHLCV(openS, highS, lowS, closeS, volS string) (open, high, low, cls, vol float64, err error) {
	if open, err = strconv.ParseFloat(openS, 64); err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("parsing open price '%s': %w", openS, err)
	}
	if high, err = strconv.ParseFloat(highS, 64); err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("parsing high price '%s': %w", highS, err)
	}
	if low, err = strconv.ParseFloat(lowS, 64); err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("parsing low price '%s': %w", lowS, err)
	}
	if cls, err = strconv.ParseFloat(closeS, 64); err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("parsing close price '%s': %w", closeS, err)
	}
	if vol, err = strconv.ParseFloat(volS, 64); err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("parsing volume '%s': %w", volS, err)
	}
	return open, high, low, cls, vol, nil
}
