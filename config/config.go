package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"quantpilot/internal/adapters/logger"
)

// Config holds all application configuration.
type Config struct {
	// Binance API (public endpoints only; keys may stay empty)
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Backtest Parameters
	Symbol          string
	Timeframe       string
	BacktestDays    int     // Historical window length in days
	InitialCapital  float64 // Starting capital for every simulated run
	RiskPerTrade    float64 // Fraction of equity risked per trade
	MinPositionSize float64 // Position fraction floor
	MaxPositionSize float64 // Position fraction ceiling
	StopLossPct     float64 // Stop distance from entry
	TakeProfitPct   float64 // Profit target distance from entry
	ExitPriority    string  // stop_loss_first or take_profit_first

	// Execution Simulator
	BaseSlippage float64 // e.g., 0.0005 for 5 bps
	MarketImpact float64 // Size-dependent slippage coefficient
	TakerFeeRate float64 // e.g., 0.0004
	MakerFeeRate float64 // e.g., 0.0002

	// Backtest Gates
	BacktestMinReturn   float64
	BacktestMinWinRate  float64
	BacktestMinSharpe   float64
	BacktestMaxDrawdown float64

	// Paper Trading
	PaperDurationHours int
	PaperMinProfit     float64
	PaperMinTrades     int
	PaperMinWinRate    float64

	// Confidence / Promotion
	ConfidenceMinTrades    int
	ConfidenceLookbackDays int
	LivePromotionThreshold float64

	// Retirement
	RetireMaxDrawdown      float64
	RetireMinWinRate       float64
	RetireMinProfitFactor  float64
	RetireLookbackDays     int
	RetireCheckIntervalMin int

	// Scheduling
	MaxConcurrentBacktests int
	PollIntervalSeconds    int

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel

	// Connection Settings
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	// Backtest Parameters
	cfg.Symbol = getEnv("SYMBOL", "ETHUSDT")
	if cfg.Symbol == "" {
		errs = append(errs, "SYMBOL must be set")
	}
	cfg.Timeframe = getEnv("TIMEFRAME", "1h")
	if cfg.Timeframe == "" {
		errs = append(errs, "TIMEFRAME must be set")
	}

	cfg.BacktestDays = getEnvAsInt("BACKTEST_DAYS", 30)
	if cfg.BacktestDays <= 0 {
		errs = append(errs, "BACKTEST_DAYS must be positive")
	}

	cfg.InitialCapital, err = getEnvAsFloatRequired("INITIAL_CAPITAL", 10000.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INITIAL_CAPITAL: %v", err))
	} else if cfg.InitialCapital <= 0 {
		errs = append(errs, "INITIAL_CAPITAL must be positive")
	}

	cfg.RiskPerTrade, err = getEnvAsFloatRequired("RISK_PER_TRADE", 0.02)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_PER_TRADE: %v", err))
	} else if cfg.RiskPerTrade <= 0 || cfg.RiskPerTrade >= 1.0 {
		errs = append(errs, "RISK_PER_TRADE must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.MinPositionSize = getEnvAsFloat("MIN_POSITION_SIZE", 0.01)
	cfg.MaxPositionSize = getEnvAsFloat("MAX_POSITION_SIZE", 0.25)
	if cfg.MinPositionSize <= 0 || cfg.MaxPositionSize <= 0 {
		errs = append(errs, "position size bounds must be positive")
	}
	if cfg.MinPositionSize >= cfg.MaxPositionSize {
		errs = append(errs, "MIN_POSITION_SIZE must be less than MAX_POSITION_SIZE")
	}

	cfg.StopLossPct, err = getEnvAsFloatRequired("STOP_LOSS_PCT", 0.02)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_PCT: %v", err))
	} else if cfg.StopLossPct <= 0 || cfg.StopLossPct >= 1.0 {
		errs = append(errs, "STOP_LOSS_PCT must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.TakeProfitPct, err = getEnvAsFloatRequired("TAKE_PROFIT_PCT", 0.04)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TAKE_PROFIT_PCT: %v", err))
	} else if cfg.TakeProfitPct <= 0 {
		errs = append(errs, "TAKE_PROFIT_PCT must be positive")
	}

	cfg.ExitPriority = getEnv("EXIT_PRIORITY", "stop_loss_first")
	if cfg.ExitPriority != "stop_loss_first" && cfg.ExitPriority != "take_profit_first" {
		errs = append(errs, "EXIT_PRIORITY must be stop_loss_first or take_profit_first")
	}

	// Execution Simulator
	cfg.BaseSlippage = getEnvAsFloat("BASE_SLIPPAGE", 0.0005)
	cfg.MarketImpact = getEnvAsFloat("MARKET_IMPACT", 0.0001)
	cfg.TakerFeeRate = getEnvAsFloat("TAKER_FEE_RATE", 0.0004)
	cfg.MakerFeeRate = getEnvAsFloat("MAKER_FEE_RATE", 0.0002)
	if cfg.BaseSlippage < 0 || cfg.MarketImpact < 0 || cfg.TakerFeeRate < 0 || cfg.MakerFeeRate < 0 {
		errs = append(errs, "slippage and fee rates cannot be negative")
	}

	// Backtest Gates
	cfg.BacktestMinReturn = getEnvAsFloat("BACKTEST_MIN_RETURN", 0.05)
	cfg.BacktestMinWinRate = getEnvAsFloat("BACKTEST_MIN_WIN_RATE", 0.45)
	cfg.BacktestMinSharpe = getEnvAsFloat("BACKTEST_MIN_SHARPE", 1.0)
	cfg.BacktestMaxDrawdown = getEnvAsFloat("BACKTEST_MAX_DRAWDOWN", 0.20)

	// Paper Trading
	cfg.PaperDurationHours = getEnvAsInt("PAPER_DURATION_HOURS", 48)
	if cfg.PaperDurationHours <= 0 {
		errs = append(errs, "PAPER_DURATION_HOURS must be positive")
	}
	cfg.PaperMinProfit = getEnvAsFloat("PAPER_MIN_PROFIT", 0.0)
	cfg.PaperMinTrades = getEnvAsInt("PAPER_MIN_TRADES", 3)
	cfg.PaperMinWinRate = getEnvAsFloat("PAPER_MIN_WIN_RATE", 0.40)

	// Confidence / Promotion
	cfg.ConfidenceMinTrades = getEnvAsInt("CONFIDENCE_MIN_TRADES", 30)
	cfg.ConfidenceLookbackDays = getEnvAsInt("CONFIDENCE_LOOKBACK_DAYS", 90)
	cfg.LivePromotionThreshold = getEnvAsFloat("LIVE_PROMOTION_THRESHOLD", 75.0)
	if cfg.LivePromotionThreshold <= 0 || cfg.LivePromotionThreshold > 100 {
		errs = append(errs, "LIVE_PROMOTION_THRESHOLD must be between 0 and 100")
	}

	// Retirement
	cfg.RetireMaxDrawdown = getEnvAsFloat("RETIRE_MAX_DRAWDOWN", 0.15)
	cfg.RetireMinWinRate = getEnvAsFloat("RETIRE_MIN_WIN_RATE", 0.35)
	cfg.RetireMinProfitFactor = getEnvAsFloat("RETIRE_MIN_PROFIT_FACTOR", 0.8)
	cfg.RetireLookbackDays = getEnvAsInt("RETIRE_LOOKBACK_DAYS", 7)
	cfg.RetireCheckIntervalMin = getEnvAsInt("RETIRE_CHECK_INTERVAL_MINUTES", 60)
	if cfg.RetireLookbackDays <= 0 || cfg.RetireCheckIntervalMin <= 0 {
		errs = append(errs, "retirement lookback and check interval must be positive")
	}

	// Scheduling
	cfg.MaxConcurrentBacktests = getEnvAsInt("MAX_CONCURRENT_BACKTESTS", 2)
	if cfg.MaxConcurrentBacktests <= 0 {
		errs = append(errs, "MAX_CONCURRENT_BACKTESTS must be positive")
	}
	cfg.PollIntervalSeconds = getEnvAsInt("POLL_INTERVAL_SECONDS", 10)
	if cfg.PollIntervalSeconds <= 0 {
		errs = append(errs, "POLL_INTERVAL_SECONDS must be positive")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/quantpilot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	// Connection Settings
	reconnectDelaySeconds := getEnvAsInt("RECONNECT_DELAY_SECONDS", 1)
	if reconnectDelaySeconds <= 0 {
		errs = append(errs, "RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.ReconnectDelay = time.Duration(reconnectDelaySeconds) * time.Second

	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 10)
	if cfg.MaxReconnectAttempts < 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS cannot be negative")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
