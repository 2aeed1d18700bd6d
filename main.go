package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"quantpilot/config"
	"quantpilot/internal/adapters/binanceclient"
	"quantpilot/internal/adapters/logger"
	"quantpilot/internal/adapters/sqlite"
	"quantpilot/internal/backtest"
	"quantpilot/internal/confidence"
	"quantpilot/internal/domain"
	"quantpilot/internal/execution"
	"quantpilot/internal/lifecycle"
	"quantpilot/internal/signal"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()

	// 4. Initialize Market Data Provider (Binance Adapter)
	market, err := binanceclient.New(binanceclient.Config{
		APIKey:               cfg.APIKey,
		SecretKey:            cfg.SecretKey,
		UseTestnet:           cfg.IsTestnet,
		Logger:               appLogger,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	// 5. Execution Simulator and Signal Registry
	sim, err := execution.NewSimulator(execution.Config{
		BaseSlippage: cfg.BaseSlippage,
		MarketImpact: cfg.MarketImpact,
		TakerFeeRate: cfg.TakerFeeRate,
		MakerFeeRate: cfg.MakerFeeRate,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize execution simulator: %v", err)
	}
	registry := signal.DefaultRegistry()

	// 6. Backtest Runner and Confidence Scorer
	runner, err := backtest.NewRunner(registry, sim, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize backtest runner: %v", err)
	}
	scorer, err := confidence.NewScorer(confidence.Config{
		MinTrades: cfg.ConfidenceMinTrades,
		Lookback:  time.Duration(cfg.ConfidenceLookbackDays) * 24 * time.Hour,
	}, market, repo, repo, repo, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize confidence scorer: %v", err)
	}

	// 7. Lifecycle Optimizer
	optimizer, err := lifecycle.NewOptimizer(lifecycle.Config{
		Backtest: domain.BacktestConfig{
			Symbol:          cfg.Symbol,
			Timeframe:       cfg.Timeframe,
			InitialCapital:  cfg.InitialCapital,
			RiskPerTrade:    cfg.RiskPerTrade,
			MinPositionSize: cfg.MinPositionSize,
			MaxPositionSize: cfg.MaxPositionSize,
			StopLossPct:     cfg.StopLossPct,
			TakeProfitPct:   cfg.TakeProfitPct,
			ExitPriority:    domain.ExitPriority(cfg.ExitPriority),
		},
		BacktestWindow: time.Duration(cfg.BacktestDays) * 24 * time.Hour,
		BacktestGates: lifecycle.BacktestThresholds{
			MinTotalReturn: cfg.BacktestMinReturn,
			MinWinRate:     cfg.BacktestMinWinRate,
			MinSharpe:      cfg.BacktestMinSharpe,
			MaxDrawdown:    cfg.BacktestMaxDrawdown,
		},
		PaperGates: lifecycle.PaperThresholds{
			MinProfit:  cfg.PaperMinProfit,
			MinTrades:  cfg.PaperMinTrades,
			MinWinRate: cfg.PaperMinWinRate,
		},
		PaperDuration: time.Duration(cfg.PaperDurationHours) * time.Hour,
		RetirementGates: lifecycle.RetirementThresholds{
			MaxDrawdown:     cfg.RetireMaxDrawdown,
			MinWinRate:      cfg.RetireMinWinRate,
			MinProfitFactor: cfg.RetireMinProfitFactor,
		},
		RetirementLookback:      time.Duration(cfg.RetireLookbackDays) * 24 * time.Hour,
		RetirementCheckInterval: time.Duration(cfg.RetireCheckIntervalMin) * time.Minute,
		LivePromotionThreshold:  cfg.LivePromotionThreshold,
		MaxConcurrentBacktests:  cfg.MaxConcurrentBacktests,
		PollInterval:            time.Duration(cfg.PollIntervalSeconds) * time.Second,
	}, market, repo, repo, repo, runner, scorer, registry, sim, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize lifecycle optimizer: %v", err)
	}

	if err := optimizer.Start(ctx); err != nil {
		log.Fatalf("FATAL: Failed to start lifecycle optimizer: %v", err)
	}

	// 8. Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	appLogger.Info(ctx, "Shutdown signal received", map[string]interface{}{"signal": sig.String()})

	optimizer.Stop()
	appLogger.Info(ctx, "Application finished gracefully.")
}
