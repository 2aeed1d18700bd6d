// Package sqlite implements the persistence ports on a single SQLite
// database. One Repository satisfies StrategyRepository,
// BacktestResultRepository, TradeRepository and AssessmentRepository.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"quantpilot/internal/domain"
	"quantpilot/internal/ports"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the persistence ports using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens (or creates) the database, verifies the connection
// and initializes the schema.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/quantpilot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for concurrent readers while the coordinator writes.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Single connection; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS strategies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		indicators TEXT NOT NULL,      -- JSON array of indicator names
		params TEXT NOT NULL,          -- JSON object of numeric parameters
		status TEXT NOT NULL,
		failure_reason TEXT NOT NULL DEFAULT '',
		last_error TEXT NOT NULL DEFAULT '',
		performance TEXT NOT NULL DEFAULT '{}', -- JSON snapshot
		created_at TIMESTAMP NOT NULL,
		backtested_at TIMESTAMP DEFAULT NULL,
		paper_started_at TIMESTAMP DEFAULT NULL,
		promoted_at TIMESTAMP DEFAULT NULL,
		retired_at TIMESTAMP DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS backtest_results (
		id TEXT PRIMARY KEY,
		strategy_id TEXT NOT NULL,
		config TEXT NOT NULL,          -- JSON BacktestConfig
		metrics TEXT NOT NULL,         -- JSON BacktestMetrics
		stopped INTEGER NOT NULL DEFAULT 0,
		completed_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS backtest_trades (
		result_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		trade TEXT NOT NULL,           -- JSON Trade
		PRIMARY KEY (result_id, seq)
	);

	CREATE TABLE IF NOT EXISTS equity_points (
		result_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		ts TIMESTAMP NOT NULL,
		total_value REAL NOT NULL,
		cash REAL NOT NULL,
		unrealized_pnl REAL NOT NULL,
		PRIMARY KEY (result_id, seq)
	);

	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		position_id TEXT NOT NULL,
		strategy_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		type TEXT NOT NULL,
		size REAL NOT NULL,
		price REAL NOT NULL,
		fee REAL NOT NULL,
		pnl REAL NOT NULL,
		reason TEXT NOT NULL,
		source TEXT NOT NULL,
		ts TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS confidence_assessments (
		id TEXT PRIMARY KEY,
		strategy_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		score REAL NOT NULL,
		performance_score REAL NOT NULL,
		consistency_score REAL NOT NULL,
		risk_score REAL NOT NULL,
		market_score REAL NOT NULL,
		recommended_size REAL NOT NULL,
		warnings TEXT NOT NULL,        -- JSON array of warnings
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_strategies_status ON strategies (status, created_at);
	CREATE INDEX IF NOT EXISTS idx_results_strategy ON backtest_results (strategy_id, completed_at);
	CREATE INDEX IF NOT EXISTS idx_trades_strategy_ts ON trades (strategy_id, ts);
	CREATE INDEX IF NOT EXISTS idx_assessments_strategy ON confidence_assessments (strategy_id, created_at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- StrategyRepository Implementation ---

// CreateStrategy saves a new strategy.
func (r *Repository) CreateStrategy(ctx context.Context, s *domain.Strategy) error {
	indicators, params, performance, err := marshalStrategyBlobs(s)
	if err != nil {
		return err
	}

	const query = `
	INSERT INTO strategies (id, name, category, symbol, timeframe, indicators, params, status,
	                        failure_reason, last_error, performance, created_at,
	                        backtested_at, paper_started_at, promoted_at, retired_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.Name, s.Category, s.Symbol, s.Timeframe, indicators, params, s.Status,
		s.FailureReason, s.LastError, performance, s.CreatedAt,
		nullTime(s.BacktestedAt), nullTime(s.PaperStartedAt), nullTime(s.PromotedAt), nullTime(s.RetiredAt))
	if err != nil {
		return fmt.Errorf("failed to insert strategy %s: %w", s.ID, err)
	}
	r.logger.Debug(ctx, "Strategy created", map[string]interface{}{"strategyID": s.ID})
	return nil
}

// UpdateStrategy modifies an existing strategy.
func (r *Repository) UpdateStrategy(ctx context.Context, s *domain.Strategy) error {
	indicators, params, performance, err := marshalStrategyBlobs(s)
	if err != nil {
		return err
	}

	const query = `
	UPDATE strategies
	SET name = ?, category = ?, symbol = ?, timeframe = ?, indicators = ?, params = ?,
	    status = ?, failure_reason = ?, last_error = ?, performance = ?,
	    backtested_at = ?, paper_started_at = ?, promoted_at = ?, retired_at = ?
	WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		s.Name, s.Category, s.Symbol, s.Timeframe, indicators, params,
		s.Status, s.FailureReason, s.LastError, performance,
		nullTime(s.BacktestedAt), nullTime(s.PaperStartedAt), nullTime(s.PromotedAt), nullTime(s.RetiredAt),
		s.ID)
	if err != nil {
		return fmt.Errorf("failed to update strategy %s: %w", s.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for strategy %s: %w", s.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("strategy %s not found for update: %w", s.ID, ports.ErrNotFound)
	}
	return nil
}

// FindStrategyByID retrieves a strategy by ID. Returns nil, nil if not found.
func (r *Repository) FindStrategyByID(ctx context.Context, id string) (*domain.Strategy, error) {
	row := r.db.QueryRowContext(ctx, selectStrategy+` WHERE id = ?`, id)
	s, err := scanStrategy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query strategy %s: %w", id, err)
	}
	return s, nil
}

// FindStrategiesByStatus retrieves all strategies in the given status in
// creation order, so recovery re-queues them FIFO.
func (r *Repository) FindStrategiesByStatus(ctx context.Context, status domain.StrategyStatus) ([]*domain.Strategy, error) {
	rows, err := r.db.QueryContext(ctx, selectStrategy+` WHERE status = ? ORDER BY created_at ASC`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies by status %s: %w", status, err)
	}
	defer rows.Close()
	return collectStrategies(rows)
}

// FindAllStrategies retrieves every strategy in creation order.
func (r *Repository) FindAllStrategies(ctx context.Context) ([]*domain.Strategy, error) {
	rows, err := r.db.QueryContext(ctx, selectStrategy+` ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query all strategies: %w", err)
	}
	defer rows.Close()
	return collectStrategies(rows)
}

const selectStrategy = `
	SELECT id, name, category, symbol, timeframe, indicators, params, status,
	       failure_reason, last_error, performance, created_at,
	       backtested_at, paper_started_at, promoted_at, retired_at
	FROM strategies`

func collectStrategies(rows *sql.Rows) ([]*domain.Strategy, error) {
	strategies := make([]*domain.Strategy, 0)
	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan strategy row: %w", err)
		}
		strategies = append(strategies, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strategy rows: %w", err)
	}
	return strategies, nil
}

// --- BacktestResultRepository Implementation ---

// SaveBacktestResult persists a result with its trades and equity curve in
// one transaction.
func (r *Repository) SaveBacktestResult(ctx context.Context, res *domain.BacktestResult) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}

	configJSON, err := json.Marshal(res.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest config: %w", err)
	}
	metricsJSON, err := json.Marshal(res.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest metrics: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin result transaction: %w", err)
	}
	defer tx.Rollback()

	const insertResult = `
	INSERT INTO backtest_results (id, strategy_id, config, metrics, stopped, completed_at)
	VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertResult,
		res.ID, res.StrategyID, string(configJSON), string(metricsJSON), res.Stopped, res.CompletedAt); err != nil {
		return fmt.Errorf("failed to insert backtest result %s: %w", res.ID, err)
	}

	const insertTrade = `INSERT INTO backtest_trades (result_id, seq, trade) VALUES (?, ?, ?)`
	for i, t := range res.Trades {
		tradeJSON, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal trade %s: %w", t.ID, err)
		}
		if _, err := tx.ExecContext(ctx, insertTrade, res.ID, i, string(tradeJSON)); err != nil {
			return fmt.Errorf("failed to insert backtest trade %d: %w", i, err)
		}
	}

	const insertPoint = `
	INSERT INTO equity_points (result_id, seq, ts, total_value, cash, unrealized_pnl)
	VALUES (?, ?, ?, ?, ?, ?)`
	for i, p := range res.EquityCurve {
		if _, err := tx.ExecContext(ctx, insertPoint, res.ID, i, p.Timestamp, p.TotalValue, p.Cash, p.UnrealizedPnL); err != nil {
			return fmt.Errorf("failed to insert equity point %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit backtest result %s: %w", res.ID, err)
	}
	r.logger.Debug(ctx, "Backtest result saved", map[string]interface{}{
		"resultID": res.ID, "strategyID": res.StrategyID, "trades": len(res.Trades),
	})
	return nil
}

// FindLatestResult retrieves the most recent result for a strategy with its
// trades and equity curve. Returns nil, nil if none exists.
func (r *Repository) FindLatestResult(ctx context.Context, strategyID string) (*domain.BacktestResult, error) {
	const query = `
	SELECT id, strategy_id, config, metrics, stopped, completed_at
	FROM backtest_results
	WHERE strategy_id = ?
	ORDER BY completed_at DESC LIMIT 1`

	res := &domain.BacktestResult{}
	var configJSON, metricsJSON string
	err := r.db.QueryRowContext(ctx, query, strategyID).Scan(
		&res.ID, &res.StrategyID, &configJSON, &metricsJSON, &res.Stopped, &res.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest result for %s: %w", strategyID, err)
	}
	if err := json.Unmarshal([]byte(configJSON), &res.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal backtest config: %w", err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &res.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal backtest metrics: %w", err)
	}

	if res.Trades, err = r.loadResultTrades(ctx, res.ID); err != nil {
		return nil, err
	}
	if res.EquityCurve, err = r.loadEquityCurve(ctx, res.ID); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Repository) loadResultTrades(ctx context.Context, resultID string) ([]*domain.Trade, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT trade FROM backtest_trades WHERE result_id = ? ORDER BY seq ASC`, resultID)
	if err != nil {
		return nil, fmt.Errorf("failed to query result trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		var tradeJSON string
		if err := rows.Scan(&tradeJSON); err != nil {
			return nil, fmt.Errorf("failed to scan result trade: %w", err)
		}
		t := &domain.Trade{}
		if err := json.Unmarshal([]byte(tradeJSON), t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (r *Repository) loadEquityCurve(ctx context.Context, resultID string) ([]domain.EquityPoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ts, total_value, cash, unrealized_pnl FROM equity_points WHERE result_id = ? ORDER BY seq ASC`, resultID)
	if err != nil {
		return nil, fmt.Errorf("failed to query equity points: %w", err)
	}
	defer rows.Close()

	curve := make([]domain.EquityPoint, 0)
	for rows.Next() {
		var p domain.EquityPoint
		if err := rows.Scan(&p.Timestamp, &p.TotalValue, &p.Cash, &p.UnrealizedPnL); err != nil {
			return nil, fmt.Errorf("failed to scan equity point: %w", err)
		}
		curve = append(curve, p)
	}
	return curve, rows.Err()
}

// --- TradeRepository Implementation ---

// SaveTrades persists a batch of trades in one transaction. Replaying the
// same batch is idempotent: trade IDs are stable, so duplicates are ignored.
func (r *Repository) SaveTrades(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin trade transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
	INSERT OR IGNORE INTO trades (id, position_id, strategy_id, symbol, side, type,
	                              size, price, fee, pnl, reason, source, ts)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, t := range trades {
		if _, err := tx.ExecContext(ctx, query,
			t.ID, t.PositionID, t.StrategyID, t.Symbol, t.Side, t.Type,
			t.Size, t.Price, t.Fee, t.PnL, t.Reason, t.Source, t.Timestamp); err != nil {
			return fmt.Errorf("failed to insert trade %s: %w", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trade batch: %w", err)
	}
	return nil
}

// FindTradesSince retrieves all trades for a strategy with a timestamp at
// or after since, ascending.
func (r *Repository) FindTradesSince(ctx context.Context, strategyID string, since time.Time) ([]*domain.Trade, error) {
	const query = `
	SELECT id, position_id, strategy_id, symbol, side, type, size, price, fee, pnl, reason, source, ts
	FROM trades
	WHERE strategy_id = ? AND ts >= ?
	ORDER BY ts ASC`

	rows, err := r.db.QueryContext(ctx, query, strategyID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for %s: %w", strategyID, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		t := &domain.Trade{}
		var side, tradeType, reason, source string
		if err := rows.Scan(&t.ID, &t.PositionID, &t.StrategyID, &t.Symbol, &side, &tradeType,
			&t.Size, &t.Price, &t.Fee, &t.PnL, &reason, &source, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		t.Side = domain.Side(side)
		t.Type = domain.TradeType(tradeType)
		t.Reason = domain.TradeReason(reason)
		t.Source = domain.TradeSource(source)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// --- AssessmentRepository Implementation ---

// SaveAssessment persists an assessment.
func (r *Repository) SaveAssessment(ctx context.Context, a *domain.ConfidenceAssessment) error {
	warningsJSON, err := json.Marshal(a.Warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment warnings: %w", err)
	}

	const query = `
	INSERT INTO confidence_assessments (id, strategy_id, symbol, timeframe, score,
	                                    performance_score, consistency_score, risk_score, market_score,
	                                    recommended_size, warnings, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query,
		a.ID, a.StrategyID, a.Symbol, a.Timeframe, a.Score,
		a.PerformanceScore, a.ConsistencyScore, a.RiskScore, a.MarketScore,
		a.RecommendedSize, string(warningsJSON), a.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert assessment %s: %w", a.ID, err)
	}
	return nil
}

// FindLatestAssessment retrieves the most recent assessment for a strategy.
// Returns nil, nil if none exists.
func (r *Repository) FindLatestAssessment(ctx context.Context, strategyID string) (*domain.ConfidenceAssessment, error) {
	const query = `
	SELECT id, strategy_id, symbol, timeframe, score,
	       performance_score, consistency_score, risk_score, market_score,
	       recommended_size, warnings, created_at
	FROM confidence_assessments
	WHERE strategy_id = ?
	ORDER BY created_at DESC LIMIT 1`

	a := &domain.ConfidenceAssessment{}
	var warningsJSON string
	err := r.db.QueryRowContext(ctx, query, strategyID).Scan(
		&a.ID, &a.StrategyID, &a.Symbol, &a.Timeframe, &a.Score,
		&a.PerformanceScore, &a.ConsistencyScore, &a.RiskScore, &a.MarketScore,
		&a.RecommendedSize, &warningsJSON, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest assessment for %s: %w", strategyID, err)
	}
	if err := json.Unmarshal([]byte(warningsJSON), &a.Warnings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assessment warnings: %w", err)
	}
	return a, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanStrategy(s scanner) (*domain.Strategy, error) {
	st := &domain.Strategy{}
	var category, status, indicatorsJSON, paramsJSON, performanceJSON string
	var backtestedAt, paperStartedAt, promotedAt, retiredAt sql.NullTime

	err := s.Scan(
		&st.ID, &st.Name, &category, &st.Symbol, &st.Timeframe,
		&indicatorsJSON, &paramsJSON, &status,
		&st.FailureReason, &st.LastError, &performanceJSON, &st.CreatedAt,
		&backtestedAt, &paperStartedAt, &promotedAt, &retiredAt)
	if err != nil {
		return nil, err
	}

	st.Category = domain.Category(category)
	st.Status = domain.StrategyStatus(status)
	if err := json.Unmarshal([]byte(indicatorsJSON), &st.Indicators); err != nil {
		return nil, fmt.Errorf("failed to unmarshal indicators for %s: %w", st.ID, err)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &st.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params for %s: %w", st.ID, err)
	}
	if err := json.Unmarshal([]byte(performanceJSON), &st.Performance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal performance for %s: %w", st.ID, err)
	}
	if backtestedAt.Valid {
		st.BacktestedAt = backtestedAt.Time
	}
	if paperStartedAt.Valid {
		st.PaperStartedAt = paperStartedAt.Time
	}
	if promotedAt.Valid {
		st.PromotedAt = promotedAt.Time
	}
	if retiredAt.Valid {
		st.RetiredAt = retiredAt.Time
	}
	return st, nil
}

func marshalStrategyBlobs(s *domain.Strategy) (indicators, params, performance string, err error) {
	ind := s.Indicators
	if ind == nil {
		ind = []string{}
	}
	indicatorsB, err := json.Marshal(ind)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal indicators for %s: %w", s.ID, err)
	}
	p := s.Params
	if p == nil {
		p = map[string]float64{}
	}
	paramsB, err := json.Marshal(p)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal params for %s: %w", s.ID, err)
	}
	performanceB, err := json.Marshal(s.Performance)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal performance for %s: %w", s.ID, err)
	}
	return string(indicatorsB), string(paramsB), string(performanceB), nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
