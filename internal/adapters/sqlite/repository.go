package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"quantbt/internal/domain"
	"quantbt/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.RunRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance and ensures the
// schema exists.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/quantbt.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL keeps reads usable while run results are being written.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("%w: failed to open database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.createSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	cfg.Logger.Info(context.Background(), "SQLite repository ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

// Close closes the underlying database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) createSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS backtest_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		symbol TEXT NOT NULL,
		period TEXT NOT NULL,
		params_json TEXT NOT NULL,
		initial_cash REAL NOT NULL,
		final_value REAL NOT NULL,
		net_profit REAL NOT NULL,
		return_rate REAL NOT NULL,
		sharpe_ratio REAL NOT NULL,
		max_drawdown REAL NOT NULL,
		total_trades INTEGER NOT NULL,
		win_rate REAL NOT NULL,
		is_optimized INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_backtest_records_symbol ON backtest_records(symbol);
	CREATE INDEX IF NOT EXISTS idx_backtest_records_created_at ON backtest_records(created_at);`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		err = fmt.Errorf("%w: failed to create schema: %v", ports.ErrQueryFailed, err)
		r.logger.Error(ctx, err, "schema creation failed")
		return err
	}
	return nil
}

// Save persists a run record and returns its assigned ID.
func (r *Repository) Save(ctx context.Context, rec *domain.RunRecord) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("%w: nil run record", ports.ErrInvalidRequest)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO backtest_records (
			run_id, created_at, symbol, period, params_json,
			initial_cash, final_value, net_profit, return_rate,
			sharpe_ratio, max_drawdown, total_trades, win_rate, is_optimized
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.CreatedAt, rec.Symbol, rec.Period, rec.ParamsJSON,
		rec.InitialCash, rec.FinalValue, rec.NetProfit, rec.ReturnRate,
		rec.SharpeRatio, rec.MaxDrawdown, rec.TotalTrades, rec.WinRate, boolToInt(rec.IsOptimized),
	)
	if err != nil {
		err = fmt.Errorf("%w: inserting run record: %v", ports.ErrQueryFailed, err)
		r.logger.Error(ctx, err, "failed to save run record", map[string]interface{}{"symbol": rec.Symbol})
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: reading inserted id: %v", ports.ErrQueryFailed, err)
	}
	rec.ID = id
	return id, nil
}

const selectColumns = `id, run_id, created_at, symbol, period, params_json,
	initial_cash, final_value, net_profit, return_rate,
	sharpe_ratio, max_drawdown, total_trades, win_rate, is_optimized`

// FindByID retrieves a run record by its database ID. Returns nil, nil when
// no record exists.
func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.RunRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM backtest_records WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: querying run record %d: %v", ports.ErrQueryFailed, id, err)
	}
	return rec, nil
}

// List retrieves the most recent run records, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM backtest_records ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: listing run records: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var records []*domain.RunRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning run record: %v", ports.ErrQueryFailed, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating run records: %v", ports.ErrQueryFailed, err)
	}
	return records, nil
}

// Delete removes a run record by its database ID.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM backtest_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: deleting run record %d: %v", ports.ErrDeleteFailed, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking delete of run record %d: %v", ports.ErrDeleteFailed, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: run record %d", ports.ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*domain.RunRecord, error) {
	var rec domain.RunRecord
	var optimized int
	err := s.Scan(
		&rec.ID, &rec.RunID, &rec.CreatedAt, &rec.Symbol, &rec.Period, &rec.ParamsJSON,
		&rec.InitialCash, &rec.FinalValue, &rec.NetProfit, &rec.ReturnRate,
		&rec.SharpeRatio, &rec.MaxDrawdown, &rec.TotalTrades, &rec.WinRate, &optimized,
	)
	if err != nil {
		return nil, err
	}
	rec.IsOptimized = optimized != 0
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
