package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradeJournal/internal/domain"
	"tradeJournal/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.TradeRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/account_trades.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w: %w", filepath.Dir(dbPath), ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Single writer; the poll loop and the status API share this handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates the trades table if it doesn't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		qty REAL NOT NULL,
		entry REAL NOT NULL,
		exit REAL NOT NULL,
		pnl REAL NOT NULL,
		pnl_pct REAL NOT NULL,
		fee REAL NOT NULL,
		leverage INTEGER NOT NULL,
		duration_sec INTEGER NOT NULL,
		tp_hit INTEGER NOT NULL,
		sl_hit INTEGER NOT NULL,
		mt_close INTEGER NOT NULL,
		is_maker INTEGER NOT NULL,
		order_type TEXT NOT NULL,
		time_in_force TEXT NOT NULL,
		num_fills INTEGER NOT NULL,
		opened_at TEXT NOT NULL,
		closed_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades (closed_at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w: %w", ports.ErrQueryFailed, err)
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

// Insert writes rec unless a trade with the same id is already stored.
// The stored row is never modified.
func (r *Repository) Insert(ctx context.Context, rec *domain.TradeRecord) (domain.InsertResult, error) {
	if rec == nil || rec.ID == "" {
		return 0, fmt.Errorf("trade record without id: %w", ports.ErrInvalidRequest)
	}
	const query = `
	INSERT INTO trades (id, symbol, side, qty, entry, exit, pnl, pnl_pct, fee, leverage,
	                    duration_sec, tp_hit, sl_hit, mt_close, is_maker, order_type,
	                    time_in_force, num_fills, opened_at, closed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Symbol, rec.Side, rec.Qty, rec.Entry, rec.Exit, rec.PNL, rec.PNLPct, rec.Fee, rec.Leverage,
		rec.DurationSec, rec.TPHit, rec.SLHit, rec.MTClose, rec.IsMaker, rec.OrderType,
		rec.TimeInForce, rec.NumFills, rec.OpenedAt, rec.ClosedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade %s: %w: %w", rec.ID, ports.ErrInsertFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for trade %s: %w: %w", rec.ID, ports.ErrInsertFailed, err)
	}
	if rowsAffected == 0 {
		r.logger.Debug(ctx, "Trade already stored", map[string]interface{}{"orderId": rec.ID, "symbol": rec.Symbol})
		return domain.AlreadyExists, nil
	}
	r.logger.Debug(ctx, "Trade stored", map[string]interface{}{"orderId": rec.ID, "symbol": rec.Symbol, "pnl": rec.PNL})
	return domain.Inserted, nil
}

const selectTrade = `
	SELECT id, symbol, side, qty, entry, exit, pnl, pnl_pct, fee, leverage,
	       duration_sec, tp_hit, sl_hit, mt_close, is_maker, order_type,
	       time_in_force, num_fills, opened_at, closed_at
	FROM trades`

// FindByID retrieves a trade by its exchange order id.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.TradeRecord, error) {
	row := r.db.QueryRowContext(ctx, selectTrade+` WHERE id = ?`, id)
	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Trade not found by ID", map[string]interface{}{"orderId": id})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query trade by ID %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return rec, nil
}

// FindRecent retrieves the most recently closed trades, newest first.
func (r *Repository) FindRecent(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	if limit <= 0 {
		return []*domain.TradeRecord{}, nil
	}
	rows, err := r.db.QueryContext(ctx, selectTrade+` ORDER BY closed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent trades: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.TradeRecord, 0)
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during FindRecent: %w: %w", ports.ErrQueryFailed, err)
		}
		trades = append(trades, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w: %w", ports.ErrQueryFailed, err)
	}
	return trades, nil
}

// Count returns the number of stored trades.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count trades: %w: %w", ports.ErrQueryFailed, err)
	}
	return count, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(s scanner) (*domain.TradeRecord, error) {
	t := &domain.TradeRecord{}
	err := s.Scan(
		&t.ID, &t.Symbol, &t.Side, &t.Qty, &t.Entry, &t.Exit, &t.PNL, &t.PNLPct, &t.Fee, &t.Leverage,
		&t.DurationSec, &t.TPHit, &t.SLHit, &t.MTClose, &t.IsMaker, &t.OrderType,
		&t.TimeInForce, &t.NumFills, &t.OpenedAt, &t.ClosedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	return t, nil
}
