package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"tradeJournal/internal/domain"
	"tradeJournal/internal/ports"
)

// TradeRow is the gorm model of the trades table. It mirrors the SQLite schema
// column for column so either backend can hold the journal.
type TradeRow struct {
	ID          string  `gorm:"column:id;primaryKey"`
	Symbol      string  `gorm:"column:symbol;index;not null"`
	Side        string  `gorm:"column:side;not null"`
	Qty         float64 `gorm:"column:qty;not null"`
	Entry       float64 `gorm:"column:entry;not null"`
	Exit        float64 `gorm:"column:exit;not null"`
	PNL         float64 `gorm:"column:pnl;not null"`
	PNLPct      float64 `gorm:"column:pnl_pct;not null"`
	Fee         float64 `gorm:"column:fee;not null"`
	Leverage    int     `gorm:"column:leverage;not null"`
	DurationSec int64   `gorm:"column:duration_sec;not null"`
	TPHit       bool    `gorm:"column:tp_hit;not null"`
	SLHit       bool    `gorm:"column:sl_hit;not null"`
	MTClose     bool    `gorm:"column:mt_close;not null"`
	IsMaker     bool    `gorm:"column:is_maker;not null"`
	OrderType   string  `gorm:"column:order_type;not null"`
	TimeInForce string  `gorm:"column:time_in_force;not null"`
	NumFills    int     `gorm:"column:num_fills;not null"`
	OpenedAt    string  `gorm:"column:opened_at;not null"`
	ClosedAt    string  `gorm:"column:closed_at;index;not null"`
}

// TableName pins the table name instead of gorm's pluralized default.
func (TradeRow) TableName() string {
	return "trades"
}

// Repository implements ports.TradeRepository on PostgreSQL through gorm.
type Repository struct {
	db     *gorm.DB
	logger ports.Logger
}

// Config holds configuration for the PostgreSQL repository.
type Config struct {
	DSN    string
	Logger ports.Logger
}

// NewRepository connects to PostgreSQL and migrates the trades table.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for PostgreSQL repository")
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for postgres driver: %w", ports.ErrConfigurationError)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		err = fmt.Errorf("failed to connect to database: %w: %w", ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "PostgreSQL repository initialization failed")
		return nil, err
	}

	return newWithDB(db, cfg.Logger)
}

func newWithDB(db *gorm.DB, logger ports.Logger) (*Repository, error) {
	if err := db.AutoMigrate(&TradeRow{}); err != nil {
		err = fmt.Errorf("failed to migrate trades table: %w: %w", ports.ErrQueryFailed, err)
		logger.Error(context.Background(), err, "PostgreSQL repository initialization failed")
		return nil, err
	}
	logger.Info(context.Background(), "PostgreSQL trades table migrated")
	return &Repository{db: db, logger: logger}, nil
}

// Insert writes rec unless a trade with the same id is already stored.
func (r *Repository) Insert(ctx context.Context, rec *domain.TradeRecord) (domain.InsertResult, error) {
	if rec == nil || rec.ID == "" {
		return 0, fmt.Errorf("trade record without id: %w", ports.ErrInvalidRequest)
	}
	row := toRow(rec)
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to insert trade %s: %w: %w", rec.ID, ports.ErrInsertFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		r.logger.Debug(ctx, "Trade already stored", map[string]interface{}{"orderId": rec.ID, "symbol": rec.Symbol})
		return domain.AlreadyExists, nil
	}
	r.logger.Debug(ctx, "Trade stored", map[string]interface{}{"orderId": rec.ID, "symbol": rec.Symbol, "pnl": rec.PNL})
	return domain.Inserted, nil
}

// FindByID retrieves a trade by its exchange order id. Returns nil, nil if not found.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.TradeRecord, error) {
	var row TradeRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trade by ID %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return fromRow(&row), nil
}

// FindRecent retrieves the most recently closed trades, newest first.
func (r *Repository) FindRecent(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	if limit <= 0 {
		return []*domain.TradeRecord{}, nil
	}
	var rows []TradeRow
	err := r.db.WithContext(ctx).Order("closed_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recent trades: %w: %w", ports.ErrQueryFailed, err)
	}
	trades := make([]*domain.TradeRecord, 0, len(rows))
	for i := range rows {
		trades = append(trades, fromRow(&rows[i]))
	}
	return trades, nil
}

// Count returns the number of stored trades.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&TradeRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count trades: %w: %w", ports.ErrQueryFailed, err)
	}
	return int(count), nil
}

// Close closes the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w: %w", ports.ErrDBConnection, err)
	}
	r.logger.Info(context.Background(), "Closing PostgreSQL database connection")
	return sqlDB.Close()
}

func toRow(rec *domain.TradeRecord) TradeRow {
	return TradeRow{
		ID:          rec.ID,
		Symbol:      rec.Symbol,
		Side:        rec.Side,
		Qty:         rec.Qty,
		Entry:       rec.Entry,
		Exit:        rec.Exit,
		PNL:         rec.PNL,
		PNLPct:      rec.PNLPct,
		Fee:         rec.Fee,
		Leverage:    rec.Leverage,
		DurationSec: rec.DurationSec,
		TPHit:       rec.TPHit,
		SLHit:       rec.SLHit,
		MTClose:     rec.MTClose,
		IsMaker:     rec.IsMaker,
		OrderType:   rec.OrderType,
		TimeInForce: rec.TimeInForce,
		NumFills:    rec.NumFills,
		OpenedAt:    rec.OpenedAt,
		ClosedAt:    rec.ClosedAt,
	}
}

func fromRow(row *TradeRow) *domain.TradeRecord {
	return &domain.TradeRecord{
		ID:          row.ID,
		Symbol:      row.Symbol,
		Side:        row.Side,
		Qty:         row.Qty,
		Entry:       row.Entry,
		Exit:        row.Exit,
		PNL:         row.PNL,
		PNLPct:      row.PNLPct,
		Fee:         row.Fee,
		Leverage:    row.Leverage,
		DurationSec: row.DurationSec,
		TPHit:       row.TPHit,
		SLHit:       row.SLHit,
		MTClose:     row.MTClose,
		IsMaker:     row.IsMaker,
		OrderType:   row.OrderType,
		TimeInForce: row.TimeInForce,
		NumFills:    row.NumFills,
		OpenedAt:    row.OpenedAt,
		ClosedAt:    row.ClosedAt,
	}
}
