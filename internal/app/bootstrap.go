package app

import (
	"fmt"

	"tradeJournal/config"
	"tradeJournal/internal/adapters/bybitclient"
	"tradeJournal/internal/adapters/postgres"
	"tradeJournal/internal/adapters/sqlite"
	"tradeJournal/internal/ports"
	"tradeJournal/internal/reconciler"
)

// Journal bundles the components shared by the daemon and the CLI.
type Journal struct {
	Repo       ports.TradeRepository
	Feed       *bybitclient.Client
	Reconciler *reconciler.Reconciler
	Poller     *PollService
}

// Close releases the store.
func (j *Journal) Close() error {
	if j.Repo == nil {
		return nil
	}
	return j.Repo.Close()
}

// NewRepository opens the store selected by cfg.DBDriver.
func NewRepository(cfg *config.Config, logger ports.Logger) (ports.TradeRepository, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		return sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: logger})
	case config.DriverPostgres:
		return postgres.NewRepository(postgres.Config{DSN: cfg.DatabaseURL, Logger: logger})
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q: %w", cfg.DBDriver, ports.ErrConfigurationError)
	}
}

// NewJournal wires the store, the Bybit feed client, the reconciler and the poll service.
func NewJournal(cfg *config.Config, logger ports.Logger) (*Journal, error) {
	feed, err := bybitclient.New(bybitclient.Config{
		APIKey:           cfg.APIKey,
		SecretKey:        cfg.SecretKey,
		BaseURL:          cfg.BaseURL,
		Category:         cfg.Category,
		SettleCoin:       cfg.SettleCoin,
		RecvWindowMs:     cfg.RecvWindowMs,
		PageSize:         cfg.PageSize,
		Timeout:          cfg.HTTPTimeout,
		RateLimitRetries: cfg.RateLimitRetries,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Bybit client: %w", err)
	}

	rec, err := reconciler.New(feed, logger, reconciler.Config{
		PageSize:     cfg.PageSize,
		MakerFeeRate: cfg.MakerFeeRate,
		TakerFeeRate: cfg.TakerFeeRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reconciler: %w", err)
	}

	repo, err := NewRepository(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open trade store: %w", err)
	}

	poller, err := NewPollService(cfg, logger, feed, rec, repo)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to create poll service: %w", err)
	}

	return &Journal{Repo: repo, Feed: feed, Reconciler: rec, Poller: poller}, nil
}
