package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"golang.org/x/sync/errgroup"

	"tradeJournal/config"
	"tradeJournal/internal/adapters/logger"
	"tradeJournal/internal/app"
	"tradeJournal/internal/httpapi"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(logger.Options{Level: cfg.LogLevel, Console: true, FilePath: cfg.LogFile})
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize store, Bybit client, reconciler and poll service
	journal, err := app.NewJournal(cfg, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trade journal")
		log.Fatalf("FATAL: Failed to initialize trade journal: %v", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing trade store")
		}
	}()
	appLogger.Info(context.Background(), "Trade journal initialized", map[string]interface{}{
		"driver":   cfg.DBDriver,
		"category": cfg.Category,
		"pageSize": cfg.PageSize,
	})

	// 4. Run the poll loop, plus the status API when configured.
	// The poll loop owns the lifetime: when it stops, everything stops.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer cancel()
		return journal.Poller.Start(gctx)
	})

	if cfg.StatusAddr != "" {
		server, err := httpapi.NewServer(httpapi.Config{
			Addr:    cfg.StatusAddr,
			Repo:    journal.Repo,
			Reports: journal.Poller,
			Logger:  appLogger,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize status API")
			log.Fatalf("FATAL: Failed to initialize status API: %v", err)
		}
		group.Go(func() error {
			return server.Start(gctx)
		})
	}

	if err := group.Wait(); err != nil {
		appLogger.Error(context.Background(), err, "Trade journal exited with error")
		journal.Close()
		log.Fatalf("FATAL: Trade journal exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
