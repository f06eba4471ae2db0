package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"tradeJournal/config"
	"tradeJournal/internal/domain"
	"tradeJournal/internal/ports"
	"tradeJournal/internal/reconciler"
)

// PageReconciler reconciles the latest page of closed positions.
type PageReconciler interface {
	ReconcilePage(ctx context.Context) ([]reconciler.Result, error)
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	CycleID    string    `json:"cycleId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Fetched    int       `json:"fetched"`
	Inserted   int       `json:"inserted"`
	Duplicates int       `json:"duplicates"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"` // Page-level failure, if any
}

// PollService re-runs reconciliation on a fixed interval and persists every record
// exactly once. Cycles never overlap.
type PollService struct {
	cfg        *config.Config
	logger     ports.Logger
	feed       ports.FeedClient
	reconciler PageReconciler
	repo       ports.TradeRepository

	mu         sync.Mutex // Protects lastReport
	lastReport *CycleReport
}

// NewPollService creates a new poll service instance.
func NewPollService(
	cfg *config.Config,
	logger ports.Logger,
	feed ports.FeedClient,
	rec PageReconciler,
	repo ports.TradeRepository,
) (*PollService, error) {
	if cfg == nil || logger == nil || feed == nil || rec == nil || repo == nil {
		return nil, fmt.Errorf("missing required dependencies for PollService")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("configuration PollInterval must be positive: %w", ports.ErrConfigurationError)
	}
	return &PollService{
		cfg:        cfg,
		logger:     logger,
		feed:       feed,
		reconciler: rec,
		repo:       repo,
	}, nil
}

// Start runs a cycle immediately and then one cycle per interval until ctx is canceled
// or a fatal error occurs. The interval is measured from the end of each cycle.
func (s *PollService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Poll Service...", map[string]interface{}{"interval": s.cfg.PollInterval.String()})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	// Reachability only; the real failures surface in the first cycle.
	if serverTime, err := s.feed.ServerTime(ctx); err != nil {
		s.logger.Warn(ctx, "Exchange server time unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		s.logger.Info(ctx, "Exchange reachable", map[string]interface{}{
			"serverTime": serverTime.UTC().Format(time.RFC3339),
			"skewMs":     time.Since(serverTime).Milliseconds(),
		})
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Poll Service stopped.")
			return nil
		case <-timer.C:
		}

		if _, err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				s.logger.Info(ctx, "Poll Service stopped.")
				return nil
			}
			s.logger.Error(ctx, err, "Fatal error in poll cycle, stopping")
			return err
		}
		timer.Reset(s.cfg.PollInterval)
	}
}

// RunCycle reconciles the latest page once and stores every new record.
// Per-position failures are counted and logged; the returned error is set only
// for failures that must stop the process or when ctx was canceled.
func (s *PollService) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{CycleID: uuid.NewString(), StartedAt: time.Now().UTC()}
	fields := map[string]interface{}{"cycleId": report.CycleID}
	s.logger.Info(ctx, "Poll cycle started", fields)

	results, pageErr := s.reconciler.ReconcilePage(ctx)
	report.Fetched = len(results)

	// Records reconciled before a fatal error are still stored.
	for _, res := range results {
		if !res.OK() {
			report.Failed++
			continue
		}
		outcome, err := s.repo.Insert(ctx, res.Record)
		if err != nil {
			report.Failed++
			s.logger.Error(ctx, err, "Failed to store trade", map[string]interface{}{
				"cycleId": report.CycleID,
				"orderId": res.Record.ID,
				"symbol":  res.Record.Symbol,
			})
			continue
		}
		switch outcome {
		case domain.Inserted:
			report.Inserted++
			s.logger.Info(ctx, "Trade recorded", map[string]interface{}{
				"cycleId":     report.CycleID,
				"orderId":     res.Record.ID,
				"symbol":      res.Record.Symbol,
				"pnl":         res.Record.PNL,
				"closeReason": res.Record.CloseReason(),
			})
		case domain.AlreadyExists:
			report.Duplicates++
		}
	}
	report.FinishedAt = time.Now().UTC()

	var fatal error
	if pageErr != nil {
		report.Error = pageErr.Error()
		switch {
		case ports.IsFatal(pageErr), errors.Is(pageErr, ports.ErrContextCanceled), ctx.Err() != nil:
			fatal = pageErr
		default:
			s.logger.Warn(ctx, "Poll cycle page failed, retrying next cycle", map[string]interface{}{
				"cycleId": report.CycleID,
				"error":   pageErr.Error(),
			})
		}
	}

	s.setLastReport(report)
	s.logger.Info(ctx, "Poll cycle finished", map[string]interface{}{
		"cycleId":    report.CycleID,
		"fetched":    report.Fetched,
		"inserted":   report.Inserted,
		"duplicates": report.Duplicates,
		"failed":     report.Failed,
		"durationMs": report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	})
	return report, fatal
}

// LastReport returns the report of the most recent cycle, if any has run.
func (s *PollService) LastReport() (CycleReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastReport == nil {
		return CycleReport{}, false
	}
	return *s.lastReport, true
}

func (s *PollService) setLastReport(r CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = &r
}
