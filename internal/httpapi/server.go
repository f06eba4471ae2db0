package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradeJournal/internal/analytics"
	"tradeJournal/internal/app"
	"tradeJournal/internal/domain"
	"tradeJournal/internal/ports"
)

const (
	defaultTradesLimit = 50
	maxTradesLimit     = 500
	statsWindow        = 500
	shutdownTimeout    = 5 * time.Second
)

// ReportSource exposes the outcome of the most recent poll cycle.
type ReportSource interface {
	LastReport() (app.CycleReport, bool)
}

// Config holds configuration for the status server.
type Config struct {
	Addr    string
	Repo    ports.TradeRepository
	Reports ReportSource // optional
	Logger  ports.Logger
}

// Server is the read-only status API over the journal.
type Server struct {
	addr      string
	repo      ports.TradeRepository
	reports   ReportSource
	logger    ports.Logger
	startTime time.Time
	engine    *gin.Engine
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string           `json:"status"`
	Ts        int64            `json:"ts"`
	UptimeMs  int64            `json:"uptimeMs"`
	Trades    int              `json:"trades"`
	LastCycle *app.CycleReport `json:"lastCycle,omitempty"`
}

// StatsResponse is returned by GET /stats.
type StatsResponse struct {
	Window  int                       `json:"window"`
	Summary *analytics.Summary        `json:"summary"`
	Months  []analytics.MonthlyReturn `json:"months"`
}

type tradesQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// NewServer creates the status server and registers its routes.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Repo == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for status server")
	}
	s := &Server{
		addr:      cfg.Addr,
		repo:      cfg.Repo,
		reports:   cfg.Reports,
		logger:    cfg.Logger,
		startTime: time.Now(),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.GET("/health", s.HealthCheck)
	r.GET("/trades", s.ListTrades)
	r.GET("/trades/:id", s.GetTrade)
	r.GET("/stats", s.Stats)
	s.engine = r
	return s, nil
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Status API listening", map[string]interface{}{"addr": s.addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status API failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status API shutdown failed: %w", err)
	}
	s.logger.Info(ctx, "Status API stopped")
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug(c.Request.Context(), "Status API request", map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
		})
	}
}

func (s *Server) internalError(c *gin.Context, err error, msg string) {
	s.logger.Error(c.Request.Context(), err, msg, map[string]interface{}{"path": c.FullPath()})
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// HealthCheck reports uptime, the stored trade count and the last cycle report.
func (s *Server) HealthCheck(c *gin.Context) {
	count, err := s.repo.Count(c.Request.Context())
	if err != nil {
		s.internalError(c, err, "failed to count trades")
		return
	}
	resp := HealthResponse{
		Status:   "ok",
		Ts:       time.Now().UnixMilli(),
		UptimeMs: time.Since(s.startTime).Milliseconds(),
		Trades:   count,
	}
	if s.reports != nil {
		if report, ok := s.reports.LastReport(); ok {
			resp.LastCycle = &report
			if report.Error != "" {
				resp.Status = "degraded"
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ListTrades returns the most recently closed trades.
func (s *Server) ListTrades(c *gin.Context) {
	var q tradesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must be between 1 and %d", maxTradesLimit)})
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultTradesLimit
	}
	trades, err := s.repo.FindRecent(c.Request.Context(), q.Limit)
	if err != nil {
		s.internalError(c, err, "failed to list trades")
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": toViews(trades), "count": len(trades)})
}

// GetTrade returns one trade by exchange order id.
func (s *Server) GetTrade(c *gin.Context) {
	id := c.Param("id")
	trade, err := s.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		s.internalError(c, err, "failed to load trade")
		return
	}
	if trade == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trade not found", "id": id})
		return
	}
	c.JSON(http.StatusOK, toView(trade))
}

// Stats summarizes the most recent trades.
func (s *Server) Stats(c *gin.Context) {
	trades, err := s.repo.FindRecent(c.Request.Context(), statsWindow)
	if err != nil {
		s.internalError(c, err, "failed to list trades")
		return
	}
	summary := analytics.Summarize(trades)
	c.JSON(http.StatusOK, StatsResponse{Window: statsWindow, Summary: summary, Months: summary.Months()})
}

// TradeView is the JSON form of a TradeRecord, using the journal's column names.
type TradeView struct {
	ID          string             `json:"id"`
	Symbol      string             `json:"symbol"`
	Side        string             `json:"side"`
	Qty         float64            `json:"qty"`
	Entry       float64            `json:"entry"`
	Exit        float64            `json:"exit"`
	PNL         float64            `json:"pnl"`
	PNLPct      float64            `json:"pnl_pct"`
	Fee         float64            `json:"fee"`
	Leverage    int                `json:"leverage"`
	DurationSec int64              `json:"duration_sec"`
	TPHit       bool               `json:"tp_hit"`
	SLHit       bool               `json:"sl_hit"`
	MTClose     bool               `json:"mt_close"`
	IsMaker     bool               `json:"is_maker"`
	OrderType   string             `json:"order_type"`
	TimeInForce string             `json:"time_in_force"`
	NumFills    int                `json:"num_fills"`
	OpenedAt    string             `json:"opened_at"`
	ClosedAt    string             `json:"closed_at"`
	CloseReason domain.CloseReason `json:"close_reason"`
}

func toView(t *domain.TradeRecord) TradeView {
	return TradeView{
		ID:          t.ID,
		Symbol:      t.Symbol,
		Side:        t.Side,
		Qty:         t.Qty,
		Entry:       t.Entry,
		Exit:        t.Exit,
		PNL:         t.PNL,
		PNLPct:      t.PNLPct,
		Fee:         t.Fee,
		Leverage:    t.Leverage,
		DurationSec: t.DurationSec,
		TPHit:       t.TPHit,
		SLHit:       t.SLHit,
		MTClose:     t.MTClose,
		IsMaker:     t.IsMaker,
		OrderType:   t.OrderType,
		TimeInForce: t.TimeInForce,
		NumFills:    t.NumFills,
		OpenedAt:    t.OpenedAt,
		ClosedAt:    t.ClosedAt,
		CloseReason: t.CloseReason(),
	}
}

func toViews(trades []*domain.TradeRecord) []TradeView {
	views := make([]TradeView, 0, len(trades))
	for _, t := range trades {
		views = append(views, toView(t))
	}
	return views
}
