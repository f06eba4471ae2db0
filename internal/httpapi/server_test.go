package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeJournal/internal/app"
	"tradeJournal/internal/domain"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type fakeRepo struct {
	trades    []*domain.TradeRecord // newest first
	err       error
	lastLimit int
}

func (f *fakeRepo) Insert(ctx context.Context, rec *domain.TradeRecord) (domain.InsertResult, error) {
	return domain.Inserted, nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id string) (*domain.TradeRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, t := range f.trades {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindRecent(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.trades) {
		return f.trades[:limit], nil
	}
	return f.trades, nil
}

func (f *fakeRepo) Count(ctx context.Context) (int, error) {
	return len(f.trades), f.err
}

func (f *fakeRepo) Close() error { return nil }

type fixedReports struct {
	report app.CycleReport
	ok     bool
}

func (f fixedReports) LastReport() (app.CycleReport, bool) { return f.report, f.ok }

func newTestServer(t *testing.T, repo *fakeRepo, reports ReportSource) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := NewServer(Config{Addr: "127.0.0.1:0", Repo: repo, Reports: reports, Logger: &mockLogger{}})
	require.NoError(t, err)
	return s
}

func do(s *Server, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	s.Handler().ServeHTTP(w, req)
	return w
}

func sampleTrades() []*domain.TradeRecord {
	return []*domain.TradeRecord{
		{ID: "o-2", Symbol: "ETHUSDT", PNL: -5, SLHit: true, ClosedAt: "2024-03-02 10:00:00"},
		{ID: "o-1", Symbol: "BTCUSDT", PNL: 20, PNLPct: 10, Fee: 0.12, TPHit: true, ClosedAt: "2024-03-01 10:00:00"},
	}
}

func TestHealthCheck(t *testing.T) {
	reports := fixedReports{ok: true, report: app.CycleReport{CycleID: "c-1", Fetched: 2, Inserted: 1, Duplicates: 1}}
	s := newTestServer(t, &fakeRepo{trades: sampleTrades()}, reports)

	w := do(s, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Trades)
	require.NotNil(t, resp.LastCycle)
	assert.Equal(t, "c-1", resp.LastCycle.CycleID)
	assert.Equal(t, 1, resp.LastCycle.Duplicates)
}

func TestHealthCheck_DegradedAfterFailedPage(t *testing.T) {
	reports := fixedReports{ok: true, report: app.CycleReport{CycleID: "c-2", Error: "exchange transport failure"}}
	s := newTestServer(t, &fakeRepo{}, reports)

	var resp HealthResponse
	w := do(s, "/health")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
}

func TestHealthCheck_NoCycleYet(t *testing.T) {
	s := newTestServer(t, &fakeRepo{}, nil)

	var resp HealthResponse
	w := do(s, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.LastCycle)
}

func TestListTrades(t *testing.T) {
	tests := []struct {
		name          string
		target        string
		wantStatus    int
		wantLimit     int
		wantReturned  int
		wantFirstID   string
		wantFirstKind domain.CloseReason
	}{
		{name: "default limit", target: "/trades", wantStatus: http.StatusOK, wantLimit: 50, wantReturned: 2, wantFirstID: "o-2", wantFirstKind: domain.CloseReasonStopLoss},
		{name: "explicit limit", target: "/trades?limit=1", wantStatus: http.StatusOK, wantLimit: 1, wantReturned: 1, wantFirstID: "o-2", wantFirstKind: domain.CloseReasonStopLoss},
		{name: "limit at max", target: "/trades?limit=500", wantStatus: http.StatusOK, wantLimit: 500, wantReturned: 2, wantFirstID: "o-2", wantFirstKind: domain.CloseReasonStopLoss},
		{name: "limit above max", target: "/trades?limit=501", wantStatus: http.StatusBadRequest},
		{name: "negative limit", target: "/trades?limit=-3", wantStatus: http.StatusBadRequest},
		{name: "non numeric limit", target: "/trades?limit=all", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{trades: sampleTrades()}
			s := newTestServer(t, repo, nil)

			w := do(s, tt.target)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body struct {
				Trades []TradeView `json:"trades"`
				Count  int         `json:"count"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantLimit, repo.lastLimit)
			assert.Equal(t, tt.wantReturned, body.Count)
			require.Len(t, body.Trades, tt.wantReturned)
			assert.Equal(t, tt.wantFirstID, body.Trades[0].ID)
			assert.Equal(t, tt.wantFirstKind, body.Trades[0].CloseReason)
		})
	}
}

func TestGetTrade(t *testing.T) {
	s := newTestServer(t, &fakeRepo{trades: sampleTrades()}, nil)

	w := do(s, "/trades/o-1")
	require.Equal(t, http.StatusOK, w.Code)
	var view TradeView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "BTCUSDT", view.Symbol)
	assert.Equal(t, 10.0, view.PNLPct)
	assert.Equal(t, 0.12, view.Fee)
	assert.True(t, view.TPHit)
	assert.Equal(t, domain.CloseReasonTakeProfit, view.CloseReason)

	w = do(s, "/trades/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStats(t *testing.T) {
	repo := &fakeRepo{trades: sampleTrades()}
	s := newTestServer(t, repo, nil)

	w := do(s, "/stats")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, statsWindow, repo.lastLimit)

	var resp struct {
		Window  int `json:"window"`
		Summary struct {
			TotalTrades int     `json:"totalTrades"`
			TotalPNL    float64 `json:"totalPnl"`
			WinRate     float64 `json:"winRate"`
		} `json:"summary"`
		Months []struct {
			Month string  `json:"month"`
			PNL   float64 `json:"pnl"`
		} `json:"months"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 500, resp.Window)
	assert.Equal(t, 2, resp.Summary.TotalTrades)
	assert.Equal(t, 15.0, resp.Summary.TotalPNL)
	assert.Equal(t, 0.5, resp.Summary.WinRate)
	require.Len(t, resp.Months, 1)
	assert.Equal(t, "2024-03", resp.Months[0].Month)
}

func TestStoreFailureIsInternalError(t *testing.T) {
	s := newTestServer(t, &fakeRepo{err: errors.New("database is locked")}, nil)

	for _, target := range []string{"/health", "/trades", "/trades/o-1", "/stats"} {
		w := do(s, target)
		assert.Equal(t, http.StatusInternalServerError, w.Code, target)
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	s := newTestServer(t, &fakeRepo{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("status server did not stop")
	}
}

func TestNewServer_RequiresRepository(t *testing.T) {
	_, err := NewServer(Config{Logger: &mockLogger{}})
	assert.Error(t, err)
}
