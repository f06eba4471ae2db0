package bybitclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeJournal/internal/ports"
)

const (
	testKey    = "test-key"
	testSecret = "test-secret"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var fixedNow = time.UnixMilli(1700000000000)

// newTestClient starts a fake exchange that verifies the signature of every private
// request before delegating to handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathServerTime {
			assert.Equal(t, testKey, r.Header.Get("X-BAPI-API-KEY"))
			assert.Equal(t, "5000", r.Header.Get("X-BAPI-RECV-WINDOW"))
			ts, err := strconv.ParseInt(r.Header.Get("X-BAPI-TIMESTAMP"), 10, 64)
			assert.NoError(t, err)
			want := sign(testSecret, signaturePayload(ts, testKey, 5000, r.URL.RawQuery))
			if r.Header.Get("X-BAPI-SIGN") != want {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"retCode":10004,"retMsg":"error sign!","result":{}}`))
				return
			}
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{
		APIKey:           testKey,
		SecretKey:        testSecret,
		BaseURL:          srv.URL,
		RateLimitRetries: 2,
		RetryMinDelay:    time.Millisecond,
		RetryMaxDelay:    2 * time.Millisecond,
		Timeout:          2 * time.Second,
		Logger:           &mockLogger{},
		Now:              func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{Logger: &mockLogger{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(Config{APIKey: "k", SecretKey: "s"})
	assert.Error(t, err)
}

func TestClient_ListClosedPositions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathClosedPnl, r.URL.Path)
		assert.Equal(t, "category=linear&limit=50&settleCoin=USDT", r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"linear","nextPageCursor":"abc","list":[
			{"orderId":"o-1","symbol":"BTCUSDT","side":"Sell","qty":"2","avgEntryPrice":"100","avgExitPrice":"110",
			 "closedPnl":"20","leverage":"10","createdTime":"1000000","updatedTime":"1003600000"}]},"time":1700000000000}`))
	})

	positions, err := c.ListClosedPositions(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	p := positions[0]
	assert.Equal(t, "o-1", p.OrderID)
	assert.Equal(t, "BTCUSDT", p.Symbol)
	assert.Equal(t, "Sell", p.Side)
	assert.Equal(t, "2", p.Qty)
	assert.Equal(t, "100", p.AvgEntryPrice)
	assert.Equal(t, "110", p.AvgExitPrice)
	assert.Equal(t, "20", p.ClosedPnl)
	assert.Equal(t, "10", p.Leverage)
	assert.Equal(t, "1000000", p.CreatedTime)
	assert.Equal(t, "1003600000", p.UpdatedTime)
}

func TestClient_EmptyListIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"linear","list":[]}}`))
	})

	orders, err := c.ListOrders(context.Background(), "ETHUSDT", 50)
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestClient_ListOrdersAndExecutions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathOrderHistory:
			assert.Equal(t, "category=linear&limit=20&symbol=ETHUSDT", r.URL.RawQuery)
			_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[
				{"orderId":"o-9","symbol":"ETHUSDT","orderType":"Market","stopOrderType":"StopLoss","timeInForce":"IOC","updatedTime":"1700"}]}}`))
		case pathExecutionList:
			assert.Equal(t, "category=linear&limit=50&startTime=1000000&symbol=ETHUSDT", r.URL.RawQuery)
			_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[
				{"symbol":"ETHUSDT","orderId":"o-9","execId":"e-1","isMaker":true,"execTime":"1001000","execQty":"1","execPrice":"100"}]}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	orders, err := c.ListOrders(context.Background(), "ETHUSDT", 20)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "Market/StopLoss", orders[0].TypeLabel())
	assert.Equal(t, "IOC", orders[0].TimeInForce)
	assert.True(t, orders[0].Fired())

	execs, err := c.ListExecutions(context.Background(), "ETHUSDT", 1000000)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.True(t, execs[0].IsMaker)
	assert.Equal(t, "e-1", execs[0].ExecID)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:    "signature rejected",
			status:  http.StatusOK,
			body:    `{"retCode":10004,"retMsg":"error sign!","result":{}}`,
			wantErr: ports.ErrAuthenticationFailed,
		},
		{
			name:    "expired key",
			status:  http.StatusOK,
			body:    `{"retCode":33004,"retMsg":"api key expired","result":{}}`,
			wantErr: ports.ErrAuthenticationFailed,
		},
		{
			name:    "http unauthorized",
			status:  http.StatusUnauthorized,
			body:    `Unauthorized`,
			wantErr: ports.ErrAuthenticationFailed,
		},
		{
			name:    "server error",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			wantErr: ports.ErrTransport,
		},
		{
			name:    "unmapped exchange code",
			status:  http.StatusOK,
			body:    `{"retCode":10016,"retMsg":"server error","result":{}}`,
			wantErr: ports.ErrTransport,
		},
		{
			name:    "recv window exceeded",
			status:  http.StatusOK,
			body:    `{"retCode":10002,"retMsg":"invalid request, please check your server timestamp","result":{}}`,
			wantErr: ports.ErrTransport,
		},
		{
			name:    "garbage body",
			status:  http.StatusOK,
			body:    `not json`,
			wantErr: ports.ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.ListClosedPositions(context.Background(), 10)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_AuthErrorIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"retCode":10003,"retMsg":"API key is invalid.","result":{}}`))
	})

	_, err := c.ListClosedPositions(context.Background(), 10)
	require.ErrorIs(t, err, ports.ErrAuthenticationFailed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_RateLimitRetriedWithBackoff(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[{"orderId":"o-1","symbol":"BTCUSDT"}]}}`))
	})

	positions, err := c.ListClosedPositions(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, positions, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_RateLimitGivesUp(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"retCode":10006,"retMsg":"Too many visits!","result":{}}`))
	})

	_, err := c.ListExecutions(context.Background(), "BTCUSDT", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrRateLimited)
	assert.ErrorIs(t, err, ports.ErrTransport)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls)) // first attempt plus two retries
}

func TestClient_ServerTime(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-BAPI-SIGN"))
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"timeSecond":"1700000000","timeNano":"1700000000123456789"},"time":1700000000123}`))
	})

	ts, err := c.ServerTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000123456789), ts.UnixNano())
}

func TestClient_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[]}}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListClosedPositions(ctx, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrContextCanceled)
}
