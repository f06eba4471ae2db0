package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestZeroLogger_WritesFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: LevelDebug, Out: &buf})

	l.Error(context.Background(), errors.New("boom"), "Failed to reconcile position",
		map[string]interface{}{"orderId": "abc", "symbol": "BTCUSDT"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "abc", entry["orderId"])
	assert.Equal(t, "BTCUSDT", entry["symbol"])
	assert.Equal(t, "Failed to reconcile position", entry["message"])
}

func TestZeroLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: LevelWarn, Out: &buf})

	l.Debug(context.Background(), "hidden")
	l.Info(context.Background(), "hidden too")
	l.Warn(context.Background(), "shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "shown")
}
