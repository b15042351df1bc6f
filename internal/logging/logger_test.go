package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestNewLogger_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "warn", Format: "json", Output: &buf})

	logger.Info("dropped")
	logger.Warn("kept", slog.String("field", "series"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &record))
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "series", record["field"])
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "info", Format: "text", Output: &buf})

	logger.WithRequestID("req-1").Info("resolved")

	assert.Contains(t, buf.String(), "msg=resolved")
	assert.Contains(t, buf.String(), "request_id=req-1")
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: "json", Output: &buf}).WithFields("component", "test")

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestIDContext(ctx, "abc")

	assert.Same(t, logger, FromContext(ctx))
	assert.Equal(t, "abc", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
	assert.NotNil(t, FromContext(context.Background()).Logger)
}

type failingHandler struct {
	slog.Handler
	err error
}

func (f failingHandler) Handle(context.Context, slog.Record) error { return f.err }

func TestMultiHandler_WritesToAllHandlers(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("export failed")
	text := slog.NewTextHandler(&buf, nil)
	m := newMultiHandler(failingHandler{Handler: text, err: boom}, text)

	logger := slog.New(m).With("scope", "multi")
	logger.Info("fan out")

	assert.Contains(t, buf.String(), "fan out")
	assert.Contains(t, buf.String(), "scope=multi")

	var rec slog.Record
	rec.Level = slog.LevelInfo
	err := m.Handle(context.Background(), rec)
	assert.ErrorIs(t, err, boom)
}
