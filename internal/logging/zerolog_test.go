package logging

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

func newTestLogger(t *testing.T) (*ZerologLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return New(&buf, "debug", "json"), &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(l), &m), l)
		out = append(out, m)
	}
	return out
}

func TestZerologLogger_Levels_WriteExpectedOutput(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", errors.New("boom"))

	got := lines(t, buf)
	require.Len(t, got, 4)

	tests := []struct {
		level string
		msg   string
		key   string
		val   any
	}{
		{"debug", "dbg", "a", float64(1)},
		{"info", "inf", "b", float64(2)},
		{"warn", "wrn", "c", float64(3)},
		{"error", "err", "d", "boom"},
	}
	for i, tc := range tests {
		assert.Equal(t, tc.level, got[i]["level"])
		assert.Equal(t, tc.msg, got[i]["message"])
		assert.Equal(t, tc.val, got[i][tc.key])
	}
}

func TestZerologLogger_With_AddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("module", "grpc_server", "user", "alice").Info(context.Background(), "hello", "k", "v")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "grpc_server", got[0]["module"])
	assert.Equal(t, "alice", got[0]["user"])
	assert.Equal(t, "v", got[0]["k"])
}

func TestZerologLogger_RequestIDFromContext(t *testing.T) {
	log, buf := newTestLogger(t)

	ctx := WithRequestID(context.Background(), "req-42")
	log.Info(ctx, "handled")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "req-42", got[0]["request_id"])
	assert.Equal(t, "req-42", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))
}

func TestZerologLogger_LevelFilterAndBadKey(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "json")

	log.Info(context.Background(), "skipped")
	log.Warn(context.Background(), "kept", "dangling")

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0]["message"])
	assert.Equal(t, "dangling", got[0]["!BADKEY"])
}

func TestNop_DoesNotPanic(t *testing.T) {
	log := Nop()
	ctx := context.TODO()
	log.Debug(ctx, "x")
	log.Info(ctx, "x")
	log.Warn(ctx, "x")
	log.Error(ctx, "x")
	log.With("a", 1).Info(ctx, "x")
}
