package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_JSONInProduction(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: slog.LevelInfo, Service: "api", Production: true})

	l.Debug("hidden")
	l.Info("match accepted", MatchID("m-1"), MentorUserID("mentor"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "match accepted", entry["msg"])
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "m-1", entry["match_id"])
	assert.Equal(t, "mentor", entry["mentor_user_id"])
}

func TestNew_TextOverridesProduction(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Format: "text", Production: true})
	l.Info("hello", Component("scheduler"))

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "component=scheduler")
}

func TestContextPropagation(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	l := New(Options{Output: &bytes.Buffer{}})
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}
