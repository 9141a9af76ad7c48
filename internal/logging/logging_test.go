package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNewLevels(t *testing.T) {
	cases := []struct {
		level        string
		debugEnabled bool
		warnEnabled  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, true},
		{"error", false, false},
		{"bogus", false, true},
	}
	ctx := context.Background()
	for _, tc := range cases {
		logger := New(tc.level, "text")
		if got := logger.Enabled(ctx, slog.LevelDebug); got != tc.debugEnabled {
			t.Errorf("level %q: debug enabled = %v", tc.level, got)
		}
		if got := logger.Enabled(ctx, slog.LevelWarn); got != tc.warnEnabled {
			t.Errorf("level %q: warn enabled = %v", tc.level, got)
		}
	}
}

func TestNewFormats(t *testing.T) {
	if New("info", "json") == nil {
		t.Fatal("json logger is nil")
	}
	if New("info", "text") == nil {
		t.Fatal("text logger is nil")
	}
}
