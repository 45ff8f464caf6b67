package tutor

import (
	"context"
	"log/slog"
	"testing"
)

func TestNewEngineInstallsConfiguredLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	e, err := NewEngine(Config{LogLevel: "debug", LogFormat: "text"})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer e.Close()

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatalf("expected configured debug level on the default logger")
	}
}

func TestNewEngineDefaultLevelFiltersDebug(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	e, err := NewEngine(Config{LogLevel: "info", LogFormat: "json"})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer e.Close()

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatalf("expected debug to be filtered at info level")
	}
}
