package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Warnw("task inertia damped", "condition", 1e9)
	logger.Debug("step")

	if logs.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", logs.Len())
	}
	warn := logs.FilterLevelExact(zapcore.WarnLevel).All()
	if len(warn) != 1 || warn[0].Message != "task inertia damped" {
		t.Errorf("unexpected warnings %v", warn)
	}
	if v := warn[0].ContextMap()["condition"]; v != 1e9 {
		t.Errorf("expected condition field 1e9, got %v", v)
	}
}

func TestNewLoggerAt(t *testing.T) {
	if _, err := NewLoggerAt("x", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
	l, err := NewLoggerAt("x", "warn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Desugar().Core().Enabled(zapcore.InfoLevel) {
		t.Error("expected info to be disabled at warn level")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := NewLoggerConfig()
	if !cfg.DisableStacktrace {
		t.Error("expected stacktraces disabled")
	}
	if cfg.Encoding != "console" {
		t.Errorf("expected console encoding, got %s", cfg.Encoding)
	}
	if cfg.Level.Level() != zapcore.InfoLevel {
		t.Errorf("expected info level, got %v", cfg.Level.Level())
	}
}
