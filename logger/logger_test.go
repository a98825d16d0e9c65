package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLevelFromEnv(t *testing.T) {
	tests := map[string]LogLevel{
		"trace": LevelTrace,
		"debug": LevelDebug,
		"info":  LevelInfo,
		"WARN":  LevelWarn,
		"error": LevelError,
		"":      LevelInfo,
		"bogus": LevelInfo,
	}
	for val, want := range tests {
		t.Setenv("SKYCACHE_LOG_LEVEL", val)
		assert.Equal(t, want, GetLevelFromEnv(), "value %q", val)
	}
}

func TestConsoleLoggerLevelEnabled(t *testing.T) {
	l := NewConsoleLogger(LevelWarn)
	assert.False(t, l.IsLevelEnabled(LevelDebug))
	assert.False(t, l.IsLevelEnabled(LevelInfo))
	assert.True(t, l.IsLevelEnabled(LevelWarn))
	assert.True(t, l.IsLevelEnabled(LevelError))
}

func TestConsoleLoggerWithDoesNotMutateParent(t *testing.T) {
	parent := NewConsoleLogger(LevelInfo).(*consoleLogger)
	child := parent.With(map[string]interface{}{"tier": "remote"}).(*consoleLogger)

	assert.Empty(t, parent.metadata)
	assert.Equal(t, "remote", child.metadata["tier"])

	prefixed := parent.WithPrefix("[cache]").(*consoleLogger)
	assert.Empty(t, parent.prefixes)
	assert.Equal(t, []string{"[cache]"}, prefixed.prefixes)
	// Adding the same prefix twice keeps one copy.
	again := prefixed.WithPrefix("[cache]").(*consoleLogger)
	assert.Equal(t, []string{"[cache]"}, again.prefixes)
}

func TestTestLoggerCapture(t *testing.T) {
	l := NewTestLogger()
	l.Info("hello %s", "world")
	l.Warn("careful")
	derived := l.With(map[string]interface{}{"tier": "local"})
	derived.Error("boom")

	logs := l.Logs()
	assert.Len(t, logs, 3)
	assert.Equal(t, "INFO", logs[0].Severity)
	assert.Equal(t, "hello %s", logs[0].Message)
	assert.Equal(t, "WARNING", logs[1].Severity)
	assert.Equal(t, "ERROR", logs[2].Severity)
}
