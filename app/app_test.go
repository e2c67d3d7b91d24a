package app

import (
	"testing"

	"Gin_postgres_redis_ict_loan/config"

	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevel(t *testing.T) {
	log, err := NewLogger(config.LogConfig{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if log.Core().Enabled(zapcore.InfoLevel) || !log.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn level not applied")
	}
}
