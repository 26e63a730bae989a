package observability

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/oms-chat/internal/config"
)

func TestLoggerConfig(t *testing.T) {
	cfg := loggerConfig(config.LoggerConfig{Level: "DEBUG", Encoding: "console", Service: "oms-ticket-chat", Env: "production"})
	if cfg.Level.Level() != zapcore.DebugLevel {
		t.Errorf("level = %v, want debug", cfg.Level.Level())
	}
	if cfg.Encoding != "console" || cfg.Development {
		t.Errorf("encoding = %q development = %v", cfg.Encoding, cfg.Development)
	}
	if cfg.InitialFields["service"] != "oms-ticket-chat" || cfg.InitialFields["env"] != "production" {
		t.Errorf("initial fields = %v", cfg.InitialFields)
	}
}

func TestLoggerConfigFallbacks(t *testing.T) {
	cfg := loggerConfig(config.LoggerConfig{Level: "loud", Encoding: "xml"})
	if cfg.Level.Level() != zapcore.InfoLevel {
		t.Errorf("level = %v, want info", cfg.Level.Level())
	}
	if cfg.Encoding != "json" {
		t.Errorf("encoding = %q, want json", cfg.Encoding)
	}
	if _, err := NewLogger(config.LoggerConfig{Level: "warn"}); err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
}
