package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(hash bool) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{SugaredLogger: zap.New(core).Sugar(), hashUserIDs: hash}, logs
}

func TestRedactsSecrets(t *testing.T) {
	log, logs := observed(false)
	log.Info("dial", "redis_password", "hunter2", "user_id", 42, "migration", "student_progress")

	fields := logs.All()[0].ContextMap()
	if fields["redis_password"] != "[REDACTED]" {
		t.Fatalf("password not redacted: %v", fields["redis_password"])
	}
	if fields["user_id"] != int64(42) || fields["migration"] != "student_progress" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestHashesUserIDs(t *testing.T) {
	log, logs := observed(true)
	log.With("component", "Verifier").Warn("mismatch", "user_id", 42)

	fields := logs.All()[0].ContextMap()
	got, _ := fields["user_id"].(string)
	if !strings.HasPrefix(got, "hash:") || len(got) != len("hash:")+12 {
		t.Fatalf("user id not hashed: %v", fields["user_id"])
	}
	if fields["component"] != "Verifier" {
		t.Fatalf("With fields lost: %v", fields)
	}
}

func TestOddKeyValues(t *testing.T) {
	log, logs := observed(false)
	log.Info("odd", "only_key")
	if logs.FilterMessage("odd").Len() != 1 {
		t.Fatalf("expected the entry to be written, got %v", logs.All())
	}
}

func TestLogLevelOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	log, err := New("development")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log.SugaredLogger.Desugar().Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled at LOG_LEVEL=warn")
	}
}
