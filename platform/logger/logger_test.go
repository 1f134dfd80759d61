package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewWithWriterUsesJSONOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	log.Info("stage changed", "opportunityId", "o1")

	out := buf.String()
	if !strings.HasPrefix(out, "{") {
		t.Fatalf("expected JSON output, got %q", out)
	}
	if !strings.Contains(out, `"opportunityId":"o1"`) {
		t.Fatalf("expected attribute in output, got %q", out)
	}
}

func TestDevelopmentLoggerEmitsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("development", &buf)

	log.Debug("cache miss", "key", "pipeline-stats")

	if !strings.Contains(buf.String(), "cache miss") {
		t.Fatalf("expected debug line in development, got %q", buf.String())
	}
}

func TestWithContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-42")

	log.WithContext(ctx).Info("hello")

	if !strings.Contains(buf.String(), `"request_id":"req-42"`) {
		t.Fatalf("expected request id in output, got %q", buf.String())
	}
}

func TestNotificationFailedLogsAsWarning(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	log.NotificationFailed("email", "deal_won", "u1", errors.New("smtp down"))

	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, "smtp down") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestDatabaseErrorNamesOperation(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	log.DatabaseError("migrate", errors.New("relation already exists"))

	out := buf.String()
	if !strings.Contains(out, `"msg":"database_error"`) || !strings.Contains(out, `"operation":"migrate"`) {
		t.Fatalf("expected database_error with operation, got %q", out)
	}
	if !strings.Contains(out, `"level":"ERROR"`) {
		t.Fatalf("expected error level, got %q", out)
	}
}
