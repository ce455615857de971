package audit

import (
	"context"
	"testing"

	"dorisgate.io/internal/auth"
)

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "", nil); err == nil {
		t.Error("expected error for empty event name")
	}
	if err := LogEvent(context.Background(), "   ", nil); err == nil {
		t.Error("expected error for blank event name")
	}
}

func TestLogEventWithContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = auth.ContextWithAuth(ctx, auth.AuthContext{
		UserID:    "test_user",
		SessionID: "user-1",
	})
	if err := LogEvent(ctx, EventQueryExecuted, map[string]any{"row_count": 3}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
}

func TestWithRequestIDIgnoresBlank(t *testing.T) {
	ctx := context.Background()
	if got := WithRequestID(ctx, "  "); got != ctx {
		t.Error("blank request id should not derive a new context")
	}
}
