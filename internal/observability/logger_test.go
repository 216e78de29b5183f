package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLoggerFromContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer SetLogger(prev)

	ctx := WithRequestID(context.Background(), "req-1")
	if got := RequestID(ctx); got != "req-1" {
		t.Fatalf("unexpected request id %q", got)
	}
	LoggerFromContext(ctx).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["request_id"] != "req-1" {
		t.Fatalf("request_id missing from %v", entry)
	}
	if LoggerFromContext(context.Background()) != Logger() {
		t.Fatalf("expected base logger without request id")
	}
}
