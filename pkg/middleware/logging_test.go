package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/vango-dev/vstore/pkg/store"
)

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mw := Logging(logger)

	mw.Handle(context.Background(), asyncCall("user", "fetchUser"), func(context.Context) store.Outcome {
		return store.Outcome{Status: store.StatusFailure, Err: &store.ActionError{Code: "404", Status: 404}}
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
	if entry["msg"] != "store dispatch" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["store"] != "user" || entry["action"] != "fetchUser" || entry["status"] != "failure" {
		t.Errorf("unexpected entry: %v", entry)
	}
	errField, ok := entry["error"].(map[string]any)
	if !ok || errField["code"] != "404" {
		t.Errorf("error field = %v, want structured action error", entry["error"])
	}
}

func TestLogging_SuccessAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	mw := Logging(logger)

	mw.Handle(context.Background(), asyncCall("user", "fetchUser"), func(context.Context) store.Outcome {
		return store.Outcome{Status: store.StatusSuccess}
	})
	if buf.Len() != 0 {
		t.Fatalf("expected no output at info level, got %s", buf.String())
	}
}
