package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize text logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil after initialization")
	}

	err = Init(WithFormat(FormatJSON))
	if err != nil {
		t.Fatalf("failed to initialize json logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := Init(WithFormat("xml")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

// Basic logging test (slog-backed; no Sugar)
func TestLoggerBasic(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	ctx := context.Background()
	Get().Info(ctx, "test message", String("k", "v"), Int64("n", 7), Bool("ok", true))
	Get().Debug(ctx, "hidden at info level")

	out := buf.String()
	if !strings.Contains(out, "test message") || !strings.Contains(out, "k=v") || !strings.Contains(out, "n=7") {
		t.Fatalf("unexpected output: %s", out)
	}
	if strings.Contains(out, "hidden at info level") {
		t.Fatalf("debug entry written at info level: %s", out)
	}

	if err := SetLevelString("debug"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	Get().Debug(ctx, "visible at debug level")
	if !strings.Contains(buf.String(), "visible at debug level") {
		t.Fatal("debug entry missing after SetLevelString(debug)")
	}
	if err := SetLevelString("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestLoggerWithJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithFormat(FormatJSON), WithWriter(&buf)).With(String("session_id", "abc"))

	l.Warn(context.Background(), "frame rejected", Error(errors.New("boom")), Duration("took", time.Millisecond))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not json: %v: %s", err, buf.String())
	}
	if entry["session_id"] != "abc" {
		t.Fatalf("expected session_id field, got %v", entry)
	}
	if entry["level"] != "WARN" || entry["msg"] != "frame rejected" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["error"] != "boom" {
		t.Fatalf("expected error field, got %v", entry["error"])
	}
}

func TestLoggerNamed(t *testing.T) {
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	namedLogger := Named("test")
	if namedLogger == nil {
		t.Fatal("named logger is nil")
	}

	ctx := context.Background()
	namedLogger.Info(ctx, "test message")
}
