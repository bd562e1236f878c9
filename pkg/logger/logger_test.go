package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWithFieldsCarriedThroughContext(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	ctx := logg.WithFields(context.Background(), map[string]any{
		"practice_id": "p1",
		"plan":        "starter",
	})
	logg.Info(ctx, "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not json: %v (%s)", err, buf.String())
	}
	if entry["practice_id"] != "p1" {
		t.Fatalf("expected practice_id field, got %v", entry)
	}
	if entry["service"] != "test" {
		t.Fatalf("expected service field, got %v", entry)
	}
}

func TestErrorIncludesStack(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	logg.Error(context.Background(), "failed", errors.New("boom"))

	out := buf.String()
	if !strings.Contains(out, "boom") {
		t.Fatalf("expected error in output: %s", out)
	}
	if !strings.Contains(out, "stack") {
		t.Fatalf("expected stack in output: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != zerolog.DebugLevel {
		t.Fatalf("expected debug")
	}
	if ParseLevel("") != zerolog.InfoLevel {
		t.Fatalf("expected info fallback for empty")
	}
	if ParseLevel("nonsense") != zerolog.InfoLevel {
		t.Fatalf("expected info fallback for unknown")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Level: zerolog.WarnLevel, Output: &buf})

	logg.Info(context.Background(), "dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level: %s", buf.String())
	}
	logg.Warn(context.Background(), "kept")
	if buf.Len() == 0 {
		t.Fatalf("warn should be emitted")
	}
}
