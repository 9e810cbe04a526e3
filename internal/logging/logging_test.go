package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewJSONWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Writer: &buf})

	log.With(String("component", "catalog")).Warn(context.Background(), "feed failed",
		Err(errors.New("timeout")),
		Int("attempt", 2),
		Float("ratio", 0.5),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "feed failed" || rec["level"] != "WARN" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["component"] != "catalog" || rec["error"] != "timeout" || rec["attempt"] != float64(2) {
		t.Fatalf("missing fields in record: %v", rec)
	}
}

func TestLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Writer: &buf})

	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info record written at warn level: %q", buf.String())
	}
	log.Error(context.Background(), "shown")
	if buf.Len() == 0 {
		t.Fatalf("error record missing at warn level")
	}
}

func TestEnsureRequestIDIsStable(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("request id %q is not a UUID: %v", id, err)
	}
	_, again := EnsureRequestID(ctx)
	if again != id {
		t.Fatalf("EnsureRequestID replaced existing id %q with %q", id, again)
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background(), nil) == nil {
		t.Fatalf("FromContext must never return nil")
	}
	stored := New(Config{Writer: &bytes.Buffer{}})
	ctx := ContextWithLogger(context.Background(), stored)
	if FromContext(ctx, nil) != stored {
		t.Fatalf("FromContext ignored the stored logger")
	}
}

func TestErrNil(t *testing.T) {
	if f := Err(nil); f.Key != "error" || f.Value != "" {
		t.Fatalf("Err(nil) = %+v", f)
	}
}
