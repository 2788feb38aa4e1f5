package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func TestSlogBridge_ContextFieldsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Backend: "memory"}, &buf)
	l := NewSlog(&zl)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithStrategy(ctx, "hierarchical")

	l.WithGroup("store").With("op", "upsert").LogAttrs(ctx, slog.LevelInfo, "done",
		slog.Int64("points", 3),
		slog.Duration("took", 5*time.Millisecond),
	)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line not json: %v (%q)", err, buf.String())
	}
	for k, want := range map[string]any{
		"msg":          "done",
		"level":        "info",
		"backend":      "memory",
		"request_id":   "req-1",
		"strategy":     "hierarchical",
		"store.op":     "upsert",
		"store.points": float64(3),
	} {
		if got := line[k]; got != want {
			t.Fatalf("%s=%v want %v (line %q)", k, got, want, buf.String())
		}
	}
	if _, ok := line["store.took"]; !ok {
		t.Fatalf("duration attr missing: %q", buf.String())
	}
}

func TestSlogBridge_LevelGate(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	l := NewSlog(&zl)

	l.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info emitted under warn level: %q", buf.String())
	}
	l.Warn("loud")
	if buf.Len() == 0 {
		t.Fatal("warn suppressed")
	}
}
