package observers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/harunnryd/livesub/pkg/metrics"
	"github.com/harunnryd/livesub/pkg/redact"
)

func TestLoggerObserverWritesRedactedEvent(t *testing.T) {
	redact.SetEnabled(true)
	defer redact.SetEnabled(false)

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	obs := NewLoggerObserver(log)
	obs.RecordEvent(metrics.MetricsEvent{
		Name:   metrics.EventCaptionBroadcast,
		Value:  1,
		Tags:   map[string]string{SessionTag: "s-1", "line": "mail lecturer@school.edu"},
		Fields: map[string]any{"note": "call +62 812 3456 7890", "count": 3},
	})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "metrics_event" {
		t.Fatalf("unexpected message %v", rec["msg"])
	}
	if rec["component"] != "metrics" {
		t.Fatalf("expected metrics component, got %v", rec["component"])
	}
	if rec["event"] != metrics.EventCaptionBroadcast {
		t.Fatalf("unexpected event %v", rec["event"])
	}
	if rec[SessionTag] != "s-1" {
		t.Fatalf("expected session tag kept, got %v", rec[SessionTag])
	}
	out := buf.String()
	if strings.Contains(out, "lecturer@school.edu") || strings.Contains(out, "3456 7890") {
		t.Fatalf("expected tag and field values redacted, got %s", out)
	}
	if rec["count"] != float64(3) {
		t.Fatalf("expected non-string field kept, got %v", rec["count"])
	}
}

func TestLoggerObserverSkipsAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	NewLoggerObserver(log).RecordEvent(metrics.MetricsEvent{Name: "x"})
	if buf.Len() != 0 {
		t.Fatalf("expected nothing logged at info level, got %s", buf.String())
	}
}

func TestMultiObserverSkipsNil(t *testing.T) {
	mem := metrics.NewMemoryObserver()
	multi := NewMultiObserver(nil, mem)
	metrics.Record(multi, "y", 1, nil)
	if mem.Count("y") != 1 {
		t.Fatalf("expected forwarded event")
	}
}
