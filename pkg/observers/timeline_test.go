package observers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/livesub/pkg/metrics"
)

func TestTimelineObserverWritesPerSession(t *testing.T) {
	dir := t.TempDir()
	timeline := NewTimelineObserver(dir)
	obs := NewSessionObserver(timeline, "session-1")

	metrics.Record(obs, metrics.EventCaptionBroadcast, 1, map[string]string{"source": "presenter"})
	timeline.RecordEvent(metrics.MetricsEvent{Name: "untagged", Time: time.Now()})
	if err := timeline.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "session-1"+TimelineSuffix))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, `"event":"caption_broadcast"`) {
		t.Fatalf("expected caption_broadcast event, got %s", out)
	}
	if !strings.Contains(out, `"source":"presenter"`) {
		t.Fatalf("expected tags kept, got %s", out)
	}
	if strings.Contains(out, "untagged") {
		t.Fatalf("untagged event should be skipped")
	}
}

func TestSessionObserverDoesNotMutateTags(t *testing.T) {
	mem := metrics.NewMemoryObserver()
	obs := NewSessionObserver(mem, "abc")
	tags := map[string]string{"k": "v"}
	obs.RecordEvent(metrics.MetricsEvent{Name: "x", Tags: tags})
	if _, ok := tags[SessionTag]; ok {
		t.Fatalf("caller tags mutated")
	}
	if mem.Count("x") != 1 {
		t.Fatalf("expected event forwarded")
	}
}

func TestSanitizeID(t *testing.T) {
	if got := sanitizeID("../a b"); got != ".._a_b" {
		t.Fatalf("unexpected id %q", got)
	}
}

func TestPurgeArtifactsRemovesOnlyOldArtifacts(t *testing.T) {
	dir := t.TempDir()
	oldTimeline := filepath.Join(dir, "old"+TimelineSuffix)
	oldUsage := filepath.Join(dir, "old"+UsageSuffix)
	freshTimeline := filepath.Join(dir, "fresh"+TimelineSuffix)
	notes := filepath.Join(dir, "lecture-notes.docx")
	export := filepath.Join(dir, "livesub-transcript-2026-01-01T00-00-00.txt")
	metricsFile := filepath.Join(dir, "metrics.jsonl")
	past := time.Now().Add(-72 * time.Hour)
	for _, p := range []string{oldTimeline, oldUsage, freshTimeline, notes, export, metricsFile} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if p == freshTimeline {
			continue
		}
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed, err := PurgeArtifacts(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	for _, p := range []string{oldTimeline, oldUsage} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed, stat err %v", filepath.Base(p), err)
		}
	}
	for _, p := range []string{freshTimeline, notes, export, metricsFile} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("%s should be kept: %v", filepath.Base(p), err)
		}
	}
}

func TestIsArtifact(t *testing.T) {
	cases := map[string]bool{
		"abc" + TimelineSuffix: true,
		"abc" + UsageSuffix:    true,
		TimelineSuffix:         false,
		"abc.jsonl":            false,
		"livesub-transcript-2026-01-01T00-00-00.txt": false,
	}
	for name, want := range cases {
		if got := isArtifact(name); got != want {
			t.Fatalf("isArtifact(%q) = %v, want %v", name, got, want)
		}
	}
}
