package transcript

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/livesub/pkg/caption"
	"github.com/harunnryd/livesub/pkg/metrics"
)

type captureBroadcaster struct {
	mu   sync.Mutex
	envs []caption.Envelope
	err  error
}

func (c *captureBroadcaster) Send(env caption.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.envs = append(c.envs, env)
	return nil
}

func (c *captureBroadcaster) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.envs)
}

type fakeViewport struct {
	atBottom bool
	rendered []caption.Line
	evicted  int
	scrolls  int
	live     string
}

func (f *fakeViewport) AtBottom() bool           { return f.atBottom }
func (f *fakeViewport) Render(line caption.Line) { f.rendered = append(f.rendered, line) }
func (f *fakeViewport) Evict(n int)              { f.evicted += n }
func (f *fakeViewport) ScrollToBottom()          { f.scrolls++ }
func (f *fakeViewport) SetLive(text string)      { f.live = text }

func TestAddLineKeepsMostRecent(t *testing.T) {
	vp := &fakeViewport{atBottom: true}
	s := New(Config{}, WithViewport(vp))
	for i := 0; i < 620; i++ {
		s.AddLine(fmt.Sprintf("line %d", i))
	}
	lines := s.Lines()
	if len(lines) != DefaultMaxLines {
		t.Fatalf("expected %d lines, got %d", DefaultMaxLines, len(lines))
	}
	if lines[0] != "line 120" || lines[len(lines)-1] != "line 619" {
		t.Fatalf("unexpected window %q .. %q", lines[0], lines[len(lines)-1])
	}
	if vp.evicted != 120 {
		t.Fatalf("expected 120 evicted rows, got %d", vp.evicted)
	}
}

func TestAddLineIgnoresBlank(t *testing.T) {
	out := &captureBroadcaster{}
	s := New(Config{}, WithBroadcaster(out))
	s.AddLine("")
	s.AddLine("   ")
	if s.Count() != 0 {
		t.Fatalf("expected no lines, got %d", s.Count())
	}
	if out.Count() != 0 {
		t.Fatalf("expected no broadcast, got %d", out.Count())
	}
}

func TestAddLineTrims(t *testing.T) {
	out := &captureBroadcaster{}
	s := New(Config{}, WithBroadcaster(out))
	s.AddLine("  good morning \n")
	if got := s.Lines()[0]; got != "good morning" {
		t.Fatalf("expected trimmed line, got %q", got)
	}
	if out.envs[0].Line != "good morning" || out.envs[0].Type != caption.TypeCaption {
		t.Fatalf("unexpected envelope %+v", out.envs[0])
	}
}

func TestDuplicateWithinWindowBroadcastsOnce(t *testing.T) {
	out := &captureBroadcaster{}
	obs := metrics.NewMemoryObserver()
	s := New(Config{DebounceWindow: 100 * time.Millisecond}, WithBroadcaster(out), WithObserver(obs))
	s.AddLine("photosynthesis")
	s.AddLine("photosynthesis")

	if out.Count() != 1 {
		t.Fatalf("expected one envelope, got %d", out.Count())
	}
	if s.Count() != 2 {
		t.Fatalf("expected both lines retained, got %d", s.Count())
	}
	if obs.Count(metrics.EventCaptionSuppressed) != 1 {
		t.Fatalf("expected suppression event")
	}
}

func TestDistinctLinesWithinWindowBothBroadcast(t *testing.T) {
	out := &captureBroadcaster{}
	s := New(Config{DebounceWindow: time.Hour}, WithBroadcaster(out))
	s.AddLine("first")
	s.AddLine("second")
	if out.Count() != 2 {
		t.Fatalf("expected two envelopes, got %d", out.Count())
	}
}

func TestAutoScrollOnlyWhenAtBottom(t *testing.T) {
	vp := &fakeViewport{atBottom: true}
	s := New(Config{}, WithViewport(vp))
	s.AddLine("one")
	if vp.scrolls != 1 {
		t.Fatalf("expected scroll when at bottom")
	}
	vp.atBottom = false
	s.AddLine("two")
	if vp.scrolls != 1 {
		t.Fatalf("expected no scroll when reader scrolled up")
	}
	if len(vp.rendered) != 2 {
		t.Fatalf("expected both lines rendered")
	}
}

func TestBroadcastErrorKeepsLine(t *testing.T) {
	out := &captureBroadcaster{err: errors.New("not open")}
	s := New(Config{}, WithBroadcaster(out))
	s.AddLine("kept")
	if s.Count() != 1 {
		t.Fatalf("expected line retained on send error")
	}
}

func TestFailedSendDoesNotSuppressRepeat(t *testing.T) {
	out := &captureBroadcaster{err: errors.New("broadcast connection not open")}
	obs := metrics.NewMemoryObserver()
	s := New(Config{DebounceWindow: time.Hour}, WithBroadcaster(out), WithObserver(obs))
	s.AddLine("photosynthesis")

	out.mu.Lock()
	out.err = nil
	out.mu.Unlock()
	s.AddLine("photosynthesis")

	if out.Count() != 1 {
		t.Fatalf("expected the repeat to go out after a failed send, got %d", out.Count())
	}
	if obs.Count(metrics.EventCaptionSuppressed) != 0 {
		t.Fatalf("repeat after a failed send must not be suppressed")
	}
	if obs.Count(metrics.EventCaptionBroadcast) != 1 {
		t.Fatalf("expected one broadcast event, got %d", obs.Count(metrics.EventCaptionBroadcast))
	}
}

func TestDeferredSendCountsSeparately(t *testing.T) {
	out := &captureBroadcaster{err: fmt.Errorf("connecting: %w", ErrSendDeferred)}
	obs := metrics.NewMemoryObserver()
	s := New(Config{DebounceWindow: time.Hour}, WithBroadcaster(out), WithObserver(obs))
	s.AddLine("mitosis")
	s.AddLine("mitosis")

	if obs.Count(metrics.EventCaptionBroadcast) != 0 {
		t.Fatalf("deferred send must not count as broadcast")
	}
	if obs.Count(metrics.EventCaptionDeferred) != 1 {
		t.Fatalf("expected one deferred event, got %d", obs.Count(metrics.EventCaptionDeferred))
	}
	if obs.Count(metrics.EventCaptionSuppressed) != 1 {
		t.Fatalf("repeat of a deferred line within the window should be suppressed")
	}
}

func TestClearAndExport(t *testing.T) {
	vp := &fakeViewport{atBottom: true}
	s := New(Config{}, WithViewport(vp))
	s.AddLine("a")
	s.AddLine("b")
	if got := s.Export(); got != "a\nb" {
		t.Fatalf("unexpected export %q", got)
	}
	s.SetLiveText("interim")
	if vp.live != "interim" || s.LiveText() != "interim" {
		t.Fatalf("expected live text forwarded")
	}
	s.Clear()
	if s.Count() != 0 || vp.evicted != 2 {
		t.Fatalf("expected cleared store, count=%d evicted=%d", s.Count(), vp.evicted)
	}
}

func TestDebouncerWindow(t *testing.T) {
	d := NewDebouncer(100 * time.Millisecond)
	now := time.Unix(0, 0)
	d.now = func() time.Time { return now }
	if !d.Allow("x") {
		t.Fatalf("first call must pass")
	}
	now = now.Add(50 * time.Millisecond)
	if d.Allow("x") {
		t.Fatalf("repeat within window must be suppressed")
	}
	now = now.Add(100 * time.Millisecond)
	if !d.Allow("x") {
		t.Fatalf("repeat after window must pass")
	}
}

func TestDebouncerRepeatDoesNotRecord(t *testing.T) {
	d := NewDebouncer(100 * time.Millisecond)
	if d.Repeat("x") {
		t.Fatalf("nothing recorded yet")
	}
	if d.Repeat("x") {
		t.Fatalf("Repeat must not record text")
	}
	d.Mark("x")
	if !d.Repeat("x") {
		t.Fatalf("expected repeat after Mark")
	}
}
