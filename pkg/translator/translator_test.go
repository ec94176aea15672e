package translator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/livesub/pkg/resilience"
)

type stubProvider struct {
	mu    sync.Mutex
	calls map[string]int
	total int
	reply func(text string, call int) (string, error)
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Translate(ctx context.Context, text, source, target string) (string, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[text]++
	s.total++
	n := s.total
	s.mu.Unlock()
	if s.reply != nil {
		return s.reply(text, n)
	}
	return "th:" + text, nil
}

func (s *stubProvider) Calls(text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[text]
}

// fastTranslator replaces the clock so the watermark never really sleeps.
func fastTranslator(p Provider, cfg Config) (*Translator, *[]time.Duration) {
	tr := New(p, cfg)
	var mu sync.Mutex
	now := time.Unix(1700000000, 0)
	var waits []time.Duration
	tr.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	tr.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		waits = append(waits, d)
		now = now.Add(d)
		mu.Unlock()
		return ctx.Err()
	}
	return tr, &waits
}

func TestTranslateCachesResult(t *testing.T) {
	p := &stubProvider{}
	tr, _ := fastTranslator(p, Config{})
	ctx := context.Background()

	if got := tr.Translate(ctx, "Hello"); got != "th:hello" {
		t.Fatalf("unexpected translation %q", got)
	}
	_ = tr.Translate(ctx, " hello ")
	if p.Calls("hello") != 1 {
		t.Fatalf("expected one request, got %d", p.Calls("hello"))
	}
	if !tr.IsCached("HELLO") {
		t.Fatalf("expected cached entry")
	}
}

func TestEvictedWordIsRequestedAgain(t *testing.T) {
	p := &stubProvider{}
	tr, _ := fastTranslator(p, Config{})
	ctx := context.Background()

	_ = tr.Translate(ctx, "Hello")
	_ = tr.Translate(ctx, "Hello")
	for i := 0; i < DefaultCacheSize; i++ {
		_ = tr.Translate(ctx, fmt.Sprintf("word%d", i))
	}
	if tr.IsCached("hello") {
		t.Fatalf("expected first word evicted")
	}
	_ = tr.Translate(ctx, "Hello")
	if p.Calls("hello") != 2 {
		t.Fatalf("expected a second request after eviction, got %d", p.Calls("hello"))
	}
	if s := tr.Stats(); s.Size != DefaultCacheSize || s.MaxSize != DefaultCacheSize {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestEmptyInput(t *testing.T) {
	p := &stubProvider{}
	tr, _ := fastTranslator(p, Config{})
	if got := tr.Translate(context.Background(), "   "); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
	if p.total != 0 {
		t.Fatalf("expected no request")
	}
}

func TestFailureReturnsSentinelUncached(t *testing.T) {
	p := &stubProvider{reply: func(text string, n int) (string, error) {
		if n == 1 {
			return "", errors.New("HTTP 400")
		}
		return "แมว", nil
	}}
	tr, _ := fastTranslator(p, Config{})
	ctx := context.Background()

	if got := tr.Translate(ctx, "cat"); got != Unavailable {
		t.Fatalf("expected sentinel, got %q", got)
	}
	if tr.IsCached("cat") {
		t.Fatalf("sentinel must not be cached")
	}
	if got := tr.Translate(ctx, "cat"); got != "แมว" {
		t.Fatalf("expected retry on next call, got %q", got)
	}
}

func TestEmptyOrSentinelResultNotCached(t *testing.T) {
	p := &stubProvider{reply: func(text string, n int) (string, error) {
		if text == "blank" {
			return "", nil
		}
		return Unavailable, nil
	}}
	tr, _ := fastTranslator(p, Config{})
	for _, w := range []string{"blank", "echo"} {
		if got := tr.Translate(context.Background(), w); got != Unavailable {
			t.Fatalf("%s: expected sentinel, got %q", w, got)
		}
		if tr.IsCached(w) {
			t.Fatalf("%s: must not be cached", w)
		}
	}
}

func TestRequestsAreSpacedByWatermark(t *testing.T) {
	p := &stubProvider{}
	tr, waits := fastTranslator(p, Config{MinInterval: time.Second})
	ctx := context.Background()
	_ = tr.Translate(ctx, "one")
	_ = tr.Translate(ctx, "two")
	_ = tr.Translate(ctx, "one")
	_ = tr.Translate(ctx, "three")
	if len(*waits) != 2 {
		t.Fatalf("expected two waits, got %v", *waits)
	}
	for _, w := range *waits {
		if w != time.Second {
			t.Fatalf("expected full interval wait, got %s", w)
		}
	}
}

func TestTransientErrorsAreRetried(t *testing.T) {
	p := &stubProvider{reply: func(text string, n int) (string, error) {
		if n < 3 {
			return "", resilience.TransientError{Err: errors.New("HTTP 503")}
		}
		return "ok", nil
	}}
	tr, waits := fastTranslator(p, Config{MaxRetries: 2, RetryBackoff: time.Millisecond})
	if got := tr.Translate(context.Background(), "photosynthesis"); got != "ok" {
		t.Fatalf("expected success after retries, got %q", got)
	}
	if p.total != 3 {
		t.Fatalf("expected 3 attempts, got %d", p.total)
	}
	if len(*waits) != 2 {
		t.Fatalf("each retry must honor the watermark, waits=%v", *waits)
	}
}

func TestRateLimitOpensBreaker(t *testing.T) {
	p := &stubProvider{reply: func(text string, n int) (string, error) {
		return "", resilience.RateLimitError{Provider: "stub"}
	}}
	tr, _ := fastTranslator(p, Config{MaxRetries: 1, RetryBackoff: time.Millisecond, BreakerThreshold: 2, BreakerCooldown: time.Hour})
	ctx := context.Background()
	_ = tr.Translate(ctx, "a")
	calls := p.total
	if got := tr.Translate(ctx, "b"); got != Unavailable {
		t.Fatalf("expected sentinel while breaker open, got %q", got)
	}
	if p.total != calls {
		t.Fatalf("breaker must block requests, %d -> %d", calls, p.total)
	}
}

func TestConcurrentCallsQueue(t *testing.T) {
	p := &stubProvider{}
	tr, _ := fastTranslator(p, Config{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tr.Translate(context.Background(), "mitochondria")
		}()
	}
	wg.Wait()
	if p.Calls("mitochondria") != 1 {
		t.Fatalf("expected a single request for concurrent callers, got %d", p.Calls("mitochondria"))
	}
}

type fixedDetector string

func (d fixedDetector) Detect(string) (string, bool) { return string(d), true }

func TestAutoSourceUsesDetector(t *testing.T) {
	var gotSource string
	p := &stubProvider{}
	tr, _ := fastTranslator(p, Config{})
	tr.detector = fixedDetector("fr")
	tr.provider = providerFunc(func(ctx context.Context, text, source, target string) (string, error) {
		gotSource = source
		return "x", nil
	})
	tr.SetSourceLanguage(AutoLanguage)
	tr.SetTargetLanguage("th-TH")
	_ = tr.Translate(context.Background(), "bonjour")
	if gotSource != "fr" {
		t.Fatalf("expected detected source, got %q", gotSource)
	}
	if _, target := tr.Languages(); target != "th" {
		t.Fatalf("expected normalized target, got %q", target)
	}
}

type providerFunc func(ctx context.Context, text, source, target string) (string, error)

func (f providerFunc) Name() string { return "func" }

func (f providerFunc) Translate(ctx context.Context, text, source, target string) (string, error) {
	return f(ctx, text, source, target)
}

func TestCacheKeepsInsertionOrderOnOverwrite(t *testing.T) {
	c := NewCache(2)
	c.Put("a", "1")
	c.Put("b", "2")
	c.Put("a", "3")
	c.Put("c", "4")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a evicted first despite overwrite")
	}
	if v, _ := c.Get("b"); v != "2" {
		t.Fatalf("expected b retained")
	}
}
