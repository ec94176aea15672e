// Package translator looks up single-word translations through a remote
// provider, with a bounded cache and a process-wide request spacing.
package translator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/livesub/pkg/caption"
	"github.com/harunnryd/livesub/pkg/errorsx"
	"github.com/harunnryd/livesub/pkg/logging"
	"github.com/harunnryd/livesub/pkg/metrics"
	"github.com/harunnryd/livesub/pkg/resilience"
)

// Unavailable is returned in place of a translation when lookup fails. It is
// never cached and must not be saved.
const Unavailable = "Translation unavailable"

const DefaultMinInterval = time.Second

type Config struct {
	Source           string        `mapstructure:"source"`
	Target           string        `mapstructure:"target"`
	MinInterval      time.Duration `mapstructure:"min_interval"`
	CacheSize        int           `mapstructure:"cache_size"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

func (c Config) withDefaults() Config {
	if c.Source == "" {
		c.Source = "en"
	}
	if c.Target == "" {
		c.Target = "th"
	}
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

type Stats struct {
	Size     int
	MaxSize  int
	Hits     int64
	Requests int64
	Failures int64
}

type Translator struct {
	cfg      Config
	provider Provider
	detector Detector
	cache    *Cache
	retry    resilience.RetryPolicy
	breaker  *resilience.CircuitBreaker
	observer metrics.Observer
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	// reqMu serializes outbound requests so callers queue on the watermark.
	reqMu       sync.Mutex
	lastRequest time.Time

	mu     sync.Mutex
	source string
	target string
	stats  Stats
}

type Option func(*Translator)

func WithDetector(d Detector) Option { return func(t *Translator) { t.detector = d } }

func WithObserver(o metrics.Observer) Option { return func(t *Translator) { t.observer = o } }

func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) { t.logger = logging.NewComponentLogger(l, "translator") }
}

func New(provider Provider, cfg Config, opts ...Option) *Translator {
	cfg = cfg.withDefaults()
	t := &Translator{
		cfg:      cfg,
		provider: provider,
		cache:    NewCache(cfg.CacheSize),
		retry:    resilience.NewRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff),
		breaker:  resilience.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		observer: metrics.NoopObserver{},
		logger:   logging.NewComponentLogger(nil, "translator"),
		now:      time.Now,
		sleep:    sleepContext,
		source:   cfg.Source,
		target:   cfg.Target,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate returns the translation of word, or Unavailable. Empty input
// returns "".
func (t *Translator) Translate(ctx context.Context, word string) string {
	if ctx == nil {
		ctx = context.Background()
	}
	clean := caption.NormalizeWord(word)
	if clean == "" {
		return ""
	}
	source, target := t.languages(clean)
	key := cacheKey(source, target, clean)
	if v, ok := t.cache.Get(key); ok {
		t.count(func(s *Stats) { s.Hits++ })
		metrics.Record(t.observer, metrics.EventTranslateHit, 1, nil)
		return v
	}

	t.reqMu.Lock()
	defer t.reqMu.Unlock()

	// another caller may have filled the slot while we queued
	if v, ok := t.cache.Get(key); ok {
		t.count(func(s *Stats) { s.Hits++ })
		return v
	}
	if t.provider == nil {
		return t.fail(clean, errorsx.Newf(errorsx.ReasonTranslateRequest, "no translation provider configured"))
	}
	if !t.breaker.Allow() {
		return t.fail(clean, errorsx.Wrap(resilience.RateLimitError{Provider: t.provider.Name(), Message: "circuit open"}, errorsx.ReasonTranslateRateLimit))
	}

	var result string
	err := t.retry.DoIf(ctx, resilience.IsTransient, func() error {
		if err := t.waitTurn(ctx); err != nil {
			return err
		}
		t.count(func(s *Stats) { s.Requests++ })
		metrics.Record(t.observer, metrics.EventTranslateRequest, 1, map[string]string{"provider": t.provider.Name()})
		out, err := t.provider.Translate(ctx, clean, source, target)
		if err != nil {
			t.breaker.OnError(err)
			return err
		}
		t.breaker.OnSuccess()
		result = out
		return nil
	})
	if err != nil {
		return t.fail(clean, err)
	}
	if result == "" || result == Unavailable {
		return t.fail(clean, errorsx.Newf(errorsx.ReasonTranslateAPI, "%s returned no translation", t.provider.Name()))
	}
	t.cache.Put(key, result)
	t.logger.Debug("translation_cached",
		slog.String("word", clean),
		slog.String("source", source),
		slog.String("target", target))
	return result
}

// waitTurn blocks until MinInterval has passed since the previous request
// and then claims the slot. Callers hold reqMu.
func (t *Translator) waitTurn(ctx context.Context) error {
	if !t.lastRequest.IsZero() {
		if wait := t.cfg.MinInterval - t.now().Sub(t.lastRequest); wait > 0 {
			if err := t.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	t.lastRequest = t.now()
	return nil
}

func (t *Translator) fail(word string, err error) string {
	t.count(func(s *Stats) { s.Failures++ })
	metrics.Record(t.observer, metrics.EventTranslateFailure, 1, map[string]string{"reason": string(errorsx.Reason(err))})
	t.logger.Warn("translation_failed",
		slog.String("word", word),
		slog.String("reason_code", string(errorsx.Reason(err))),
		slog.String("error", err.Error()))
	return Unavailable
}

// IsCached reports whether word has a cached translation for the current
// language pair.
func (t *Translator) IsCached(word string) bool {
	_, ok := t.Cached(word)
	return ok
}

func (t *Translator) Cached(word string) (string, bool) {
	clean := caption.NormalizeWord(word)
	if clean == "" {
		return "", false
	}
	source, target := t.languages(clean)
	return t.cache.Get(cacheKey(source, target, clean))
}

func (t *Translator) ClearCache() {
	t.cache.Clear()
}

func (t *Translator) Stats() Stats {
	t.mu.Lock()
	s := t.stats
	t.mu.Unlock()
	s.Size = t.cache.Len()
	s.MaxSize = t.cache.Cap()
	return s
}

func (t *Translator) SetTargetLanguage(lang string) {
	if lang == "" {
		return
	}
	t.mu.Lock()
	t.target = baseCode(lang)
	t.mu.Unlock()
}

// SetSourceLanguage accepts an ISO code, a locale such as "th-TH", or "auto".
func (t *Translator) SetSourceLanguage(lang string) {
	if lang == "" {
		return
	}
	t.mu.Lock()
	if lang == AutoLanguage {
		t.source = AutoLanguage
	} else {
		t.source = baseCode(lang)
	}
	t.mu.Unlock()
}

func (t *Translator) Languages() (source, target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.source, t.target
}

// languages resolves "auto" against word. Detection failure falls back to
// English.
func (t *Translator) languages(word string) (string, string) {
	source, target := t.Languages()
	if source != AutoLanguage {
		return source, target
	}
	if t.detector != nil {
		if code, ok := t.detector.Detect(word); ok {
			return code, target
		}
	}
	return "en", target
}

func (t *Translator) count(fn func(*Stats)) {
	t.mu.Lock()
	fn(&t.stats)
	t.mu.Unlock()
}

func cacheKey(source, target, word string) string {
	return source + "|" + target + "|" + word
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
