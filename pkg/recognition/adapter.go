package recognition

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/livesub/pkg/errorsx"
	"github.com/harunnryd/livesub/pkg/logging"
	"github.com/harunnryd/livesub/pkg/metrics"
	"github.com/harunnryd/livesub/pkg/redact"
	"github.com/harunnryd/livesub/pkg/transcript"
)

const (
	DefaultEndRestartDelay   = 100 * time.Millisecond
	DefaultErrorRestartDelay = 1000 * time.Millisecond
	DefaultSettleDelay       = 100 * time.Millisecond
	DefaultLanguage          = "en-US"
)

// Sink receives recognized text. *transcript.Store satisfies it.
type Sink interface {
	AddLine(text string)
	SetLiveText(text string)
}

var (
	_ Sink       = (*transcript.Store)(nil)
	_ Controller = (*Adapter)(nil)
)

type Config struct {
	Language          string
	EndRestartDelay   time.Duration
	ErrorRestartDelay time.Duration
	SettleDelay       time.Duration
}

func (c Config) withDefaults() Config {
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.EndRestartDelay <= 0 {
		c.EndRestartDelay = DefaultEndRestartDelay
	}
	if c.ErrorRestartDelay <= 0 {
		c.ErrorRestartDelay = DefaultErrorRestartDelay
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	return c
}

// Adapter keeps an engine running while recording is on. Each engine session
// gets a generation number; events carrying an older generation are dropped,
// so the end event that follows our own Stop never schedules a restart.
type Adapter struct {
	mu         sync.Mutex
	cfg        Config
	engine     Engine
	sink       Sink
	ctx        context.Context
	lang       string
	recording  bool
	paused     bool
	restarting bool
	interim    string
	gen        uint64

	observer metrics.Observer
	logger   *slog.Logger
	after    func(d time.Duration, f func())
}

type Option func(*Adapter)

func WithObserver(o metrics.Observer) Option { return func(a *Adapter) { a.observer = o } }

func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = logging.NewComponentLogger(l, "recognition") }
}

func NewAdapter(engine Engine, sink Sink, cfg Config, opts ...Option) *Adapter {
	cfg = cfg.withDefaults()
	a := &Adapter{
		cfg:      cfg,
		engine:   engine,
		sink:     sink,
		lang:     cfg.Language,
		observer: metrics.NoopObserver{},
		logger:   logging.NewComponentLogger(nil, "recognition"),
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start turns recording on and starts the engine. A start failure is
// returned as is and never retried.
func (a *Adapter) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if a.engine == nil {
		a.logger.Error("recognition_unavailable")
		return errorsx.Wrap(ErrEngineUnavailable, errorsx.ReasonRecognitionUnavailable)
	}

	a.mu.Lock()
	if a.recording {
		a.mu.Unlock()
		return nil
	}
	a.recording = true
	a.restarting = false
	a.ctx = ctx
	a.gen++
	gen := a.gen
	lang := a.lang
	a.mu.Unlock()

	a.logger.Info("recognition_starting",
		slog.String("engine", a.engine.Name()),
		slog.String("language", lang))

	if err := a.engine.Start(ctx, Options{Language: lang}, a.emitter(gen)); err != nil {
		a.mu.Lock()
		if a.gen == gen {
			a.recording = false
		}
		a.mu.Unlock()
		a.logger.Error("recognition_start_failed",
			slog.String("engine", a.engine.Name()),
			slog.String("error", err.Error()))
		return errorsx.Wrap(err, errorsx.ReasonRecognitionUnavailable)
	}
	a.stopIfSuperseded(gen)
	return nil
}

// Stop turns recording off, stops the engine and clears the live line.
func (a *Adapter) Stop() {
	a.mu.Lock()
	wasRecording := a.recording
	a.recording = false
	a.restarting = false
	a.interim = ""
	a.gen++
	a.mu.Unlock()

	if a.engine != nil && wasRecording {
		if err := a.engine.Stop(); err != nil {
			a.logger.Debug("recognition_stop_error", slog.String("error", err.Error()))
		}
	}
	if a.sink != nil {
		a.sink.SetLiveText("")
	}
	if wasRecording {
		a.logger.Info("recognition_stopped")
	}
}

// SetPaused shows the paused marker instead of interim text. Final lines
// keep flowing while paused.
func (a *Adapter) SetPaused(paused bool) {
	a.mu.Lock()
	a.paused = paused
	interim := a.interim
	a.mu.Unlock()

	if a.sink == nil {
		return
	}
	if paused {
		a.sink.SetLiveText(transcript.PausedText)
	} else {
		a.sink.SetLiveText(interim)
	}
}

// TogglePause flips the paused state and returns the new value.
func (a *Adapter) TogglePause() bool {
	a.mu.Lock()
	next := !a.paused
	a.mu.Unlock()
	a.SetPaused(next)
	return next
}

// SetLanguage changes the recognition language, restarting the engine
// when recording so the change applies.
func (a *Adapter) SetLanguage(lang string) {
	if lang == "" {
		return
	}
	a.mu.Lock()
	a.lang = lang
	recording := a.recording
	a.mu.Unlock()

	a.logger.Info("recognition_language_set", slog.String("language", lang))
	if recording {
		a.restart("language_change")
	}
}

func (a *Adapter) Recording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recording
}

func (a *Adapter) Paused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paused
}

func (a *Adapter) Language() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lang
}

func (a *Adapter) emitter(gen uint64) func(Event) {
	return func(ev Event) { a.handle(gen, ev) }
}

func (a *Adapter) handle(gen uint64, ev Event) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	switch ev.Type {
	case EventStart:
		a.restarting = false
		a.mu.Unlock()
		a.logger.Debug("recognition_session_started")

	case EventResult:
		interim, final := ev.Split()
		showInterim := interim != "" && !a.paused
		if showInterim {
			a.interim = interim
		}
		if final != "" {
			a.interim = ""
		}
		a.mu.Unlock()
		if a.sink == nil {
			return
		}
		if showInterim {
			a.sink.SetLiveText(interim)
		}
		if final != "" {
			a.sink.AddLine(final)
			a.sink.SetLiveText("")
			a.logger.Debug("recognition_final", redact.Attr("text", final))
		}

	case EventError:
		schedule := Transient(ev.Code) && a.recording && !a.restarting
		a.mu.Unlock()
		a.logger.Warn("recognition_error", slog.String("code", ev.Code))
		if schedule {
			a.scheduleRestart(gen, a.cfg.ErrorRestartDelay, "error_"+ev.Code)
		}

	case EventEnd:
		schedule := a.recording && !a.restarting
		a.mu.Unlock()
		a.logger.Debug("recognition_session_ended", slog.Bool("restart", schedule))
		if schedule {
			a.scheduleRestart(gen, a.cfg.EndRestartDelay, "end")
		}

	default:
		a.mu.Unlock()
	}
}

func (a *Adapter) scheduleRestart(gen uint64, delay time.Duration, reason string) {
	a.after(delay, func() {
		a.mu.Lock()
		ok := a.gen == gen && a.recording && !a.restarting
		a.mu.Unlock()
		if ok {
			a.restart(reason)
		}
	})
}

// restart stops the engine, lets it settle, then starts a fresh session.
// At most one restart is in flight.
func (a *Adapter) restart(reason string) {
	a.mu.Lock()
	if a.restarting || !a.recording {
		a.mu.Unlock()
		a.logger.Debug("recognition_restart_skipped", slog.String("reason", reason))
		return
	}
	a.restarting = true
	a.gen++
	gen := a.gen
	a.mu.Unlock()

	metrics.Record(a.observer, metrics.EventRecognitionRetry, 1, map[string]string{"reason": reason})
	a.logger.Info("recognition_restarting", slog.String("reason", reason))

	if err := a.engine.Stop(); err != nil {
		a.logger.Debug("recognition_stop_error", slog.String("error", err.Error()))
	}

	a.after(a.cfg.SettleDelay, func() {
		a.mu.Lock()
		if a.gen != gen || !a.recording || !a.restarting {
			if a.gen == gen {
				a.restarting = false
			}
			a.mu.Unlock()
			return
		}
		ctx := a.ctx
		lang := a.lang
		a.mu.Unlock()

		if ctx.Err() != nil {
			a.mu.Lock()
			a.restarting = false
			a.mu.Unlock()
			return
		}

		err := a.engine.Start(ctx, Options{Language: lang}, a.emitter(gen))
		a.mu.Lock()
		if a.gen == gen {
			a.restarting = false
		}
		a.mu.Unlock()
		if err != nil {
			a.logger.Error("recognition_restart_failed",
				slog.String("reason", reason),
				slog.String("error", errorsx.Wrap(err, errorsx.ReasonRecognitionRestart).Error()))
			return
		}
		a.stopIfSuperseded(gen)
	})
}

// stopIfSuperseded stops an engine session that was started after Stop or
// another Start raced ahead of it.
func (a *Adapter) stopIfSuperseded(gen uint64) {
	a.mu.Lock()
	stale := a.gen != gen && !a.recording
	a.mu.Unlock()
	if stale {
		_ = a.engine.Stop()
	}
}
