package livesub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/livesub/pkg/logging"
	"github.com/harunnryd/livesub/pkg/metrics"
	"github.com/harunnryd/livesub/pkg/observers"
	"github.com/harunnryd/livesub/pkg/recognition"
	"github.com/harunnryd/livesub/pkg/transcript"
	"github.com/harunnryd/livesub/pkg/transports/broadcast"
)

// ExportTimeFormat matches an ISO timestamp with ':' and '.' made file-safe.
const ExportTimeFormat = "2006-01-02T15-04-05"

type PresenterOptions struct {
	Config Config
	Engine recognition.Engine
	// Broadcaster overrides the relay client built from presenter.broadcast_url.
	Broadcaster transcript.Broadcaster
	Viewport    transcript.Viewport
	Observer    metrics.Observer
	Logger      *slog.Logger
}

// Presenter is one captioning session: engine events feed the transcript,
// and finalized lines go out to the relay.
type Presenter struct {
	cfg     Config
	traceID string
	store   *transcript.Store
	client  *broadcast.Client
	adapter *recognition.Adapter
	engine  recognition.Engine
	logger  *slog.Logger
	now     func() time.Time
}

func NewPresenter(opts PresenterOptions) (*Presenter, error) {
	if opts.Engine == nil {
		return nil, recognition.ErrEngineUnavailable
	}
	traceID := uuid.NewString()
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}
	base = base.With(slog.String("trace_id", traceID))
	var obs metrics.Observer = metrics.NoopObserver{}
	if opts.Observer != nil {
		obs = observers.NewSessionObserver(opts.Observer, traceID)
	}

	p := &Presenter{
		cfg:     opts.Config,
		traceID: traceID,
		engine:  opts.Engine,
		logger:  logging.NewComponentLogger(base, "presenter"),
		now:     time.Now,
	}

	out := opts.Broadcaster
	if out == nil {
		p.client = broadcast.New(broadcast.Config{
			URL:        opts.Config.Presenter.BroadcastURL,
			RetryDelay: opts.Config.Presenter.RetryDelay,
		}, broadcast.WithObserver(obs), broadcast.WithLogger(base))
		out = p.client
	}

	storeOpts := []transcript.Option{
		transcript.WithBroadcaster(out),
		transcript.WithObserver(obs),
		transcript.WithLogger(base),
	}
	if opts.Viewport != nil {
		storeOpts = append(storeOpts, transcript.WithViewport(opts.Viewport))
	}
	p.store = transcript.New(transcript.Config{
		MaxLines:       opts.Config.Presenter.MaxLines,
		DebounceWindow: opts.Config.Presenter.DebounceWindow,
	}, storeOpts...)

	rc := opts.Config.Recognition
	p.adapter = recognition.NewAdapter(opts.Engine, p.store, recognition.Config{
		Language:          rc.Language,
		EndRestartDelay:   rc.EndRestartDelay,
		ErrorRestartDelay: rc.ErrorRestartDelay,
		SettleDelay:       rc.SettleDelay,
	}, recognition.WithObserver(obs), recognition.WithLogger(base))
	if c, ok := opts.Engine.(recognition.Controllable); ok {
		c.SetController(p.adapter)
	}
	return p, nil
}

func (p *Presenter) TraceID() string { return p.traceID }

func (p *Presenter) Transcript() *transcript.Store { return p.store }

func (p *Presenter) Recognition() *recognition.Adapter { return p.adapter }

// Run starts recognition and blocks until ctx ends or a finite engine runs
// out of input. The relay connection is opened up front when possible; a
// failed dial is logged and retried lazily on the first broadcast.
func (p *Presenter) Run(ctx context.Context) error {
	p.logger.Info("presenter_starting",
		slog.String("engine", p.engine.Name()),
		slog.String("language", p.adapter.Language()))

	if p.client != nil {
		if err := p.client.Open(ctx); err != nil {
			p.logger.Warn("presenter_relay_unavailable", slog.String("error", err.Error()))
		}
	}
	if err := p.adapter.Start(ctx); err != nil {
		p.closeClient()
		return fmt.Errorf("start recognition: %w", err)
	}

	var done <-chan struct{}
	if f, ok := p.engine.(interface{ Done() <-chan struct{} }); ok {
		done = f.Done()
	}
	select {
	case <-ctx.Done():
	case <-done:
		p.logger.Info("presenter_input_finished")
	}

	p.adapter.Stop()
	p.closeClient()

	if p.cfg.Presenter.ExportOnStop && p.store.Count() > 0 {
		path, err := p.Export(p.cfg.Presenter.ExportDir)
		if err != nil {
			p.logger.Error("presenter_export_failed", slog.String("error", err.Error()))
			return err
		}
		p.logger.Info("presenter_exported", slog.String("path", path), slog.Int("lines", p.store.Count()))
	}
	p.logger.Info("presenter_stopped", slog.Int("lines", p.store.Count()))
	return nil
}

// Export writes the transcript to dir/livesub-transcript-<timestamp>.txt.
func (p *Presenter) Export(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	name := ExportFileName(p.now())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(p.store.Export()), 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

func ExportFileName(at time.Time) string {
	return "livesub-transcript-" + at.UTC().Format(ExportTimeFormat) + ".txt"
}

func (p *Presenter) closeClient() {
	if p.client == nil {
		return
	}
	if err := p.client.Close(); err != nil && !errors.Is(err, broadcast.ErrNotOpen) {
		p.logger.Debug("presenter_relay_close", slog.String("error", err.Error()))
	}
}
