package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harunnryd/livesub/pkg/recognition"
)

type EngineConfig struct {
	// Script is played after every successful Start.
	Script   []recognition.Event
	Interval time.Duration
	// StartErr fails every Start while set.
	StartErr error
	// EndOnStop emits EventEnd from Stop, the way real engines report the
	// end of a session they were asked to close.
	EndOnStop bool
}

// Engine is a scripted recognition engine for tests and demos.
type Engine struct {
	cfg     EngineConfig
	mu      sync.Mutex
	emit    func(recognition.Event)
	cancel  context.CancelFunc
	started bool
	starts  int
	stops   int
	langs   []string
}

func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Name() string { return "mock_recognition" }

func (e *Engine) Start(ctx context.Context, opts recognition.Options, emit func(recognition.Event)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	e.mu.Lock()
	if e.cfg.StartErr != nil {
		err := e.cfg.StartErr
		e.mu.Unlock()
		return err
	}
	if e.started {
		e.mu.Unlock()
		return errors.New("already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.emit = emit
	e.started = true
	e.starts++
	e.langs = append(e.langs, opts.Language)
	script := append([]recognition.Event(nil), e.cfg.Script...)
	interval := e.cfg.Interval
	e.mu.Unlock()

	emit(recognition.Event{Type: recognition.EventStart})
	if len(script) > 0 {
		go func() {
			for _, ev := range script {
				if interval > 0 {
					select {
					case <-runCtx.Done():
						return
					case <-time.After(interval):
					}
				}
				if runCtx.Err() != nil {
					return
				}
				emit(ev)
			}
		}()
	}
	return nil
}

func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = false
	e.stops++
	if e.cancel != nil {
		e.cancel()
	}
	emit := e.emit
	endOnStop := e.cfg.EndOnStop
	e.mu.Unlock()

	if endOnStop && emit != nil {
		emit(recognition.Event{Type: recognition.EventEnd})
	}
	return nil
}

// Emit delivers ev to the current session, as if the engine produced it.
func (e *Engine) Emit(ev recognition.Event) {
	e.mu.Lock()
	emit := e.emit
	e.mu.Unlock()
	if emit != nil {
		emit(ev)
	}
}

// SetStartErr changes the error returned by subsequent Starts.
func (e *Engine) SetStartErr(err error) {
	e.mu.Lock()
	e.cfg.StartErr = err
	e.mu.Unlock()
}

func (e *Engine) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

func (e *Engine) Stops() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stops
}

// Languages lists the language of every started session.
func (e *Engine) Languages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.langs...)
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

var _ recognition.Engine = (*Engine)(nil)
