// Package stdin is a recognition engine that reads already-recognized text,
// one line per result. Lines starting with "~" are interim results.
//
// With a controller attached, the lines "/pause", "/resume", "/toggle" and
// "/lang <code>" drive the presenter instead of producing captions.
package stdin

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/harunnryd/livesub/pkg/logging"
	"github.com/harunnryd/livesub/pkg/recognition"
)

const InterimPrefix = "~"

const (
	CmdPause  = "/pause"
	CmdResume = "/resume"
	CmdToggle = "/toggle"
	CmdLang   = "/lang"
)

// Engine shares one reader across sessions: a single pump goroutine reads
// lines and the active session consumes them.
type Engine struct {
	r      io.Reader
	lines  chan string
	done   chan struct{}
	pump   sync.Once
	finish sync.Once
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ctrl   recognition.Controller
	logger *slog.Logger
}

func New(r io.Reader) *Engine {
	return &Engine{
		r:      r,
		lines:  make(chan string, 64),
		done:   make(chan struct{}),
		logger: logging.NewComponentLogger(nil, "stdin_recognition"),
	}
}

func (e *Engine) Name() string { return "stdin" }

// SetController enables control lines. Without one they are captions.
func (e *Engine) SetController(c recognition.Controller) {
	e.mu.Lock()
	e.ctrl = c
	e.mu.Unlock()
}

// Done is closed once a session has consumed the last line of the reader.
func (e *Engine) Done() <-chan struct{} { return e.done }

func (e *Engine) Start(ctx context.Context, opts recognition.Options, emit func(recognition.Event)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.r == nil {
		return recognition.ErrEngineUnavailable
	}
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return errors.New("stdin engine already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	e.pump.Do(func() { go e.readLines() })

	e.logger.Info("stdin_session_started", slog.String("language", opts.Language))
	emit(recognition.Event{Type: recognition.EventStart})

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case line, ok := <-e.lines:
				if !ok {
					e.finish.Do(func() { close(e.done) })
					return
				}
				if cmd, ok := e.parseCommand(line); ok {
					if !e.apply(cmd) {
						return
					}
					continue
				}
				if ev, ok := parseLine(line); ok {
					emit(ev)
				}
			}
		}
	}()
	return nil
}

func (e *Engine) Stop() error {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	e.wg.Wait()
	return nil
}

func (e *Engine) readLines() {
	defer close(e.lines)
	scanner := bufio.NewScanner(e.r)
	for scanner.Scan() {
		e.lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		e.logger.Warn("stdin_read_error", slog.String("error", err.Error()))
	}
}

type command struct {
	name string
	arg  string
}

func (e *Engine) parseCommand(line string) (command, bool) {
	e.mu.Lock()
	ctrl := e.ctrl
	e.mu.Unlock()
	if ctrl == nil {
		return command{}, false
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, false
	}
	switch name := strings.ToLower(fields[0]); name {
	case CmdPause, CmdResume, CmdToggle:
		if len(fields) == 1 {
			return command{name: name}, true
		}
	case CmdLang:
		if len(fields) == 2 {
			return command{name: name, arg: fields[1]}, true
		}
	}
	return command{}, false
}

// apply runs cmd and reports whether the session keeps reading. A language
// change while recording restarts the engine, so the session hands the
// reader back and the restarted session carries on from the next line.
func (e *Engine) apply(cmd command) bool {
	e.mu.Lock()
	ctrl := e.ctrl
	e.mu.Unlock()
	e.logger.Info("stdin_command", slog.String("command", cmd.name), slog.String("arg", cmd.arg))
	switch cmd.name {
	case CmdPause:
		ctrl.SetPaused(true)
	case CmdResume:
		ctrl.SetPaused(false)
	case CmdToggle:
		ctrl.TogglePause()
	case CmdLang:
		if !ctrl.Recording() {
			ctrl.SetLanguage(cmd.arg)
			return true
		}
		go ctrl.SetLanguage(cmd.arg)
		return false
	}
	return true
}

func parseLine(line string) (recognition.Event, bool) {
	final := true
	if strings.HasPrefix(line, InterimPrefix) {
		final = false
		line = strings.TrimPrefix(line, InterimPrefix)
	}
	text := strings.TrimSpace(line)
	if text == "" {
		return recognition.Event{}, false
	}
	return recognition.Event{
		Type:    recognition.EventResult,
		Results: []recognition.Hypothesis{{Transcript: text, IsFinal: final}},
	}, true
}

var (
	_ recognition.Engine       = (*Engine)(nil)
	_ recognition.Controllable = (*Engine)(nil)
)
