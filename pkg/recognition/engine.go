// Package recognition drives a speech recognition engine and feeds its
// results into a transcript, restarting the engine when it drops out.
package recognition

import (
	"context"
	"errors"
)

// ErrEngineUnavailable is returned when no usable engine is configured.
var ErrEngineUnavailable = errors.New("speech recognition engine unavailable")

// Engine is the contract for any recognition backend.
type Engine interface {
	// Name returns the engine name for logging.
	Name() string
	// Start begins a recognition session. Every event of the session is
	// delivered through emit, in order, until Stop returns.
	Start(ctx context.Context, opts Options, emit func(Event)) error
	Stop() error
}

type Options struct {
	Language string
}

// Controller is the presenter-facing control surface. *Adapter satisfies it.
type Controller interface {
	SetPaused(paused bool)
	TogglePause() bool
	SetLanguage(lang string)
	Recording() bool
}

// Controllable engines read control input in-band and drive c with it.
type Controllable interface {
	SetController(c Controller)
}

type EventType string

const (
	EventStart  EventType = "start"
	EventResult EventType = "result"
	EventError  EventType = "error"
	EventEnd    EventType = "end"
)

// Error codes carried by EventError.
const (
	CodeNoSpeech     = "no-speech"
	CodeAudioCapture = "audio-capture"
	CodeNetwork      = "network"
	CodeNotAllowed   = "not-allowed"
	CodeAborted      = "aborted"
)

// Hypothesis is the best alternative of one recognition result.
type Hypothesis struct {
	Transcript string
	IsFinal    bool
}

// Event is one engine notification. Results and ResultIndex are set for
// EventResult, Code for EventError.
type Event struct {
	Type        EventType
	ResultIndex int
	Results     []Hypothesis
	Code        string
}

// Transient reports whether an error code should trigger a restart.
func Transient(code string) bool {
	switch code {
	case CodeNoSpeech, CodeAudioCapture, CodeNetwork:
		return true
	default:
		return false
	}
}

// Split concatenates the interim and final pieces from ResultIndex onwards.
func (e Event) Split() (interim, final string) {
	start := e.ResultIndex
	if start < 0 {
		start = 0
	}
	for i := start; i < len(e.Results); i++ {
		if e.Results[i].IsFinal {
			final += e.Results[i].Transcript
		} else {
			interim += e.Results[i].Transcript
		}
	}
	return interim, final
}
