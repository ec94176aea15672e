// Package caption defines the caption line, the relay wire envelope and the
// word tokenizer shared by the presenter, relay and receiver.
package caption

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TypeCaption is the only envelope type on the relay.
const TypeCaption = "caption"

var (
	ErrNotCaption = errors.New("caption: envelope type is not caption")
	ErrEmptyLine  = errors.New("caption: empty line")
)

// Line is a finalized transcript line. Seq is the append order within a store.
type Line struct {
	Seq  uint64
	Text string
}

// Envelope is the JSON wire message: {"type":"caption","line":"...","ts":<epoch ms>}.
type Envelope struct {
	Type string `json:"type"`
	Line string `json:"line"`
	TS   int64  `json:"ts"`
}

func NewEnvelope(line string, at time.Time) Envelope {
	return Envelope{Type: TypeCaption, Line: line, TS: at.UnixMilli()}
}

// Time returns the envelope timestamp.
func (e Envelope) Time() time.Time {
	return time.UnixMilli(e.TS)
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Parse decodes a relay payload. Payloads that are not JSON, carry another
// type, or hold a blank line are rejected.
func Parse(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type != TypeCaption {
		return Envelope{}, fmt.Errorf("%w: %q", ErrNotCaption, env.Type)
	}
	if strings.TrimSpace(env.Line) == "" {
		return Envelope{}, ErrEmptyLine
	}
	return env, nil
}
