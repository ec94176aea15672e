// Package transcript holds the bounded list of finalized caption lines plus the
// live interim line, and forwards each new line to a broadcaster.
package transcript

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/livesub/pkg/caption"
	"github.com/harunnryd/livesub/pkg/logging"
	"github.com/harunnryd/livesub/pkg/metrics"
	"github.com/harunnryd/livesub/pkg/redact"
)

const (
	DefaultMaxLines       = 500
	DefaultDebounceWindow = 100 * time.Millisecond

	// PausedText is shown as live text while recognition is paused.
	PausedText = "PAUSED"
)

// ErrSendDeferred is returned (possibly wrapped) by a Broadcaster that
// accepted a line for a later attempt instead of writing it now.
var ErrSendDeferred = errors.New("broadcast deferred")

// Broadcaster receives one envelope per broadcast line.
type Broadcaster interface {
	Send(env caption.Envelope) error
}

// Viewport is the rendering surface for a transcript.
type Viewport interface {
	// AtBottom reports whether the reader is scrolled to the newest line.
	AtBottom() bool
	Render(line caption.Line)
	// Evict removes the n oldest rendered lines.
	Evict(n int)
	ScrollToBottom()
	SetLive(text string)
}

type Config struct {
	MaxLines       int
	DebounceWindow time.Duration
}

type Store struct {
	mu       sync.Mutex
	cfg      Config
	lines    []caption.Line
	nextSeq  uint64
	live     string
	viewport Viewport
	out      Broadcaster
	sendMu   sync.Mutex
	debounce *Debouncer
	observer metrics.Observer
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Store)

func WithViewport(v Viewport) Option { return func(s *Store) { s.viewport = v } }

func WithBroadcaster(b Broadcaster) Option { return func(s *Store) { s.out = b } }

func WithObserver(o metrics.Observer) Option { return func(s *Store) { s.observer = o } }

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = logging.NewComponentLogger(l, "transcript") }
}

func New(cfg Config, opts ...Option) *Store {
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = DefaultMaxLines
	}
	if cfg.DebounceWindow < 0 {
		cfg.DebounceWindow = 0
	} else if cfg.DebounceWindow == 0 {
		cfg.DebounceWindow = DefaultDebounceWindow
	}
	s := &Store{
		cfg:      cfg,
		debounce: NewDebouncer(cfg.DebounceWindow),
		observer: metrics.NoopObserver{},
		logger:   logging.NewComponentLogger(nil, "transcript"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddLine appends a finalized line. Blank text is ignored. The viewport only
// follows the new line when the reader was already at the bottom.
func (s *Store) AddLine(text string) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return
	}

	s.mu.Lock()
	wasAtBottom := true
	if s.viewport != nil {
		wasAtBottom = s.viewport.AtBottom()
	}
	s.nextSeq++
	line := caption.Line{Seq: s.nextSeq, Text: clean}
	s.lines = append(s.lines, line)
	evicted := 0
	if over := len(s.lines) - s.cfg.MaxLines; over > 0 {
		evicted = over
		s.lines = append([]caption.Line(nil), s.lines[over:]...)
	}
	if s.viewport != nil {
		if evicted > 0 {
			s.viewport.Evict(evicted)
		}
		s.viewport.Render(line)
		if wasAtBottom {
			s.viewport.ScrollToBottom()
		}
	}
	count := len(s.lines)
	s.mu.Unlock()

	metrics.Record(s.observer, metrics.EventCaptionAdded, float64(count), nil)
	s.logger.Debug("caption_line_added",
		slog.Uint64("seq", line.Seq),
		redact.Attr("text", clean),
		slog.Bool("was_at_bottom", wasAtBottom))

	s.broadcast(clean)
}

// broadcast offers text to the broadcaster. Only a line the broadcaster
// took, written or deferred, counts as the last broadcast for debouncing.
func (s *Store) broadcast(text string) {
	if s.out == nil {
		return
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.debounce.Repeat(text) {
		metrics.Record(s.observer, metrics.EventCaptionSuppressed, 1, nil)
		s.logger.Debug("caption_broadcast_suppressed", redact.Attr("text", text))
		return
	}
	err := s.out.Send(caption.NewEnvelope(text, s.now()))
	switch {
	case err == nil:
		s.debounce.Mark(text)
		metrics.Record(s.observer, metrics.EventCaptionBroadcast, 1, nil)
	case errors.Is(err, ErrSendDeferred):
		s.debounce.Mark(text)
		metrics.Record(s.observer, metrics.EventCaptionDeferred, 1, nil)
		s.logger.Debug("caption_broadcast_deferred")
	default:
		s.logger.Debug("caption_broadcast_dropped", slog.String("error", err.Error()))
	}
}

// SetLiveText replaces the interim line.
func (s *Store) SetLiveText(text string) {
	s.mu.Lock()
	s.live = text
	if s.viewport != nil {
		s.viewport.SetLive(text)
	}
	s.mu.Unlock()
}

func (s *Store) LiveText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Clear drops every retained line. The live line is left to the caller.
func (s *Store) Clear() {
	s.mu.Lock()
	n := len(s.lines)
	s.lines = nil
	if s.viewport != nil && n > 0 {
		s.viewport.Evict(n)
	}
	s.mu.Unlock()
	s.debounce.Reset()
	s.logger.Debug("transcript_cleared", slog.Int("lines", n))
}

// Lines returns a copy of the retained line texts, oldest first.
func (s *Store) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	for i, l := range s.lines {
		out[i] = l.Text
	}
	return out
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Export joins the retained lines with newlines.
func (s *Store) Export() string {
	return strings.Join(s.Lines(), "\n")
}
