// Package vocab keeps the presenter's saved words with their translations,
// most recently updated first.
package vocab

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/harunnryd/livesub/pkg/caption"
	"github.com/harunnryd/livesub/pkg/errorsx"
	"github.com/harunnryd/livesub/pkg/logging"
	"github.com/harunnryd/livesub/pkg/translator"
)

// StorageKey is the backend key holding the JSON word list.
const StorageKey = "livesub_mywords"

var (
	ErrEmptyWord     = errors.New("vocab: empty word")
	ErrNoTranslation = errors.New("vocab: no usable translation")
	ErrAlreadySaved  = errors.New("vocab: word already saved")
	ErrNoStore       = errors.New("vocab: no saved-word store")
)

type Word struct {
	Word        string    `json:"word"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Row is one display entry. Remove deletes exactly this word.
type Row struct {
	Word        string
	Translation string
	UpdatedAt   time.Time
	Remove      func() error
}

type Store struct {
	mu        sync.Mutex
	backend   Backend
	words     []Word
	listeners []func([]Word)
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = logging.NewComponentLogger(l, "vocab") }
}

// Open loads the saved list from backend. A missing or unreadable list
// starts empty.
func Open(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
		logger:  logging.NewComponentLogger(nil, "vocab"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load()
	return s
}

func (s *Store) load() {
	if s.backend == nil {
		return
	}
	raw, err := s.backend.Load(StorageKey)
	if err != nil {
		s.logger.Error("words_load_failed", slog.String("error", err.Error()))
		return
	}
	if len(raw) == 0 {
		return
	}
	var words []Word
	if err := json.Unmarshal(raw, &words); err != nil {
		s.logger.Error("words_load_failed",
			slog.String("reason", "corrupt list"),
			slog.String("error", err.Error()))
		return
	}
	sortByRecency(words)
	s.words = words
	s.logger.Info("words_loaded", slog.Int("count", len(words)))
}

// Save upserts word. An existing entry keeps CreatedAt and gets a new
// translation and UpdatedAt.
func (s *Store) Save(word, translation string) error {
	key := caption.NormalizeWord(word)
	if key == "" {
		return ErrEmptyWord
	}
	if translation == "" || translation == translator.Unavailable {
		return ErrNoTranslation
	}
	now := s.now()

	s.mu.Lock()
	prev := s.snapshotLocked()
	found := false
	for i := range s.words {
		if s.words[i].Word == key {
			s.words[i].Translation = translation
			s.words[i].UpdatedAt = now
			found = true
			break
		}
	}
	if !found {
		s.words = append(s.words, Word{Word: key, Translation: translation, CreatedAt: now, UpdatedAt: now})
	}
	sortByRecency(s.words)
	return s.commitLocked(prev)
}

// Remove deletes word if present.
func (s *Store) Remove(word string) error {
	key := caption.NormalizeWord(word)
	s.mu.Lock()
	prev := s.snapshotLocked()
	kept := make([]Word, 0, len(s.words))
	for _, w := range s.words {
		if w.Word != key {
			kept = append(kept, w)
		}
	}
	s.words = kept
	return s.commitLocked(prev)
}

func (s *Store) Clear() error {
	s.mu.Lock()
	prev := s.snapshotLocked()
	s.words = nil
	return s.commitLocked(prev)
}

// commitLocked persists the current list and unlocks. The backend is
// authoritative: when the write fails the list reverts to prev and
// listeners are not told.
func (s *Store) commitLocked(prev []Word) error {
	if err := s.persistLocked(); err != nil {
		s.words = prev
		s.mu.Unlock()
		return err
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snapshot)
	return nil
}

func (s *Store) IsSaved(word string) bool {
	_, ok := s.Get(word)
	return ok
}

func (s *Store) Get(word string) (Word, bool) {
	key := caption.NormalizeWord(word)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.words {
		if w.Word == key {
			return w, true
		}
	}
	return Word{}, false
}

// List returns the saved words, most recently updated first.
func (s *Store) List() []Word {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.words)
}

// Rows returns display rows bound to their words.
func (s *Store) Rows() []Row {
	words := s.List()
	rows := make([]Row, len(words))
	for i, w := range words {
		word := w.Word
		rows[i] = Row{
			Word:        w.Word,
			Translation: w.Translation,
			UpdatedAt:   w.UpdatedAt,
			Remove:      func() error { return s.Remove(word) },
		}
	}
	return rows
}

// OnChange registers fn to receive the list after every change.
func (s *Store) OnChange(fn func([]Word)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) notify(words []Word) {
	s.mu.Lock()
	listeners := make([]func([]Word), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(words)
	}
}

func (s *Store) persistLocked() error {
	if s.backend == nil {
		return nil
	}
	raw, err := json.Marshal(s.words)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonWordsPersist)
	}
	if err := s.backend.Store(StorageKey, raw); err != nil {
		s.logger.Error("words_persist_failed", slog.String("error", err.Error()))
		return errorsx.Wrap(err, errorsx.ReasonWordsPersist)
	}
	return nil
}

func (s *Store) snapshotLocked() []Word {
	return append([]Word(nil), s.words...)
}

func sortByRecency(words []Word) {
	sort.SliceStable(words, func(i, j int) bool {
		return words[i].UpdatedAt.After(words[j].UpdatedAt)
	})
}
