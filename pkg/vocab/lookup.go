package vocab

import (
	"context"

	"github.com/harunnryd/livesub/pkg/caption"
	"github.com/harunnryd/livesub/pkg/translator"
)

type SaveState string

const (
	CannotSave   SaveState = "cannot_save"
	AlreadySaved SaveState = "already_saved"
	CanSave      SaveState = "can_save"
)

// Translator is the lookup dependency. *translator.Translator satisfies it.
type Translator interface {
	Translate(ctx context.Context, word string) string
}

var _ Translator = (*translator.Translator)(nil)

// Popover is the result of clicking a word.
type Popover struct {
	Word        string
	Translation string
	State       SaveState
}

// Lookup joins translation and saved-word state for a clicked word.
type Lookup struct {
	translator Translator
	store      *Store
}

func NewLookup(t Translator, store *Store) *Lookup {
	return &Lookup{translator: t, store: store}
}

// Show translates word and decides whether it can be saved.
func (l *Lookup) Show(ctx context.Context, word string) Popover {
	clean := caption.NormalizeWord(word)
	p := Popover{Word: clean}
	if clean == "" {
		p.State = CannotSave
		return p
	}
	p.Translation = translator.Unavailable
	if l.translator != nil {
		p.Translation = l.translator.Translate(ctx, clean)
	}
	p.State = l.state(p)
	return p
}

// Save stores the popover's word and returns its new state.
func (l *Lookup) Save(p Popover) (Popover, error) {
	switch p.State = l.state(p); p.State {
	case CannotSave:
		return p, ErrNoTranslation
	case AlreadySaved:
		return p, ErrAlreadySaved
	}
	if l.store == nil {
		return p, ErrNoStore
	}
	if err := l.store.Save(p.Word, p.Translation); err != nil {
		return p, err
	}
	p.State = AlreadySaved
	return p, nil
}

func (l *Lookup) state(p Popover) SaveState {
	switch {
	case p.Translation == "" || p.Translation == translator.Unavailable:
		return CannotSave
	case l.store != nil && l.store.IsSaved(p.Word):
		return AlreadySaved
	default:
		return CanSave
	}
}
