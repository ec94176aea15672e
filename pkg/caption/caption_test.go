package caption

import (
	"errors"
	"testing"
	"time"
)

func TestEnvelopeWireShape(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	b, err := NewEnvelope("hello class", at).Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"caption","line":"hello class","ts":1700000000123}`
	if string(b) != want {
		t.Fatalf("expected %s, got %s", want, string(b))
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	if _, err := Parse([]byte("not JSON")); err == nil {
		t.Fatalf("expected error for non-JSON payload")
	}
	if _, err := Parse([]byte(`{"type":"presence","line":"x"}`)); !errors.Is(err, ErrNotCaption) {
		t.Fatalf("expected ErrNotCaption, got %v", err)
	}
	if _, err := Parse([]byte(`{"type":"caption","line":"   "}`)); !errors.Is(err, ErrEmptyLine) {
		t.Fatalf("expected ErrEmptyLine, got %v", err)
	}
	env, err := Parse([]byte(`{"type":"caption","line":"ok","ts":5}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if env.Line != "ok" || env.TS != 5 {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestNormalizeWord(t *testing.T) {
	if got := NormalizeWord("  Cat "); got != "cat" {
		t.Fatalf("expected cat, got %q", got)
	}
	if got := NormalizeWord("ÉCOLE"); got != "école" {
		t.Fatalf("expected école, got %q", got)
	}
}

func TestTokens(t *testing.T) {
	toks := Tokens("  Hello,   world! it's")
	if len(toks) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(toks))
	}
	if toks[0].Text != "Hello," || toks[0].Key != "hello" {
		t.Fatalf("unexpected first token %+v", toks[0])
	}
	if toks[2].Key != "its" {
		t.Fatalf("expected punctuation stripped, got %q", toks[2].Key)
	}
}
