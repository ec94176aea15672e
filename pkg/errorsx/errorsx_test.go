package errorsx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonTranslateAPI)
	if Reason(err) != ReasonTranslateAPI {
		t.Fatalf("expected reason %s, got %s", ReasonTranslateAPI, Reason(err))
	}
	if !HasReason(err, ReasonTranslateAPI) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonBroadcastDial)
	second := Wrap(first, ReasonBroadcastSend)
	if Reason(second) != ReasonBroadcastDial {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestReasonSurvivesFmtWrapping(t *testing.T) {
	err := fmt.Errorf("persist words: %w", Wrap(assertErr{}, ReasonWordsPersist))
	if Reason(err) != ReasonWordsPersist {
		t.Fatalf("expected reason through fmt wrap, got %s", Reason(err))
	}
	var target assertErr
	if !errors.As(err, &target) {
		t.Fatalf("expected original error to unwrap")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ReasonRelaySend) != nil {
		t.Fatalf("expected nil")
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown reason for nil")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
