package receiver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/livesub/pkg/caption"
	"github.com/harunnryd/livesub/pkg/transports"
	"github.com/harunnryd/livesub/pkg/transports/relay"
)

type refusingDialer struct{}

func (refusingDialer) DialContext(ctx context.Context, url string, h http.Header) (*websocket.Conn, *http.Response, error) {
	return nil, nil, errors.New("connection refused")
}

// recordSleeps captures backoff delays and cancels after n of them.
func recordSleeps(n int, cancel context.CancelFunc) (*[]time.Duration, func(context.Context, time.Duration) error) {
	var delays []time.Duration
	return &delays, func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		if len(delays) >= n {
			cancel()
			return ctx.Err()
		}
		return nil
	}
}

func TestBackoffDoublesToCap(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(Config{URL: "ws://unused"}, nil, WithDialer(refusingDialer{}))
	delays, sleep := recordSleeps(7, cancel)
	c.sleep = sleep

	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	want := []time.Duration{1, 2, 4, 8, 16, 16, 16}
	for i, w := range want {
		if (*delays)[i] != w*time.Second {
			t.Fatalf("delay %d: expected %s, got %s", i, w*time.Second, (*delays)[i])
		}
	}
}

func closingServer(t *testing.T) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBackoffResetsAfterConnect(t *testing.T) {
	url := closingServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(Config{URL: url}, nil)
	delays, sleep := recordSleeps(3, cancel)
	c.sleep = sleep
	_ = c.Run(ctx)
	for i, d := range *delays {
		if d != time.Second {
			t.Fatalf("delay %d: expected 1s after each connect, got %s", i, d)
		}
	}
}

func TestBackoffKeepsGrowingWithoutReset(t *testing.T) {
	url := closingServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reset := false
	c := New(Config{URL: url, ResetBackoffOnConnect: &reset}, nil)
	delays, sleep := recordSleeps(3, cancel)
	c.sleep = sleep
	_ = c.Run(ctx)
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if (*delays)[i] != w {
			t.Fatalf("delay %d: expected %s, got %s", i, w, (*delays)[i])
		}
	}
}

func TestMalformedMessagesAreSkipped(t *testing.T) {
	r := relay.New(relay.Config{})
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	var mu sync.Mutex
	var lines []string
	got := make(chan struct{}, 4)
	var states []transports.State
	c := New(Config{URL: url}, func(env caption.Envelope) {
		mu.Lock()
		lines = append(lines, env.Line)
		mu.Unlock()
		got <- struct{}{}
	}, OnState(func(s transports.State, retry int) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for r.Count() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	presenter, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer presenter.Close()
	for r.Count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	for _, payload := range []string{
		"not json",
		`{"type":"status","line":"x"}`,
		`{"type":"caption","line":"   "}`,
		`{"type":"caption","line":"photosynthesis","ts":1700000000000}`,
	} {
		if err := presenter.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatalf("valid caption never arrived")
	}
	if c.State() != transports.StateOpen {
		t.Fatalf("connection must stay open after malformed frames, state=%s", c.State())
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 1 || lines[0] != "photosynthesis" {
		t.Fatalf("unexpected lines %v", lines)
	}
	if len(states) < 2 || states[0] != transports.StateConnecting || states[1] != transports.StateOpen {
		t.Fatalf("unexpected state sequence %v", states)
	}
}
