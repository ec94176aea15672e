package transports

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

// State is the lifecycle of a caption connection.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

// Dialer opens a WebSocket connection. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

var _ Dialer = (*websocket.Dialer)(nil)

// Server is a long-running network endpoint.
type Server interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// ReadyReporter allows servers to expose readiness metadata (e.g., join URLs).
// Implementations are optional and used for informational logging only.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
