// Package broadcast owns the presenter's outbound caption connection.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/livesub/pkg/caption"
	"github.com/harunnryd/livesub/pkg/errorsx"
	"github.com/harunnryd/livesub/pkg/logging"
	"github.com/harunnryd/livesub/pkg/metrics"
	"github.com/harunnryd/livesub/pkg/transcript"
	"github.com/harunnryd/livesub/pkg/transports"
)

const DefaultRetryDelay = 100 * time.Millisecond

// ErrNotOpen is returned when a line cannot be written or deferred.
var ErrNotOpen = errors.New("broadcast connection not open")

// ErrDeferred is returned when a line is held for one retry while the
// connection opens. It matches transcript.ErrSendDeferred.
var ErrDeferred = fmt.Errorf("broadcast connecting: %w", transcript.ErrSendDeferred)

type Config struct {
	URL              string        `mapstructure:"url"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

func (c Config) withDefaults() Config {
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 5 * time.Second
	}
	return c
}

// Client sends caption envelopes to the relay. The zero state is idle; the
// first Send opens the connection in the background.
type Client struct {
	cfg      Config
	dialer   transports.Dialer
	observer metrics.Observer
	logger   *slog.Logger
	now      func() time.Time
	after    func(d time.Duration, f func())

	mu          sync.Mutex
	ctx         context.Context
	conn        *websocket.Conn
	state       transports.State
	ownerClosed bool

	writeMu sync.Mutex
}

var _ transcript.Broadcaster = (*Client)(nil)

type Option func(*Client)

func WithDialer(d transports.Dialer) Option { return func(c *Client) { c.dialer = d } }

func WithObserver(o metrics.Observer) Option { return func(c *Client) { c.observer = o } }

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.NewComponentLogger(l, "broadcast") }
}

func New(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		observer: metrics.NoopObserver{},
		logger:   logging.NewComponentLogger(nil, "broadcast"),
		now:      time.Now,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		ctx:   context.Background(),
		state: transports.StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) State() transports.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open dials the relay and blocks until the connection is open or fails.
func (c *Client) Open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.state == transports.StateOpen || c.state == transports.StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.ctx = ctx
	c.ownerClosed = false
	c.state = transports.StateConnecting
	c.mu.Unlock()
	return c.dial(ctx)
}

func (c *Client) dial(ctx context.Context) error {
	c.logger.Info("broadcast_connecting", slog.String("url", c.cfg.URL))
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)

	c.mu.Lock()
	if err != nil {
		c.state = transports.StateClosed
		c.mu.Unlock()
		c.logger.Warn("broadcast_connect_failed",
			slog.String("reason_code", string(errorsx.ReasonBroadcastDial)),
			slog.String("error", err.Error()))
		return errorsx.Wrap(err, errorsx.ReasonBroadcastDial)
	}
	if c.ownerClosed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrNotOpen
	}
	c.conn = conn
	c.state = transports.StateOpen
	c.mu.Unlock()

	c.logger.Info("broadcast_connected", slog.String("url", c.cfg.URL))
	go c.readLoop(conn)
	return nil
}

// Send writes env when open. While connecting it schedules one deferred
// attempt and returns ErrDeferred; when closed it drops the line and reopens
// in the background.
func (c *Client) Send(env caption.Envelope) error {
	c.mu.Lock()
	state := c.state
	switch state {
	case transports.StateOpen:
		conn := c.conn
		c.mu.Unlock()
		return c.write(conn, env)

	case transports.StateIdle:
		c.openInBackgroundLocked()
		c.mu.Unlock()
		c.deferSend(env)
		return ErrDeferred

	case transports.StateConnecting:
		c.mu.Unlock()
		c.deferSend(env)
		return ErrDeferred

	default:
		reopen := !c.ownerClosed
		if reopen {
			c.openInBackgroundLocked()
		}
		c.mu.Unlock()
		c.logger.Debug("broadcast_dropped_closed", slog.Bool("reopening", reopen))
		return ErrNotOpen
	}
}

func (c *Client) openInBackgroundLocked() {
	c.state = transports.StateConnecting
	ctx := c.ctx
	go func() { _ = c.dial(ctx) }()
}

func (c *Client) deferSend(env caption.Envelope) {
	c.after(c.cfg.RetryDelay, func() {
		c.mu.Lock()
		open := c.state == transports.StateOpen
		conn := c.conn
		c.mu.Unlock()
		if !open {
			c.logger.Debug("broadcast_deferred_dropped")
			return
		}
		env.TS = c.now().UnixMilli()
		_ = c.write(conn, env)
	})
}

func (c *Client) write(conn *websocket.Conn, env caption.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.markClosed(conn)
		return errorsx.Wrap(err, errorsx.ReasonBroadcastSend)
	}
	metrics.Record(c.observer, metrics.EventRelayMessage, 1, map[string]string{"direction": "out"})
	return nil
}

// readLoop discards inbound frames and notices when the relay goes away.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			c.markClosed(conn)
			return
		}
	}
}

func (c *Client) markClosed(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = transports.StateClosed
	c.mu.Unlock()
	_ = conn.Close()
	c.logger.Warn("broadcast_closed", slog.String("note", "captions resume on next send"))
}

// Close shuts the connection; later sends drop without reopening until Open
// is called again.
func (c *Client) Close() error {
	c.mu.Lock()
	c.ownerClosed = true
	conn := c.conn
	c.conn = nil
	c.state = transports.StateClosed
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return conn.Close()
}
