// Package receiver is the student side: it follows the relay, hands each
// caption line to a handler and reconnects with exponential backoff.
package receiver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/livesub/pkg/caption"
	"github.com/harunnryd/livesub/pkg/configutil"
	"github.com/harunnryd/livesub/pkg/errorsx"
	"github.com/harunnryd/livesub/pkg/logging"
	"github.com/harunnryd/livesub/pkg/metrics"
	"github.com/harunnryd/livesub/pkg/redact"
	"github.com/harunnryd/livesub/pkg/resilience"
	"github.com/harunnryd/livesub/pkg/transports"
)

type Config struct {
	URL       string        `mapstructure:"url"`
	BaseDelay time.Duration `mapstructure:"base_delay"`
	MaxDelay  time.Duration `mapstructure:"max_delay"`
	// ResetBackoffOnConnect restarts the delay sequence after every
	// successful connect. Defaults to true.
	ResetBackoffOnConnect *bool         `mapstructure:"reset_backoff_on_connect"`
	HandshakeTimeout      time.Duration `mapstructure:"handshake_timeout"`
}

func (c Config) withDefaults() Config {
	if c.BaseDelay <= 0 {
		c.BaseDelay = resilience.DefaultBackoffBase
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = resilience.DefaultBackoffMax
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 5 * time.Second
	}
	return c
}

type Client struct {
	cfg      Config
	reset    bool
	handler  func(caption.Envelope)
	onState  func(transports.State, int)
	dialer   transports.Dialer
	observer metrics.Observer
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	state transports.State
}

type Option func(*Client)

func WithDialer(d transports.Dialer) Option { return func(c *Client) { c.dialer = d } }

func WithObserver(o metrics.Observer) Option { return func(c *Client) { c.observer = o } }

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.NewComponentLogger(l, "receiver") }
}

// OnState registers a callback for state changes. retry is the attempt
// number the next backoff delay is computed from.
func OnState(fn func(state transports.State, retry int)) Option {
	return func(c *Client) { c.onState = fn }
}

func New(cfg Config, handler func(caption.Envelope), opts ...Option) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:      cfg,
		reset:    configutil.BoolValue(cfg.ResetBackoffOnConnect, true),
		handler:  handler,
		dialer:   &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		observer: metrics.NoopObserver{},
		logger:   logging.NewComponentLogger(nil, "receiver"),
		sleep:    sleepContext,
		state:    transports.StateIdle,
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

// Run keeps a connection to the relay until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	retry := 0
	for {
		if err := ctx.Err(); err != nil {
			c.setState(transports.StateClosed, retry)
			return err
		}
		c.setState(transports.StateConnecting, retry)
		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			c.logger.Warn("receiver_connect_failed",
				slog.String("reason_code", string(errorsx.ReasonReceiverDial)),
				slog.String("error", err.Error()),
				slog.Int("retry", retry))
		} else {
			if c.reset {
				retry = 0
			}
			c.setState(transports.StateOpen, retry)
			c.logger.Info("receiver_connected", slog.String("url", c.cfg.URL))
			c.consume(ctx, conn)
		}

		if err := ctx.Err(); err != nil {
			c.setState(transports.StateClosed, retry)
			return err
		}
		delay := resilience.Backoff(c.cfg.BaseDelay, c.cfg.MaxDelay, retry)
		c.setState(transports.StateClosed, retry)
		metrics.Record(c.observer, metrics.EventReceiverReconnect, float64(delay.Milliseconds()), nil)
		c.logger.Warn("receiver_closed_retrying",
			slog.Duration("delay", delay),
			slog.Int("retry", retry))
		if err := c.sleep(ctx, delay); err != nil {
			c.setState(transports.StateClosed, retry)
			return err
		}
		retry++
	}
}

// consume reads until the connection drops. Malformed frames are skipped.
func (c *Client) consume(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Debug("receiver_read_ended", slog.String("error", err.Error()))
			}
			return
		}
		env, err := caption.Parse(msg)
		if err != nil {
			c.logger.Warn("receiver_message_discarded",
				slog.String("reason_code", string(errorsx.ReasonReceiverDecode)),
				slog.String("error", err.Error()),
				redact.Attr("payload", string(msg)))
			continue
		}
		if c.handler != nil {
			c.handler(env)
		}
	}
}

func (c *Client) setState(s transports.State, retry int) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed && c.onState != nil {
		c.onState(s, retry)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
