// Package relay is the fan-out WebSocket hub: every frame received from one
// session is forwarded unchanged to every other open session.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harunnryd/livesub/pkg/errorsx"
	"github.com/harunnryd/livesub/pkg/logging"
	"github.com/harunnryd/livesub/pkg/metrics"
	"github.com/harunnryd/livesub/pkg/redact"
)

type Config struct {
	ServerAddr     string   `mapstructure:"server_addr"`
	PublicURL      string   `mapstructure:"public_url"`
	WebsocketPath  string   `mapstructure:"ws_path"`
	StaticDir      string   `mapstructure:"static_dir"`
	StudentPath    string   `mapstructure:"student_path"`
	SendBuffer     int      `mapstructure:"send_buffer"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":3000"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/ws"
	}
	if c.StaticDir == "" {
		c.StaticDir = "dist"
	}
	if c.StudentPath == "" {
		c.StudentPath = "/student.html"
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// ConnectionInfo tells the presenter where students should connect.
type ConnectionInfo struct {
	IP         string `json:"ip"`
	Port       int    `json:"port"`
	StudentURL string `json:"studentUrl"`
	WSURL      string `json:"wsUrl"`
}

type Relay struct {
	cfg      Config
	server   *http.Server
	listener net.Listener
	upgrader websocket.Upgrader
	observer metrics.Observer
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session

	draining atomic.Bool
}

type Option func(*Relay)

func WithObserver(o metrics.Observer) Option { return func(r *Relay) { r.observer = o } }

func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) { r.logger = logging.NewComponentLogger(l, "relay") }
}

func New(cfg Config, opts ...Option) *Relay {
	cfg = cfg.withDefaults()
	r := &Relay{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		observer: metrics.NoopObserver{},
		logger:   logging.NewComponentLogger(nil, "relay"),
		sessions: make(map[string]*session),
	}
	r.upgrader.CheckOrigin = r.checkOrigin
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Name() string { return "relay" }

// Handler returns the full HTTP surface: WebSocket upgrade, connection info,
// health and static files.
func (r *Relay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(r.cfg.WebsocketPath, r)
	mux.HandleFunc("/api/connection-info", r.handleConnectionInfo)
	mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	static := http.FileServer(http.Dir(r.cfg.StaticDir))
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if websocket.IsWebSocketUpgrade(req) {
			r.ServeHTTP(w, req)
			return
		}
		static.ServeHTTP(w, req)
	})
	return mux
}

func (r *Relay) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ln, err := net.Listen("tcp", r.cfg.ServerAddr)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.listener = ln
	r.mu.Unlock()
	r.server = &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           r.Handler(),
	}
	go func() {
		<-ctx.Done()
		_ = r.server.Close()
	}()
	go func() {
		if err := r.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("relay_server_error", slog.String("error", err.Error()))
		}
	}()
	r.logger.Info("relay_listening",
		slog.String("addr", ln.Addr().String()),
		slog.String("ws_path", r.cfg.WebsocketPath),
		slog.String("static_dir", r.cfg.StaticDir))
	return nil
}

// Stop rejects new upgrades and closes every open session.
func (r *Relay) Stop() error {
	r.draining.Store(true)
	if r.server != nil {
		_ = r.server.Close()
	}
	r.mu.Lock()
	for _, sess := range r.sessions {
		_ = sess.close()
	}
	r.sessions = make(map[string]*session)
	r.mu.Unlock()
	return nil
}

// Drain stops accepting upgrades and closes open sessions.
func (r *Relay) Drain() error { return r.Stop() }

// Addr is the bound listen address once Start has returned.
func (r *Relay) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Count returns the number of open sessions.
func (r *Relay) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Relay) ReadyFields() map[string]any {
	info := r.ConnectionInfo()
	return map[string]any{
		"student_url": info.StudentURL,
		"ws_url":      info.WSURL,
	}
}

func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if r.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("relay_upgrade_failed",
			slog.String("reason_code", string(errorsx.ReasonRelayUpgrade)),
			slog.String("error", err.Error()))
		return
	}
	sess := r.attach(conn)
	defer r.detach(sess.id)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		r.logger.Debug("relay_message",
			slog.String("session_id", sess.id),
			redact.Attr("payload", string(msg)))
		r.broadcast(sess.id, msgType, msg)
	}
}

// broadcast forwards one frame to every session except the sender.
func (r *Relay) broadcast(from string, msgType int, msg []byte) {
	r.mu.Lock()
	targets := make([]*session, 0, len(r.sessions))
	for id, sess := range r.sessions {
		if id == from {
			continue
		}
		targets = append(targets, sess)
	}
	r.mu.Unlock()

	metrics.Record(r.observer, metrics.EventRelayMessage, float64(len(targets)), nil)
	for _, sess := range targets {
		if !sess.enqueue(frame{msgType: msgType, data: msg}) {
			metrics.Record(r.observer, metrics.EventRelayDropped, 1, nil)
			r.logger.Debug("relay_frame_dropped",
				slog.String("session_id", sess.id),
				slog.String("reason_code", string(errorsx.ReasonRelaySend)))
		}
	}
}

func (r *Relay) attach(conn *websocket.Conn) *session {
	sess := &session{
		id:     uuid.NewString(),
		conn:   conn,
		sendCh: make(chan frame, r.cfg.SendBuffer),
		logger: r.logger,
	}
	r.mu.Lock()
	r.sessions[sess.id] = sess
	n := len(r.sessions)
	r.mu.Unlock()
	go sess.loop()

	metrics.Record(r.observer, metrics.EventRelayConnect, float64(n), nil)
	r.logger.Info("relay_client_connected",
		slog.String("session_id", sess.id),
		slog.String("remote_addr", conn.RemoteAddr().String()),
		slog.Int("sessions", n))
	return sess
}

func (r *Relay) detach(id string) {
	r.mu.Lock()
	sess := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	if sess == nil {
		return
	}
	_ = sess.close()
	metrics.Record(r.observer, metrics.EventRelayDisconnect, float64(n), nil)
	r.logger.Info("relay_client_disconnected",
		slog.String("session_id", id),
		slog.Int("sessions", n))
}

func (r *Relay) handleConnectionInfo(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(r.ConnectionInfo())
}

// ConnectionInfo builds the student and WebSocket URLs. A configured public
// URL wins; otherwise the first non-loopback IPv4 address is used.
func (r *Relay) ConnectionInfo() ConnectionInfo {
	port := r.port()
	if r.cfg.PublicURL != "" {
		base := strings.TrimRight(r.cfg.PublicURL, "/")
		host := normalizePublicURL(base)
		wsScheme := "ws://"
		if strings.HasPrefix(base, "https://") {
			wsScheme = "wss://"
		}
		return ConnectionInfo{
			IP:         host,
			Port:       port,
			StudentURL: base + r.cfg.StudentPath,
			WSURL:      wsScheme + host + r.cfg.WebsocketPath,
		}
	}
	ip := localIPv4()
	hostPort := net.JoinHostPort(ip, strconv.Itoa(port))
	return ConnectionInfo{
		IP:         ip,
		Port:       port,
		StudentURL: "http://" + hostPort + r.cfg.StudentPath,
		WSURL:      "ws://" + hostPort + r.cfg.WebsocketPath,
	}
}

func (r *Relay) port() int {
	if addr, ok := r.Addr().(*net.TCPAddr); ok && addr != nil {
		return addr.Port
	}
	_, p, err := net.SplitHostPort(r.cfg.ServerAddr)
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(p)
	return n
}

func (r *Relay) checkOrigin(req *http.Request) bool {
	if r.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(req.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range r.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

func localIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "localhost"
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	return "localhost"
}

func normalizePublicURL(v string) string {
	v = strings.TrimPrefix(v, "https://")
	v = strings.TrimPrefix(v, "http://")
	return strings.TrimRight(v, "/")
}

type frame struct {
	msgType int
	data    []byte
}

type session struct {
	id     string
	conn   *websocket.Conn
	sendCh chan frame
	logger *slog.Logger
	mu     sync.Mutex
	closed atomic.Bool
}

// enqueue reports false when the queue is full or the session is closed.
func (s *session) enqueue(f frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	select {
	case s.sendCh <- f:
		return true
	default:
		return false
	}
}

func (s *session) loop() {
	for f := range s.sendCh {
		if err := s.conn.WriteMessage(f.msgType, f.data); err != nil {
			s.logger.Debug("relay_write_failed",
				slog.String("session_id", s.id),
				slog.String("error", err.Error()))
			_ = s.conn.Close()
		}
	}
}

func (s *session) close() error {
	s.mu.Lock()
	if s.closed.CompareAndSwap(false, true) {
		close(s.sendCh)
	}
	s.mu.Unlock()
	return s.conn.Close()
}
