package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/morioka22/ncb-tts-r2/pkg/errorsx"
)

// WSConfig configures the websocket gateway source.
type WSConfig struct {
	ServerAddr     string   `mapstructure:"server_addr"`
	Path           string   `mapstructure:"path"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (c WSConfig) withDefaults() WSConfig {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.Path == "" {
		c.Path = "/gateway"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// WSSource accepts websocket connections from a gateway relay and feeds
// decoded envelopes to the dispatcher. Command envelopes are answered over
// the same connection with a reply envelope carrying the request's ID.
type WSSource struct {
	cfg        WSConfig
	dispatcher *Dispatcher
	logger     *slog.Logger
	server     *http.Server
	upgrader   websocket.Upgrader

	mu    sync.Mutex
	conns map[*wsConn]struct{}

	draining atomic.Bool
}

func NewWSSource(cfg WSConfig, dispatcher *Dispatcher, logger *slog.Logger) *WSSource {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := &WSSource{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "gateway_ws")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		conns: make(map[*wsConn]struct{}),
	}
	s.upgrader.CheckOrigin = s.checkOrigin
	return s
}

func (s *WSSource) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, s)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.server = &http.Server{
		Addr:              s.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	go func() {
		<-ctx.Done()
		_ = s.server.Close()
	}()
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (s *WSSource) Stop() error {
	s.draining.Store(true)
	if s.server != nil {
		_ = s.server.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.close()
	}
	s.conns = make(map[*wsConn]struct{})
	s.mu.Unlock()
	return nil
}

func (s *WSSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &wsConn{conn: raw, sendCh: make(chan []byte, 256)}
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	go conn.loop()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.close()
	}()

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			return
		}
		env, err := DecodeEnvelope(data)
		if err != nil {
			s.logger.Warn("dropping undecodable gateway event",
				slog.String("reason_code", string(errorsx.Reason(err))),
				slog.String("error", err.Error()))
			continue
		}
		if reply := s.dispatcher.Dispatch(r.Context(), env); reply != nil {
			s.sendReply(conn, env.ID, *reply)
		}
	}
}

type replyEnvelope struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Reply Reply  `json:"reply"`
}

func (s *WSSource) sendReply(conn *wsConn, id string, reply Reply) {
	data, err := json.Marshal(replyEnvelope{Type: "reply", ID: id, Reply: reply})
	if err != nil {
		return
	}
	conn.enqueue(data)
}

func (s *WSSource) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range s.cfg.AllowedOrigins {
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

type wsConn struct {
	conn   *websocket.Conn
	sendCh chan []byte
	closed atomic.Bool
}

func (c *wsConn) enqueue(data []byte) {
	select {
	case c.sendCh <- data:
	default:
	}
}

func (c *wsConn) loop() {
	for msg := range c.sendCh {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (c *wsConn) close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.sendCh)
	}
	return c.conn.Close()
}
