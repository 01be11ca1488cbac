package connection

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConfig configures the gorilla/websocket transport.
type WebSocketConfig struct {
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	WriteTimeout     time.Duration // Write deadline for sends
	Header           http.Header   // Extra handshake headers (e.g. Authorization)
	Logger           *slog.Logger
}

// DefaultWebSocketConfig returns sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// WebSocketTransport opens sockets with gorilla/websocket.
type WebSocketTransport struct {
	cfg    WebSocketConfig
	dialer *websocket.Dialer
}

// NewWebSocketTransport creates a transport.
func NewWebSocketTransport(cfg WebSocketConfig) *WebSocketTransport {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWebSocketConfig().WriteTimeout
	}

	return &WebSocketTransport{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// Open dials url in the background.
func (t *WebSocketTransport) Open(url string, h SocketHandler) Socket {
	ctx, cancel := context.WithCancel(context.Background())
	s := &wsSocket{
		cfg:     t.cfg,
		handler: h,
		cancel:  cancel,
	}
	go s.run(ctx, t.dialer, url)
	return s
}

// wsSocket is a single gorilla connection.
type wsSocket struct {
	cfg     WebSocketConfig
	handler SocketHandler
	cancel  context.CancelFunc

	// Write serialization
	writeMu sync.Mutex

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func (s *wsSocket) run(ctx context.Context, dialer *websocket.Dialer, url string) {
	defer s.handler.OnClose()
	defer s.cancel()

	var header http.Header
	if s.cfg.Header != nil {
		header = s.cfg.Header.Clone()
	}

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if !s.isClosed() {
			s.handler.OnError(&TransportError{Op: "dial", Err: err})
		}
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	s.cfg.Logger.Debug("websocket connected", "url", url)
	s.handler.OnOpen()

	s.readLoop(conn)
}

// readLoop delivers inbound frames until the connection fails or is closed.
func (s *wsSocket) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			// Ignore errors after Close() is called
			if s.isClosed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.cfg.Logger.Debug("websocket closed by peer", "error", err)
				return
			}
			s.handler.OnError(&TransportError{Op: "read", Err: err})
			return
		}

		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		s.handler.OnMessage(string(data))
	}
}

// Send writes a text frame.
func (s *wsSocket) Send(payload string) error {
	s.mu.Lock()
	conn, closed := s.conn, s.closed
	s.mu.Unlock()
	if conn == nil || closed {
		return ErrSocketClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

// Close sends a close frame and tears the connection down, or abandons
// an in-flight dial.
func (s *wsSocket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	s.cancel()

	if conn == nil {
		return nil
	}

	s.writeMu.Lock()
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.writeMu.Unlock()

	return conn.Close()
}

func (s *wsSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
