package connection

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// recordingHandler collects socket events.
type recordingHandler struct {
	mu       sync.Mutex
	messages []string
	errs     []error
	opens    int

	opened chan struct{}
	closed chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		opened: make(chan struct{}, 1),
		closed: make(chan struct{}, 1),
	}
}

func (h *recordingHandler) OnOpen() {
	h.mu.Lock()
	h.opens++
	h.mu.Unlock()
	h.opened <- struct{}{}
}

func (h *recordingHandler) OnClose() {
	h.closed <- struct{}{}
}

func (h *recordingHandler) OnMessage(payload string) {
	h.mu.Lock()
	h.messages = append(h.messages, payload)
	h.mu.Unlock()
}

func (h *recordingHandler) OnError(err error) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
}

func (h *recordingHandler) snapshot() ([]string, []error, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...), append([]error(nil), h.errs...), h.opens
}

func waitChan(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
}

func TestWebSocketTransport_OpenAndMessages(t *testing.T) {
	testMessages := []string{
		`{"type": "test", "data": 1}`,
		`{"type": "test", "data": 2}`,
		`{"type": "test", "data": 3}`,
	}

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, msg := range testMessages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		// Keep connection open
		time.Sleep(time.Second)
	})
	defer server.Close()

	h := newRecordingHandler()
	sock := NewWebSocketTransport(DefaultWebSocketConfig()).Open(wsURL(server), h)
	defer sock.Close()

	waitChan(t, h.opened, "open")
	require.Eventually(t, func() bool {
		msgs, _, _ := h.snapshot()
		return len(msgs) == len(testMessages)
	}, 2*time.Second, 5*time.Millisecond)

	msgs, errs, opens := h.snapshot()
	assert.Equal(t, testMessages, msgs)
	assert.Empty(t, errs)
	assert.Equal(t, 1, opens)
}

func TestWebSocketTransport_Send(t *testing.T) {
	received := make(chan string, 1)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- string(msg)
		}
	})
	defer server.Close()

	h := newRecordingHandler()
	sock := NewWebSocketTransport(DefaultWebSocketConfig()).Open(wsURL(server), h)
	defer sock.Close()

	waitChan(t, h.opened, "open")
	require.NoError(t, sock.Send(`{"test": "message"}`))

	select {
	case msg := <-received:
		assert.Equal(t, `{"test": "message"}`, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for server to receive message")
	}
}

func TestWebSocketTransport_SendBeforeOpen(t *testing.T) {
	h := newRecordingHandler()
	// Nothing listens here; the dial fails in the background.
	sock := NewWebSocketTransport(DefaultWebSocketConfig()).Open("ws://127.0.0.1:1", h)
	defer sock.Close()

	assert.ErrorIs(t, sock.Send("test"), ErrSocketClosed)
}

func TestWebSocketTransport_DialFailure(t *testing.T) {
	h := newRecordingHandler()
	NewWebSocketTransport(DefaultWebSocketConfig()).Open("ws://127.0.0.1:1", h)

	waitChan(t, h.closed, "close")

	_, errs, opens := h.snapshot()
	assert.Equal(t, 0, opens)
	require.Len(t, errs, 1)

	var te *TransportError
	require.ErrorAs(t, errs[0], &te)
	assert.Equal(t, "dial", te.Op)
}

func TestWebSocketTransport_PeerNormalClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second),
		)
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	h := newRecordingHandler()
	NewWebSocketTransport(DefaultWebSocketConfig()).Open(wsURL(server), h)

	waitChan(t, h.opened, "open")
	waitChan(t, h.closed, "close")

	_, errs, _ := h.snapshot()
	assert.Empty(t, errs)
}

func TestWebSocketTransport_AbnormalClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Drop the TCP connection without a close frame.
		conn.UnderlyingConn().Close()
	})
	defer server.Close()

	h := newRecordingHandler()
	NewWebSocketTransport(DefaultWebSocketConfig()).Open(wsURL(server), h)

	waitChan(t, h.opened, "open")
	waitChan(t, h.closed, "close")

	_, errs, _ := h.snapshot()
	require.Len(t, errs, 1)

	var te *TransportError
	require.ErrorAs(t, errs[0], &te)
	assert.Equal(t, "read", te.Op)
}

func TestWebSocketTransport_DoubleClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(time.Second)
	})
	defer server.Close()

	h := newRecordingHandler()
	sock := NewWebSocketTransport(DefaultWebSocketConfig()).Open(wsURL(server), h)
	waitChan(t, h.opened, "open")

	// First close should succeed
	assert.NoError(t, sock.Close())
	// Second close should be no-op
	assert.NoError(t, sock.Close())

	waitChan(t, h.closed, "close")

	_, errs, _ := h.snapshot()
	assert.Empty(t, errs, "local close must not report an error")
	assert.ErrorIs(t, sock.Send("late"), ErrSocketClosed)
}

func TestWebSocketTransport_Header(t *testing.T) {
	gotAuth := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer server.Close()

	cfg := DefaultWebSocketConfig()
	cfg.Header = http.Header{"Authorization": []string{"Bearer secret"}}

	h := newRecordingHandler()
	sock := NewWebSocketTransport(cfg).Open(wsURL(server), h)
	defer sock.Close()

	select {
	case auth := <-gotAuth:
		assert.Equal(t, "Bearer secret", auth)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for handshake")
	}
}
