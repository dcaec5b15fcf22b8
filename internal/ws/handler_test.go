package ws

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	registry := NewRegistry()
	srv := httptest.NewServer(NewHandler(cfg, registry, logger))
	t.Cleanup(srv.Close)
	return srv, registry
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, mt)
	return string(data)
}

func TestEcho(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, Config{MaxMessageSize: 1024})
	conn := dial(t, srv, nil)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	require.Equal(t, "Message text was: hello", readText(t, conn))
}

func TestEchoKeepsOrder(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, Config{})
	conn := dial(t, srv, nil)

	for _, msg := range []string{"a", "b", ""} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	}
	require.Equal(t, "Message text was: a", readText(t, conn))
	require.Equal(t, "Message text was: b", readText(t, conn))
	require.Equal(t, "Message text was: ", readText(t, conn))
}

func TestBinaryFrameClosesWithUnsupportedData(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, Config{})
	conn := dial(t, srv, nil)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseUnsupportedData), "got %v", err)
}

func TestOversizedFrameEndsSession(t *testing.T) {
	t.Parallel()
	srv, registry := newTestServer(t, Config{MaxMessageSize: 8})
	conn := dial(t, srv, nil)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 64))))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.Eventually(t, func() bool { return registry.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestOriginPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origins []string
		origin  func(srv *httptest.Server) string
		allowed bool
	}{
		{"no origin header", nil, func(*httptest.Server) string { return "" }, true},
		{"same origin by default", nil, func(srv *httptest.Server) string { return srv.URL }, true},
		{"cross origin by default", nil, func(*httptest.Server) string { return "http://evil.example" }, false},
		{"allow list match", []string{"http://App.Example"}, func(*httptest.Server) string { return "http://app.example" }, true},
		{"allow list miss", []string{"http://app.example"}, func(*httptest.Server) string { return "http://other.example" }, false},
		{"wildcard", []string{"*"}, func(*httptest.Server) string { return "http://anything.example" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, Config{AllowedOrigins: tt.origins})
			header := http.Header{}
			if o := tt.origin(srv); o != "" {
				header.Set("Origin", o)
			}

			conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
			if resp != nil && resp.Body != nil {
				defer resp.Body.Close()
			}
			if tt.allowed {
				require.NoError(t, err)
				conn.Close()
				return
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestPlainHTTPRequestIsRejected(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, Config{})

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCloseAllSendsGoingAway(t *testing.T) {
	t.Parallel()
	srv, registry := newTestServer(t, Config{})
	first := dial(t, srv, nil)
	second := dial(t, srv, nil)

	// An echo round trip guarantees both sessions are registered.
	for _, c := range []*websocket.Conn{first, second} {
		require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("ping")))
		readText(t, c)
	}
	require.Equal(t, 2, registry.Len())
	require.Equal(t, 2, registry.CloseAll())

	for _, c := range []*websocket.Conn{first, second} {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, _, err := c.ReadMessage()
		require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	}

	late := dial(t, srv, nil)
	require.NoError(t, late.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := late.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	require.Zero(t, registry.Len())
}
