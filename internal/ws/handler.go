// Package ws serves the echo websocket.
package ws

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// EchoPrefix is prepended to every text frame sent back to the peer.
const EchoPrefix = "Message text was: "

type Config struct {
	AllowedOrigins []string
	MaxMessageSize int64
}

type Handler struct {
	upgrader       websocket.Upgrader
	maxMessageSize int64
	registry       *Registry
	logger         *slog.Logger
}

func NewHandler(cfg Config, registry *Registry, logger *slog.Logger) *Handler {
	policy := newOriginPolicy(cfg.AllowedOrigins, logger)
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
		maxMessageSize: cfg.MaxMessageSize,
		registry:       registry,
		logger:         logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	id, ok := h.registry.add(conn)
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(closeWriteWait))
		return
	}
	defer h.registry.remove(id)

	logger := h.logger.With("session", id, "remote", r.RemoteAddr)
	logger.Info("websocket session opened")
	h.serve(conn, logger)
	logger.Info("websocket session closed")
}

func (h *Handler) serve(conn *websocket.Conn, logger *slog.Logger) {
	if h.maxMessageSize > 0 {
		conn.SetReadLimit(h.maxMessageSize)
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			logReadError(logger, err)
			return
		}

		if messageType != websocket.TextMessage {
			logger.Warn("rejecting non-text frame", "type", messageType)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "text frames only"),
				time.Now().Add(closeWriteWait))
			return
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(EchoPrefix+string(data))); err != nil {
			logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func logReadError(logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		logger.Warn("websocket message exceeded read limit")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		logger.Debug("websocket peer closed", "error", err)
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		logger.Debug("websocket connection closed", "error", err)
	case websocket.IsUnexpectedCloseError(err):
		logger.Warn("unexpected websocket close", "error", err)
	default:
		logger.Warn("websocket read error", "error", err)
	}
}
