package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const closeWriteWait = time.Second

// Registry tracks open sessions so shutdown can say goodbye to each of them.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*websocket.Conn
	closed   bool
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*websocket.Conn)}
}

// add registers conn under a fresh session id. It reports false once
// CloseAll has run.
func (r *Registry) add(conn *websocket.Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", false
	}
	id := uuid.NewString()
	r.sessions[id] = conn
	return id, true
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll sends a going-away close frame to every session, closes it, and
// refuses sessions registered afterwards. It returns how many were closed.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	r.closed = true
	conns := make([]*websocket.Conn, 0, len(r.sessions))
	for id, conn := range r.sessions {
		conns = append(conns, conn)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
		_ = conn.Close()
	}
	return len(conns)
}
