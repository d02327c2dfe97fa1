package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Vovarama1992/webchat-skin/internal/transcript"
)

const hubWriteTimeout = 5 * time.Second

// Hub keeps the browser websockets of every session and broadcasts frames
// to them. A connection that fails a write is dropped.
type Hub struct {
	mu    sync.Mutex
	pools map[string]*pool
	log   zerolog.Logger
}

type pool struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

var _ transcript.Publisher = (*Hub)(nil)

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		pools: map[string]*pool{},
		log:   log.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) Add(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	p, ok := h.pools[sessionID]
	if !ok {
		p = &pool{conns: map[*websocket.Conn]struct{}{}}
		h.pools[sessionID] = p
	}
	h.mu.Unlock()

	p.mu.Lock()
	p.conns[conn] = struct{}{}
	p.mu.Unlock()
}

func (h *Hub) Remove(sessionID string, conn *websocket.Conn) {
	if p := h.pool(sessionID); p != nil {
		p.mu.Lock()
		delete(p.conns, conn)
		p.mu.Unlock()
	}
	_ = conn.Close()
}

func (h *Hub) Count(sessionID string) int {
	p := h.pool(sessionID)
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

func (h *Hub) Publish(sessionID string, f transcript.Frame) {
	p := h.pool(sessionID)
	if p == nil {
		return
	}
	data, err := json.Marshal(f)
	if err != nil {
		h.log.Error().Err(err).Str("type", f.Type).Msg("marshal frame")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for conn := range p.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Warn().Err(err).Str("session_id", sessionID).Msg("ws broadcast failed, dropping connection")
			delete(p.conns, conn)
			_ = conn.Close()
		}
	}
}

// CloseSession closes every connection of the session.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	p := h.pools[sessionID]
	delete(h.pools, sessionID)
	h.mu.Unlock()
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for conn := range p.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		delete(p.conns, conn)
	}
}

func (h *Hub) pool(sessionID string) *pool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pools[sessionID]
}
