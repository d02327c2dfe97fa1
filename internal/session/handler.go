package session

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Vovarama1992/webchat-skin/internal/webchat"
)

type Handler struct {
	mgr      *Manager
	hub      *Hub
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewHandler(mgr *Manager, hub *Hub, allowedOrigins []string, log zerolog.Logger) *Handler {
	h := &Handler{
		mgr: mgr,
		hub: hub,
		log: log.With().Str("component", "http").Logger(),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)}
	return h
}

type sessionResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Sound bool   `json:"sound"`
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.mgr.Create(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, describe(s))
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		http.Error(w, "missing text", http.StatusBadRequest)
		return
	}

	if err := s.Send(r.Context(), body.Text); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(s))
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClickClose()
	writeJSON(w, http.StatusOK, describe(s))
}

func (h *Handler) ConfirmEnd(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.ConfirmEndChat(); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(s))
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Restore(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(s))
}

func (h *Handler) Sound(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var body struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if body.Active == nil {
		// no value flips the toggle
		s.SetSound(!s.SoundActive())
	} else {
		s.SetSound(*body.Active)
	}
	writeJSON(w, http.StatusOK, describe(s))
}

func (h *Handler) Typing(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.KeyPress()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Links(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var body LinkClick
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.ClickLink(r.Context(), body); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Transcript(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	entries, err := s.Entries(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// Socket streams the session's frames to the browser. Anything the browser
// sends is read and dropped; user actions go through the POST endpoints.
func (h *Handler) Socket(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	h.hub.Add(s.ID, conn)
	defer h.hub.Remove(s.ID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	s, err := h.mgr.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, webchat.ErrIllegalTransition), errors.Is(err, ErrNotEngaged):
		status = http.StatusConflict
	}

	ev := h.log.Warn()
	if status == http.StatusInternalServerError {
		ev = h.log.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Str("request_id", RequestID(r.Context())).Int("status", status).Msg("request failed")

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func describe(s *Session) sessionResponse {
	return sessionResponse{ID: s.ID, State: string(s.State()), Sound: s.SoundActive()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}
