package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Vovarama1992/webchat-skin/internal/transcript"
	"github.com/Vovarama1992/webchat-skin/internal/webchat"
)

const activityTimeout = 5 * time.Second

// Manager owns the live sessions.
type Manager struct {
	connect ConnectFunc
	repo    transcript.Repo
	hub     *Hub
	opts    Options
	log     zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(connect ConnectFunc, repo transcript.Repo, hub *Hub, opts Options, log zerolog.Logger) *Manager {
	return &Manager{
		connect:  connect,
		repo:     repo,
		hub:      hub,
		opts:     opts,
		log:      log.With().Str("component", "sessions").Logger(),
		sessions: map[string]*Session{},
	}
}

// Session is one customer's chat: the state machine, its vendor backend and
// its transcript.
type Session struct {
	ID string

	machine    *webchat.Machine
	backend    Backend
	transcript *transcript.Service
	container  *container
	typing     *typist
	pub        transcript.Publisher
	log        zerolog.Logger

	closeOnce sync.Once
}

// Create opens the vendor side and shows the chat.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()

	backend, err := m.connect(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "connect vendor")
	}

	log := m.log.With().Str("session_id", id).Logger()
	ts := transcript.New(id, m.repo, m.hub, m.opts.RevealDelay, log)
	c := &container{sessionID: id, transcript: ts, pub: m.hub}
	c.sound.Store(m.opts.SoundOn)

	s := &Session{
		ID:         id,
		backend:    backend,
		transcript: ts,
		container:  c,
		pub:        m.hub,
		log:        log,
	}
	s.typing = newTypist(m.opts.TypingThreshold, s.sendActivity)
	s.machine = webchat.NewMachine(backend, c, s.hooks(m), log)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if err := s.machine.Show(); err != nil {
		m.Remove(id)
		return nil, err
	}

	log.Info().Msg("[sessions] created")
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.Wrap(ErrSessionNotFound, id)
	}
	return s, nil
}

// Remove closes the session and forgets it. Unknown ids are ignored.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.close(m.hub)
		m.log.Info().Str("session_id", id).Msg("[sessions] removed")
	}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Remove(id)
	}
}

// hooks run under the machine lock; nothing here may call back into it.
func (s *Session) hooks(m *Manager) webchat.Hooks {
	state := func(k webchat.Kind) func() {
		return func() {
			s.publish(FrameState, map[string]any{"state": string(k)})
		}
	}
	return webchat.Hooks{
		Shown:           state(webchat.KindShown),
		Engaged:         state(webchat.KindEngaged),
		Closing:         state(webchat.KindClosing),
		ConfirmEndChat:  func() { s.publish(FrameConfirmEndChat, nil) },
		EngagementEnded: func() { s.publish(FrameEngagementEnded, nil) },
		Teardown: func() {
			s.publish(FrameTeardown, nil)
			// closing the backend waits for its reader, which may be
			// waiting for the machine lock we hold
			go m.Remove(s.ID)
		},
	}
}

func (s *Session) publish(typ string, data map[string]any) {
	s.pub.Publish(s.ID, transcript.Frame{Type: typ, Data: data})
}

func (s *Session) State() webchat.Kind { return s.machine.Kind() }

func (s *Session) Send(ctx context.Context, text string) error {
	return s.machine.Send(ctx, text)
}

func (s *Session) ClickClose() {
	s.machine.ClickClose()
}

func (s *Session) ConfirmEndChat() error {
	return s.machine.ConfirmEndChat()
}

// Restore re-enters the engagement from the vendor's history. The transcript
// starts a new view so nothing is shown twice.
func (s *Session) Restore(ctx context.Context) error {
	if _, err := webchat.Next(s.machine.Kind(), webchat.TriggerRestore); err != nil {
		return err
	}
	history, err := s.backend.History(ctx)
	if err != nil {
		return errors.Wrap(err, "load history")
	}
	s.transcript.Reset()
	return s.machine.Restore(history)
}

func (s *Session) SetSound(active bool) {
	s.container.sound.Store(active)
}

func (s *Session) SoundActive() bool {
	return s.container.IsSoundActive()
}

func (s *Session) KeyPress() {
	s.typing.KeyPress()
}

func (s *Session) Entries(ctx context.Context) ([]transcript.Entry, error) {
	return s.transcript.Entries(ctx)
}

// sendActivity tells the vendor about typing, only while engaged.
func (s *Session) sendActivity(typing bool) {
	if s.machine.Kind() != webchat.KindEngaged {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), activityTimeout)
	defer cancel()
	if err := s.backend.SendActivity(ctx, typing); err != nil {
		s.log.Warn().Err(err).Bool("typing", typing).Msg("send activity")
	}
}

func (s *Session) close(hub *Hub) {
	s.closeOnce.Do(func() {
		s.typing.Close()
		if err := s.backend.Close(); err != nil {
			s.log.Warn().Err(err).Msg("close backend")
		}
		s.transcript.Close()
		hub.CloseSession(s.ID)
	})
}
