package webchat

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type Trigger string

const (
	TriggerShow       Trigger = "show"
	TriggerEngage     Trigger = "engage"
	TriggerClose      Trigger = "close"
	TriggerConfirmEnd Trigger = "confirm_end"
	TriggerRestore    Trigger = "restore"
)

var ErrIllegalTransition = errors.New("illegal state transition")

// transitions is the whole lifecycle. Closing is terminal: closing again only
// tears the widget down.
var transitions = map[Kind]map[Trigger]Kind{
	KindNull: {
		TriggerShow:    KindShown,
		TriggerRestore: KindEngaged,
	},
	KindShown: {
		TriggerEngage:  KindEngaged,
		TriggerClose:   KindClosing,
		TriggerRestore: KindEngaged,
	},
	KindEngaged: {
		TriggerClose:      KindEngaged,
		TriggerConfirmEnd: KindClosing,
		TriggerRestore:    KindEngaged,
	},
	KindClosing: {
		TriggerClose: KindClosing,
	},
}

// Next returns the state kind reached from `from` on t.
func Next(from Kind, t Trigger) (Kind, error) {
	if to, ok := transitions[from][t]; ok {
		return to, nil
	}
	return from, errors.Wrapf(ErrIllegalTransition, "%s from %s", t, from)
}

// Hooks are the machine's effects on the widget. Any of them may be nil.
type Hooks struct {
	Shown           func()
	Engaged         func()
	ConfirmEndChat  func()
	Closing         func()
	Teardown        func()
	EngagementEnded func()
}

// Machine owns the current state. Every entry point, vendor callbacks
// included, runs under one lock, so states see one event at a time.
type Machine struct {
	mu        sync.Mutex
	state     State
	sdk       SDK
	container Container
	hooks     Hooks
	log       zerolog.Logger
}

func NewMachine(sdk SDK, container Container, hooks Hooks, log zerolog.Logger) *Machine {
	m := &Machine{
		container: container,
		hooks:     hooks,
		log:       log.With().Str("component", "chat_machine").Logger(),
	}
	m.sdk = &serialSDK{SDK: sdk, m: m}
	m.state = NewNullState(m.log)
	return m
}

func (m *Machine) Kind() Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Kind()
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Show() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := Next(m.state.Kind(), TriggerShow); err != nil {
		return err
	}
	m.enter(NewShownState(m.engage, m.closeShown))
	call(m.hooks.Shown)
	return nil
}

func (m *Machine) Send(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.OnSend(ctx, text)
}

func (m *Machine) ClickClose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.OnClickedClose()
}

// ConfirmEndChat ends the engagement after the user confirmed the popup.
func (m *Machine) ConfirmEndChat() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := Next(m.state.Kind(), TriggerConfirmEnd); err != nil {
		return err
	}
	m.enter(NewClosingState(m.teardown, m.log))
	call(m.hooks.Closing)
	return nil
}

// Restore re-enters Engaged for an engagement that already exists at the
// vendor, replaying pending first. A new state and subscription are created
// every time.
func (m *Machine) Restore(pending []Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := Next(m.state.Kind(), TriggerRestore); err != nil {
		return err
	}
	m.enterEngaged(pending)
	return nil
}

// --- callbacks handed to states; the lock is already held ---

func (m *Machine) engage(ctx context.Context, text string) error {
	if _, err := Next(m.state.Kind(), TriggerEngage); err != nil {
		return err
	}
	engaged := m.enterEngaged(nil)
	return engaged.OnSend(ctx, text)
}

func (m *Machine) closeShown() {
	if _, err := Next(m.state.Kind(), TriggerClose); err != nil {
		m.log.Error().Err(err).Msg("close from shown")
		return
	}
	m.enter(NewClosingState(m.teardown, m.log))
	call(m.hooks.Closing)
}

func (m *Machine) requestEndChat() {
	call(m.hooks.ConfirmEndChat)
}

func (m *Machine) teardown() {
	call(m.hooks.Teardown)
}

func (m *Machine) enterEngaged(pending []Payload) *EngagedState {
	// stop the old engagement before the new one subscribes
	m.enter(nil)
	engaged := NewEngagedState(m.sdk, m.container, pending, m.requestEndChat,
		WithEngagementEnded(func() { call(m.hooks.EngagementEnded) }),
		WithLogger(m.log.With().Str("state", string(KindEngaged)).Logger()),
	)
	m.state = engaged
	call(m.hooks.Engaged)
	return engaged
}

func (m *Machine) enter(next State) {
	if cur, ok := m.state.(*EngagedState); ok && State(cur) != next {
		cur.Stop()
	}
	if next != nil {
		m.state = next
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

// serialSDK routes vendor callbacks through the machine lock.
type serialSDK struct {
	SDK
	m *Machine
}

func (s *serialSDK) Subscribe(h MessageHandler) Subscription {
	return s.SDK.Subscribe(func(p Payload) {
		s.m.mu.Lock()
		defer s.m.mu.Unlock()
		h(p)
	})
}
