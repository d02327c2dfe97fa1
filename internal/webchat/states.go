package webchat

import (
	"context"

	"github.com/rs/zerolog"
)

type Kind string

const (
	KindNull    Kind = "null"
	KindShown   Kind = "shown"
	KindClosing Kind = "closing"
	KindEngaged Kind = "engaged"
)

// State is one of *NullState, *ShownState, *ClosingState, *EngagedState.
type State interface {
	Kind() Kind
	OnSend(ctx context.Context, text string) error
	OnClickedClose()

	sealed()
}

// Diagnostics for actions the current state does not allow.
const (
	DiagSendNoState     = "State Error: Trying to send text with no state."
	DiagCloseNoState    = "State Error: Trying to close chat with no state."
	DiagSendWhenClosing = "State Error: Trying to send text when closing."
)

// NullState — before the widget is shown. Nothing is allowed.
type NullState struct {
	log zerolog.Logger
}

func NewNullState(log zerolog.Logger) *NullState {
	return &NullState{log: log}
}

func (s *NullState) Kind() Kind { return KindNull }

func (s *NullState) OnSend(_ context.Context, _ string) error {
	s.log.Error().Str("state", string(KindNull)).Msg(DiagSendNoState)
	return nil
}

func (s *NullState) OnClickedClose() {
	s.log.Error().Str("state", string(KindNull)).Msg(DiagCloseNoState)
}

func (s *NullState) sealed() {}

// ShownState — widget visible, no engagement yet. The first message engages;
// the owner builds the engaged state.
type ShownState struct {
	onEngage    func(ctx context.Context, text string) error
	onCloseChat func()
}

func NewShownState(onEngage func(ctx context.Context, text string) error, onCloseChat func()) *ShownState {
	return &ShownState{onEngage: onEngage, onCloseChat: onCloseChat}
}

func (s *ShownState) Kind() Kind { return KindShown }

func (s *ShownState) OnSend(ctx context.Context, text string) error {
	return s.onEngage(ctx, text)
}

func (s *ShownState) OnClickedClose() {
	s.onCloseChat()
}

func (s *ShownState) sealed() {}

// ClosingState — the session is ending; only closing again is accepted.
type ClosingState struct {
	onCloseChat func()
	log         zerolog.Logger
}

func NewClosingState(onCloseChat func(), log zerolog.Logger) *ClosingState {
	return &ClosingState{onCloseChat: onCloseChat, log: log}
}

func (s *ClosingState) Kind() Kind { return KindClosing }

func (s *ClosingState) OnSend(_ context.Context, _ string) error {
	s.log.Error().Str("state", string(KindClosing)).Msg(DiagSendWhenClosing)
	return nil
}

func (s *ClosingState) OnClickedClose() {
	s.onCloseChat()
}

func (s *ClosingState) sealed() {}
