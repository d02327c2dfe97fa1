package webchat

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const youTubeEmbedTemplate = `<iframe class="video-message" frameborder="0" allowFullScreen="true" webkitallowfullscreen="true" mozallowfullscreen="true" src="https://www.youtube.com/embed/%s"></iframe>`

// YouTubeEmbed renders the transcript markup for a video widget.
func YouTubeEmbed(videoID string) string {
	return fmt.Sprintf(youTubeEmbedTemplate, videoID)
}

// EngagedState — an agent engagement is live. It owns the only vendor
// subscription for as long as it is current.
type EngagedState struct {
	sdk         SDK
	container   Container
	onCloseChat func()
	onEnded     func()
	log         zerolog.Logger

	sub     Subscription
	stopped atomic.Bool
}

type EngagedOption func(*EngagedState)

// WithEngagementEnded registers a callback for notices reporting that the
// agent side has left (closed / chat.exit).
func WithEngagementEnded(fn func()) EngagedOption {
	return func(s *EngagedState) { s.onEnded = fn }
}

func WithLogger(log zerolog.Logger) EngagedOption {
	return func(s *EngagedState) { s.log = log }
}

// NewEngagedState replays pending in order, then subscribes to the vendor
// stream. History is in the transcript before any live message can arrive.
func NewEngagedState(sdk SDK, container Container, pending []Payload, onCloseChat func(), opts ...EngagedOption) *EngagedState {
	s := &EngagedState{
		sdk:         sdk,
		container:   container,
		onCloseChat: onCloseChat,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, p := range pending {
		s.handleMessage(p)
	}
	s.sub = sdk.Subscribe(s.handleMessage)
	return s
}

func (s *EngagedState) Kind() Kind { return KindEngaged }

// OnSend forwards the text to the vendor. The customer echo comes back on the
// message stream, nothing is added locally.
func (s *EngagedState) OnSend(ctx context.Context, text string) error {
	if err := s.sdk.SendMessage(ctx, text); err != nil {
		return errors.Wrap(err, "send message")
	}
	return nil
}

func (s *EngagedState) OnClickedClose() {
	s.onCloseChat()
}

// Stop unsubscribes. Messages still in flight are dropped.
func (s *EngagedState) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
}

func (s *EngagedState) Stopped() bool {
	return s.stopped.Load()
}

func (s *EngagedState) sealed() {}

func (s *EngagedState) handleMessage(p Payload) {
	if s.stopped.Load() {
		s.log.Debug().Str("messageType", p.String("messageType")).Msg("dropping message for stopped engagement")
		return
	}

	ev, ruleName := classify(p)
	transcript := s.container.Transcript()

	switch e := ev.(type) {
	case AgentMessage:
		transcript.AddAgentMsg(e.Text, e.Timestamp)
		s.playSoundIfActive()
	case CustomerMessage:
		transcript.AddCustomerMsg(e.Text, e.Timestamp)
	case SystemNotice:
		transcript.AddSystemMsg(SystemMsg{Msg: e.Text})
		if e.EndsEngagement && s.onEnded != nil {
			s.onEnded()
		}
	case QuickReply:
		transcript.AddQuickReply(e.Widget, e.Text, e.Timestamp)
		s.playSoundIfActive()
	case YouTubeWidget:
		s.processYouTubeVideo(transcript, e)
	case CloseChatCommand:
		s.onCloseChat()
	case Ignored:
		s.log.Debug().
			Str("rule", ruleName).
			Str("reason", e.Reason).
			Msg("message ignored")
	}
}

func (s *EngagedState) processYouTubeVideo(transcript Transcript, e YouTubeWidget) {
	transcript.AddAutomatonMsg(e.Text)
	transcript.AddAutomatonMsg(YouTubeEmbed(e.VideoID))
	s.playSoundIfActive()
}

func (s *EngagedState) playSoundIfActive() {
	if s.container.IsSoundActive() {
		s.container.PlayMessageReceivedSound()
	}
}
