package session

import (
	"sync/atomic"

	"github.com/Vovarama1992/webchat-skin/internal/transcript"
	"github.com/Vovarama1992/webchat-skin/internal/webchat"
)

// container is the server-side stand-in for the widget: the transcript, the
// sound toggle and sound playback, which becomes a frame for the browser.
type container struct {
	sessionID  string
	transcript *transcript.Service
	pub        transcript.Publisher
	sound      atomic.Bool
}

var _ webchat.Container = (*container)(nil)

func (c *container) Transcript() webchat.Transcript { return c.transcript }

func (c *container) IsSoundActive() bool { return c.sound.Load() }

func (c *container) PlayMessageReceivedSound() {
	c.pub.Publish(c.sessionID, transcript.Frame{Type: FrameSound})
}
