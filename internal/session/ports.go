package session

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/Vovarama1992/webchat-skin/internal/webchat"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotEngaged      = errors.New("chat is not engaged")
)

// Backend is the vendor side of one session.
type Backend interface {
	webchat.RichSDK
	webchat.HistorySource
	Close() error
}

// ConnectFunc opens the vendor side for a new session.
type ConnectFunc func(ctx context.Context, sessionID string) (Backend, error)

// Frame types pushed to the widget besides transcript entries.
const (
	FrameState           = "state"
	FrameSound           = "sound.play"
	FrameConfirmEndChat  = "confirm_end_chat"
	FrameEngagementEnded = "engagement.ended"
	FrameWidgetsDisable  = "widgets.disable"
	FrameTeardown        = "teardown"
)

type Options struct {
	RevealDelay     time.Duration
	TypingThreshold time.Duration
	// SoundOn is the initial sound toggle of new sessions.
	SoundOn bool
}

const DefaultTypingThreshold = 3 * time.Second

// LinkClick describes a link the customer clicked inside the transcript.
// Fields mirror the link's href, text and data-* attributes.
type LinkClick struct {
	Href        string `json:"href"`
	Text        string `json:"text"`
	MessageText string `json:"messageText"`
	MessageData string `json:"messageData"`
	Datapass    string `json:"datapass"`
	VtzJump     string `json:"vtzJump"`
	LinkType    string `json:"linkType"`
}
