package transcript

import (
	"context"

	"github.com/Vovarama1992/webchat-skin/internal/webchat"
)

type EntryKind string

const (
	KindAgent      EntryKind = "agent"
	KindCustomer   EntryKind = "customer"
	KindSystem     EntryKind = "system"
	KindAutomaton  EntryKind = "automaton"
	KindQuickReply EntryKind = "quick_reply"
)

// Entry — one line of the visible transcript.
type Entry struct {
	ID          int64                     `json:"id"`
	SessionID   string                    `json:"sessionId"`
	Seq         int64                     `json:"seq"`
	Kind        EntryKind                 `json:"kind"`
	Text        string                    `json:"text"`
	Timestamp   string                    `json:"timestamp,omitempty"`
	Widget      *webchat.QuickReplyWidget `json:"widget,omitempty"`
	DialogLinks int                       `json:"dialogLinks,omitempty"`
	CreatedAt   int64                     `json:"createdAt"`
}

// Frame is what the widget receives over its websocket.
type Frame struct {
	Type  string         `json:"type"`
	Entry *Entry         `json:"entry,omitempty"`
	Seq   int64          `json:"seq,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

const (
	FrameEntry        = "entry"
	FrameEntryVisible = "entry.visible"
	FrameReset        = "transcript.reset"
)

// Repo — persistence
type Repo interface {
	SaveEntry(ctx context.Context, e *Entry) error
	ListEntries(ctx context.Context, sessionID string) ([]Entry, error)
}

// Publisher pushes frames to whoever watches a session.
type Publisher interface {
	Publish(sessionID string, frame Frame)
}
