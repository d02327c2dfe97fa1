package webchat

import "context"

// Transcript — the visible record of a chat. Calls are fire-and-forget:
// implementations must not block the caller on storage or rendering.
type Transcript interface {
	AddAgentMsg(text, timestamp string)
	AddCustomerMsg(text, timestamp string)
	AddSystemMsg(msg SystemMsg)
	AddAutomatonMsg(text string)
	AddQuickReply(widget QuickReplyWidget, text, timestamp string)
}

// Container — what the engaged state needs from the widget around it.
type Container interface {
	Transcript() Transcript
	IsSoundActive() bool
	PlayMessageReceivedSound()
}

type MessageHandler func(Payload)

type Subscription interface {
	Unsubscribe()
}

// SDK — the vendor chat capability the state machine relies on.
// Subscribe replaces any previously registered handler.
type SDK interface {
	Subscribe(h MessageHandler) Subscription
	SendMessage(ctx context.Context, text string) error
}

// RichSDK is implemented by vendor backends that support more than plain text.
type RichSDK interface {
	SDK
	SendRichContentMessage(ctx context.Context, text string, data map[string]any) error
	SendDataPass(ctx context.Context, data map[string]any) error
	SendVALinkMessage(ctx context.Context, link VALink) error
	SendActivity(ctx context.Context, typing bool) error
}

// HistorySource yields the messages of an engagement that already exists at
// the vendor, oldest first.
type HistorySource interface {
	History(ctx context.Context) ([]Payload, error)
}

// VALink is a click on a virtual assistant jump link.
type VALink struct {
	Href     string `json:"href"`
	Text     string `json:"text"`
	VtzJump  string `json:"vtzJump"`
	LinkType string `json:"linkType"`
}
