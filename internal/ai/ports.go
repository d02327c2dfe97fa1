package ai

import "context"

// AI is the language model behind the virtual assistant. It knows nothing
// about the webchat or its vendor.
type AI interface {
	GetReply(ctx context.Context, history []Message) (string, error)
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message — one dialog turn
type Message struct {
	Role string
	Text string
}

// Reply is the JSON the model is asked to answer with.
type Reply struct {
	Answer       string   `json:"answer"`
	QuickReplies []string `json:"quickReplies,omitempty"`
	EndChat      bool     `json:"endChat,omitempty"`
}
