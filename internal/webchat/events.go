package webchat

// Event — a classified vendor payload. Closed set, see the variants below.
type Event interface {
	isEvent()
}

type CustomerMessage struct {
	Text      string
	Timestamp string
}

type AgentMessage struct {
	Text      string
	AgentID   string
	Timestamp string
}

// SystemNotice is rendered through the System channel. EndsEngagement marks
// notices that report the agent side has gone.
type SystemNotice struct {
	Text           string
	EndsEngagement bool
}

type QuickReply struct {
	Widget    QuickReplyWidget
	Text      string
	Timestamp string
}

type YouTubeWidget struct {
	VideoID   string
	Text      string
	Timestamp string
}

type CloseChatCommand struct{}

type Ignored struct {
	Reason string
}

func (CustomerMessage) isEvent()  {}
func (AgentMessage) isEvent()     {}
func (SystemNotice) isEvent()     {}
func (QuickReply) isEvent()       {}
func (YouTubeWidget) isEvent()    {}
func (CloseChatCommand) isEvent() {}
func (Ignored) isEvent()          {}

// QuickReplyWidget is the structured widget from messageData. Nodes and
// transitions are kept as decoded so every nested field survives.
type QuickReplyWidget struct {
	WidgetType      string `json:"widgetType"`
	WidgetView      string `json:"widgetView"`
	WidgetAction    string `json:"widgetAction"`
	ShowMessageText bool   `json:"showMessageText"`
	Nodes           []any  `json:"nodes"`
	Transitions     []any  `json:"transitions"`
}

// SystemMsg is the argument shape of Transcript.AddSystemMsg.
type SystemMsg struct {
	Msg string `json:"msg"`
}
