package webchat

// rule is one entry of the classification table. Rules are evaluated top-down
// and the first match decides, even when its classify step yields Ignored.
type rule struct {
	name     string
	match    func(Payload) bool
	classify func(Payload) Event
}

var rules = []rule{
	{
		name:     "chat communication",
		match:    messageTypeIn(MessageChatCommunication),
		classify: classifyCommunication,
	},
	{
		name:     "queue or wait",
		match:    messageTypeIn(MessageChatCommunicationQueue, MessageChatNeedWait),
		classify: systemNotice("messageText"),
	},
	{
		name:     "chat denied",
		match:    func(p Payload) bool { return p.String("thank_you_image_label") != "" },
		classify: systemNotice("thank_you_image_label"),
	},
	{
		name:     "closed",
		match:    func(p Payload) bool { return p.String("state") == StateClosed },
		classify: classifyClosed,
	},
	{
		name:     "member change",
		match:    messageTypeIn(MessageChatTransferResponse, MessageMemberConnected, MessageMemberLost),
		classify: systemNotice("client.display.text", "display.text"),
	},
	{
		name:     "chat system",
		match:    messageTypeIn(MessageChatSystem),
		classify: systemNotice("client.display.text", "display.text"),
	},
}

// Classify maps a raw vendor payload to an Event. It never fails: anything
// not covered by the rule table is Ignored.
func Classify(p Payload) Event {
	ev, _ := classify(p)
	return ev
}

// classify also reports the name of the rule that matched ("" for none).
func classify(p Payload) (Event, string) {
	for _, r := range rules {
		if r.match(p) {
			return r.classify(p), r.name
		}
	}
	return Ignored{Reason: "unhandled message type " + p.String("messageType")}, ""
}

func messageTypeIn(types ...string) func(Payload) bool {
	return func(p Payload) bool {
		mt := p.String("messageType")
		for _, t := range types {
			if mt == t {
				return true
			}
		}
		return false
	}
}

func systemNotice(keys ...string) func(Payload) Event {
	return func(p Payload) Event {
		text := p.firstString(keys...)
		if text == "" {
			return Ignored{Reason: "system notice without text"}
		}
		return SystemNotice{Text: text}
	}
}

func classifyCommunication(p Payload) Event {
	text := p.firstString("messageText", "chatFinalText")
	ts := p.String("messageTimestamp")

	if data := p.messageData(); data != nil {
		if hasCloseChatCommand(data) {
			return CloseChatCommand{}
		}
		switch Payload(data).String("widgetType") {
		case WidgetQuickReply:
			return QuickReply{Widget: extractQuickReply(data), Text: text, Timestamp: ts}
		case WidgetYouTubeVideo:
			if id := Payload(data).String("videoId"); id != "" {
				return YouTubeWidget{VideoID: id, Text: text, Timestamp: ts}
			}
		}
	}

	if text == "" {
		return Ignored{Reason: "chat communication without text"}
	}
	if p.Truthy("isAgentMsg") {
		return AgentMessage{Text: text, AgentID: p.String("agentID"), Timestamp: ts}
	}
	return CustomerMessage{Text: text, Timestamp: ts}
}

func classifyClosed(p Payload) Event {
	if p.String("messageType") != MessageChatExit {
		return SystemNotice{Text: msgAgentLeft, EndsEngagement: true}
	}
	if !hasAgentFields(p) {
		return SystemNotice{Text: msgAdviserExited, EndsEngagement: true}
	}
	if text := p.String("display.text"); text != "" {
		return SystemNotice{Text: text, EndsEngagement: true}
	}
	return SystemNotice{Text: msgAdviserExited, EndsEngagement: true}
}

func hasAgentFields(p Payload) bool {
	return p.String("agentID") != "" || p.Truthy("isAgentMsg") || p.String("user.type") == "agent"
}

// hasCloseChatCommand looks for {"command":{"event":{"CloseChat": ...}}}.
// Only the presence of the key matters.
func hasCloseChatCommand(data map[string]any) bool {
	cmd, ok := data["command"].(map[string]any)
	if !ok {
		return false
	}
	ev, ok := cmd["event"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = ev["CloseChat"]
	return ok
}

func extractQuickReply(data map[string]any) QuickReplyWidget {
	d := Payload(data)
	w := QuickReplyWidget{
		WidgetType:      d.String("widgetType"),
		WidgetView:      d.String("widgetView"),
		WidgetAction:    d.String("widgetAction"),
		ShowMessageText: d.Truthy("showMessageText"),
	}
	w.Nodes, _ = data["nodes"].([]any)
	w.Transitions, _ = data["transitions"].([]any)
	return w
}
