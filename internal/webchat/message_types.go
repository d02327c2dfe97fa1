package webchat

// Vendor message types.
const (
	MessageChatCommunication      = "chat.communication"
	MessageChatCommunicationQueue = "chat.communication.queue"
	MessageChatNeedWait           = "chat.need_wait"
	MessageChatDenied             = "chat.denied"
	MessageChatExit               = "chat.exit"
	MessageChatTransferResponse   = "chat.transfer_response"
	MessageChatSystem             = "chat.system"
	MessageMemberConnected        = "chatroom.member_connected"
	MessageMemberLost             = "chatroom.member_lost"
	MessageAutomatonRequest       = "chat.automaton_request"
)

const StateClosed = "closed"

// Widget types carried in messageData.
const (
	WidgetQuickReply   = "quickreply"
	WidgetYouTubeVideo = "youtube-video"
)

const (
	msgAdviserExited = "Adviser exited chat"
	msgAgentLeft     = "Agent Left Chat."
)
