package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Vovarama1992/webchat-skin/internal/webchat"
)

var ErrClosed = errors.New("assistant closed")

const (
	AgentID         = "virtual-assistant"
	UnavailableText = "Sorry, the assistant is unavailable right now. Please try again later."
)

// Assistant plays the vendor's part for a session with no human agents: every
// customer message is echoed back and answered by the model, both delivered
// as vendor payloads. Deliveries happen on the assistant's own goroutine,
// never inside the calling method.
type Assistant struct {
	ai  AI
	log zerolog.Logger
	now func() time.Time

	mu        sync.Mutex
	handler   webchat.MessageHandler
	subID     uint64
	dialog    []Message
	delivered []webchat.Payload
	queue     []string
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

var (
	_ webchat.RichSDK       = (*Assistant)(nil)
	_ webchat.HistorySource = (*Assistant)(nil)
)

func NewAssistant(model AI, log zerolog.Logger) *Assistant {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Assistant{
		ai:     model,
		log:    log.With().Str("component", "assistant").Logger(),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

type assistantSub struct {
	a  *Assistant
	id uint64
}

func (s *assistantSub) Unsubscribe() {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()
	if s.a.subID == s.id {
		s.a.handler = nil
	}
}

func (a *Assistant) Subscribe(h webchat.MessageHandler) webchat.Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subID++
	a.handler = h
	return &assistantSub{a: a, id: a.subID}
}

func (a *Assistant) SendMessage(_ context.Context, text string) error {
	return a.enqueue(text)
}

// SendRichContentMessage treats the picked option's text as the customer's turn.
func (a *Assistant) SendRichContentMessage(_ context.Context, text string, _ map[string]any) error {
	return a.enqueue(text)
}

func (a *Assistant) SendVALinkMessage(_ context.Context, link webchat.VALink) error {
	return a.enqueue(link.Text)
}

// SendDataPass adds the data to the dialog as context for the next reply.
func (a *Assistant) SendDataPass(_ context.Context, data map[string]any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "marshal datapass")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	a.dialog = append(a.dialog, Message{Role: RoleSystem, Text: "Page event: " + string(b)})
	return nil
}

func (a *Assistant) SendActivity(context.Context, bool) error {
	return nil
}

// History returns every payload delivered so far.
func (a *Assistant) History(context.Context) ([]webchat.Payload, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]webchat.Payload(nil), a.delivered...), nil
}

// Close stops the worker. Queued turns are dropped.
func (a *Assistant) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	close(a.done)
	a.wg.Wait()
	return nil
}

func (a *Assistant) enqueue(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.queue = append(a.queue, text)
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
	return nil
}

func (a *Assistant) run() {
	defer a.wg.Done()
	for {
		a.mu.Lock()
		var text string
		pending := len(a.queue) > 0
		if pending {
			text = a.queue[0]
			a.queue = a.queue[1:]
		}
		a.mu.Unlock()

		if !pending {
			select {
			case <-a.wake:
				continue
			case <-a.done:
				return
			}
		}

		a.turn(text)

		select {
		case <-a.done:
			return
		default:
		}
	}
}

func (a *Assistant) turn(text string) {
	a.deliver(a.communication(text, false))

	a.mu.Lock()
	a.dialog = append(a.dialog, Message{Role: RoleUser, Text: text})
	history := append([]Message(nil), a.dialog...)
	a.mu.Unlock()

	raw, err := a.ai.GetReply(a.ctx, history)
	if err != nil {
		if a.ctx.Err() != nil {
			return
		}
		a.log.Error().Err(err).Msg("[assistant] no reply")
		a.deliver(systemPayload(UnavailableText))
		return
	}

	reply := parseReply(raw)
	if reply.Answer == "" {
		a.log.Warn().Str("raw", short(raw)).Msg("[assistant] empty answer")
		a.deliver(systemPayload(UnavailableText))
		return
	}

	a.mu.Lock()
	a.dialog = append(a.dialog, Message{Role: RoleAssistant, Text: reply.Answer})
	a.mu.Unlock()

	for _, p := range a.replyPayloads(reply) {
		a.deliver(p)
	}
}

func (a *Assistant) deliver(p webchat.Payload) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.delivered = append(a.delivered, p)
	h := a.handler
	a.mu.Unlock()

	if h != nil {
		h(p)
	}
}

// parseReply accepts the JSON format and falls back to using the raw text as
// the answer.
func parseReply(raw string) Reply {
	raw = strings.TrimSpace(raw)
	var r Reply
	if err := json.Unmarshal([]byte(raw), &r); err == nil {
		r.Answer = strings.TrimSpace(r.Answer)
		return r
	}
	return Reply{Answer: raw}
}

func (a *Assistant) replyPayloads(r Reply) []webchat.Payload {
	var out []webchat.Payload

	if len(r.QuickReplies) > 0 {
		p := a.communication(r.Answer, true)
		p["messageData"] = quickReplyData(r.QuickReplies)
		out = append(out, p)
	} else {
		out = append(out, a.communication(r.Answer, true))
	}

	if r.EndChat {
		p := a.communication("", true)
		p["messageData"] = `{"command":{"event":{"CloseChat":{}}}}`
		out = append(out, p)
	}
	return out
}

func (a *Assistant) communication(text string, fromAgent bool) webchat.Payload {
	p := webchat.Payload{
		"messageType":      webchat.MessageChatCommunication,
		"messageText":      text,
		"messageTimestamp": strconv.FormatInt(a.now().UnixMilli(), 10),
	}
	if fromAgent {
		p["isAgentMsg"] = true
		p["agentID"] = AgentID
	}
	return p
}

func quickReplyData(options []string) string {
	nodes := make([]map[string]any, 0, len(options))
	for i, o := range options {
		nodes = append(nodes, map[string]any{
			"id":   fmt.Sprintf("option-%d", i),
			"text": o,
		})
	}
	b, _ := json.Marshal(map[string]any{
		"widgetType":      webchat.WidgetQuickReply,
		"widgetView":      "inline",
		"widgetAction":    "",
		"showMessageText": true,
		"nodes":           nodes,
		"transitions":     []any{},
	})
	return string(b)
}

func systemPayload(text string) webchat.Payload {
	return webchat.Payload{
		"messageType":  webchat.MessageChatSystem,
		"display.text": text,
	}
}
