package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Vovarama1992/webchat-skin/internal/transcript"
	"github.com/Vovarama1992/webchat-skin/internal/webchat"
)

type richCall struct {
	Text string
	Data map[string]any
}

// fakeBackend records what the session sends and lets tests push vendor
// messages from their own goroutine.
type fakeBackend struct {
	mu         sync.Mutex
	handler    webchat.MessageHandler
	subID      int
	sent       []string
	rich       []richCall
	datapasses []map[string]any
	vaLinks    []webchat.VALink
	activity   []bool
	history    []webchat.Payload
	historyErr error
	closed     bool
}

type fakeSub struct {
	b  *fakeBackend
	id int
}

func (s fakeSub) Unsubscribe() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.b.subID == s.id {
		s.b.handler = nil
	}
}

func (b *fakeBackend) Subscribe(h webchat.MessageHandler) webchat.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subID++
	b.handler = h
	return fakeSub{b: b, id: b.subID}
}

func (b *fakeBackend) SendMessage(_ context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, text)
	return nil
}

func (b *fakeBackend) SendRichContentMessage(_ context.Context, text string, data map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rich = append(b.rich, richCall{Text: text, Data: data})
	return nil
}

func (b *fakeBackend) SendDataPass(_ context.Context, data map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.datapasses = append(b.datapasses, data)
	return nil
}

func (b *fakeBackend) SendVALinkMessage(_ context.Context, link webchat.VALink) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vaLinks = append(b.vaLinks, link)
	return nil
}

func (b *fakeBackend) SendActivity(_ context.Context, typing bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activity = append(b.activity, typing)
	return nil
}

func (b *fakeBackend) History(context.Context) ([]webchat.Payload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history, b.historyErr
}

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBackend) deliver(p webchat.Payload) {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	if h != nil {
		h(p)
	}
}

type backendCalls struct {
	sent       []string
	rich       []richCall
	datapasses []map[string]any
	vaLinks    []webchat.VALink
	activity   []bool
	closed     bool
}

func (b *fakeBackend) snapshot() backendCalls {
	b.mu.Lock()
	defer b.mu.Unlock()
	return backendCalls{
		sent:       append([]string(nil), b.sent...),
		rich:       append([]richCall(nil), b.rich...),
		datapasses: append([]map[string]any(nil), b.datapasses...),
		vaLinks:    append([]webchat.VALink(nil), b.vaLinks...),
		activity:   append([]bool(nil), b.activity...),
		closed:     b.closed,
	}
}

func newTestManager(t *testing.T, be *fakeBackend) (*Manager, *Hub) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	connect := func(context.Context, string) (Backend, error) { return be, nil }
	mgr := NewManager(connect, transcript.NewMemoryRepo(), hub, Options{
		TypingThreshold: 30 * time.Millisecond,
		SoundOn:         true,
	}, zerolog.Nop())
	t.Cleanup(mgr.Shutdown)
	return mgr, hub
}

func agentPayload(text string) webchat.Payload {
	return webchat.Payload{
		"messageType": webchat.MessageChatCommunication,
		"messageText": text,
		"isAgentMsg":  true,
		"agentID":     "agent-1",
	}
}
