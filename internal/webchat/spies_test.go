package webchat

import (
	"context"
	"sync"
)

type transcriptCall struct {
	Method string
	Args   []any
}

type spyTranscript struct {
	mu    sync.Mutex
	calls []transcriptCall
}

func (s *spyTranscript) record(method string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, transcriptCall{Method: method, Args: args})
}

func (s *spyTranscript) AddAgentMsg(text, timestamp string) {
	s.record("AddAgentMsg", text, timestamp)
}

func (s *spyTranscript) AddCustomerMsg(text, timestamp string) {
	s.record("AddCustomerMsg", text, timestamp)
}

func (s *spyTranscript) AddSystemMsg(msg SystemMsg) {
	s.record("AddSystemMsg", msg)
}

func (s *spyTranscript) AddAutomatonMsg(text string) {
	s.record("AddAutomatonMsg", text)
}

func (s *spyTranscript) AddQuickReply(widget QuickReplyWidget, text, timestamp string) {
	s.record("AddQuickReply", widget, text, timestamp)
}

func (s *spyTranscript) Calls() []transcriptCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transcriptCall(nil), s.calls...)
}

func (s *spyTranscript) CallsTo(method string) []transcriptCall {
	var out []transcriptCall
	for _, c := range s.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

type spyContainer struct {
	transcript  *spyTranscript
	soundActive bool
	soundChecks int
	soundPlays  int
}

func newSpyContainer() *spyContainer {
	return &spyContainer{transcript: &spyTranscript{}}
}

func (c *spyContainer) Transcript() Transcript { return c.transcript }

func (c *spyContainer) IsSoundActive() bool {
	c.soundChecks++
	return c.soundActive
}

func (c *spyContainer) PlayMessageReceivedSound() {
	c.soundPlays++
}

type fakeSubscription struct {
	sdk *fakeSDK
	idx int
}

func (s *fakeSubscription) Unsubscribe() {
	s.sdk.mu.Lock()
	defer s.sdk.mu.Unlock()
	s.sdk.active[s.idx] = false
	s.sdk.unsubscribed++
}

type fakeSDK struct {
	mu           sync.Mutex
	handlers     []MessageHandler
	active       []bool
	sent         []string
	unsubscribed int
	sendErr      error
}

func (f *fakeSDK) Subscribe(h MessageHandler) Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.active {
		f.active[i] = false
	}
	f.handlers = append(f.handlers, h)
	f.active = append(f.active, true)
	return &fakeSubscription{sdk: f, idx: len(f.handlers) - 1}
}

func (f *fakeSDK) SendMessage(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return f.sendErr
}

// handler returns the i-th registered handler regardless of whether it is
// still active, the way a vendor might call a stale callback.
func (f *fakeSDK) handler(i int) MessageHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[i]
}

// deliver sends p to the active handler, if any.
func (f *fakeSDK) deliver(p Payload) {
	f.mu.Lock()
	var h MessageHandler
	for i, ok := range f.active {
		if ok {
			h = f.handlers[i]
		}
	}
	f.mu.Unlock()
	if h != nil {
		h(p)
	}
}

func (f *fakeSDK) subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeSDK) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}
