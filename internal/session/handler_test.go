package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/webchat-skin/internal/transcript"
)

type testServer struct {
	*httptest.Server
	mgr *Manager
	hub *Hub
}

func newTestServer(t *testing.T, be *fakeBackend) *testServer {
	t.Helper()
	mgr, hub := newTestManager(t, be)

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(AccessLog(zerolog.Nop()))
	RegisterRoutes(r, NewHandler(mgr, hub, []string{"https://www.gov.uk"}, zerolog.Nop()))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, mgr: mgr, hub: hub}
}

func (ts *testServer) post(t *testing.T, path, body string) (*http.Response, sessionResponse) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out sessionResponse
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func (ts *testServer) create(t *testing.T) sessionResponse {
	t.Helper()
	resp, out := ts.post(t, "/chat/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, out.ID)
	return out
}

func (ts *testServer) dial(t *testing.T, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat/sessions/" + id + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return ts.hub.Count(id) == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

// frameLog records every frame the socket receives.
type frameLog struct {
	mu     sync.Mutex
	frames []transcript.Frame
}

func watch(conn *websocket.Conn) *frameLog {
	l := &frameLog{}
	go func() {
		for {
			var f transcript.Frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			l.mu.Lock()
			l.frames = append(l.frames, f)
			l.mu.Unlock()
		}
	}()
	return l
}

func (l *frameLog) find(typ string) (transcript.Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.frames) - 1; i >= 0; i-- {
		if l.frames[i].Type == typ {
			return l.frames[i], true
		}
	}
	return transcript.Frame{}, false
}

// wait returns the latest frame of type typ, waiting for one to arrive.
func (l *frameLog) wait(t *testing.T, typ string) transcript.Frame {
	t.Helper()
	var f transcript.Frame
	require.Eventually(t, func() bool {
		var ok bool
		f, ok = l.find(typ)
		return ok
	}, 2*time.Second, 5*time.Millisecond, "waiting for %s", typ)
	return f
}

func TestHandler_CreateSession(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})

	out := ts.create(t)
	assert.Equal(t, "shown", out.State)
	assert.True(t, out.Sound)
}

func TestHandler_Errors(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})
	id := ts.create(t).ID

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown session", "/chat/sessions/nope/messages", `{"text":"hi"}`, http.StatusNotFound},
		{"bad json", "/chat/sessions/" + id + "/messages", `{"text":`, http.StatusBadRequest},
		{"empty text", "/chat/sessions/" + id + "/messages", `{"text":"  "}`, http.StatusBadRequest},
		{"confirm end when shown", "/chat/sessions/" + id + "/confirm-end", "", http.StatusConflict},
		{"link when shown", "/chat/sessions/" + id + "/links", `{"href":"#"}`, http.StatusConflict},
		{"sound bad json", "/chat/sessions/" + id + "/sound", `nope`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := ts.post(t, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestHandler_Sound(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})
	id := ts.create(t).ID

	_, out := ts.post(t, "/chat/sessions/"+id+"/sound", `{"active":false}`)
	assert.False(t, out.Sound)
	_, out = ts.post(t, "/chat/sessions/"+id+"/sound", `{}`)
	assert.True(t, out.Sound)
}

func TestHandler_ChatOverSocket(t *testing.T) {
	be := &fakeBackend{}
	ts := newTestServer(t, be)
	id := ts.create(t).ID
	frames := watch(ts.dial(t, id))

	resp, out := ts.post(t, "/chat/sessions/"+id+"/messages", `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "engaged", out.State)
	assert.Equal(t, map[string]any{"state": "engaged"}, frames.wait(t, FrameState).Data)

	be.deliver(agentPayload("Hi, how can I help?"))
	entry := frames.wait(t, transcript.FrameEntry)
	require.NotNil(t, entry.Entry)
	assert.Equal(t, transcript.KindAgent, entry.Entry.Kind)
	assert.Equal(t, "Hi, how can I help?", entry.Entry.Text)
	frames.wait(t, FrameSound)
	assert.Equal(t, entry.Entry.Seq, frames.wait(t, transcript.FrameEntryVisible).Seq)

	resp, _ = ts.post(t, "/chat/sessions/"+id+"/typing", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.post(t, "/chat/sessions/"+id+"/links", `{"href":"#","text":"Yes","messageText":"Yes"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	frames.wait(t, FrameWidgetsDisable)

	_, out = ts.post(t, "/chat/sessions/"+id+"/close", "")
	assert.Equal(t, "engaged", out.State)
	frames.wait(t, FrameConfirmEndChat)

	_, out = ts.post(t, "/chat/sessions/"+id+"/confirm-end", "")
	assert.Equal(t, "closing", out.State)

	ts.post(t, "/chat/sessions/"+id+"/close", "")
	frames.wait(t, FrameTeardown)

	require.Eventually(t, func() bool {
		resp, err := http.Post(ts.URL+"/chat/sessions/"+id+"/close", "application/json", nil)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNotFound
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"hello", "Yes"}, be.snapshot().sent)
}

func TestHandler_Transcript(t *testing.T) {
	be := &fakeBackend{}
	ts := newTestServer(t, be)
	id := ts.create(t).ID

	ts.post(t, "/chat/sessions/"+id+"/messages", `{"text":"hello"}`)
	be.deliver(agentPayload("answer"))

	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/chat/sessions/" + id + "/transcript")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var body struct {
			Entries []transcript.Entry `json:"entries"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) != nil {
			return false
		}
		return len(body.Entries) == 1 && body.Entries[0].Text == "answer"
	}, time.Second, 10*time.Millisecond)
}

func TestHandler_SocketRejectsForeignOrigin(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})
	id := ts.create(t).ID

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat/sessions/" + id + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://www.gov.uk"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://WWW.gov.uk")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://other.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
