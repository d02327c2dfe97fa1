package nuance

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Vovarama1992/webchat-skin/internal/webchat"
)

var ErrClosed = errors.New("nuance: client closed")

const defaultWriteTimeout = 10 * time.Second

type Config struct {
	URL         string // websocket endpoint
	HistoryURL  string // REST endpoint for engagement history, optional
	Token       string
	DialTimeout time.Duration
}

// Client is one engagement's connection to the vendor chat service.
// Inbound frames are read only once somebody subscribes.
type Client struct {
	cfg          Config
	engagementID string
	conn         *websocket.Conn
	http         *http.Client
	log          zerolog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	handler webchat.MessageHandler
	subID   uint64

	readOnce  sync.Once
	reading   atomic.Bool
	readDone  chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

var (
	_ webchat.RichSDK       = (*Client)(nil)
	_ webchat.HistorySource = (*Client)(nil)
)

type inboundFrame struct {
	Type string          `json:"type,omitempty"`
	Data webchat.Payload `json:"data"`
}

type outboundFrame struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Data     map[string]any  `json:"data,omitempty"`
	Link     *webchat.VALink `json:"link,omitempty"`
	Activity string          `json:"activity,omitempty"`
}

const (
	outMessage     = "message"
	outRichContent = "richContent"
	outDataPass    = "dataPass"
	outVALink      = "vaLink"
	outActivity    = "activity"
)

func Dial(ctx context.Context, cfg Config, engagementID string, log zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("nuance: vendor.url not set")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "nuance: parse url")
	}
	q := u.Query()
	q.Set("engagementID", engagementID)
	u.RawQuery = q.Encode()

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrap(err, "nuance: dial")
	}

	log.Info().Str("engagement_id", engagementID).Msg("[nuance] connected")

	return &Client{
		cfg:          cfg,
		engagementID: engagementID,
		conn:         conn,
		http:         &http.Client{Timeout: 10 * time.Second},
		log:          log.With().Str("component", "nuance").Str("engagement_id", engagementID).Logger(),
		readDone:     make(chan struct{}),
		closed:       make(chan struct{}),
	}, nil
}

type subscription struct {
	c  *Client
	id uint64
}

// Unsubscribe detaches this handler. It does not wait for a delivery that is
// already running.
func (s *subscription) Unsubscribe() {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.c.subID == s.id {
		s.c.handler = nil
	}
}

// Subscribe makes h the only receiver of inbound messages.
func (c *Client) Subscribe(h webchat.MessageHandler) webchat.Subscription {
	c.mu.Lock()
	c.subID++
	id := c.subID
	c.handler = h
	c.mu.Unlock()

	c.readOnce.Do(func() {
		c.reading.Store(true)
		go c.readLoop()
	})
	return &subscription{c: c, id: id}
}

func (c *Client) SendMessage(ctx context.Context, text string) error {
	return c.send(ctx, outboundFrame{Type: outMessage, Text: text})
}

func (c *Client) SendRichContentMessage(ctx context.Context, text string, data map[string]any) error {
	return c.send(ctx, outboundFrame{Type: outRichContent, Text: text, Data: data})
}

func (c *Client) SendDataPass(ctx context.Context, data map[string]any) error {
	return c.send(ctx, outboundFrame{Type: outDataPass, Data: data})
}

func (c *Client) SendVALinkMessage(ctx context.Context, link webchat.VALink) error {
	return c.send(ctx, outboundFrame{Type: outVALink, Link: &link})
}

func (c *Client) SendActivity(ctx context.Context, typing bool) error {
	activity := "stopTyping"
	if typing {
		activity = "startTyping"
	}
	return c.send(ctx, outboundFrame{Type: outActivity, Activity: activity})
}

// History fetches the messages already exchanged in this engagement.
func (c *Client) History(ctx context.Context) ([]webchat.Payload, error) {
	if c.cfg.HistoryURL == "" {
		return nil, nil
	}
	u, err := url.Parse(c.cfg.HistoryURL)
	if err != nil {
		return nil, errors.Wrap(err, "nuance: parse history url")
	}
	q := u.Query()
	q.Set("engagementID", c.engagementID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "nuance: history request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Errorf("nuance: history error: %s body=%s", resp.Status, string(respBody))
	}

	var body struct {
		Messages []inboundFrame `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "nuance: decode history")
	}

	out := make([]webchat.Payload, 0, len(body.Messages))
	for _, m := range body.Messages {
		if m.Data != nil {
			out = append(out, m.Data)
		}
	}
	return out, nil
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)

		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = c.conn.Close()
		c.writeMu.Unlock()

		if c.reading.Load() {
			<-c.readDone
		}
		c.log.Info().Msg("[nuance] closed")
	})
	return err
}

func (c *Client) send(ctx context.Context, f outboundFrame) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	b, err := json.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "nuance: marshal frame")
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return errors.Wrap(err, "nuance: set write deadline")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return errors.Wrapf(err, "nuance: write %s", f.Type)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.readDone)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Warn().Err(err).Msg("[nuance] read stopped")
			}
			return
		}

		var f inboundFrame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Warn().Err(err).Msg("[nuance] bad frame")
			continue
		}
		if f.Data == nil {
			continue
		}

		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()

		if h == nil {
			c.log.Debug().Str("messageType", f.Data.String("messageType")).Msg("[nuance] no subscriber, message dropped")
			continue
		}
		h(f.Data)
	}
}
