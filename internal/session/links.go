package session

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/Vovarama1992/webchat-skin/internal/transcript"
	"github.com/Vovarama1992/webchat-skin/internal/webchat"
)

type linkClickedEvent struct {
	Data struct {
		Address string `json:"address"`
	} `json:"data"`
	Event string `json:"event"`
}

// ClickLink forwards a transcript link click to the vendor:
// responsive links become customer turns, external links and datapass
// attributes become data passes, VA dialog links jump the assistant.
func (s *Session) ClickLink(ctx context.Context, l LinkClick) error {
	if s.machine.Kind() != webchat.KindEngaged {
		return ErrNotEngaged
	}

	if l.Href != "" {
		if err := s.responsiveLink(ctx, l); err != nil {
			return err
		}
		s.pub.Publish(s.ID, transcript.Frame{Type: FrameWidgetsDisable})
	}

	if l.VtzJump != "" {
		link := webchat.VALink{Href: l.Href, Text: l.Text, VtzJump: l.VtzJump, LinkType: l.LinkType}
		if err := s.backend.SendVALinkMessage(ctx, link); err != nil {
			return errors.Wrap(err, "send va link")
		}
	}
	return nil
}

func (s *Session) responsiveLink(ctx context.Context, l LinkClick) error {
	switch {
	case l.MessageData != "":
		text := l.MessageText
		if text == "" {
			text = l.Text
		}
		if data := parseEmbeddedJSON(l.MessageData); data != nil {
			if err := s.backend.SendRichContentMessage(ctx, text, data); err != nil {
				return errors.Wrap(err, "send rich content")
			}
		}
	case l.MessageText != "":
		if err := s.backend.SendMessage(ctx, l.MessageText); err != nil {
			return errors.Wrap(err, "send link message")
		}
	}

	if l.Href != "#" {
		var ev linkClickedEvent
		ev.Data.Address = l.Href
		ev.Event = "linkClicked"
		b, _ := json.Marshal(ev)
		if err := s.backend.SendDataPass(ctx, map[string]any{"ndepVaEvent": string(b)}); err != nil {
			return errors.Wrap(err, "send link datapass")
		}
	}

	if l.Datapass != "" {
		if data := parseEmbeddedJSON(l.Datapass); data != nil {
			if err := s.backend.SendDataPass(ctx, data); err != nil {
				return errors.Wrap(err, "send datapass")
			}
		}
	}
	return nil
}

// parseEmbeddedJSON reads JSON that was HTML-escaped into an attribute.
// Anything that is not a JSON object reads as nil.
func parseEmbeddedJSON(raw string) map[string]any {
	raw = strings.TrimSpace(html.UnescapeString(raw))
	if raw == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
