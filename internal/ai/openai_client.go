package ai

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

var _ AI = (*OpenAIClient)(nil)

func NewOpenAIClient(cfg OpenAIConfig, log zerolog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai.api_key not set")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(oc),
		model:   model,
		timeout: cfg.Timeout,
		log:     log.With().Str("component", "openai").Logger(),
	}, nil
}

// GetReply sends the system prompt, the dialog and the format guard, in that
// order, and returns the raw completion.
func (c *OpenAIClient) GetReply(ctx context.Context, history []Message) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: AssistantPrompt,
	})
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Text,
		})
	}
	// format guard goes last
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: JSONGuard,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:          c.model,
		Messages:       msgs,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		c.log.Error().Err(err).Msg("[ai] completion failed")
		return "", errors.Wrap(err, "openai completion")
	}

	if len(resp.Choices) == 0 {
		c.log.Warn().Msg("[ai] empty choices")
		return "", nil
	}

	raw := resp.Choices[0].Message.Content
	c.log.Debug().Str("raw", short(raw)).Msg("[ai] reply")
	return raw, nil
}

func short(s string) string {
	if len(s) > 180 {
		return s[:180] + "..."
	}
	return s
}
