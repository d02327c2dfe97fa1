package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpenAIClient_GetReply(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"answer\":\"hi\"}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)

	raw, err := c.GetReply(context.Background(), []Message{
		{Role: RoleUser, Text: "hello"},
		{Role: RoleAssistant, Text: "hi there"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"hi"}`, raw)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, AssistantPrompt, got.Messages[0].Content)
	assert.Equal(t, "hello", got.Messages[1].Content)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.Equal(t, JSONGuard, got.Messages[3].Content)
}

func TestOpenAIClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)

	_, err = c.GetReply(context.Background(), nil)
	assert.Error(t, err)
}
