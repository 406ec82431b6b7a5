package executor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/tierup/pkg/models"
)

func TestNewAnthropicClient_NoAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewAnthropicClient(AnthropicConfig{})
	require.Error(t, err)
	assert.Equal(t, "ANTHROPIC_API_KEY environment variable is not set", err.Error())
}

func TestNewAnthropicClient_WithEnvVar(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-test-key")

	client, err := NewAnthropicClient(AnthropicConfig{})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestAnthropicClient_Complete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-20241022",
			"content": [{"type": "text", "text": "def test_add():"}, {"type": "text", "text": " assert add(1, 2) == 3"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 12, "output_tokens": 7}
		}`)
	}))
	defer srv.Close()

	client, err := NewAnthropicClient(AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	c, err := client.Complete(context.Background(), "claude-3-5-haiku-20241022", "be terse", "write a test", 256)
	require.NoError(t, err)
	assert.Equal(t, "def test_add(): assert add(1, 2) == 3", c.Text)
	assert.Equal(t, models.NewTokenUsage(12, 7), c.Tokens)

	assert.Equal(t, "claude-3-5-haiku-20241022", body["model"])
	assert.EqualValues(t, 256, body["max_tokens"])
	assert.Contains(t, body, "system")
}

func TestOpenAIClient_Complete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "it('adds', ...)"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 9, "total_tokens": 29}
		}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient("sk-test", srv.URL+"/v1")
	require.NoError(t, err)

	c, err := client.Complete(context.Background(), "gpt-4o-mini", "sys", "write a test", 128)
	require.NoError(t, err)
	assert.Equal(t, "it('adds', ...)", c.Text)
	assert.Equal(t, models.NewTokenUsage(20, 9), c.Tokens)

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "x", "object": "chat.completion", "choices": [], "usage": {}}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient("sk-test", srv.URL+"/v1")
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), "gpt-4o", "", "p", 10)
	assert.ErrorContains(t, err, "no choices")
}

func TestNewOpenAIClient_NoAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIClient("", "")
	assert.Error(t, err)
}

func TestTranslateModelForBedrock(t *testing.T) {
	assert.Equal(t, "us.anthropic.claude-opus-4-5-20251101-v1:0", translateModelForBedrock("claude-opus-4-5-20251101"))
	assert.Equal(t, "my-custom-profile", translateModelForBedrock("my-custom-profile"))
}

func TestPricing(t *testing.T) {
	tests := []struct {
		model string
		want  Price
	}{
		{"claude-opus-4-5-20251101", Price{15, 75}},
		{"claude-sonnet-4-20250514", Price{3, 15}},
		{"claude-3-5-haiku-20241022", Price{0.80, 4}},
		{"gpt-4o-mini", Price{0.15, 0.60}},
		{"gpt-4o", Price{2.50, 10}},
		{"mystery", defaultPrice},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriceFor(tt.model), tt.model)
	}

	assert.InDelta(t, 18.0, TokenCost("claude-sonnet-4-20250514", models.NewTokenUsage(1_000_000, 1_000_000)), 1e-9)
}

func TestTokenTracker(t *testing.T) {
	var tr TokenTracker
	tr.Add("claude-sonnet-4-20250514", models.NewTokenUsage(1000, 1000))
	tr.Add("claude-sonnet-4-20250514", models.NewTokenUsage(1000, 0))

	assert.Equal(t, 2, tr.Calls())
	assert.Equal(t, models.NewTokenUsage(2000, 1000), tr.Usage())
	assert.InDelta(t, 0.021, tr.Cost(), 1e-9)
}
