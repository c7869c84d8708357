package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAIProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		model:  "gpt-4o-mini",
	}
}

func completionHandler(t *testing.T, content string, seen *map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1234567890,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index": 0,
					"message": map[string]any{
						"role":    "assistant",
						"content": content,
					},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     40,
				"completion_tokens": 25,
				"total_tokens":      65,
			},
		})
	}
}

func TestOpenAIProvider_PlainText(t *testing.T) {
	var body map[string]any
	p := newTestOpenAIProvider(t, completionHandler(t, "Задание: решите уравнение 2x + 3 = 7.", &body))

	resp, err := p.Generate(context.Background(), Request{
		System:      "Ты репетитор по математике.",
		Messages:    []Message{{Role: RoleUser, Content: "Составь задание."}},
		MaxTokens:   256,
		Temperature: 0.9,
	})
	require.NoError(t, err)

	assert.Equal(t, "Задание: решите уравнение 2x + 3 = 7.", resp.Text)
	var decoded string
	require.NoError(t, json.Unmarshal(resp.Content, &decoded))
	assert.Equal(t, resp.Text, decoded)
	assert.Equal(t, 40, resp.Usage.InputTokens)
	assert.Equal(t, 25, resp.Usage.OutputTokens)
	assert.Equal(t, "end", resp.StopReason)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.InDelta(t, 0.9, body["temperature"], 0.001)
	assert.EqualValues(t, 256, body["max_completion_tokens"])
	assert.NotContains(t, body, "max_tokens")
}

func TestOpenAIProvider_StructuredOutput(t *testing.T) {
	p := newTestOpenAIProvider(t, completionHandler(t, `{"title":"Уравнения","difficulty":2}`, nil))

	resp, err := p.Generate(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "json"}},
		Schema:   testSchema(),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Уравнения","difficulty":2}`, string(resp.Content))
}

func TestOpenAIProvider_StructuredOutputInvalid(t *testing.T) {
	p := newTestOpenAIProvider(t, completionHandler(t, `{"title":"Уравнения"}`, nil))

	_, err := p.Generate(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "json"}},
		Schema:   testSchema(),
	})
	var inv *ErrInvalidResponse
	require.True(t, errors.As(err, &inv), "got %T", err)
}

func TestOpenAIProvider_RateLimit(t *testing.T) {
	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"type":    "tokens",
				"message": "Rate limit exceeded",
				"code":    "rate_limit_exceeded",
			},
		})
	})

	_, err := p.Generate(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "test"}},
		MaxTokens: 100,
	})
	var rl *ErrRateLimit
	require.True(t, errors.As(err, &rl), "got %T (%v)", err, err)
}

func TestOpenAIProvider_ServerError(t *testing.T) {
	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"type":    "server_error",
				"message": "upstream failed",
			},
		})
	})

	_, err := p.Generate(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "test"}},
	})
	var unavail *ErrProviderUnavailable
	require.True(t, errors.As(err, &unavail), "got %T (%v)", err, err)
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "x", "choices": []any{}})
	})

	_, err := p.Generate(context.Background(), Request{})
	var inv *ErrInvalidResponse
	require.True(t, errors.As(err, &inv), "got %T", err)
}

func TestNewOpenAIProvider(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{Model: "gpt-4o"})
	require.Error(t, err)

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "k", Model: "gpt-4.1", BaseURL: "https://example.test/v1"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", p.ModelID())
}

func TestOpenAIProvider_TruncatedStructuredOutput(t *testing.T) {
	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "x",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": `{"title":"Ура`},
				"finish_reason": "length",
			}},
		})
	})

	_, err := p.Generate(context.Background(), Request{Schema: testSchema()})
	var maxTok *ErrMaxTokensExceeded
	require.True(t, errors.As(err, &maxTok), "got %T", err)
}
