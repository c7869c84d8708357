package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenRouterProvider(t *testing.T) {
	t.Run("default model", func(t *testing.T) {
		p, err := NewOpenRouterProvider(OpenRouterConfig{APIKey: "sk-or-test", Model: DefaultTaskModel})
		require.NoError(t, err)
		assert.Equal(t, "google/gemini-2.5-flash", p.ModelID())
	})

	t.Run("empty API key", func(t *testing.T) {
		_, err := NewOpenRouterProvider(OpenRouterConfig{Model: DefaultTaskModel})
		require.Error(t, err)
	})

	t.Run("empty model", func(t *testing.T) {
		_, err := NewOpenRouterProvider(OpenRouterConfig{APIKey: "sk-or-test"})
		require.Error(t, err)
	})

	t.Run("model IDs pass through unmapped", func(t *testing.T) {
		p, err := NewOpenRouterProvider(OpenRouterConfig{APIKey: "sk-or-test", Model: "gpt-4o"})
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", p.ModelID())
	})
}

func TestOpenRouterProvider_SendsMaxTokens(t *testing.T) {
	var (
		body   map[string]any
		auth   string
		path   string
		title  string
		origin string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		title = r.Header.Get("X-Title")
		origin = r.Header.Get("HTTP-Referer")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "gen-1",
			"model": "google/gemini-2.5-flash",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "Готовое задание"},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
		})
	}))
	t.Cleanup(server.Close)

	p, err := NewOpenRouterProvider(OpenRouterConfig{
		APIKey:   "sk-or-test",
		Model:    DefaultTaskModel,
		BaseURL:  server.URL + "/api/v1",
		AppURL:   "https://mathprep.example",
		AppTitle: "taskforge",
	})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), Request{
		Messages:    []Message{{Role: RoleUser, Content: "Составь задание"}},
		MaxTokens:   40000,
		Temperature: 0.9,
	})
	require.NoError(t, err)

	assert.Equal(t, "Готовое задание", resp.Text)
	assert.Equal(t, "google/gemini-2.5-flash", resp.Model)
	assert.Equal(t, "Bearer sk-or-test", auth)
	assert.Equal(t, "/api/v1/chat/completions", path)
	assert.Equal(t, "google/gemini-2.5-flash", body["model"])
	assert.EqualValues(t, 40000, body["max_tokens"])
	assert.NotContains(t, body, "max_completion_tokens")
	assert.Equal(t, "taskforge", title)
	assert.Equal(t, "https://mathprep.example", origin)
}
