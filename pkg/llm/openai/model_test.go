package openai_test

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

	"github.com/pario-ai/respcache/pkg/llm"
	"github.com/pario-ai/respcache/pkg/llm/openai"
	"github.com/pario-ai/respcache/pkg/models"
)

const completionJSON = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [
    {"index": 0, "message": {"role": "assistant", "content": "first"}, "finish_reason": "stop"},
    {"index": 1, "message": {"role": "assistant", "content": "second"}, "finish_reason": "stop"}
  ],
  "usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
}`

func TestNew_Validation(t *testing.T) {
	_, err := openai.New("", openai.Config{APIKey: "k"})
	require.Error(t, err)

	_, err = openai.New("gpt-4o-mini", openai.Config{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "OpenAI API key is required")
}

func TestComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionJSON)
	}))
	defer srv.Close()

	m, err := openai.New("gpt-4o-mini", openai.Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", m.ModelID())

	got, err := m.Complete(context.Background(), llm.Request{
		Prompt:       "hello",
		SystemPrompt: "be brief",
		Params: models.Params{
			"temperature": models.Int(1),
			"n":           models.Int(2),
			"user_tag":    models.String("ignored"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, got)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.EqualValues(t, 1, body["temperature"])
	assert.EqualValues(t, 2, body["n"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestComplete_InvalidParamType(t *testing.T) {
	m, err := openai.New("gpt-4o-mini", openai.Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), llm.Request{
		Prompt: "hi",
		Params: models.Params{"n": models.Float(2.5)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parameter n must be an integer")
}

func TestComplete_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad request","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	m, err := openai.New("gpt-4o-mini", openai.Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), llm.Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai completion")
}
