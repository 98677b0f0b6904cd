// Package openai implements llm.Model on the OpenAI chat completions API.
package openai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pario-ai/respcache/pkg/llm"
	"github.com/pario-ai/respcache/pkg/models"
)

// Config configures the OpenAI client.
type Config struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
	HTTPClient *http.Client
}

// Model is an OpenAI chat model.
type Model struct {
	client openai.Client
	model  string
}

// New creates a Model for the named OpenAI model.
func New(model string, cfg Config) (*Model, error) {
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &Model{client: openai.NewClient(opts...), model: model}, nil
}

// ModelID returns the OpenAI model name.
func (m *Model) ModelID() string { return m.model }

// Complete sends a chat completion request and returns the content of every
// choice. Supported parameters are temperature, top_p, presence_penalty,
// frequency_penalty (floats) and max_tokens, n, seed (integers); any other
// parameter only affects the cache key.
func (m *Model) Complete(ctx context.Context, req llm.Request) ([]string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    m.model,
		Messages: messages,
	}
	if err := applyParams(&params, req.Params); err != nil {
		return nil, err
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}

	out := make([]string, 0, len(completion.Choices))
	for _, choice := range completion.Choices {
		out = append(out, choice.Message.Content)
	}
	return out, nil
}

func applyParams(params *openai.ChatCompletionNewParams, p models.Params) error {
	for name, v := range p {
		switch name {
		case "temperature", "top_p", "presence_penalty", "frequency_penalty":
			f, err := floatParam(name, v)
			if err != nil {
				return err
			}
			switch name {
			case "temperature":
				params.Temperature = openai.Float(f)
			case "top_p":
				params.TopP = openai.Float(f)
			case "presence_penalty":
				params.PresencePenalty = openai.Float(f)
			case "frequency_penalty":
				params.FrequencyPenalty = openai.Float(f)
			}
		case "max_tokens", "n", "seed":
			if v.Kind() != models.KindInt {
				return fmt.Errorf("parameter %s must be an integer, got %s", name, v.Kind())
			}
			switch name {
			case "max_tokens":
				params.MaxTokens = openai.Int(v.Int64())
			case "n":
				params.N = openai.Int(v.Int64())
			case "seed":
				params.Seed = openai.Int(v.Int64())
			}
		}
	}
	return nil
}

// floatParam accepts integer values for float parameters so that
// temperature=1 works from the command line.
func floatParam(name string, v models.Value) (float64, error) {
	switch v.Kind() {
	case models.KindFloat:
		return v.Float64(), nil
	case models.KindInt:
		return float64(v.Int64()), nil
	default:
		return 0, fmt.Errorf("parameter %s must be a number, got %s", name, v.Kind())
	}
}
