// Package llm is the boundary between model connectors and the response
// cache. A Model produces completions; Cached puts the cache in front of any
// Model.
package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pario-ai/respcache/pkg/models"
)

// Parameter names the Cached wrapper adds to the cache key.
const (
	ParamPrompt       = "prompt"
	ParamSystemPrompt = "system_prompt"
)

// ErrReservedParameter is returned when a request uses a parameter name that
// the cache key reserves for the prompt.
var ErrReservedParameter = errors.New("reserved parameter name")

// Request is a single completion request.
type Request struct {
	Prompt       string
	SystemPrompt string
	Params       models.Params
}

// Model produces one or more completions for a request.
type Model interface {
	// ModelID identifies the model in the cache.
	ModelID() string
	// Complete returns the completions for req.
	Complete(ctx context.Context, req Request) ([]string, error)
}

// Store is the part of the response cache used by Cached.
type Store interface {
	GetEntry(ctx context.Context, modelID string, params models.Params) ([]string, bool, error)
	AddEntry(ctx context.Context, modelID string, responses []string, params models.Params) error
}

// Cached serves completions from a Store and calls the wrapped Model only on
// a miss, storing what it returns.
type Cached struct {
	model Model
	store Store
	log   *zap.Logger
}

// NewCached wraps m with store.
func NewCached(m Model, store Store, log *zap.Logger) *Cached {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cached{model: m, store: store, log: log}
}

// ModelID returns the wrapped model's id.
func (c *Cached) ModelID() string { return c.model.ModelID() }

// Complete returns cached completions for req or calls the model. A failure
// to store fresh completions is logged and does not fail the call.
func (c *Cached) Complete(ctx context.Context, req Request) ([]string, error) {
	key, err := CacheKey(req)
	if err != nil {
		return nil, err
	}
	modelID := c.model.ModelID()

	responses, ok, err := c.store.GetEntry(ctx, modelID, key)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if ok {
		return responses, nil
	}

	responses, err = c.model.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return responses, nil
	}
	if err := c.store.AddEntry(ctx, modelID, responses, key); err != nil {
		c.log.Warn("failed to cache responses", zap.String("model", modelID), zap.Error(err))
	}
	return responses, nil
}

// CacheKey returns the parameter set identifying req in the cache: the
// request parameters plus the prompt and, when set, the system prompt.
func CacheKey(req Request) (models.Params, error) {
	key := make(models.Params, len(req.Params)+2)
	for name, v := range req.Params {
		if name == ParamPrompt || name == ParamSystemPrompt {
			return nil, fmt.Errorf("%w: %s", ErrReservedParameter, name)
		}
		key[name] = v
	}
	key[ParamPrompt] = models.String(req.Prompt)
	if req.SystemPrompt != "" {
		key[ParamSystemPrompt] = models.String(req.SystemPrompt)
	}
	return key, nil
}
