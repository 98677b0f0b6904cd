package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/pario-ai/respcache/pkg/models"
)

type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

var toolHandlers = map[string]toolHandler{
	"respcache_lookup": handleLookup,
	"respcache_store":  handleStore,
	"respcache_stats":  handleStats,
	"respcache_clear":  handleClear,
}

var paramsSchema = map[string]any{
	"type":        "object",
	"description": "Model parameters. Values must be strings, integers, floats, or booleans.",
	"additionalProperties": map[string]any{
		"type": []string{"string", "integer", "number", "boolean"},
	},
}

var allTools = []ToolDefinition{
	{
		Name:        "respcache_lookup",
		Description: "Return the cached responses for a model and exact parameter set, or report a miss.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"model_id"},
			"properties": map[string]any{
				"model_id": map[string]any{"type": "string", "description": "Model identifier"},
				"params":   paramsSchema,
			},
		},
	},
	{
		Name:        "respcache_store",
		Description: "Store responses for a model and parameter set.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"model_id", "responses"},
			"properties": map[string]any{
				"model_id": map[string]any{"type": "string", "description": "Model identifier"},
				"responses": map[string]any{
					"type":     "array",
					"items":    map[string]any{"type": "string"},
					"minItems": 1,
				},
				"params": paramsSchema,
			},
		},
	},
	{
		Name:        "respcache_stats",
		Description: "Show per-model entry counts with creation and access time ranges.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "respcache_clear",
		Description: "Evict entries matching every given filter. With no filters the whole cache is cleared.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"model_id": map[string]any{"type": "string", "description": "Only this model (optional)"},
				"created_before": map[string]any{
					"type":        "string",
					"description": "RFC3339 cutoff on creation time (optional)",
				},
				"accessed_before": map[string]any{
					"type":        "string",
					"description": "RFC3339 cutoff on last access time (optional)",
				},
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: true}
}

type entryArgs struct {
	ModelID   string        `json:"model_id"`
	Responses []string      `json:"responses"`
	Params    models.Params `json:"params"`
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func handleLookup(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args entryArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}
	if args.ModelID == "" {
		return errorResult("model_id is required")
	}
	responses, ok, err := s.store.GetEntry(ctx, args.ModelID, args.Params)
	if err != nil {
		return errorResult("Error looking up entry: " + err.Error())
	}
	if !ok {
		return textResult("miss")
	}
	return textResult(formatResponses(responses))
}

func handleStore(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args entryArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}
	if err := s.store.AddEntry(ctx, args.ModelID, args.Responses, args.Params); err != nil {
		return errorResult("Error storing entry: " + err.Error())
	}
	return textResult("stored")
}

func handleStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	totals, err := s.store.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	summaries, err := s.store.Summaries(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatStats(totals, summaries))
}

type clearArgs struct {
	ModelID        string `json:"model_id"`
	CreatedBefore  string `json:"created_before"`
	AccessedBefore string `json:"accessed_before"`
}

func handleClear(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args clearArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}
	filter := models.ClearFilter{ModelID: args.ModelID}
	var err error
	if filter.CreatedBefore, err = parseTime(args.CreatedBefore); err != nil {
		return errorResult("Invalid created_before (use RFC3339): " + err.Error())
	}
	if filter.AccessedBefore, err = parseTime(args.AccessedBefore); err != nil {
		return errorResult("Invalid accessed_before (use RFC3339): " + err.Error())
	}
	n, err := s.store.Clear(ctx, filter)
	if err != nil {
		return errorResult("Error clearing cache: " + err.Error())
	}
	return textResult(formatCleared(n))
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New("not an RFC3339 timestamp")
	}
	return t, nil
}
