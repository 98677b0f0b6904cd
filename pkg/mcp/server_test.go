package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/respcache/pkg/cache"
	"github.com/pario-ai/respcache/pkg/models"
)

func newTestServer(t *testing.T) (*Server, *cache.Cache) {
	t.Helper()
	c, err := cache.OpenSQLite(context.Background(), cache.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return New(c, "test", nil), c
}

func sendAndReceive(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	line, err := json.Marshal(req)
	require.NoError(t, err)
	line = append(line, '\n')

	var out bytes.Buffer
	require.NoError(t, srv.Run(context.Background(), bytes.NewReader(line), &out))

	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp), "raw: %s", out.String())
	return resp
}

func callTool(t *testing.T, srv *Server, name, args string) ToolCallResult {
	t.Helper()
	params, err := json.Marshal(ToolCallParams{Name: name, Arguments: json.RawMessage(args)})
	require.NoError(t, err)
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "tools/call",
		Params:  params,
	})
	require.Nil(t, resp.Error)

	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result ToolCallResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.NotEmpty(t, result.Content)
	return result
}

func TestInitialize(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := sendAndReceive(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "initialize"})
	require.Nil(t, resp.Error)

	data, _ := json.Marshal(resp.Result)
	var result InitializeResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "respcache", result.ServerInfo.Name)
	assert.Equal(t, "test", result.ServerInfo.Version)
}

func TestToolsList(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := sendAndReceive(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`2`), Method: "tools/list"})
	require.Nil(t, resp.Error)

	data, _ := json.Marshal(resp.Result)
	var result ToolsListResult
	require.NoError(t, json.Unmarshal(data, &result))

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
		_, ok := toolHandlers[tool.Name]
		assert.True(t, ok, "no handler for %s", tool.Name)
	}
	assert.ElementsMatch(t, []string{"respcache_lookup", "respcache_store", "respcache_stats", "respcache_clear"}, names)
}

func TestStoreAndLookup(t *testing.T) {
	srv, _ := newTestServer(t)

	res := callTool(t, srv, "respcache_store",
		`{"model_id":"gpt","responses":["hello"],"params":{"temperature":1.0,"user":"alice"}}`)
	assert.False(t, res.IsError, res.Content[0].Text)

	res = callTool(t, srv, "respcache_lookup", `{"model_id":"gpt","params":{"user":"alice","temperature":1.0}}`)
	assert.False(t, res.IsError)
	assert.Equal(t, "hello", res.Content[0].Text)

	res = callTool(t, srv, "respcache_lookup", `{"model_id":"gpt","params":{"user":"alice","temperature":1}}`)
	assert.False(t, res.IsError)
	assert.Equal(t, "miss", res.Content[0].Text)
}

func TestLookupMultipleResponses(t *testing.T) {
	srv, c := newTestServer(t)
	require.NoError(t, c.AddEntry(context.Background(), "m", []string{"a", "b"}, nil))

	res := callTool(t, srv, "respcache_lookup", `{"model_id":"m"}`)
	assert.Equal(t, "[1] a\n\n[2] b\n", res.Content[0].Text)
}

func TestStoreRejectsInvalidParams(t *testing.T) {
	srv, c := newTestServer(t)

	res := callTool(t, srv, "respcache_store", `{"model_id":"m","responses":["r"],"params":{"stop":["x"]}}`)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "stop=")

	res = callTool(t, srv, "respcache_store", `{"model_id":"m","responses":[]}`)
	assert.True(t, res.IsError)

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}

func TestLookupMissingModel(t *testing.T) {
	srv, _ := newTestServer(t)
	res := callTool(t, srv, "respcache_lookup", `{}`)
	assert.True(t, res.IsError)
}

func TestStatsAndClear(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, c.AddEntry(ctx, "gpt", []string{"r"}, models.Params{"user": models.String("alice")}))
	require.NoError(t, c.AddEntry(ctx, "claude", []string{"r"}, nil))
	_, _, err := c.GetEntry(ctx, "gpt", models.Params{"user": models.String("alice")})
	require.NoError(t, err)
	_, _, err = c.GetEntry(ctx, "gpt", nil)
	require.NoError(t, err)

	text := callTool(t, srv, "respcache_stats", "").Content[0].Text
	assert.Contains(t, text, "gpt")
	assert.Contains(t, text, "claude")
	assert.Contains(t, text, "Entries:  2")
	assert.Contains(t, text, "Hit Rate: 50.0%")

	res := callTool(t, srv, "respcache_clear", `{"model_id":"gpt"}`)
	assert.False(t, res.IsError)
	assert.Equal(t, "Cleared 1 cache entry.", res.Content[0].Text)

	res = callTool(t, srv, "respcache_clear", `{"created_before":"2999-01-01T00:00:00Z"}`)
	assert.Equal(t, "Cleared 1 cache entries.", res.Content[0].Text)

	text = callTool(t, srv, "respcache_stats", `{}`).Content[0].Text
	assert.True(t, strings.HasPrefix(text, "No cache entries found."))
	assert.Contains(t, text, "Strings:  0")
}

func TestClearRejectsBadTime(t *testing.T) {
	srv, _ := newTestServer(t)
	res := callTool(t, srv, "respcache_clear", `{"accessed_before":"yesterday"}`)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "accessed_before")
}

func TestUnknownTool(t *testing.T) {
	srv, _ := newTestServer(t)
	res := callTool(t, srv, "respcache_nope", `{}`)
	assert.True(t, res.IsError)
}

func TestNotificationNoResponse(t *testing.T) {
	srv, _ := newTestServer(t)
	line, _ := json.Marshal(Request{JSONRPC: "2.0", Method: "notifications/initialized"})

	var out bytes.Buffer
	require.NoError(t, srv.Run(context.Background(), bytes.NewReader(append(line, '\n')), &out))
	assert.Zero(t, out.Len(), out.String())
}

func TestParseErrorAndUnknownMethod(t *testing.T) {
	srv, _ := newTestServer(t)

	var out bytes.Buffer
	require.NoError(t, srv.Run(context.Background(), strings.NewReader("{not json\n"), &out))
	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)

	resp = sendAndReceive(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`9`), Method: "unknown/method"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)

	resp = sendAndReceive(t, srv, Request{JSONRPC: "1.0", ID: json.RawMessage(`10`), Method: "ping"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
}
