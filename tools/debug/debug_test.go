package debug

import (
	"context"
	"encoding/json"
	"regexp"
	"runtime/debug"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbg "github.com/xhd2015/dlv-connect/debug"
	"github.com/xhd2015/dlv-connect/debug/connect"
	"github.com/xhd2015/dlv-connect/debug/native"
)

func newTestServer(t *testing.T) (*server.MCPServer, *native.MemoryBackend) {
	backend := native.NewMemoryBackend()
	manager := dbg.NewOptionsManager(connect.NewFactory(backend, connect.WithBridge(connect.NewBridge("UTF-8", nil))))
	t.Cleanup(func() { manager.Close() })

	s := server.NewMCPServer("Test Server", "1.0.0")
	require.NoError(t, RegisterTools(s, ToolOptions{Manager: manager}))
	return s, backend
}

func sendMessage(t *testing.T, s *server.MCPServer, method string, params any) mcp.JSONRPCResponse {
	req := struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int    `json:"id"`
		Method  string `json:"method"`
		Params  any    `json:"params,omitempty"`
	}{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      1,
		Method:  method,
		Params:  params,
	}
	reqJSON, err := json.Marshal(req)
	require.NoError(t, err, "Failed to marshal request")

	resp := s.HandleMessage(context.Background(), reqJSON)
	jsonResp, ok := resp.(mcp.JSONRPCResponse)
	require.True(t, ok, "Unexpected response type: %T", resp)
	return jsonResp
}

// callTool calls a tool and returns its text content and error flag
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) (string, bool) {
	resp := sendMessage(t, s, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	require.NoError(t, json.Unmarshal(raw, &result))
	require.NotEmpty(t, result.Content)
	return result.Content[0].Text, result.IsError
}

var idPattern = regexp.MustCompile(`ID: (options-[0-9a-f-]+)`)

// TestToolsRegistration tests that tools are registered with the server
func TestToolsRegistration(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			debug.PrintStack()
			t.Fatalf("RegisterTools function panicked: %v", r)
		}
	}()

	s := server.NewMCPServer("Test Server", "1.0.0")
	require.Error(t, RegisterTools(s, ToolOptions{}))

	s, _ = newTestServer(t)
	resp := sendMessage(t, s, "tools/list", nil)

	toolsResult, err := json.Marshal(resp.Result)
	require.NoError(t, err, "Failed to marshal result")

	var result struct {
		Tools []struct {
			Name        string         `json:"name"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(toolsResult, &result), "Failed to unmarshal tools")

	names := map[string]map[string]any{}
	for _, tool := range result.Tools {
		names[tool.Name] = tool.InputSchema
	}
	for _, name := range []string{"create_connect_options", "list_connect_options", "release_connect_options", "connect_headless"} {
		assert.Contains(t, names, name)
	}

	required, ok := names["create_connect_options"]["required"].([]any)
	require.True(t, ok, "required not found for create_connect_options")
	assert.Contains(t, required, "locator")
}

func TestCreateListReleaseOptions(t *testing.T) {
	s, backend := newTestServer(t)

	text, isError := callTool(t, s, "create_connect_options", map[string]any{"locator": "connect://10.0.0.5:4242"})
	require.False(t, isError, text)
	assert.Contains(t, text, "URL: connect://10.0.0.5:4242")
	assert.Equal(t, 1, backend.Live())

	match := idPattern.FindStringSubmatch(text)
	require.Len(t, match, 2, text)
	id := match[1]

	text, isError = callTool(t, s, "list_connect_options", nil)
	require.False(t, isError)
	assert.Contains(t, text, id)
	assert.Contains(t, text, "Consumed: false")

	text, isError = callTool(t, s, "release_connect_options", map[string]any{"id": id})
	require.False(t, isError, text)
	assert.Equal(t, 0, backend.Live())

	text, isError = callTool(t, s, "release_connect_options", map[string]any{"id": id})
	assert.True(t, isError)
	assert.Contains(t, text, "not found")

	text, _ = callTool(t, s, "list_connect_options", nil)
	assert.Equal(t, "No connect options", text)
}

func TestCreateOptionsWithoutLocator(t *testing.T) {
	s, backend := newTestServer(t)

	text, isError := callTool(t, s, "create_connect_options", map[string]any{})
	assert.True(t, isError)
	assert.Contains(t, text, "absent")
	assert.Zero(t, backend.Constructed())
}

func TestCreateOptionsWithEncoding(t *testing.T) {
	s, backend := newTestServer(t)

	text, isError := callTool(t, s, "create_connect_options", map[string]any{
		"locator":  "connect://✓:1",
		"encoding": "windows-1252",
	})
	assert.True(t, isError)
	assert.Contains(t, text, "U+2713")
	assert.Zero(t, backend.Constructed())

	text, isError = callTool(t, s, "create_connect_options", map[string]any{
		"locator":  "connect://café:1",
		"encoding": "windows-1252",
	})
	require.False(t, isError, text)
	assert.Equal(t, []byte("connect://caf\xe9:1\x00"), backend.LastInput())
	assert.Contains(t, text, "URL: connect://café:1")
}

func TestConnectHeadlessUnknownOptions(t *testing.T) {
	s, _ := newTestServer(t)

	text, isError := callTool(t, s, "connect_headless", map[string]any{"id": "options-missing"})
	assert.True(t, isError)
	assert.Contains(t, text, "not found")
}
