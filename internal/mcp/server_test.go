package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lgrep/internal/config"
)

func TestNewServer_RequiresConfig(t *testing.T) {
	srv, err := NewServer(nil)
	require.Error(t, err)
	assert.Nil(t, srv)
	assert.Contains(t, err.Error(), "config")
}

func TestGetHandlerForTesting_KnownTools(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	for _, tool := range []string{"search", "search_start", "search_poll", "search_cancel", "version"} {
		handler := srv.GetHandlerForTesting(tool)
		require.NotNil(t, handler, "handler for %s", tool)
	}

	// Invoke one directly, bypassing CallTool.
	handler := srv.GetHandlerForTesting("version")
	result, err := handler(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: "version", Arguments: []byte(`{}`)},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, serverName)
}

func TestGetHandlerForTesting_UnknownTool(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	handler := srv.GetHandlerForTesting("definitely_not_a_tool")
	result, err := handler(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: "definitely_not_a_tool", Arguments: []byte(`{}`)},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestCallTool_UnknownTool(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	_, err := srv.CallTool("bogus", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
}

func TestRecoverFromPanic_ConvertsPanic(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	result, err := srv.recoverFromPanic("test_op", func() (*mcp.CallToolResult, error) {
		panic("boom")
	})
	require.NoError(t, err, "a panic must not surface as a protocol error")
	require.NotNil(t, result)
	assert.True(t, result.IsError)

	text := result.Content[0].(*mcp.TextContent).Text
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &body))
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "boom")
}

func TestRecoverFromPanic_NormalizesErrors(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	result, err := srv.recoverFromPanic("test_op", func() (*mcp.CallToolResult, error) {
		return nil, errors.New("stray failure")
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)

	text := result.Content[0].(*mcp.TextContent).Text
	assert.Contains(t, text, "stray failure")
}

func TestShutdown_Idempotent(t *testing.T) {
	srv, err := NewServer(config.Default(t.TempDir()))
	require.NoError(t, err)

	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()), "second shutdown must not panic")
}
