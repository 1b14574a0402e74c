package mcp

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lgreperrors "github.com/standardbeagle/lgrep/internal/errors"
)

func TestCreateJSONResponse(t *testing.T) {
	result, err := createJSONResponse(map[string]interface{}{"answer": 42})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content should be a text block")
	assert.JSONEq(t, `{"answer": 42}`, text.Text)
}

func TestCreateErrorResponse(t *testing.T) {
	result, err := createErrorResponse("search", errors.New("something broke"))
	require.NoError(t, err, "error responses travel in-band, not as protocol errors")
	require.NotNil(t, result)
	assert.True(t, result.IsError)

	text := result.Content[0].(*mcp.TextContent).Text
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "something broke", body["error"])
	assert.Equal(t, "search", body["operation"])
}

func TestCreateErrorResponse_PatternHints(t *testing.T) {
	patternErr := lgreperrors.NewPatternError(0, "[", errors.New("missing closing ]"))
	result, err := createErrorResponse("search", patternErr)
	require.NoError(t, err)

	text := result.Content[0].(*mcp.TextContent).Text
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &body))

	hints, ok := body["hints"].([]interface{})
	require.True(t, ok, "a pattern failure should carry hints")
	assert.NotEmpty(t, hints)
}

func TestErrorHints_UnknownSession(t *testing.T) {
	hints := errorHints("search_poll", errors.New(`unknown session "abc"`))
	require.NotEmpty(t, hints)
	assert.Contains(t, hints[1], "search_start")
}
