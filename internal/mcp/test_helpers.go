package mcp

// In-process testing support. CallTool invokes a tool handler directly,
// bypassing the stdio transport: fast, synchronous, and with real stack
// traces. Error responses come back as Go errors so tests can assert on
// them without parsing JSON.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CallTool simulates an MCP tool call against this server.
func (s *Server) CallTool(toolName string, params map[string]interface{}) (string, error) {
	ctx := context.Background()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal params: %w", err)
	}

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      toolName,
			Arguments: paramsJSON,
		},
	}

	var result *mcp.CallToolResult

	switch toolName {
	case "search":
		result, err = s.handleSearch(ctx, req)
	case "search_start":
		result, err = s.handleSearchStart(ctx, req)
	case "search_poll":
		result, err = s.handleSearchPoll(ctx, req)
	case "search_cancel":
		result, err = s.handleSearchCancel(ctx, req)
	case "version":
		result, err = s.handleVersion(ctx, req)
	default:
		return "", fmt.Errorf("unknown tool: %s", toolName)
	}
	if err != nil {
		return "", err
	}

	if result == nil || len(result.Content) == 0 {
		return "", nil
	}
	textContent, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		return "", nil
	}

	// Surface in-band error responses as Go errors for test assertions.
	var response map[string]interface{}
	if json.Unmarshal([]byte(textContent.Text), &response) == nil {
		if success, ok := response["success"].(bool); ok && !success {
			if errorMsg, ok := response["error"].(string); ok {
				details := "MCP error: " + errorMsg
				if hints, ok := response["hints"].([]interface{}); ok && len(hints) > 0 {
					hintsJSON, _ := json.Marshal(hints)
					details += "\nHints: " + string(hintsJSON)
				}
				return "", fmt.Errorf("%s", details)
			}
		}
	}
	return textContent.Text, nil
}
