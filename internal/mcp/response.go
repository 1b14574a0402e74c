package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	lgreperrors "github.com/standardbeagle/lgrep/internal/errors"
)

// createJSONResponse marshals data into a single text content block.
func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// createErrorResponse reports a tool failure inside the result object.
// IsError must be set per the MCP specification: a protocol-level error
// would be invisible to the model, which could then never self-correct.
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	errorData := map[string]interface{}{
		"success":   false,
		"error":     err.Error(),
		"operation": operation,
	}
	if hints := errorHints(operation, err); len(hints) > 0 {
		errorData["hints"] = hints
	}

	response, marshalErr := createJSONResponse(errorData)
	if marshalErr != nil {
		return nil, marshalErr
	}
	response.IsError = true
	return response, nil
}

// errorHints suggests remediations for the common failure shapes.
func errorHints(operation string, err error) []string {
	var hints []string
	msg := err.Error()

	var patternErr *lgreperrors.PatternError
	if errors.As(err, &patternErr) {
		hints = append(hints,
			"The pattern did not compile as a regular expression",
			`Retry with "regex": false to search for the literal text instead`)
	}

	switch operation {
	case "search", "search_start":
		if strings.Contains(msg, "pattern is required") {
			hints = append(hints, `Provide a pattern, e.g. {"pattern": "TODO"}`)
		}
		if strings.Contains(msg, "no search path") {
			hints = append(hints, `Add "paths": ["."] or configure a project root`)
		}
	case "search_poll", "search_cancel":
		if strings.Contains(msg, "unknown session") {
			hints = append(hints,
				"The session finished, was cancelled, or idled past its TTL",
				"Start a new one with search_start")
		}
	}
	return hints
}
