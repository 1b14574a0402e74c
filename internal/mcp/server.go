// Package mcp exposes the search engine over the Model Context
// Protocol so coding agents can grep a project without shelling out.
// Five tools are served over stdio: search runs to completion in one
// call, search_start/search_poll/search_cancel manage long-running
// scans as sessions, and version identifies the server.
//
// Stdout belongs to the protocol. Anything diagnostic goes through the
// debug package, which MCP mode silences.
package mcp

import (
	"context"
	"fmt"
	rdebug "runtime/debug"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/lgrep/internal/config"
	"github.com/standardbeagle/lgrep/internal/debug"
	lgreperrors "github.com/standardbeagle/lgrep/internal/errors"
	"github.com/standardbeagle/lgrep/internal/version"
)

const serverName = "lgrep-mcp-server"

// Server wires the tool handlers to a configuration and the session
// registry backing search_start.
type Server struct {
	cfg      *config.Config
	server   *mcp.Server
	sessions *sessionRegistry
}

// NewServer builds a server around cfg. The configuration supplies the
// defaults a request leaves unset: project root, override globs, smart
// case, walker options.
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	s := &Server{
		cfg: cfg,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: version.Info(),
		}, nil),
		sessions: newSessionRegistry(defaultSessionTTL),
	}
	s.registerTools()
	return s, nil
}

// searchInputSchema is shared by search and search_start; the two tools
// take identical parameters.
func searchInputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"pattern": {
				Type:        "string",
				Description: "Search pattern. Literal substring unless regex is set.",
			},
			"regex": {
				Type:        "boolean",
				Description: "Treat pattern and highlights as RE2 regular expressions",
			},
			"ignore_case": {
				Type:        "boolean",
				Description: "Case-insensitive matching",
			},
			"invert": {
				Type:        "boolean",
				Description: "Report lines that do NOT match pattern",
			},
			"context": {
				Type:        "integer",
				Description: "Lines of context captured before and after each match",
			},
			"highlights": {
				Type:        "array",
				Items:       &jsonschema.Schema{Type: "string"},
				Description: "Extra patterns to highlight: matched lines gain additional spans wherever these occur",
			},
			"paths": {
				Type:        "array",
				Items:       &jsonschema.Schema{Type: "string"},
				Description: "Files or directories to search (default: the project root)",
			},
			"globs": {
				Type:        "array",
				Items:       &jsonschema.Schema{Type: "string"},
				Description: "Override globs; prefix with ! to exclude (e.g. [\"*.go\", \"!*_test.go\"])",
			},
			"binary": {
				Type:        "boolean",
				Description: "Also search files containing NUL bytes",
			},
			"hidden": {
				Type:        "boolean",
				Description: "Also search hidden files and directories",
			},
			"follow_symlinks": {
				Type:        "boolean",
				Description: "Follow symbolic links while walking",
			},
			"threads": {
				Type:        "integer",
				Description: "Scan worker count (default: CPU count)",
			},
			"max_results": {
				Type:        "integer",
				Description: "Cap on matched lines returned (default 1000)",
			},
		},
		Required: []string{"pattern"},
	}
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "search",
		Description: "🔍 Fast concurrent file content search. Use instead of shell grep/rg. Literal substring by default; set regex for RE2 patterns. Returns matched lines with byte spans plus surrounding context. Note: JSON parameters, not CLI flags.",
		InputSchema: searchInputSchema(),
	}, s.handleSearch)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_start",
		Description: "Start a background search and return a session_id. Use on large trees: drain results incrementally with search_poll instead of waiting for the whole scan.",
		InputSchema: searchInputSchema(),
	}, s.handleSearchStart)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_poll",
		Description: "Drain the results a search_start session has produced so far. Never blocks. state \"done\" means the search finished and the session was released; stop polling then.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"session_id": {
					Type:        "string",
					Description: "Session id returned by search_start",
				},
				"max_results": {
					Type:        "integer",
					Description: "Cap on matched lines returned by this poll (default 1000)",
				},
			},
			Required: []string{"session_id"},
		},
	}, s.handleSearchPoll)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_cancel",
		Description: "Cancel a search_start session and discard its undelivered results.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"session_id": {
					Type:        "string",
					Description: "Session id returned by search_start",
				},
			},
			Required: []string{"session_id"},
		},
	}, s.handleSearchCancel)

	s.server.AddTool(&mcp.Tool{
		Name:        "version",
		Description: "Report the server version, build id and tool surface.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleVersion)
}

// recoverFromPanic shields the transport from handler panics and turns
// stray errors into in-band error responses. An error surfaced at the
// protocol level aborts the tool call without giving the model anything
// to react to.
func (s *Server) recoverFromPanic(operation string, handler func() (*mcp.CallToolResult, error)) (result *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			debug.LogMCP("panic in %s: %v\n%s", operation, r, rdebug.Stack())
			result, err = createErrorResponse(operation, fmt.Errorf("internal error: %v", r))
		}
	}()

	result, err = handler()
	if err != nil {
		return createErrorResponse(operation, err)
	}
	return result, nil
}

// Start serves MCP over stdio until ctx is cancelled or the transport
// closes. Cancellation and EOF surface wrapped, so callers can
// errors.Is them apart from real transport failures.
func (s *Server) Start(ctx context.Context) error {
	debug.SetMCPMode(true)
	debug.LogMCP("serving %s %s over stdio\n", serverName, version.Info())
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return lgreperrors.NewMCPError("serve", err)
	}
	return nil
}

// Shutdown cancels and releases every live search session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.close()
	debug.LogMCP("shutdown complete\n")
	return nil
}

// GetHandlerForTesting exposes tool handlers for in-process tests that
// bypass the stdio transport.
func (s *Server) GetHandlerForTesting(toolName string) func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	switch toolName {
	case "search":
		return s.handleSearch
	case "search_start":
		return s.handleSearchStart
	case "search_poll":
		return s.handleSearchPoll
	case "search_cancel":
		return s.handleSearchCancel
	case "version":
		return s.handleVersion
	default:
		return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result, _ := createErrorResponse("GetHandlerForTesting", fmt.Errorf("unknown tool: %s", toolName))
			return result, nil
		}
	}
}
