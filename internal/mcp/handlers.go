package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/lgrep/internal/debug"
	"github.com/standardbeagle/lgrep/internal/search"
	"github.com/standardbeagle/lgrep/internal/version"
	"github.com/standardbeagle/lgrep/pkg/pathutil"
)

const (
	// defaultMaxResults caps matched lines in one response so a broad
	// pattern cannot blow out the model's context window.
	defaultMaxResults = 1000

	// pollInterval paces the one-shot drain loop while workers run.
	pollInterval = 2 * time.Millisecond
)

// UnknownField records a request field that no tool parameter matches.
type UnknownField struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// SearchParams are the arguments of the search and search_start tools.
type SearchParams struct {
	Pattern        string   `json:"pattern"`
	Highlights     []string `json:"highlights,omitempty"`
	Regex          bool     `json:"regex,omitempty"`
	IgnoreCase     bool     `json:"ignore_case,omitempty"`
	Invert         bool     `json:"invert,omitempty"`
	Context        int      `json:"context,omitempty"`
	Paths          []string `json:"paths,omitempty"`
	Globs          []string `json:"globs,omitempty"`
	Binary         bool     `json:"binary,omitempty"`
	Hidden         bool     `json:"hidden,omitempty"`
	FollowSymlinks bool     `json:"follow_symlinks,omitempty"`
	Threads        int      `json:"threads,omitempty"`
	MaxResults     int      `json:"max_results,omitempty"`

	IgnoredFields []UnknownField `json:"-"`
}

// UnmarshalJSON accepts unknown fields and a handful of aliases, and
// lets list parameters arrive as bare strings. Agents paraphrase
// parameter names more often than they read schemas.
func (p *SearchParams) UnmarshalJSON(data []byte) error {
	type alias SearchParams

	known := map[string]struct{}{
		"pattern": {}, "highlights": {}, "regex": {}, "ignore_case": {},
		"invert": {}, "context": {}, "paths": {}, "globs": {},
		"binary": {}, "hidden": {}, "follow_symlinks": {},
		"threads": {}, "max_results": {},
		// accepted aliases
		"query": {}, "case_insensitive": {}, "use_regex": {},
		"path": {}, "root": {}, "glob": {}, "highlight": {}, "max": {},
	}

	raw, unknown, err := collectUnknownFields(data, known)
	if err != nil {
		return err
	}

	normalized := make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		switch key {
		case "query":
			normalized["pattern"] = value
		case "case_insensitive":
			normalized["ignore_case"] = value
		case "use_regex":
			normalized["regex"] = value
		case "path", "root":
			normalized["paths"] = value
		case "glob":
			normalized["globs"] = value
		case "highlight":
			normalized["highlights"] = value
		case "max":
			normalized["max_results"] = value
		default:
			normalized[key] = value
		}
	}

	for _, key := range []string{"paths", "globs", "highlights"} {
		if value, ok := normalized[key]; ok {
			normalized[key] = wrapBareString(value)
		}
	}

	merged, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(merged, (*alias)(p)); err != nil {
		return err
	}
	p.IgnoredFields = unknown
	return nil
}

// PollParams are the arguments of the search_poll tool.
type PollParams struct {
	SessionID  string `json:"session_id"`
	MaxResults int    `json:"max_results,omitempty"`

	IgnoredFields []UnknownField `json:"-"`
}

func (p *PollParams) UnmarshalJSON(data []byte) error {
	type alias PollParams

	known := map[string]struct{}{
		"session_id": {}, "max_results": {},
		"id": {}, "max": {},
	}
	raw, unknown, err := collectUnknownFields(data, known)
	if err != nil {
		return err
	}

	normalized := make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		switch key {
		case "id":
			normalized["session_id"] = value
		case "max":
			normalized["max_results"] = value
		default:
			normalized[key] = value
		}
	}

	merged, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(merged, (*alias)(p)); err != nil {
		return err
	}
	p.IgnoredFields = unknown
	return nil
}

// CancelParams are the arguments of the search_cancel tool.
type CancelParams struct {
	SessionID string `json:"session_id"`

	IgnoredFields []UnknownField `json:"-"`
}

func (p *CancelParams) UnmarshalJSON(data []byte) error {
	type alias CancelParams

	known := map[string]struct{}{"session_id": {}, "id": {}}
	raw, unknown, err := collectUnknownFields(data, known)
	if err != nil {
		return err
	}

	normalized := make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		if key == "id" {
			normalized["session_id"] = value
			continue
		}
		normalized[key] = value
	}

	merged, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(merged, (*alias)(p)); err != nil {
		return err
	}
	p.IgnoredFields = unknown
	return nil
}

// SearchResponse aggregates engine results for one search call.
type SearchResponse struct {
	Files         []FileBlock    `json:"files"`
	TotalFiles    int            `json:"total_files"`
	TotalMatches  int            `json:"total_matches"`
	FilesScanned  int            `json:"files_scanned"`
	ElapsedMs     float64        `json:"elapsed_ms"`
	Truncated     bool           `json:"truncated,omitempty"`
	IgnoredFields []UnknownField `json:"ignored_fields,omitempty"`
}

// StartResponse carries the session id of a background search.
type StartResponse struct {
	SessionID     string         `json:"session_id"`
	Message       string         `json:"message"`
	IgnoredFields []UnknownField `json:"ignored_fields,omitempty"`
}

// PollResponse carries the results drained by one search_poll call.
type PollResponse struct {
	Files         []FileBlock    `json:"files"`
	TotalFiles    int            `json:"total_files"`
	TotalMatches  int            `json:"total_matches"`
	FilesScanned  int            `json:"files_scanned"`
	State         string         `json:"state"`
	ElapsedMs     float64        `json:"elapsed_ms"`
	IgnoredFields []UnknownField `json:"ignored_fields,omitempty"`
}

// CancelResponse confirms a cancelled session.
type CancelResponse struct {
	SessionID     string         `json:"session_id"`
	Cancelled     bool           `json:"cancelled"`
	IgnoredFields []UnknownField `json:"ignored_fields,omitempty"`
}

// FileBlock is one file's results. Path is relative to the project root
// when the file lies inside it, absolute otherwise. Entries group
// contiguous context neighborhoods the way grep separates blocks with --.
type FileBlock struct {
	Path    string       `json:"path"`
	Entries []EntryBlock `json:"entries"`
}

type EntryBlock struct {
	Lines []LineBlock `json:"lines"`
}

// LineBlock is one reported line. Matches carries the byte spans of
// pattern hits; a line without spans is context.
type LineBlock struct {
	Line    uint64        `json:"line"`
	Text    string        `json:"text"`
	Matches []search.Span `json:"matches,omitempty"`
}

// resultMatches counts the matched lines in one file result. An
// inverted query selects lines without pattern occurrences, so no line
// carries spans; every reported line counts then, which with zero
// context is exactly the selected set.
func resultMatches(r search.FileResult) int {
	matches := 0
	total := 0
	for _, entry := range r.Entries {
		for _, line := range entry.Lines {
			total++
			if line.IsMatch() {
				matches++
			}
		}
	}
	if matches == 0 {
		matches = total
	}
	return matches
}

// fileBlocks converts accumulated engine results for the wire. Runs at
// the response boundary, after paths were made root-relative.
func fileBlocks(results []search.FileResult) []FileBlock {
	blocks := make([]FileBlock, 0, len(results))
	for _, r := range results {
		fb := FileBlock{Path: r.Path, Entries: make([]EntryBlock, 0, len(r.Entries))}
		for _, entry := range r.Entries {
			eb := EntryBlock{Lines: make([]LineBlock, 0, len(entry.Lines))}
			for _, line := range entry.Lines {
				eb.Lines = append(eb.Lines, LineBlock{
					Line:    line.LineNumber,
					Text:    string(line.Bytes),
					Matches: line.Matches,
				})
			}
			fb.Entries = append(fb.Entries, eb)
		}
		blocks = append(blocks, fb)
	}
	return blocks
}

// buildSearch translates request parameters into an engine spawn,
// falling back to the server configuration for anything unset.
func (s *Server) buildSearch(params SearchParams) (search.SearchConfig, search.Options, error) {
	if strings.TrimSpace(params.Pattern) == "" {
		return search.SearchConfig{}, search.Options{}, fmt.Errorf("pattern is required")
	}

	syntax := search.SyntaxLiteral
	if params.Regex {
		syntax = search.SyntaxRegex
	}

	queries := []search.Query{{
		Pattern:         params.Pattern,
		Syntax:          syntax,
		CaseInsensitive: params.IgnoreCase,
		Invert:          params.Invert,
		ExtraContext:    params.Context,
	}}
	// Highlight patterns become annotation stages: they add spans on
	// matched lines but never select or drop anything themselves.
	for _, h := range params.Highlights {
		queries = append(queries, search.Query{
			Pattern:         h,
			Syntax:          syntax,
			CaseInsensitive: params.IgnoreCase,
		})
	}

	if params.Context == 0 && s.cfg.Search.Context > 0 {
		queries[0].ExtraContext = s.cfg.Search.Context
	}
	if !params.IgnoreCase && s.cfg.Search.SmartCase {
		// Smart case: insensitive unless the pattern carries literal
		// uppercase; the compiler handles the override.
		for i := range queries {
			queries[i].CaseInsensitive = true
		}
	}

	roots := params.Paths
	if len(roots) == 0 {
		roots = []string{s.cfg.Project.Root}
	}

	cfg := search.SearchConfig{
		Roots:     roots,
		Overrides: append(s.cfg.Overrides(), params.Globs...),
		Queries:   queries,
	}

	opts := search.Options{
		Threads:        params.Threads,
		SearchBinary:   params.Binary || s.cfg.Search.SearchBinary,
		FollowSymlinks: params.FollowSymlinks || s.cfg.Walk.FollowSymlinks,
		Hidden:         params.Hidden || s.cfg.Walk.Hidden,
		UseGitignore:   s.cfg.Walk.UseGitignore,
		MaxFileSize:    s.cfg.Search.MaxFileSize,
	}
	if opts.Threads == 0 {
		opts.Threads = s.cfg.Walk.Threads
	}
	return cfg, opts, nil
}

// handleSearch runs a search to completion and returns the aggregated
// results. The drain loop honors the request context; on cancellation
// the engine is stopped and the call fails.
func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("search", func() (*mcp.CallToolResult, error) {
		var params SearchParams
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return createErrorResponse("search", fmt.Errorf("invalid parameters: %w", err))
		}

		cfg, opts, err := s.buildSearch(params)
		if err != nil {
			return createErrorResponse("search", err)
		}

		handle, err := search.Spawn(cfg, opts)
		if err != nil {
			return createErrorResponse("search", err)
		}
		defer handle.Close()

		maxResults := params.MaxResults
		if maxResults <= 0 {
			maxResults = defaultMaxResults
		}

		response := &SearchResponse{
			Files:         []FileBlock{},
			IgnoredFields: params.IgnoredFields,
		}
		var matched []search.FileResult

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			result, state := handle.Poll()
			switch state {
			case search.PollReceived:
				response.FilesScanned++
				if !result.HasMatches() {
					continue
				}
				if response.TotalMatches >= maxResults {
					// Whole files are kept or dropped; the cap is
					// approximate. Keep draining so workers wind down.
					if !response.Truncated {
						response.Truncated = true
						handle.Cancel()
					}
					continue
				}
				matched = append(matched, result)
				response.TotalFiles++
				response.TotalMatches += resultMatches(result)

			case search.PollDone:
				response.Files = fileBlocks(pathutil.ToRelativeResults(matched, s.cfg.Project.Root))
				response.ElapsedMs = float64(handle.Elapsed().Microseconds()) / 1000.0
				return createJSONResponse(response)

			case search.PollEmpty:
				select {
				case <-ctx.Done():
					handle.Cancel()
					return createErrorResponse("search", ctx.Err())
				case <-ticker.C:
				}
			}
		}
	})
}

// handleSearchStart spawns a search and parks its handle in the session
// registry for incremental draining.
func (s *Server) handleSearchStart(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("search_start", func() (*mcp.CallToolResult, error) {
		var params SearchParams
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return createErrorResponse("search_start", fmt.Errorf("invalid parameters: %w", err))
		}

		cfg, opts, err := s.buildSearch(params)
		if err != nil {
			return createErrorResponse("search_start", err)
		}

		handle, err := search.Spawn(cfg, opts)
		if err != nil {
			return createErrorResponse("search_start", err)
		}

		id := s.sessions.register(handle)
		debug.LogMCP("session %s started\n", id)

		return createJSONResponse(StartResponse{
			SessionID:     id,
			Message:       "search started; drain results with search_poll",
			IgnoredFields: params.IgnoredFields,
		})
	})
}

// handleSearchPoll drains currently available results for a session
// without blocking. Observing the end of the stream releases the
// session, so a poll that returns state done is the last one.
func (s *Server) handleSearchPoll(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("search_poll", func() (*mcp.CallToolResult, error) {
		var params PollParams
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return createErrorResponse("search_poll", fmt.Errorf("invalid parameters: %w", err))
		}
		if params.SessionID == "" {
			return createErrorResponse("search_poll", fmt.Errorf("session_id is required"))
		}

		handle, ok := s.sessions.get(params.SessionID)
		if !ok {
			return createErrorResponse("search_poll", fmt.Errorf("unknown session %q", params.SessionID))
		}

		maxResults := params.MaxResults
		if maxResults <= 0 {
			maxResults = defaultMaxResults
		}

		response := &PollResponse{
			Files:         []FileBlock{},
			State:         "running",
			IgnoredFields: params.IgnoredFields,
		}
		var matched []search.FileResult

		for response.TotalMatches < maxResults {
			result, state := handle.Poll()
			if state == search.PollDone {
				response.State = "done"
			}
			if state != search.PollReceived {
				break
			}
			response.FilesScanned++
			if !result.HasMatches() {
				continue
			}
			matched = append(matched, result)
			response.TotalFiles++
			response.TotalMatches += resultMatches(result)
		}

		response.Files = fileBlocks(pathutil.ToRelativeResults(matched, s.cfg.Project.Root))
		response.ElapsedMs = float64(handle.Elapsed().Microseconds()) / 1000.0
		if response.State == "done" {
			s.sessions.release(params.SessionID)
			debug.LogMCP("session %s drained and released\n", params.SessionID)
		}
		return createJSONResponse(response)
	})
}

// handleSearchCancel cancels a session and releases its handle.
func (s *Server) handleSearchCancel(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("search_cancel", func() (*mcp.CallToolResult, error) {
		var params CancelParams
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return createErrorResponse("search_cancel", fmt.Errorf("invalid parameters: %w", err))
		}
		if params.SessionID == "" {
			return createErrorResponse("search_cancel", fmt.Errorf("session_id is required"))
		}

		if !s.sessions.release(params.SessionID) {
			return createErrorResponse("search_cancel", fmt.Errorf("unknown session %q", params.SessionID))
		}
		debug.LogMCP("session %s cancelled\n", params.SessionID)

		return createJSONResponse(CancelResponse{
			SessionID:     params.SessionID,
			Cancelled:     true,
			IgnoredFields: params.IgnoredFields,
		})
	})
}

// handleVersion reports the server identity and tool surface.
func (s *Server) handleVersion(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return createJSONResponse(map[string]interface{}{
		"name":     serverName,
		"version":  version.Info(),
		"build_id": version.BuildID(),
		"tools": []string{
			"search", "search_start", "search_poll", "search_cancel", "version",
		},
	})
}
