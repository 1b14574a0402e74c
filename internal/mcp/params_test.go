package mcp

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSearchParamsAcceptsUnknownFields verifies that unrecognized
// request fields never fail parsing and are tracked for the response.
func TestSearchParamsAcceptsUnknownFields(t *testing.T) {
	tests := []struct {
		name             string
		jsonData         string
		wantPattern      string
		wantIgnoredCount int
		wantIgnoredNames []string
	}{
		{
			name:             "all fields known",
			jsonData:         `{"pattern": "func", "max_results": 10, "ignore_case": true}`,
			wantPattern:      "func",
			wantIgnoredCount: 0,
		},
		{
			name:             "tracks unknown fields",
			jsonData:         `{"pattern": "test", "fuzzy": true, "output_mode": "files"}`,
			wantPattern:      "test",
			wantIgnoredCount: 2,
			wantIgnoredNames: []string{"fuzzy", "output_mode"},
		},
		{
			name:             "mixed known and unknown",
			jsonData:         `{"pattern": "x", "regex": true, "foo": "bar", "baz": 123}`,
			wantPattern:      "x",
			wantIgnoredCount: 2,
			wantIgnoredNames: []string{"foo", "baz"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var params SearchParams
			err := json.Unmarshal([]byte(tt.jsonData), &params)

			require.NoError(t, err, "unknown fields must not fail parsing")
			assert.Equal(t, tt.wantPattern, params.Pattern)
			assert.Len(t, params.IgnoredFields, tt.wantIgnoredCount)
			for _, name := range tt.wantIgnoredNames {
				found := false
				for _, f := range params.IgnoredFields {
					if f.Name == name {
						found = true
						break
					}
				}
				assert.True(t, found, fmt.Sprintf("should track unknown field %q", name))
			}
		})
	}
}

// TestSearchParamsAliases verifies the accepted alternate spellings map
// onto the canonical fields.
func TestSearchParamsAliases(t *testing.T) {
	tests := []struct {
		name     string
		jsonData string
		check    func(t *testing.T, p SearchParams)
	}{
		{
			name:     "query means pattern",
			jsonData: `{"query": "needle"}`,
			check: func(t *testing.T, p SearchParams) {
				assert.Equal(t, "needle", p.Pattern)
			},
		},
		{
			name:     "case_insensitive means ignore_case",
			jsonData: `{"pattern": "x", "case_insensitive": true}`,
			check: func(t *testing.T, p SearchParams) {
				assert.True(t, p.IgnoreCase)
			},
		},
		{
			name:     "use_regex means regex",
			jsonData: `{"pattern": "x", "use_regex": true}`,
			check: func(t *testing.T, p SearchParams) {
				assert.True(t, p.Regex)
			},
		},
		{
			name:     "path and root mean paths",
			jsonData: `{"pattern": "x", "root": "/tmp/project"}`,
			check: func(t *testing.T, p SearchParams) {
				assert.Equal(t, []string{"/tmp/project"}, p.Paths)
			},
		},
		{
			name:     "glob means globs",
			jsonData: `{"pattern": "x", "glob": "*.go"}`,
			check: func(t *testing.T, p SearchParams) {
				assert.Equal(t, []string{"*.go"}, p.Globs)
			},
		},
		{
			name:     "highlight means highlights",
			jsonData: `{"pattern": "x", "highlight": "widget"}`,
			check: func(t *testing.T, p SearchParams) {
				assert.Equal(t, []string{"widget"}, p.Highlights)
			},
		},
		{
			name:     "max means max_results",
			jsonData: `{"pattern": "x", "max": 25}`,
			check: func(t *testing.T, p SearchParams) {
				assert.Equal(t, 25, p.MaxResults)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var params SearchParams
			require.NoError(t, json.Unmarshal([]byte(tt.jsonData), &params))
			tt.check(t, params)
			assert.Empty(t, params.IgnoredFields, "aliases are known fields, not warnings")
		})
	}
}

// TestSearchParamsBareStringLists verifies that list parameters also
// accept a single bare string.
func TestSearchParamsBareStringLists(t *testing.T) {
	var params SearchParams
	data := `{"pattern": "x", "paths": "src", "globs": "*.go", "highlights": "err"}`
	require.NoError(t, json.Unmarshal([]byte(data), &params))

	assert.Equal(t, []string{"src"}, params.Paths)
	assert.Equal(t, []string{"*.go"}, params.Globs)
	assert.Equal(t, []string{"err"}, params.Highlights)
}

func TestSearchParamsListForm(t *testing.T) {
	var params SearchParams
	data := `{"pattern": "x", "paths": ["a", "b"], "globs": ["*.go", "!*_test.go"]}`
	require.NoError(t, json.Unmarshal([]byte(data), &params))

	assert.Equal(t, []string{"a", "b"}, params.Paths)
	assert.Equal(t, []string{"*.go", "!*_test.go"}, params.Globs)
}

func TestPollParamsAliases(t *testing.T) {
	var params PollParams
	require.NoError(t, json.Unmarshal([]byte(`{"id": "abc", "max": 5}`), &params))
	assert.Equal(t, "abc", params.SessionID)
	assert.Equal(t, 5, params.MaxResults)
	assert.Empty(t, params.IgnoredFields)
}

func TestCancelParamsAliases(t *testing.T) {
	var params CancelParams
	require.NoError(t, json.Unmarshal([]byte(`{"id": "abc", "force": true}`), &params))
	assert.Equal(t, "abc", params.SessionID)
	require.Len(t, params.IgnoredFields, 1)
	assert.Equal(t, "force", params.IgnoredFields[0].Name)
}

func TestSearchParamsRejectsMalformedJSON(t *testing.T) {
	var params SearchParams
	err := json.Unmarshal([]byte(`{"pattern": `), &params)
	assert.Error(t, err)
}

func TestWrapBareString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "bare string wrapped", input: `"src"`, want: `["src"]`},
		{name: "array untouched", input: `["a","b"]`, want: `["a","b"]`},
		{name: "number untouched", input: `42`, want: `42`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapBareString(json.RawMessage(tt.input))
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}
