package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string // if non-empty, check this key exists in parsed JSON
		wantErr bool
	}{
		{
			name:    "plain JSON",
			input:   `{"summary": "test"}`,
			wantKey: "summary",
		},
		{
			name:    "markdown code block",
			input:   "```json\n{\"summary\": \"test\"}\n```",
			wantKey: "summary",
		},
		{
			name:    "markdown block with trailing text",
			input:   "```json\n{\"summary\": \"test\"}\n```\n\n**Some extra commentary**",
			wantKey: "summary",
		},
		{
			name:    "JS comments in values",
			input:   "```json\n{\n  \"checklist\": [\n    \"gov-001\",          // owner rule\n    \"ai-001\"  // inventory rule\n  ]\n}\n```",
			wantKey: "checklist",
		},
		{
			name:    "comments and trailing commas",
			input:   "```json\n{\n  \"items\": [\n    \"one\",  // first\n    \"two\",  // second\n  ]\n}\n```",
			wantKey: "items",
		},
		{
			name:    "URL in string not stripped",
			input:   `{"url": "http://example.com/path"}`,
			wantKey: "url",
		},
		{
			name:    "URL in string with comment after",
			input:   "{\"url\": \"http://example.com/path\"} // trailing",
			wantKey: "url",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "no JSON at all",
			input:   "This is just text with no JSON.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractJSON(tt.input)

			if tt.wantErr {
				if result != "" {
					t.Errorf("expected empty result, got: %s", result)
				}
				return
			}

			if result == "" {
				t.Fatal("expected JSON result, got empty string")
			}

			var parsed map[string]any
			if err := json.Unmarshal([]byte(result), &parsed); err != nil {
				t.Fatalf("extracted JSON does not parse: %v\n%s", err, result)
			}
			if _, ok := parsed[tt.wantKey]; !ok {
				t.Errorf("key %q missing from parsed JSON", tt.wantKey)
			}
		})
	}
}

func TestStripLineComment(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"value", // comment`, `"value",`},
		{`"http://x.com/y"`, `"http://x.com/y"`},
		{`plain line`, `plain line`},
		{`"escaped \" quote" // c`, `"escaped \" quote"`},
	}
	for _, tt := range tests {
		if got := stripLineComment(tt.input); got != tt.want {
			t.Errorf("stripLineComment(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
