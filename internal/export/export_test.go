package export

import (
	"html/template"
	"strings"
	"testing"

	"inkwell/api/internal/blocks"
)

func TestBlocksToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    []blocks.Block
		expected string
	}{
		{
			name:     "nil input",
			input:    nil,
			expected: "",
		},
		{
			name: "simple paragraph",
			input: []blocks.Block{
				{Type: "paragraph", Content: []blocks.Inline{{Type: "text", Text: "Hello world"}}},
			},
			expected: "<p>Hello world</p>",
		},
		{
			name: "heading with level",
			input: []blocks.Block{
				{Type: "heading", Props: map[string]any{"level": 2.0}, Content: []blocks.Inline{{Type: "text", Text: "Section Title"}}},
			},
			expected: "<h2>Section Title</h2>",
		},
		{
			name: "heading without level defaults to h1",
			input: []blocks.Block{
				{Type: "heading", Content: []blocks.Inline{{Type: "text", Text: "Top"}}},
			},
			expected: "<h1>Top</h1>",
		},
		{
			name: "consecutive bullet items grouped into one list",
			input: []blocks.Block{
				{Type: "bulletListItem", Content: []blocks.Inline{{Type: "text", Text: "First"}}},
				{Type: "bulletListItem", Content: []blocks.Inline{{Type: "text", Text: "Second"}}},
			},
			expected: "<ul>\n<li>First</li>\n<li>Second</li>\n</ul>",
		},
		{
			name: "numbered items use ol",
			input: []blocks.Block{
				{Type: "numberedListItem", Content: []blocks.Inline{{Type: "text", Text: "Step one"}}},
			},
			expected: "<ol>\n<li>Step one</li>\n</ol>",
		},
		{
			name: "quote block",
			input: []blocks.Block{
				{Type: "quote", Content: []blocks.Inline{{Type: "text", Text: "Said so"}}},
			},
			expected: "<blockquote>Said so</blockquote>",
		},
		{
			name: "checked checklist item",
			input: []blocks.Block{
				{Type: "checkListItem", Props: map[string]any{"checked": true}, Content: []blocks.Inline{{Type: "text", Text: "Done"}}},
			},
			expected: "&#9745; Done",
		},
		{
			name: "link inline",
			input: []blocks.Block{
				{Type: "paragraph", Content: []blocks.Inline{
					{Type: "link", Href: "https://example.com", Content: []blocks.Inline{{Type: "text", Text: "a link"}}},
				}},
			},
			expected: `<a href="https://example.com">a link</a>`,
		},
		{
			name: "text is escaped",
			input: []blocks.Block{
				{Type: "paragraph", Content: []blocks.Inline{{Type: "text", Text: "a < b & c"}}},
			},
			expected: "<p>a &lt; b &amp; c</p>",
		},
		{
			name: "divider",
			input: []blocks.Block{
				{Type: "divider"},
			},
			expected: "<hr>",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := BlocksToHTML(tc.input)
			if !strings.Contains(got, tc.expected) {
				t.Errorf("expected output to contain %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestBlocksToHTMLEmptyParagraphSkipped(t *testing.T) {
	got := BlocksToHTML([]blocks.Block{{Type: "paragraph"}})
	if got != "" {
		t.Errorf("expected empty output for empty paragraph, got %q", got)
	}
}

func TestBlocksToHTMLNestedChildren(t *testing.T) {
	input := []blocks.Block{
		{
			Type:    "bulletListItem",
			Content: []blocks.Inline{{Type: "text", Text: "Parent"}},
			Children: []blocks.Block{
				{Type: "bulletListItem", Content: []blocks.Inline{{Type: "text", Text: "Child"}}},
			},
		},
	}
	got := BlocksToHTML(input)
	parent := strings.Index(got, "Parent")
	child := strings.Index(got, "Child")
	if parent < 0 || child < 0 || child < parent {
		t.Errorf("expected nested child after parent, got %q", got)
	}
	if strings.Count(got, "<ul>") != 2 {
		t.Errorf("expected nested <ul>, got %q", got)
	}
}

func TestRenderPageHTML(t *testing.T) {
	html, err := RenderPageHTML(TemplateData{
		Title:       "Weekly Plan",
		Icon:        "📝",
		ContentHTML: template.HTML("<p>Body</p>"),
		Summary:     "A short summary.",
		Tags:        []string{"Planning", "work"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Weekly Plan", "<p>Body</p>", "A short summary.", "#planning", "#work"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected rendered page to contain %q", want)
		}
	}
}

func TestRenderPageHTMLEscapesTitle(t *testing.T) {
	html, err := RenderPageHTML(TemplateData{Title: "<script>alert(1)</script>"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Error("expected title to be escaped")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Weekly Plan", "Weekly-Plan"},
		{"Notes: Q3 / Q4!", "Notes-Q3--Q4"},
		{"", "page"},
		{"///", "page"},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}
	for _, tc := range tests {
		if got := sanitizeFilename(tc.input); got != tc.expected {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	got := percentEncodeForDataURL("a b&c")
	if got != "a%20b%26c" {
		t.Errorf("unexpected encoding: %q", got)
	}
	if strings.Contains(percentEncodeForDataURL("hello world"), "+") {
		t.Error("spaces must never encode as +")
	}
}
