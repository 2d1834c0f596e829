// Package blocks models the editor's rich-text block tree and flattens it to
// plain text for AI consumption.
package blocks

import (
	"encoding/json"
	"strings"
)

// Inline is one inline content item inside a block: either a literal text run
// or a wrapper (link, styled span) holding nested inline items.
type Inline struct {
	Type    string   `json:"type,omitempty"`
	Text    string   `json:"text,omitempty"`
	Href    string   `json:"href,omitempty"`
	Content []Inline `json:"content,omitempty"`
}

// Block is one node of the editor's content tree. Children nest arbitrarily
// deep (nested list items, toggles); absent fields decode to empty slices.
type Block struct {
	ID       string         `json:"id,omitempty"`
	Type     string         `json:"type,omitempty"`
	Props    map[string]any `json:"props,omitempty"`
	Content  []Inline       `json:"content,omitempty"`
	Children []Block        `json:"children,omitempty"`
}

// Parse decodes a stored content payload into a block sequence. Malformed or
// null payloads yield an empty sequence rather than an error so that
// extraction stays total over whatever the editor persisted.
func Parse(raw []byte) []Block {
	if len(raw) == 0 {
		return nil
	}
	var bs []Block
	if err := json.Unmarshal(raw, &bs); err != nil {
		return nil
	}
	return bs
}

// ExtractText flattens a block sequence into plain text: one line per block
// that carries non-whitespace inline content, child lines appended after the
// parent's own line, joined by single newlines. Whitespace-only blocks
// contribute nothing. The walk is total over any finite tree.
func ExtractText(bs []Block) string {
	var lines []string
	collectLines(bs, &lines)
	return strings.Join(lines, "\n")
}

func collectLines(bs []Block, lines *[]string) {
	for _, b := range bs {
		text := inlineText(b.Content)
		if strings.TrimSpace(text) != "" {
			*lines = append(*lines, text)
		}
		collectLines(b.Children, lines)
	}
}

func inlineText(items []Inline) string {
	var sb strings.Builder
	for _, item := range items {
		if item.Text != "" {
			sb.WriteString(item.Text)
			continue
		}
		sb.WriteString(inlineText(item.Content))
	}
	return sb.String()
}
