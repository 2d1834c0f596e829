package export

import (
	"fmt"
	"html"
	"strings"

	"inkwell/api/internal/blocks"
)

// BlocksToHTML converts an editor block sequence to HTML. Consecutive list
// items of the same kind are grouped into a single <ul> or <ol>.
func BlocksToHTML(bs []blocks.Block) string {
	var sb strings.Builder
	renderBlocks(&sb, bs)
	return sb.String()
}

func renderBlocks(sb *strings.Builder, bs []blocks.Block) {
	i := 0
	for i < len(bs) {
		switch bs[i].Type {
		case "bulletListItem":
			i = renderListRun(sb, bs, i, "bulletListItem", "ul")
		case "numberedListItem":
			i = renderListRun(sb, bs, i, "numberedListItem", "ol")
		default:
			renderBlock(sb, bs[i])
			i++
		}
	}
}

// renderListRun renders the run of same-typed list items starting at i and
// returns the index after the run.
func renderListRun(sb *strings.Builder, bs []blocks.Block, i int, itemType, tag string) int {
	fmt.Fprintf(sb, "<%s>\n", tag)
	for i < len(bs) && bs[i].Type == itemType {
		sb.WriteString("<li>")
		sb.WriteString(renderInlines(bs[i].Content))
		if len(bs[i].Children) > 0 {
			sb.WriteString("\n")
			renderBlocks(sb, bs[i].Children)
		}
		sb.WriteString("</li>\n")
		i++
	}
	fmt.Fprintf(sb, "</%s>\n", tag)
	return i
}

func renderBlock(sb *strings.Builder, b blocks.Block) {
	content := renderInlines(b.Content)

	switch b.Type {
	case "heading":
		level := headingLevel(b.Props)
		fmt.Fprintf(sb, "<h%d>%s</h%d>\n", level, content, level)
	case "quote":
		fmt.Fprintf(sb, "<blockquote>%s</blockquote>\n", content)
	case "codeBlock":
		fmt.Fprintf(sb, "<pre><code>%s</code></pre>\n", content)
	case "checkListItem":
		box := "&#9744;"
		if checked, ok := b.Props["checked"].(bool); ok && checked {
			box = "&#9745;"
		}
		fmt.Fprintf(sb, "<p class=\"check\">%s %s</p>\n", box, content)
	case "divider":
		sb.WriteString("<hr>\n")
	case "image":
		if url, ok := b.Props["url"].(string); ok && url != "" {
			fmt.Fprintf(sb, "<img src=\"%s\" alt=\"%s\">\n", html.EscapeString(url), content)
		}
	default:
		// paragraph and unknown block types render as plain paragraphs
		if content != "" {
			fmt.Fprintf(sb, "<p>%s</p>\n", content)
		}
	}

	renderBlocks(sb, b.Children)
}

func headingLevel(props map[string]any) int {
	if lvl, ok := props["level"].(float64); ok && lvl >= 1 && lvl <= 6 {
		return int(lvl)
	}
	return 1
}

// renderInlines renders inline content. Wrapper items (links, styled spans)
// contribute the text of their nested runs.
func renderInlines(items []blocks.Inline) string {
	var sb strings.Builder
	for _, item := range items {
		if item.Text != "" {
			sb.WriteString(html.EscapeString(item.Text))
			continue
		}
		inner := renderInlines(item.Content)
		if item.Type == "link" && item.Href != "" {
			fmt.Fprintf(&sb, `<a href="%s">%s</a>`, html.EscapeString(item.Href), inner)
			continue
		}
		sb.WriteString(inner)
	}
	return sb.String()
}
