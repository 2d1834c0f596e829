package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

// maxTags caps AI-suggested tags regardless of how talkative the model was.
const maxTags = 5

var listMarkerRe = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)])\s*`)

// ParseTags recovers a list of short tags from unstructured model output.
// The structured path looks for the first balanced bracketed array and JSON
// parses it; the heuristic fallback decomposes the raw text. An empty result
// means the output was unusable.
func ParseTags(raw string) []string {
	if tags := parseBracketedArray(raw); len(tags) > 0 {
		return tags
	}
	return parseHeuristic(raw)
}

func parseBracketedArray(raw string) []string {
	start := strings.IndexByte(raw, '[')
	if start < 0 {
		return nil
	}
	depth := 0
	end := -1
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return nil
	}

	var items []any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &items); err != nil {
		return nil
	}

	tags := make([]string, 0, maxTags)
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		tags = append(tags, s)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

func parseHeuristic(raw string) []string {
	cleaned := strings.ReplaceAll(raw, "```", "")

	candidates := strings.FieldsFunc(cleaned, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	tags := make([]string, 0, maxTags)
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		candidate = listMarkerRe.ReplaceAllString(candidate, "")
		candidate = strings.Trim(candidate, "\"'`[](){}")
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if len(candidate) <= 1 || len(candidate) >= 30 {
			continue
		}
		tags = append(tags, candidate)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}
