package ai

import (
	"fmt"
	"strings"
)

const (
	summarizeSystemPrompt = "You are a note-taking assistant. Summarize the user's note in 2-3 plain sentences. Return only the summary text with no headings, labels, or commentary."

	improveSystemPrompt = "You are a writing assistant. Rewrite the user's text with better clarity, grammar, and flow while preserving its meaning and tone. Return only the improved text, no commentary, no surrounding quotes."

	tagsSystemPrompt = `You are a note-taking assistant. Suggest 1 to 5 short lowercase topic tags for the user's note. Return only a JSON array of strings, for example ["go","testing","notes"]. No commentary.`

	generateSystemPrompt = "You are a writing assistant inside a note-taking app. Write the content the user asks for as plain prose suitable for inserting into their note. Return only the generated text, no commentary."
)

func summarizeUserPrompt(title, content string) string {
	return withTitle(title, content)
}

func tagsUserPrompt(title, content string) string {
	return withTitle(title, content)
}

func improveUserPrompt(target string) string {
	return target
}

func generateUserPrompt(title, content, instruction string) string {
	var sb strings.Builder
	sb.WriteString("Instruction: ")
	sb.WriteString(instruction)
	if strings.TrimSpace(title) != "" || strings.TrimSpace(content) != "" {
		sb.WriteString("\n\nThe note so far, for context:\n")
		sb.WriteString(withTitle(title, content))
	}
	return sb.String()
}

func withTitle(title, content string) string {
	if strings.TrimSpace(title) == "" {
		return content
	}
	return fmt.Sprintf("Title: %s\n\n%s", title, content)
}
