package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Minimum amounts of material each feature needs before a remote call is
// worth making. Violations fail fast and never reach the provider.
const (
	minSummarizeChars = 20
	minTagsChars      = 10
	minImproveChars   = 5
)

// ErrNoUsableTags is the terminal failure when neither the structured nor
// the heuristic parse recovered a single tag.
var ErrNoUsableTags = errors.New("ai could not produce usable tags")

// ValidationError marks caller input that fails a feature precondition.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Service validates feature preconditions, builds prompts, issues the single
// completion request, and reconciles the raw output into a typed result.
type Service struct {
	completer Completer
}

func NewService(completer Completer) *Service {
	return &Service{completer: completer}
}

// Summarize produces a short plain-text summary of the extracted note text.
func (s *Service) Summarize(ctx context.Context, title, content string) (string, error) {
	if countNonSpace(content) < minSummarizeChars {
		return "", validationErrorf("content must contain at least %d characters to summarize", minSummarizeChars)
	}
	raw, err := s.completer.Complete(ctx, summarizeSystemPrompt, summarizeUserPrompt(title, content))
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(raw)
	if summary == "" {
		return "", ErrEmptyCompletion
	}
	return summary, nil
}

// Improve rewrites the selection if one is given, otherwise the full content.
func (s *Service) Improve(ctx context.Context, content, selection string) (string, error) {
	target := content
	if strings.TrimSpace(selection) != "" {
		target = selection
	}
	if len(strings.TrimSpace(target)) < minImproveChars {
		return "", validationErrorf("text must contain at least %d characters to improve", minImproveChars)
	}
	raw, err := s.completer.Complete(ctx, improveSystemPrompt, improveUserPrompt(target))
	if err != nil {
		return "", err
	}
	improved := strings.TrimSpace(raw)
	if improved == "" {
		return "", ErrEmptyCompletion
	}
	return improved, nil
}

// GenerateTags suggests 1-5 short tags for the note.
func (s *Service) GenerateTags(ctx context.Context, title, content string) ([]string, error) {
	if countNonSpace(content) < minTagsChars {
		return nil, validationErrorf("content must contain at least %d characters to generate tags", minTagsChars)
	}
	raw, err := s.completer.Complete(ctx, tagsSystemPrompt, tagsUserPrompt(title, content))
	if err != nil {
		return nil, err
	}
	tags := ParseTags(raw)
	if len(tags) == 0 {
		return nil, ErrNoUsableTags
	}
	return tags, nil
}

// GenerateContent writes free-form text from an instruction, with the note's
// title and content as optional context.
func (s *Service) GenerateContent(ctx context.Context, title, content, instruction string) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		return "", validationErrorf("prompt must not be empty")
	}
	raw, err := s.completer.Complete(ctx, generateSystemPrompt, generateUserPrompt(title, content, instruction))
	if err != nil {
		return "", err
	}
	generated := strings.TrimSpace(raw)
	if generated == "" {
		return "", ErrEmptyCompletion
	}
	return generated, nil
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
