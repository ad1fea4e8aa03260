// Package assist implements the synchronous AI text operations: span
// improvement and merging an assistant suggestion back into a note.
package assist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/llm"
	"github.com/starford/quill/internal/models"
)

// Defaults for the tunable policies.
const (
	DefaultContextRadius  = 200 // runes kept on each side of the marked span
	DefaultApplyMinLength = 100 // inputs shorter than this skip the ratio guard
	DefaultApplyMinRatio  = 0.5 // results below ratio×input are treated as truncation
)

// Config carries the tunable policies of the assist operations.
type Config struct {
	Model          string
	ContextRadius  int
	ApplyMinLength int
	ApplyMinRatio  float64
}

func (c Config) withDefaults() Config {
	if c.ContextRadius <= 0 {
		c.ContextRadius = DefaultContextRadius
	}
	if c.ApplyMinLength <= 0 {
		c.ApplyMinLength = DefaultApplyMinLength
	}
	if c.ApplyMinRatio <= 0 {
		c.ApplyMinRatio = DefaultApplyMinRatio
	}
	return c
}

// Service performs single-shot completions against the LLM provider.
type Service struct {
	provider llm.Provider
	cfg      Config
	logger   *slog.Logger
}

// New creates an assist service.
func New(provider llm.Provider, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: provider, cfg: cfg.withDefaults(), logger: logger}
}

const improveSystem = `You are a careful text editor. Fix typos, grammar, and clarity problems in the marked portion of the text. Keep changes minimal: correct mistakes, do not add content.
The user's text contains one portion surrounded with ~~ markers. Improve ONLY that portion; everything outside the markers is context and must not change.
Even if the marked portion starts or ends mid-word, output only the characters replacing the marked portion.
Respond with the improved replacement text and nothing else: no markers, no surrounding context, no commentary.`

// Improve rewrites the span [start, start+length) of text, where offsets
// are rune positions. Only a bounded window of surrounding text is sent
// for context. The returned replacement is NOT applied to any note; the
// caller owns splicing it back into the document at the span.
func (s *Service) Improve(ctx context.Context, text string, start, length int, apiKey, instruction string) (string, error) {
	runes := []rune(text)
	if start < 0 || length <= 0 || start+length > len(runes) {
		return "", fmt.Errorf("assist: %w: span [%d,%d) out of range", apperr.ErrValidation, start, start+length)
	}

	radius := s.cfg.ContextRadius
	winStart := max(0, start-radius)
	winEnd := min(len(runes), start+length+radius)

	var b strings.Builder
	b.WriteString(string(runes[winStart:start]))
	b.WriteString("~~")
	b.WriteString(string(runes[start : start+length]))
	b.WriteString("~~")
	b.WriteString(string(runes[start+length : winEnd]))
	marked := b.String()

	system := improveSystem
	if instruction != "" {
		system += "\nAdditional instruction from the user:\n" + instruction
	}

	out, err := s.provider.Complete(ctx, llm.Request{
		APIKey: apiKey,
		Model:  s.cfg.Model,
		Messages: []llm.Message{
			{Role: models.RoleSystem, Content: system},
			{Role: models.RoleUser, Content: "Improve the marked portion:\n" + marked},
		},
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	if err != nil {
		return "", fmt.Errorf("assist: improve: %w", err)
	}
	return out, nil
}

const applySystem = `You are an editor applying suggested changes to a note.
You receive the full note text and an assistant chat message. If the message contains explicit edit instructions or a revised version of the note, return the complete updated note text with those changes applied. If the message contains nothing actionable, return the note text exactly unchanged.
Respond with the note text only: no explanations, no markers.`

// Apply merges an assistant chat message's suggested edits into noteText
// and returns the result. It never fails the caller's flow: on provider
// error the original text comes back, and a result dramatically shorter
// than the input is discarded as a probable truncation (a tunable
// heuristic, not a correctness guarantee).
func (s *Service) Apply(ctx context.Context, noteText, message, apiKey string) (string, error) {
	prompt := fmt.Sprintf("Note text:\n%s\n\nAssistant message:\n%s", noteText, message)
	out, err := s.provider.Complete(ctx, llm.Request{
		APIKey: apiKey,
		Model:  s.cfg.Model,
		Messages: []llm.Message{
			{Role: models.RoleSystem, Content: applySystem},
			{Role: models.RoleUser, Content: prompt},
		},
		Temperature: 0.3,
	})
	if err != nil {
		s.logger.Warn("apply failed, keeping original text", slog.String("error", err.Error()))
		return noteText, nil
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return noteText, nil
	}
	if len(noteText) >= s.cfg.ApplyMinLength && float64(len(out)) < s.cfg.ApplyMinRatio*float64(len(noteText)) {
		s.logger.Warn("apply result suspiciously short, keeping original text",
			slog.Int("input_len", len(noteText)), slog.Int("output_len", len(out)))
		return noteText, nil
	}
	return out, nil
}
