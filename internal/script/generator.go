package script

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"papercast/internal/logging"
	"papercast/internal/services"
	"papercast/internal/services/llm"
)

const (
	// DefaultHost names the lead speaker.
	DefaultHost = "Alex"
	// DefaultGuest names the second speaker.
	DefaultGuest = "Jordan"

	defaultMaxInputChars = 32000
)

const systemPrompt = `You write scripts for a two-person educational podcast.
The hosts are ` + DefaultHost + ` (lead host) and ` + DefaultGuest + ` (curious co-host).
Turn the supplied document into a natural, engaging conversation that covers its key ideas accurately.
Respond with JSON only, using this shape:
{"title": "short episode title", "turns": [{"speaker": "` + DefaultHost + `", "text": "..."}, {"speaker": "` + DefaultGuest + `", "text": "..."}]}
Keep every turn under 120 words. Do not include stage directions, sound effects, or markdown.`

// Completer issues JSON chat completions.
type Completer interface {
	CompleteJSON(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// Generator turns document text into a Script through a language model.
type Generator struct {
	client        Completer
	maxInputChars int
	logger        *slog.Logger
}

// NewGenerator builds a Generator. maxInputChars <= 0 selects the default limit.
func NewGenerator(client Completer, maxInputChars int, logger *slog.Logger) *Generator {
	if maxInputChars <= 0 {
		maxInputChars = defaultMaxInputChars
	}
	return &Generator{
		client:        client,
		maxInputChars: maxInputChars,
		logger:        logging.NewComponentLogger(logger, "script"),
	}
}

// Generate requests a script for text. Any failure is reported as ErrGeneration.
func (g *Generator) Generate(ctx context.Context, text, model string) (Script, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Script{}, services.Wrap(services.ErrGeneration, "scripting", "generate script", "document text is empty", nil)
	}
	if g.client == nil {
		return Script{}, services.Wrap(services.ErrGeneration, "scripting", "generate script", "no language model configured", nil)
	}

	prompt, truncated := Truncate(text, g.maxInputChars)
	logger := logging.WithContext(ctx, g.logger)
	logger.Debug("requesting podcast script",
		logging.String("model", model),
		logging.Int("input_chars", utf8.RuneCountInString(prompt)),
		logging.Bool("truncated", truncated),
	)

	content, err := g.client.CompleteJSON(ctx, model, systemPrompt, "Document:\n"+prompt)
	if err != nil {
		return Script{}, services.Wrap(services.ErrGeneration, "scripting", "complete", "language model request failed", err)
	}

	var parsed Script
	if err := llm.DecodeLLMJSON(content, &parsed); err != nil {
		return Script{}, services.Wrap(services.ErrGeneration, "scripting", "decode", "malformed script payload", err)
	}
	parsed = parsed.normalize()
	if err := parsed.Validate(); err != nil {
		return Script{}, services.Wrap(services.ErrGeneration, "scripting", "validate", "unusable script", err)
	}

	logger.Info("podcast script generated",
		logging.Int("turns", len(parsed.Turns)),
		logging.Int("words", parsed.WordCount()),
		logging.String("title", parsed.Title),
	)
	return parsed, nil
}

// Truncate cuts text to at most limit runes and reports whether it did.
func Truncate(text string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:limit]), true
}

// String implements fmt.Stringer for debugging output.
func (s Script) String() string {
	return fmt.Sprintf("Script{title=%q turns=%d}", s.Title, len(s.Turns))
}
