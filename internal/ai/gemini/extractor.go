package gemini

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/ai"
	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/utils"
)

const (
	defaultMaxLogLength = 200

	systemInstruction = "You extract skills from documents. Answer with the list only, without headings or commentary."
	jobPrompt         = "Summarize the following job description, focusing on required skills. Return a comma-separated list of technical and soft skills:\n"
	cvPrompt          = "Summarize the following CV, focusing on technical and soft skills. Return a comma-separated list of skills:\n"
)

type textGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// Extractor asks Gemini for a comma separated skill list and splits it into
// phrases.
type Extractor struct {
	generator textGenerator
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Extractor = (*Extractor)(nil)

func NewExtractor(generator textGenerator, log *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Extractor{
		generator: generator,
		logger:    logger.WithCommonFields(log, "gemini", generator.Model()),
		maxLogLen: maxLogLength,
	}
}

func (e *Extractor) Model() string {
	return e.generator.Model()
}

// Extract returns the raw phrases found in text. An empty text yields no
// phrases and no call.
func (e *Extractor) Extract(ctx context.Context, source ai.Source, text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	prompt, err := buildPrompt(source, text)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("gemini generate content request",
		zap.String("source", string(source)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, fmt.Errorf("extract skills: %w", err)
	}

	phrases := ai.SplitPhrases(stripFences(raw))

	e.logger.Info("skills extracted",
		zap.String("source", string(source)),
		zap.Int("phrases", len(phrases)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	return phrases, nil
}

func buildPrompt(source ai.Source, text string) (string, error) {
	switch source {
	case ai.SourceJob:
		return jobPrompt + text, nil
	case ai.SourceCV:
		return cvPrompt + text, nil
	default:
		return "", fmt.Errorf("unknown extraction source %q", source)
	}
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if idx := strings.Index(raw, "\n"); idx != -1 {
			raw = raw[idx+1:]
		} else {
			raw = strings.TrimPrefix(raw, "```")
		}
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
