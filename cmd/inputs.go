package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/ai"
	"github.com/spigell/skillmatch/internal/headhunter"
	"github.com/spigell/skillmatch/internal/standardize"
)

// input is one side of a command: inline phrases, a file, a vacancy or a
// resume.
type input struct {
	site    string
	phrases []string
	file    string
	vacancy string
	resume  string
	extract bool
}

func (in input) empty() bool {
	return len(in.phrases) == 0 && in.file == "" && in.vacancy == "" && in.resume == ""
}

// loaded holds raw phrases, or a skill set when the input was already
// standardized.
type loaded struct {
	phrases []string
	set     *standardize.SkillSet
}

type loader struct {
	config    *Config
	logger    *zap.Logger
	extractor ai.Extractor
	hh        *headhunter.Client
}

func (l *loader) load(ctx context.Context, in input) (loaded, error) {
	var out loaded
	out.phrases = append(out.phrases, in.phrases...)

	if in.file != "" {
		data, err := os.ReadFile(in.file)
		if err != nil {
			return out, err
		}
		phrases, set, text, err := parseInputFile(data)
		if err != nil {
			return out, fmt.Errorf("read %s: %w", in.file, err)
		}
		if set != nil {
			if len(out.phrases) > 0 || in.vacancy != "" || in.resume != "" {
				return out, fmt.Errorf("%s holds a standardized skill set and cannot be combined with other inputs", in.file)
			}
			out.set = set
			return out, nil
		}
		out.phrases = append(out.phrases, phrases...)

		if text != "" {
			more, err := l.fromText(ctx, in, text)
			if err != nil {
				return out, err
			}
			out.phrases = append(out.phrases, more...)
		}
	}

	if in.vacancy != "" {
		more, err := l.fromVacancy(ctx, in)
		if err != nil {
			return out, err
		}
		out.phrases = append(out.phrases, more...)
	}

	if in.resume != "" {
		more, err := l.fromResume(ctx, in)
		if err != nil {
			return out, err
		}
		out.phrases = append(out.phrases, more...)
	}

	return out, nil
}

func (l *loader) fromText(ctx context.Context, in input, text string) ([]string, error) {
	if !in.extract {
		return ai.SplitPhrases(text), nil
	}

	extractor, err := l.getExtractor(ctx)
	if err != nil {
		return nil, err
	}
	return extractor.Extract(ctx, ai.Source(in.site), text)
}

func (l *loader) fromVacancy(ctx context.Context, in input) ([]string, error) {
	hh, err := l.getHeadHunter(ctx)
	if err != nil {
		return nil, err
	}

	vacancy, err := hh.GetVacancy(in.vacancy)
	if err != nil {
		return nil, err
	}
	phrases := vacancy.KeySkillNames()

	if in.extract {
		text, err := vacancy.DescriptionText()
		if err != nil {
			return nil, err
		}
		more, err := l.fromText(ctx, input{site: string(ai.SourceJob), extract: true}, text)
		if err != nil {
			return nil, err
		}
		phrases = append(phrases, more...)
	}

	l.logger.Info("vacancy skills collected",
		zap.String("vacancy_id", vacancy.ID),
		zap.String("name", vacancy.Name),
		zap.Int("phrases", len(phrases)),
	)
	return phrases, nil
}

func (l *loader) fromResume(ctx context.Context, in input) ([]string, error) {
	hh, err := l.getHeadHunter(ctx)
	if err != nil {
		return nil, err
	}

	resume, err := hh.GetResume(in.resume)
	if err != nil {
		return nil, err
	}
	phrases := resume.SkillNames()

	if in.extract && strings.TrimSpace(resume.Skills) != "" {
		more, err := l.fromText(ctx, input{site: string(ai.SourceCV), extract: true}, resume.Skills)
		if err != nil {
			return nil, err
		}
		phrases = append(phrases, more...)
	}

	l.logger.Info("resume skills collected",
		zap.String("resume_id", resume.ID),
		zap.String("title", resume.Title),
		zap.Int("phrases", len(phrases)),
	)
	return phrases, nil
}

func (l *loader) getExtractor(ctx context.Context) (ai.Extractor, error) {
	if l.extractor == nil {
		extractor, err := newExtractor(ctx, l.config, l.logger)
		if err != nil {
			return nil, err
		}
		l.extractor = extractor
	}
	return l.extractor, nil
}

func (l *loader) getHeadHunter(ctx context.Context) (*headhunter.Client, error) {
	if l.hh == nil {
		hh, err := newHeadHunter(ctx, l.config, l.logger)
		if err != nil {
			return nil, err
		}
		l.hh = hh
	}
	return l.hh, nil
}

// parseInputFile recognizes a standardized skill set (JSON object), a phrase
// list (JSON array of strings) or free text, which is returned as is.
func parseInputFile(data []byte) ([]string, *standardize.SkillSet, string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil, "", errors.New("file is empty")
	}

	switch trimmed[0] {
	case '{':
		var set standardize.SkillSet
		if err := json.Unmarshal(trimmed, &set); err != nil {
			return nil, nil, "", fmt.Errorf("decode skill set: %w", err)
		}
		return nil, &set, "", nil
	case '[':
		var phrases []string
		if err := json.Unmarshal(trimmed, &phrases); err != nil {
			return nil, nil, "", fmt.Errorf("decode phrase list: %w", err)
		}
		return phrases, nil, "", nil
	default:
		return nil, nil, string(trimmed), nil
	}
}

func printJSON(cmd interface{ OutOrStdout() io.Writer }, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
