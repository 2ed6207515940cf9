// Package standardize resolves raw skill phrases to canonical taxonomy
// entries. Resolution tries an exact label match, then embedding similarity
// and finally fuzzy string matching; what remains is unresolved.
package standardize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/embedding"
	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/taxonomy"
	"github.com/spigell/skillmatch/internal/utils"
)

const (
	debugCandidates = 3
	maxLogLength    = 120
)

var (
	// ErrEmptyPhrase is returned for phrases that are empty after normalization.
	ErrEmptyPhrase = errors.New("phrase is empty")
	// ErrDimensionMismatch is returned when the provider returns vectors that
	// do not fit the index.
	ErrDimensionMismatch = errors.New("embedding dimension does not match index")
)

// Standardizer resolves phrases against one index. It holds no mutable state
// and is safe for concurrent use.
type Standardizer struct {
	index    *taxonomy.Index
	provider embedding.Provider
	logger   *zap.Logger
}

// New returns a Standardizer for index. A nil provider disables the embedding
// step. The provider must report the model the index was built with,
// otherwise a *taxonomy.ModelMismatchError is returned.
func New(index *taxonomy.Index, provider embedding.Provider, log *zap.Logger) (*Standardizer, error) {
	if index == nil {
		return nil, fmt.Errorf("taxonomy index is required")
	}

	fields := logger.IndexFields(index.Version().String())
	if provider != nil {
		if err := index.CheckModel(provider.Model()); err != nil {
			return nil, err
		}
		fields = append(fields, logger.EmbeddingFields(provider.Model())...)
	}

	return &Standardizer{
		index:    index,
		provider: provider,
		logger:   logger.WithFields(log, fields...),
	}, nil
}

// Index returns the index phrases are resolved against.
func (s *Standardizer) Index() *taxonomy.Index {
	return s.index
}

// Standardize resolves a single phrase. An unresolved phrase is not an error:
// the returned skill has MethodUnresolved and no ID. Provider failures are
// logged and resolution falls back to fuzzy matching.
func (s *Standardizer) Standardize(ctx context.Context, phrase string, thresholds Thresholds) (Skill, error) {
	if err := thresholds.Validate(); err != nil {
		return Skill{}, err
	}

	normalized := taxonomy.Normalize(phrase)
	if normalized == "" {
		return Skill{}, ErrEmptyPhrase
	}

	if skill, ok := s.resolveExact(phrase, normalized); ok {
		return skill, nil
	}

	if s.provider != nil {
		vector, err := s.provider.Embed(ctx, normalized)
		switch {
		case err != nil:
			if err := canceled(ctx); err != nil {
				return Skill{}, err
			}
			s.logger.Warn("embedding failed, falling back to fuzzy matching",
				zap.String("phrase", utils.TruncateForLog(phrase, maxLogLength)),
				zap.Error(err),
			)
		default:
			skill, ok, err := s.resolveVector(phrase, vector, thresholds.Similarity)
			if err != nil {
				return Skill{}, err
			}
			if ok {
				return skill, nil
			}
		}
	}

	if skill, ok := s.resolveFuzzy(phrase, normalized, thresholds.Fuzzy); ok {
		return skill, nil
	}

	return unresolvedSkill(phrase), nil
}

func (s *Standardizer) resolveExact(raw, normalized string) (Skill, bool) {
	entry, ok := s.index.LookupLabel(normalized)
	if !ok {
		return Skill{}, false
	}
	return resolvedSkill(entry, raw, MethodExact, 1), true
}

func (s *Standardizer) resolveVector(raw string, vector []float32, threshold float64) (Skill, bool, error) {
	if len(vector) != s.index.Dimension() {
		return Skill{}, false, fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(vector), s.index.Dimension())
	}

	top := s.index.Nearest(vector, debugCandidates)
	if ce := s.logger.Check(zap.DebugLevel, "embedding candidates"); ce != nil {
		candidates := make([]string, 0, len(top))
		for _, scored := range top {
			candidates = append(candidates, fmt.Sprintf("%s (%.3f)", scored.Entry.Label, scored.Similarity))
		}
		ce.Write(
			zap.String("phrase", utils.TruncateForLog(raw, maxLogLength)),
			zap.Strings("candidates", candidates),
		)
	}

	if len(top) == 0 || top[0].Similarity < threshold {
		return Skill{}, false, nil
	}
	return resolvedSkill(top[0].Entry, raw, MethodEmbedding, clamp01(top[0].Similarity)), true, nil
}

func (s *Standardizer) resolveFuzzy(raw, normalized string, threshold float64) (Skill, bool) {
	entry, score, ok := s.index.BestFuzzy(normalized)
	if !ok || score < threshold {
		return Skill{}, false
	}
	return resolvedSkill(entry, raw, MethodFuzzy, clamp01(score/100)), true
}

func resolvedSkill(entry taxonomy.Entry, raw string, method Method, confidence float64) Skill {
	return Skill{
		ID:         entry.ID,
		Label:      entry.Label,
		Raw:        raw,
		Method:     method,
		Confidence: confidence,
	}
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
