package standardize

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/skillmatch/internal/taxonomy"
	"github.com/spigell/skillmatch/internal/utils"
)

// Step summarizes one stage of a batch run.
type Step struct {
	Name     string `json:"name"`
	Initial  int    `json:"initial"`
	Resolved int    `json:"resolved"`
	Left     int    `json:"left"`
}

// Report describes how a batch run went.
type Report struct {
	Steps []Step `json:"steps"`
	// Degraded is set when the provider failed and the remaining phrases were
	// resolved by fuzzy matching only.
	Degraded bool `json:"degraded"`
	// ProviderError is the first provider failure, if any.
	ProviderError error `json:"-"`
	// Unresolved lists the raw phrases no step could resolve.
	Unresolved []string `json:"unresolved"`
}

type phrase struct {
	raw        string
	normalized string
}

type batchRun struct {
	phrases []phrase
	results []*Skill
	report  Report
}

// StandardizeAll resolves a list of untrusted phrases into a SkillSet.
// Phrases are normalized and deduplicated first; empty ones are dropped. The
// remaining phrases go through the exact, embedding and fuzzy steps in that
// order, each step only seeing what earlier steps left unresolved.
//
// Provider errors and timeouts, including an expired deadline on ctx, do not
// fail the call: the affected and all remaining phrases are resolved by fuzzy
// matching and the report is marked degraded. Only cancellation fails it.
func (s *Standardizer) StandardizeAll(ctx context.Context, phrases []string, opts Options) (*SkillSet, Report, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, Report{}, err
	}

	run := &batchRun{phrases: dedupe(phrases)}
	run.results = make([]*Skill, len(run.phrases))
	s.record(run, Step{Name: "normalize", Initial: len(phrases), Left: len(run.phrases)})

	pending := s.exactStep(run)

	if s.provider == nil {
		s.logger.Debug("embedding provider is not configured; skipping embedding step")
	} else if len(pending) > 0 {
		var err error
		pending, err = s.embeddingStep(ctx, run, pending, opts)
		if err != nil {
			return nil, run.report, err
		}
	}

	pending = s.fuzzyStep(run, pending, opts.Fuzzy)

	skills := make([]Skill, 0, len(run.phrases))
	unresolved := make(map[int]bool, len(pending))
	for _, i := range pending {
		unresolved[i] = true
		run.report.Unresolved = append(run.report.Unresolved, run.phrases[i].raw)
	}

	for i, result := range run.results {
		switch {
		case result != nil:
			skills = append(skills, *result)
		case unresolved[i] && opts.Unresolved == PolicyKeep:
			skills = append(skills, unresolvedSkill(run.phrases[i].raw))
		}
	}

	if len(pending) > 0 {
		s.logger.Info("unresolved phrases",
			zap.Int("count", len(pending)),
			zap.String("policy", string(opts.Unresolved)),
			zap.Strings("phrases", utils.TruncateAll(run.report.Unresolved, maxLogLength)),
		)
	}

	return NewSkillSet(s.index.Version().String(), skills...), run.report, nil
}

func (s *Standardizer) record(run *batchRun, step Step) {
	run.report.Steps = append(run.report.Steps, step)
	s.logger.Info("standardize step",
		zap.String("name", step.Name),
		zap.Int("initial", step.Initial),
		zap.Int("resolved", step.Resolved),
		zap.Int("left", step.Left),
	)
}

func (s *Standardizer) exactStep(run *batchRun) []int {
	pending := make([]int, 0, len(run.phrases))
	for i, p := range run.phrases {
		if skill, ok := s.resolveExact(p.raw, p.normalized); ok {
			run.results[i] = &skill
			continue
		}
		pending = append(pending, i)
	}

	s.record(run, Step{Name: "exact", Initial: len(run.phrases), Resolved: len(run.phrases) - len(pending), Left: len(pending)})
	return pending
}

func (s *Standardizer) embeddingStep(ctx context.Context, run *batchRun, pending []int, opts Options) ([]int, error) {
	var (
		degraded atomic.Bool
		once     sync.Once
		group    errgroup.Group
	)
	group.SetLimit(opts.Concurrency)

	degrade := func(err error, size int) {
		degraded.Store(true)
		once.Do(func() {
			run.report.ProviderError = err
			s.logger.Warn("embedding provider failed, falling back to fuzzy matching",
				zap.Int("batch_size", size),
				zap.Error(err),
			)
		})
	}

	for start := 0; start < len(pending); start += opts.BatchSize {
		batch := pending[start:min(start+opts.BatchSize, len(pending))]

		group.Go(func() error {
			if degraded.Load() {
				return nil
			}
			if err := canceled(ctx); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				degrade(err, len(batch))
				return nil
			}

			texts := make([]string, len(batch))
			for k, i := range batch {
				texts[k] = run.phrases[i].normalized
			}

			callCtx, cancel := ctx, context.CancelFunc(func() {})
			if opts.EmbedTimeout > 0 {
				callCtx, cancel = context.WithTimeout(ctx, opts.EmbedTimeout)
			}
			vectors, err := s.provider.EmbedMany(callCtx, texts)
			cancel()

			if err == nil && len(vectors) != len(texts) {
				err = errors.New("provider returned a wrong number of vectors")
			}
			if err != nil {
				if ctxErr := canceled(ctx); ctxErr != nil {
					return ctxErr
				}
				degrade(err, len(texts))
				return nil
			}

			for k, i := range batch {
				skill, ok, err := s.resolveVector(run.phrases[i].raw, vectors[k], opts.Similarity)
				if err != nil {
					return err
				}
				if ok {
					run.results[i] = &skill
				}
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	run.report.Degraded = degraded.Load()

	left := make([]int, 0, len(pending))
	for _, i := range pending {
		if run.results[i] == nil {
			left = append(left, i)
		}
	}

	s.record(run, Step{Name: "embedding", Initial: len(pending), Resolved: len(pending) - len(left), Left: len(left)})
	return left, nil
}

func (s *Standardizer) fuzzyStep(run *batchRun, pending []int, threshold float64) []int {
	left := make([]int, 0, len(pending))
	for _, i := range pending {
		p := run.phrases[i]
		if skill, ok := s.resolveFuzzy(p.raw, p.normalized, threshold); ok {
			run.results[i] = &skill
			continue
		}
		left = append(left, i)
	}

	s.record(run, Step{Name: "fuzzy", Initial: len(pending), Resolved: len(pending) - len(left), Left: len(left)})
	return left
}

// dedupe normalizes phrases and keeps the first raw form of every normalized
// phrase, in input order.
func dedupe(phrases []string) []phrase {
	seen := make(map[string]struct{}, len(phrases))
	out := make([]phrase, 0, len(phrases))
	for _, raw := range phrases {
		normalized := taxonomy.Normalize(raw)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, phrase{raw: collapseSpaces(raw), normalized: normalized})
	}
	return out
}

// canceled returns the context error unless the context merely ran out of
// time. An expired deadline degrades the run instead of failing it.
func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
