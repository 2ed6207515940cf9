// Package matching compares a requirement skill set with a candidate skill
// set. Pairs are accepted in three passes: equal keys, then greedy embedding
// similarity between canonical entries, then fuzzy label comparison.
package matching

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/fuzzy"
	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/standardize"
	"github.com/spigell/skillmatch/internal/taxonomy"
)

// ErrVersionMismatch is returned when a skill set was standardized against a
// different taxonomy index than the matcher uses.
var ErrVersionMismatch = errors.New("skill set taxonomy version does not match index")

// Matcher is safe for concurrent use.
type Matcher struct {
	index  *taxonomy.Index
	logger *zap.Logger
	now    func() time.Time
	newID  func() uuid.UUID
}

// NewMatcher returns a Matcher reading entry vectors from index.
func NewMatcher(index *taxonomy.Index, log *zap.Logger) *Matcher {
	return &Matcher{
		index:  index,
		logger: logger.WithFields(log, logger.IndexFields(index.Version().String())...),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.New,
	}
}

type candidatePair struct {
	req, cand  int
	similarity float64
}

type matchState struct {
	reqs      []standardize.Skill
	cands     []standardize.Skill
	reqUsed   []bool
	candUsed  []bool
	pairs     []Pair
	pairOrder []int
}

func (s *matchState) accept(req, cand int, similarity float64, method standardize.Method) {
	s.reqUsed[req] = true
	s.candUsed[cand] = true
	s.pairs = append(s.pairs, Pair{
		Requirement: s.reqs[req],
		Candidate:   s.cands[cand],
		Similarity:  similarity,
		Method:      method,
	})
	s.pairOrder = append(s.pairOrder, req)
}

// Match compares requirements with candidates. Either set may be empty or nil.
// Among pairs of equal similarity the earliest requirement wins, then the
// earliest candidate.
func (m *Matcher) Match(requirements, candidates *standardize.SkillSet, thresholds standardize.Thresholds) (*Result, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	for _, set := range []*standardize.SkillSet{requirements, candidates} {
		if v := set.TaxonomyVersion(); v != "" && v != m.index.Version().String() {
			return nil, fmt.Errorf("%w: set has %q, index has %q", ErrVersionMismatch, v, m.index.Version())
		}
	}

	state := &matchState{
		reqs:  requirements.Skills(),
		cands: candidates.Skills(),
	}
	state.reqUsed = make([]bool, len(state.reqs))
	state.candUsed = make([]bool, len(state.cands))

	exact := m.exactPass(state)
	similar := m.similarityPass(state, thresholds.Similarity)
	fuzzyMatched := m.fuzzyPass(state, thresholds.Fuzzy)

	result := &Result{
		ID:                  m.newID(),
		Matched:             sortedPairs(state),
		Missing:             unused(state.reqs, state.reqUsed),
		Extra:               unused(state.cands, state.candUsed),
		SimilarityThreshold: thresholds.Similarity,
		FuzzyThreshold:      thresholds.Fuzzy,
		TaxonomyVersion:     m.index.Version().String(),
		CreatedAt:           m.now(),
	}
	result.Score = score(len(result.Matched), len(state.reqs))

	m.logger.Info("skills matched",
		zap.Float64("match_score", result.Score),
		zap.Int("requirements", len(state.reqs)),
		zap.Int("candidates", len(state.cands)),
		zap.Int("exact", exact),
		zap.Int("embedding", similar),
		zap.Int("fuzzy", fuzzyMatched),
		zap.Int("missing", len(result.Missing)),
		zap.Int("extra", len(result.Extra)),
	)

	return result, nil
}

func (m *Matcher) exactPass(state *matchState) int {
	positions := make(map[string]int, len(state.cands))
	for j, cand := range state.cands {
		positions[cand.Key()] = j
	}

	matched := 0
	for i, req := range state.reqs {
		j, ok := positions[req.Key()]
		if !ok || state.candUsed[j] {
			continue
		}
		state.accept(i, j, 1, standardize.MethodExact)
		matched++
	}
	return matched
}

// similarityPass collects every remaining pair at or above threshold and
// accepts them greedily, best first. This is not an optimal assignment.
func (m *Matcher) similarityPass(state *matchState, threshold float64) int {
	var pairs []candidatePair
	for i, req := range state.reqs {
		if state.reqUsed[i] || !req.Resolved() {
			continue
		}
		for j, cand := range state.cands {
			if state.candUsed[j] || !cand.Resolved() {
				continue
			}
			similarity, ok := m.index.Similarity(req.ID, cand.ID)
			if !ok || similarity < threshold {
				continue
			}
			pairs = append(pairs, candidatePair{req: i, cand: j, similarity: similarity})
		}
	}

	sort.SliceStable(pairs, func(a, b int) bool {
		return pairs[a].similarity > pairs[b].similarity
	})

	matched := 0
	for _, pair := range pairs {
		if state.reqUsed[pair.req] || state.candUsed[pair.cand] {
			continue
		}
		state.accept(pair.req, pair.cand, min(pair.similarity, 1), standardize.MethodEmbedding)
		matched++
	}
	return matched
}

func (m *Matcher) fuzzyPass(state *matchState, threshold float64) int {
	matched := 0
	for i, req := range state.reqs {
		if state.reqUsed[i] {
			continue
		}

		positions := make([]int, 0, len(state.cands))
		labels := make([]string, 0, len(state.cands))
		for j, cand := range state.cands {
			if !state.candUsed[j] {
				positions = append(positions, j)
				labels = append(labels, cand.Label)
			}
		}
		if len(labels) == 0 {
			break
		}

		best, ok := fuzzy.BestMatch(req.Label, labels)
		if !ok || best.Score < threshold {
			m.logger.Debug("no fuzzy counterpart",
				zap.String("requirement", req.Label),
				zap.Float64("best_score", best.Score),
			)
			continue
		}
		state.accept(i, positions[best.Index], best.Score/100, standardize.MethodFuzzy)
		matched++
	}
	return matched
}

// sortedPairs orders accepted pairs by requirement position.
func sortedPairs(state *matchState) []Pair {
	order := make([]int, len(state.pairs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return state.pairOrder[order[a]] < state.pairOrder[order[b]]
	})

	pairs := make([]Pair, len(order))
	for i, k := range order {
		pairs[i] = state.pairs[k]
	}
	return pairs
}

func unused(skills []standardize.Skill, used []bool) []standardize.Skill {
	out := make([]standardize.Skill, 0, len(skills))
	for i, skill := range skills {
		if !used[i] {
			out = append(out, skill)
		}
	}
	return out
}

func score(matched, requirements int) float64 {
	if requirements == 0 {
		return 0
	}
	value := 100 * float64(matched) / float64(max(1, requirements))
	value = min(max(value, 0), 100)
	return math.Round(value*100) / 100
}
