package matching

import (
	"fmt"
	"sort"

	"github.com/spigell/skillmatch/internal/standardize"
)

// Candidate is a named skill set competing for one requirement set.
type Candidate struct {
	Owner  string
	Skills *standardize.SkillSet
}

// Ranked is a candidate with its match result.
type Ranked struct {
	Owner  string  `json:"owner"`
	Result *Result `json:"result"`
}

// Rank matches every candidate against requirements and orders them by
// descending score. Candidates with equal scores keep their input order.
func (m *Matcher) Rank(requirements *standardize.SkillSet, candidates []Candidate, thresholds standardize.Thresholds) ([]Ranked, error) {
	ranked := make([]Ranked, 0, len(candidates))
	for _, candidate := range candidates {
		result, err := m.Match(requirements, candidate.Skills, thresholds)
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", candidate.Owner, err)
		}
		ranked = append(ranked, Ranked{Owner: candidate.Owner, Result: result})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Result.Score > ranked[j].Result.Score
	})
	return ranked, nil
}

// Top returns at most n entries of ranked. A non-positive n returns all.
func Top(ranked []Ranked, n int) []Ranked {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}
