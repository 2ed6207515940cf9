package matching

import (
	"time"

	"github.com/google/uuid"

	"github.com/spigell/skillmatch/internal/standardize"
)

// Pair is an accepted requirement/candidate match. Similarity is on the [0,1]
// scale for every method.
type Pair struct {
	Requirement standardize.Skill  `json:"requirement"`
	Candidate   standardize.Skill  `json:"candidate"`
	Similarity  float64            `json:"similarity"`
	Method      standardize.Method `json:"method"`
}

// Result is the outcome of matching a requirement set against a candidate
// set. It is never modified after Match returns it.
type Result struct {
	ID                  uuid.UUID           `json:"id"`
	Score               float64             `json:"match_score"`
	Matched             []Pair              `json:"matched_skills"`
	Missing             []standardize.Skill `json:"missing_skills"`
	Extra               []standardize.Skill `json:"extra_skills"`
	SimilarityThreshold float64             `json:"similarity_threshold"`
	FuzzyThreshold      float64             `json:"fuzzy_threshold"`
	TaxonomyVersion     string              `json:"taxonomy_version"`
	CreatedAt           time.Time           `json:"created_at"`
}

// CountByMethod returns how many pairs were matched by method.
func (r *Result) CountByMethod(method standardize.Method) int {
	n := 0
	for _, pair := range r.Matched {
		if pair.Method == method {
			n++
		}
	}
	return n
}

// MissingLabels returns the labels of unmatched requirements.
func (r *Result) MissingLabels() []string {
	return labels(r.Missing)
}

// ExtraLabels returns the labels of unmatched candidate skills.
func (r *Result) ExtraLabels() []string {
	return labels(r.Extra)
}

func labels(skills []standardize.Skill) []string {
	out := make([]string, len(skills))
	for i, skill := range skills {
		out[i] = skill.Label
	}
	return out
}
