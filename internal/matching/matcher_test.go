package matching

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/skillmatch/internal/standardize"
	"github.com/spigell/skillmatch/internal/taxonomy"
)

var (
	exactOnly = standardize.Thresholds{Similarity: 1, Fuzzy: 100}
	defaults  = standardize.Thresholds{Similarity: 0.3, Fuzzy: 80}
)

func testIndex(t *testing.T) *taxonomy.Index {
	t.Helper()
	index, err := taxonomy.NewIndex(
		taxonomy.Version{Taxonomy: "esco-1.2", Model: "fake/hash-4"},
		[]taxonomy.Entry{
			{ID: "esco:cooking", Label: "cooking", Vector: []float32{0, 0, 0, 1}},
			{ID: "esco:cpython", Label: "CPython", Vector: []float32{1, 0, 0, 0}},
			{ID: "esco:go", Label: "Go (computer programming)", Vector: []float32{0, 1, 0, 0}},
			{ID: "esco:golang", Label: "Golang", Vector: []float32{0, 1, 0, 0}},
			{ID: "esco:java", Label: "Java (computer programming)", Vector: []float32{0.8, 0.6, 0, 0}},
			{ID: "esco:mysql", Label: "MySQL", Vector: []float32{0, 0, 0.9, 0.43589}},
			{ID: "esco:python", Label: "Python (computer programming)", Vector: []float32{1, 0, 0, 0}},
			{ID: "esco:rust", Label: "Rust", Vector: []float32{0, 1, 0, 0}},
			{ID: "esco:sql", Label: "SQL", Vector: []float32{0, 0, 1, 0}},
		},
	)
	require.NoError(t, err)
	return index
}

func newMatcher(t *testing.T) (*Matcher, *taxonomy.Index) {
	t.Helper()
	index := testIndex(t)
	return NewMatcher(index, nil), index
}

func skillSet(t *testing.T, index *taxonomy.Index, ids ...string) *standardize.SkillSet {
	t.Helper()
	skills := make([]standardize.Skill, 0, len(ids))
	for _, id := range ids {
		entry, ok := index.Lookup(id)
		require.True(t, ok, id)
		skills = append(skills, standardize.Skill{ID: entry.ID, Label: entry.Label, Raw: entry.Label, Method: standardize.MethodExact, Confidence: 1})
	}
	return standardize.NewSkillSet(index.Version().String(), skills...)
}

func ids(skills []standardize.Skill) []string {
	out := make([]string, len(skills))
	for i, skill := range skills {
		out[i] = skill.Key()
	}
	return out
}

func TestMatchScenario(t *testing.T) {
	m, index := newMatcher(t)

	req := skillSet(t, index, "esco:python", "esco:sql")
	cand := skillSet(t, index, "esco:python", "esco:java", "esco:sql")

	result, err := m.Match(req, cand, defaults)
	require.NoError(t, err)

	assert.Equal(t, 100.0, result.Score)
	require.Len(t, result.Matched, 2)
	assert.Equal(t, 2, result.CountByMethod(standardize.MethodExact))
	assert.Equal(t, 1.0, result.Matched[0].Similarity)
	assert.Equal(t, []string{"esco:java"}, ids(result.Extra))
	assert.NotNil(t, result.Missing)
	assert.Empty(t, result.Missing)
	assert.Equal(t, "esco-1.2@fake/hash-4", result.TaxonomyVersion)
	assert.NotEqual(t, uuid.Nil, result.ID)
}

func TestMatchSelf(t *testing.T) {
	m, index := newMatcher(t)
	set := skillSet(t, index, "esco:go", "esco:rust", "esco:golang", "esco:sql", "esco:mysql")

	for _, th := range []standardize.Thresholds{exactOnly, defaults} {
		result, err := m.Match(set, set, th)
		require.NoError(t, err)
		assert.Equal(t, 100.0, result.Score)
		assert.Empty(t, result.Extra)
		assert.Equal(t, 5, result.CountByMethod(standardize.MethodExact))
	}
}

func TestMatchEmptySets(t *testing.T) {
	m, index := newMatcher(t)
	set := skillSet(t, index, "esco:python", "esco:sql")
	empty := standardize.NewSkillSet(index.Version().String())

	t.Run("empty candidates", func(t *testing.T) {
		for _, cand := range []*standardize.SkillSet{empty, nil} {
			result, err := m.Match(set, cand, defaults)
			require.NoError(t, err)
			assert.Equal(t, 0.0, result.Score)
			assert.Equal(t, set.Skills(), result.Missing)
			assert.Empty(t, result.Matched)
			assert.Empty(t, result.Extra)
		}
	})

	t.Run("empty requirements", func(t *testing.T) {
		for _, req := range []*standardize.SkillSet{empty, nil} {
			result, err := m.Match(req, set, defaults)
			require.NoError(t, err)
			assert.Equal(t, 0.0, result.Score)
			assert.Empty(t, result.Missing)
			assert.Empty(t, result.Matched)
			assert.Equal(t, set.Skills(), result.Extra)
		}
	})

	t.Run("both empty", func(t *testing.T) {
		result, err := m.Match(nil, nil, defaults)
		require.NoError(t, err)
		assert.Equal(t, 0.0, result.Score)
		assert.NotNil(t, result.Matched)
		assert.NotNil(t, result.Extra)
	})
}

func TestMatchSimilarityPass(t *testing.T) {
	m, index := newMatcher(t)

	req := skillSet(t, index, "esco:python", "esco:sql", "esco:cooking")
	cand := skillSet(t, index, "esco:mysql", "esco:java")

	result, err := m.Match(req, cand, standardize.Thresholds{Similarity: 0.7, Fuzzy: 90})
	require.NoError(t, err)

	require.Len(t, result.Matched, 2)
	assert.Equal(t, "esco:python", result.Matched[0].Requirement.ID, "pairs follow requirement order")
	assert.Equal(t, "esco:java", result.Matched[0].Candidate.ID)
	assert.InDelta(t, 0.8, result.Matched[0].Similarity, 1e-6)
	assert.Equal(t, standardize.MethodEmbedding, result.Matched[0].Method)
	assert.Equal(t, "esco:mysql", result.Matched[1].Candidate.ID)
	assert.InDelta(t, 0.9, result.Matched[1].Similarity, 1e-4)

	assert.Equal(t, []string{"esco:cooking"}, ids(result.Missing))
	assert.Equal(t, 66.67, result.Score)
}

func TestMatchGreedyPicksGlobalBest(t *testing.T) {
	m, index := newMatcher(t)

	req := skillSet(t, index, "esco:java", "esco:python")
	cand := skillSet(t, index, "esco:cpython")

	result, err := m.Match(req, cand, standardize.Thresholds{Similarity: 0.5, Fuzzy: 90})
	require.NoError(t, err)

	require.Len(t, result.Matched, 1)
	assert.Equal(t, "esco:python", result.Matched[0].Requirement.ID)
	assert.Equal(t, []string{"esco:java"}, ids(result.Missing))
	assert.Equal(t, 50.0, result.Score)
}

func TestMatchTieBreak(t *testing.T) {
	m, index := newMatcher(t)
	th := standardize.Thresholds{Similarity: 0.5, Fuzzy: 100}

	tests := []struct {
		name      string
		req       []string
		cand      []string
		wantReq   string
		wantCand  string
		wantExtra []string
	}{
		{
			name:     "earliest requirement wins",
			req:      []string{"esco:rust", "esco:go"},
			cand:     []string{"esco:golang"},
			wantReq:  "esco:rust",
			wantCand: "esco:golang",
		},
		{
			name:     "order of requirements decides",
			req:      []string{"esco:go", "esco:rust"},
			cand:     []string{"esco:golang"},
			wantReq:  "esco:go",
			wantCand: "esco:golang",
		},
		{
			name:      "earliest candidate wins",
			req:       []string{"esco:go"},
			cand:      []string{"esco:rust", "esco:golang"},
			wantReq:   "esco:go",
			wantCand:  "esco:rust",
			wantExtra: []string{"esco:golang"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := m.Match(skillSet(t, index, tt.req...), skillSet(t, index, tt.cand...), th)
			require.NoError(t, err)

			require.Len(t, result.Matched, 1)
			assert.Equal(t, tt.wantReq, result.Matched[0].Requirement.ID)
			assert.Equal(t, tt.wantCand, result.Matched[0].Candidate.ID)
			if tt.wantExtra != nil {
				assert.Equal(t, tt.wantExtra, ids(result.Extra))
			}
		})
	}
}

func TestMatchThresholdIsMonotone(t *testing.T) {
	m, index := newMatcher(t)

	req := skillSet(t, index, "esco:python", "esco:sql", "esco:go", "esco:cooking")
	cand := skillSet(t, index, "esco:java", "esco:mysql", "esco:rust", "esco:cpython")

	previous := len(req.Skills()) + 1
	for _, similarity := range []float64{0, 0.3, 0.5, 0.8, 0.85, 0.9, 0.95, 1} {
		result, err := m.Match(req, cand, standardize.Thresholds{Similarity: similarity, Fuzzy: 100})
		require.NoError(t, err)

		n := result.CountByMethod(standardize.MethodEmbedding)
		assert.LessOrEqual(t, n, previous, "threshold %.2f", similarity)
		assert.GreaterOrEqual(t, result.Score, 0.0)
		assert.LessOrEqual(t, result.Score, 100.0)
		previous = n
	}
}

func TestMatchFuzzyPass(t *testing.T) {
	m, index := newMatcher(t)
	version := index.Version().String()

	req := standardize.NewSkillSet(version,
		standardize.Skill{Label: "Kubernetes", Method: standardize.MethodUnresolved},
		standardize.Skill{Label: "Terraform", Method: standardize.MethodUnresolved},
	)
	cand := standardize.NewSkillSet(version,
		standardize.Skill{Label: "kubernetes admin", Method: standardize.MethodUnresolved},
		standardize.Skill{Label: "terraform ", Method: standardize.MethodUnresolved},
	)

	result, err := m.Match(req, cand, defaults)
	require.NoError(t, err)

	require.Len(t, result.Matched, 2)
	assert.Equal(t, standardize.MethodFuzzy, result.Matched[0].Method)
	assert.InDelta(t, 0.9, result.Matched[0].Similarity, 1e-9)
	assert.Equal(t, standardize.MethodExact, result.Matched[1].Method, "unresolved skills with equal keys match exactly")
	assert.Equal(t, 100.0, result.Score)

	strict, err := m.Match(req, cand, standardize.Thresholds{Similarity: 0.3, Fuzzy: 95})
	require.NoError(t, err)
	assert.Equal(t, []string{"Kubernetes"}, strict.MissingLabels())
	assert.Equal(t, []string{"kubernetes admin"}, strict.ExtraLabels())
	assert.Equal(t, 50.0, strict.Score)
}

func TestMatchRejectsForeignSets(t *testing.T) {
	m, index := newMatcher(t)

	foreign := standardize.NewSkillSet("esco-1.1@fake/hash-4", standardize.Skill{ID: "esco:sql", Label: "SQL", Method: standardize.MethodExact, Confidence: 1})
	_, err := m.Match(skillSet(t, index, "esco:sql"), foreign, defaults)
	assert.ErrorIs(t, err, ErrVersionMismatch)

	_, err = m.Match(nil, nil, standardize.Thresholds{Similarity: 2})
	assert.Error(t, err)
}

func TestResultJSON(t *testing.T) {
	m, index := newMatcher(t)
	m.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	m.newID = func() uuid.UUID { return uuid.MustParse("0b7c7f38-5c1f-4c39-9d3b-6f1f8f9f3a01") }

	result, err := m.Match(skillSet(t, index, "esco:sql"), nil, defaults)
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "0b7c7f38-5c1f-4c39-9d3b-6f1f8f9f3a01",
		"match_score": 0,
		"matched_skills": [],
		"missing_skills": [{"id": "esco:sql", "label": "SQL", "raw": "SQL", "method": "exact", "confidence": 1}],
		"extra_skills": [],
		"similarity_threshold": 0.3,
		"fuzzy_threshold": 80,
		"taxonomy_version": "esco-1.2@fake/hash-4",
		"created_at": "2025-01-02T03:04:05Z"
	}`, string(data))
}

func TestRank(t *testing.T) {
	m, index := newMatcher(t)
	job := skillSet(t, index, "esco:python", "esco:sql")

	ranked, err := m.Rank(job, []Candidate{
		{Owner: "alice", Skills: skillSet(t, index, "esco:python")},
		{Owner: "bob", Skills: skillSet(t, index, "esco:python", "esco:sql")},
		{Owner: "carol", Skills: skillSet(t, index, "esco:sql")},
		{Owner: "dave", Skills: skillSet(t, index, "esco:cooking")},
	}, exactOnly)
	require.NoError(t, err)

	owners := make([]string, len(ranked))
	for i, r := range ranked {
		owners[i] = r.Owner
	}
	assert.Equal(t, []string{"bob", "alice", "carol", "dave"}, owners)
	assert.Equal(t, 100.0, ranked[0].Result.Score)

	assert.Len(t, Top(ranked, 2), 2)
	assert.Len(t, Top(ranked, 0), 4)
	assert.Len(t, Top(ranked, 10), 4)
}
