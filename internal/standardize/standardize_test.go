package standardize

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/skillmatch/internal/embedding/embeddingtest"
	"github.com/spigell/skillmatch/internal/taxonomy"
)

var jobThresholds = Thresholds{Similarity: 0.6, Fuzzy: 90}

func testIndex(t *testing.T) *taxonomy.Index {
	t.Helper()
	index, err := taxonomy.NewIndex(
		taxonomy.Version{Taxonomy: "esco-1.2", Model: "fake/hash-3"},
		[]taxonomy.Entry{
			{ID: "esco:java", Label: "Java (computer programming)", Vector: []float32{0, 1, 0}},
			{ID: "esco:python", Label: "Python (computer programming)", Vector: []float32{1, 0, 0}},
			{ID: "esco:sql", Label: "SQL", Vector: []float32{0, 0, 1}},
		},
	)
	require.NoError(t, err)
	return index
}

// testProvider returns a fake whose vectors are pinned for every phrase the
// tests use, so nothing depends on hashing.
func testProvider() *embeddingtest.Fake {
	fake := embeddingtest.New(3)
	fake.Vectors = map[string][]float32{
		"python":       {1, 0, 0},
		"py scripting": {0.9, 0.1, 0},
		"databases":    {0.2, 0, 1},
		"pythn":        {0, 0, 0},
		"cooking":      {0, 0, 0},
		"gardening":    {0, 0, 0},
		"weird":        {1, 0},
	}
	return fake
}

func newStandardizer(t *testing.T, provider *embeddingtest.Fake, log *zap.Logger) *Standardizer {
	t.Helper()
	var s *Standardizer
	var err error
	if provider == nil {
		s, err = New(testIndex(t), nil, log)
	} else {
		s, err = New(testIndex(t), provider, log)
	}
	require.NoError(t, err)
	return s
}

func TestNewRejectsModelMismatch(t *testing.T) {
	_, err := New(testIndex(t), embeddingtest.New(8), nil)

	var mismatch *taxonomy.ModelMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "fake/hash-3", mismatch.IndexModel)
	assert.Equal(t, "fake/hash-8", mismatch.ProviderModel)
}

func TestStandardizeSelfMatch(t *testing.T) {
	provider := testProvider()
	s := newStandardizer(t, provider, nil)
	index := s.Index()

	for i := 0; i < index.Len(); i++ {
		entry := index.Entry(i)

		skill, err := s.Standardize(context.Background(), entry.Label, Thresholds{Similarity: 1, Fuzzy: 100})
		require.NoError(t, err)
		assert.Equal(t, entry.ID, skill.ID)
		assert.Equal(t, 1.0, skill.Confidence)
		assert.Equal(t, MethodExact, skill.Method)

		again, err := s.Standardize(context.Background(), skill.Label, jobThresholds)
		require.NoError(t, err)
		assert.Equal(t, skill.ID, again.ID, "standardizing a canonical label is idempotent")
	}

	assert.Zero(t, provider.Calls(), "canonical labels never reach the provider")
}

func TestStandardize(t *testing.T) {
	tests := []struct {
		name   string
		phrase string
		id     string
		method Method
	}{
		{name: "embedding", phrase: "Py  Scripting", id: "esco:python", method: MethodEmbedding},
		{name: "fuzzy fallback below similarity threshold", phrase: "pythn", id: "esco:python", method: MethodFuzzy},
		{name: "unresolved", phrase: "Cooking", method: MethodUnresolved},
	}

	s := newStandardizer(t, testProvider(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skill, err := s.Standardize(context.Background(), tt.phrase, jobThresholds)
			require.NoError(t, err)
			assert.Equal(t, tt.id, skill.ID)
			assert.Equal(t, tt.method, skill.Method)
			assert.Equal(t, tt.id != "", skill.Resolved())
			assert.GreaterOrEqual(t, skill.Confidence, 0.0)
			assert.LessOrEqual(t, skill.Confidence, 1.0)
		})
	}
}

func TestStandardizeFuzzyConfidence(t *testing.T) {
	s := newStandardizer(t, testProvider(), nil)

	skill, err := s.Standardize(context.Background(), "pythn", jobThresholds)
	require.NoError(t, err)
	assert.InDelta(t, 0.909, skill.Confidence, 0.01)
	assert.Equal(t, "pythn", skill.Raw)
	assert.Equal(t, "Python (computer programming)", skill.Label)
}

func TestStandardizeProviderFailureFallsBack(t *testing.T) {
	provider := testProvider()
	provider.Err = errors.New("unavailable")
	s := newStandardizer(t, provider, nil)

	skill, err := s.Standardize(context.Background(), "pythn", jobThresholds)
	require.NoError(t, err)
	assert.Equal(t, MethodFuzzy, skill.Method)
	assert.Equal(t, 1, provider.Calls())
}

func TestStandardizeWithoutProvider(t *testing.T) {
	s := newStandardizer(t, nil, nil)

	skill, err := s.Standardize(context.Background(), "pythn", jobThresholds)
	require.NoError(t, err)
	assert.Equal(t, MethodFuzzy, skill.Method)
}

func TestStandardizeErrors(t *testing.T) {
	s := newStandardizer(t, testProvider(), nil)

	_, err := s.Standardize(context.Background(), "  \t ", jobThresholds)
	assert.ErrorIs(t, err, ErrEmptyPhrase)

	_, err = s.Standardize(context.Background(), "python", Thresholds{Similarity: 1.5, Fuzzy: 90})
	assert.Error(t, err)

	_, err = s.Standardize(context.Background(), "weird", jobThresholds)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestStandardizeAllDeduplicates(t *testing.T) {
	provider := testProvider()
	s := newStandardizer(t, provider, nil)

	set, report, err := s.StandardizeAll(context.Background(), []string{"Python", "python ", "PYTHON", "", "  "}, NewOptions(jobThresholds))
	require.NoError(t, err)

	require.Equal(t, 1, set.Len())
	skill := set.At(0)
	assert.Equal(t, "esco:python", skill.ID)
	assert.Equal(t, "Python", skill.Raw)
	assert.Equal(t, [][]string{{"python"}}, provider.Texts())
	assert.False(t, report.Degraded)
	assert.Equal(t, "esco-1.2@fake/hash-3", set.TaxonomyVersion())
}

func TestStandardizeAllCollapsesToHighestConfidence(t *testing.T) {
	s := newStandardizer(t, testProvider(), nil)

	set, _, err := s.StandardizeAll(context.Background(), []string{"py scripting", "SQL", "Python (computer programming)"}, NewOptions(jobThresholds))
	require.NoError(t, err)

	require.Equal(t, 2, set.Len())
	assert.Equal(t, "esco:python", set.At(0).ID, "collapsed skill keeps the first position")
	assert.Equal(t, MethodExact, set.At(0).Method)
	assert.Equal(t, 1.0, set.At(0).Confidence)
	assert.Equal(t, "esco:sql", set.At(1).ID)
}

func TestStandardizeAllBatches(t *testing.T) {
	provider := testProvider()
	s := newStandardizer(t, provider, nil)

	opts := NewOptions(jobThresholds)
	opts.BatchSize = 2
	set, report, err := s.StandardizeAll(context.Background(), []string{"py scripting", "databases", "pythn", "cooking", "SQL"}, opts)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"py scripting", "databases"}, {"pythn", "cooking"}}, provider.Texts())
	assert.Equal(t, []string{"cooking"}, report.Unresolved)

	python, ok := set.Get("esco:python")
	require.True(t, ok)
	assert.Equal(t, MethodEmbedding, python.Method, "py scripting resolves first and wins over the weaker fuzzy match")
	assert.True(t, set.Contains("esco:sql"))
	assert.False(t, set.Contains("raw:cooking"))

	names := make([]string, 0, len(report.Steps))
	for _, step := range report.Steps {
		names = append(names, step.Name)
	}
	assert.Equal(t, []string{"normalize", "exact", "embedding", "fuzzy"}, names)
	assert.Equal(t, Step{Name: "exact", Initial: 5, Resolved: 1, Left: 4}, report.Steps[1])
	assert.Equal(t, Step{Name: "embedding", Initial: 4, Resolved: 2, Left: 2}, report.Steps[2])
	assert.Equal(t, Step{Name: "fuzzy", Initial: 2, Resolved: 1, Left: 1}, report.Steps[3])
}

func TestStandardizeAllTimeoutFallsBackToFuzzy(t *testing.T) {
	provider := testProvider()
	provider.Delay = time.Second
	s := newStandardizer(t, provider, nil)

	opts := NewOptions(jobThresholds)
	opts.BatchSize = 1
	opts.EmbedTimeout = 10 * time.Millisecond

	start := time.Now()
	set, report, err := s.StandardizeAll(context.Background(), []string{"pythn", "py scripting", "databases"}, opts)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, report.Degraded)
	require.Error(t, report.ProviderError)
	assert.True(t, errors.Is(report.ProviderError, context.DeadlineExceeded))
	assert.Equal(t, 1, provider.Calls(), "remaining batches skip the provider")

	require.Equal(t, 1, set.Len())
	assert.Equal(t, MethodFuzzy, set.At(0).Method)
	assert.ElementsMatch(t, []string{"py scripting", "databases"}, report.Unresolved)
}

func TestStandardizeAllCallerDeadlineFallsBackToFuzzy(t *testing.T) {
	provider := testProvider()
	provider.Delay = time.Second
	s := newStandardizer(t, provider, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	set, report, err := s.StandardizeAll(ctx, []string{"pythn", "SQL"}, NewOptions(jobThresholds))
	require.NoError(t, err)

	assert.True(t, report.Degraded)
	require.Error(t, report.ProviderError)
	assert.True(t, errors.Is(report.ProviderError, context.DeadlineExceeded))

	require.Equal(t, 2, set.Len())
	python, ok := set.Get("esco:python")
	require.True(t, ok)
	assert.Equal(t, MethodFuzzy, python.Method)
	sql, ok := set.Get("esco:sql")
	require.True(t, ok)
	assert.Equal(t, MethodExact, sql.Method)
}

func TestStandardizeAllCanceledFails(t *testing.T) {
	provider := testProvider()
	provider.Delay = time.Second
	s := newStandardizer(t, provider, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, err := s.StandardizeAll(ctx, []string{"pythn", "SQL"}, NewOptions(jobThresholds))
	require.ErrorIs(t, err, context.Canceled)
}

func TestStandardizeAllKeepsUnresolved(t *testing.T) {
	s := newStandardizer(t, testProvider(), nil)

	opts := NewOptions(jobThresholds)
	opts.Unresolved = PolicyKeep
	set, _, err := s.StandardizeAll(context.Background(), []string{"Cooking", "SQL", "gardening"}, opts)
	require.NoError(t, err)

	require.Equal(t, 3, set.Len())
	cooking, ok := set.Get("raw:cooking")
	require.True(t, ok)
	assert.Equal(t, Skill{Label: "Cooking", Raw: "Cooking", Method: MethodUnresolved}, cooking)
	assert.False(t, cooking.Resolved())
	assert.Equal(t, "Cooking", set.At(0).Label)
}

func TestStandardizeAllEmptyInput(t *testing.T) {
	provider := testProvider()
	s := newStandardizer(t, provider, nil)

	set, report, err := s.StandardizeAll(context.Background(), nil, NewOptions(jobThresholds))
	require.NoError(t, err)
	assert.Zero(t, set.Len())
	assert.Zero(t, provider.Calls())
	assert.Empty(t, report.Unresolved)
}

func TestStandardizeAllFailsOnDimensionMismatch(t *testing.T) {
	s := newStandardizer(t, testProvider(), nil)

	_, _, err := s.StandardizeAll(context.Background(), []string{"weird"}, NewOptions(jobThresholds))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestStandardizeAllCancelled(t *testing.T) {
	s := newStandardizer(t, testProvider(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.StandardizeAll(ctx, []string{"py scripting"}, NewOptions(jobThresholds))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStandardizeAllWithoutProvider(t *testing.T) {
	s := newStandardizer(t, nil, nil)

	set, report, err := s.StandardizeAll(context.Background(), []string{"pythn", "sql"}, NewOptions(jobThresholds))
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Len(t, report.Steps, 3)
}

func TestStandardizeAllLogsSteps(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	s := newStandardizer(t, testProvider(), zap.New(core))

	_, _, err := s.StandardizeAll(context.Background(), []string{"SQL", "py scripting"}, NewOptions(jobThresholds))
	require.NoError(t, err)

	steps := observed.FilterMessage("standardize step").All()
	require.Len(t, steps, 4)
	fields := steps[1].ContextMap()
	assert.Equal(t, "exact", fields["name"])
	assert.Equal(t, int64(1), fields["resolved"])
	assert.Equal(t, "esco-1.2@fake/hash-3", fields["taxonomy_version"])
	assert.Equal(t, "fake", fields["embedding_provider"])
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, NewOptions(jobThresholds).Validate())
	assert.NoError(t, Options{Thresholds: jobThresholds}.Validate(), "zero values take defaults")

	bad := []Options{
		{Thresholds: Thresholds{Similarity: -0.1, Fuzzy: 90}},
		{Thresholds: Thresholds{Similarity: 0.5, Fuzzy: 101}},
		{Thresholds: jobThresholds, BatchSize: -1},
		{Thresholds: jobThresholds, Unresolved: "maybe"},
		{Thresholds: jobThresholds, EmbedTimeout: -time.Second},
	}
	for _, opts := range bad {
		assert.Error(t, opts.Validate(), "%+v", opts)
	}
}

func TestSkillSetJSON(t *testing.T) {
	set := NewSkillSet("esco-1.2@fake/hash-3",
		Skill{ID: "esco:sql", Label: "SQL", Raw: "sql", Method: MethodFuzzy, Confidence: 0.9},
		Skill{Label: "Cooking", Raw: "Cooking", Method: MethodUnresolved},
		Skill{ID: "esco:sql", Label: "SQL", Raw: "SQL", Method: MethodExact, Confidence: 1},
	)

	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"taxonomy_version": "esco-1.2@fake/hash-3",
		"skills": [
			{"id": "esco:sql", "label": "SQL", "raw": "SQL", "method": "exact", "confidence": 1},
			{"label": "Cooking", "raw": "Cooking", "method": "unresolved", "confidence": 0}
		]
	}`, string(data))

	var decoded SkillSet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, set.Skills(), decoded.Skills())
	assert.True(t, decoded.Contains("raw:cooking"))

	empty, err := json.Marshal(NewSkillSet("v@m/x"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"taxonomy_version": "v@m/x", "skills": []}`, string(empty))
}
