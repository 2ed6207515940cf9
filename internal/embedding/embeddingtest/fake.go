// Package embeddingtest provides a deterministic in-memory embedding provider
// for tests.
package embeddingtest

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/spigell/skillmatch/internal/embedding"
)

// Fake hashes character trigrams and words of a text into a fixed number of
// buckets. Equal texts get equal vectors; texts sharing many trigrams end up
// close to each other.
type Fake struct {
	Dim       int
	ModelName string
	// Vectors overrides the hashed vector for exact texts.
	Vectors map[string][]float32
	// Err, when set, is returned by every EmbedMany call.
	Err error
	// FailFrom makes calls with a 1-based number >= FailFrom fail with Err or
	// a generic error. Zero disables it.
	FailFrom int
	// Delay blocks each call until it elapses or the context is done.
	Delay time.Duration

	mu    sync.Mutex
	calls int
	texts [][]string
}

// New returns a Fake producing vectors of length dim.
func New(dim int) *Fake {
	return &Fake{Dim: dim, ModelName: fmt.Sprintf("hash-%d", dim)}
}

func (f *Fake) Model() string {
	return embedding.Identity("fake", f.ModelName)
}

func (f *Fake) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *Fake) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.texts = append(f.texts, append([]string(nil), texts...))
	f.mu.Unlock()

	if f.Delay > 0 {
		timer := time.NewTimer(f.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, &embedding.ProviderError{Provider: "fake", Model: f.ModelName, Err: ctx.Err()}
		case <-timer.C:
		}
	}

	if f.Err != nil && f.FailFrom == 0 {
		return nil, &embedding.ProviderError{Provider: "fake", Model: f.ModelName, Err: f.Err}
	}
	if f.FailFrom > 0 && call >= f.FailFrom {
		err := f.Err
		if err == nil {
			err = fmt.Errorf("call %d failed", call)
		}
		return nil, &embedding.ProviderError{Provider: "fake", Model: f.ModelName, Err: err}
	}

	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vectors = append(vectors, f.vector(text))
	}
	return vectors, nil
}

// Calls returns how many EmbedMany calls were made.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Texts returns the texts of every call, in call order.
func (f *Fake) Texts() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.texts))
	copy(out, f.texts)
	return out
}

func (f *Fake) vector(text string) []float32 {
	if v, ok := f.Vectors[text]; ok {
		return append([]float32(nil), v...)
	}

	v := make([]float32, f.Dim)
	if f.Dim == 0 {
		return v
	}

	padded := " " + strings.ToLower(text) + " "
	runes := []rune(padded)
	for i := 0; i+3 <= len(runes); i++ {
		v[bucket(string(runes[i:i+3]), f.Dim)]++
	}
	for _, word := range strings.Fields(text) {
		v[bucket("w:"+strings.ToLower(word), f.Dim)] += 2
	}
	return v
}

func bucket(s string, dim int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(dim))
}
