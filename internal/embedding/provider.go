// Package embedding turns text into vectors. Providers wrap remote or local
// embedding models behind a single batched interface; the model identity they
// report is what taxonomy indexes are tagged with.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Provider embeds text. Implementations must be safe for concurrent use and
// return exactly one vector per input text, in input order.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	// Model returns "<provider>/<model>", e.g. "gemini/text-embedding-004".
	Model() string
}

// ProviderError wraps a failed embedding call. The standardization pipeline
// recovers from it by falling back to fuzzy matching.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s (%s): %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call failed because its deadline expired.
func (e *ProviderError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Identity builds the model identity string reported by providers.
func Identity(provider, model string) string {
	return strings.ToLower(strings.TrimSpace(provider)) + "/" + strings.TrimSpace(model)
}

// SizedIdentity is Identity with the requested output dimensionality appended
// as "#<dimensions>" when it is set. Vectors of one model at different sizes
// are not comparable, so indexes must record the size.
func SizedIdentity(provider, model string, dimensions int) string {
	id := Identity(provider, model)
	if dimensions > 0 {
		id += "#" + strconv.Itoa(dimensions)
	}
	return id
}

// Cosine returns the cosine similarity of a and b, or 0 when the vectors are
// empty, differ in length or one of them has zero norm.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}

	return CosineWithNorms(dot, math.Sqrt(na), math.Sqrt(nb))
}

// Dot returns the dot product of two equally long vectors.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Norm returns the Euclidean norm of v.
func Norm(v []float32) float64 {
	return math.Sqrt(Dot(v, v))
}

// CosineWithNorms finishes a cosine computation from a dot product and
// precomputed norms, clamping the result to [-1, 1].
func CosineWithNorms(dot, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	return max(-1, min(1, dot/(na*nb)))
}

func embedOne(ctx context.Context, p Provider, text string) ([]float32, error) {
	vectors, err := p.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func checkCount(provider, model string, want, got int) error {
	if want != got {
		return &ProviderError{
			Provider: provider,
			Model:    model,
			Err:      fmt.Errorf("expected %d embeddings, got %d", want, got),
		}
	}
	return nil
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
