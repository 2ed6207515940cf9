package standardize

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultBatchSize   = 100
	DefaultConcurrency = 1
)

// Policy decides what happens to phrases that resolve to no taxonomy entry.
type Policy string

const (
	PolicyDrop Policy = "drop"
	PolicyKeep Policy = "keep"
)

// Thresholds are the acceptance limits of one call site. Similarity is a
// cosine similarity in [0,1], Fuzzy a fuzzy score in [0,100].
type Thresholds struct {
	Similarity float64 `mapstructure:"similarity" json:"similarity" validate:"gte=0,lte=1"`
	Fuzzy      float64 `mapstructure:"fuzzy" json:"fuzzy" validate:"gte=0,lte=100"`
}

func (t Thresholds) Validate() error {
	if err := validator.New().Struct(t); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}
	return nil
}

// Options configure one batch standardization call.
type Options struct {
	Thresholds
	// BatchSize is the number of phrases sent to the provider per call.
	BatchSize int `validate:"gte=1"`
	// Unresolved defaults to PolicyDrop.
	Unresolved Policy `validate:"oneof=drop keep"`
	// EmbedTimeout bounds every provider call. Zero means no limit beyond the
	// caller's context.
	EmbedTimeout time.Duration `validate:"gte=0"`
	// Concurrency limits in-flight provider calls.
	Concurrency int `validate:"gte=1"`
}

// NewOptions returns options with the given thresholds and defaults for the
// rest.
func NewOptions(thresholds Thresholds) Options {
	return Options{Thresholds: thresholds}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Unresolved == "" {
		o.Unresolved = PolicyDrop
	}
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// Validate checks the options after defaults are applied.
func (o Options) Validate() error {
	if err := validator.New().Struct(o.withDefaults()); err != nil {
		return fmt.Errorf("invalid standardize options: %w", err)
	}
	return nil
}
