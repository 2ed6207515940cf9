package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize   = 100
	DefaultConcurrency = 4
)

// Embedder is the part of an embedding provider the build needs.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// BuildOptions configures Build.
type BuildOptions struct {
	// Version is the taxonomy release, e.g. "esco-1.2". The model identity is
	// appended from the embedder.
	Version     string
	BatchSize   int
	Concurrency int
}

// Build embeds the normalized label of every source entry and returns a new
// index. Batches run concurrently up to opts.Concurrency; the first failing
// batch cancels the rest.
func Build(ctx context.Context, source []SourceEntry, embedder Embedder, opts BuildOptions, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if len(source) == 0 {
		return nil, errors.New("taxonomy source is empty")
	}

	version := Version{Taxonomy: strings.TrimSpace(opts.Version), Model: embedder.Model()}
	if version.Taxonomy == "" {
		return nil, errors.New("taxonomy version is required")
	}
	if strings.Contains(version.Taxonomy, versionSeparator) {
		return nil, fmt.Errorf("taxonomy version %q must not contain %q", version.Taxonomy, versionSeparator)
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	texts := make([]string, len(source))
	for i, entry := range source {
		texts[i] = Normalize(entry.Label)
	}

	vectors := make([][]float32, len(source))
	batches := (len(texts) + batchSize - 1) / batchSize
	var done atomic.Int64

	logger.Info("building taxonomy index",
		zap.String("taxonomy_version", version.String()),
		zap.Int("entries", len(source)),
		zap.Int("batches", batches),
		zap.Int("batch_size", batchSize),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			batch, err := embedder.EmbedMany(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed entries %d-%d: %w", start, end-1, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("embed entries %d-%d: got %d vectors", start, end-1, len(batch))
			}
			copy(vectors[start:end], batch)

			logger.Debug("embedded batch",
				zap.Int("from", start),
				zap.Int("to", end-1),
				zap.Int64("batches_done", done.Add(1)),
				zap.Int("batches", batches),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]Entry, len(source))
	for i, src := range source {
		entries[i] = Entry{
			ID:          src.ID,
			Label:       src.Label,
			Description: src.Description,
			Vector:      vectors[i],
		}
	}

	index, err := NewIndex(version, entries)
	if err != nil {
		return nil, fmt.Errorf("assemble index: %w", err)
	}

	logger.Info("taxonomy index built",
		zap.String("taxonomy_version", version.String()),
		zap.Int("entries", index.Len()),
		zap.Int("dimension", index.Dimension()),
	)

	return index, nil
}
