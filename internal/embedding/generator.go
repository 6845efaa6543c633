package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nwestbury/ragindex/internal/models"
)

// Default generator parameters.
const (
	DefaultBatchSize   = 100
	DefaultConcurrency = 5
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = time.Second
	DefaultCacheSize   = 2048
)

// GeneratorConfig controls batching and retry behaviour.
type GeneratorConfig struct {
	BatchSize   int
	Concurrency int
	MaxRetries  int
	RetryDelay  time.Duration
	CacheSize   int
}

func (c *GeneratorConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
}

// Generator embeds chunks through an Embedder: batches are processed
// sequentially, chunks within a batch fan out up to Concurrency at a time,
// and each chunk is retried up to MaxRetries with a fixed delay. A chunk
// that exhausts its retries fails the whole EmbedChunks call; partial
// success is handled one level up, per file, not per chunk.
type Generator struct {
	embedder Embedder
	cache    *Cache
	cfg      GeneratorConfig
	logger   *zap.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithLogger sets a logger for debug output (batch progress, retries).
func WithLogger(l *zap.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator creates a generator over the given embedder.
func NewGenerator(embedder Embedder, cfg GeneratorConfig, opts ...GeneratorOption) *Generator {
	cfg.applyDefaults()
	g := &Generator{
		embedder: embedder,
		cache:    NewCache(cfg.CacheSize),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// EmbedText embeds a single text with one provider call, no retry.
func (g *Generator) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &EmbeddingError{Op: "embed_text", Err: err}
	}
	return vec, nil
}

// EmbedQuery embeds query text. Same provider call as EmbedText; retry is
// the caller's decision at query time.
func (g *Generator) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &EmbeddingError{Op: "embed_query", Err: err}
	}
	return vec, nil
}

// EmbedChunks embeds chunker output into persistable chunks. Batch N+1
// begins only after batch N completes; completion order inside a batch is
// unordered but the returned slice preserves input order.
func (g *Generator) EmbedChunks(ctx context.Context, results []models.ChunkResult) ([]models.Chunk, error) {
	chunks := make([]models.Chunk, len(results))
	for start := 0; start < len(results); start += g.cfg.BatchSize {
		end := start + g.cfg.BatchSize
		if end > len(results) {
			end = len(results)
		}
		grp, grpCtx := errgroup.WithContext(ctx)
		grp.SetLimit(g.cfg.Concurrency)
		for i := start; i < end; i++ {
			i := i
			grp.Go(func() error {
				res := results[i]
				vec, err := g.embedWithRetry(grpCtx, res.Content, chunkDetail(res))
				if err != nil {
					return err
				}
				chunks[i] = models.Chunk{
					ID:        models.ChunkID(res.Content, res.Metadata),
					Content:   res.Content,
					Metadata:  res.Metadata,
					Embedding: vec,
				}
				return nil
			})
		}
		if err := grp.Wait(); err != nil {
			return nil, err
		}
		if g.logger != nil {
			g.logger.Debug("embedded batch",
				zap.Int("from", start),
				zap.Int("to", end),
				zap.Int("total", len(results)),
			)
		}
	}
	return chunks, nil
}

// Dimensions reports the provider's embedding dimension.
func (g *Generator) Dimensions() int { return g.embedder.Dimensions() }

func (g *Generator) embedWithRetry(ctx context.Context, text, detail string) ([]float32, error) {
	if vec, ok := g.cache.Get(text); ok {
		return vec, nil
	}
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxRetries; attempt++ {
		vec, err := g.embedder.Embed(ctx, text)
		if err == nil {
			g.cache.Set(text, vec)
			return vec, nil
		}
		lastErr = err
		if g.logger != nil {
			g.logger.Debug("embedding attempt failed",
				zap.Int("attempt", attempt),
				zap.String("chunk", detail),
				zap.Error(err),
			)
		}
		if attempt < g.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.cfg.RetryDelay):
			}
		}
	}
	return nil, &EmbeddingError{Op: "embed_chunks", Detail: detail, Err: lastErr}
}

func chunkDetail(res models.ChunkResult) string {
	return fmt.Sprintf("%s:%d-%d", res.Metadata.FilePath, res.Metadata.StartPosition, res.Metadata.EndPosition)
}
