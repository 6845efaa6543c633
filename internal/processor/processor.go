// Package processor drives files through the chunk, embed, and store
// pipeline, reporting success and failure independently per file.
package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nwestbury/ragindex/internal/chunker"
	"github.com/nwestbury/ragindex/internal/embedding"
	"github.com/nwestbury/ragindex/internal/models"
	"github.com/nwestbury/ragindex/internal/store"
)

// DefaultMaxFileSize bounds how large a single input file may be.
const DefaultMaxFileSize = 10 << 20 // 10 MiB

// Config holds processing options.
type Config struct {
	Chunking    chunker.Config
	MaxFileSize int64
}

// ProcessorError reports a file-level precondition failure: missing,
// empty, unreadable, or oversized input.
type ProcessorError struct {
	Path   string
	Reason string
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("cannot process %s: %s", e.Path, e.Reason)
}

// Processor orchestrates chunking, embedding, and persistence. A file's
// failure never aborts a batch; the aggregate ProcessResult is the source
// of truth for what succeeded.
type Processor struct {
	generator *embedding.Generator
	store     store.Store
	cfg       Config
	logger    *zap.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets a logger for debug output (per-file progress).
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// New creates a processor over the given generator and store.
func New(generator *embedding.Generator, st store.Store, cfg Config, opts ...Option) *Processor {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	p := &Processor{generator: generator, store: st, cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessFile processes a single file and reports the outcome. Errors are
// recorded as the file's failure entry, never returned.
func (p *Processor) ProcessFile(ctx context.Context, path string) *models.ProcessResult {
	start := time.Now()
	result := &models.ProcessResult{RunID: uuid.New().String()}
	p.processInto(ctx, path, result)
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result
}

// ProcessFiles processes every path concurrently and merges the per-file
// outcomes into one aggregate. Concurrency at this layer is unbounded;
// the embedding generator's batch fan-out provides the effective cap on
// provider calls.
func (p *Processor) ProcessFiles(ctx context.Context, paths []string) *models.ProcessResult {
	start := time.Now()
	agg := &models.ProcessResult{RunID: uuid.New().String()}

	results := make([]*models.ProcessResult, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		i, path := i, path
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := &models.ProcessResult{}
			p.processInto(ctx, path, r)
			results[i] = r
		}()
	}
	wg.Wait()

	for _, r := range results {
		agg.Merge(r)
	}
	agg.ProcessingTimeMs = time.Since(start).Milliseconds()
	if p.logger != nil {
		p.logger.Info("processing run finished",
			zap.String("run_id", agg.RunID),
			zap.Int("processed", agg.ProcessedFiles),
			zap.Int("failed", len(agg.Failed)),
			zap.Int("chunks", agg.TotalChunks),
		)
	}
	return agg
}

// processInto runs one file through the pipeline and records the outcome
// on result.
func (p *Processor) processInto(ctx context.Context, path string, result *models.ProcessResult) {
	chunkCount, err := p.processOne(ctx, path)
	if err != nil {
		result.Failed = append(result.Failed, models.FileFailure{
			Path:  path,
			Error: failureMessage(err),
		})
		if p.logger != nil {
			p.logger.Warn("file processing failed", zap.String("path", path), zap.Error(err))
		}
		return
	}
	result.ProcessedFiles++
	result.TotalChunks += chunkCount
	result.Succeeded = append(result.Succeeded, path)
	if p.logger != nil {
		p.logger.Debug("file processed", zap.String("path", path), zap.Int("chunks", chunkCount))
	}
}

func (p *Processor) processOne(ctx context.Context, path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, &ProcessorError{Path: path, Reason: "file does not exist"}
		}
		return 0, &ProcessorError{Path: path, Reason: fmt.Sprintf("stat failed: %v", err)}
	}
	if !info.Mode().IsRegular() {
		return 0, &ProcessorError{Path: path, Reason: "not a regular file"}
	}
	if info.Size() == 0 {
		return 0, &ProcessorError{Path: path, Reason: "file is empty"}
	}
	if info.Size() > p.cfg.MaxFileSize {
		return 0, &ProcessorError{
			Path:   path,
			Reason: fmt.Sprintf("file size %d exceeds maximum %d", info.Size(), p.cfg.MaxFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, &ProcessorError{Path: path, Reason: fmt.Sprintf("read failed: %v", err)}
	}

	fileType := DetectFileType(path)
	results, err := p.chunkerFor(path, fileType).Chunk(string(data))
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}

	chunks, err := p.generator.EmbedChunks(ctx, results)
	if err != nil {
		return 0, err
	}
	if err := p.store.SaveChunks(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// chunkerFor derives the strategy directly from the extension rather than
// trusting the factory's file-type default: parseable code gets the AST
// strategy with full node options, everything else the paragraph strategy.
func (p *Processor) chunkerFor(path, fileType string) chunker.Chunker {
	cfg := p.cfg.Chunking
	if IsCodeFile(path) {
		cfg.Strategy = chunker.StrategyAST
		if cfg.MinNodeSize <= 0 {
			cfg.MinNodeSize = chunker.DefaultMinNodeSize
		}
		cfg.IncludeImports = true
		cfg.IncludeComments = true
	} else {
		cfg.Strategy = chunker.StrategyParagraph
	}
	return chunker.New(cfg, path, fileType)
}

// failureMessage renders a failure entry. Known pipeline errors keep
// their message; anything unexpected becomes a generic entry.
func failureMessage(err error) string {
	var (
		chunkErr *chunker.ChunkingError
		embedErr *embedding.EmbeddingError
		dbErr    *store.DatabaseError
		procErr  *ProcessorError
	)
	switch {
	case errors.As(err, &chunkErr), errors.As(err, &embedErr),
		errors.As(err, &dbErr), errors.As(err, &procErr):
		return err.Error()
	default:
		return fmt.Sprintf("unknown error: %v", err)
	}
}
