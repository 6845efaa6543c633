// Package search runs semantic, keyword, and hybrid queries over the
// chunk store.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nwestbury/ragindex/internal/embedding"
	"github.com/nwestbury/ragindex/internal/models"
	"github.com/nwestbury/ragindex/internal/store"
)

const (
	// DefaultLimit is the number of results returned when the caller
	// does not ask for a specific count.
	DefaultLimit = 10
	// DefaultThreshold is the minimum cosine similarity a chunk must
	// reach to appear in semantic results.
	DefaultThreshold = 0.5

	// candidateMultiplier oversamples each index before fusion so that
	// chunks strong in only one signal still make the final cut.
	candidateMultiplier = 3
)

// Config holds engine defaults, typically sourced from the search
// section of the application config.
type Config struct {
	SimilarityThreshold float64
	DefaultLimit        int
}

// Engine ties the embedding generator and the store together into the
// query-side API.
type Engine struct {
	generator *embedding.Generator
	store     store.Store
	cfg       Config
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(generator *embedding.Generator, st store.Store, cfg Config) *Engine {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultThreshold
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	return &Engine{generator: generator, store: st, cfg: cfg}
}

// Search embeds the query and returns chunks whose cosine similarity
// meets the threshold, best first. A non-positive limit or threshold
// falls back to the engine defaults.
func (e *Engine) Search(ctx context.Context, query string, limit int, threshold float64) (*models.SearchResult, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if threshold <= 0 {
		threshold = e.cfg.SimilarityThreshold
	}

	queryVec, err := e.generator.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	candidates, err := e.store.Search(ctx, queryVec, limit)
	if err != nil {
		return nil, err
	}

	chunks := make([]*models.ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity >= threshold {
			chunks = append(chunks, c)
		}
	}
	return &models.SearchResult{
		Query:        query,
		Chunks:       chunks,
		SearchTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// SearchKeywords runs a pure keyword (BM25) query, no embedding call.
func (e *Engine) SearchKeywords(ctx context.Context, query string, limit int) (*models.SearchResult, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	chunks, err := e.store.SearchByKeywords(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return &models.SearchResult{
		Query:        query,
		Chunks:       chunks,
		SearchTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// SearchHybrid runs the keyword and semantic legs concurrently and
// fuses their scores with the given weights. A weight of zero skips
// that leg entirely.
func (e *Engine) SearchHybrid(ctx context.Context, query string, limit int, keywordWeight, semanticWeight float64) (*models.SearchResult, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	candidates := limit * candidateMultiplier

	var (
		keywordResults  []*models.ScoredChunk
		semanticResults []*models.ScoredChunk
		errChan         = make(chan error, 2)
		wg              sync.WaitGroup
	)

	if keywordWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := e.store.SearchByKeywords(ctx, query, candidates)
			if err != nil {
				errChan <- fmt.Errorf("keyword search failed: %w", err)
				return
			}
			keywordResults = results
		}()
	}

	if semanticWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			queryVec, err := e.generator.EmbedQuery(ctx, query)
			if err != nil {
				errChan <- err
				return
			}
			results, err := e.store.Search(ctx, queryVec, candidates)
			if err != nil {
				errChan <- fmt.Errorf("vector search failed: %w", err)
				return
			}
			semanticResults = results
		}()
	}

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	fused := Fuse(
		NormalizeScores(keywordResults),
		scoresByID(semanticResults),
		keywordWeight, semanticWeight,
	)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	byID := make(map[string]*models.Chunk, len(keywordResults)+len(semanticResults))
	for _, r := range keywordResults {
		byID[r.Chunk.ID] = r.Chunk
	}
	for _, r := range semanticResults {
		byID[r.Chunk.ID] = r.Chunk
	}

	chunks := make([]*models.ScoredChunk, 0, len(fused))
	for _, f := range fused {
		chunk, ok := byID[f.ChunkID]
		if !ok {
			continue
		}
		chunks = append(chunks, &models.ScoredChunk{Chunk: chunk, Similarity: f.Score})
	}
	return &models.SearchResult{
		Query:        query,
		Chunks:       chunks,
		SearchTimeMs: time.Since(start).Milliseconds(),
	}, nil
}
