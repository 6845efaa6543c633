// Package chunker splits raw file text into bounded, positioned chunks.
//
// A chunker never mutates its input. Each strategy sizes chunks with the
// shared token estimate (see EstimateTokens) so that chunk boundaries are
// comparable across strategies and stable across runs.
package chunker

import (
	"fmt"

	"github.com/nwestbury/ragindex/internal/models"
)

// Strategy selects a chunking algorithm. The set is closed; the factory is
// the only place that maps a strategy to an implementation.
type Strategy string

const (
	StrategyLine      Strategy = "line"
	StrategyParagraph Strategy = "paragraph"
	// StrategyTokenBudget is a named alias of the line strategy.
	StrategyTokenBudget Strategy = "token"
	StrategyAST         Strategy = "ast"
)

// Config holds chunking parameters shared by all strategies plus the
// AST-specific options (ignored by the text strategies).
type Config struct {
	Strategy  Strategy
	MaxTokens int
	// Overlap is the number of trailing lines the line strategy re-seeds
	// into the next chunk. The paragraph strategy resets its accumulator
	// on flush and carries no overlap.
	Overlap int

	// AST options.
	MinNodeSize     int
	IncludeImports  bool
	IncludeComments bool
	// NodeKinds restricts which top-level declaration kinds produce chunks
	// ("func", "type", "var", "const"). Empty means all of them.
	NodeKinds []string
}

// Chunker converts raw text into an ordered sequence of chunk results.
type Chunker interface {
	Chunk(text string) ([]models.ChunkResult, error)
}

// ChunkingError reports that text could not be segmented, wrapping the
// underlying cause (e.g. a parse failure for the AST strategy).
type ChunkingError struct {
	Strategy Strategy
	Err      error
}

func (e *ChunkingError) Error() string {
	return fmt.Sprintf("chunking failed (%s strategy): %v", e.Strategy, e.Err)
}

func (e *ChunkingError) Unwrap() error { return e.Err }
