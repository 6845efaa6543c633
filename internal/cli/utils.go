// Package cli provides output formatting for the ragindex commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nwestbury/ragindex/internal/models"
	"github.com/nwestbury/ragindex/internal/search"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteSearchResult writes a search result to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResult(w io.Writer, result *models.SearchResult, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	writeSearchResultText(w, result)
	return nil
}

func writeSearchResultText(w io.Writer, result *models.SearchResult) {
	fmt.Fprintf(w, "\nFound %d results for %q in %dms\n\n",
		len(result.Chunks), result.Query, result.SearchTimeMs)
	for i, scored := range result.Chunks {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", i+1, scored.Similarity)
		meta := scored.Chunk.Metadata
		fmt.Fprintf(w, "File: %s (lines %d-%d, %d tokens)\n",
			meta.FilePath, meta.StartPosition, meta.EndPosition, meta.TokenCount)
		fmt.Fprintf(w, "\n%s\n", search.Snippet(scored.Chunk.Content, 200))
		fmt.Fprintln(w)
	}
}

// WriteProcessResult writes an indexing run report to w in the given
// format.
func WriteProcessResult(w io.Writer, result *models.ProcessResult, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintf(w, "\nRun %s: %d files indexed, %d chunks, %d failed (%dms)\n",
		result.RunID, result.ProcessedFiles, result.TotalChunks, len(result.Failed), result.ProcessingTimeMs)
	for _, f := range result.Failed {
		fmt.Fprintf(w, "  FAILED %s: %s\n", f.Path, f.Error)
	}
	return nil
}

// WriteStats writes store statistics to w in the given format.
func WriteStats(w io.Writer, stats *models.StoreStats, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintf(w, "Chunks: %d\nFiles:  %d\nAverage chunk size: %.1f bytes\n",
		stats.TotalChunks, stats.TotalFiles, stats.AverageChunkSize)
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
