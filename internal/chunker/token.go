package chunker

import (
	"time"

	"github.com/nwestbury/ragindex/internal/models"
)

// EstimateTokens returns a cheap token-count proxy: each alphanumeric rune
// counts 1, every other rune (whitespace, punctuation, non-Latin scripts)
// counts 2. This is not a real subword tokenizer; it exists so every
// strategy sizes chunks against maxTokens identically. Changing this rule
// changes chunk boundaries for previously indexed content.
func EstimateTokens(text string) int {
	n := 0
	for _, r := range text {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			n++
		} else {
			n += 2
		}
	}
	return n
}

// newMetadata builds chunk metadata for a source range. start and end are
// 1-based positions in the units of the producing strategy.
func newMetadata(filePath, fileType string, start, end, tokens int, extra map[string]any) models.ChunkMetadata {
	return models.ChunkMetadata{
		FilePath:      filePath,
		FileType:      fileType,
		StartPosition: start,
		EndPosition:   end,
		TokenCount:    tokens,
		CreatedAt:     time.Now().UTC(),
		Additional:    extra,
	}
}
