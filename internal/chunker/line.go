package chunker

import (
	"strings"

	"github.com/nwestbury/ragindex/internal/models"
)

// LineChunker accumulates whole lines until the running token estimate
// would exceed maxTokens, then flushes and re-seeds the next chunk with
// the last overlap lines of the flushed chunk. It also serves the
// token-budget strategy alias.
type LineChunker struct {
	maxTokens int
	overlap   int
	filePath  string
	fileType  string
}

// NewLineChunker creates a line chunker for one source file.
func NewLineChunker(cfg Config, filePath, fileType string) *LineChunker {
	return &LineChunker{
		maxTokens: cfg.MaxTokens,
		overlap:   cfg.Overlap,
		filePath:  filePath,
		fileType:  fileType,
	}
}

// Chunk splits text into line-aligned chunks. A boundary occurs strictly
// when adding the next line would exceed the budget, never when it meets
// it. A single line whose own estimate exceeds maxTokens is still emitted
// as a one-line chunk; there is no sub-line splitting.
func (c *LineChunker) Chunk(text string) ([]models.ChunkResult, error) {
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")

	var out []models.ChunkResult
	var buf []string
	bufTokens := 0
	bufStart := 1 // source line number of buf[0]

	for _, line := range lines {
		lineTokens := EstimateTokens(line)
		if len(buf) > 0 && bufTokens+lineTokens > c.maxTokens {
			out = append(out, c.flush(buf, bufStart))

			seed := c.overlap
			if seed > len(buf) {
				seed = len(buf)
			}
			bufStart += len(buf) - seed
			buf = append([]string(nil), buf[len(buf)-seed:]...)
			bufTokens = 0
			for _, s := range buf {
				bufTokens += EstimateTokens(s)
			}
		}
		buf = append(buf, line)
		bufTokens += lineTokens
	}
	if len(buf) > 0 {
		out = append(out, c.flush(buf, bufStart))
	}
	return out, nil
}

func (c *LineChunker) flush(buf []string, start int) models.ChunkResult {
	content := strings.Join(buf, "\n")
	end := start + len(buf) - 1
	return models.ChunkResult{
		Content:  content,
		Metadata: newMetadata(c.filePath, c.fileType, start, end, EstimateTokens(content), nil),
	}
}
