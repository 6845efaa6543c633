package chunker

import (
	"regexp"
	"strings"

	"github.com/nwestbury/ragindex/internal/models"
)

// paragraphSplit matches one or more blank lines (lines containing only
// whitespace) separating paragraphs.
var paragraphSplit = regexp.MustCompile(`\n[ \t]*\n+`)

// ParagraphChunker accumulates blank-line-delimited paragraphs until the
// running token estimate would exceed maxTokens. Unlike the line strategy
// it resets the accumulator on flush rather than re-seeding trailing
// paragraphs; consecutive chunks share no content. Positions are 1-based
// paragraph indices, not line numbers.
type ParagraphChunker struct {
	maxTokens int
	filePath  string
	fileType  string
}

// NewParagraphChunker creates a paragraph chunker for one source file.
func NewParagraphChunker(cfg Config, filePath, fileType string) *ParagraphChunker {
	return &ParagraphChunker{
		maxTokens: cfg.MaxTokens,
		filePath:  filePath,
		fileType:  fileType,
	}
}

// Chunk splits text on blank lines and packs paragraphs into chunks. A
// single paragraph over the budget is emitted as its own chunk.
func (c *ParagraphChunker) Chunk(text string) ([]models.ChunkResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	raw := paragraphSplit.Split(text, -1)
	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		if strings.TrimSpace(p) != "" {
			paragraphs = append(paragraphs, strings.TrimRight(p, " \t\n"))
		}
	}

	var out []models.ChunkResult
	var buf []string
	bufTokens := 0
	bufStart := 1 // 1-based index of buf's first paragraph

	for i, para := range paragraphs {
		paraTokens := EstimateTokens(para)
		if len(buf) > 0 && bufTokens+paraTokens > c.maxTokens {
			out = append(out, c.flush(buf, bufStart))
			buf = nil
			bufTokens = 0
			bufStart = i + 1
		}
		buf = append(buf, para)
		bufTokens += paraTokens
	}
	if len(buf) > 0 {
		out = append(out, c.flush(buf, bufStart))
	}
	return out, nil
}

func (c *ParagraphChunker) flush(buf []string, start int) models.ChunkResult {
	content := strings.Join(buf, "\n\n")
	end := start + len(buf) - 1
	return models.ChunkResult{
		Content:  content,
		Metadata: newMetadata(c.filePath, c.fileType, start, end, EstimateTokens(content), nil),
	}
}
