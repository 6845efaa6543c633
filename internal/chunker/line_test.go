package chunker

import (
	"strings"
	"testing"
)

func lineConfig(maxTokens, overlap int) Config {
	return Config{Strategy: StrategyLine, MaxTokens: maxTokens, Overlap: overlap}
}

func TestLineChunker_FlushesWhenNextLineWouldExceed(t *testing.T) {
	// Each line estimates to 4 tokens; with maxTokens=10 the third line
	// would push the running total to 12, so the flush happens after two.
	c := NewLineChunker(lineConfig(10, 0), "data.txt", "text")
	text := strings.Join([]string{"abcd", "abcd", "abcd", "abcd", "abcd"}, "\n")

	chunks, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantRanges := [][2]int{{1, 2}, {3, 4}, {5, 5}}
	for i, want := range wantRanges {
		meta := chunks[i].Metadata
		if meta.StartPosition != want[0] || meta.EndPosition != want[1] {
			t.Errorf("chunk %d: range %d-%d, want %d-%d", i, meta.StartPosition, meta.EndPosition, want[0], want[1])
		}
	}
}

func TestLineChunker_MeetingBudgetDoesNotFlush(t *testing.T) {
	// Two 4-token lines exactly meet a budget of 8; boundaries occur only
	// when the budget would be exceeded, not met.
	c := NewLineChunker(lineConfig(8, 0), "data.txt", "text")
	chunks, err := c.Chunk("abcd\nabcd")
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "abcd\nabcd" {
		t.Errorf("unexpected content %q", chunks[0].Content)
	}
}

func TestLineChunker_OverlapReseedsTrailingLines(t *testing.T) {
	c := NewLineChunker(lineConfig(10, 1), "data.txt", "text")
	text := strings.Join([]string{"aaaa", "bbbb", "cccc", "dddd", "eeee"}, "\n")

	chunks, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	wantRanges := [][2]int{{1, 2}, {2, 3}, {3, 4}, {4, 5}}
	if len(chunks) != len(wantRanges) {
		t.Fatalf("expected %d chunks, got %d", len(wantRanges), len(chunks))
	}
	for i, want := range wantRanges {
		meta := chunks[i].Metadata
		if meta.StartPosition != want[0] || meta.EndPosition != want[1] {
			t.Errorf("chunk %d: range %d-%d, want %d-%d", i, meta.StartPosition, meta.EndPosition, want[0], want[1])
		}
	}
	// The seeded line is repeated verbatim at the start of the next chunk.
	if !strings.HasPrefix(chunks[1].Content, "bbbb") {
		t.Errorf("chunk 1 should start with the overlapped line, got %q", chunks[1].Content)
	}
}

func TestLineChunker_OversizedLineEmittedAlone(t *testing.T) {
	// A single line over the budget is still emitted as a one-line chunk;
	// there is no sub-line splitting.
	c := NewLineChunker(lineConfig(5, 0), "data.txt", "text")
	long := strings.Repeat("x", 40)
	chunks, err := c.Chunk(long + "\nab")
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != long {
		t.Errorf("oversized line not emitted alone: %q", chunks[0].Content)
	}
}

func TestLineChunker_EmptyInput(t *testing.T) {
	c := NewLineChunker(lineConfig(10, 0), "data.txt", "text")
	chunks, err := c.Chunk("")
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestLineChunker_MetadataTokenCount(t *testing.T) {
	c := NewLineChunker(lineConfig(100, 0), "data.txt", "text")
	chunks, err := c.Chunk("ab\ncd")
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if got := chunks[0].Metadata.TokenCount; got != EstimateTokens("ab\ncd") {
		t.Errorf("token count %d does not match estimate of content", got)
	}
	if chunks[0].Metadata.FilePath != "data.txt" || chunks[0].Metadata.FileType != "text" {
		t.Errorf("source metadata not carried: %+v", chunks[0].Metadata)
	}
}
