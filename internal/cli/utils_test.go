package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nwestbury/ragindex/internal/models"
)

func sampleSearchResult() *models.SearchResult {
	return &models.SearchResult{
		Query:        "test query",
		SearchTimeMs: 42,
		Chunks: []*models.ScoredChunk{
			{
				Chunk: &models.Chunk{
					ID:      "c1",
					Content: "Content here",
					Metadata: models.ChunkMetadata{
						FilePath:      "docs/readme.md",
						FileType:      "markdown",
						StartPosition: 1,
						EndPosition:   4,
						TokenCount:    12,
					},
				},
				Similarity: 0.91,
			},
		},
	}
}

func TestWriteSearchResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResult(&buf, sampleSearchResult(), OutputJSON); err != nil {
		t.Fatalf("WriteSearchResult(json): %v", err)
	}
	var decoded models.SearchResult
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != "test query" || decoded.SearchTimeMs != 42 {
		t.Errorf("decoded header: %+v", decoded)
	}
	if len(decoded.Chunks) != 1 || decoded.Chunks[0].Chunk.ID != "c1" {
		t.Errorf("decoded chunks: %+v", decoded.Chunks)
	}
}

func TestWriteSearchResult_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResult(&buf, sampleSearchResult(), OutputText); err != nil {
		t.Fatalf("WriteSearchResult(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"Found 1 results", "42ms", "Rank: 1", "0.9100", "docs/readme.md", "lines 1-4", "Content here"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteSearchResult_unknownFormatTreatedAsText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResult(&buf, sampleSearchResult(), OutputFormat("unknown")); err != nil {
		t.Fatalf("WriteSearchResult(unknown): %v", err)
	}
	if !strings.Contains(buf.String(), "Found") {
		t.Errorf("unknown format should fall back to text; got %q", buf.String())
	}
}

func TestWriteProcessResult_text(t *testing.T) {
	result := &models.ProcessResult{
		RunID:            "run-1",
		ProcessedFiles:   2,
		TotalChunks:      7,
		Succeeded:        []string{"a.md", "b.md"},
		Failed:           []models.FileFailure{{Path: "c.md", Error: "file is empty"}},
		ProcessingTimeMs: 15,
	}
	var buf bytes.Buffer
	if err := WriteProcessResult(&buf, result, OutputText); err != nil {
		t.Fatalf("WriteProcessResult(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"run-1", "2 files indexed", "7 chunks", "1 failed", "FAILED c.md: file is empty"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteProcessResult_JSON(t *testing.T) {
	result := &models.ProcessResult{RunID: "run-2", ProcessedFiles: 1}
	var buf bytes.Buffer
	if err := WriteProcessResult(&buf, result, OutputJSON); err != nil {
		t.Fatalf("WriteProcessResult(json): %v", err)
	}
	var decoded models.ProcessResult
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.RunID != "run-2" || decoded.ProcessedFiles != 1 {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestWriteStats(t *testing.T) {
	stats := &models.StoreStats{TotalChunks: 10, TotalFiles: 3, AverageChunkSize: 512.5}
	var buf bytes.Buffer
	if err := WriteStats(&buf, stats, OutputText); err != nil {
		t.Fatalf("WriteStats(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"Chunks: 10", "Files:  3", "512.5"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WriteStats(&buf, stats, OutputJSON); err != nil {
		t.Fatalf("WriteStats(json): %v", err)
	}
	var decoded models.StoreStats
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.TotalChunks != 10 {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
		{"single long", "word", 1, "word"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateWords(tt.s, tt.maxWords)
			if got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}
