package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/nwestbury/ragindex/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testChunk(filePath, content string, start int, embedding []float32) models.Chunk {
	meta := models.ChunkMetadata{
		FilePath:      filePath,
		FileType:      "text",
		StartPosition: start,
		EndPosition:   start,
		TokenCount:    len(content),
	}
	return models.Chunk{
		ID:        models.ChunkID(content, meta),
		Content:   content,
		Metadata:  meta,
		Embedding: embedding,
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("first Initialize() error: %v", err)
	}
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize() error: %v", err)
	}
}

func TestSaveChunks_UpsertNotDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ch := testChunk("a.txt", "some content", 1, []float32{1, 0})

	// No explicit Initialize; operations self-initialize.
	if err := s.SaveChunks(ctx, []models.Chunk{ch}); err != nil {
		t.Fatalf("first SaveChunks() error: %v", err)
	}
	if err := s.SaveChunks(ctx, []models.Chunk{ch}); err != nil {
		t.Fatalf("second SaveChunks() error: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.TotalChunks != 1 {
		t.Errorf("saving the same chunk twice left %d rows, want 1", stats.TotalChunks)
	}
}

func TestSearch_RanksByCosineAndExcludesNonPositive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	chunks := []models.Chunk{
		testChunk("a.txt", "aligned", 1, []float32{1, 0}),
		testChunk("a.txt", "orthogonal", 2, []float32{0, 1}),
		testChunk("a.txt", "diagonal", 3, []float32{1, 1}),
	}
	if err := s.SaveChunks(ctx, chunks); err != nil {
		t.Fatalf("SaveChunks() error: %v", err)
	}

	results, err := s.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results (orthogonal chunk excluded), got %d", len(results))
	}
	if results[0].Chunk.Content != "aligned" {
		t.Errorf("top result = %q, want the aligned chunk", results[0].Chunk.Content)
	}
	if math.Abs(results[0].Similarity-1) > 1e-6 {
		t.Errorf("aligned similarity = %v, want 1", results[0].Similarity)
	}
	if results[1].Chunk.Content != "diagonal" {
		t.Errorf("second result = %q, want the diagonal chunk", results[1].Chunk.Content)
	}
	if math.Abs(results[1].Similarity-1/math.Sqrt2) > 1e-6 {
		t.Errorf("diagonal similarity = %v, want %v", results[1].Similarity, 1/math.Sqrt2)
	}
}

func TestSearch_IgnoresChunksWithoutEmbedding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	chunks := []models.Chunk{
		testChunk("a.txt", "embedded", 1, []float32{1, 0}),
		testChunk("a.txt", "not embedded", 2, nil),
	}
	if err := s.SaveChunks(ctx, chunks); err != nil {
		t.Fatalf("SaveChunks() error: %v", err)
	}
	results, err := s.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.Content != "embedded" {
		t.Errorf("unembedded chunks must be invisible to vector search: %+v", results)
	}
}

func TestSearchByKeywords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	chunks := []models.Chunk{
		testChunk("notes.md", "the quick brown fox jumps", 1, nil),
		testChunk("notes.md", "an entirely unrelated sentence", 2, nil),
		testChunk("notes.md", "fox fox fox everywhere a fox", 3, nil),
	}
	if err := s.SaveChunks(ctx, chunks); err != nil {
		t.Fatalf("SaveChunks() error: %v", err)
	}

	results, err := s.SearchByKeywords(ctx, "fox", 10)
	if err != nil {
		t.Fatalf("SearchByKeywords() error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 keyword matches, got %d", len(results))
	}
	for _, r := range results {
		if r.Similarity <= 0 || r.Similarity > 1 {
			t.Errorf("keyword score %v outside (0,1]", r.Similarity)
		}
	}
	// The fox-heavy chunk ranks first under BM25.
	if results[0].Chunk.Metadata.StartPosition != 3 {
		t.Errorf("expected the term-dense chunk first, got %+v", results[0].Chunk.Metadata)
	}

	empty, err := s.SearchByKeywords(ctx, "   ", 10)
	if err != nil {
		t.Fatalf("SearchByKeywords(blank) error: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("blank query should match nothing, got %d", len(empty))
	}
}

func TestGetChunk(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ch := testChunk("a.txt", "retrievable", 1, []float32{0.5, 0.5})
	if err := s.SaveChunks(ctx, []models.Chunk{ch}); err != nil {
		t.Fatalf("SaveChunks() error: %v", err)
	}

	got, err := s.GetChunk(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetChunk() error: %v", err)
	}
	if got == nil || got.Content != "retrievable" {
		t.Fatalf("GetChunk returned %+v", got)
	}
	if len(got.Embedding) != 2 || got.Embedding[0] != 0.5 {
		t.Errorf("embedding not round-tripped: %v", got.Embedding)
	}
	if got.Metadata.FilePath != "a.txt" {
		t.Errorf("metadata not round-tripped: %+v", got.Metadata)
	}

	missing, err := s.GetChunk(ctx, "no-such-id")
	if err != nil {
		t.Fatalf("GetChunk(missing) error: %v", err)
	}
	if missing != nil {
		t.Error("missing chunk must return nil, not an error or a value")
	}
}

func TestDeleteByFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	chunks := []models.Chunk{
		testChunk("a.txt", "keep me around", 1, nil),
		testChunk("b.txt", "delete me first", 1, nil),
		testChunk("b.txt", "delete me second", 2, nil),
	}
	if err := s.SaveChunks(ctx, chunks); err != nil {
		t.Fatalf("SaveChunks() error: %v", err)
	}

	n, err := s.DeleteByFile(ctx, "b.txt")
	if err != nil {
		t.Fatalf("DeleteByFile() error: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d rows, want 2", n)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.TotalChunks != 1 || stats.TotalFiles != 1 {
		t.Errorf("after delete: %+v", stats)
	}
	// Keyword rows for the deleted file must be gone too.
	hits, err := s.SearchByKeywords(ctx, "delete", 10)
	if err != nil {
		t.Fatalf("SearchByKeywords() error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("keyword index still matches deleted chunks: %d hits", len(hits))
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	chunks := []models.Chunk{
		testChunk("a.txt", "12345", 1, nil),     // length 5
		testChunk("a.txt", "1234567", 2, nil),   // length 7
		testChunk("b.txt", "123456789", 1, nil), // length 9
	}
	if err := s.SaveChunks(ctx, chunks); err != nil {
		t.Fatalf("SaveChunks() error: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.TotalChunks != 3 {
		t.Errorf("TotalChunks = %d, want 3", stats.TotalChunks)
	}
	if stats.TotalFiles != 2 {
		t.Errorf("TotalFiles = %d, want 2 distinct file paths", stats.TotalFiles)
	}
	if math.Abs(stats.AverageChunkSize-7) > 1e-9 {
		t.Errorf("AverageChunkSize = %v, want 7", stats.AverageChunkSize)
	}
}
