package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nwestbury/ragindex/internal/models"
)

// flakyEmbedder fails the first failures calls for each distinct text,
// then succeeds, recording how many provider calls were made.
type flakyEmbedder struct {
	inner    *MockEmbedder
	failures int

	mu       sync.Mutex
	attempts map[string]int
	calls    int
}

func newFlakyEmbedder(failures int) *flakyEmbedder {
	return &flakyEmbedder{
		inner:    NewMockEmbedder(8),
		failures: failures,
		attempts: make(map[string]int),
	}
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.attempts[text]++
	n := f.attempts[text]
	f.mu.Unlock()
	if n <= f.failures {
		return nil, fmt.Errorf("provider unavailable (attempt %d)", n)
	}
	return f.inner.Embed(ctx, text)
}

func (f *flakyEmbedder) Dimensions() int { return f.inner.Dimensions() }
func (f *flakyEmbedder) Close() error    { return nil }

func testResults(n int) []models.ChunkResult {
	out := make([]models.ChunkResult, n)
	for i := range out {
		out[i] = models.ChunkResult{
			Content: fmt.Sprintf("chunk content %d", i),
			Metadata: models.ChunkMetadata{
				FilePath:      "a.md",
				FileType:      "markdown",
				StartPosition: i + 1,
				EndPosition:   i + 1,
				TokenCount:    10,
			},
		}
	}
	return out
}

func fastConfig(maxRetries int) GeneratorConfig {
	return GeneratorConfig{
		BatchSize:   2,
		Concurrency: 2,
		MaxRetries:  maxRetries,
		RetryDelay:  time.Millisecond,
	}
}

func TestEmbedChunks_AssignsIDsAndPreservesOrder(t *testing.T) {
	g := NewGenerator(NewMockEmbedder(8), fastConfig(3))
	results := testResults(5)

	chunks, err := g.EmbedChunks(context.Background(), results)
	if err != nil {
		t.Fatalf("EmbedChunks() error: %v", err)
	}
	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Content != results[i].Content {
			t.Errorf("chunk %d out of order: %q", i, ch.Content)
		}
		if ch.ID != models.ChunkID(results[i].Content, results[i].Metadata) {
			t.Errorf("chunk %d has wrong ID", i)
		}
		if len(ch.Embedding) != 8 {
			t.Errorf("chunk %d embedding length %d, want 8", i, len(ch.Embedding))
		}
	}
}

func TestEmbedChunks_RetriesThenSucceeds(t *testing.T) {
	// maxRetries-1 failures followed by success must produce a normal
	// result with no error.
	flaky := newFlakyEmbedder(2)
	g := NewGenerator(flaky, fastConfig(3))

	chunks, err := g.EmbedChunks(context.Background(), testResults(1))
	if err != nil {
		t.Fatalf("EmbedChunks() error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Embedding == nil {
		t.Fatal("expected an embedded chunk after retries")
	}
	if flaky.calls != 3 {
		t.Errorf("expected 3 provider calls (2 failures + 1 success), got %d", flaky.calls)
	}
}

func TestEmbedChunks_ExhaustedRetriesFailTheCall(t *testing.T) {
	flaky := newFlakyEmbedder(100)
	g := NewGenerator(flaky, fastConfig(3))

	_, err := g.EmbedChunks(context.Background(), testResults(1))
	if err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	var embErr *EmbeddingError
	if !errors.As(err, &embErr) {
		t.Fatalf("expected EmbeddingError, got %T", err)
	}
	if embErr.Detail == "" {
		t.Error("error must identify the exhausted chunk")
	}
	if flaky.attempts["chunk content 0"] != 3 {
		t.Errorf("expected exactly maxRetries attempts, got %d", flaky.attempts["chunk content 0"])
	}
}

func TestEmbedChunks_CacheSkipsProvider(t *testing.T) {
	flaky := newFlakyEmbedder(0)
	g := NewGenerator(flaky, fastConfig(3))
	results := testResults(2)
	results[1].Content = results[0].Content // duplicate text

	if _, err := g.EmbedChunks(context.Background(), results); err != nil {
		t.Fatalf("EmbedChunks() error: %v", err)
	}
	// Both chunks share text; the duplicate may race the original inside a
	// batch, so at most 2 calls and at least 1.
	if flaky.calls < 1 || flaky.calls > 2 {
		t.Errorf("unexpected provider call count %d", flaky.calls)
	}
	if _, err := g.EmbedChunks(context.Background(), results); err != nil {
		t.Fatalf("second EmbedChunks() error: %v", err)
	}
	if flaky.calls > 2 {
		t.Errorf("second run should be fully cached, total calls %d", flaky.calls)
	}
}

func TestEmbedText_WrapsProviderError(t *testing.T) {
	flaky := newFlakyEmbedder(100)
	g := NewGenerator(flaky, fastConfig(3))

	_, err := g.EmbedText(context.Background(), "hello")
	var embErr *EmbeddingError
	if !errors.As(err, &embErr) {
		t.Fatalf("expected EmbeddingError, got %v", err)
	}
	// Single call, no retry wrapper at this layer.
	if flaky.calls != 1 {
		t.Errorf("EmbedText must not retry, got %d calls", flaky.calls)
	}
}

func TestNewOpenAIEmbedder_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder("", "text-embedding-3-small"); err == nil {
		t.Error("empty API key must be a construction-time error")
	}
	if _, err := NewOpenAIEmbedder("   ", ""); err == nil {
		t.Error("blank API key must be a construction-time error")
	}
	e, err := NewOpenAIEmbedder("sk-test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Dimensions() != 1536 {
		t.Errorf("default model dimensions = %d, want 1536", e.Dimensions())
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder(16)
	a, _ := m.Embed(context.Background(), "same text")
	b, _ := m.Embed(context.Background(), "same text")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("mock embedder must be deterministic")
		}
	}
}
