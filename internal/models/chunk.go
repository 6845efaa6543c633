// Package models defines core data structures for chunks, search results, and processing runs.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// ChunkMetadata describes where a chunk came from and how large it is.
// StartPosition and EndPosition are line numbers (1-based) for the line and
// AST strategies, and paragraph indices for the paragraph strategy.
type ChunkMetadata struct {
	FilePath      string         `json:"file_path"`
	FileType      string         `json:"file_type"`
	StartPosition int            `json:"start_position"`
	EndPosition   int            `json:"end_position"`
	TokenCount    int            `json:"token_count"`
	CreatedAt     time.Time      `json:"created_at"`
	Additional    map[string]any `json:"additional,omitempty"`
}

// ChunkResult is a chunk as produced by a chunker, before an ID or
// embedding has been assigned.
type ChunkResult struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Chunk is the persisted unit of embedding and storage.
type Chunk struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Metadata  ChunkMetadata `json:"metadata"`
	Embedding []float32     `json:"-"` // nil until the embedding stage completes
}

// chunkIDPayload is the metadata subset that participates in ID derivation.
// CreatedAt is deliberately excluded: the same content at the same position
// must hash to the same ID on every run so that saves are upserts.
type chunkIDPayload struct {
	FilePath      string         `json:"file_path"`
	FileType      string         `json:"file_type"`
	StartPosition int            `json:"start_position"`
	EndPosition   int            `json:"end_position"`
	TokenCount    int            `json:"token_count"`
	Additional    map[string]any `json:"additional,omitempty"`
}

// ChunkID returns the deterministic identifier for a chunk: the SHA-256 of
// the content concatenated with its serialized positional metadata.
func ChunkID(content string, meta ChunkMetadata) string {
	payload, _ := json.Marshal(chunkIDPayload{
		FilePath:      meta.FilePath,
		FileType:      meta.FileType,
		StartPosition: meta.StartPosition,
		EndPosition:   meta.EndPosition,
		TokenCount:    meta.TokenCount,
		Additional:    meta.Additional,
	})
	h := sha256.New()
	h.Write([]byte(content))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
