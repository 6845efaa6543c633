// Package store persists chunks with their embeddings in SQLite and
// serves vector similarity search and FTS5 keyword search over them.
package store

import (
	"context"
	"fmt"

	"github.com/nwestbury/ragindex/internal/models"
)

// Store is the sole long-lived owner of chunk records.
//
// Every operation other than Initialize self-initializes on first use, so
// callers never need to sequence calls manually. SaveChunks is
// transactional and all-or-nothing; concurrent SaveChunks calls are
// serialized by the store itself.
type Store interface {
	Initialize(ctx context.Context) error
	SaveChunks(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, queryVector []float32, limit int) ([]*models.ScoredChunk, error)
	SearchByKeywords(ctx context.Context, query string, limit int) ([]*models.ScoredChunk, error)
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	DeleteByFile(ctx context.Context, filePath string) (int64, error)
	Stats(ctx context.Context) (*models.StoreStats, error)
	Close() error
}

// DatabaseError reports a failed persistence operation.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s failed: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }
