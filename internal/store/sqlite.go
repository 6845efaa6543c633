package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/nwestbury/ragindex/internal/models"
	"github.com/nwestbury/ragindex/pkg/utils"
)

// SQLiteStore implements Store on a single SQLite database. The chunk
// table and its FTS5 index are always written inside one transaction, so
// the two never observably diverge.
type SQLiteStore struct {
	db *sql.DB

	// writeMu serializes SaveChunks transactions; overlapping writers
	// from concurrent file processing must not interleave.
	writeMu sync.Mutex

	initMu      sync.Mutex
	initialized bool

	logger *zap.Logger
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStore) { s.logger = l }
}

// NewSQLiteStore opens or creates the database at dbPath. Parent
// directories are created if absent. The schema itself is created lazily
// by Initialize (or by the first operation).
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	s := &SQLiteStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL,
	embedding BLOB,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_chunks_created_at ON chunks(created_at);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	chunk_id UNINDEXED,
	content,
	metadata
);
`

// Initialize creates the schema if absent. Idempotent and safe to call
// repeatedly; an internal flag prevents redundant schema work.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initialized {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return &DatabaseError{Op: "initialize", Err: err}
	}
	s.initialized = true
	if s.logger != nil {
		s.logger.Debug("store schema ready")
	}
	return nil
}

// SaveChunks upserts a batch of chunks and their FTS entries in a single
// all-or-nothing transaction. Saving a chunk whose ID already exists
// replaces the row rather than duplicating it.
func (s *SQLiteStore) SaveChunks(ctx context.Context, chunks []models.Chunk) error {
	if err := s.Initialize(ctx); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &DatabaseError{Op: "save_chunks", Err: err}
	}
	if err := saveChunksTx(ctx, tx, chunks); err != nil {
		_ = tx.Rollback()
		return &DatabaseError{Op: "save_chunks", Err: err}
	}
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return &DatabaseError{Op: "save_chunks", Err: err}
	}
	if s.logger != nil {
		s.logger.Debug("saved chunks", zap.Int("count", len(chunks)))
	}
	return nil
}

func saveChunksTx(ctx context.Context, tx *sql.Tx, chunks []models.Chunk) error {
	for _, ch := range chunks {
		metadataJSON, err := json.Marshal(ch.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", ch.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (id, content, metadata, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				content = excluded.content,
				metadata = excluded.metadata,
				embedding = excluded.embedding`,
			ch.ID, ch.Content, string(metadataJSON), encodeVector(ch.Embedding), time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", ch.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chunks_fts WHERE chunk_id = ?`, ch.ID,
		); err != nil {
			return fmt.Errorf("clear fts entry for %s: %w", ch.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks_fts (chunk_id, content, metadata) VALUES (?, ?, ?)`,
			ch.ID, ch.Content, string(metadataJSON),
		); err != nil {
			return fmt.Errorf("insert fts entry for %s: %w", ch.ID, err)
		}
	}
	return nil
}

// Search ranks stored chunks with a non-null embedding by cosine
// similarity to queryVector, descending, and returns the top limit whose
// similarity is strictly greater than zero. Ties keep storage order.
func (s *SQLiteStore) Search(ctx context.Context, queryVector []float32, limit int) ([]*models.ScoredChunk, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, metadata, embedding FROM chunks
		 WHERE embedding IS NOT NULL ORDER BY rowid`,
	)
	if err != nil {
		return nil, &DatabaseError{Op: "search", Err: err}
	}
	defer rows.Close()

	var scored []*models.ScoredChunk
	for rows.Next() {
		ch, blob, err := scanChunk(rows)
		if err != nil {
			return nil, &DatabaseError{Op: "search", Err: err}
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, &DatabaseError{Op: "search", Err: err}
		}
		ch.Embedding = vec
		sim := utils.CosineSimilarity(queryVector, vec)
		if sim > 0 {
			scored = append(scored, &models.ScoredChunk{Chunk: ch, Similarity: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Op: "search", Err: err}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// SearchByKeywords ranks chunks by BM25 relevance over the FTS index and
// squashes scores into [0,1] so they are comparable with vector
// similarities. Terms are OR-ed; an empty query returns no results.
func (s *SQLiteStore) SearchByKeywords(ctx context.Context, query string, limit int) ([]*models.ScoredChunk, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	match := buildMatchExpr(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, content, metadata, bm25(chunks_fts)
		 FROM chunks_fts WHERE chunks_fts MATCH ?
		 ORDER BY bm25(chunks_fts) LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, &DatabaseError{Op: "search_by_keywords", Err: err}
	}
	defer rows.Close()

	var scored []*models.ScoredChunk
	for rows.Next() {
		var (
			ch           models.Chunk
			metadataJSON string
			score        float64
		)
		if err := rows.Scan(&ch.ID, &ch.Content, &metadataJSON, &score); err != nil {
			return nil, &DatabaseError{Op: "search_by_keywords", Err: err}
		}
		if err := json.Unmarshal([]byte(metadataJSON), &ch.Metadata); err != nil {
			return nil, &DatabaseError{Op: "search_by_keywords", Err: err}
		}
		scored = append(scored, &models.ScoredChunk{
			Chunk:      &ch,
			Similarity: squashBM25(score),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Op: "search_by_keywords", Err: err}
	}
	return scored, nil
}

// squashBM25 maps a raw bm25() score (lower is better, best matches are
// negative) onto (0,1) with a logistic curve; 0 maps to 0.5.
func squashBM25(score float64) float64 {
	return 1.0 / (1.0 + math.Exp(score))
}

// buildMatchExpr quotes each query term so FTS5 operators in user input
// cannot break the MATCH syntax, then ORs the terms together.
func buildMatchExpr(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, `""`)
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// GetChunk returns the chunk with the given ID, or nil (with no error)
// when it does not exist.
func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content, metadata, embedding FROM chunks WHERE id = ?`, id,
	)
	ch, blob, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &DatabaseError{Op: "get_chunk", Err: err}
	}
	vec, err := decodeVector(blob)
	if err != nil {
		return nil, &DatabaseError{Op: "get_chunk", Err: err}
	}
	ch.Embedding = vec
	return ch, nil
}

// DeleteByFile removes every chunk belonging to the given source file,
// keyword index rows included, and reports how many were deleted.
func (s *SQLiteStore) DeleteByFile(ctx context.Context, filePath string) (int64, error) {
	if err := s.Initialize(ctx); err != nil {
		return 0, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &DatabaseError{Op: "delete_by_file", Err: err}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks_fts WHERE chunk_id IN
		   (SELECT id FROM chunks WHERE json_extract(metadata, '$.file_path') = ?)`,
		filePath,
	); err != nil {
		_ = tx.Rollback()
		return 0, &DatabaseError{Op: "delete_by_file", Err: err}
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE json_extract(metadata, '$.file_path') = ?`, filePath,
	)
	if err != nil {
		_ = tx.Rollback()
		return 0, &DatabaseError{Op: "delete_by_file", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &DatabaseError{Op: "delete_by_file", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Stats returns aggregate counts over the stored chunks.
func (s *SQLiteStore) Stats(ctx context.Context) (*models.StoreStats, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	stats := &models.StoreStats{}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(LENGTH(content)), 0) FROM chunks`,
	).Scan(&stats.TotalChunks, &stats.AverageChunkSize)
	if err != nil {
		return nil, &DatabaseError{Op: "stats", Err: err}
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT json_extract(metadata, '$.file_path')) FROM chunks`,
	).Scan(&stats.TotalFiles)
	if err != nil {
		return nil, &DatabaseError{Op: "stats", Err: err}
	}
	return stats, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(r rowScanner) (*models.Chunk, []byte, error) {
	var (
		ch           models.Chunk
		metadataJSON string
		blob         []byte
	)
	if err := r.Scan(&ch.ID, &ch.Content, &metadataJSON, &blob); err != nil {
		return nil, nil, err
	}
	if err := json.Unmarshal([]byte(metadataJSON), &ch.Metadata); err != nil {
		return nil, nil, fmt.Errorf("unmarshal metadata for %s: %w", ch.ID, err)
	}
	return &ch, blob, nil
}
