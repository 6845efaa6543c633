package models

// ScoredChunk pairs a stored chunk with its similarity to a query, in [0,1].
type ScoredChunk struct {
	Chunk      *Chunk  `json:"chunk"`
	Similarity float64 `json:"similarity"`
}

// SearchResult is the outcome of one search call.
type SearchResult struct {
	Query        string         `json:"query"`
	Chunks       []*ScoredChunk `json:"chunks"`
	SearchTimeMs int64          `json:"search_time_ms"`
}

// FileFailure records one file that could not be processed.
type FileFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// ProcessResult is the aggregate outcome of processing one or more files.
// Failed files never abort a run; they are listed here instead.
type ProcessResult struct {
	RunID            string        `json:"run_id"`
	ProcessedFiles   int           `json:"processed_files"`
	TotalChunks      int           `json:"total_chunks"`
	Succeeded        []string      `json:"succeeded"`
	Failed           []FileFailure `json:"failed"`
	ProcessingTimeMs int64         `json:"processing_time_ms"`
}

// Merge folds other into r, summing counts and concatenating file lists.
// The receiver's RunID and ProcessingTimeMs are kept.
func (r *ProcessResult) Merge(other *ProcessResult) {
	if other == nil {
		return
	}
	r.ProcessedFiles += other.ProcessedFiles
	r.TotalChunks += other.TotalChunks
	r.Succeeded = append(r.Succeeded, other.Succeeded...)
	r.Failed = append(r.Failed, other.Failed...)
}

// StoreStats summarizes the contents of the vector store.
type StoreStats struct {
	TotalChunks      int64   `json:"total_chunks"`
	TotalFiles       int64   `json:"total_files"`
	AverageChunkSize float64 `json:"average_chunk_size"`
}
