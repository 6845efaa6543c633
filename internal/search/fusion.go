package search

import (
	"sort"

	"github.com/nwestbury/ragindex/internal/models"
)

// FusedResult holds a chunk ID and its fused keyword/semantic scores.
type FusedResult struct {
	ChunkID       string
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeScores rescales scores to [0,1] by the maximum, keyed by
// chunk ID. BM25-derived scores are comparable only within one result
// set, so they are normalized before fusion.
func NormalizeScores(results []*models.ScoredChunk) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	if len(results) == 0 {
		return normalized
	}
	maxScore := results[0].Similarity
	for _, r := range results {
		if r.Similarity > maxScore {
			maxScore = r.Similarity
		}
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.Chunk.ID] = r.Similarity / maxScore
		} else {
			normalized[r.Chunk.ID] = 0
		}
	}
	return normalized
}

// scoresByID keys cosine similarities by chunk ID. Cosine scores are
// already in [0,1] and need no rescaling.
func scoresByID(results []*models.ScoredChunk) map[string]float64 {
	byID := make(map[string]float64, len(results))
	for _, r := range results {
		byID[r.Chunk.ID] = r.Similarity
	}
	return byID
}

// Fuse merges keyword and semantic score maps with weights and returns
// results sorted best first.
func Fuse(keywordScores, semanticScores map[string]float64, keywordWeight, semanticWeight float64) []*FusedResult {
	scoreMap := make(map[string]*FusedResult)
	for id, score := range keywordScores {
		scoreMap[id] = &FusedResult{
			ChunkID:      id,
			KeywordScore: score,
		}
	}
	for id, score := range semanticScores {
		if result, exists := scoreMap[id]; exists {
			result.SemanticScore = score
		} else {
			scoreMap[id] = &FusedResult{
				ChunkID:       id,
				SemanticScore: score,
			}
		}
	}
	results := make([]*FusedResult, 0, len(scoreMap))
	for _, result := range scoreMap {
		result.Score = (keywordWeight * result.KeywordScore) + (semanticWeight * result.SemanticScore)
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	return results
}
