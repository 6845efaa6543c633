package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type indexRequest struct {
	Paths []string `json:"paths"`
}

type searchRequest struct {
	Query          string  `json:"query"`
	Limit          int     `json:"limit,omitempty"`
	Threshold      float64 `json:"threshold,omitempty"`
	Mode           string  `json:"mode,omitempty"`
	KeywordWeight  float64 `json:"keyword_weight,omitempty"`
	SemanticWeight float64 `json:"semantic_weight,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Paths) == 0 {
		s.respondError(w, http.StatusBadRequest, "paths is required")
		return
	}
	s.logger.Debug("index request", zap.Int("files", len(req.Paths)))
	result := s.processor.ProcessFiles(r.Context(), req.Paths)
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	s.logger.Debug("search request",
		zap.String("query", req.Query),
		zap.String("mode", req.Mode),
		zap.Int("limit", req.Limit),
	)

	var (
		result interface{}
		err    error
	)
	switch req.Mode {
	case "keyword":
		result, err = s.engine.SearchKeywords(r.Context(), req.Query, req.Limit)
	case "hybrid":
		kw, sem := req.KeywordWeight, req.SemanticWeight
		if kw == 0 && sem == 0 {
			kw, sem = 0.5, 0.5
		}
		result, err = s.engine.SearchHybrid(r.Context(), req.Query, req.Limit, kw, sem)
	default:
		result, err = s.engine.Search(r.Context(), req.Query, req.Limit, req.Threshold)
	}
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	chunk, err := s.store.GetChunk(r.Context(), id)
	if err != nil {
		s.logger.Error("get chunk failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if chunk == nil {
		s.respondError(w, http.StatusNotFound, "chunk not found")
		return
	}
	s.respondJSON(w, http.StatusOK, chunk)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
