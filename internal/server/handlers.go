package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/indexer"
	"github.com/hyperjump/ruiji/internal/models"
)

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	var query models.RelatedQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("related request", zap.String("path", query.Path), zap.Int("limit", query.Limit))

	start := time.Now()
	notes, err := s.manager.Related(r.Context(), query.Path, indexer.QueryOptions{
		Limit:    query.Limit,
		MinScore: query.MinScore,
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("related query failed", zap.String("path", query.Path), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, &models.RelatedResponse{
		Path:      query.Path,
		Results:   notes,
		Total:     len(notes),
		QueryTime: time.Since(start).Milliseconds(),
	})
}

type documentRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	s.logger.Debug("index document request", zap.String("path", req.Path))
	if err := s.manager.IndexPath(r.Context(), req.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("indexing failed", zap.String("path", req.Path), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": req.Path, "status": "indexed"})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		var req documentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Path != "" {
			path = req.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	s.logger.Debug("delete document request", zap.String("path", path))
	if err := s.manager.DeleteDocument(r.Context(), path); err != nil {
		s.logger.Error("deletion failed", zap.String("path", path), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"path": path, "status": "deleted"})
}

type reindexRequest struct {
	Force bool `json:"force"`
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	// The CAS inside ReindexAll is authoritative; this check only shapes the
	// common-case response.
	if s.manager.Reindexing() {
		s.respondError(w, http.StatusConflict, "reindex already running")
		return
	}
	var req reindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Info("reindex requested", zap.Bool("force", req.Force))

	// The request context ends with this response; the walk owns its own.
	go func() {
		report, err := s.manager.ReindexAll(context.Background(), indexer.ReindexOptions{Force: req.Force})
		if err != nil {
			s.logger.Error("reindex failed", zap.Error(err))
			return
		}
		s.logger.Info("reindex finished",
			zap.Int("total", report.Total),
			zap.Int("indexed", report.Indexed),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
			zap.Int("pruned", report.Pruned),
			zap.Duration("elapsed", report.Elapsed))
	}()

	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.catalog.CountByStatus(r.Context())
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	documents := make(map[string]int, len(counts))
	for status, n := range counts {
		documents[string(status)] = n
	}

	resp := &models.StatusResponse{
		Vault:      s.config.Vault.Dir,
		Collection: s.config.Store.Collection,
		Model:      s.config.Embedding.Model,
		Dimensions: s.config.Embedding.Dimensions,
		Reindexing: s.manager.Reindexing(),
		Documents:  documents,
	}
	if size, err := s.catalog.SizeBytes(); err == nil {
		resp.CatalogBytes = size
	}
	s.respondJSON(w, http.StatusOK, resp)
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
