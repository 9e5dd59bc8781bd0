package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/index"
	"github.com/hyperjump/kotae/internal/storage"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Kotae document Q&A backend is running"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.config.Upload.MaxSizeBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.Upload.MaxSizeBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	if !s.docs.Allowed(header.Filename) {
		s.respondError(w, http.StatusBadRequest,
			fmt.Sprintf("only %s files are allowed", strings.Join(s.docs.AllowedExtensions(), ", ")))
		return
	}

	path, err := s.docs.Save(header.Filename, file)
	if err != nil {
		s.logger.Error("upload failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Debug("document uploaded", zap.String("path", path))
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message":   fmt.Sprintf("File '%s' uploaded successfully.", header.Filename),
		"file_path": path,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	filePath := paramValue(r, "file_path")
	if filePath == "" {
		s.respondError(w, http.StatusBadRequest, "file_path is required")
		return
	}

	s.logger.Debug("index request", zap.String("file_path", filePath))
	if _, err := s.manager.Build(r.Context(), filePath); err != nil {
		if errors.Is(err, index.ErrNotFound) {
			s.respondError(w, http.StatusNotFound,
				fmt.Sprintf("document not found at %s, upload it first", filePath))
			return
		}
		s.logger.Error("indexing failed", zap.String("file_path", filePath), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Document indexed successfully."})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	question := paramValue(r, "question")
	if question == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}

	s.logger.Debug("ask request", zap.String("question", question))
	answer, err := s.engine.Ask(r.Context(), question)
	if err != nil {
		if errors.Is(err, index.ErrNoIndex) {
			s.respondError(w, http.StatusBadRequest,
				"no document indexed, upload and index a document first")
			return
		}
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"answer": answer.Text})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"indexed": false,
		"config": map[string]interface{}{
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"chunk_size":           s.config.Index.ChunkSize,
			"chunk_overlap":        s.config.Index.ChunkOverlap,
			"upload_dir":           s.config.Storage.UploadDir,
			"index_dir":            s.config.Storage.IndexDir,
			"llm_model":            s.config.LLM.Model,
		},
	}

	snap, err := s.manager.Ensure(r.Context())
	if err != nil && !errors.Is(err, index.ErrNoIndex) {
		s.logger.Error("status: index load failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snap != nil {
		resp["indexed"] = true
		resp["source_path"] = snap.Manifest.SourcePath
		resp["indexed_at"] = snap.Manifest.CreatedAt
		resp["documents"] = snap.Manifest.DocumentCount
		resp["chunks"] = snap.Manifest.ChunkCount
		resp["vector_index_size"] = snap.Vector.Size()
	}

	if diskBytes, err := storage.DiskUsageBytes(s.config.Storage.IndexDir); err == nil {
		resp["index_disk_usage_bytes"] = diskBytes
	}
	if diskBytes, err := storage.DiskUsageBytes(s.config.Storage.UploadDir); err == nil {
		resp["upload_disk_usage_bytes"] = diskBytes
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// paramValue reads a parameter from the query string, falling back to a
// form value for clients that post form bodies.
func paramValue(r *http.Request, name string) string {
	if v := strings.TrimSpace(r.URL.Query().Get(name)); v != "" {
		return v
	}
	return strings.TrimSpace(r.FormValue(name))
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
