package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/afiliado-ai/agent-dashboard/internal/knowledge"
	"github.com/afiliado-ai/agent-dashboard/internal/middleware"
	"github.com/afiliado-ai/agent-dashboard/internal/session"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
)

// maxUploadBytes bounds a single knowledge-base upload.
const maxUploadBytes = 25 << 20

// KnowledgeHandler manages the tenant's knowledge-base files in the
// resolved storage bucket.
type KnowledgeHandler struct {
	sessions *session.Manager
	storage  knowledge.Provider
	logger   *logger.Logger
}

// NewKnowledgeHandler creates a knowledge handler.
func NewKnowledgeHandler(sessions *session.Manager, storage knowledge.Provider, log *logger.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{
		sessions: sessions,
		storage:  storage,
		logger:   log,
	}
}

func (h *KnowledgeHandler) bucket(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	sess, err := h.sessions.Session(ctx, tenantID)
	if err != nil {
		writeDomainError(w, err)
		return "", false
	}
	return sess.Resources.BucketName, true
}

// List handles GET /api/v1/knowledge
func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	bucket, ok := h.bucket(w, r)
	if !ok {
		return
	}

	files, err := h.storage.List(r.Context(), bucket)
	if err != nil {
		h.logger.Error("failed to list knowledge files",
			zap.String("bucket", bucket),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "failed to list knowledge files")
		return
	}
	if files == nil {
		files = []knowledge.File{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"files": files,
		"total": len(files),
	})
}

// Upload handles POST /api/v1/knowledge/{filename}
func (h *KnowledgeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if err := middleware.ValidateFileName(filename); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bucket, ok := h.bucket(w, r)
	if !ok {
		return
	}

	contentType := r.Header.Get("Content-Type")
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	defer body.Close()

	if err := h.storage.Put(r.Context(), bucket, filename, contentType, body); err != nil {
		h.logger.Error("failed to upload knowledge file",
			zap.String("bucket", bucket),
			zap.String("file", filename),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "failed to upload file")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"name": filename,
		"url":  h.storage.AccessPath(bucket, filename),
	})
}

// Delete handles DELETE /api/v1/knowledge/{filename}
func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if err := middleware.ValidateFileName(filename); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bucket, ok := h.bucket(w, r)
	if !ok {
		return
	}

	if err := h.storage.Delete(r.Context(), bucket, filename); err != nil {
		h.logger.Error("failed to delete knowledge file",
			zap.String("bucket", bucket),
			zap.String("file", filename),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "failed to delete file")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
