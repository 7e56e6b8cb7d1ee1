package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-marketplace-api/internal/application/upload"
	"github.com/go-marketplace-api/internal/domain"
	"github.com/go-marketplace-api/internal/pkg/validate"
	"github.com/go-marketplace-api/internal/transport/http/middleware"
)

// SignUploadsRequest lists the files a client intends to PUT.
type SignUploadsRequest struct {
	Files []upload.FileEntry `json:"files" validate:"required,min=1,dive"`
}

type ConfirmUploadRequest struct {
	FilePath string `json:"filePath" validate:"required"`
}

// UploadHandler brokers signed uploads. File bytes never pass through it.
type UploadHandler struct {
	svc upload.Service
}

func NewUploadHandler(svc upload.Service) *UploadHandler {
	return &UploadHandler{svc: svc}
}

func (h *UploadHandler) Sign(w http.ResponseWriter, r *http.Request) {
	var req SignUploadsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bucket := domain.Bucket(chi.URLParam(r, "bucket"))
	res, err := h.svc.GetUploadURLs(r.Context(), bucket, chi.URLParam(r, "ownerId"), req.Files)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *UploadHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmUploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.svc.Confirm(r.Context(), domain.Bucket(chi.URLParam(r, "bucket")), req.FilePath)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *UploadHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	bucket := domain.Bucket(chi.URLParam(r, "bucket"))
	ownerID := chi.URLParam(r, "ownerId")
	n, err := h.svc.DeleteAll(r.Context(), ownerID, bucket)
	if err != nil {
		httpError(w, err)
		return
	}
	actor := ""
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		actor = claims.Subject
	}
	slog.Info("deleted owner uploads", "bucket", bucket, "owner_id", ownerID, "count", n, "by", actor)
	writeJSON(w, http.StatusOK, DeleteEnvelope{Deleted: n})
}
