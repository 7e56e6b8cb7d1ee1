package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-marketplace-api/internal/domain"
)

// httpError maps a service error to a status code. Client errors echo the
// error text; infrastructure errors are reported without provider detail.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest), errors.Is(err, domain.ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrTooManyRequests):
		writeError(w, http.StatusTooManyRequests, "too many requests")
	case domain.IsUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		slog.Error("unhandled error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
