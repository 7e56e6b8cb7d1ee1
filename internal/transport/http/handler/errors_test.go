package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-marketplace-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestHTTPError_StatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("x: %w", domain.ErrBadRequest), http.StatusBadRequest},
		{fmt.Errorf("x: %w", domain.ErrInvalidIdentifier), http.StatusBadRequest},
		{fmt.Errorf("x: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrTooManyRequests, http.StatusTooManyRequests},
		{domain.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{domain.ErrMailDeliveryFailed, http.StatusServiceUnavailable},
		{domain.ErrSMSDeliveryFailed, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		httpError(rr, c.err)
		assert.Equal(t, c.code, rr.Code, c.err.Error())
	}
}

func TestHTTPError_HidesInfrastructureDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	httpError(rr, fmt.Errorf("dial tcp 10.0.0.5:587: %w", domain.ErrMailDeliveryFailed))
	assert.JSONEq(t, `{"error":"service unavailable"}`, rr.Body.String())
}
