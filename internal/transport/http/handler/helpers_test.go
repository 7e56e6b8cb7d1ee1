package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-marketplace-api/internal/application/upload"
	"github.com/go-marketplace-api/internal/domain"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockOTPSvc struct{ mock.Mock }

func (m *mockOTPSvc) Issue(ctx context.Context, identifier string, channel domain.Channel) (domain.Delivery, error) {
	args := m.Called(ctx, identifier, channel)
	d, _ := args.Get(0).(domain.Delivery)
	return d, args.Error(1)
}

func (m *mockOTPSvc) Verify(ctx context.Context, identifier, code string) (bool, error) {
	args := m.Called(ctx, identifier, code)
	return args.Bool(0), args.Error(1)
}

type mockUploadSvc struct{ mock.Mock }

func (m *mockUploadSvc) GetUploadURL(ctx context.Context, req domain.SignedUploadRequest) (*domain.SignedUploadResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*domain.SignedUploadResult)
	return res, args.Error(1)
}

func (m *mockUploadSvc) GetUploadURLs(ctx context.Context, bucket domain.Bucket, ownerID string, files []upload.FileEntry) ([]domain.SignedUploadResult, error) {
	args := m.Called(ctx, bucket, ownerID, files)
	res, _ := args.Get(0).([]domain.SignedUploadResult)
	return res, args.Error(1)
}

func (m *mockUploadSvc) Confirm(ctx context.Context, bucket domain.Bucket, storageKey string) (*domain.UploadRecord, error) {
	args := m.Called(ctx, bucket, storageKey)
	rec, _ := args.Get(0).(*domain.UploadRecord)
	return rec, args.Error(1)
}

func (m *mockUploadSvc) DeleteAll(ctx context.Context, ownerID string, bucket domain.Bucket) (int, error) {
	args := m.Called(ctx, ownerID, bucket)
	return args.Int(0), args.Error(1)
}

type stubSigner struct {
	subject, channel, role string
	err                    error
}

func (s *stubSigner) Sign(subject, channel, role string) (string, error) {
	s.subject, s.channel, s.role = subject, channel, role
	if s.err != nil {
		return "", s.err
	}
	return "signed." + subject, nil
}

func (s *stubSigner) Expiry() time.Duration { return time.Hour }

// --- helpers ---

func jsonReq(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return httptest.NewRequest(method, target, bytes.NewReader(raw))
}

// withParams injects chi URL params into the request context.
func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(v))
}
