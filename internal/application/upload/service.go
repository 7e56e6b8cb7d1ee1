package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-marketplace-api/internal/domain"
	"github.com/go-marketplace-api/internal/pkg/id"
	"github.com/go-marketplace-api/internal/pkg/validate"
)

const (
	defaultURLTTL   = 15 * time.Minute
	defaultPageSize = 100
)

// ObjectStore is the storage provider. Keys never leave the bucket they are
// addressed to.
type ObjectStore interface {
	PresignPut(ctx context.Context, bucket domain.Bucket, key, contentType string, size int64, ttl time.Duration) (string, error)
	PublicURL(bucket domain.Bucket, key string) string
	Head(ctx context.Context, bucket domain.Bucket, key string) (*domain.ObjectInfo, error)
	List(ctx context.Context, bucket domain.Bucket, prefix string, limit int, token string) ([]string, string, error)
	DeleteKeys(ctx context.Context, bucket domain.Bucket, keys []string) error
}

// RecordRepository tracks signed uploads until they are confirmed.
type RecordRepository interface {
	Put(ctx context.Context, rec *domain.UploadRecord) error
	Get(ctx context.Context, bucket, storageKey string) (*domain.UploadRecord, error)
	MarkConfirmed(ctx context.Context, bucket, storageKey string, at time.Time) error
	Delete(ctx context.Context, bucket, storageKey string) error
	DeleteByOwner(ctx context.Context, bucket, ownerID string) (int, error)
}

// FileEntry is one entry of a batch upload request.
type FileEntry struct {
	FileName string `json:"fileName" validate:"required"`
	domain.FileDescriptor
}

type Service interface {
	GetUploadURL(ctx context.Context, req domain.SignedUploadRequest) (*domain.SignedUploadResult, error)
	// GetUploadURLs validates every file before signing any of them. If a
	// signature fails midway, records written for earlier files are removed.
	GetUploadURLs(ctx context.Context, bucket domain.Bucket, ownerID string, files []FileEntry) ([]domain.SignedUploadResult, error)
	Confirm(ctx context.Context, bucket domain.Bucket, storageKey string) (*domain.UploadRecord, error)
	DeleteAll(ctx context.Context, ownerID string, bucket domain.Bucket) (int, error)
}

type ServiceDeps struct {
	Store   ObjectStore
	Records RecordRepository

	URLTTL      time.Duration
	MaxFileSize int64 // 0 means unbounded
	PageSize    int
	// Timeout bounds each provider call; 0 leaves the caller's deadline alone.
	Timeout time.Duration
	Now     func() time.Time
}

type service struct {
	store       ObjectStore
	records     RecordRepository
	urlTTL      time.Duration
	maxFileSize int64
	pageSize    int
	timeout     time.Duration
	now         func() time.Time
}

func NewService(d ServiceDeps) Service {
	s := &service{
		store:       d.Store,
		records:     d.Records,
		urlTTL:      d.URLTTL,
		maxFileSize: d.MaxFileSize,
		pageSize:    d.PageSize,
		timeout:     d.Timeout,
		now:         d.Now,
	}
	if s.urlTTL <= 0 {
		s.urlTTL = defaultURLTTL
	}
	if s.pageSize <= 0 {
		s.pageSize = defaultPageSize
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *service) GetUploadURL(ctx context.Context, req domain.SignedUploadRequest) (*domain.SignedUploadResult, error) {
	key, err := s.check(req.Bucket, req.OwnerID, FileEntry{FileName: req.FileName, FileDescriptor: req.File})
	if err != nil {
		return nil, err
	}
	return s.sign(ctx, req.Bucket, req.OwnerID, key, req.File)
}

func (s *service) GetUploadURLs(ctx context.Context, bucket domain.Bucket, ownerID string, files []FileEntry) ([]domain.SignedUploadResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("at least one file required: %w", domain.ErrBadRequest)
	}
	keys := make([]string, len(files))
	for i, f := range files {
		key, err := s.check(bucket, ownerID, f)
		if err != nil {
			return nil, fmt.Errorf("files[%d]: %w", i, err)
		}
		keys[i] = key
	}
	out := make([]domain.SignedUploadResult, 0, len(files))
	for i, f := range files {
		res, err := s.sign(ctx, bucket, ownerID, keys[i], f.FileDescriptor)
		if err != nil {
			s.discard(ctx, bucket, keys[:i])
			return nil, err
		}
		out = append(out, *res)
	}
	return out, nil
}

// discard drops the pending records of a batch that failed part way.
func (s *service) discard(ctx context.Context, bucket domain.Bucket, keys []string) {
	ctx, cancel := s.withTimeout(context.WithoutCancel(ctx))
	defer cancel()
	for _, key := range keys {
		if err := s.records.Delete(ctx, string(bucket), key); err != nil {
			slog.Warn("failed to discard pending upload", "bucket", bucket, "key", key, "err", err)
		}
	}
}

func (s *service) check(bucket domain.Bucket, ownerID string, f FileEntry) (string, error) {
	if !bucket.Valid() {
		return "", fmt.Errorf("unknown bucket %q: %w", bucket, domain.ErrBadRequest)
	}
	key, err := StorageKey(ownerID, f.FileName)
	if err != nil {
		return "", err
	}
	if err := validate.Struct(f.FileDescriptor); err != nil {
		return "", fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	if strings.TrimSpace(f.Type) == "" {
		return "", fmt.Errorf("fileType required: %w", domain.ErrBadRequest)
	}
	if s.maxFileSize > 0 && f.Size > s.maxFileSize {
		return "", fmt.Errorf("fileSize %d exceeds limit %d: %w", f.Size, s.maxFileSize, domain.ErrBadRequest)
	}
	return key, nil
}

func (s *service) sign(ctx context.Context, bucket domain.Bucket, ownerID, key string, f domain.FileDescriptor) (*domain.SignedUploadResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now().UTC()
	u, err := s.store.PresignPut(ctx, bucket, key, f.Type, f.Size, s.urlTTL)
	if err != nil {
		slog.Error("failed to presign upload", "bucket", bucket, "key", key, "err", err)
		return nil, fmt.Errorf("presign upload: %w", domain.ErrStorageUnavailable)
	}
	res := &domain.SignedUploadResult{
		UploadURL:  u,
		StorageKey: key,
		FileType:   f.Type,
		FileSize:   f.Size,
		PublicURL:  s.store.PublicURL(bucket, key),
		ExpiresAt:  now.Add(s.urlTTL),
	}
	rec := &domain.UploadRecord{
		Bucket:     string(bucket),
		StorageKey: key,
		UploadID:   id.New(),
		OwnerID:    ownerID,
		FileType:   f.Type,
		FileSize:   f.Size,
		Status:     domain.UploadPending,
		PublicURL:  res.PublicURL,
		CreatedAt:  now,
	}
	if err := s.records.Put(ctx, rec); err != nil {
		slog.Error("failed to record upload", "bucket", bucket, "key", key, "err", err)
		return nil, fmt.Errorf("record upload: %w", domain.ErrStorageUnavailable)
	}
	return res, nil
}

func (s *service) Confirm(ctx context.Context, bucket domain.Bucket, storageKey string) (*domain.UploadRecord, error) {
	if !bucket.Valid() {
		return nil, fmt.Errorf("unknown bucket %q: %w", bucket, domain.ErrBadRequest)
	}
	if strings.TrimSpace(storageKey) == "" {
		return nil, fmt.Errorf("filePath required: %w", domain.ErrBadRequest)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec, err := s.records.Get(ctx, string(bucket), storageKey)
	if err != nil {
		return nil, storageErr("load upload record", err)
	}
	if rec.Status == domain.UploadConfirmed {
		return rec, nil
	}

	info, err := s.store.Head(ctx, bucket, storageKey)
	if err != nil {
		return nil, storageErr("head object", err)
	}
	if info.Size != rec.FileSize {
		return nil, fmt.Errorf("uploaded %d bytes, signed for %d: %w", info.Size, rec.FileSize, domain.ErrConflict)
	}

	now := s.now().UTC()
	if err := s.records.MarkConfirmed(ctx, string(bucket), storageKey, now); err != nil {
		return nil, storageErr("confirm upload", err)
	}
	rec.Status = domain.UploadConfirmed
	rec.ConfirmedAt = &now
	return rec, nil
}

func (s *service) DeleteAll(ctx context.Context, ownerID string, bucket domain.Bucket) (int, error) {
	if !bucket.Valid() {
		return 0, fmt.Errorf("unknown bucket %q: %w", bucket, domain.ErrBadRequest)
	}
	prefix, err := OwnerPrefix(ownerID)
	if err != nil {
		return 0, err
	}

	deleted := 0
	token := ""
	for {
		keys, next, err := s.listPage(ctx, bucket, prefix, token)
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			if err := s.deletePage(ctx, bucket, keys); err != nil {
				return deleted, err
			}
			deleted += len(keys)
		}
		if next == "" {
			break
		}
		token = next
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if n, err := s.records.DeleteByOwner(ctx, string(bucket), ownerID); err != nil {
		slog.Error("failed to delete upload records", "bucket", bucket, "owner_id", ownerID, "err", err)
		return deleted, fmt.Errorf("delete upload records: %w", domain.ErrStorageUnavailable)
	} else if n > 0 {
		slog.Info("deleted upload records", "bucket", bucket, "owner_id", ownerID, "count", n)
	}
	return deleted, nil
}

func (s *service) listPage(ctx context.Context, bucket domain.Bucket, prefix, token string) ([]string, string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	keys, next, err := s.store.List(ctx, bucket, prefix, s.pageSize, token)
	if err != nil {
		slog.Error("failed to list objects", "bucket", bucket, "prefix", prefix, "err", err)
		return nil, "", fmt.Errorf("list objects: %w", domain.ErrStorageUnavailable)
	}
	return keys, next, nil
}

func (s *service) deletePage(ctx context.Context, bucket domain.Bucket, keys []string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.store.DeleteKeys(ctx, bucket, keys); err != nil {
		slog.Error("failed to delete objects", "bucket", bucket, "count", len(keys), "err", err)
		return fmt.Errorf("delete objects: %w", domain.ErrStorageUnavailable)
	}
	return nil
}

// storageErr keeps ErrNotFound visible to callers and hides everything else
// behind ErrStorageUnavailable.
func storageErr(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	slog.Error("upload storage failure", "op", op, "err", err)
	return fmt.Errorf("%s: %w", op, domain.ErrStorageUnavailable)
}
