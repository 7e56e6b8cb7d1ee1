package upload

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-marketplace-api/internal/domain"
)

// fakeStore keeps objects per bucket in memory. Continuation tokens are the
// last key of the previous page.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[domain.Bucket]map[string]int64
	presigned []string
	lists     int
	deletes   [][]string

	presignErr error
	listErr    error
	deleteErr  error
	headErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[domain.Bucket]map[string]int64{}}
}

func (f *fakeStore) put(bucket domain.Bucket, key string, size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects[bucket] == nil {
		f.objects[bucket] = map[string]int64{}
	}
	f.objects[bucket][key] = size
}

func (f *fakeStore) count(bucket domain.Bucket) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects[bucket])
}

func (f *fakeStore) PresignPut(_ context.Context, bucket domain.Bucket, key, contentType string, size int64, ttl time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presigned = append(f.presigned, key)
	return fmt.Sprintf("https://signed.example/%s/%s?type=%s&len=%d&ttl=%s", bucket, key, contentType, size, ttl), nil
}

func (f *fakeStore) PublicURL(bucket domain.Bucket, key string) string {
	return "https://cdn.example/" + string(bucket) + "/" + key
}

func (f *fakeStore) Head(_ context.Context, bucket domain.Bucket, key string) (*domain.ObjectInfo, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	size, ok := f.objects[bucket][key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, domain.ErrNotFound)
	}
	return &domain.ObjectInfo{Size: size}, nil
}

func (f *fakeStore) List(_ context.Context, bucket domain.Bucket, prefix string, limit int, token string) ([]string, string, error) {
	if f.listErr != nil {
		return nil, "", f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	var all []string
	for k := range f.objects[bucket] {
		if strings.HasPrefix(k, prefix) && k > token {
			all = append(all, k)
		}
	}
	sort.Strings(all)
	if len(all) <= limit {
		return all, "", nil
	}
	page := all[:limit]
	return page, page[len(page)-1], nil
}

func (f *fakeStore) DeleteKeys(_ context.Context, bucket domain.Bucket, keys []string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, keys)
	for _, k := range keys {
		delete(f.objects[bucket], k)
	}
	return nil
}

type fakeRecords struct {
	mu      sync.Mutex
	records map[string]*domain.UploadRecord
	putErr  error
	// putFailAt makes the nth Put (1-based) fail with putErr.
	putFailAt int
	puts      int
	deleted   []string
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{records: map[string]*domain.UploadRecord{}}
}

func recordKey(bucket, key string) string { return bucket + "|" + key }

func (r *fakeRecords) Put(_ context.Context, rec *domain.UploadRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.puts++
	if r.putErr != nil && (r.putFailAt == 0 || r.putFailAt == r.puts) {
		return r.putErr
	}
	cp := *rec
	r.records[recordKey(rec.Bucket, rec.StorageKey)] = &cp
	return nil
}

func (r *fakeRecords) Get(_ context.Context, bucket, storageKey string) (*domain.UploadRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[recordKey(bucket, storageKey)]
	if !ok {
		return nil, fmt.Errorf("upload not found: %w", domain.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeRecords) MarkConfirmed(_ context.Context, bucket, storageKey string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[recordKey(bucket, storageKey)]
	if !ok {
		return errors.New("missing")
	}
	rec.Status = domain.UploadConfirmed
	rec.ConfirmedAt = &at
	return nil
}

func (r *fakeRecords) Delete(_ context.Context, bucket, storageKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, storageKey)
	delete(r.records, recordKey(bucket, storageKey))
	return nil
}

func (r *fakeRecords) DeleteByOwner(_ context.Context, bucket, ownerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, rec := range r.records {
		if rec.Bucket == bucket && strings.HasPrefix(rec.StorageKey, ownerID+"/") {
			delete(r.records, k)
			n++
		}
	}
	return n, nil
}

func (r *fakeRecords) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
