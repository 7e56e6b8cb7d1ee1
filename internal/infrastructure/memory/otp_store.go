package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-marketplace-api/internal/domain"
)

type otpSlot struct {
	entry domain.OTPEntry
	timer *time.Timer
}

// OTPStore keeps OTP entries in process memory. Each entry carries a one-shot
// timer that removes it at ExpiresAt. Only suitable for single-instance
// deployments; use the Redis or DynamoDB store when running more than one.
type OTPStore struct {
	mu    sync.Mutex
	slots map[string]*otpSlot
}

func NewOTPStore() *OTPStore {
	return &OTPStore{slots: make(map[string]*otpSlot)}
}

func (s *OTPStore) Get(_ context.Context, identifier string) (*domain.OTPEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[identifier]
	if !ok {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	e := slot.entry
	return &e, nil
}

func (s *OTPStore) Set(_ context.Context, e *domain.OTPEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.slots[e.Identifier]; ok {
		old.timer.Stop()
	}
	id := e.Identifier
	slot := &otpSlot{entry: *e}
	slot.timer = time.AfterFunc(time.Until(e.ExpiresAt), func() { s.expire(id, slot) })
	s.slots[id] = slot
	return nil
}

func (s *OTPStore) Delete(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(identifier)
	return nil
}

func (s *OTPStore) Consume(_ context.Context, identifier, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[identifier]
	if !ok || slot.entry.Code != code {
		return false, nil
	}
	s.remove(identifier)
	return true, nil
}

func (s *OTPStore) RecordFailure(_ context.Context, identifier string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[identifier]
	if !ok {
		return 0, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	slot.entry.Attempts++
	return slot.entry.Attempts, nil
}

// Len returns the number of live entries.
func (s *OTPStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Close stops all pending expiry timers and drops every entry.
func (s *OTPStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.slots {
		s.remove(id)
	}
}

// expire runs on the entry's timer. A reissue replaces the slot, so a stale
// timer must not delete its successor.
func (s *OTPStore) expire(identifier string, slot *otpSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.slots[identifier]; ok && cur == slot {
		delete(s.slots, identifier)
	}
}

// remove must be called with mu held.
func (s *OTPStore) remove(identifier string) {
	if slot, ok := s.slots[identifier]; ok {
		slot.timer.Stop()
		delete(s.slots, identifier)
	}
}
