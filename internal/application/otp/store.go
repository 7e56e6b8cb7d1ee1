package otp

import (
	"context"

	"github.com/go-marketplace-api/internal/domain"
)

// Store persists at most one OTP entry per identifier. Implementations live in
// infrastructure/memory (single process), infrastructure/redis and
// infrastructure/dynamo (shared across instances).
//
// Stores expire entries on their own at ExpiresAt on a best-effort basis; the
// service re-checks expiry on every read.
type Store interface {
	// Get returns the entry for identifier or an error wrapping domain.ErrNotFound.
	Get(ctx context.Context, identifier string) (*domain.OTPEntry, error)
	// Set writes e, replacing any previous entry for e.Identifier.
	Set(ctx context.Context, e *domain.OTPEntry) error
	Delete(ctx context.Context, identifier string) error
	// Consume atomically deletes the entry if its code equals code and
	// reports whether it did.
	Consume(ctx context.Context, identifier, code string) (bool, error)
	// RecordFailure increments the failed-attempt counter and returns the new
	// count, or an error wrapping domain.ErrNotFound if the entry is gone.
	RecordFailure(ctx context.Context, identifier string) (int, error)
}
