package redisinfra

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-marketplace-api/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "otp:"

	fieldCode      = "code"
	fieldChannel   = "channel"
	fieldAttempts  = "attempts"
	fieldExpiresAt = "expires_at" // Unix milliseconds
)

// consumeScript deletes the hash only if its code matches ARGV[1].
var consumeScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'code') == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// failureScript bumps the attempt counter of an existing hash. HINCRBY on a
// missing key would recreate it without a TTL, hence the EXISTS guard.
var failureScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
end
return -1
`)

// OTPStore keeps one hash per identifier under "otp:{identifier}" and lets
// Redis expire it at ExpiresAt. Safe to share across instances.
type OTPStore struct {
	client redis.UniversalClient
}

func NewOTPStore(client redis.UniversalClient) *OTPStore {
	return &OTPStore{client: client}
}

func (s *OTPStore) Get(ctx context.Context, identifier string) (*domain.OTPEntry, error) {
	fields, err := s.client.HGetAll(ctx, otpKey(identifier)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	return decodeEntry(identifier, fields)
}

func (s *OTPStore) Set(ctx context.Context, e *domain.OTPEntry) error {
	key := otpKey(e.Identifier)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, encodeEntry(e))
		p.PExpireAt(ctx, key, e.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set otp: %w", err)
	}
	return nil
}

func (s *OTPStore) Delete(ctx context.Context, identifier string) error {
	return s.client.Del(ctx, otpKey(identifier)).Err()
}

func (s *OTPStore) Consume(ctx context.Context, identifier, code string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{otpKey(identifier)}, code).Int()
	if err != nil {
		return false, fmt.Errorf("redis consume otp: %w", err)
	}
	return n == 1, nil
}

func (s *OTPStore) RecordFailure(ctx context.Context, identifier string) (int, error) {
	n, err := failureScript.Run(ctx, s.client, []string{otpKey(identifier)}).Int()
	if err != nil {
		return 0, fmt.Errorf("redis record otp failure: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	return n, nil
}

func otpKey(identifier string) string {
	return keyPrefix + identifier
}

func encodeEntry(e *domain.OTPEntry) map[string]interface{} {
	return map[string]interface{}{
		fieldCode:      e.Code,
		fieldChannel:   string(e.Channel),
		fieldAttempts:  e.Attempts,
		fieldExpiresAt: e.ExpiresAt.UnixMilli(),
	}
}

// decodeEntry rebuilds an entry from HGETALL output. An empty map is how
// Redis reports a missing key.
func decodeEntry(identifier string, fields map[string]string) (*domain.OTPEntry, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	code, ok := fields[fieldCode]
	if !ok {
		return nil, errors.New("otp hash missing code")
	}
	attempts, err := strconv.Atoi(fields[fieldAttempts])
	if err != nil {
		return nil, fmt.Errorf("otp hash attempts: %w", err)
	}
	ms, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("otp hash expires_at: %w", err)
	}
	return &domain.OTPEntry{
		Identifier: identifier,
		Channel:    domain.Channel(fields[fieldChannel]),
		Code:       code,
		Attempts:   attempts,
		ExpiresAt:  time.UnixMilli(ms),
	}, nil
}
