package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-marketplace-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id, code string, ttl time.Duration) *domain.OTPEntry {
	return &domain.OTPEntry{
		Identifier: id,
		Channel:    domain.ChannelEmail,
		Code:       code,
		ExpiresAt:  time.Now().Add(ttl),
	}
}

func TestOTPStore_GetMissing(t *testing.T) {
	s := NewOTPStore()
	_, err := s.Get(context.Background(), "a@b.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestOTPStore_SetOverwrites(t *testing.T) {
	s := NewOTPStore()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, entry("a@b.com", "1111", time.Minute)))
	require.NoError(t, s.Set(ctx, entry("a@b.com", "2222", time.Minute)))

	got, err := s.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "2222", got.Code)
	assert.Equal(t, 1, s.Len())
}

func TestOTPStore_GetReturnsCopy(t *testing.T) {
	s := NewOTPStore()
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, entry("a@b.com", "1111", time.Minute)))

	got, _ := s.Get(ctx, "a@b.com")
	got.Code = "9999"

	again, _ := s.Get(ctx, "a@b.com")
	assert.Equal(t, "1111", again.Code)
}

func TestOTPStore_ConsumeOnlyOnMatch(t *testing.T) {
	s := NewOTPStore()
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, entry("a@b.com", "1234", time.Minute)))

	ok, err := s.Consume(ctx, "a@b.com", "0000")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())

	ok, err = s.Consume(ctx, "a@b.com", "1234")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, s.Len())

	ok, _ = s.Consume(ctx, "a@b.com", "1234")
	assert.False(t, ok)
}

func TestOTPStore_ConsumeIsExclusive(t *testing.T) {
	s := NewOTPStore()
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, entry("a@b.com", "1234", time.Minute)))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.Consume(ctx, "a@b.com", "1234"); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestOTPStore_RecordFailure(t *testing.T) {
	s := NewOTPStore()
	defer s.Close()
	ctx := context.Background()

	_, err := s.RecordFailure(ctx, "a@b.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	require.NoError(t, s.Set(ctx, entry("a@b.com", "1234", time.Minute)))
	n, err := s.RecordFailure(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, _ = s.RecordFailure(ctx, "a@b.com")
	assert.Equal(t, 2, n)
}

func TestOTPStore_TimerExpiresEntry(t *testing.T) {
	s := NewOTPStore()
	defer s.Close()
	require.NoError(t, s.Set(context.Background(), entry("a@b.com", "1234", 20*time.Millisecond)))

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestOTPStore_StaleTimerKeepsReissuedEntry(t *testing.T) {
	s := NewOTPStore()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, entry("a@b.com", "1111", 20*time.Millisecond)))
	s.mu.Lock()
	first := s.slots["a@b.com"]
	s.mu.Unlock()
	require.NoError(t, s.Set(ctx, entry("a@b.com", "2222", time.Minute)))

	// Simulate the first timer firing after it was superseded.
	s.expire("a@b.com", first)

	got, err := s.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "2222", got.Code)
}
