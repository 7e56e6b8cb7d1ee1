package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/go-marketplace-api/internal/domain"
	"github.com/go-marketplace-api/internal/pkg/validate"
)

const (
	emailSubject = "Your verification code"

	defaultTTL         = 2 * time.Minute
	defaultMaxAttempts = 5
)

// Mailer delivers email-channel codes.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers phone-channel codes.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Limiter throttles issuance per identifier.
type Limiter interface {
	Allow(key string) bool
}

type Service interface {
	// Issue stores a fresh code for identifier, replacing any outstanding one,
	// and delivers it over channel.
	Issue(ctx context.Context, identifier string, channel domain.Channel) (domain.Delivery, error)
	// Verify reports whether code is the live code for identifier. A match
	// consumes the code. Expired and mismatched codes yield false, not an error.
	Verify(ctx context.Context, identifier, code string) (bool, error)
}

// ServiceDeps wires the OTP service. Store and Mailer are required.
// A nil SMSSender means phone-channel codes are accepted but not delivered.
type ServiceDeps struct {
	Store           Store
	Mailer          Mailer
	SMSSender       SMSSender
	Limiter         Limiter
	TTL             time.Duration
	MaxAttempts     int
	DeliveryTimeout time.Duration

	// Now and NewCode default to time.Now and a crypto/rand 4-digit code.
	Now     func() time.Time
	NewCode func() (string, error)
}

type service struct {
	store           Store
	mailer          Mailer
	smsSender       SMSSender
	limiter         Limiter
	ttl             time.Duration
	maxAttempts     int
	deliveryTimeout time.Duration
	now             func() time.Time
	newCode         func() (string, error)
}

func NewService(d ServiceDeps) Service {
	s := &service{
		store:           d.Store,
		mailer:          d.Mailer,
		smsSender:       d.SMSSender,
		limiter:         d.Limiter,
		ttl:             d.TTL,
		maxAttempts:     d.MaxAttempts,
		deliveryTimeout: d.DeliveryTimeout,
		now:             d.Now,
		newCode:         d.NewCode,
	}
	if s.ttl <= 0 {
		s.ttl = defaultTTL
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newCode == nil {
		s.newCode = GenerateCode
	}
	return s
}

func (s *service) Issue(ctx context.Context, identifier string, channel domain.Channel) (domain.Delivery, error) {
	identifier, kind, err := NormalizeIdentifier(identifier)
	if err != nil {
		return "", err
	}
	if channel != kind {
		return "", fmt.Errorf("channel %q does not match identifier: %w", channel, domain.ErrInvalidIdentifier)
	}
	if s.limiter != nil && !s.limiter.Allow(identifier) {
		return "", fmt.Errorf("otp issuance throttled: %w", domain.ErrTooManyRequests)
	}

	code, err := s.newCode()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	e := &domain.OTPEntry{
		Identifier: identifier,
		Channel:    channel,
		Code:       code,
		ExpiresAt:  s.now().Add(s.ttl),
	}
	if err := s.store.Set(ctx, e); err != nil {
		slog.Error("failed to store otp", "identifier", identifier, "err", err)
		return "", fmt.Errorf("store otp: %w", domain.ErrStorageUnavailable)
	}

	delivery, err := s.deliver(ctx, e)
	if err != nil {
		// Nobody can learn this code, so drop it rather than leave it live.
		if dErr := s.store.Delete(ctx, identifier); dErr != nil {
			slog.Warn("failed to drop undelivered otp", "identifier", identifier, "err", dErr)
		}
		return "", err
	}
	return delivery, nil
}

func (s *service) deliver(ctx context.Context, e *domain.OTPEntry) (domain.Delivery, error) {
	if s.deliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deliveryTimeout)
		defer cancel()
	}
	minutes := int(s.ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	text := fmt.Sprintf("Your verification code is %s. It expires in %d minute(s).", e.Code, minutes)

	switch e.Channel {
	case domain.ChannelEmail:
		if err := s.mailer.SendEmail(ctx, e.Identifier, emailSubject, text); err != nil {
			slog.Error("otp email delivery failed", "identifier", e.Identifier, "err", err)
			return "", fmt.Errorf("send otp email: %w", domain.ErrMailDeliveryFailed)
		}
		return domain.DeliverySent, nil
	case domain.ChannelPhone:
		if s.smsSender == nil {
			slog.Info("sms delivery disabled, otp stored without sending", "identifier", e.Identifier)
			return domain.DeliverySkipped, nil
		}
		if err := s.smsSender.SendSMS(ctx, e.Identifier, text); err != nil {
			slog.Error("otp sms delivery failed", "identifier", e.Identifier, "err", err)
			return "", fmt.Errorf("send otp sms: %w", domain.ErrSMSDeliveryFailed)
		}
		return domain.DeliverySent, nil
	}
	return "", fmt.Errorf("unknown channel %q: %w", e.Channel, domain.ErrInvalidIdentifier)
}

func (s *service) Verify(ctx context.Context, identifier, code string) (bool, error) {
	identifier, _, err := NormalizeIdentifier(identifier)
	if err != nil {
		return false, err
	}

	e, err := s.store.Get(ctx, identifier)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		slog.Error("failed to read otp", "identifier", identifier, "err", err)
		return false, fmt.Errorf("read otp: %w", domain.ErrStorageUnavailable)
	}

	if e.Expired(s.now()) {
		if err := s.store.Delete(ctx, identifier); err != nil {
			slog.Warn("failed to delete expired otp", "identifier", identifier, "err", err)
		}
		return false, nil
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(e.Code)) == 1 {
		// A concurrent Verify or a reissue may have won the race; only the
		// caller whose Consume removed the entry succeeds.
		ok, err := s.store.Consume(ctx, identifier, code)
		if err != nil {
			slog.Error("failed to consume otp", "identifier", identifier, "err", err)
			return false, fmt.Errorf("consume otp: %w", domain.ErrStorageUnavailable)
		}
		return ok, nil
	}

	attempts, err := s.store.RecordFailure(ctx, identifier)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		slog.Error("failed to record otp attempt", "identifier", identifier, "err", err)
		return false, fmt.Errorf("record otp attempt: %w", domain.ErrStorageUnavailable)
	}
	if attempts >= s.maxAttempts {
		slog.Warn("otp locked after too many attempts", "identifier", identifier, "attempts", attempts)
		if err := s.store.Delete(ctx, identifier); err != nil {
			slog.Warn("failed to delete locked otp", "identifier", identifier, "err", err)
		}
	}
	return false, nil
}

// NormalizeIdentifier trims identifier, lower-cases email addresses and
// reports which channel the identifier belongs to.
func NormalizeIdentifier(identifier string) (string, domain.Channel, error) {
	identifier = strings.TrimSpace(identifier)
	switch {
	case identifier == "":
		return "", "", fmt.Errorf("identifier required: %w", domain.ErrInvalidIdentifier)
	case strings.HasPrefix(identifier, "+"):
		if !validate.Phone(identifier) {
			return "", "", fmt.Errorf("phone must be E.164: %w", domain.ErrInvalidIdentifier)
		}
		return identifier, domain.ChannelPhone, nil
	default:
		identifier = strings.ToLower(identifier)
		if !validate.Email(identifier) {
			return "", "", fmt.Errorf("malformed email: %w", domain.ErrInvalidIdentifier)
		}
		return identifier, domain.ChannelEmail, nil
	}
}

// GenerateCode returns a 4-digit code drawn uniformly from [1000, 9999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+1000), nil
}
