package domain

import "errors"

// Client-side failures. Handlers echo the wrapped message.
var (
	ErrBadRequest        = errors.New("bad request")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrTooManyRequests   = errors.New("too many requests")
)

// Infrastructure failures. Handlers report these as "service unavailable"
// and never echo the wrapped provider error.
var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrMailDeliveryFailed = errors.New("mail delivery failed")
	ErrSMSDeliveryFailed  = errors.New("sms delivery failed")
)

// IsUnavailable reports whether err stems from a backing service outage.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrMailDeliveryFailed) ||
		errors.Is(err, ErrSMSDeliveryFailed)
}
