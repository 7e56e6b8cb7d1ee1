package domain

import "time"

// Channel is the medium an OTP is delivered over.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

// Delivery reports what happened to an issued code.
type Delivery string

const (
	DeliverySent Delivery = "sent"
	// DeliverySkipped means the code was stored but no message went out,
	// e.g. phone codes while SMS delivery is disabled.
	DeliverySkipped Delivery = "skipped"
)

// OTPEntry is the live one-time passcode for an identifier.
// At most one entry exists per identifier; reissuing overwrites it.
type OTPEntry struct {
	Identifier string
	Channel    Channel
	Code       string
	Attempts   int // failed verifications so far
	ExpiresAt  time.Time
}

// Expired reports whether the entry is past its validity window at now.
func (e *OTPEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
