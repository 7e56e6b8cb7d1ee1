package dynamo

// Attribute names shared by the item structs, key builders and expressions.
const (
	fieldIdentifier  = "identifier"
	fieldCode        = "code"
	fieldAttempts    = "attempts"
	fieldExpiresAt   = "expires_at"
	fieldBucket      = "bucket"
	fieldStorageKey  = "storage_key"
	fieldStatus      = "status"
	fieldConfirmedAt = "confirmed_at"
)
