package domain

import (
	"errors"
	"time"
)

// DefaultIdempotencyTTL is how long a key guards against duplicate requests.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyKey ties a payment request to a client-chosen key so retries
// return the stored outcome instead of charging twice. A key past its expiry
// no longer identifies the earlier request.
type IdempotencyKey struct {
	Key       string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewIdempotencyKey creates a key valid for ttl from now.
func NewIdempotencyKey(key string, ttl time.Duration, now time.Time) (IdempotencyKey, error) {
	if key == "" {
		return IdempotencyKey{}, errors.New("idempotency key is required")
	}
	if ttl <= 0 {
		return IdempotencyKey{}, errors.New("idempotency ttl must be positive")
	}

	return IdempotencyKey{
		Key:       key,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

func (k IdempotencyKey) IsExpired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}
