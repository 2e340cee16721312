// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrSettlementNotFound = errors.New("settlement not found")

	// Idempotency errors
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already exists")
	ErrDuplicateRequest        = errors.New("duplicate request in flight")
	ErrDuplicateSettlement     = errors.New("settlement already exists for partner and date")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
