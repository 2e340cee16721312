package domain

import (
	"fmt"
	"sort"
	"strings"
)

// UseCaseError is the closed set of failures an orchestrated operation can
// produce. Each variant wraps the typed error of the module it came from, so
// callers switch once on the variant and then on the inner type.
type UseCaseError interface {
	error
	useCaseError()
}

type CouponIssue struct {
	Err CouponError
}

func (e *CouponIssue) useCaseError() {}
func (e *CouponIssue) Unwrap() error { return e.Err }
func (e *CouponIssue) Error() string { return e.Err.Error() }

type OrderIssue struct {
	Err OrderError
}

func (e *OrderIssue) useCaseError() {}
func (e *OrderIssue) Unwrap() error { return e.Err }
func (e *OrderIssue) Error() string { return e.Err.Error() }

type PaymentIssue struct {
	Err PaymentError
}

func (e *PaymentIssue) useCaseError() {}
func (e *PaymentIssue) Unwrap() error { return e.Err }
func (e *PaymentIssue) Error() string { return e.Err.Error() }

type SettlementIssue struct {
	Err SettlementError
}

func (e *SettlementIssue) useCaseError() {}
func (e *SettlementIssue) Unwrap() error { return e.Err }
func (e *SettlementIssue) Error() string { return e.Err.Error() }

// ValidationIssue reports field-level input problems before any domain rule
// runs.
type ValidationIssue struct {
	Fields map[string]string
}

func (e *ValidationIssue) useCaseError() {}
func (e *ValidationIssue) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}
