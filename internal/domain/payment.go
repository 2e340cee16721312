package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentMethod is the closed set of supported payment instruments.
type PaymentMethod interface {
	paymentMethod()
	// MethodName returns a stable identifier used in logs and persistence.
	MethodName() string
}

type CreditCard struct {
	CardNumberMasked string
	Installments     int
}

func (CreditCard) paymentMethod()     {}
func (CreditCard) MethodName() string { return "credit_card" }

type BankTransfer struct {
	BankCode      string
	AccountMasked string
}

func (BankTransfer) paymentMethod()     {}
func (BankTransfer) MethodName() string { return "bank_transfer" }

type Points struct {
	MemberID uuid.UUID
}

func (Points) paymentMethod()     {}
func (Points) MethodName() string { return "points" }

type SimplePay struct {
	Provider string
}

func (SimplePay) paymentMethod()     {}
func (SimplePay) MethodName() string { return "simple_pay" }

// PaymentStatus is the closed set of payment states.
type PaymentStatus interface {
	paymentStatus()
}

type PaymentPending struct {
	RequestedAt time.Time
}

func (PaymentPending) paymentStatus() {}

type PaymentCompleted struct {
	CompletedAt   time.Time
	TransactionID string
	ApprovalCode  string
}

func (PaymentCompleted) paymentStatus() {}

type PaymentFailed struct {
	FailedAt time.Time
	Reason   string
}

func (PaymentFailed) paymentStatus() {}

// Payment is an immutable aggregate keyed by its idempotency key. Completed
// and Failed are terminal; a payment settles exactly once. PartnerID is
// copied from the order so settlement queries need no join.
type Payment struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	PartnerID      uuid.UUID
	Amount         Money
	Method         PaymentMethod
	Status         PaymentStatus
	IdempotencyKey IdempotencyKey
}

// NewPayment creates a pending payment for an order.
func NewPayment(id, orderID, partnerID uuid.UUID, amount Money, method PaymentMethod, key IdempotencyKey, now time.Time) (Payment, error) {
	if id == uuid.Nil {
		return Payment{}, errors.New("payment id is required")
	}
	if orderID == uuid.Nil {
		return Payment{}, errors.New("order id is required")
	}
	if partnerID == uuid.Nil {
		return Payment{}, errors.New("partner id is required")
	}
	if !amount.IsPositive() {
		return Payment{}, errors.New("payment amount must be positive")
	}
	if method == nil {
		return Payment{}, errors.New("payment method is required")
	}

	return Payment{
		ID:             id,
		OrderID:        orderID,
		PartnerID:      partnerID,
		Amount:         amount,
		Method:         method,
		Status:         PaymentPending{RequestedAt: now},
		IdempotencyKey: key,
	}, nil
}

// Complete records gateway approval. Legal only from Pending.
func (p Payment) Complete(transactionID, approvalCode string, now time.Time) (Payment, PaymentError) {
	if _, ok := p.Status.(PaymentPending); !ok {
		return Payment{}, &InvalidPaymentStateError{PaymentID: p.ID, Operation: "complete", Status: PaymentStatusName(p.Status)}
	}

	completed := p
	completed.Status = PaymentCompleted{CompletedAt: now, TransactionID: transactionID, ApprovalCode: approvalCode}
	return completed, nil
}

// Fail records gateway decline. Legal only from Pending.
func (p Payment) Fail(reason string, now time.Time) (Payment, PaymentError) {
	if _, ok := p.Status.(PaymentPending); !ok {
		return Payment{}, &InvalidPaymentStateError{PaymentID: p.ID, Operation: "fail", Status: PaymentStatusName(p.Status)}
	}

	failed := p
	failed.Status = PaymentFailed{FailedAt: now, Reason: reason}
	return failed, nil
}

// PaymentStatusName returns a stable identifier for a payment status variant.
func PaymentStatusName(status PaymentStatus) string {
	switch status.(type) {
	case PaymentPending:
		return "pending"
	case PaymentCompleted:
		return "completed"
	case PaymentFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// GatewayResult is a successful charge response from the payment gateway.
type GatewayResult struct {
	TransactionID string
	ApprovalCode  string
}

// GatewayError is the closed set of gateway charge failures. Declines are
// business outcomes recorded against the payment; unavailability is an
// infrastructure fault and must not mark the payment failed.
type GatewayError interface {
	error
	gatewayError()
	// Retryable reports whether the same charge may be attempted again.
	Retryable() bool
}

type InsufficientFundsError struct {
	Required Money
}

func (e *InsufficientFundsError) gatewayError()   {}
func (e *InsufficientFundsError) Retryable() bool { return false }
func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: %s required", e.Required)
}

type CardExpiredError struct {
	ExpiredAt string
}

func (e *CardExpiredError) gatewayError()   {}
func (e *CardExpiredError) Retryable() bool { return false }
func (e *CardExpiredError) Error() string {
	return fmt.Sprintf("card expired at %s", e.ExpiredAt)
}

type GatewayUnavailableError struct {
	Cause error
}

func (e *GatewayUnavailableError) gatewayError()   {}
func (e *GatewayUnavailableError) Retryable() bool { return true }
func (e *GatewayUnavailableError) Unwrap() error   { return e.Cause }
func (e *GatewayUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("payment gateway unavailable: %v", e.Cause)
	}
	return "payment gateway unavailable"
}

// PaymentError is the closed set of payment business failures.
type PaymentError interface {
	error
	paymentError()
}

type PaymentNotFoundError struct {
	PaymentID uuid.UUID
}

func (e *PaymentNotFoundError) paymentError() {}
func (e *PaymentNotFoundError) Error() string {
	return fmt.Sprintf("payment not found: %s", e.PaymentID)
}

type InvalidPaymentStateError struct {
	PaymentID uuid.UUID
	Operation string
	Status    string
}

func (e *InvalidPaymentStateError) paymentError() {}
func (e *InvalidPaymentStateError) Error() string {
	return fmt.Sprintf("payment %s: cannot %s from status %s", e.PaymentID, e.Operation, e.Status)
}

type PaymentDeclinedError struct {
	PaymentID uuid.UUID
	Reason    string
}

func (e *PaymentDeclinedError) paymentError() {}
func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment %s declined: %s", e.PaymentID, e.Reason)
}

type GatewayFailureError struct {
	Cause GatewayError
}

func (e *GatewayFailureError) paymentError() {}
func (e *GatewayFailureError) Unwrap() error { return e.Cause }
func (e *GatewayFailureError) Error() string {
	return fmt.Sprintf("payment gateway failure: %v", e.Cause)
}

type DuplicateRequestError struct {
	Key string
}

func (e *DuplicateRequestError) paymentError() {}
func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("duplicate payment request in flight: %s", e.Key)
}

// PaymentLookupError reports a storage fault while resolving an idempotency
// key. The stored outcome is unknown, so the charge must not proceed.
type PaymentLookupError struct {
	Key   string
	Cause error
}

func (e *PaymentLookupError) paymentError() {}
func (e *PaymentLookupError) Unwrap() error { return e.Cause }
func (e *PaymentLookupError) Error() string {
	return fmt.Sprintf("failed to look up payment by key %s: %v", e.Key, e.Cause)
}
