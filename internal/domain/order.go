package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type CancelReason string

// remember to add new reasons to the validCancelReasons map
const (
	CancelReasonCustomerRequest CancelReason = "customer_request"
	CancelReasonOutOfStock      CancelReason = "out_of_stock"
	CancelReasonPaymentFailed   CancelReason = "payment_failed"
	CancelReasonFraudSuspected  CancelReason = "fraud_suspected"
)

var validCancelReasons = map[CancelReason]struct{}{
	CancelReasonCustomerRequest: {},
	CancelReasonOutOfStock:      {},
	CancelReasonPaymentFailed:   {},
	CancelReasonFraudSuspected:  {},
}

func ToCancelReason(s string) (CancelReason, error) {
	reason := CancelReason(s)
	if _, ok := validCancelReasons[reason]; ok {
		return reason, nil
	}

	return "", errors.New("invalid cancel reason")
}

// RefundInfo records the obligation created by cancelling a paid order.
// The entity never performs the refund itself; the orchestrator carries this
// to the payment gateway.
type RefundInfo struct {
	TransactionID string
	Amount        Money
	RequestedAt   time.Time
}

// OrderStatus is the closed set of order states.
type OrderStatus interface {
	orderStatus()
}

type OrderUnpaid struct {
	CreatedAt       time.Time
	PaymentDeadline time.Time
}

func (OrderUnpaid) orderStatus() {}

// IsExpired is a pure function of the deadline, not a stored flag.
func (s OrderUnpaid) IsExpired(now time.Time) bool {
	return now.After(s.PaymentDeadline)
}

type OrderPaid struct {
	PaidAt        time.Time
	Method        PaymentMethod
	TransactionID string
}

func (OrderPaid) orderStatus() {}

type OrderShipping struct {
	PaidAt         time.Time
	TrackingNumber string
	ShippedAt      time.Time
}

func (OrderShipping) orderStatus() {}

type OrderDelivered struct {
	PaidAt         time.Time
	TrackingNumber string
	DeliveredAt    time.Time
}

func (OrderDelivered) orderStatus() {}

type OrderCancelled struct {
	CancelledAt time.Time
	Reason      CancelReason
	// Refund is set only when a captured payment existed at cancel time.
	Refund *RefundInfo
}

func (OrderCancelled) orderStatus() {}

// Order is an immutable aggregate; transitions return new values.
// PartnerID identifies the merchant whose settlement the eventual payment
// rolls into.
type Order struct {
	ID          uuid.UUID
	CustomerID  uuid.UUID
	PartnerID   uuid.UUID
	TotalAmount Money
	Status      OrderStatus
}

// NewOrder creates an order awaiting payment.
func NewOrder(id, customerID, partnerID uuid.UUID, totalAmount Money, paymentDeadline, now time.Time) (Order, error) {
	if id == uuid.Nil {
		return Order{}, errors.New("order id is required")
	}
	if customerID == uuid.Nil {
		return Order{}, errors.New("customer id is required")
	}
	if partnerID == uuid.Nil {
		return Order{}, errors.New("partner id is required")
	}
	if !paymentDeadline.After(now) {
		return Order{}, errors.New("payment deadline must be in the future")
	}

	return Order{
		ID:          id,
		CustomerID:  customerID,
		PartnerID:   partnerID,
		TotalAmount: totalAmount,
		Status:      OrderUnpaid{CreatedAt: now, PaymentDeadline: paymentDeadline},
	}, nil
}

// EnsurePayable reports why a payment cannot be captured for the order
// right now. Orders accept payment only from Unpaid, before the deadline.
// Orchestrators must pass this check before charging a gateway; money
// captured for an unpayable order has no order to land on.
func (o Order) EnsurePayable(now time.Time) OrderError {
	unpaid, ok := o.Status.(OrderUnpaid)
	if !ok {
		return &InvalidOrderStateError{OrderID: o.ID, Operation: "pay", Status: StatusName(o.Status)}
	}
	if unpaid.IsExpired(now) {
		return &PaymentDeadlineExceededError{OrderID: o.ID, Deadline: unpaid.PaymentDeadline}
	}
	return nil
}

// Pay records a captured payment. Legal only from Unpaid, before the
// payment deadline.
func (o Order) Pay(method PaymentMethod, transactionID string, now time.Time) (Order, OrderError) {
	if oerr := o.EnsurePayable(now); oerr != nil {
		return Order{}, oerr
	}

	paid := o
	paid.Status = OrderPaid{PaidAt: now, Method: method, TransactionID: transactionID}
	return paid, nil
}

// StartShipping is legal only from Paid.
func (o Order) StartShipping(trackingNumber string, now time.Time) (Order, OrderError) {
	paid, ok := o.Status.(OrderPaid)
	if !ok {
		return Order{}, &InvalidOrderStateError{OrderID: o.ID, Operation: "start shipping", Status: StatusName(o.Status)}
	}

	shipping := o
	shipping.Status = OrderShipping{PaidAt: paid.PaidAt, TrackingNumber: trackingNumber, ShippedAt: now}
	return shipping, nil
}

// CompleteDelivery is legal only from Shipping.
func (o Order) CompleteDelivery(now time.Time) (Order, OrderError) {
	shipping, ok := o.Status.(OrderShipping)
	if !ok {
		return Order{}, &InvalidOrderStateError{OrderID: o.ID, Operation: "complete delivery", Status: StatusName(o.Status)}
	}

	delivered := o
	delivered.Status = OrderDelivered{PaidAt: shipping.PaidAt, TrackingNumber: shipping.TrackingNumber, DeliveredAt: now}
	return delivered, nil
}

// Cancel transitions the order to Cancelled. Unpaid orders cancel without a
// refund, even past their payment deadline. Paid orders cancel within
// cancelWindow of payment and record a refund obligation. Shipping and
// delivered orders follow the return/complaint path instead, and an already
// cancelled order cannot cancel again.
func (o Order) Cancel(reason CancelReason, cancelWindow time.Duration, now time.Time) (Order, OrderError) {
	if _, ok := validCancelReasons[reason]; !ok {
		return Order{}, &CannotCancelError{OrderID: o.ID, Reason: "invalid cancel reason"}
	}

	switch status := o.Status.(type) {
	case OrderUnpaid:
		cancelled := o
		cancelled.Status = OrderCancelled{CancelledAt: now, Reason: reason}
		return cancelled, nil

	case OrderPaid:
		if now.After(status.PaidAt.Add(cancelWindow)) {
			return Order{}, &CannotCancelError{OrderID: o.ID, Reason: "cancel window after payment has passed"}
		}
		refund := &RefundInfo{
			TransactionID: status.TransactionID,
			Amount:        o.TotalAmount,
			RequestedAt:   now,
		}
		cancelled := o
		cancelled.Status = OrderCancelled{CancelledAt: now, Reason: reason, Refund: refund}
		return cancelled, nil

	case OrderShipping:
		return Order{}, &CannotCancelError{OrderID: o.ID, Reason: "order is shipping"}
	case OrderDelivered:
		return Order{}, &CannotCancelError{OrderID: o.ID, Reason: "order is delivered"}
	case OrderCancelled:
		return Order{}, &CannotCancelError{OrderID: o.ID, Reason: "order is already cancelled"}
	default:
		return Order{}, &CannotCancelError{OrderID: o.ID, Reason: "unknown order state"}
	}
}

// CanCancel reports whether Cancel would succeed right now.
func (o Order) CanCancel(cancelWindow time.Duration, now time.Time) bool {
	switch status := o.Status.(type) {
	case OrderUnpaid:
		return true
	case OrderPaid:
		return !now.After(status.PaidAt.Add(cancelWindow))
	default:
		return false
	}
}

// StatusName returns a stable identifier for a status variant, used in
// errors, logs and persistence.
func StatusName(status OrderStatus) string {
	switch status.(type) {
	case OrderUnpaid:
		return "unpaid"
	case OrderPaid:
		return "paid"
	case OrderShipping:
		return "shipping"
	case OrderDelivered:
		return "delivered"
	case OrderCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// OrderError is the closed set of order business failures.
type OrderError interface {
	error
	orderError()
}

type OrderNotFoundError struct {
	OrderID uuid.UUID
}

func (e *OrderNotFoundError) orderError() {}
func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order not found: %s", e.OrderID)
}

type CannotCancelError struct {
	OrderID uuid.UUID
	Reason  string
}

func (e *CannotCancelError) orderError() {}
func (e *CannotCancelError) Error() string {
	return fmt.Sprintf("order %s cannot be cancelled: %s", e.OrderID, e.Reason)
}

type PaymentDeadlineExceededError struct {
	OrderID  uuid.UUID
	Deadline time.Time
}

func (e *PaymentDeadlineExceededError) orderError() {}
func (e *PaymentDeadlineExceededError) Error() string {
	return fmt.Sprintf("order %s payment deadline exceeded at %s", e.OrderID, e.Deadline.Format(time.RFC3339))
}

type InvalidOrderStateError struct {
	OrderID   uuid.UUID
	Operation string
	Status    string
}

func (e *InvalidOrderStateError) orderError() {}
func (e *InvalidOrderStateError) Error() string {
	return fmt.Sprintf("order %s: cannot %s from status %s", e.OrderID, e.Operation, e.Status)
}
