package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func unpaidOrder(t *testing.T, total Money, now time.Time) Order {
	t.Helper()
	o, err := NewOrder(uuid.New(), uuid.New(), uuid.New(), total, now.Add(time.Hour), now)
	assert.NoError(t, err)
	return o
}

func TestNewOrder(t *testing.T) {
	now := time.Now()

	o := unpaidOrder(t, Won(10000), now)
	_, ok := o.Status.(OrderUnpaid)
	assert.True(t, ok)

	_, err := NewOrder(uuid.Nil, uuid.New(), uuid.New(), Won(10000), now.Add(time.Hour), now)
	assert.Error(t, err)

	_, err = NewOrder(uuid.New(), uuid.New(), uuid.New(), Won(10000), now.Add(-time.Hour), now)
	assert.Error(t, err)
}

func TestPay(t *testing.T) {
	now := time.Now()
	o := unpaidOrder(t, Won(10000), now)

	paid, oerr := o.Pay(CreditCard{CardNumberMasked: "****-1234"}, "TXN-1", now)
	assert.Nil(t, oerr)

	status, ok := paid.Status.(OrderPaid)
	assert.True(t, ok)
	assert.Equal(t, "TXN-1", status.TransactionID)

	// Paying twice is an invalid transition.
	_, oerr = paid.Pay(CreditCard{}, "TXN-2", now)
	var invalid *InvalidOrderStateError
	assert.ErrorAs(t, oerr, &invalid)
}

func TestPayAfterDeadline(t *testing.T) {
	now := time.Now()
	o := unpaidOrder(t, Won(10000), now)

	_, oerr := o.Pay(CreditCard{}, "TXN-1", now.Add(2*time.Hour))
	var exceeded *PaymentDeadlineExceededError
	assert.ErrorAs(t, oerr, &exceeded)
}

func TestEnsurePayable(t *testing.T) {
	now := time.Now()
	o := unpaidOrder(t, Won(10000), now)
	assert.Nil(t, o.EnsurePayable(now))

	// Past the deadline nothing may be charged.
	var exceeded *PaymentDeadlineExceededError
	assert.ErrorAs(t, o.EnsurePayable(now.Add(2*time.Hour)), &exceeded)

	var invalid *InvalidOrderStateError
	paid, _ := o.Pay(CreditCard{}, "TXN-1", now)
	assert.ErrorAs(t, paid.EnsurePayable(now), &invalid)

	cancelled, _ := o.Cancel(CancelReasonOutOfStock, 24*time.Hour, now)
	assert.ErrorAs(t, cancelled.EnsurePayable(now), &invalid)
}

func TestCancelUnpaidOrder(t *testing.T) {
	now := time.Now()
	o := unpaidOrder(t, Won(10000), now)

	cancelled, oerr := o.Cancel(CancelReasonCustomerRequest, 24*time.Hour, now)
	assert.Nil(t, oerr)

	status, ok := cancelled.Status.(OrderCancelled)
	assert.True(t, ok)
	assert.Nil(t, status.Refund)
}

func TestCancelUnpaidOrderPastDeadline(t *testing.T) {
	now := time.Now()
	o := unpaidOrder(t, Won(10000), now)

	// An unpaid order past its payment deadline still cancels; there is
	// nothing to refund because nothing was charged.
	afterDeadline := now.Add(2 * time.Hour)
	cancelled, oerr := o.Cancel(CancelReasonCustomerRequest, 24*time.Hour, afterDeadline)
	assert.Nil(t, oerr)

	status, ok := cancelled.Status.(OrderCancelled)
	assert.True(t, ok)
	assert.Nil(t, status.Refund)
}

func TestCancelPaidOrderWithinWindow(t *testing.T) {
	now := time.Now()
	o := unpaidOrder(t, Won(10000), now)
	paid, _ := o.Pay(CreditCard{}, "TXN-1", now)

	cancelled, oerr := paid.Cancel(CancelReasonCustomerRequest, 24*time.Hour, now.Add(time.Hour))
	assert.Nil(t, oerr)

	status := cancelled.Status.(OrderCancelled)
	assert.NotNil(t, status.Refund)
	assert.Equal(t, "TXN-1", status.Refund.TransactionID)
	assert.True(t, status.Refund.Amount.Equal(Won(10000)))
}

func TestCancelPaidOrderAfterWindow(t *testing.T) {
	now := time.Now()
	o := unpaidOrder(t, Won(10000), now)
	paid, _ := o.Pay(CreditCard{}, "TXN-1", now)

	_, oerr := paid.Cancel(CancelReasonCustomerRequest, 24*time.Hour, now.Add(25*time.Hour))
	var cannot *CannotCancelError
	assert.ErrorAs(t, oerr, &cannot)
}

func TestCancelShippingOrDeliveredOrder(t *testing.T) {
	now := time.Now()
	o := unpaidOrder(t, Won(10000), now)
	paid, _ := o.Pay(CreditCard{}, "TXN-1", now)
	shipping, oerr := paid.StartShipping("TRACK-1", now)
	assert.Nil(t, oerr)

	_, oerr = shipping.Cancel(CancelReasonCustomerRequest, 24*time.Hour, now)
	var cannot *CannotCancelError
	assert.ErrorAs(t, oerr, &cannot)

	delivered, oerr := shipping.CompleteDelivery(now)
	assert.Nil(t, oerr)
	_, oerr = delivered.Cancel(CancelReasonCustomerRequest, 24*time.Hour, now)
	assert.ErrorAs(t, oerr, &cannot)
}

func TestCancelCancelledOrder(t *testing.T) {
	now := time.Now()
	o := unpaidOrder(t, Won(10000), now)
	cancelled, _ := o.Cancel(CancelReasonOutOfStock, 24*time.Hour, now)

	_, oerr := cancelled.Cancel(CancelReasonCustomerRequest, 24*time.Hour, now)
	var cannot *CannotCancelError
	assert.ErrorAs(t, oerr, &cannot)
}

func TestShippingTransitions(t *testing.T) {
	now := time.Now()
	o := unpaidOrder(t, Won(10000), now)

	// Cannot ship an unpaid order.
	_, oerr := o.StartShipping("TRACK-1", now)
	var invalid *InvalidOrderStateError
	assert.ErrorAs(t, oerr, &invalid)

	paid, _ := o.Pay(BankTransfer{BankCode: "004"}, "TXN-1", now)
	shipping, oerr := paid.StartShipping("TRACK-1", now)
	assert.Nil(t, oerr)

	status := shipping.Status.(OrderShipping)
	assert.Equal(t, "TRACK-1", status.TrackingNumber)

	delivered, oerr := shipping.CompleteDelivery(now)
	assert.Nil(t, oerr)
	_, ok := delivered.Status.(OrderDelivered)
	assert.True(t, ok)

	// Cannot deliver twice.
	_, oerr = delivered.CompleteDelivery(now)
	assert.ErrorAs(t, oerr, &invalid)
}

func TestCanCancel(t *testing.T) {
	now := time.Now()
	o := unpaidOrder(t, Won(10000), now)
	assert.True(t, o.CanCancel(24*time.Hour, now))

	paid, _ := o.Pay(CreditCard{}, "TXN-1", now)
	assert.True(t, paid.CanCancel(24*time.Hour, now.Add(time.Hour)))
	assert.False(t, paid.CanCancel(24*time.Hour, now.Add(25*time.Hour)))

	shipping, _ := paid.StartShipping("TRACK-1", now)
	assert.False(t, shipping.CanCancel(24*time.Hour, now))
}

func TestToCancelReason(t *testing.T) {
	reason, err := ToCancelReason("customer_request")
	assert.NoError(t, err)
	assert.Equal(t, CancelReasonCustomerRequest, reason)

	_, err = ToCancelReason("changed_my_mind")
	assert.Error(t, err)
}
