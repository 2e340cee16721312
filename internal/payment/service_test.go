package payment

import (
	"context"
	"testing"
	"time"

	"commerce/internal/domain"
	"commerce/internal/repository/memory"
	"commerce/pkg/errors"
	"commerce/pkg/logger"
	"commerce/pkg/validator"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// Mocks

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Charge(ctx context.Context, payment domain.Payment) (domain.GatewayResult, domain.GatewayError) {
	args := m.Called(ctx, payment)
	if args.Get(1) == nil {
		return args.Get(0).(domain.GatewayResult), nil
	}
	return domain.GatewayResult{}, args.Get(1).(domain.GatewayError)
}

// Helpers

func newTestService(t *testing.T, gateway Gateway) (*Service, *memory.OrderRepository, *memory.PaymentRepository) {
	t.Helper()
	orders := memory.NewOrderRepository()
	payments := memory.NewPaymentRepository()
	svc := NewService(payments, orders, gateway, memory.NewLockStore(), validator.New(), logger.NewNop(), domain.DefaultIdempotencyTTL)
	return svc, orders, payments
}

func storeUnpaidOrder(t *testing.T, orders *memory.OrderRepository, amount int64) domain.Order {
	t.Helper()
	now := time.Now()
	o, err := domain.NewOrder(uuid.New(), uuid.New(), uuid.New(), domain.Won(amount), now.Add(time.Hour), now)
	assert.NoError(t, err)
	assert.NoError(t, orders.Create(context.Background(), o))
	return o
}

// Tests

func TestProcessChargesOnceForDuplicateKey(t *testing.T) {
	gateway := new(MockGateway)
	svc, orders, _ := newTestService(t, gateway)
	o := storeUnpaidOrder(t, orders, 10000)

	gateway.On("Charge", mock.Anything, mock.Anything).
		Return(domain.GatewayResult{TransactionID: "TXN-1", ApprovalCode: "OK"}, nil).
		Once()

	cmd := ProcessPaymentCommand{
		OrderID:        o.ID,
		Method:         domain.CreditCard{CardNumberMasked: "****-1234"},
		IdempotencyKey: "checkout-1",
	}

	first := svc.Process(context.Background(), cmd)
	assert.True(t, first.IsOk())

	second := svc.Process(context.Background(), cmd)
	assert.True(t, second.IsOk())

	// Same payment, one charge.
	assert.Equal(t, first.Value().ID, second.Value().ID)
	gateway.AssertNumberOfCalls(t, "Charge", 1)

	status, ok := second.Value().Status.(domain.PaymentCompleted)
	assert.True(t, ok)
	assert.Equal(t, "TXN-1", status.TransactionID)
}

func TestProcessMarksOrderPaid(t *testing.T) {
	gateway := new(MockGateway)
	svc, orders, _ := newTestService(t, gateway)
	o := storeUnpaidOrder(t, orders, 10000)

	gateway.On("Charge", mock.Anything, mock.Anything).
		Return(domain.GatewayResult{TransactionID: "TXN-1", ApprovalCode: "OK"}, nil)

	res := svc.Process(context.Background(), ProcessPaymentCommand{
		OrderID:        o.ID,
		Method:         domain.SimplePay{Provider: "kakaopay"},
		IdempotencyKey: "checkout-1",
	})
	assert.True(t, res.IsOk())

	stored, err := orders.FindByID(context.Background(), o.ID)
	assert.NoError(t, err)
	paid, ok := stored.Status.(domain.OrderPaid)
	assert.True(t, ok)
	assert.Equal(t, "TXN-1", paid.TransactionID)
}

func TestProcessDeclineReplaysIdentically(t *testing.T) {
	gateway := new(MockGateway)
	svc, orders, _ := newTestService(t, gateway)
	o := storeUnpaidOrder(t, orders, 10000)

	gateway.On("Charge", mock.Anything, mock.Anything).
		Return(domain.GatewayResult{}, &domain.InsufficientFundsError{Required: domain.Won(10000)}).
		Once()

	cmd := ProcessPaymentCommand{
		OrderID:        o.ID,
		Method:         domain.CreditCard{CardNumberMasked: "****-1234"},
		IdempotencyKey: "checkout-1",
	}

	first := svc.Process(context.Background(), cmd)
	assert.True(t, first.IsErr())
	firstIssue, ok := first.Err().(*domain.PaymentIssue)
	assert.True(t, ok)
	firstDecline, ok := firstIssue.Err.(*domain.PaymentDeclinedError)
	assert.True(t, ok)

	// The retry replays the stored decline without touching the gateway.
	second := svc.Process(context.Background(), cmd)
	assert.True(t, second.IsErr())
	secondIssue := second.Err().(*domain.PaymentIssue)
	secondDecline, ok := secondIssue.Err.(*domain.PaymentDeclinedError)
	assert.True(t, ok)

	assert.Equal(t, firstDecline.PaymentID, secondDecline.PaymentID)
	assert.Equal(t, firstDecline.Reason, secondDecline.Reason)
	gateway.AssertNumberOfCalls(t, "Charge", 1)
}

func TestProcessGatewayOutageKeepsPaymentRetryable(t *testing.T) {
	gateway := new(MockGateway)
	svc, orders, payments := newTestService(t, gateway)
	o := storeUnpaidOrder(t, orders, 10000)

	gateway.On("Charge", mock.Anything, mock.Anything).
		Return(domain.GatewayResult{}, &domain.GatewayUnavailableError{}).
		Once()
	gateway.On("Charge", mock.Anything, mock.Anything).
		Return(domain.GatewayResult{TransactionID: "TXN-1", ApprovalCode: "OK"}, nil).
		Once()

	cmd := ProcessPaymentCommand{
		OrderID:        o.ID,
		Method:         domain.CreditCard{CardNumberMasked: "****-1234"},
		IdempotencyKey: "checkout-1",
	}

	first := svc.Process(context.Background(), cmd)
	assert.True(t, first.IsErr())
	issue := first.Err().(*domain.PaymentIssue)
	_, ok := issue.Err.(*domain.GatewayFailureError)
	assert.True(t, ok)

	// The outage never marks the payment failed.
	stored, err := payments.FindByKey(context.Background(), "checkout-1")
	assert.NoError(t, err)
	_, pending := stored.Status.(domain.PaymentPending)
	assert.True(t, pending)

	// Once the gateway recovers, the same key resumes the stored payment.
	second := svc.Process(context.Background(), cmd)
	assert.True(t, second.IsOk())
	assert.Equal(t, stored.ID, second.Value().ID)
	gateway.AssertNumberOfCalls(t, "Charge", 2)
}

func TestProcessExpiredKeyStartsFresh(t *testing.T) {
	gateway := new(MockGateway)
	svc, orders, payments := newTestService(t, gateway)

	start := time.Now()
	o, err := domain.NewOrder(uuid.New(), uuid.New(), uuid.New(), domain.Won(10000), start.Add(72*time.Hour), start)
	assert.NoError(t, err)
	assert.NoError(t, orders.Create(context.Background(), o))

	gateway.On("Charge", mock.Anything, mock.Anything).
		Return(domain.GatewayResult{}, &domain.InsufficientFundsError{Required: domain.Won(10000)}).
		Once()
	gateway.On("Charge", mock.Anything, mock.Anything).
		Return(domain.GatewayResult{TransactionID: "TXN-2", ApprovalCode: "OK"}, nil).
		Once()

	cmd := ProcessPaymentCommand{
		OrderID:        o.ID,
		Method:         domain.CreditCard{CardNumberMasked: "****-1234"},
		IdempotencyKey: "checkout-1",
	}

	svc.now = func() time.Time { return start }
	first := svc.Process(context.Background(), cmd)
	assert.True(t, first.IsErr())

	// Same key a day later is a new request, not a replay of the decline,
	// so a fresh charge happens against the still-unpaid order.
	svc.now = func() time.Time { return start.Add(25 * time.Hour) }
	second := svc.Process(context.Background(), cmd)
	assert.True(t, second.IsOk())
	gateway.AssertNumberOfCalls(t, "Charge", 2)

	// The fresh payment replaced the declined one under the key.
	stored, err := payments.FindByKey(context.Background(), "checkout-1")
	assert.NoError(t, err)
	assert.Equal(t, second.Value().ID, stored.ID)
}

func TestProcessCancelledOrderNeverCharges(t *testing.T) {
	gateway := new(MockGateway)
	svc, orders, payments := newTestService(t, gateway)
	now := time.Now()

	o := storeUnpaidOrder(t, orders, 10000)
	cancelled, oerr := o.Cancel(domain.CancelReasonOutOfStock, 24*time.Hour, now)
	assert.Nil(t, oerr)
	assert.NoError(t, orders.Update(context.Background(), cancelled))

	res := svc.Process(context.Background(), ProcessPaymentCommand{
		OrderID:        o.ID,
		Method:         domain.CreditCard{CardNumberMasked: "****-1234"},
		IdempotencyKey: "checkout-1",
	})

	assert.True(t, res.IsErr())
	issue, ok := res.Err().(*domain.OrderIssue)
	assert.True(t, ok)
	_, ok = issue.Err.(*domain.InvalidOrderStateError)
	assert.True(t, ok)
	gateway.AssertNotCalled(t, "Charge")

	// Nothing is recorded for an order that cannot accept a payment.
	_, err := payments.FindByKey(context.Background(), "checkout-1")
	assert.ErrorIs(t, err, errors.ErrPaymentNotFound)
}

func TestProcessPaidOrderWithNewKeyRejected(t *testing.T) {
	gateway := new(MockGateway)
	svc, orders, _ := newTestService(t, gateway)
	o := storeUnpaidOrder(t, orders, 10000)

	gateway.On("Charge", mock.Anything, mock.Anything).
		Return(domain.GatewayResult{TransactionID: "TXN-1", ApprovalCode: "OK"}, nil).
		Once()

	first := svc.Process(context.Background(), ProcessPaymentCommand{
		OrderID:        o.ID,
		Method:         domain.CreditCard{CardNumberMasked: "****-1234"},
		IdempotencyKey: "checkout-1",
	})
	assert.True(t, first.IsOk())

	// A different key does not bypass the order's state: the paid order
	// rejects a second charge before the gateway is touched.
	second := svc.Process(context.Background(), ProcessPaymentCommand{
		OrderID:        o.ID,
		Method:         domain.CreditCard{CardNumberMasked: "****-5678"},
		IdempotencyKey: "checkout-2",
	})
	assert.True(t, second.IsErr())
	issue, ok := second.Err().(*domain.OrderIssue)
	assert.True(t, ok)
	_, ok = issue.Err.(*domain.InvalidOrderStateError)
	assert.True(t, ok)
	gateway.AssertNumberOfCalls(t, "Charge", 1)
}

type faultyKeyRepo struct {
	*memory.PaymentRepository
	err error
}

func (r *faultyKeyRepo) FindByKey(ctx context.Context, key string) (domain.Payment, error) {
	return domain.Payment{}, r.err
}

func TestProcessKeyLookupFaultBlocksCharge(t *testing.T) {
	gateway := new(MockGateway)
	orders := memory.NewOrderRepository()
	repo := &faultyKeyRepo{PaymentRepository: memory.NewPaymentRepository(), err: assert.AnError}
	svc := NewService(repo, orders, gateway, memory.NewLockStore(), validator.New(), logger.NewNop(), domain.DefaultIdempotencyTTL)
	o := storeUnpaidOrder(t, orders, 10000)

	res := svc.Process(context.Background(), ProcessPaymentCommand{
		OrderID:        o.ID,
		Method:         domain.CreditCard{CardNumberMasked: "****-1234"},
		IdempotencyKey: "checkout-1",
	})

	// With the stored outcome unknown, charging could duplicate a payment.
	assert.True(t, res.IsErr())
	issue, ok := res.Err().(*domain.PaymentIssue)
	assert.True(t, ok)
	lookup, ok := issue.Err.(*domain.PaymentLookupError)
	assert.True(t, ok)
	assert.ErrorIs(t, lookup, assert.AnError)
	gateway.AssertNotCalled(t, "Charge")
}

func TestProcessValidatesCommand(t *testing.T) {
	gateway := new(MockGateway)
	svc, _, _ := newTestService(t, gateway)

	res := svc.Process(context.Background(), ProcessPaymentCommand{})
	assert.True(t, res.IsErr())

	issue, ok := res.Err().(*domain.ValidationIssue)
	assert.True(t, ok)
	assert.NotEmpty(t, issue.Fields)
	gateway.AssertNotCalled(t, "Charge")
}

func TestProcessUnknownOrder(t *testing.T) {
	gateway := new(MockGateway)
	svc, _, _ := newTestService(t, gateway)

	res := svc.Process(context.Background(), ProcessPaymentCommand{
		OrderID:        uuid.New(),
		Method:         domain.CreditCard{},
		IdempotencyKey: "checkout-1",
	})
	assert.True(t, res.IsErr())

	issue, ok := res.Err().(*domain.OrderIssue)
	assert.True(t, ok)
	_, ok = issue.Err.(*domain.OrderNotFoundError)
	assert.True(t, ok)
}
