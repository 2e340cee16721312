package settlement

import (
	"context"
	"testing"
	"time"

	"commerce/internal/domain"
	"commerce/pkg/errors"
	"commerce/pkg/logger"
	"commerce/pkg/validator"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// Mocks

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (domain.Settlement, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Settlement), args.Error(1)
}

func (m *MockRepository) FindByPartnerAndDate(ctx context.Context, partnerID uuid.UUID, date time.Time) (domain.Settlement, error) {
	args := m.Called(ctx, partnerID, date)
	return args.Get(0).(domain.Settlement), args.Error(1)
}

func (m *MockRepository) Create(ctx context.Context, settlement domain.Settlement) error {
	args := m.Called(ctx, settlement)
	return args.Error(0)
}

func (m *MockRepository) Update(ctx context.Context, settlement domain.Settlement) error {
	args := m.Called(ctx, settlement)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindCompletedByPartnerAndDate(ctx context.Context, partnerID uuid.UUID, date time.Time) ([]domain.Payment, error) {
	args := m.Called(ctx, partnerID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Payment), args.Error(1)
}

// Helpers

func newTestService(repo Repository, payments PaymentRepository, feeRate int) *Service {
	return NewService(repo, payments, validator.New(), logger.NewNop(), feeRate)
}

func completedPayment(t *testing.T, partnerID uuid.UUID, amount int64, now time.Time) domain.Payment {
	t.Helper()
	key, err := domain.NewIdempotencyKey(uuid.New().String(), domain.DefaultIdempotencyTTL, now)
	assert.NoError(t, err)
	p, err := domain.NewPayment(uuid.New(), uuid.New(), partnerID, domain.Won(amount), domain.CreditCard{}, key, now)
	assert.NoError(t, err)
	completed, perr := p.Complete("TXN-"+uuid.New().String()[:8], "OK", now)
	assert.Nil(t, perr)
	return completed
}

// Tests

func TestRunSettlesCompletedPayments(t *testing.T) {
	now := time.Now()
	partnerID := uuid.New()
	repo := new(MockRepository)
	payments := new(MockPaymentRepository)
	svc := newTestService(repo, payments, 10)

	batch := []domain.Payment{
		completedPayment(t, partnerID, 100000, now),
		completedPayment(t, partnerID, 200000, now),
		completedPayment(t, partnerID, 300000, now),
	}
	repo.On("FindByPartnerAndDate", mock.Anything, partnerID, mock.Anything).Return(domain.Settlement{}, errors.ErrSettlementNotFound)
	payments.On("FindCompletedByPartnerAndDate", mock.Anything, partnerID, mock.Anything).Return(batch, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	res := svc.Run(context.Background(), RunSettlementCommand{
		PartnerID: partnerID,
		Date:      now,
		Currency:  "KRW",
	})

	assert.True(t, res.IsOk())
	s := res.Value()
	assert.True(t, s.TotalAmount.Equal(domain.Won(600000)))
	assert.True(t, s.FeeAmount.Equal(domain.Won(60000)))
	assert.True(t, s.NetAmount.Equal(domain.Won(540000)))
	assert.Len(t, s.Items, 3)
	repo.AssertExpectations(t)
}

func TestRunEmptyDaySettlesToZero(t *testing.T) {
	now := time.Now()
	partnerID := uuid.New()
	repo := new(MockRepository)
	payments := new(MockPaymentRepository)
	svc := newTestService(repo, payments, 10)

	repo.On("FindByPartnerAndDate", mock.Anything, partnerID, mock.Anything).Return(domain.Settlement{}, errors.ErrSettlementNotFound)
	payments.On("FindCompletedByPartnerAndDate", mock.Anything, partnerID, mock.Anything).Return([]domain.Payment{}, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	res := svc.Run(context.Background(), RunSettlementCommand{
		PartnerID: partnerID,
		Date:      now,
		Currency:  "KRW",
	})

	assert.True(t, res.IsOk())
	assert.True(t, res.Value().TotalAmount.IsZero())
	assert.True(t, res.Value().NetAmount.IsZero())
}

func TestRunRejectsInvalidFeeRate(t *testing.T) {
	now := time.Now()
	repo := new(MockRepository)
	payments := new(MockPaymentRepository)
	svc := newTestService(repo, payments, 100)

	res := svc.Run(context.Background(), RunSettlementCommand{
		PartnerID: uuid.New(),
		Date:      now,
		Currency:  "KRW",
	})

	assert.True(t, res.IsErr())
	issue, ok := res.Err().(*domain.SettlementIssue)
	assert.True(t, ok)
	_, ok = issue.Err.(*domain.InvalidFeeRateError)
	assert.True(t, ok)
	payments.AssertNotCalled(t, "FindCompletedByPartnerAndDate")
}

func TestRunAlreadySettledDayRejected(t *testing.T) {
	now := time.Now()
	partnerID := uuid.New()
	repo := new(MockRepository)
	payments := new(MockPaymentRepository)
	svc := newTestService(repo, payments, 10)

	existing, err := domain.NewSettlement(uuid.New(), partnerID, now, domain.KRW,
		[]domain.SettlementItem{{PaymentID: uuid.New(), Amount: domain.Won(100000)}}, 10, now)
	assert.NoError(t, err)
	repo.On("FindByPartnerAndDate", mock.Anything, partnerID, mock.Anything).Return(existing, nil)

	// A retried Run must not settle the same payments twice.
	res := svc.Run(context.Background(), RunSettlementCommand{
		PartnerID: partnerID,
		Date:      now,
		Currency:  "KRW",
	})

	assert.True(t, res.IsErr())
	issue, ok := res.Err().(*domain.SettlementIssue)
	assert.True(t, ok)
	_, ok = issue.Err.(*domain.AlreadySettledError)
	assert.True(t, ok)
	payments.AssertNotCalled(t, "FindCompletedByPartnerAndDate")
	repo.AssertNotCalled(t, "Create")
}

func TestRunConcurrentDuplicateCreateRejected(t *testing.T) {
	now := time.Now()
	partnerID := uuid.New()
	repo := new(MockRepository)
	payments := new(MockPaymentRepository)
	svc := newTestService(repo, payments, 10)

	// The pre-check passes, but a concurrent Run wins the insert.
	repo.On("FindByPartnerAndDate", mock.Anything, partnerID, mock.Anything).Return(domain.Settlement{}, errors.ErrSettlementNotFound)
	payments.On("FindCompletedByPartnerAndDate", mock.Anything, partnerID, mock.Anything).Return([]domain.Payment{}, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.ErrDuplicateSettlement)

	res := svc.Run(context.Background(), RunSettlementCommand{
		PartnerID: partnerID,
		Date:      now,
		Currency:  "KRW",
	})

	assert.True(t, res.IsErr())
	issue := res.Err().(*domain.SettlementIssue)
	_, ok := issue.Err.(*domain.AlreadySettledError)
	assert.True(t, ok)
}

func TestApprovePayLifecycle(t *testing.T) {
	now := time.Now()
	repo := new(MockRepository)
	payments := new(MockPaymentRepository)
	svc := newTestService(repo, payments, 10)

	s, err := domain.NewSettlement(uuid.New(), uuid.New(), now, domain.KRW,
		[]domain.SettlementItem{{PaymentID: uuid.New(), Amount: domain.Won(100000)}}, 10, now)
	assert.NoError(t, err)

	repo.On("FindByID", mock.Anything, s.ID).Return(s, nil).Once()
	repo.On("Update", mock.Anything, mock.MatchedBy(func(s domain.Settlement) bool {
		_, approved := s.Status.(domain.SettlementApproved)
		return approved
	})).Return(nil).Once()

	approvedRes := svc.Approve(context.Background(), s.ID, "finance")
	assert.True(t, approvedRes.IsOk())

	repo.On("FindByID", mock.Anything, s.ID).Return(approvedRes.Value(), nil).Once()
	repo.On("Update", mock.Anything, mock.MatchedBy(func(s domain.Settlement) bool {
		_, paid := s.Status.(domain.SettlementPaid)
		return paid
	})).Return(nil).Once()

	paidRes := svc.Pay(context.Background(), s.ID, "PAYOUT-1")
	assert.True(t, paidRes.IsOk())
	repo.AssertExpectations(t)
}

func TestPayPendingSettlementRejected(t *testing.T) {
	now := time.Now()
	repo := new(MockRepository)
	payments := new(MockPaymentRepository)
	svc := newTestService(repo, payments, 10)

	s, err := domain.NewSettlement(uuid.New(), uuid.New(), now, domain.KRW, nil, 10, now)
	assert.NoError(t, err)

	repo.On("FindByID", mock.Anything, s.ID).Return(s, nil)

	res := svc.Pay(context.Background(), s.ID, "PAYOUT-1")
	assert.True(t, res.IsErr())

	issue := res.Err().(*domain.SettlementIssue)
	_, ok := issue.Err.(*domain.InvalidSettlementStateError)
	assert.True(t, ok)
	repo.AssertNotCalled(t, "Update")
}

func TestRejectSettlement(t *testing.T) {
	now := time.Now()
	repo := new(MockRepository)
	payments := new(MockPaymentRepository)
	svc := newTestService(repo, payments, 10)

	s, err := domain.NewSettlement(uuid.New(), uuid.New(), now, domain.KRW, nil, 10, now)
	assert.NoError(t, err)

	repo.On("FindByID", mock.Anything, s.ID).Return(s, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	res := svc.Reject(context.Background(), s.ID, "amounts disputed")
	assert.True(t, res.IsOk())

	status, ok := res.Value().Status.(domain.SettlementRejected)
	assert.True(t, ok)
	assert.Equal(t, "amounts disputed", status.Reason)
}
