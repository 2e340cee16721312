// ==============================================================================
// SETTLEMENT SERVICE - internal/settlement/service.go
// ==============================================================================
package settlement

import (
	"context"
	"errors"
	"time"

	"commerce/internal/domain"
	pkgerrors "commerce/pkg/errors"
	"commerce/pkg/logger"
	"commerce/pkg/result"
	"commerce/pkg/validator"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Service struct {
	repo      Repository
	payments  PaymentRepository
	validator *validator.Validator
	logger    logger.Logger
	feeRate   int
	now       func() time.Time
}

func NewService(repo Repository, payments PaymentRepository, v *validator.Validator, log logger.Logger, feeRate int) *Service {
	return &Service{
		repo:      repo,
		payments:  payments,
		validator: v,
		logger:    log,
		feeRate:   feeRate,
		now:       time.Now,
	}
}

// RunSettlementCommand builds a partner's settlement for one day.
type RunSettlementCommand struct {
	PartnerID uuid.UUID `validate:"required"`
	Date      time.Time `validate:"required"`
	Currency  string    `validate:"required,currency"`
}

// Run collects the partner's completed payments for the date and creates a
// pending settlement over them. A day with no completed payments still
// settles, to zero amounts.
func (s *Service) Run(ctx context.Context, cmd RunSettlementCommand) result.Result[domain.Settlement, domain.UseCaseError] {
	if fields := s.validator.ValidateStructured(cmd); fields != nil {
		return result.Err[domain.Settlement, domain.UseCaseError](&domain.ValidationIssue{Fields: fields})
	}

	currency, err := domain.ToCurrency(cmd.Currency)
	if err != nil {
		return result.Err[domain.Settlement, domain.UseCaseError](&domain.ValidationIssue{
			Fields: map[string]string{"Currency": err.Error()},
		})
	}

	if s.feeRate >= 100 || s.feeRate < 0 {
		return result.Err[domain.Settlement, domain.UseCaseError](&domain.SettlementIssue{
			Err: &domain.InvalidFeeRateError{FeeRate: s.feeRate},
		})
	}

	// A retried Run must not settle the same payments twice.
	if _, err := s.repo.FindByPartnerAndDate(ctx, cmd.PartnerID, cmd.Date); err == nil {
		return result.Err[domain.Settlement, domain.UseCaseError](&domain.SettlementIssue{
			Err: &domain.AlreadySettledError{PartnerID: cmd.PartnerID, SettlementDate: cmd.Date},
		})
	} else if !errors.Is(err, pkgerrors.ErrSettlementNotFound) {
		s.logger.Error("Failed to check for an existing settlement", map[string]interface{}{
			"partner_id": cmd.PartnerID,
			"date":       cmd.Date.Format("2006-01-02"),
			"error":      err.Error(),
		})
		return result.Err[domain.Settlement, domain.UseCaseError](&domain.SettlementIssue{
			Err: &domain.SettlementNotFoundError{SettlementID: uuid.Nil},
		})
	}

	completed, err := s.payments.FindCompletedByPartnerAndDate(ctx, cmd.PartnerID, cmd.Date)
	if err != nil {
		s.logger.Error("Failed to load payments for settlement", map[string]interface{}{
			"partner_id": cmd.PartnerID,
			"date":       cmd.Date.Format("2006-01-02"),
			"error":      err.Error(),
		})
		return result.Err[domain.Settlement, domain.UseCaseError](&domain.SettlementIssue{
			Err: &domain.SettlementNotFoundError{SettlementID: uuid.Nil},
		})
	}

	items := lo.Map(completed, func(p domain.Payment, _ int) domain.SettlementItem {
		return domain.SettlementItem{PaymentID: p.ID, Amount: p.Amount}
	})

	settlement, err := domain.NewSettlement(uuid.New(), cmd.PartnerID, cmd.Date, currency, items, s.feeRate, s.now())
	if err != nil {
		return result.Err[domain.Settlement, domain.UseCaseError](&domain.ValidationIssue{
			Fields: map[string]string{"Settlement": err.Error()},
		})
	}

	if err := s.repo.Create(ctx, settlement); err != nil {
		if errors.Is(err, pkgerrors.ErrDuplicateSettlement) {
			// Lost the race to a concurrent Run for the same partner and day.
			return result.Err[domain.Settlement, domain.UseCaseError](&domain.SettlementIssue{
				Err: &domain.AlreadySettledError{PartnerID: cmd.PartnerID, SettlementDate: cmd.Date},
			})
		}
		s.logger.Error("Failed to persist settlement", map[string]interface{}{
			"settlement_id": settlement.ID,
			"error":         err.Error(),
		})
		return result.Err[domain.Settlement, domain.UseCaseError](&domain.SettlementIssue{
			Err: &domain.InvalidSettlementStateError{SettlementID: settlement.ID, Operation: "create", Status: "pending"},
		})
	}

	s.logger.Info("Settlement created", map[string]interface{}{
		"settlement_id": settlement.ID,
		"partner_id":    cmd.PartnerID,
		"items":         len(items),
		"total":         settlement.TotalAmount.String(),
		"fee":           settlement.FeeAmount.String(),
		"net":           settlement.NetAmount.String(),
	})

	return result.Ok[domain.Settlement, domain.UseCaseError](settlement)
}

// Approve moves a pending settlement to approved.
func (s *Service) Approve(ctx context.Context, settlementID uuid.UUID, approvedBy string) result.Result[domain.Settlement, domain.UseCaseError] {
	return s.transition(ctx, settlementID, func(st domain.Settlement) (domain.Settlement, domain.SettlementError) {
		return st.Approve(approvedBy, s.now())
	})
}

// Pay records the payout transfer on an approved settlement.
func (s *Service) Pay(ctx context.Context, settlementID uuid.UUID, transactionID string) result.Result[domain.Settlement, domain.UseCaseError] {
	return s.transition(ctx, settlementID, func(st domain.Settlement) (domain.Settlement, domain.SettlementError) {
		return st.Pay(transactionID, s.now())
	})
}

// Reject refuses a pending settlement.
func (s *Service) Reject(ctx context.Context, settlementID uuid.UUID, reason string) result.Result[domain.Settlement, domain.UseCaseError] {
	return s.transition(ctx, settlementID, func(st domain.Settlement) (domain.Settlement, domain.SettlementError) {
		return st.Reject(reason, s.now())
	})
}

func (s *Service) transition(ctx context.Context, settlementID uuid.UUID, fn func(domain.Settlement) (domain.Settlement, domain.SettlementError)) result.Result[domain.Settlement, domain.UseCaseError] {
	st, err := s.repo.FindByID(ctx, settlementID)
	if err != nil {
		return result.Err[domain.Settlement, domain.UseCaseError](&domain.SettlementIssue{
			Err: &domain.SettlementNotFoundError{SettlementID: settlementID},
		})
	}

	next, serr := fn(st)
	if serr != nil {
		return result.Err[domain.Settlement, domain.UseCaseError](&domain.SettlementIssue{Err: serr})
	}

	if err := s.repo.Update(ctx, next); err != nil {
		s.logger.Error("Failed to persist settlement transition", map[string]interface{}{
			"settlement_id": settlementID,
			"error":         err.Error(),
		})
		return result.Err[domain.Settlement, domain.UseCaseError](&domain.SettlementIssue{
			Err: &domain.InvalidSettlementStateError{SettlementID: settlementID, Operation: "update", Status: domain.SettlementStatusName(st.Status)},
		})
	}

	return result.Ok[domain.Settlement, domain.UseCaseError](next)
}

// Interfaces
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (domain.Settlement, error)
	FindByPartnerAndDate(ctx context.Context, partnerID uuid.UUID, date time.Time) (domain.Settlement, error)
	Create(ctx context.Context, settlement domain.Settlement) error
	Update(ctx context.Context, settlement domain.Settlement) error
}

type PaymentRepository interface {
	FindCompletedByPartnerAndDate(ctx context.Context, partnerID uuid.UUID, date time.Time) ([]domain.Payment, error)
}
