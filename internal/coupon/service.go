// ==============================================================================
// COUPON SERVICE - internal/coupon/service.go
// ==============================================================================
package coupon

import (
	"context"
	"time"

	"commerce/internal/domain"
	"commerce/pkg/logger"
	"commerce/pkg/result"
	"commerce/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service struct {
	repo      Repository
	validator *validator.Validator
	logger    logger.Logger
	now       func() time.Time
}

func NewService(repo Repository, v *validator.Validator, log logger.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: v,
		logger:    log,
		now:       time.Now,
	}
}

// ApplyCouponCommand applies the coupon identified by Code to an order total.
type ApplyCouponCommand struct {
	Code        string          `validate:"required"`
	OrderID     uuid.UUID       `validate:"required"`
	OrderAmount decimal.Decimal `validate:"positive_amount"`
	Currency    string          `validate:"required,currency"`
}

// AppliedCoupon is the outcome of a successful application.
type AppliedCoupon struct {
	Coupon      domain.Coupon
	Discount    domain.Money
	FinalAmount domain.Money
}

// Apply looks up the coupon, consumes it against the order amount and
// persists the transition. The discounted total is clamped at zero; a coupon
// can never make an order total negative.
func (s *Service) Apply(ctx context.Context, cmd ApplyCouponCommand) result.Result[AppliedCoupon, domain.UseCaseError] {
	if fields := s.validator.ValidateStructured(cmd); fields != nil {
		return result.Err[AppliedCoupon, domain.UseCaseError](&domain.ValidationIssue{Fields: fields})
	}

	orderAmount, err := domain.NewMoney(cmd.OrderAmount, domain.Currency(cmd.Currency))
	if err != nil {
		return result.Err[AppliedCoupon, domain.UseCaseError](&domain.ValidationIssue{
			Fields: map[string]string{"OrderAmount": err.Error()},
		})
	}

	c, err := s.repo.FindByCode(ctx, cmd.Code)
	if err != nil {
		s.logger.Warn("Coupon lookup failed", map[string]interface{}{
			"code":  cmd.Code,
			"error": err.Error(),
		})
		return result.Err[AppliedCoupon, domain.UseCaseError](&domain.CouponIssue{
			Err: &domain.CouponNotFoundError{Code: cmd.Code},
		})
	}

	used, cerr := c.Use(cmd.OrderID, orderAmount, s.now())
	if cerr != nil {
		return result.Err[AppliedCoupon, domain.UseCaseError](&domain.CouponIssue{Err: cerr})
	}

	if err := s.repo.Update(ctx, used.Coupon); err != nil {
		s.logger.Error("Failed to persist used coupon", map[string]interface{}{
			"coupon_id": used.Coupon.ID,
			"error":     err.Error(),
		})
		return result.Err[AppliedCoupon, domain.UseCaseError](&domain.CouponIssue{
			Err: &domain.CouponNotAvailableError{CouponID: used.Coupon.ID},
		})
	}

	finalAmount, merr := orderAmount.SubtractClamped(used.Discount)
	if merr != nil {
		return result.Err[AppliedCoupon, domain.UseCaseError](&domain.CouponIssue{
			Err: &domain.CouponNotAvailableError{CouponID: used.Coupon.ID},
		})
	}

	s.logger.Info("Coupon applied", map[string]interface{}{
		"coupon_id": used.Coupon.ID,
		"order_id":  cmd.OrderID,
		"discount":  used.Discount.String(),
	})

	return result.Ok[AppliedCoupon, domain.UseCaseError](AppliedCoupon{
		Coupon:      used.Coupon,
		Discount:    used.Discount,
		FinalAmount: finalAmount,
	})
}

// Preview computes the discount without consuming the coupon.
func (s *Service) Preview(ctx context.Context, cmd ApplyCouponCommand) result.Result[domain.Money, domain.UseCaseError] {
	if fields := s.validator.ValidateStructured(cmd); fields != nil {
		return result.Err[domain.Money, domain.UseCaseError](&domain.ValidationIssue{Fields: fields})
	}

	orderAmount, err := domain.NewMoney(cmd.OrderAmount, domain.Currency(cmd.Currency))
	if err != nil {
		return result.Err[domain.Money, domain.UseCaseError](&domain.ValidationIssue{
			Fields: map[string]string{"OrderAmount": err.Error()},
		})
	}

	c, err := s.repo.FindByCode(ctx, cmd.Code)
	if err != nil {
		return result.Err[domain.Money, domain.UseCaseError](&domain.CouponIssue{
			Err: &domain.CouponNotFoundError{Code: cmd.Code},
		})
	}

	used, cerr := c.Use(cmd.OrderID, orderAmount, s.now())
	if cerr != nil {
		return result.Err[domain.Money, domain.UseCaseError](&domain.CouponIssue{Err: cerr})
	}

	return result.Ok[domain.Money, domain.UseCaseError](used.Discount)
}

// ExpireCoupons sweeps issued coupons past their expiry and marks them
// expired. Returns the number of coupons transitioned.
func (s *Service) ExpireCoupons(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.repo.FindExpiredIssued(ctx, now)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, c := range expired {
		transitioned, cerr := c.Expire(now)
		if cerr != nil {
			// Raced with a concurrent use; skip it.
			continue
		}
		if err := s.repo.Update(ctx, transitioned); err != nil {
			s.logger.Error("Failed to expire coupon", map[string]interface{}{
				"coupon_id": c.ID,
				"error":     err.Error(),
			})
			continue
		}
		count++
	}

	if count > 0 {
		s.logger.Info("Expired coupons", map[string]interface{}{
			"count": count,
		})
	}
	return count, nil
}

// Interfaces
type Repository interface {
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
	FindExpiredIssued(ctx context.Context, now time.Time) ([]domain.Coupon, error)
	Create(ctx context.Context, coupon domain.Coupon) error
	Update(ctx context.Context, coupon domain.Coupon) error
}
