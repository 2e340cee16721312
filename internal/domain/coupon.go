package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DiscountRule is the closed set of coupon discount rules.
type DiscountRule interface {
	discountRule()
	// Discount computes the amount taken off an order of the given amount.
	Discount(orderAmount Money) Money
}

// FixedAmountRule discounts a fixed amount, clamped to the order amount so a
// large coupon can never push an order total negative.
type FixedAmountRule struct {
	Amount Money
}

func (FixedAmountRule) discountRule() {}

func (r FixedAmountRule) Discount(orderAmount Money) Money {
	bigger, err := r.Amount.GreaterThan(orderAmount)
	if err != nil {
		return Zero(orderAmount.Currency())
	}
	if bigger {
		return orderAmount
	}
	return r.Amount
}

// PercentageRule discounts a percentage of the order amount, capped at
// MaxDiscount when a cap is set (a zero cap means uncapped).
type PercentageRule struct {
	Rate        int
	MaxDiscount Money
}

func (PercentageRule) discountRule() {}

func (r PercentageRule) Discount(orderAmount Money) Money {
	discount := orderAmount.MultiplyPercent(r.Rate)
	if r.MaxDiscount.IsZero() {
		return discount
	}
	over, err := discount.GreaterThan(r.MaxDiscount)
	if err != nil {
		return Zero(orderAmount.Currency())
	}
	if over {
		return r.MaxDiscount
	}
	return discount
}

// FreeShippingRule discounts the shipping fee of the order.
type FreeShippingRule struct {
	ShippingFee Money
}

func (FreeShippingRule) discountRule() {}

func (r FreeShippingRule) Discount(orderAmount Money) Money {
	if r.ShippingFee.Currency() != orderAmount.Currency() {
		return Zero(orderAmount.Currency())
	}
	return r.ShippingFee
}

// CouponStatus is the closed set of coupon states. Each variant carries only
// the fields valid for that state.
type CouponStatus interface {
	couponStatus()
}

type CouponIssued struct {
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (CouponIssued) couponStatus() {}

func (s CouponIssued) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

type CouponUsed struct {
	UsedAt  time.Time
	OrderID uuid.UUID
}

func (CouponUsed) couponStatus() {}

type CouponExpired struct {
	ExpiredAt time.Time
}

func (CouponExpired) couponStatus() {}

// Coupon is an immutable aggregate; Use and Expire return new values.
type Coupon struct {
	ID             uuid.UUID
	Code           string
	Rule           DiscountRule
	Status         CouponStatus
	MinOrderAmount Money
}

// UsedCoupon pairs the transitioned coupon with the discount it produced.
type UsedCoupon struct {
	Coupon   Coupon
	Discount Money
}

// IssueCoupon creates a coupon in the Issued state.
func IssueCoupon(id uuid.UUID, code string, rule DiscountRule, minOrderAmount Money, expiresAt, now time.Time) (Coupon, error) {
	if id == uuid.Nil {
		return Coupon{}, errors.New("coupon id is required")
	}
	if code == "" {
		return Coupon{}, errors.New("coupon code is required")
	}
	if rule == nil {
		return Coupon{}, errors.New("discount rule is required")
	}
	if !expiresAt.After(now) {
		return Coupon{}, errors.New("expiry must be in the future")
	}

	return Coupon{
		ID:             id,
		Code:           code,
		Rule:           rule,
		Status:         CouponIssued{IssuedAt: now, ExpiresAt: expiresAt},
		MinOrderAmount: minOrderAmount,
	}, nil
}

// Use consumes the coupon for the given order. Checks run in order:
// status, expiry, minimum order amount, discount computation, transition.
func (c Coupon) Use(orderID uuid.UUID, orderAmount Money, now time.Time) (UsedCoupon, CouponError) {
	issued, ok := c.Status.(CouponIssued)
	if !ok {
		switch c.Status.(type) {
		case CouponUsed:
			return UsedCoupon{}, &AlreadyUsedError{CouponID: c.ID}
		case CouponExpired:
			return UsedCoupon{}, &CouponExpiredError{CouponID: c.ID}
		default:
			return UsedCoupon{}, &CouponNotAvailableError{CouponID: c.ID}
		}
	}

	if issued.IsExpired(now) {
		return UsedCoupon{}, &CouponExpiredError{CouponID: c.ID}
	}

	belowMinimum, err := orderAmount.LessThan(c.MinOrderAmount)
	if err != nil {
		// Coupon denominated in another currency is simply not applicable.
		return UsedCoupon{}, &CouponNotAvailableError{CouponID: c.ID}
	}
	if belowMinimum {
		return UsedCoupon{}, &MinOrderNotMetError{Required: c.MinOrderAmount, Actual: orderAmount}
	}

	discount := c.Rule.Discount(orderAmount)

	used := c
	used.Status = CouponUsed{UsedAt: now, OrderID: orderID}
	return UsedCoupon{Coupon: used, Discount: discount}, nil
}

// Expire marks an issued coupon expired. Expiry is a scheduled system
// action; calling it on any other state is a caller bug.
func (c Coupon) Expire(now time.Time) (Coupon, CouponError) {
	if _, ok := c.Status.(CouponIssued); !ok {
		return Coupon{}, &CannotExpireError{CouponID: c.ID}
	}
	expired := c
	expired.Status = CouponExpired{ExpiredAt: now}
	return expired, nil
}

// IsUsable reports whether Use could succeed right now, ignoring the
// minimum order amount.
func (c Coupon) IsUsable(now time.Time) bool {
	issued, ok := c.Status.(CouponIssued)
	return ok && !issued.IsExpired(now)
}

// CouponError is the closed set of coupon business failures.
type CouponError interface {
	error
	couponError()
}

type CouponNotFoundError struct {
	Code string
}

func (e *CouponNotFoundError) couponError() {}
func (e *CouponNotFoundError) Error() string {
	return fmt.Sprintf("coupon not found: %s", e.Code)
}

type AlreadyUsedError struct {
	CouponID uuid.UUID
}

func (e *AlreadyUsedError) couponError() {}
func (e *AlreadyUsedError) Error() string {
	return fmt.Sprintf("coupon already used: %s", e.CouponID)
}

type CouponExpiredError struct {
	CouponID uuid.UUID
}

func (e *CouponExpiredError) couponError() {}
func (e *CouponExpiredError) Error() string {
	return fmt.Sprintf("coupon expired: %s", e.CouponID)
}

type CouponNotAvailableError struct {
	CouponID uuid.UUID
}

func (e *CouponNotAvailableError) couponError() {}
func (e *CouponNotAvailableError) Error() string {
	return fmt.Sprintf("coupon not available: %s", e.CouponID)
}

type MinOrderNotMetError struct {
	Required Money
	Actual   Money
}

func (e *MinOrderNotMetError) couponError() {}
func (e *MinOrderNotMetError) Error() string {
	return fmt.Sprintf("minimum order amount not met: required %s, got %s", e.Required, e.Actual)
}

type CannotExpireError struct {
	CouponID uuid.UUID
}

func (e *CannotExpireError) couponError() {}
func (e *CannotExpireError) Error() string {
	return fmt.Sprintf("coupon cannot be expired from its current state: %s", e.CouponID)
}
