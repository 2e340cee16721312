package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func issuedCoupon(t *testing.T, rule DiscountRule, minOrder Money, now time.Time) Coupon {
	t.Helper()
	c, err := IssueCoupon(uuid.New(), "TEST", rule, minOrder, now.Add(7*24*time.Hour), now)
	assert.NoError(t, err)
	return c
}

func TestFixedDiscountClampedToOrderAmount(t *testing.T) {
	now := time.Now()
	// 10,000 KRW coupon with a 5,000 KRW minimum on an 8,000 KRW order:
	// the discount clamps to the order amount instead of going negative.
	c := issuedCoupon(t, FixedAmountRule{Amount: Won(10000)}, Won(5000), now)

	used, cerr := c.Use(uuid.New(), Won(8000), now)
	assert.Nil(t, cerr)
	assert.True(t, used.Discount.Equal(Won(8000)))

	final, err := Won(8000).SubtractClamped(used.Discount)
	assert.NoError(t, err)
	assert.True(t, final.IsZero())
}

func TestPercentageDiscountWithCap(t *testing.T) {
	now := time.Now()
	rule := PercentageRule{Rate: 10, MaxDiscount: Won(5000)}
	c := issuedCoupon(t, rule, Zero(KRW), now)

	used, cerr := c.Use(uuid.New(), Won(100000), now)
	assert.Nil(t, cerr)
	// 10% of 100,000 is 10,000, capped at 5,000.
	assert.True(t, used.Discount.Equal(Won(5000)))
}

func TestPercentageDiscountUncapped(t *testing.T) {
	now := time.Now()
	c := issuedCoupon(t, PercentageRule{Rate: 10}, Zero(KRW), now)

	used, cerr := c.Use(uuid.New(), Won(100000), now)
	assert.Nil(t, cerr)
	assert.True(t, used.Discount.Equal(Won(10000)))
}

func TestUseTransitionsToUsed(t *testing.T) {
	now := time.Now()
	orderID := uuid.New()
	c := issuedCoupon(t, FixedAmountRule{Amount: Won(1000)}, Zero(KRW), now)

	used, cerr := c.Use(orderID, Won(10000), now)
	assert.Nil(t, cerr)

	status, ok := used.Coupon.Status.(CouponUsed)
	assert.True(t, ok)
	assert.Equal(t, orderID, status.OrderID)

	// The original value is untouched.
	_, stillIssued := c.Status.(CouponIssued)
	assert.True(t, stillIssued)
}

func TestUseAlreadyUsedCoupon(t *testing.T) {
	now := time.Now()
	c := issuedCoupon(t, FixedAmountRule{Amount: Won(1000)}, Zero(KRW), now)

	used, cerr := c.Use(uuid.New(), Won(10000), now)
	assert.Nil(t, cerr)

	_, cerr = used.Coupon.Use(uuid.New(), Won(10000), now)
	var already *AlreadyUsedError
	assert.ErrorAs(t, cerr, &already)
}

func TestUseExpiredCoupon(t *testing.T) {
	now := time.Now()
	c := issuedCoupon(t, FixedAmountRule{Amount: Won(1000)}, Zero(KRW), now)

	afterExpiry := now.Add(8 * 24 * time.Hour)
	_, cerr := c.Use(uuid.New(), Won(10000), afterExpiry)
	var expired *CouponExpiredError
	assert.ErrorAs(t, cerr, &expired)
}

func TestUseBelowMinimumOrder(t *testing.T) {
	now := time.Now()
	c := issuedCoupon(t, FixedAmountRule{Amount: Won(1000)}, Won(5000), now)

	_, cerr := c.Use(uuid.New(), Won(4999), now)
	var notMet *MinOrderNotMetError
	assert.ErrorAs(t, cerr, &notMet)
	assert.True(t, notMet.Required.Equal(Won(5000)))
}

func TestUseForeignCurrencyOrder(t *testing.T) {
	now := time.Now()
	c := issuedCoupon(t, FixedAmountRule{Amount: Won(1000)}, Won(5000), now)

	usdOrder := MustMoney(decimal.NewFromInt(100), USD)
	_, cerr := c.Use(uuid.New(), usdOrder, now)
	var unavailable *CouponNotAvailableError
	assert.ErrorAs(t, cerr, &unavailable)
}

func TestExpire(t *testing.T) {
	now := time.Now()
	c := issuedCoupon(t, FixedAmountRule{Amount: Won(1000)}, Zero(KRW), now)

	expired, cerr := c.Expire(now.Add(8 * 24 * time.Hour))
	assert.Nil(t, cerr)
	_, ok := expired.Status.(CouponExpired)
	assert.True(t, ok)

	// A used coupon cannot be expired.
	used, cerr := c.Use(uuid.New(), Won(10000), now)
	assert.Nil(t, cerr)
	_, cerr = used.Coupon.Expire(now)
	var cannot *CannotExpireError
	assert.ErrorAs(t, cerr, &cannot)
}

func TestIsUsable(t *testing.T) {
	now := time.Now()
	c := issuedCoupon(t, FixedAmountRule{Amount: Won(1000)}, Zero(KRW), now)

	assert.True(t, c.IsUsable(now))
	assert.False(t, c.IsUsable(now.Add(8*24*time.Hour)))

	used, _ := c.Use(uuid.New(), Won(10000), now)
	assert.False(t, used.Coupon.IsUsable(now))
}

func TestFreeShippingRule(t *testing.T) {
	rule := FreeShippingRule{ShippingFee: Won(3000)}
	assert.True(t, rule.Discount(Won(50000)).Equal(Won(3000)))
}
