// ==============================================================================
// IN-MEMORY COUPON REPOSITORY - internal/repository/memory/coupon.go
// ==============================================================================
package memory

import (
	"context"
	"sync"
	"time"

	"commerce/internal/domain"
	"commerce/pkg/errors"
)

type CouponRepository struct {
	mu     sync.RWMutex
	byCode map[string]domain.Coupon
}

func NewCouponRepository() *CouponRepository {
	return &CouponRepository{byCode: make(map[string]domain.Coupon)}
}

func (r *CouponRepository) Create(ctx context.Context, coupon domain.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCode[coupon.Code]; exists {
		return errors.Wrap(errors.ErrDuplicateRequest, "coupon code already exists")
	}
	r.byCode[coupon.Code] = coupon
	return nil
}

func (r *CouponRepository) Update(ctx context.Context, coupon domain.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCode[coupon.Code]; !exists {
		return errors.ErrCouponNotFound
	}
	r.byCode[coupon.Code] = coupon
	return nil
}

func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	coupon, exists := r.byCode[code]
	if !exists {
		return domain.Coupon{}, errors.ErrCouponNotFound
	}
	return coupon, nil
}

func (r *CouponRepository) FindExpiredIssued(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []domain.Coupon
	for _, coupon := range r.byCode {
		if issued, ok := coupon.Status.(domain.CouponIssued); ok && issued.IsExpired(now) {
			expired = append(expired, coupon)
		}
	}
	return expired, nil
}
