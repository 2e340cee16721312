// ==============================================================================
// IN-MEMORY PAYMENT REPOSITORY - internal/repository/memory/payment.go
// ==============================================================================
package memory

import (
	"context"
	"sync"
	"time"

	"commerce/internal/domain"
	"commerce/pkg/errors"

	"github.com/google/uuid"
)

type PaymentRepository struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]domain.Payment
	byKey map[string]uuid.UUID
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		byID:  make(map[uuid.UUID]domain.Payment),
		byKey: make(map[string]uuid.UUID),
	}
}

// Create stores the payment, failing when the idempotency key is already
// taken. The check and insert happen under one lock so concurrent
// submissions of the same key cannot both succeed.
func (r *PaymentRepository) Create(ctx context.Context, payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byKey[payment.IdempotencyKey.Key]; taken {
		return errors.ErrDuplicateIdempotencyKey
	}
	r.byID[payment.ID] = payment
	r.byKey[payment.IdempotencyKey.Key] = payment.ID
	return nil
}

// Replace swaps out whatever payment currently holds the idempotency key.
func (r *PaymentRepository) Replace(ctx context.Context, payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if oldID, taken := r.byKey[payment.IdempotencyKey.Key]; taken {
		delete(r.byID, oldID)
	}
	r.byID[payment.ID] = payment
	r.byKey[payment.IdempotencyKey.Key] = payment.ID
	return nil
}

func (r *PaymentRepository) Update(ctx context.Context, payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[payment.ID]; !exists {
		return errors.ErrPaymentNotFound
	}
	r.byID[payment.ID] = payment
	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, exists := r.byID[id]
	if !exists {
		return domain.Payment{}, errors.ErrPaymentNotFound
	}
	return payment, nil
}

func (r *PaymentRepository) FindByKey(ctx context.Context, key string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byKey[key]
	if !exists {
		return domain.Payment{}, errors.ErrPaymentNotFound
	}
	return r.byID[id], nil
}

func (r *PaymentRepository) FindCompletedByPartnerAndDate(ctx context.Context, partnerID uuid.UUID, date time.Time) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var completed []domain.Payment
	for _, payment := range r.byID {
		if payment.PartnerID != partnerID {
			continue
		}
		status, ok := payment.Status.(domain.PaymentCompleted)
		if !ok {
			continue
		}
		if status.CompletedAt.Before(dayStart) || !status.CompletedAt.Before(dayEnd) {
			continue
		}
		completed = append(completed, payment)
	}
	return completed, nil
}
