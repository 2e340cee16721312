// ==============================================================================
// IN-MEMORY ORDER REPOSITORY - internal/repository/memory/order.go
// ==============================================================================
package memory

import (
	"context"
	"sync"

	"commerce/internal/domain"
	"commerce/pkg/errors"

	"github.com/google/uuid"
)

type OrderRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]domain.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{byID: make(map[uuid.UUID]domain.Order)}
}

func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[order.ID]; exists {
		return errors.Wrap(errors.ErrDuplicateRequest, "order already exists")
	}
	r.byID[order.ID] = order
	return nil
}

func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[order.ID]; !exists {
		return errors.ErrOrderNotFound
	}
	r.byID[order.ID] = order
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, exists := r.byID[id]
	if !exists {
		return domain.Order{}, errors.ErrOrderNotFound
	}
	return order, nil
}
