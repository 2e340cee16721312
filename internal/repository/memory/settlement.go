// ==============================================================================
// IN-MEMORY SETTLEMENT REPOSITORY - internal/repository/memory/settlement.go
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

type SettlementRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]domain.Settlement
}

func NewSettlementRepository() *SettlementRepository {
	return &SettlementRepository{byID: make(map[uuid.UUID]domain.Settlement)}
}

// Create stores the settlement, failing when the partner already has one for
// the same day. The check and insert happen under one lock, mirroring the
// partner/date unique constraint the database schema enforces.
func (r *SettlementRepository) Create(ctx context.Context, settlement domain.Settlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[settlement.ID]; exists {
		return errors.Wrap(errors.ErrDuplicateRequest, "settlement already exists")
	}
	for _, stored := range r.byID {
		if stored.PartnerID == settlement.PartnerID && sameDay(stored.SettlementDate, settlement.SettlementDate) {
			return errors.ErrDuplicateSettlement
		}
	}
	r.byID[settlement.ID] = settlement
	return nil
}

func (r *SettlementRepository) Update(ctx context.Context, settlement domain.Settlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[settlement.ID]; !exists {
		return errors.ErrSettlementNotFound
	}
	r.byID[settlement.ID] = settlement
	return nil
}

func (r *SettlementRepository) FindByID(ctx context.Context, id uuid.UUID) (domain.Settlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	settlement, exists := r.byID[id]
	if !exists {
		return domain.Settlement{}, errors.ErrSettlementNotFound
	}
	return settlement, nil
}

func (r *SettlementRepository) FindByPartnerAndDate(ctx context.Context, partnerID uuid.UUID, date time.Time) (domain.Settlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, settlement := range r.byID {
		if settlement.PartnerID == partnerID && sameDay(settlement.SettlementDate, date) {
			return settlement, nil
		}
	}
	return domain.Settlement{}, errors.ErrSettlementNotFound
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
