// ==============================================================================
// PAYMENT SERVICE - internal/payment/service.go
// ==============================================================================
package payment

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
)

// lockTTL bounds how long a crashed submission can block retries of its key.
const lockTTL = 30 * time.Second

type Service struct {
	repo      Repository
	orders    OrderRepository
	gateway   Gateway
	locks     LockStore
	validator *validator.Validator
	logger    logger.Logger
	keyTTL    time.Duration
	now       func() time.Time
}

func NewService(repo Repository, orders OrderRepository, gateway Gateway, locks LockStore, v *validator.Validator, log logger.Logger, keyTTL time.Duration) *Service {
	return &Service{
		repo:      repo,
		orders:    orders,
		gateway:   gateway,
		locks:     locks,
		validator: v,
		logger:    log,
		keyTTL:    keyTTL,
		now:       time.Now,
	}
}

// ProcessPaymentCommand charges an order once. IdempotencyKey makes retries
// safe: a replay with the same key returns the stored outcome instead of
// charging again.
type ProcessPaymentCommand struct {
	OrderID        uuid.UUID            `validate:"required"`
	Method         domain.PaymentMethod `validate:"required"`
	IdempotencyKey string               `validate:"required"`
}

// Process runs the charge. Exactly one gateway charge happens per live
// idempotency key no matter how many times the command is submitted, and
// every submission with the same key observes the same outcome.
func (s *Service) Process(ctx context.Context, cmd ProcessPaymentCommand) result.Result[domain.Payment, domain.UseCaseError] {
	if fields := s.validator.ValidateStructured(cmd); fields != nil {
		return result.Err[domain.Payment, domain.UseCaseError](&domain.ValidationIssue{Fields: fields})
	}

	now := s.now()

	// Replay path: a completed or failed payment under a live key is the
	// answer. A pending one is either in flight or abandoned after a gateway
	// outage; the lock below decides which.
	keyExpired := false
	resuming := false
	existing, err := s.repo.FindByKey(ctx, cmd.IdempotencyKey)
	if err == nil {
		if !existing.IdempotencyKey.IsExpired(now) {
			if _, pending := existing.Status.(domain.PaymentPending); !pending {
				return s.replay(existing)
			}
			resuming = true
		} else {
			// The key outlived its guarantee; the retry is a new request.
			keyExpired = true
		}
	} else if !errors.Is(err, pkgerrors.ErrPaymentNotFound) {
		// A storage fault is not "no payment stored"; charging anyway could
		// duplicate a payment the store already holds.
		s.logger.Error("Failed to look up payment by idempotency key", map[string]interface{}{
			"key":   cmd.IdempotencyKey,
			"error": err.Error(),
		})
		return result.Err[domain.Payment, domain.UseCaseError](&domain.PaymentIssue{
			Err: &domain.PaymentLookupError{Key: cmd.IdempotencyKey, Cause: err},
		})
	}

	// Serialize concurrent submissions of the same key.
	acquired, err := s.locks.Acquire(ctx, cmd.IdempotencyKey, lockTTL)
	if err != nil || !acquired {
		return result.Err[domain.Payment, domain.UseCaseError](&domain.PaymentIssue{
			Err: &domain.DuplicateRequestError{Key: cmd.IdempotencyKey},
		})
	}
	defer func() {
		if err := s.locks.Release(ctx, cmd.IdempotencyKey); err != nil {
			s.logger.Warn("Failed to release idempotency lock", map[string]interface{}{
				"key":   cmd.IdempotencyKey,
				"error": err.Error(),
			})
		}
	}()

	o, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return result.Err[domain.Payment, domain.UseCaseError](&domain.OrderIssue{
			Err: &domain.OrderNotFoundError{OrderID: cmd.OrderID},
		})
	}

	// A cancelled, shipped or already paid order must never reach the
	// gateway; a charge captured here would have no order to record it.
	if oerr := o.EnsurePayable(now); oerr != nil {
		return result.Err[domain.Payment, domain.UseCaseError](&domain.OrderIssue{Err: oerr})
	}

	var pending domain.Payment
	if resuming {
		// Holding the lock means the earlier attempt is dead; pick up its
		// pending payment and run the charge it never finished.
		pending = existing
	} else {
		key, err := domain.NewIdempotencyKey(cmd.IdempotencyKey, s.keyTTL, now)
		if err != nil {
			return result.Err[domain.Payment, domain.UseCaseError](&domain.ValidationIssue{
				Fields: map[string]string{"IdempotencyKey": err.Error()},
			})
		}

		pending, err = domain.NewPayment(uuid.New(), o.ID, o.PartnerID, o.TotalAmount, cmd.Method, key, now)
		if err != nil {
			return result.Err[domain.Payment, domain.UseCaseError](&domain.ValidationIssue{
				Fields: map[string]string{"Payment": err.Error()},
			})
		}

		storePending := s.repo.Create
		if keyExpired {
			// The key column is unique; an expired row must give way to the
			// new request instead of colliding with it.
			storePending = s.repo.Replace
		}
		if err := storePending(ctx, pending); err != nil {
			if errors.Is(err, pkgerrors.ErrDuplicateIdempotencyKey) {
				// Lost the race to a concurrent submission; replay its outcome.
				stored, ferr := s.repo.FindByKey(ctx, cmd.IdempotencyKey)
				if ferr == nil {
					return s.replay(stored)
				}
			}
			s.logger.Error("Failed to create payment", map[string]interface{}{
				"order_id": cmd.OrderID,
				"error":    err.Error(),
			})
			return result.Err[domain.Payment, domain.UseCaseError](&domain.PaymentIssue{
				Err: &domain.DuplicateRequestError{Key: cmd.IdempotencyKey},
			})
		}
	}

	gatewayResult, gerr := s.gateway.Charge(ctx, pending)
	if gerr != nil {
		if gerr.Retryable() {
			// Infrastructure fault, not a decline. The payment stays pending
			// so the same key can retry the charge.
			s.logger.Warn("Gateway unavailable", map[string]interface{}{
				"payment_id": pending.ID,
				"error":      gerr.Error(),
			})
			return result.Err[domain.Payment, domain.UseCaseError](&domain.PaymentIssue{
				Err: &domain.GatewayFailureError{Cause: gerr},
			})
		}

		failed, perr := pending.Fail(gerr.Error(), s.now())
		if perr != nil {
			return result.Err[domain.Payment, domain.UseCaseError](&domain.PaymentIssue{Err: perr})
		}
		if err := s.repo.Update(ctx, failed); err != nil {
			s.logger.Error("Failed to persist declined payment", map[string]interface{}{
				"payment_id": failed.ID,
				"error":      err.Error(),
			})
		}
		return result.Err[domain.Payment, domain.UseCaseError](&domain.PaymentIssue{
			Err: &domain.PaymentDeclinedError{PaymentID: failed.ID, Reason: gerr.Error()},
		})
	}

	completed, perr := pending.Complete(gatewayResult.TransactionID, gatewayResult.ApprovalCode, s.now())
	if perr != nil {
		return result.Err[domain.Payment, domain.UseCaseError](&domain.PaymentIssue{Err: perr})
	}
	if err := s.repo.Update(ctx, completed); err != nil {
		s.logger.Error("Failed to persist completed payment", map[string]interface{}{
			"payment_id": completed.ID,
			"error":      err.Error(),
		})
		return result.Err[domain.Payment, domain.UseCaseError](&domain.PaymentIssue{
			Err: &domain.InvalidPaymentStateError{PaymentID: completed.ID, Operation: "complete", Status: "pending"},
		})
	}

	paidOrder, oerr := o.Pay(cmd.Method, gatewayResult.TransactionID, s.now())
	if oerr != nil {
		// The charge succeeded but the order cannot record it. Surface the
		// order failure; the stored payment keeps the replay consistent.
		return result.Err[domain.Payment, domain.UseCaseError](&domain.OrderIssue{Err: oerr})
	}
	if err := s.orders.Update(ctx, paidOrder); err != nil {
		s.logger.Error("Failed to mark order paid", map[string]interface{}{
			"order_id":   o.ID,
			"payment_id": completed.ID,
			"error":      err.Error(),
		})
	}

	s.logger.Info("Payment completed", map[string]interface{}{
		"payment_id":     completed.ID,
		"order_id":       o.ID,
		"amount":         completed.Amount.String(),
		"transaction_id": gatewayResult.TransactionID,
	})

	return result.Ok[domain.Payment, domain.UseCaseError](completed)
}

// replay maps a stored payment back to the outcome its first submission
// produced, so both submissions return the same thing.
func (s *Service) replay(p domain.Payment) result.Result[domain.Payment, domain.UseCaseError] {
	switch status := p.Status.(type) {
	case domain.PaymentCompleted:
		return result.Ok[domain.Payment, domain.UseCaseError](p)
	case domain.PaymentFailed:
		return result.Err[domain.Payment, domain.UseCaseError](&domain.PaymentIssue{
			Err: &domain.PaymentDeclinedError{PaymentID: p.ID, Reason: status.Reason},
		})
	default:
		// Still pending means another submission holds the charge in flight.
		return result.Err[domain.Payment, domain.UseCaseError](&domain.PaymentIssue{
			Err: &domain.DuplicateRequestError{Key: p.IdempotencyKey.Key},
		})
	}
}

// Interfaces
type Repository interface {
	FindByKey(ctx context.Context, key string) (domain.Payment, error)
	Create(ctx context.Context, payment domain.Payment) error
	// Replace swaps the payment stored under the same idempotency key.
	Replace(ctx context.Context, payment domain.Payment) error
	Update(ctx context.Context, payment domain.Payment) error
}

type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (domain.Order, error)
	Update(ctx context.Context, order domain.Order) error
}

type Gateway interface {
	Charge(ctx context.Context, payment domain.Payment) (domain.GatewayResult, domain.GatewayError)
}

type LockStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
