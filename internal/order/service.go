// ==============================================================================
// ORDER SERVICE - internal/order/service.go
// ==============================================================================
package order

import (
	"context"
	"time"

	"commerce/internal/domain"
	"commerce/pkg/logger"
	"commerce/pkg/result"
	"commerce/pkg/validator"

	"github.com/google/uuid"
)

type Service struct {
	repo         Repository
	gateway      RefundGateway
	validator    *validator.Validator
	logger       logger.Logger
	cancelWindow time.Duration
	now          func() time.Time
}

func NewService(repo Repository, gateway RefundGateway, v *validator.Validator, log logger.Logger, cancelWindow time.Duration) *Service {
	return &Service{
		repo:         repo,
		gateway:      gateway,
		validator:    v,
		logger:       log,
		cancelWindow: cancelWindow,
		now:          time.Now,
	}
}

// CancelOrderCommand cancels an order. RefundKey deduplicates the refund call
// when the cancellation is retried.
type CancelOrderCommand struct {
	OrderID   uuid.UUID `validate:"required"`
	Reason    string    `validate:"required"`
	RefundKey string    `validate:"required"`
}

// CancelledOrder is the outcome of a successful cancellation. Refund is nil
// when no payment had been captured.
type CancelledOrder struct {
	Order  domain.Order
	Refund *domain.RefundInfo
}

// Cancel cancels the order and, when a payment was captured, requests the
// refund from the gateway before persisting the transition. An unpaid order
// past its payment deadline still cancels, with nothing to refund.
func (s *Service) Cancel(ctx context.Context, cmd CancelOrderCommand) result.Result[CancelledOrder, domain.UseCaseError] {
	if fields := s.validator.ValidateStructured(cmd); fields != nil {
		return result.Err[CancelledOrder, domain.UseCaseError](&domain.ValidationIssue{Fields: fields})
	}

	reason, err := domain.ToCancelReason(cmd.Reason)
	if err != nil {
		return result.Err[CancelledOrder, domain.UseCaseError](&domain.ValidationIssue{
			Fields: map[string]string{"Reason": err.Error()},
		})
	}

	o, err := s.repo.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return result.Err[CancelledOrder, domain.UseCaseError](&domain.OrderIssue{
			Err: &domain.OrderNotFoundError{OrderID: cmd.OrderID},
		})
	}

	cancelled, oerr := o.Cancel(reason, s.cancelWindow, s.now())
	if oerr != nil {
		return result.Err[CancelledOrder, domain.UseCaseError](&domain.OrderIssue{Err: oerr})
	}

	status := cancelled.Status.(domain.OrderCancelled)
	if status.Refund != nil {
		if err := s.gateway.Refund(ctx, status.Refund.TransactionID, status.Refund.Amount, cmd.RefundKey); err != nil {
			s.logger.Error("Refund request failed", map[string]interface{}{
				"order_id":       cmd.OrderID,
				"transaction_id": status.Refund.TransactionID,
				"error":          err.Error(),
			})
			return result.Err[CancelledOrder, domain.UseCaseError](&domain.OrderIssue{
				Err: &domain.CannotCancelError{OrderID: cmd.OrderID, Reason: "refund request failed"},
			})
		}
	}

	if err := s.repo.Update(ctx, cancelled); err != nil {
		s.logger.Error("Failed to persist cancelled order", map[string]interface{}{
			"order_id": cmd.OrderID,
			"error":    err.Error(),
		})
		return result.Err[CancelledOrder, domain.UseCaseError](&domain.OrderIssue{
			Err: &domain.CannotCancelError{OrderID: cmd.OrderID, Reason: "failed to persist cancellation"},
		})
	}

	s.logger.Info("Order cancelled", map[string]interface{}{
		"order_id": cmd.OrderID,
		"reason":   string(reason),
		"refunded": status.Refund != nil,
	})

	return result.Ok[CancelledOrder, domain.UseCaseError](CancelledOrder{
		Order:  cancelled,
		Refund: status.Refund,
	})
}

// StartShipping moves a paid order into shipping.
func (s *Service) StartShipping(ctx context.Context, orderID uuid.UUID, trackingNumber string) result.Result[domain.Order, domain.UseCaseError] {
	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return result.Err[domain.Order, domain.UseCaseError](&domain.OrderIssue{
			Err: &domain.OrderNotFoundError{OrderID: orderID},
		})
	}

	shipping, oerr := o.StartShipping(trackingNumber, s.now())
	if oerr != nil {
		return result.Err[domain.Order, domain.UseCaseError](&domain.OrderIssue{Err: oerr})
	}

	if err := s.repo.Update(ctx, shipping); err != nil {
		return result.Err[domain.Order, domain.UseCaseError](&domain.OrderIssue{
			Err: &domain.InvalidOrderStateError{OrderID: orderID, Operation: "start shipping", Status: domain.StatusName(o.Status)},
		})
	}

	return result.Ok[domain.Order, domain.UseCaseError](shipping)
}

// CompleteDelivery moves a shipping order to delivered.
func (s *Service) CompleteDelivery(ctx context.Context, orderID uuid.UUID) result.Result[domain.Order, domain.UseCaseError] {
	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return result.Err[domain.Order, domain.UseCaseError](&domain.OrderIssue{
			Err: &domain.OrderNotFoundError{OrderID: orderID},
		})
	}

	delivered, oerr := o.CompleteDelivery(s.now())
	if oerr != nil {
		return result.Err[domain.Order, domain.UseCaseError](&domain.OrderIssue{Err: oerr})
	}

	if err := s.repo.Update(ctx, delivered); err != nil {
		return result.Err[domain.Order, domain.UseCaseError](&domain.OrderIssue{
			Err: &domain.InvalidOrderStateError{OrderID: orderID, Operation: "complete delivery", Status: domain.StatusName(o.Status)},
		})
	}

	return result.Ok[domain.Order, domain.UseCaseError](delivered)
}

// Interfaces
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (domain.Order, error)
	Create(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
}

type RefundGateway interface {
	Refund(ctx context.Context, transactionID string, amount domain.Money, refundKey string) error
}
