// ==============================================================================
// ORDER REPOSITORY - internal/repository/postgres/order.go
// ==============================================================================
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"commerce/internal/domain"
	"commerce/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

type orderRow struct {
	ID              uuid.UUID           `db:"id"`
	CustomerID      uuid.UUID           `db:"customer_id"`
	PartnerID       uuid.UUID           `db:"partner_id"`
	TotalAmount     decimal.Decimal     `db:"total_amount"`
	Currency        string              `db:"currency"`
	Status          string              `db:"status"`
	CreatedAt       sql.NullTime        `db:"created_at"`
	PaymentDeadline sql.NullTime        `db:"payment_deadline"`
	PaidAt          sql.NullTime        `db:"paid_at"`
	PaymentMethod   sql.NullString      `db:"payment_method"`
	MethodDetail    sql.NullString      `db:"method_detail"`
	TransactionID   sql.NullString      `db:"transaction_id"`
	TrackingNumber  sql.NullString      `db:"tracking_number"`
	ShippedAt       sql.NullTime        `db:"shipped_at"`
	DeliveredAt     sql.NullTime        `db:"delivered_at"`
	CancelledAt     sql.NullTime        `db:"cancelled_at"`
	CancelReason    sql.NullString      `db:"cancel_reason"`
	RefundTxID      sql.NullString      `db:"refund_transaction_id"`
	RefundAmount    decimal.NullDecimal `db:"refund_amount"`
	RefundAt        sql.NullTime        `db:"refund_requested_at"`
}

func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	row, err := orderToRow(order)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (
			id, customer_id, partner_id, total_amount, currency, status,
			created_at, payment_deadline, paid_at, payment_method, method_detail,
			transaction_id, tracking_number, shipped_at, delivered_at,
			cancelled_at, cancel_reason, refund_transaction_id, refund_amount,
			refund_requested_at
		) VALUES (
			:id, :customer_id, :partner_id, :total_amount, :currency, :status,
			:created_at, :payment_deadline, :paid_at, :payment_method, :method_detail,
			:transaction_id, :tracking_number, :shipped_at, :delivered_at,
			:cancelled_at, :cancel_reason, :refund_transaction_id, :refund_amount,
			:refund_requested_at
		)
	`

	_, err = r.db.NamedExecContext(ctx, query, row)
	return errors.Wrap(err, "failed to create order")
}

func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	row, err := orderToRow(order)
	if err != nil {
		return err
	}

	query := `
		UPDATE orders SET
			status = :status, paid_at = :paid_at, payment_method = :payment_method,
			method_detail = :method_detail, transaction_id = :transaction_id,
			tracking_number = :tracking_number, shipped_at = :shipped_at,
			delivered_at = :delivered_at, cancelled_at = :cancelled_at,
			cancel_reason = :cancel_reason, refund_transaction_id = :refund_transaction_id,
			refund_amount = :refund_amount, refund_requested_at = :refund_requested_at
		WHERE id = :id
	`

	_, err = r.db.NamedExecContext(ctx, query, row)
	return errors.Wrap(err, "failed to update order")
}

func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	var row orderRow
	query := `SELECT * FROM orders WHERE id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return domain.Order{}, errors.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, errors.Wrap(err, "failed to find order")
	}

	return orderFromRow(row)
}

func orderToRow(order domain.Order) (orderRow, error) {
	row := orderRow{
		ID:          order.ID,
		CustomerID:  order.CustomerID,
		PartnerID:   order.PartnerID,
		TotalAmount: order.TotalAmount.Amount(),
		Currency:    string(order.TotalAmount.Currency()),
		Status:      domain.StatusName(order.Status),
	}

	switch status := order.Status.(type) {
	case domain.OrderUnpaid:
		row.CreatedAt = sql.NullTime{Time: status.CreatedAt, Valid: true}
		row.PaymentDeadline = sql.NullTime{Time: status.PaymentDeadline, Valid: true}
	case domain.OrderPaid:
		row.PaidAt = sql.NullTime{Time: status.PaidAt, Valid: true}
		row.PaymentMethod = sql.NullString{String: status.Method.MethodName(), Valid: true}
		row.MethodDetail = sql.NullString{String: methodDetail(status.Method), Valid: true}
		row.TransactionID = sql.NullString{String: status.TransactionID, Valid: true}
	case domain.OrderShipping:
		row.PaidAt = sql.NullTime{Time: status.PaidAt, Valid: true}
		row.TrackingNumber = sql.NullString{String: status.TrackingNumber, Valid: true}
		row.ShippedAt = sql.NullTime{Time: status.ShippedAt, Valid: true}
	case domain.OrderDelivered:
		row.PaidAt = sql.NullTime{Time: status.PaidAt, Valid: true}
		row.TrackingNumber = sql.NullString{String: status.TrackingNumber, Valid: true}
		row.DeliveredAt = sql.NullTime{Time: status.DeliveredAt, Valid: true}
	case domain.OrderCancelled:
		row.CancelledAt = sql.NullTime{Time: status.CancelledAt, Valid: true}
		row.CancelReason = sql.NullString{String: string(status.Reason), Valid: true}
		if status.Refund != nil {
			row.RefundTxID = sql.NullString{String: status.Refund.TransactionID, Valid: true}
			row.RefundAmount = decimal.NullDecimal{Decimal: status.Refund.Amount.Amount(), Valid: true}
			row.RefundAt = sql.NullTime{Time: status.Refund.RequestedAt, Valid: true}
		}
	default:
		return orderRow{}, fmt.Errorf("unknown order status type: %T", order.Status)
	}

	return row, nil
}

func orderFromRow(row orderRow) (domain.Order, error) {
	currency, err := domain.ToCurrency(row.Currency)
	if err != nil {
		return domain.Order{}, errors.Wrap(err, "corrupt order row")
	}

	total, err := domain.NewMoney(row.TotalAmount, currency)
	if err != nil {
		return domain.Order{}, errors.Wrap(err, "corrupt order row")
	}

	var status domain.OrderStatus
	switch row.Status {
	case "unpaid":
		status = domain.OrderUnpaid{CreatedAt: row.CreatedAt.Time, PaymentDeadline: row.PaymentDeadline.Time}
	case "paid":
		status = domain.OrderPaid{
			PaidAt:        row.PaidAt.Time,
			Method:        methodFromRow(row.PaymentMethod.String, row.MethodDetail.String),
			TransactionID: row.TransactionID.String,
		}
	case "shipping":
		status = domain.OrderShipping{PaidAt: row.PaidAt.Time, TrackingNumber: row.TrackingNumber.String, ShippedAt: row.ShippedAt.Time}
	case "delivered":
		status = domain.OrderDelivered{PaidAt: row.PaidAt.Time, TrackingNumber: row.TrackingNumber.String, DeliveredAt: row.DeliveredAt.Time}
	case "cancelled":
		cancelled := domain.OrderCancelled{CancelledAt: row.CancelledAt.Time, Reason: domain.CancelReason(row.CancelReason.String)}
		if row.RefundTxID.Valid {
			amount, err := domain.NewMoney(row.RefundAmount.Decimal, currency)
			if err != nil {
				return domain.Order{}, errors.Wrap(err, "corrupt refund amount")
			}
			cancelled.Refund = &domain.RefundInfo{
				TransactionID: row.RefundTxID.String,
				Amount:        amount,
				RequestedAt:   row.RefundAt.Time,
			}
		}
		status = cancelled
	default:
		return domain.Order{}, fmt.Errorf("unknown order status: %q", row.Status)
	}

	return domain.Order{
		ID:          row.ID,
		CustomerID:  row.CustomerID,
		PartnerID:   row.PartnerID,
		TotalAmount: total,
		Status:      status,
	}, nil
}

// methodDetail keeps the variant's identifying field. Full instrument data
// never reaches storage.
func methodDetail(method domain.PaymentMethod) string {
	switch m := method.(type) {
	case domain.CreditCard:
		return m.CardNumberMasked
	case domain.BankTransfer:
		return m.BankCode
	case domain.Points:
		return m.MemberID.String()
	case domain.SimplePay:
		return m.Provider
	default:
		return ""
	}
}

func methodFromRow(name, detail string) domain.PaymentMethod {
	switch name {
	case "credit_card":
		return domain.CreditCard{CardNumberMasked: detail}
	case "bank_transfer":
		return domain.BankTransfer{BankCode: detail}
	case "points":
		memberID, _ := uuid.Parse(detail)
		return domain.Points{MemberID: memberID}
	case "simple_pay":
		return domain.SimplePay{Provider: detail}
	default:
		return nil
	}
}
