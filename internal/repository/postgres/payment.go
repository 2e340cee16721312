// ==============================================================================
// PAYMENT REPOSITORY - internal/repository/postgres/payment.go
// ==============================================================================
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"commerce/internal/domain"
	"commerce/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

type paymentRow struct {
	ID            uuid.UUID       `db:"id"`
	OrderID       uuid.UUID       `db:"order_id"`
	PartnerID     uuid.UUID       `db:"partner_id"`
	Amount        decimal.Decimal `db:"amount"`
	Currency      string          `db:"currency"`
	Method        string          `db:"method"`
	MethodDetail  string          `db:"method_detail"`
	Status        string          `db:"status"`
	RequestedAt   sql.NullTime    `db:"requested_at"`
	CompletedAt   sql.NullTime    `db:"completed_at"`
	TransactionID sql.NullString  `db:"transaction_id"`
	ApprovalCode  sql.NullString  `db:"approval_code"`
	FailedAt      sql.NullTime    `db:"failed_at"`
	FailReason    sql.NullString  `db:"fail_reason"`
	Key           string          `db:"idempotency_key"`
	KeyCreatedAt  time.Time       `db:"key_created_at"`
	KeyExpiresAt  time.Time       `db:"key_expires_at"`
}

const paymentColumns = `
	id, order_id, partner_id, amount, currency, method, method_detail,
	status, requested_at, completed_at, transaction_id, approval_code,
	failed_at, fail_reason, idempotency_key, key_created_at, key_expires_at
`

const paymentValues = `
	:id, :order_id, :partner_id, :amount, :currency, :method, :method_detail,
	:status, :requested_at, :completed_at, :transaction_id, :approval_code,
	:failed_at, :fail_reason, :idempotency_key, :key_created_at, :key_expires_at
`

// Create inserts the payment. The unique index on idempotency_key turns a
// concurrent duplicate into ErrDuplicateIdempotencyKey so the caller can
// replay the winner's outcome.
func (r *PaymentRepository) Create(ctx context.Context, payment domain.Payment) error {
	row, err := paymentToRow(payment)
	if err != nil {
		return err
	}

	query := `INSERT INTO payments (` + paymentColumns + `) VALUES (` + paymentValues + `)`

	_, err = r.db.NamedExecContext(ctx, query, row)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return errors.ErrDuplicateIdempotencyKey
	}
	return errors.Wrap(err, "failed to create payment")
}

// Replace removes whatever payment holds the idempotency key and inserts the
// new one in a single transaction.
func (r *PaymentRepository) Replace(ctx context.Context, payment domain.Payment) error {
	row, err := paymentToRow(payment)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin replace transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE idempotency_key = $1`, row.Key); err != nil {
		return errors.Wrap(err, "failed to evict expired payment")
	}

	query := `INSERT INTO payments (` + paymentColumns + `) VALUES (` + paymentValues + `)`
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		return errors.Wrap(err, "failed to insert replacement payment")
	}

	return errors.Wrap(tx.Commit(), "failed to commit replace transaction")
}

func (r *PaymentRepository) Update(ctx context.Context, payment domain.Payment) error {
	row, err := paymentToRow(payment)
	if err != nil {
		return err
	}

	query := `
		UPDATE payments SET
			status = :status, completed_at = :completed_at,
			transaction_id = :transaction_id, approval_code = :approval_code,
			failed_at = :failed_at, fail_reason = :fail_reason
		WHERE id = :id
	`

	_, err = r.db.NamedExecContext(ctx, query, row)
	return errors.Wrap(err, "failed to update payment")
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	var row paymentRow
	query := `SELECT * FROM payments WHERE id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return domain.Payment{}, errors.ErrPaymentNotFound
	}
	if err != nil {
		return domain.Payment{}, errors.Wrap(err, "failed to find payment")
	}

	return paymentFromRow(row)
}

func (r *PaymentRepository) FindByKey(ctx context.Context, key string) (domain.Payment, error) {
	var row paymentRow
	query := `SELECT * FROM payments WHERE idempotency_key = $1`

	err := r.db.GetContext(ctx, &row, query, key)
	if err == sql.ErrNoRows {
		return domain.Payment{}, errors.ErrPaymentNotFound
	}
	if err != nil {
		return domain.Payment{}, errors.Wrap(err, "failed to find payment by key")
	}

	return paymentFromRow(row)
}

func (r *PaymentRepository) FindCompletedByPartnerAndDate(ctx context.Context, partnerID uuid.UUID, date time.Time) ([]domain.Payment, error) {
	var rows []paymentRow
	query := `
		SELECT * FROM payments
		WHERE partner_id = $1
		  AND status = 'completed'
		  AND completed_at >= $2
		  AND completed_at < $3
	`

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	if err := r.db.SelectContext(ctx, &rows, query, partnerID, dayStart, dayEnd); err != nil {
		return nil, errors.Wrap(err, "failed to find completed payments")
	}

	payments := make([]domain.Payment, 0, len(rows))
	for _, row := range rows {
		payment, err := paymentFromRow(row)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, nil
}

func paymentToRow(payment domain.Payment) (paymentRow, error) {
	row := paymentRow{
		ID:           payment.ID,
		OrderID:      payment.OrderID,
		PartnerID:    payment.PartnerID,
		Amount:       payment.Amount.Amount(),
		Currency:     string(payment.Amount.Currency()),
		Method:       payment.Method.MethodName(),
		MethodDetail: methodDetail(payment.Method),
		Status:       domain.PaymentStatusName(payment.Status),
		Key:          payment.IdempotencyKey.Key,
		KeyCreatedAt: payment.IdempotencyKey.CreatedAt,
		KeyExpiresAt: payment.IdempotencyKey.ExpiresAt,
	}

	switch status := payment.Status.(type) {
	case domain.PaymentPending:
		row.RequestedAt = sql.NullTime{Time: status.RequestedAt, Valid: true}
	case domain.PaymentCompleted:
		row.CompletedAt = sql.NullTime{Time: status.CompletedAt, Valid: true}
		row.TransactionID = sql.NullString{String: status.TransactionID, Valid: true}
		row.ApprovalCode = sql.NullString{String: status.ApprovalCode, Valid: true}
	case domain.PaymentFailed:
		row.FailedAt = sql.NullTime{Time: status.FailedAt, Valid: true}
		row.FailReason = sql.NullString{String: status.Reason, Valid: true}
	default:
		return paymentRow{}, fmt.Errorf("unknown payment status type: %T", payment.Status)
	}

	return row, nil
}

func paymentFromRow(row paymentRow) (domain.Payment, error) {
	currency, err := domain.ToCurrency(row.Currency)
	if err != nil {
		return domain.Payment{}, errors.Wrap(err, "corrupt payment row")
	}

	amount, err := domain.NewMoney(row.Amount, currency)
	if err != nil {
		return domain.Payment{}, errors.Wrap(err, "corrupt payment row")
	}

	var status domain.PaymentStatus
	switch row.Status {
	case "pending":
		status = domain.PaymentPending{RequestedAt: row.RequestedAt.Time}
	case "completed":
		status = domain.PaymentCompleted{
			CompletedAt:   row.CompletedAt.Time,
			TransactionID: row.TransactionID.String,
			ApprovalCode:  row.ApprovalCode.String,
		}
	case "failed":
		status = domain.PaymentFailed{FailedAt: row.FailedAt.Time, Reason: row.FailReason.String}
	default:
		return domain.Payment{}, fmt.Errorf("unknown payment status: %q", row.Status)
	}

	return domain.Payment{
		ID:        row.ID,
		OrderID:   row.OrderID,
		PartnerID: row.PartnerID,
		Amount:    amount,
		Method:    methodFromRow(row.Method, row.MethodDetail),
		Status:    status,
		IdempotencyKey: domain.IdempotencyKey{
			Key:       row.Key,
			CreatedAt: row.KeyCreatedAt,
			ExpiresAt: row.KeyExpiresAt,
		},
	}, nil
}
