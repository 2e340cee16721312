// ==============================================================================
// SETTLEMENT REPOSITORY - internal/repository/postgres/settlement.go
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

type SettlementRepository struct {
	db *sqlx.DB
}

func NewSettlementRepository(db *sqlx.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

type settlementRow struct {
	ID             uuid.UUID       `db:"id"`
	PartnerID      uuid.UUID       `db:"partner_id"`
	SettlementDate time.Time       `db:"settlement_date"`
	TotalAmount    decimal.Decimal `db:"total_amount"`
	FeeAmount      decimal.Decimal `db:"fee_amount"`
	NetAmount      decimal.Decimal `db:"net_amount"`
	Currency       string          `db:"currency"`
	FeeRate        int             `db:"fee_rate"`
	Status         string          `db:"status"`
	CreatedAt      sql.NullTime    `db:"created_at"`
	ApprovedAt     sql.NullTime    `db:"approved_at"`
	ApprovedBy     sql.NullString  `db:"approved_by"`
	PaidAt         sql.NullTime    `db:"paid_at"`
	TransactionID  sql.NullString  `db:"transaction_id"`
	RejectedAt     sql.NullTime    `db:"rejected_at"`
	RejectReason   sql.NullString  `db:"reject_reason"`
}

type settlementItemRow struct {
	SettlementID uuid.UUID       `db:"settlement_id"`
	PaymentID    uuid.UUID       `db:"payment_id"`
	Amount       decimal.Decimal `db:"amount"`
	Currency     string          `db:"currency"`
}

func (r *SettlementRepository) Create(ctx context.Context, settlement domain.Settlement) error {
	row, err := settlementToRow(settlement)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin settlement transaction")
	}
	defer tx.Rollback()

	query := `
		INSERT INTO settlements (
			id, partner_id, settlement_date, total_amount, fee_amount,
			net_amount, currency, fee_rate, status, created_at, approved_at,
			approved_by, paid_at, transaction_id, rejected_at, reject_reason
		) VALUES (
			:id, :partner_id, :settlement_date, :total_amount, :fee_amount,
			:net_amount, :currency, :fee_rate, :status, :created_at, :approved_at,
			:approved_by, :paid_at, :transaction_id, :rejected_at, :reject_reason
		)
	`

	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.ErrDuplicateSettlement
		}
		return errors.Wrap(err, "failed to create settlement")
	}

	itemQuery := `
		INSERT INTO settlement_items (settlement_id, payment_id, amount, currency)
		VALUES (:settlement_id, :payment_id, :amount, :currency)
	`
	for _, item := range settlement.Items {
		itemRow := settlementItemRow{
			SettlementID: settlement.ID,
			PaymentID:    item.PaymentID,
			Amount:       item.Amount.Amount(),
			Currency:     string(item.Amount.Currency()),
		}
		if _, err := tx.NamedExecContext(ctx, itemQuery, itemRow); err != nil {
			return errors.Wrap(err, "failed to create settlement item")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit settlement")
}

func (r *SettlementRepository) Update(ctx context.Context, settlement domain.Settlement) error {
	row, err := settlementToRow(settlement)
	if err != nil {
		return err
	}

	query := `
		UPDATE settlements SET
			status = :status, approved_at = :approved_at, approved_by = :approved_by,
			paid_at = :paid_at, transaction_id = :transaction_id,
			rejected_at = :rejected_at, reject_reason = :reject_reason
		WHERE id = :id
	`

	_, err = r.db.NamedExecContext(ctx, query, row)
	return errors.Wrap(err, "failed to update settlement")
}

func (r *SettlementRepository) FindByID(ctx context.Context, id uuid.UUID) (domain.Settlement, error) {
	var row settlementRow
	query := `SELECT * FROM settlements WHERE id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return domain.Settlement{}, errors.ErrSettlementNotFound
	}
	if err != nil {
		return domain.Settlement{}, errors.Wrap(err, "failed to find settlement")
	}

	items, err := r.findItems(ctx, id)
	if err != nil {
		return domain.Settlement{}, err
	}

	return settlementFromRow(row, items)
}

func (r *SettlementRepository) FindByPartnerAndDate(ctx context.Context, partnerID uuid.UUID, date time.Time) (domain.Settlement, error) {
	var row settlementRow
	query := `SELECT * FROM settlements WHERE partner_id = $1 AND settlement_date = $2`

	err := r.db.GetContext(ctx, &row, query, partnerID, date)
	if err == sql.ErrNoRows {
		return domain.Settlement{}, errors.ErrSettlementNotFound
	}
	if err != nil {
		return domain.Settlement{}, errors.Wrap(err, "failed to find settlement")
	}

	items, err := r.findItems(ctx, row.ID)
	if err != nil {
		return domain.Settlement{}, err
	}

	return settlementFromRow(row, items)
}

func (r *SettlementRepository) findItems(ctx context.Context, settlementID uuid.UUID) ([]domain.SettlementItem, error) {
	var rows []settlementItemRow
	query := `SELECT * FROM settlement_items WHERE settlement_id = $1`

	if err := r.db.SelectContext(ctx, &rows, query, settlementID); err != nil {
		return nil, errors.Wrap(err, "failed to find settlement items")
	}

	items := make([]domain.SettlementItem, 0, len(rows))
	for _, row := range rows {
		currency, err := domain.ToCurrency(row.Currency)
		if err != nil {
			return nil, errors.Wrap(err, "corrupt settlement item")
		}
		amount, err := domain.NewMoney(row.Amount, currency)
		if err != nil {
			return nil, errors.Wrap(err, "corrupt settlement item")
		}
		items = append(items, domain.SettlementItem{PaymentID: row.PaymentID, Amount: amount})
	}
	return items, nil
}

func settlementToRow(settlement domain.Settlement) (settlementRow, error) {
	row := settlementRow{
		ID:             settlement.ID,
		PartnerID:      settlement.PartnerID,
		SettlementDate: settlement.SettlementDate,
		TotalAmount:    settlement.TotalAmount.Amount(),
		FeeAmount:      settlement.FeeAmount.Amount(),
		NetAmount:      settlement.NetAmount.Amount(),
		Currency:       string(settlement.TotalAmount.Currency()),
		FeeRate:        settlement.FeeRate,
		Status:         domain.SettlementStatusName(settlement.Status),
	}

	switch status := settlement.Status.(type) {
	case domain.SettlementPending:
		row.CreatedAt = sql.NullTime{Time: status.CreatedAt, Valid: true}
	case domain.SettlementApproved:
		row.ApprovedAt = sql.NullTime{Time: status.ApprovedAt, Valid: true}
		row.ApprovedBy = sql.NullString{String: status.ApprovedBy, Valid: true}
	case domain.SettlementPaid:
		row.PaidAt = sql.NullTime{Time: status.PaidAt, Valid: true}
		row.TransactionID = sql.NullString{String: status.TransactionID, Valid: true}
	case domain.SettlementRejected:
		row.RejectedAt = sql.NullTime{Time: status.RejectedAt, Valid: true}
		row.RejectReason = sql.NullString{String: status.Reason, Valid: true}
	default:
		return settlementRow{}, fmt.Errorf("unknown settlement status type: %T", settlement.Status)
	}

	return row, nil
}

// settlementFromRow rebuilds the aggregate through the checked constructor so
// a row whose amounts no longer reconcile is rejected at the boundary.
func settlementFromRow(row settlementRow, items []domain.SettlementItem) (domain.Settlement, error) {
	currency, err := domain.ToCurrency(row.Currency)
	if err != nil {
		return domain.Settlement{}, errors.Wrap(err, "corrupt settlement row")
	}

	total, err := domain.NewMoney(row.TotalAmount, currency)
	if err != nil {
		return domain.Settlement{}, errors.Wrap(err, "corrupt settlement row")
	}
	fee, err := domain.NewMoney(row.FeeAmount, currency)
	if err != nil {
		return domain.Settlement{}, errors.Wrap(err, "corrupt settlement row")
	}
	net, err := domain.NewMoney(row.NetAmount, currency)
	if err != nil {
		return domain.Settlement{}, errors.Wrap(err, "corrupt settlement row")
	}

	var status domain.SettlementStatus
	switch row.Status {
	case "pending":
		status = domain.SettlementPending{CreatedAt: row.CreatedAt.Time}
	case "approved":
		status = domain.SettlementApproved{ApprovedAt: row.ApprovedAt.Time, ApprovedBy: row.ApprovedBy.String}
	case "paid":
		status = domain.SettlementPaid{PaidAt: row.PaidAt.Time, TransactionID: row.TransactionID.String}
	case "rejected":
		status = domain.SettlementRejected{RejectedAt: row.RejectedAt.Time, Reason: row.RejectReason.String}
	default:
		return domain.Settlement{}, fmt.Errorf("unknown settlement status: %q", row.Status)
	}

	settlement, err := domain.ReconstituteSettlement(
		row.ID, row.PartnerID, row.SettlementDate, items,
		total, fee, net, row.FeeRate, status,
	)
	return settlement, errors.Wrap(err, "corrupt settlement row")
}
