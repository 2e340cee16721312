// ==============================================================================
// COUPON REPOSITORY - internal/repository/postgres/coupon.go
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
	"github.com/shopspring/decimal"
)

type CouponRepository struct {
	db *sqlx.DB
}

func NewCouponRepository(db *sqlx.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// couponRow flattens the rule and status sum types into nullable columns.
// rule_type and status discriminate which columns are meaningful.
type couponRow struct {
	ID             uuid.UUID       `db:"id"`
	Code           string          `db:"code"`
	Currency       string          `db:"currency"`
	RuleType       string          `db:"rule_type"`
	RuleAmount     decimal.Decimal `db:"rule_amount"`
	RuleRate       int             `db:"rule_rate"`
	MinOrderAmount decimal.Decimal `db:"min_order_amount"`
	Status         string          `db:"status"`
	IssuedAt       sql.NullTime    `db:"issued_at"`
	ExpiresAt      sql.NullTime    `db:"expires_at"`
	UsedAt         sql.NullTime    `db:"used_at"`
	UsedOrderID    uuid.NullUUID   `db:"used_order_id"`
	ExpiredAt      sql.NullTime    `db:"expired_at"`
}

func (r *CouponRepository) Create(ctx context.Context, coupon domain.Coupon) error {
	row, err := couponToRow(coupon)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO coupons (
			id, code, currency, rule_type, rule_amount, rule_rate,
			min_order_amount, status, issued_at, expires_at, used_at,
			used_order_id, expired_at
		) VALUES (
			:id, :code, :currency, :rule_type, :rule_amount, :rule_rate,
			:min_order_amount, :status, :issued_at, :expires_at, :used_at,
			:used_order_id, :expired_at
		)
	`

	_, err = r.db.NamedExecContext(ctx, query, row)
	return errors.Wrap(err, "failed to create coupon")
}

func (r *CouponRepository) Update(ctx context.Context, coupon domain.Coupon) error {
	row, err := couponToRow(coupon)
	if err != nil {
		return err
	}

	query := `
		UPDATE coupons SET
			status = :status, used_at = :used_at,
			used_order_id = :used_order_id, expired_at = :expired_at
		WHERE id = :id
	`

	_, err = r.db.NamedExecContext(ctx, query, row)
	return errors.Wrap(err, "failed to update coupon")
}

func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	var row couponRow
	query := `SELECT * FROM coupons WHERE code = $1`

	err := r.db.GetContext(ctx, &row, query, code)
	if err == sql.ErrNoRows {
		return domain.Coupon{}, errors.ErrCouponNotFound
	}
	if err != nil {
		return domain.Coupon{}, errors.Wrap(err, "failed to find coupon")
	}

	return couponFromRow(row)
}

func (r *CouponRepository) FindExpiredIssued(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	var rows []couponRow
	query := `SELECT * FROM coupons WHERE status = 'issued' AND expires_at < $1`

	if err := r.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, errors.Wrap(err, "failed to find expired coupons")
	}

	coupons := make([]domain.Coupon, 0, len(rows))
	for _, row := range rows {
		coupon, err := couponFromRow(row)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, coupon)
	}
	return coupons, nil
}

func couponToRow(coupon domain.Coupon) (couponRow, error) {
	row := couponRow{
		ID:             coupon.ID,
		Code:           coupon.Code,
		Currency:       string(coupon.MinOrderAmount.Currency()),
		MinOrderAmount: coupon.MinOrderAmount.Amount(),
	}

	switch rule := coupon.Rule.(type) {
	case domain.FixedAmountRule:
		row.RuleType = "fixed_amount"
		row.RuleAmount = rule.Amount.Amount()
	case domain.PercentageRule:
		row.RuleType = "percentage"
		row.RuleRate = rule.Rate
		row.RuleAmount = rule.MaxDiscount.Amount()
	case domain.FreeShippingRule:
		row.RuleType = "free_shipping"
		row.RuleAmount = rule.ShippingFee.Amount()
	default:
		return couponRow{}, fmt.Errorf("unknown discount rule type: %T", coupon.Rule)
	}

	switch status := coupon.Status.(type) {
	case domain.CouponIssued:
		row.Status = "issued"
		row.IssuedAt = sql.NullTime{Time: status.IssuedAt, Valid: true}
		row.ExpiresAt = sql.NullTime{Time: status.ExpiresAt, Valid: true}
	case domain.CouponUsed:
		row.Status = "used"
		row.UsedAt = sql.NullTime{Time: status.UsedAt, Valid: true}
		row.UsedOrderID = uuid.NullUUID{UUID: status.OrderID, Valid: true}
	case domain.CouponExpired:
		row.Status = "expired"
		row.ExpiredAt = sql.NullTime{Time: status.ExpiredAt, Valid: true}
	default:
		return couponRow{}, fmt.Errorf("unknown coupon status type: %T", coupon.Status)
	}

	return row, nil
}

func couponFromRow(row couponRow) (domain.Coupon, error) {
	currency, err := domain.ToCurrency(row.Currency)
	if err != nil {
		return domain.Coupon{}, errors.Wrap(err, "corrupt coupon row")
	}

	minOrder, err := domain.NewMoney(row.MinOrderAmount, currency)
	if err != nil {
		return domain.Coupon{}, errors.Wrap(err, "corrupt coupon row")
	}

	var rule domain.DiscountRule
	switch row.RuleType {
	case "fixed_amount":
		amount, err := domain.NewMoney(row.RuleAmount, currency)
		if err != nil {
			return domain.Coupon{}, errors.Wrap(err, "corrupt coupon rule")
		}
		rule = domain.FixedAmountRule{Amount: amount}
	case "percentage":
		maxDiscount, err := domain.NewMoney(row.RuleAmount, currency)
		if err != nil {
			return domain.Coupon{}, errors.Wrap(err, "corrupt coupon rule")
		}
		rule = domain.PercentageRule{Rate: row.RuleRate, MaxDiscount: maxDiscount}
	case "free_shipping":
		fee, err := domain.NewMoney(row.RuleAmount, currency)
		if err != nil {
			return domain.Coupon{}, errors.Wrap(err, "corrupt coupon rule")
		}
		rule = domain.FreeShippingRule{ShippingFee: fee}
	default:
		return domain.Coupon{}, fmt.Errorf("unknown coupon rule type: %q", row.RuleType)
	}

	var status domain.CouponStatus
	switch row.Status {
	case "issued":
		status = domain.CouponIssued{IssuedAt: row.IssuedAt.Time, ExpiresAt: row.ExpiresAt.Time}
	case "used":
		status = domain.CouponUsed{UsedAt: row.UsedAt.Time, OrderID: row.UsedOrderID.UUID}
	case "expired":
		status = domain.CouponExpired{ExpiredAt: row.ExpiredAt.Time}
	default:
		return domain.Coupon{}, fmt.Errorf("unknown coupon status: %q", row.Status)
	}

	return domain.Coupon{
		ID:             row.ID,
		Code:           row.Code,
		Rule:           rule,
		Status:         status,
		MinOrderAmount: minOrder,
	}, nil
}
