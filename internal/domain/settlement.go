package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// SettlementStatus is the closed set of settlement states.
type SettlementStatus interface {
	settlementStatus()
}

type SettlementPending struct {
	CreatedAt time.Time
}

func (SettlementPending) settlementStatus() {}

type SettlementApproved struct {
	ApprovedAt time.Time
	ApprovedBy string
}

func (SettlementApproved) settlementStatus() {}

type SettlementPaid struct {
	PaidAt        time.Time
	TransactionID string
}

func (SettlementPaid) settlementStatus() {}

type SettlementRejected struct {
	RejectedAt time.Time
	Reason     string
}

func (SettlementRejected) settlementStatus() {}

// SettlementStatusName returns a stable identifier for a settlement status
// variant, used in errors, logs and persistence.
func SettlementStatusName(status SettlementStatus) string {
	switch status.(type) {
	case SettlementPending:
		return "pending"
	case SettlementApproved:
		return "approved"
	case SettlementPaid:
		return "paid"
	case SettlementRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// SettlementItem is one settled transaction within a partner's daily batch.
type SettlementItem struct {
	PaymentID uuid.UUID
	Amount    Money
}

// Settlement aggregates a partner's payments for one day into a payable
// amount. NetAmount always equals TotalAmount minus FeeAmount; the
// constructors enforce it and it never changes after construction.
type Settlement struct {
	ID             uuid.UUID
	PartnerID      uuid.UUID
	SettlementDate time.Time
	Items          []SettlementItem
	TotalAmount    Money
	FeeAmount      Money
	NetAmount      Money
	FeeRate        int
	Status         SettlementStatus
}

// CalculateFee computes the platform fee on total at rate percent, rounded
// half-to-even at the currency's scale. Rates at or below zero charge no fee.
func CalculateFee(total Money, rate int) Money {
	return total.MultiplyPercent(rate)
}

// NewSettlement builds a settlement for a partner's items on a date. An empty
// batch settles to zero amounts. Every item must match the settlement
// currency. A fee rate of 100 or more would consume the whole payout and is
// rejected as a configuration error.
func NewSettlement(id, partnerID uuid.UUID, date time.Time, currency Currency, items []SettlementItem, feeRate int, now time.Time) (Settlement, error) {
	if id == uuid.Nil {
		return Settlement{}, errors.New("settlement id is required")
	}
	if partnerID == uuid.Nil {
		return Settlement{}, errors.New("partner id is required")
	}
	if feeRate >= 100 {
		return Settlement{}, fmt.Errorf("fee rate must be below 100 percent: %d", feeRate)
	}

	total := Zero(currency)
	for _, item := range items {
		sum, err := total.Add(item.Amount)
		if err != nil {
			return Settlement{}, fmt.Errorf("settlement item %s: %w", item.PaymentID, err)
		}
		total = sum
	}

	fee := CalculateFee(total, feeRate)
	net, err := total.SubtractChecked(fee)
	if err != nil {
		return Settlement{}, fmt.Errorf("fee exceeds settlement total: %w", err)
	}

	return Settlement{
		ID:             id,
		PartnerID:      partnerID,
		SettlementDate: date,
		Items:          items,
		TotalAmount:    total,
		FeeAmount:      fee,
		NetAmount:      net,
		FeeRate:        feeRate,
		Status:         SettlementPending{CreatedAt: now},
	}, nil
}

// ReconstituteSettlement rebuilds a settlement from stored amounts, checking
// that net still equals total minus fee. A row that fails the check is
// corrupt and must not re-enter the domain.
func ReconstituteSettlement(id, partnerID uuid.UUID, date time.Time, items []SettlementItem, total, fee, net Money, feeRate int, status SettlementStatus) (Settlement, error) {
	if status == nil {
		return Settlement{}, errors.New("settlement status is required")
	}

	expectedNet, err := total.SubtractChecked(fee)
	if err != nil {
		return Settlement{}, fmt.Errorf("stored fee exceeds total: %w", err)
	}
	if !expectedNet.Equal(net) {
		return Settlement{}, fmt.Errorf("stored net %s does not equal total %s minus fee %s", net, total, fee)
	}

	return Settlement{
		ID:             id,
		PartnerID:      partnerID,
		SettlementDate: date,
		Items:          items,
		TotalAmount:    total,
		FeeAmount:      fee,
		NetAmount:      net,
		FeeRate:        feeRate,
		Status:         status,
	}, nil
}

// Approve is legal only from Pending.
func (s Settlement) Approve(approvedBy string, now time.Time) (Settlement, SettlementError) {
	if _, ok := s.Status.(SettlementPending); !ok {
		return Settlement{}, &InvalidSettlementStateError{SettlementID: s.ID, Operation: "approve", Status: SettlementStatusName(s.Status)}
	}

	approved := s
	approved.Status = SettlementApproved{ApprovedAt: now, ApprovedBy: approvedBy}
	return approved, nil
}

// Pay records the transfer to the partner. Legal only from Approved.
func (s Settlement) Pay(transactionID string, now time.Time) (Settlement, SettlementError) {
	if _, ok := s.Status.(SettlementApproved); !ok {
		return Settlement{}, &InvalidSettlementStateError{SettlementID: s.ID, Operation: "pay", Status: SettlementStatusName(s.Status)}
	}

	paid := s
	paid.Status = SettlementPaid{PaidAt: now, TransactionID: transactionID}
	return paid, nil
}

// Reject is legal only from Pending.
func (s Settlement) Reject(reason string, now time.Time) (Settlement, SettlementError) {
	if _, ok := s.Status.(SettlementPending); !ok {
		return Settlement{}, &InvalidSettlementStateError{SettlementID: s.ID, Operation: "reject", Status: SettlementStatusName(s.Status)}
	}

	rejected := s
	rejected.Status = SettlementRejected{RejectedAt: now, Reason: reason}
	return rejected, nil
}

// Distribute splits total among shares by whole percentages that must sum to
// 100. Any rounding remainder lands on the last share so the shares always
// add back up to exactly total.
func Distribute(total Money, percentages []int) ([]Money, error) {
	if len(percentages) == 0 {
		return nil, errors.New("at least one share is required")
	}
	sum := lo.Sum(percentages)
	if sum != 100 {
		return nil, fmt.Errorf("percentages must sum to 100, got %d", sum)
	}

	shares := make([]Money, len(percentages))
	allocated := Zero(total.Currency())
	for i, pct := range percentages[:len(percentages)-1] {
		share := total.MultiplyPercent(pct)
		shares[i] = share
		next, err := allocated.Add(share)
		if err != nil {
			return nil, err
		}
		allocated = next
	}

	last, err := total.SubtractChecked(allocated)
	if err != nil {
		return nil, fmt.Errorf("allocated shares exceed total: %w", err)
	}
	shares[len(shares)-1] = last
	return shares, nil
}

// TotalNet sums the net payouts of a batch of settlements in one currency.
func TotalNet(settlements []Settlement, currency Currency) (Money, error) {
	total := Zero(currency)
	for _, s := range settlements {
		sum, err := total.Add(s.NetAmount)
		if err != nil {
			return Money{}, fmt.Errorf("settlement %s: %w", s.ID, err)
		}
		total = sum
	}
	return total, nil
}

// PeriodPaidTotal sums the net payouts of settlements already paid out in the
// period, skipping every other status.
func PeriodPaidTotal(settlements []Settlement, from, to time.Time, currency Currency) (Money, error) {
	paid := lo.Filter(settlements, func(s Settlement, _ int) bool {
		if _, ok := s.Status.(SettlementPaid); !ok {
			return false
		}
		return !s.SettlementDate.Before(from) && !s.SettlementDate.After(to)
	})
	return TotalNet(paid, currency)
}

// SettlementError is the closed set of settlement business failures.
type SettlementError interface {
	error
	settlementError()
}

type SettlementNotFoundError struct {
	SettlementID uuid.UUID
}

func (e *SettlementNotFoundError) settlementError() {}
func (e *SettlementNotFoundError) Error() string {
	return fmt.Sprintf("settlement not found: %s", e.SettlementID)
}

type InvalidSettlementStateError struct {
	SettlementID uuid.UUID
	Operation    string
	Status       string
}

func (e *InvalidSettlementStateError) settlementError() {}
func (e *InvalidSettlementStateError) Error() string {
	return fmt.Sprintf("settlement %s: cannot %s from status %s", e.SettlementID, e.Operation, e.Status)
}

type AlreadySettledError struct {
	PartnerID      uuid.UUID
	SettlementDate time.Time
}

func (e *AlreadySettledError) settlementError() {}
func (e *AlreadySettledError) Error() string {
	return fmt.Sprintf("partner %s already settled for %s", e.PartnerID, e.SettlementDate.Format("2006-01-02"))
}

type InvalidFeeRateError struct {
	FeeRate int
}

func (e *InvalidFeeRateError) settlementError() {}
func (e *InvalidFeeRateError) Error() string {
	return fmt.Sprintf("invalid settlement fee rate: %d", e.FeeRate)
}
