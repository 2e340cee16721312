package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents ISO 4217 currency codes
type Currency string

const (
	KRW Currency = "KRW" // Korean Won
	JPY Currency = "JPY" // Japanese Yen
	USD Currency = "USD" // US Dollar
	EUR Currency = "EUR" // Euro
)

// remember to add new currencies to the currencyScales map
var currencyScales = map[Currency]int32{
	KRW: 0,
	JPY: 0,
	USD: 2,
	EUR: 2,
}

func ToCurrency(s string) (Currency, error) {
	currency := Currency(s)
	if _, ok := currencyScales[currency]; ok {
		return currency, nil
	}

	return "", errors.New("invalid currency code")
}

// Scale returns the canonical number of decimal places for the currency.
func (c Currency) Scale() int32 {
	return currencyScales[c]
}

func Currencies() []Currency {
	result := make([]Currency, 0, len(currencyScales))
	for currency := range currencyScales {
		result = append(result, currency)
	}
	return result
}

// Money is an immutable amount tagged with a currency. Publicly constructed
// instances are never negative; every operation returns a new value.
// Division and percentage operations round half-to-even at the currency's
// canonical scale.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney validates and normalizes an amount into Money.
// A negative amount or unknown currency is a programming error, not a
// business failure, and aborts construction.
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if _, ok := currencyScales[currency]; !ok {
		return Money{}, fmt.Errorf("invalid currency code: %q", currency)
	}
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("amount must not be negative: %s", amount)
	}

	return Money{
		amount:   amount.RoundBank(currency.Scale()),
		currency: currency,
	}, nil
}

// MustMoney is NewMoney for static amounts; it panics on invalid input.
func MustMoney(amount decimal.Decimal, currency Currency) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Won builds a KRW amount from a whole number.
func Won(amount int64) Money {
	return MustMoney(decimal.NewFromInt(amount), KRW)
}

// Zero returns the additive identity for the currency: a.Add(Zero(c)) == a.
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero.RoundBank(currency.Scale()), currency: currency}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency     { return m.currency }

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(m.currency.Scale()), m.currency)
}

// Add returns the sum of two amounts of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if err := m.requireSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// SubtractChecked returns the difference, failing with InsufficientAmountError
// when the result would be negative. Use where a negative intermediate
// indicates a bug (fee exceeding a total, over-refund).
func (m Money) SubtractChecked(other Money) (Money, error) {
	if err := m.requireSameCurrency(other); err != nil {
		return Money{}, err
	}
	diff := m.amount.Sub(other.amount)
	if diff.IsNegative() {
		return Money{}, &InsufficientAmountError{From: m, Subtract: other}
	}
	return Money{amount: diff, currency: m.currency}, nil
}

// SubtractClamped returns the difference floored at zero. Use where
// over-subtraction is a legitimate business outcome (a discount larger than
// the order amount).
func (m Money) SubtractClamped(other Money) (Money, error) {
	if err := m.requireSameCurrency(other); err != nil {
		return Money{}, err
	}
	diff := m.amount.Sub(other.amount)
	if diff.IsNegative() {
		return Zero(m.currency), nil
	}
	return Money{amount: diff, currency: m.currency}, nil
}

// Multiply scales the amount by a non-negative whole factor.
func (m Money) Multiply(factor int64) Money {
	if factor <= 0 {
		return Zero(m.currency)
	}
	return Money{amount: m.amount.Mul(decimal.NewFromInt(factor)), currency: m.currency}
}

// MultiplyPercent computes percent/100 of the amount, rounded half-to-even at
// the currency's scale. Rates at or below zero yield the zero identity.
func (m Money) MultiplyPercent(percent int) Money {
	if percent <= 0 {
		return Zero(m.currency)
	}
	product := m.amount.Mul(decimal.NewFromInt(int64(percent))).Div(decimal.NewFromInt(100))
	return Money{amount: product.RoundBank(m.currency.Scale()), currency: m.currency}
}

// Divide splits the amount by a positive whole divisor, rounded half-to-even
// at the currency's scale.
func (m Money) Divide(divisor int64) (Money, error) {
	if divisor <= 0 {
		return Money{}, fmt.Errorf("divisor must be positive: %d", divisor)
	}
	quotient := m.amount.Div(decimal.NewFromInt(divisor))
	return Money{amount: quotient.RoundBank(m.currency.Scale()), currency: m.currency}, nil
}

// Equal reports value equality: same currency and numerically equal amount.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

func (m Money) LessThan(other Money) (bool, error) {
	if err := m.requireSameCurrency(other); err != nil {
		return false, err
	}
	return m.amount.LessThan(other.amount), nil
}

func (m Money) GreaterThan(other Money) (bool, error) {
	if err := m.requireSameCurrency(other); err != nil {
		return false, err
	}
	return m.amount.GreaterThan(other.amount), nil
}

func (m Money) GreaterThanOrEqual(other Money) (bool, error) {
	if err := m.requireSameCurrency(other); err != nil {
		return false, err
	}
	return m.amount.GreaterThanOrEqual(other.amount), nil
}

func (m Money) requireSameCurrency(other Money) error {
	if m.currency != other.currency {
		return &CurrencyMismatchError{Expected: m.currency, Actual: other.currency}
	}
	return nil
}

// MoneyError is the closed set of money arithmetic failures.
type MoneyError interface {
	error
	moneyError()
}

type CurrencyMismatchError struct {
	Expected Currency
	Actual   Currency
}

func (e *CurrencyMismatchError) moneyError() {}
func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: %s != %s", e.Expected, e.Actual)
}

type InsufficientAmountError struct {
	From     Money
	Subtract Money
}

func (e *InsufficientAmountError) moneyError() {}
func (e *InsufficientAmountError) Error() string {
	return fmt.Sprintf("insufficient amount: cannot subtract %s from %s", e.Subtract, e.From)
}
