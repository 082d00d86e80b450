// Package money defines the minor-units monetary value used throughout the
// ledger and payment protocol. No floating point is used anywhere in the
// amount path.
package money

import "fmt"

// Money is an amount in integer minor units (e.g. cents) paired with a
// currency code. Zero value is not a valid Money for any mutating operation.
type Money struct {
	Amount   int64
	Currency string
}

// New builds a Money, rejecting non-positive amounts and malformed currency
// codes. Most call sites that accept a request from a wire client should
// validate through this constructor.
func New(amount int64, currency string) (Money, error) {
	m := Money{Amount: amount, Currency: currency}
	if err := m.ValidatePositive(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// ValidateCurrency checks the currency code shape only (3-4 characters),
// independent of the amount.
func (m Money) ValidateCurrency() error {
	if len(m.Currency) < 3 || len(m.Currency) > 4 {
		return fmt.Errorf("currency must be 3-4 characters, got %q", m.Currency)
	}
	return nil
}

// ValidatePositive checks amount > 0 and currency shape, per the amount
// boundary rules in the reservation and credit operations (amount <= 0 is
// rejected here; amounts above math.MaxInt64 cannot be held by the int64
// type at all).
func (m Money) ValidatePositive() error {
	if m.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", m.Amount)
	}
	return m.ValidateCurrency()
}

// SameCurrency reports whether two Money values share a currency code.
func (m Money) SameCurrency(other Money) bool {
	return m.Currency == other.Currency
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}
