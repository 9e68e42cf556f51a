package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyScale is the number of decimal places carried by the currency.
// Balances and amounts are stored as int64 minor units at this scale.
const CurrencyScale = 2

// ParseAmount converts a human-entered decimal string ("40.00") into minor
// units. Rejects non-positive values and anything with more than
// CurrencyScale decimal places.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.Exponent() < -CurrencyScale {
		return 0, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, CurrencyScale)
	}
	minor := d.Shift(CurrencyScale)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, CurrencyScale)
	}
	units := minor.IntPart()
	if units <= 0 {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	return units, nil
}

// ValidateMinorUnits checks an amount already expressed in minor units.
func ValidateMinorUnits(units int64) error {
	if units <= 0 {
		return fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	return nil
}

// FormatAmount renders minor units as a fixed two-decimal string ("40.00").
func FormatAmount(units int64) string {
	return decimal.New(units, -CurrencyScale).StringFixed(CurrencyScale)
}
