// Package money rounds and converts amounts between currencies using a
// table of dated exchange rates. Everything here is pure: the rate table is
// loaded by the caller.
package money

import (
	"github.com/shopspring/decimal"
)

// Round rounds half away from zero to places decimals.
func Round(amount decimal.Decimal, places int32) decimal.Decimal {
	return amount.Round(places)
}

// IsZero reports whether amount rounds to zero at places decimals.
func IsZero(amount decimal.Decimal, places int32) bool {
	return amount.Round(places).IsZero()
}

// Compare compares a and b after rounding their difference to places.
// It returns -1, 0 or +1.
func Compare(a, b decimal.Decimal, places int32) int {
	return a.Sub(b).Round(places).Sign()
}

// Equal reports whether a and b are equal at places decimals.
func Equal(a, b decimal.Decimal, places int32) bool {
	return Compare(a, b, places) == 0
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
