// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Hundred is used for percentage arithmetic.
var Hundred = decimal.NewFromInt(100)

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Percent returns amount * pct / 100 without rounding.
func Percent(amount, pct Money) Money {
	return amount.Mul(pct).Div(Hundred)
}

// Sum adds all values.
func Sum(values ...Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// CopySign returns abs(value) carrying the sign of sign; zero sign keeps value positive.
func CopySign(value, sign Money) Money {
	if sign.IsNegative() {
		return value.Abs().Neg()
	}
	return value.Abs()
}

// DebitCredit splits a signed balance into its debit and credit parts.
func DebitCredit(balance Money) (debit, credit Money) {
	if balance.IsPositive() {
		return balance, decimal.Zero
	}
	return decimal.Zero, balance.Neg()
}
