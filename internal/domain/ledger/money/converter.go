package money

import (
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core/id"
)

// Converter converts amounts between currencies of a rate table.
type Converter struct {
	rates *RateTable
}

// NewConverter creates a converter over rates.
func NewConverter(rates *RateTable) *Converter {
	return &Converter{rates: rates}
}

// Rates returns the underlying rate table.
func (c *Converter) Rates() *RateTable {
	return c.rates
}

// Rate returns how many units of to buy one unit of from on date.
func (c *Converter) Rate(from, to, companyID id.ID, date time.Time) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	fromRate, err := c.rates.RateAt(from, companyID, date)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := c.rates.RateAt(to, companyID, date)
	if err != nil {
		return decimal.Zero, err
	}
	return toRate.Div(fromRate), nil
}

// Convert converts amount from one currency to another at the rate in force
// on date, rounded to the target currency.
func (c *Converter) Convert(amount decimal.Decimal, from, to, companyID id.ID, date time.Time) (decimal.Decimal, error) {
	places, err := c.rates.Places(to)
	if err != nil {
		return decimal.Zero, err
	}
	rate, err := c.Rate(from, to, companyID, date)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate).Round(places), nil
}

// Round rounds amount to the decimal places of a currency.
func (c *Converter) Round(amount decimal.Decimal, currencyID id.ID) (decimal.Decimal, error) {
	places, err := c.rates.Places(currencyID)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Round(places), nil
}
