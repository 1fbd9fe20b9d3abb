// Package currency provides the Currency catalog and its exchange rates.
package currency

import (
	"context"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core/apperror"
	"ledger/internal/core/entity"
	"ledger/internal/core/id"
)

var isoCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// Currency represents a monetary unit.
type Currency struct {
	entity.Catalog

	// ISOCode is the ISO 4217 alphabetic code (e.g., "USD", "EUR")
	ISOCode string `db:"iso_code" json:"isoCode"`

	// Symbol is the currency symbol (e.g., "$", "€")
	Symbol string `db:"symbol" json:"symbol"`

	// DecimalPlaces is the rounding precision of amounts in this currency
	DecimalPlaces int `db:"decimal_places" json:"decimalPlaces"`

	// IsBase marks the reference currency rates are quoted against
	IsBase bool `db:"is_base" json:"isBase"`
}

// NewCurrency creates a new Currency with two decimal places.
func NewCurrency(isoCode, name, symbol string) *Currency {
	return &Currency{
		Catalog:       entity.NewCatalog(isoCode, name),
		ISOCode:       isoCode,
		Symbol:        symbol,
		DecimalPlaces: 2,
	}
}

// Validate implements entity.Validatable interface.
func (c *Currency) Validate(ctx context.Context) error {
	if err := c.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !isoCodeRe.MatchString(c.ISOCode) {
		return apperror.NewValidation("ISO code must be 3 uppercase letters").
			WithDetail("field", "isoCode").
			WithDetail("value", c.ISOCode)
	}

	if c.DecimalPlaces < 0 || c.DecimalPlaces > 8 {
		return apperror.NewValidation("decimal places must be between 0 and 8").
			WithDetail("field", "decimalPlaces")
	}

	return nil
}

// Places returns the rounding precision as used by decimal.Round.
func (c *Currency) Places() int32 {
	return int32(c.DecimalPlaces)
}

// Format renders an amount with the currency symbol.
func (c *Currency) Format(amount decimal.Decimal) string {
	return amount.StringFixed(c.Places()) + " " + c.Symbol
}

// Rate is the exchange rate of a currency on a date: how many units of the
// currency buy one unit of the base currency. A nil CompanyID applies to all
// companies; company-specific rates win over shared ones on the same date.
type Rate struct {
	ID         id.ID           `db:"id" json:"id"`
	CurrencyID id.ID           `db:"currency_id" json:"currencyId"`
	CompanyID  *id.ID          `db:"company_id" json:"companyId,omitempty"`
	Date       time.Time       `db:"date" json:"date"`
	Rate       decimal.Decimal `db:"rate" json:"rate"`
}

// NewRate creates a rate with a generated ID.
func NewRate(currencyID id.ID, date time.Time, rate decimal.Decimal) *Rate {
	return &Rate{
		ID:         id.New(),
		CurrencyID: currencyID,
		Date:       date,
		Rate:       rate,
	}
}

// Validate checks that the rate is usable for conversion.
func (r *Rate) Validate(ctx context.Context) error {
	if id.IsNil(r.CurrencyID) {
		return apperror.NewValidation("currency is required").WithDetail("field", "currencyId")
	}
	if r.Date.IsZero() {
		return apperror.NewValidation("date is required").WithDetail("field", "date")
	}
	if !r.Rate.IsPositive() {
		return apperror.NewValidation("rate must be positive").WithDetail("field", "rate")
	}
	return nil
}
