// Package cash_rounding provides cash rounding rules: totals payable in cash
// are rounded to the smallest coin, the difference booked on a rounding line
// or absorbed by the biggest tax line.
package cash_rounding

import (
	"context"

	"github.com/shopspring/decimal"

	"ledger/internal/core/apperror"
	"ledger/internal/core/entity"
	"ledger/internal/core/id"
)

// Strategy selects where the rounding difference goes.
type Strategy string

const (
	AddInvoiceLine Strategy = "add_invoice_line"
	BiggestTax     Strategy = "biggest_tax"
)

// Method is the rounding direction.
type Method string

const (
	MethodUp     Method = "UP"
	MethodDown   Method = "DOWN"
	MethodHalfUp Method = "HALF-UP"
)

// CashRounding is one rounding rule.
type CashRounding struct {
	entity.Catalog

	// Rounding is the smallest representable step, e.g. 0.05
	Rounding decimal.Decimal `db:"rounding" json:"rounding"`
	Strategy Strategy        `db:"strategy" json:"strategy"`
	Method   Method          `db:"rounding_method" json:"method"`

	// AccountID receives the difference with the add_invoice_line strategy
	AccountID *id.ID `db:"account_id" json:"accountId,omitempty"`
}

// NewCashRounding creates a half-up rule absorbed by the biggest tax line.
func NewCashRounding(code, name string, rounding decimal.Decimal) *CashRounding {
	return &CashRounding{
		Catalog:  entity.NewCatalog(code, name),
		Rounding: rounding,
		Strategy: BiggestTax,
		Method:   MethodHalfUp,
	}
}

// Validate implements entity.Validatable interface.
func (r *CashRounding) Validate(ctx context.Context) error {
	if err := r.Catalog.Validate(ctx); err != nil {
		return err
	}
	if !r.Rounding.IsPositive() {
		return apperror.NewValidation("rounding step must be positive").WithDetail("field", "rounding")
	}
	switch r.Method {
	case MethodUp, MethodDown, MethodHalfUp:
	default:
		return apperror.NewValidation("unknown rounding method").WithDetail("field", "method")
	}
	switch r.Strategy {
	case AddInvoiceLine:
		if r.AccountID == nil {
			return apperror.NewValidation("the add_invoice_line strategy needs an account").
				WithDetail("field", "accountId")
		}
	case BiggestTax:
	default:
		return apperror.NewValidation("unknown rounding strategy").WithDetail("field", "strategy")
	}
	return nil
}

// Round rounds amount to a multiple of the rounding step. UP and DOWN move
// away from and towards zero respectively.
func (r *CashRounding) Round(amount decimal.Decimal) decimal.Decimal {
	steps := amount.Abs().Div(r.Rounding)
	switch r.Method {
	case MethodUp:
		steps = steps.Ceil()
	case MethodDown:
		steps = steps.Floor()
	default:
		steps = steps.Round(0)
	}
	rounded := steps.Mul(r.Rounding)
	if amount.IsNegative() {
		return rounded.Neg()
	}
	return rounded
}

// Difference returns how much must be added to amount to reach its rounded value.
func (r *CashRounding) Difference(amount decimal.Decimal) decimal.Decimal {
	return r.Round(amount).Sub(amount)
}
