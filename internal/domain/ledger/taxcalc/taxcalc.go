// Package taxcalc computes the taxes of an invoice line: per-tax bases and
// amounts plus the line totals with and without taxes.
package taxcalc

import (
	"sort"

	"github.com/shopspring/decimal"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
	"ledger/internal/core/types"
	"ledger/internal/domain/catalogs/tax"
)

// extraPlaces is added to the currency precision when rounding globally.
const extraPlaces = 5

// Input describes one line to tax.
type Input struct {
	// BaseAmount overrides PriceUnit x Quantity when set
	BaseAmount *decimal.Decimal

	Quantity  decimal.Decimal
	PriceUnit decimal.Decimal

	// Discount is a percentage applied to PriceUnit
	Discount decimal.Decimal

	// Places is the decimal precision of the line currency
	Places int32

	Taxes []*tax.Tax

	// ForcePriceInclude treats every tax as included in the price
	ForcePriceInclude bool

	// RoundGlobally rounds only the totals to Places
	RoundGlobally bool

	// IsRefund selects refund accounts
	IsRefund bool
}

// TaxResult is the contribution of one tax.
type TaxResult struct {
	Tax      *tax.Tax
	TaxID    id.ID
	Name     string
	Sequence int

	Base   decimal.Decimal
	Amount decimal.Decimal

	// AccountID is where the tax line is booked (a suspense account for
	// taxes due on payment)
	AccountID *id.ID

	// DueAccountID is where the tax is finally due
	DueAccountID *id.ID

	PriceInclude bool
	Exigibility  tax.Exigibility
	Analytic     bool
}

// Result holds the totals of a line.
type Result struct {
	TotalExcluded decimal.Decimal
	TotalIncluded decimal.Decimal

	// Base is the running base after the last tax
	Base decimal.Decimal

	Taxes []TaxResult
}

// TaxAmount returns the sum of all tax amounts.
func (r Result) TaxAmount() decimal.Decimal {
	total := decimal.Zero
	for _, t := range r.Taxes {
		total = total.Add(t.Amount)
	}
	return total
}

type running struct {
	totalExcluded decimal.Decimal
	totalIncluded decimal.Decimal
	base          decimal.Decimal
}

// ComputeAll applies the taxes in ascending sequence. Each amount is
// rounded as soon as it is computed; price-included taxes are taken out of
// the excluded total, the others are added to the included total. Taxes
// flagged include_base_amount raise the base of the taxes after them.
func ComputeAll(in Input) (Result, error) {
	prec := in.Places
	if in.RoundGlobally {
		prec += extraPlaces
	}

	price := in.PriceUnit.Mul(decimal.NewFromInt(1).Sub(in.Discount.Div(types.Hundred)))
	base := price.Mul(in.Quantity)
	if in.BaseAmount != nil {
		base = *in.BaseAmount
	}
	base = base.Round(prec)

	state := &running{totalExcluded: base, totalIncluded: base, base: base}
	c := &computer{in: in, prec: prec, price: price}

	taxes, err := c.apply(state, in.Taxes, 0)
	if err != nil {
		return Result{}, err
	}
	sort.SliceStable(taxes, func(i, j int) bool {
		return taxes[i].Sequence < taxes[j].Sequence
	})

	return Result{
		TotalExcluded: state.totalExcluded.Round(in.Places),
		TotalIncluded: state.totalIncluded.Round(in.Places),
		Base:          state.base.Round(in.Places),
		Taxes:         taxes,
	}, nil
}

type computer struct {
	in    Input
	prec  int32
	price decimal.Decimal
}

func (c *computer) apply(state *running, taxes []*tax.Tax, depth int) ([]TaxResult, error) {
	if depth > 5 {
		return nil, apperror.NewValidation("group taxes are nested too deeply")
	}

	sorted := make([]*tax.Tax, len(taxes))
	copy(sorted, taxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Sequence < sorted[j].Sequence
	})

	out := make([]TaxResult, 0, len(sorted))
	for _, t := range sorted {
		if t.AmountType == tax.AmountGroup {
			if len(t.Children) != len(t.ChildrenIDs) {
				return nil, apperror.NewValidation("children of group tax are not loaded").
					WithDetail("tax", t.Code)
			}
			groupBase := state.base
			children, err := c.apply(state, t.Children, depth+1)
			if err != nil {
				return nil, err
			}
			if !t.IncludeBaseAmount {
				state.base = groupBase
			}
			out = append(out, children...)
			continue
		}

		included := t.PriceInclude || c.in.ForcePriceInclude
		amount, err := c.amount(t, state.base, included)
		if err != nil {
			return nil, err
		}
		amount = amount.Round(c.prec)

		if included {
			state.totalExcluded = state.totalExcluded.Sub(amount)
			state.base = state.base.Sub(amount)
		} else {
			state.totalIncluded = state.totalIncluded.Add(amount)
		}

		out = append(out, TaxResult{
			Tax:          t,
			TaxID:        t.ID,
			Name:         t.Name,
			Sequence:     t.Sequence,
			Base:         state.base,
			Amount:       amount,
			AccountID:    t.PostingAccount(c.in.IsRefund),
			DueAccountID: t.DueAccount(c.in.IsRefund),
			PriceInclude: included,
			Exigibility:  t.Exigibility,
			Analytic:     t.Analytic,
		})

		if t.IncludeBaseAmount {
			state.base = state.base.Add(amount)
		}
	}
	return out, nil
}

// amount computes the unrounded amount of one non-group tax.
func (c *computer) amount(t *tax.Tax, base decimal.Decimal, included bool) (decimal.Decimal, error) {
	rate := t.Amount.Div(types.Hundred)
	one := decimal.NewFromInt(1)

	switch t.AmountType {
	case tax.AmountFixed:
		qty := c.in.Quantity
		if !base.IsZero() {
			qty = types.CopySign(qty, base)
		}
		return qty.Mul(t.Amount), nil
	case tax.AmountPercent:
		if included {
			return base.Sub(base.Div(one.Add(rate))), nil
		}
		return base.Mul(rate), nil
	case tax.AmountDivision:
		if included {
			return base.Mul(rate), nil
		}
		return base.Div(one.Sub(rate)).Sub(base), nil
	case tax.AmountCode:
		return evalFormula(t, base, c.price, c.in.Quantity)
	default:
		return decimal.Zero, apperror.NewValidation("unsupported tax amount type").
			WithDetail("tax", t.Code).
			WithDetail("amountType", t.AmountType)
	}
}
