package ledger

import (
	"github.com/shopspring/decimal"

	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/account"
)

// ComputeResidual recomputes the open amounts and the reconciled flag of
// line from every partial touching it. Lines on accounts that are not
// reconcilable carry no residual.
func ComputeResidual(line *Line, partials []*PartialReconcile, reconcilable bool, companyPlaces, currencyPlaces int32) {
	if !reconcilable {
		line.Reconciled = false
		line.AmountResidual = decimal.Zero
		line.AmountResidualCurrency = decimal.Zero
		return
	}

	balance := line.Balance()
	amount := balance.Abs()
	amountCurrency := line.AmountCurrency.Abs()

	sign := decimal.NewFromInt(-1)
	if balance.IsPositive() {
		sign = decimal.NewFromInt(1)
	}
	// exchange difference lines only carry a foreign amount
	if balance.IsZero() && line.HasCurrency() && !line.AmountCurrency.IsZero() {
		sign = decimal.NewFromInt(int64(line.AmountCurrency.Sign()))
	}

	for _, p := range partials {
		if !p.Touches(line.ID) {
			continue
		}
		partialSign := sign.Neg()
		if p.CreditLineID == line.ID {
			partialSign = sign
		}
		amount = amount.Add(partialSign.Mul(p.Amount))

		if !line.HasCurrency() || line.AmountCurrency.IsZero() {
			continue
		}
		if p.CurrencyID != nil && *p.CurrencyID == *line.CurrencyID {
			amountCurrency = amountCurrency.Add(partialSign.Mul(p.AmountCurrency))
			continue
		}
		rate := decimal.NewFromInt(1)
		if !balance.IsZero() {
			rate = line.AmountCurrency.Div(balance)
		}
		amountCurrency = amountCurrency.Add(partialSign.Mul(p.Amount.Mul(rate).Round(currencyPlaces)))
	}

	residual := amount.Mul(sign).Round(companyPlaces)
	residualCurrency := decimal.Zero
	if line.HasCurrency() {
		residualCurrency = amountCurrency.Mul(sign).Round(currencyPlaces)
	}

	line.AmountResidual = residual
	line.AmountResidualCurrency = residualCurrency
	line.Reconciled = residual.IsZero() && (!line.HasCurrency() || residualCurrency.IsZero())
}

// PlacesFunc returns the decimal places of a currency.
type PlacesFunc func(currencyID id.ID) int32

// RefreshResiduals recomputes every line from the partials touching it.
func RefreshResiduals(lines []*Line, partials []*PartialReconcile, accounts map[id.ID]*account.Account,
	companyPlaces int32, currencyPlaces PlacesFunc) {
	for _, line := range lines {
		if line.DisplayType.IsCosmetic() {
			continue
		}
		reconcilable := false
		if acc, ok := accounts[line.AccountID]; ok {
			reconcilable = acc.IsReconcilable()
		}
		places := companyPlaces
		if line.HasCurrency() {
			places = currencyPlaces(*line.CurrencyID)
		}
		ComputeResidual(line, partials, reconcilable, companyPlaces, places)
	}
}

// AccountIDs returns the distinct accounts of the lines, cosmetic lines excluded.
func AccountIDs(lines []*Line) []id.ID {
	out := make([]id.ID, 0, len(lines))
	for _, line := range lines {
		if !line.DisplayType.IsCosmetic() {
			out = append(out, line.AccountID)
		}
	}
	return uniqueIDs(out)
}

// LineIDs returns the ids of the lines in order.
func LineIDs(lines []*Line) []id.ID {
	out := make([]id.ID, 0, len(lines))
	for _, line := range lines {
		out = append(out, line.ID)
	}
	return out
}
