package balance

import (
	"github.com/shopspring/decimal"

	"ledger/internal/domain/catalogs/cash_rounding"
	"ledger/internal/domain/ledger"
)

// cashRounding rounds the invoice total to the cash rounding step. The
// difference is booked on a rounding line or added to the biggest tax line.
func (b *balancer) cashRounding() error {
	existing := filterDisplay(b.lines, ledger.DisplayRounding)

	rounding := b.ctx.CashRounding
	if rounding == nil {
		b.remove(existing...)
		return nil
	}

	totalBalance, totalCurrency := sums(b.others(ledger.DisplayRounding), b.ctx.CompanyPlaces)

	var diffBalance, diffCurrency decimal.Decimal
	if !b.move.IsForeign() {
		diffBalance = rounding.Difference(totalBalance.Round(b.ctx.CompanyPlaces))
	} else {
		diffCurrency = rounding.Difference(totalCurrency.Round(b.ctx.Places))
		converted, err := b.toCompany(diffCurrency)
		if err != nil {
			return err
		}
		diffBalance = converted
	}

	if diffBalance.IsZero() && diffCurrency.IsZero() {
		b.remove(existing...)
		return nil
	}

	switch rounding.Strategy {
	case cash_rounding.BiggestTax:
		b.remove(existing...)
		var biggest *ledger.Line
		for _, line := range b.lines {
			if !line.IsTaxLine() {
				continue
			}
			if biggest == nil || line.Balance().Abs().GreaterThan(biggest.Balance().Abs()) {
				biggest = line
			}
		}
		if biggest == nil {
			return nil
		}
		biggest.SetBalance(biggest.Balance().Add(diffBalance))
		if b.move.IsForeign() {
			biggest.AmountCurrency = biggest.AmountCurrency.Add(diffCurrency)
		}
		return nil

	default:
		var line *ledger.Line
		if len(existing) > 0 {
			line = existing[0]
			b.remove(existing[1:]...)
		} else {
			line = b.newLine(ledger.DisplayRounding, *rounding.AccountID, rounding.Name)
		}
		line.AccountID = *rounding.AccountID
		line.SetBalance(diffBalance)
		if b.move.IsForeign() {
			currencyID := b.move.CurrencyID
			line.CurrencyID = &currencyID
			line.AmountCurrency = diffCurrency
		}
		return nil
	}
}

func filterDisplay(lines []*ledger.Line, display ledger.DisplayType) []*ledger.Line {
	out := make([]*ledger.Line, 0)
	for _, line := range lines {
		if line.DisplayType == display {
			out = append(out, line)
		}
	}
	return out
}
