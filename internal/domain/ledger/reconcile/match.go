package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"

	"ledger/internal/core/id"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/money"
)

type openLine struct {
	line             *ledger.Line
	residual         decimal.Decimal
	residualCurrency decimal.Decimal
}

// SharedCurrency returns the foreign currency every line carries, nil when
// at least one line is in company currency or two lines differ.
func SharedCurrency(lines []*ledger.Line) *id.ID {
	var shared *id.ID
	for _, line := range lines {
		if line.CurrencyID == nil {
			return nil
		}
		if shared == nil {
			shared = line.CurrencyID
			continue
		}
		if *shared != *line.CurrencyID {
			return nil
		}
	}
	return shared
}

// Match pairs open debit and credit lines oldest first and returns one
// partial per pair. Each pair settles min(debit residual, -credit residual);
// a line leaves its queue once its residual is zero. When every line shares
// one foreign currency the foreign residuals drive the matching.
func Match(lines []*ledger.Line, companyPlaces, currencyPlaces int32) []*ledger.PartialReconcile {
	byCurrency := SharedCurrency(lines) != nil

	var debits, credits []*openLine
	for _, line := range lines {
		o := &openLine{line: line, residual: line.AmountResidual, residualCurrency: line.AmountResidualCurrency}
		switch sign(o, byCurrency) {
		case 1:
			debits = append(debits, o)
		case -1:
			credits = append(credits, o)
		}
	}
	fifo(debits)
	fifo(credits)

	partials := make([]*ledger.PartialReconcile, 0)
	for len(debits) > 0 && len(credits) > 0 {
		d, c := debits[0], credits[0]

		amount := decimal.Max(decimal.Zero, money.Min(d.residual, c.residual.Neg()))
		p := ledger.NewPartialReconcile(d.line.ID, c.line.ID, amount)
		if d.line.CurrencyID != nil && d.line.SameCurrency(c.line) {
			currencyID := *d.line.CurrencyID
			p.CurrencyID = &currencyID
			p.AmountCurrency = decimal.Max(decimal.Zero, money.Min(d.residualCurrency, c.residualCurrency.Neg()))
		}

		d.residual = money.Round(d.residual.Sub(p.Amount), companyPlaces)
		c.residual = money.Round(c.residual.Add(p.Amount), companyPlaces)
		if p.CurrencyID != nil {
			d.residualCurrency = money.Round(d.residualCurrency.Sub(p.AmountCurrency), currencyPlaces)
			c.residualCurrency = money.Round(c.residualCurrency.Add(p.AmountCurrency), currencyPlaces)
		}

		if !p.Amount.IsZero() || !p.AmountCurrency.IsZero() {
			partials = append(partials, p)
		}

		dDone, cDone := settled(d, byCurrency), settled(c, byCurrency)
		if !dDone && !cDone {
			// nothing left to move between the two
			dDone = true
		}
		if dDone {
			debits = debits[1:]
		}
		if cDone {
			credits = credits[1:]
		}
	}
	return partials
}

// sign places a line on the debit or credit side. Exchange difference lines
// carry no foreign residual and fall back to their company residual.
func sign(o *openLine, byCurrency bool) int {
	if byCurrency && !o.residualCurrency.IsZero() {
		return o.residualCurrency.Sign()
	}
	return o.residual.Sign()
}

func settled(o *openLine, byCurrency bool) bool {
	if byCurrency {
		return o.residualCurrency.IsZero()
	}
	return o.residual.IsZero()
}

// fifo orders lines by maturity, then currency, then id.
func fifo(lines []*openLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		a, b := lines[i].line, lines[j].line
		if da, db := a.MaturityOrDate(), b.MaturityOrDate(); !da.Equal(db) {
			return da.Before(db)
		}
		if ca, cb := currencyKey(a), currencyKey(b); ca != cb {
			return ca < cb
		}
		return a.ID.String() < b.ID.String()
	})
}

func currencyKey(line *ledger.Line) string {
	if line.CurrencyID == nil {
		return ""
	}
	return line.CurrencyID.String()
}
