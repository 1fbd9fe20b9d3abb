package balance

import (
	"slices"

	"github.com/shopspring/decimal"

	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/tax"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/taxcalc"
)

// taxKey identifies the tax line aggregating base lines.
type taxKey struct {
	taxID      id.ID
	accountID  id.ID
	currencyID id.ID
	analyticID id.ID
}

type taxEntry struct {
	key            taxKey
	tax            *tax.Tax
	amountCurrency decimal.Decimal
	base           decimal.Decimal
	exigible       bool
	line           *ledger.Line
	used           bool
}

func (b *balancer) compute(line *ledger.Line, taxes []*tax.Tax, price decimal.Decimal, places int32) (taxcalc.Result, error) {
	return taxcalc.ComputeAll(taxcalc.Input{
		Quantity:      line.Quantity,
		PriceUnit:     price,
		Discount:      line.Discount,
		Places:        places,
		Taxes:         taxes,
		RoundGlobally: b.ctx.RoundGlobally,
		IsRefund:      b.move.Type.IsRefund(),
	})
}

func (b *balancer) currencyKey() id.ID {
	if b.move.IsForeign() {
		return b.move.CurrencyID
	}
	return id.Nil()
}

func (b *balancer) existingKey(line *ledger.Line) taxKey {
	key := taxKey{
		taxID:      *line.TaxLineID,
		accountID:  line.AccountID,
		currencyID: b.currencyKey(),
	}
	if t, ok := b.ctx.Taxes[key.taxID]; ok && t.Analytic && line.AnalyticAccountID != nil {
		key.analyticID = *line.AnalyticAccountID
	}
	return key
}

// taxLines aggregates the taxes of all base lines into one line per key.
// Existing tax lines are reused by key; those whose key no longer has a base
// line are dropped; a key whose amount is zero creates no line but zeroes an
// existing one.
func (b *balancer) taxLines() error {
	entries := make(map[taxKey]*taxEntry)
	order := make([]taxKey, 0)
	drop := make([]*ledger.Line, 0)

	for _, line := range b.lines {
		if !line.IsTaxLine() {
			continue
		}
		key := b.existingKey(line)
		if _, dup := entries[key]; dup {
			drop = append(drop, line)
			continue
		}
		entries[key] = &taxEntry{key: key, tax: b.ctx.Taxes[key.taxID], line: line}
		order = append(order, key)
	}

	for _, line := range b.lines {
		if !line.IsBaseLine() || len(line.TaxIDs) == 0 {
			continue
		}
		taxes, err := b.lineTaxes(line)
		if err != nil {
			return err
		}
		res, err := b.compute(line, taxes, line.PriceUnit.Mul(b.sign), b.ctx.Places)
		if err != nil {
			return err
		}
		for _, tr := range res.Taxes {
			key := taxKey{
				taxID:      tr.TaxID,
				accountID:  line.AccountID,
				currencyID: b.currencyKey(),
			}
			if tr.AccountID != nil {
				key.accountID = *tr.AccountID
			}
			if tr.Analytic && line.AnalyticAccountID != nil {
				key.analyticID = *line.AnalyticAccountID
			}

			entry, ok := entries[key]
			if !ok {
				entry = &taxEntry{key: key}
				entries[key] = entry
				order = append(order, key)
			}
			entry.tax = tr.Tax
			entry.used = true
			entry.exigible = tr.Exigibility != tax.OnPayment
			entry.amountCurrency = entry.amountCurrency.Add(tr.Amount)
			entry.base = entry.base.Add(tr.Base.Mul(b.sign))
		}
	}

	for _, key := range order {
		entry := entries[key]
		if !entry.used {
			if entry.line != nil {
				drop = append(drop, entry.line)
			}
			continue
		}

		amount := entry.amountCurrency.Round(b.ctx.Places)
		if amount.IsZero() && entry.line == nil {
			continue
		}

		line := entry.line
		if line == nil {
			taxID := entry.tax.ID
			line = b.newLine(ledger.DisplayTax, key.accountID, entry.tax.Name)
			line.TaxLineID = &taxID
			if !id.IsNil(key.analyticID) {
				analyticID := key.analyticID
				line.AnalyticAccountID = &analyticID
			}
		}
		if err := b.setAmounts(line, amount); err != nil {
			return err
		}
		base, err := b.toCompany(entry.base)
		if err != nil {
			return err
		}
		line.TaxBaseAmount = base
		line.TaxExigible = entry.exigible
	}

	b.remove(drop...)
	return nil
}

// NeedsTaxRecompute reports whether an edit from before to after requires
// tax lines to be regenerated. Only changes to base lines count: editing or
// deleting a tax line alone keeps the remaining tax lines as entered.
func NeedsTaxRecompute(before, after []*ledger.Line) bool {
	prev := make(map[id.ID]*ledger.Line)
	for _, line := range before {
		if line.IsBaseLine() {
			prev[line.ID] = line
		}
	}

	seen := 0
	for _, line := range after {
		if !line.IsBaseLine() {
			continue
		}
		old, ok := prev[line.ID]
		if !ok || baseChanged(old, line) {
			return true
		}
		seen++
	}
	return seen != len(prev)
}

func baseChanged(a, b *ledger.Line) bool {
	return !a.Quantity.Equal(b.Quantity) ||
		!a.PriceUnit.Equal(b.PriceUnit) ||
		!a.Discount.Equal(b.Discount) ||
		a.AccountID != b.AccountID ||
		!optionalEqual(a.AnalyticAccountID, b.AnalyticAccountID) ||
		!slices.Equal(a.TaxIDs, b.TaxIDs)
}

func optionalEqual(a, b *id.ID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
