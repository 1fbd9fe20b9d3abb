// Package balance derives the computed lines of an invoice from its product
// lines: tax lines, the cash rounding line and the payment term lines, with
// debit and credit signed according to the document type.
package balance

import (
	"github.com/shopspring/decimal"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/cash_rounding"
	"ledger/internal/domain/catalogs/payment_term"
	"ledger/internal/domain/catalogs/tax"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/money"
)

// Context is the configuration a move is balanced with. Everything the
// balancer needs is passed in; nothing is looked up.
type Context struct {
	Move *ledger.Move

	// Places is the precision of the document currency
	Places int32

	// CompanyPlaces is the precision of the company currency
	CompanyPlaces int32

	// Converter converts document amounts on the move date
	Converter *money.Converter

	// Taxes holds every tax referenced by the lines, children resolved
	Taxes map[id.ID]*tax.Tax

	PaymentTerm   *payment_term.PaymentTerm
	CashRounding  *cash_rounding.CashRounding
	RoundGlobally bool
}

// Options tunes a balancing run.
type Options struct {
	// RecomputeTaxes regenerates tax lines from the base lines. When false,
	// tax lines are kept as they are, manual amounts included.
	RecomputeTaxes bool
}

type balancer struct {
	ctx   Context
	move  *ledger.Move
	lines []*ledger.Line
	sign  decimal.Decimal
}

// Balance returns the full line set of the move: the given lines with base
// amounts recomputed, followed by tax, rounding and payment term lines.
// Miscellaneous entries are returned as entered, foreign amounts converted.
func Balance(ctx Context, lines []*ledger.Line, opts Options) ([]*ledger.Line, error) {
	if ctx.Move == nil {
		return nil, apperror.NewValidation("move is required")
	}
	b := &balancer{
		ctx:   ctx,
		move:  ctx.Move,
		lines: lines,
		sign:  decimal.NewFromInt(int64(ctx.Move.Type.ProductSign())),
	}

	if !b.move.Type.IsInvoice(true) {
		if err := b.entryLines(); err != nil {
			return nil, err
		}
		return b.lines, nil
	}

	if b.move.PaymentAccountID == nil {
		return nil, apperror.NewValidation("invoices need a receivable or payable account").
			WithDetail("field", "paymentAccountId")
	}

	steps := []func() error{b.baseLines}
	if opts.RecomputeTaxes {
		steps = append(steps, b.taxLines)
	}
	steps = append(steps, b.cashRounding, b.paymentTerms)

	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return b.lines, nil
}

// entryLines converts foreign amounts of lines entered without a company balance.
func (b *balancer) entryLines() error {
	for _, line := range b.lines {
		if line.DisplayType.IsCosmetic() || !line.HasCurrency() || line.AmountCurrency.IsZero() {
			continue
		}
		if !line.Debit.IsZero() || !line.Credit.IsZero() {
			continue
		}
		bal, err := b.ctx.Converter.Convert(line.AmountCurrency, *line.CurrencyID,
			b.move.CompanyCurrencyID, b.move.CompanyID, b.move.Date)
		if err != nil {
			return err
		}
		line.SetBalance(bal)
	}
	return nil
}

// baseLines sets the balance of product lines from their tax-excluded subtotal.
func (b *balancer) baseLines() error {
	for _, line := range b.lines {
		if !line.IsBaseLine() {
			continue
		}
		taxes, err := b.lineTaxes(line)
		if err != nil {
			return err
		}
		res, err := b.compute(line, taxes, line.PriceUnit, b.ctx.Places)
		if err != nil {
			return err
		}
		if err := b.setAmounts(line, res.TotalExcluded.Mul(b.sign)); err != nil {
			return err
		}
		line.TaxExigible = true
		for _, t := range taxes {
			if t.IsCashBasis() {
				line.TaxExigible = false
			}
		}
	}
	return nil
}

// setAmounts writes a document currency amount and its company balance.
func (b *balancer) setAmounts(line *ledger.Line, amount decimal.Decimal) error {
	amount = amount.Round(b.ctx.Places)
	if !b.move.IsForeign() {
		line.CurrencyID = nil
		line.AmountCurrency = decimal.Zero
		line.SetBalance(amount.Round(b.ctx.CompanyPlaces))
		return nil
	}

	bal, err := b.toCompany(amount)
	if err != nil {
		return err
	}
	currencyID := b.move.CurrencyID
	line.CurrencyID = &currencyID
	line.AmountCurrency = amount
	line.SetBalance(bal)
	return nil
}

func (b *balancer) toCompany(amount decimal.Decimal) (decimal.Decimal, error) {
	if !b.move.IsForeign() {
		return amount.Round(b.ctx.CompanyPlaces), nil
	}
	return b.ctx.Converter.Convert(amount, b.move.CurrencyID, b.move.CompanyCurrencyID,
		b.move.CompanyID, b.move.Date)
}

func (b *balancer) lineTaxes(line *ledger.Line) ([]*tax.Tax, error) {
	taxes := make([]*tax.Tax, 0, len(line.TaxIDs))
	for _, taxID := range line.TaxIDs {
		t, ok := b.ctx.Taxes[taxID]
		if !ok {
			return nil, apperror.NewNotFound("tax", taxID.String())
		}
		taxes = append(taxes, t)
	}
	return taxes, nil
}

// others returns the lines the payment terms balance: everything except
// payment term and cosmetic lines.
func (b *balancer) others(skip ...ledger.DisplayType) []*ledger.Line {
	out := make([]*ledger.Line, 0, len(b.lines))
	for _, line := range b.lines {
		if line.DisplayType.IsCosmetic() || line.DisplayType == ledger.DisplayPaymentTerm {
			continue
		}
		skipped := false
		for _, d := range skip {
			if line.DisplayType == d {
				skipped = true
			}
		}
		if !skipped {
			out = append(out, line)
		}
	}
	return out
}

func (b *balancer) remove(drop ...*ledger.Line) {
	if len(drop) == 0 {
		return
	}
	gone := make(map[*ledger.Line]struct{}, len(drop))
	for _, line := range drop {
		gone[line] = struct{}{}
	}
	kept := make([]*ledger.Line, 0, len(b.lines))
	for _, line := range b.lines {
		if _, ok := gone[line]; !ok {
			kept = append(kept, line)
		}
	}
	b.lines = kept
}

func (b *balancer) newLine(display ledger.DisplayType, accountID id.ID, name string) *ledger.Line {
	line := ledger.NewLine(accountID, name, decimal.Zero)
	line.DisplayType = display
	line.MoveID = b.move.ID
	line.CompanyID = b.move.CompanyID
	line.Date = b.move.Date
	line.PartnerID = b.move.PartnerID
	line.Sequence = 10 * (len(b.lines) + 1)
	b.lines = append(b.lines, line)
	return line
}

func sums(lines []*ledger.Line, places int32) (balance, amountCurrency decimal.Decimal) {
	balance, amountCurrency = decimal.Zero, decimal.Zero
	for _, line := range lines {
		balance = balance.Add(line.Balance().Round(places))
		amountCurrency = amountCurrency.Add(line.AmountCurrency)
	}
	return balance, amountCurrency
}
