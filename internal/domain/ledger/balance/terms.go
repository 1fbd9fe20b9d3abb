package balance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core/types"
	"ledger/internal/domain/catalogs/payment_term"
	"ledger/internal/domain/ledger"
)

// Installment is one computed due amount.
type Installment struct {
	Date   time.Time
	Amount decimal.Decimal
}

// Compute splits total over the installments of term. Amounts are rounded to
// places and the last installment absorbs whatever rounding leaves over, so
// the installments always sum to total.
func Compute(term *payment_term.PaymentTerm, total decimal.Decimal, dateRef time.Time, places int32) []Installment {
	rules := make([]payment_term.Line, len(term.Lines))
	copy(rules, term.Lines)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Sequence < rules[j].Sequence
	})

	sign := decimal.NewFromInt(1)
	if total.IsNegative() {
		sign = sign.Neg()
	}

	out := make([]Installment, 0, len(rules))
	remaining := total
	for _, rule := range rules {
		var amount decimal.Decimal
		switch rule.Value {
		case payment_term.ValueFixed:
			amount = rule.ValueAmount.Round(places).Mul(sign)
		case payment_term.ValuePercent:
			amount = types.Percent(total, rule.ValueAmount).Round(places)
		default:
			amount = remaining.Round(places)
		}
		out = append(out, Installment{Date: DueDate(rule, dateRef), Amount: amount})
		remaining = remaining.Sub(amount)
	}

	if len(out) == 0 {
		return []Installment{{Date: types.Date(dateRef), Amount: total.Round(places)}}
	}
	if dist := remaining.Round(places); !dist.IsZero() {
		last := &out[len(out)-1]
		last.Amount = last.Amount.Add(dist)
	}
	return out
}

// DueDate applies the date option of an installment rule to the invoice date.
func DueDate(rule payment_term.Line, dateRef time.Time) time.Time {
	d := types.Date(dateRef)
	switch rule.Option {
	case payment_term.FixDayFollowingMonth:
		firstNext := time.Date(d.Year(), d.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		return firstNext.AddDate(0, 0, rule.Days-1)
	case payment_term.LastDayFollowingMonth:
		return types.EndOfMonth(time.Date(d.Year(), d.Month()+1, 1, 0, 0, 0, 0, time.UTC))
	case payment_term.LastDayCurrentMonth:
		return types.EndOfMonth(d)
	default:
		return d.AddDate(0, 0, rule.Days)
	}
}

type dueAmount struct {
	date           time.Time
	balance        decimal.Decimal
	amountCurrency decimal.Decimal
}

// paymentTerms balances the move with receivable or payable lines, one per
// installment. Existing lines are reused by maturity date first, then in
// maturity order; leftovers are removed.
func (b *balancer) paymentTerms() error {
	existing := filterDisplay(b.lines, ledger.DisplayPaymentTerm)
	others := b.others()
	if len(others) == 0 {
		b.remove(existing...)
		return nil
	}

	totalBalance, totalCurrency := sums(others, b.ctx.CompanyPlaces)
	dues := b.schedule(totalBalance, totalCurrency)

	sort.SliceStable(existing, func(i, j int) bool {
		return existing[i].MaturityOrDate().Before(existing[j].MaturityOrDate())
	})
	free := make(map[*ledger.Line]bool, len(existing))
	for _, line := range existing {
		free[line] = true
	}
	pick := func(date time.Time) *ledger.Line {
		for _, line := range existing {
			if free[line] && line.DateMaturity != nil && line.DateMaturity.Equal(date) {
				free[line] = false
				return line
			}
		}
		return nil
	}

	assigned := make([]*ledger.Line, len(dues))
	for i, due := range dues {
		assigned[i] = pick(due.date)
	}
	for i := range dues {
		if assigned[i] != nil {
			continue
		}
		for _, line := range existing {
			if free[line] {
				free[line] = false
				assigned[i] = line
				break
			}
		}
	}

	for i, due := range dues {
		line := assigned[i]
		if line == nil {
			line = b.newLine(ledger.DisplayPaymentTerm, *b.move.PaymentAccountID, b.move.Ref)
		}
		maturity := due.date
		line.AccountID = *b.move.PaymentAccountID
		line.PartnerID = b.move.PartnerID
		line.DateMaturity = &maturity
		line.TaxExigible = true
		line.SetBalance(due.balance.Neg())
		if b.move.IsForeign() {
			currencyID := b.move.CurrencyID
			line.CurrencyID = &currencyID
			line.AmountCurrency = due.amountCurrency.Neg()
		} else {
			line.CurrencyID = nil
			line.AmountCurrency = decimal.Zero
		}
	}

	unused := make([]*ledger.Line, 0)
	for _, line := range existing {
		if free[line] {
			unused = append(unused, line)
		}
	}
	b.remove(unused...)

	last := dues[len(dues)-1].date
	b.move.InvoiceDateDue = &last
	return nil
}

func (b *balancer) schedule(totalBalance, totalCurrency decimal.Decimal) []dueAmount {
	if b.ctx.PaymentTerm == nil {
		date := b.move.Date
		if b.move.InvoiceDateDue != nil {
			date = *b.move.InvoiceDateDue
		}
		return []dueAmount{{date: types.Date(date), balance: totalBalance, amountCurrency: totalCurrency}}
	}

	company := Compute(b.ctx.PaymentTerm, totalBalance, b.move.Date, b.ctx.CompanyPlaces)
	var foreign []Installment
	if b.move.IsForeign() {
		foreign = Compute(b.ctx.PaymentTerm, totalCurrency, b.move.Date, b.ctx.Places)
	}

	dues := make([]dueAmount, 0, len(company))
	for i, inst := range company {
		due := dueAmount{date: inst.Date, balance: inst.Amount}
		if foreign != nil {
			due.amountCurrency = foreign[i].Amount
		}
		if due.balance.IsZero() && due.amountCurrency.IsZero() && len(company) > 1 {
			continue
		}
		dues = append(dues, due)
	}
	if len(dues) == 0 {
		return []dueAmount{{date: company[len(company)-1].Date}}
	}
	return dues
}
