package balance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core/id"
	"ledger/internal/core/types"
	"ledger/internal/domain/catalogs/cash_rounding"
	"ledger/internal/domain/catalogs/currency"
	"ledger/internal/domain/catalogs/payment_term"
	"ledger/internal/domain/catalogs/tax"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/money"
)

type fixture struct {
	usd, eur    *currency.Currency
	companyID   id.ID
	receivable  id.ID
	income      id.ID
	taxAccount  id.ID
	rounding    id.ID
	vat15       *tax.Tax
	converter   *money.Converter
	invoiceDate string
}

func newFixture() *fixture {
	f := &fixture{
		usd:         currency.NewCurrency("USD", "US Dollar", "$"),
		eur:         currency.NewCurrency("EUR", "Euro", "€"),
		companyID:   id.New(),
		receivable:  id.New(),
		income:      id.New(),
		taxAccount:  id.New(),
		rounding:    id.New(),
		invoiceDate: "2024-01-15",
	}
	f.usd.IsBase = true
	f.vat15 = tax.NewPercentTax(f.companyID, "VAT15", "VAT 15%", types.MustMoney("15"))
	f.vat15.AccountID = &f.taxAccount

	rates := []*currency.Rate{currency.NewRate(f.eur.ID, types.MustDate("2024-01-01"), types.MustMoney("0.5"))}
	f.converter = money.NewConverter(money.NewRateTable([]*currency.Currency{f.usd, f.eur}, rates))
	return f
}

func (f *fixture) move(typ ledger.MoveType, currencyID id.ID) *ledger.Move {
	m := ledger.NewMove(f.companyID, id.New(), currencyID, f.usd.ID, typ, types.MustDate(f.invoiceDate))
	m.PaymentAccountID = &f.receivable
	return m
}

func (f *fixture) ctx(m *ledger.Move, taxes ...*tax.Tax) Context {
	byID := make(map[id.ID]*tax.Tax)
	for _, t := range taxes {
		byID[t.ID] = t
	}
	return Context{
		Move:          m,
		Places:        2,
		CompanyPlaces: 2,
		Converter:     f.converter,
		Taxes:         byID,
	}
}

func (f *fixture) product(price string, taxes ...*tax.Tax) *ledger.Line {
	line := ledger.NewLine(f.income, "Product", decimal.Zero)
	line.DisplayType = ledger.DisplayProduct
	line.PriceUnit = types.MustMoney(price)
	for _, t := range taxes {
		line.TaxIDs = append(line.TaxIDs, t.ID)
	}
	return line
}

func assertBalanced(t *testing.T, lines []*ledger.Line) {
	t.Helper()
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	assert.True(t, debit.Equal(credit), "debit %s != credit %s", debit, credit)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, got.Equal(types.MustMoney(want)), "%s: want %s, got %s", msg, want, got)
}

func only(t *testing.T, lines []*ledger.Line, display ledger.DisplayType) []*ledger.Line {
	t.Helper()
	return filterDisplay(lines, display)
}

func TestBalance_CustomerInvoice(t *testing.T) {
	f := newFixture()
	m := f.move(ledger.TypeOutInvoice, f.usd.ID)

	lines, err := Balance(f.ctx(m, f.vat15), []*ledger.Line{f.product("1000", f.vat15)}, Options{RecomputeTaxes: true})
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assertBalanced(t, lines)

	product := only(t, lines, ledger.DisplayProduct)[0]
	assertMoney(t, "1000", product.Credit, "product credit")

	taxLine := only(t, lines, ledger.DisplayTax)[0]
	assertMoney(t, "150", taxLine.Credit, "tax credit")
	assertMoney(t, "1000", taxLine.TaxBaseAmount, "tax base")
	assert.Equal(t, f.taxAccount, taxLine.AccountID)
	assert.Equal(t, f.vat15.ID, *taxLine.TaxLineID)

	term := only(t, lines, ledger.DisplayPaymentTerm)[0]
	assertMoney(t, "1150", term.Debit, "receivable debit")
	assert.Equal(t, f.receivable, term.AccountID)
	assert.Equal(t, types.MustDate(f.invoiceDate), *m.InvoiceDateDue)
}

func TestBalance_VendorBillSigns(t *testing.T) {
	f := newFixture()
	m := f.move(ledger.TypeInInvoice, f.usd.ID)

	lines, err := Balance(f.ctx(m, f.vat15), []*ledger.Line{f.product("200", f.vat15)}, Options{RecomputeTaxes: true})
	require.NoError(t, err)
	assertBalanced(t, lines)
	assertMoney(t, "200", only(t, lines, ledger.DisplayProduct)[0].Debit, "product debit")
	assertMoney(t, "30", only(t, lines, ledger.DisplayTax)[0].Debit, "tax debit")
	assertMoney(t, "230", only(t, lines, ledger.DisplayPaymentTerm)[0].Credit, "payable credit")
}

func TestBalance_CreditNoteSigns(t *testing.T) {
	f := newFixture()
	m := f.move(ledger.TypeOutRefund, f.usd.ID)

	lines, err := Balance(f.ctx(m, f.vat15), []*ledger.Line{f.product("100", f.vat15)}, Options{RecomputeTaxes: true})
	require.NoError(t, err)
	assertBalanced(t, lines)
	assertMoney(t, "100", only(t, lines, ledger.DisplayProduct)[0].Debit, "product debit")
	assertMoney(t, "115", only(t, lines, ledger.DisplayPaymentTerm)[0].Credit, "receivable credit")
}

func TestBalance_PaymentTermSplit(t *testing.T) {
	f := newFixture()
	m := f.move(ledger.TypeOutInvoice, f.usd.ID)
	c := f.ctx(m, f.vat15)
	c.PaymentTerm = payment_term.NewPaymentTerm("30/70", "30% now, balance in 30 days",
		payment_term.Line{Sequence: 1, Value: payment_term.ValuePercent, ValueAmount: types.MustMoney("30"), Option: payment_term.DayAfterInvoiceDate},
		payment_term.Line{Sequence: 2, Value: payment_term.ValueBalance, Days: 30, Option: payment_term.DayAfterInvoiceDate},
	)

	lines, err := Balance(c, []*ledger.Line{f.product("1000", f.vat15)}, Options{RecomputeTaxes: true})
	require.NoError(t, err)
	assertBalanced(t, lines)

	terms := only(t, lines, ledger.DisplayPaymentTerm)
	require.Len(t, terms, 2)
	assertMoney(t, "345", terms[0].Debit, "first installment")
	assertMoney(t, "805", terms[1].Debit, "second installment")
	assertMoney(t, "1150", terms[0].Debit.Add(terms[1].Debit), "sum")
	assert.Equal(t, types.MustDate("2024-01-15"), *terms[0].DateMaturity)
	assert.Equal(t, types.MustDate("2024-02-14"), *terms[1].DateMaturity)
	assert.Equal(t, types.MustDate("2024-02-14"), *m.InvoiceDateDue)

	// rebalancing reuses the same lines
	again, err := Balance(c, lines, Options{RecomputeTaxes: true})
	require.NoError(t, err)
	againTerms := only(t, again, ledger.DisplayPaymentTerm)
	require.Len(t, againTerms, 2)
	assert.Equal(t, terms[0].ID, againTerms[0].ID)
	assert.Equal(t, terms[1].ID, againTerms[1].ID)
}

func TestBalance_ManualTaxKeptWithoutRecompute(t *testing.T) {
	f := newFixture()
	m := f.move(ledger.TypeOutInvoice, f.usd.ID)
	c := f.ctx(m, f.vat15)

	lines, err := Balance(c, []*ledger.Line{f.product("1000", f.vat15)}, Options{RecomputeTaxes: true})
	require.NoError(t, err)

	only(t, lines, ledger.DisplayTax)[0].SetBalance(types.MustMoney("-149"))
	assert.False(t, NeedsTaxRecompute(lines, lines))

	lines, err = Balance(c, lines, Options{RecomputeTaxes: false})
	require.NoError(t, err)
	assertBalanced(t, lines)
	assertMoney(t, "149", only(t, lines, ledger.DisplayTax)[0].Credit, "manual tax")
	assertMoney(t, "1149", only(t, lines, ledger.DisplayPaymentTerm)[0].Debit, "receivable")
}

func TestBalance_TaxLinePrunedWithBaseLine(t *testing.T) {
	f := newFixture()
	m := f.move(ledger.TypeOutInvoice, f.usd.ID)
	c := f.ctx(m, f.vat15)
	taxed := f.product("1000", f.vat15)
	plain := f.product("50")

	lines, err := Balance(c, []*ledger.Line{taxed, plain}, Options{RecomputeTaxes: true})
	require.NoError(t, err)
	require.Len(t, only(t, lines, ledger.DisplayTax), 1)

	edited := make([]*ledger.Line, 0)
	for _, line := range lines {
		if line != taxed {
			edited = append(edited, line)
		}
	}
	require.True(t, NeedsTaxRecompute(lines, edited))

	lines, err = Balance(c, edited, Options{RecomputeTaxes: true})
	require.NoError(t, err)
	assert.Empty(t, only(t, lines, ledger.DisplayTax))
	assertMoney(t, "50", only(t, lines, ledger.DisplayPaymentTerm)[0].Debit, "receivable")
}

func TestBalance_FullDiscountZeroesTaxLine(t *testing.T) {
	f := newFixture()
	m := f.move(ledger.TypeOutInvoice, f.usd.ID)
	c := f.ctx(m, f.vat15)
	product := f.product("1000", f.vat15)

	lines, err := Balance(c, []*ledger.Line{product}, Options{RecomputeTaxes: true})
	require.NoError(t, err)

	product.Discount = types.MustMoney("100")
	lines, err = Balance(c, lines, Options{RecomputeTaxes: true})
	require.NoError(t, err)

	taxLines := only(t, lines, ledger.DisplayTax)
	require.Len(t, taxLines, 1)
	assert.True(t, taxLines[0].Balance().IsZero())
	assert.True(t, product.Balance().IsZero())

	// a new invoice never creates a zero tax line
	fresh, err := Balance(f.ctx(f.move(ledger.TypeOutInvoice, f.usd.ID), f.vat15), []*ledger.Line{func() *ledger.Line {
		l := f.product("1000", f.vat15)
		l.Discount = types.MustMoney("100")
		return l
	}()}, Options{RecomputeTaxes: true})
	require.NoError(t, err)
	assert.Empty(t, only(t, fresh, ledger.DisplayTax))
}

func TestBalance_TaxLinesAggregatePerKey(t *testing.T) {
	f := newFixture()
	m := f.move(ledger.TypeOutInvoice, f.usd.ID)
	analytic := id.New()
	f.vat15.Analytic = true

	a := f.product("100", f.vat15)
	b := f.product("200", f.vat15)
	c := f.product("300", f.vat15)
	c.AnalyticAccountID = &analytic

	lines, err := Balance(f.ctx(m, f.vat15), []*ledger.Line{a, b, c}, Options{RecomputeTaxes: true})
	require.NoError(t, err)
	assertBalanced(t, lines)

	taxLines := only(t, lines, ledger.DisplayTax)
	require.Len(t, taxLines, 2)
	assertMoney(t, "45", taxLines[0].Credit, "no analytic")
	assertMoney(t, "45", taxLines[1].Credit, "analytic")
	assert.Equal(t, analytic, *taxLines[1].AnalyticAccountID)
}

func TestBalance_CashRoundingLine(t *testing.T) {
	f := newFixture()
	m := f.move(ledger.TypeOutInvoice, f.usd.ID)
	c := f.ctx(m)
	c.CashRounding = &cash_rounding.CashRounding{
		Rounding:  types.MustMoney("0.05"),
		Strategy:  cash_rounding.AddInvoiceLine,
		Method:    cash_rounding.MethodHalfUp,
		AccountID: &f.rounding,
	}

	lines, err := Balance(c, []*ledger.Line{f.product("10.02")}, Options{RecomputeTaxes: true})
	require.NoError(t, err)
	assertBalanced(t, lines)

	rounding := only(t, lines, ledger.DisplayRounding)
	require.Len(t, rounding, 1)
	assertMoney(t, "0.02", rounding[0].Debit, "rounding")
	assert.Equal(t, f.rounding, rounding[0].AccountID)
	assertMoney(t, "10", only(t, lines, ledger.DisplayPaymentTerm)[0].Debit, "receivable")

	// once the total is round, the rounding line goes away
	only(t, lines, ledger.DisplayProduct)[0].PriceUnit = types.MustMoney("10.05")
	lines, err = Balance(c, lines, Options{RecomputeTaxes: true})
	require.NoError(t, err)
	assert.Empty(t, only(t, lines, ledger.DisplayRounding))

	c.CashRounding = nil
	only(t, lines, ledger.DisplayProduct)[0].PriceUnit = types.MustMoney("10.02")
	lines, err = Balance(c, lines, Options{RecomputeTaxes: true})
	require.NoError(t, err)
	assert.Empty(t, only(t, lines, ledger.DisplayRounding))
	assertMoney(t, "10.02", only(t, lines, ledger.DisplayPaymentTerm)[0].Debit, "receivable")
}

func TestBalance_CashRoundingBiggestTax(t *testing.T) {
	f := newFixture()
	m := f.move(ledger.TypeOutInvoice, f.usd.ID)
	c := f.ctx(m, f.vat15)
	c.CashRounding = &cash_rounding.CashRounding{
		Rounding: types.MustMoney("0.05"),
		Strategy: cash_rounding.BiggestTax,
		Method:   cash_rounding.MethodHalfUp,
	}

	lines, err := Balance(c, []*ledger.Line{f.product("10.01", f.vat15)}, Options{RecomputeTaxes: true})
	require.NoError(t, err)
	assertBalanced(t, lines)
	assert.Empty(t, only(t, lines, ledger.DisplayRounding))
	assertMoney(t, "1.49", only(t, lines, ledger.DisplayTax)[0].Credit, "adjusted tax")
	assertMoney(t, "11.5", only(t, lines, ledger.DisplayPaymentTerm)[0].Debit, "receivable")
}

func TestBalance_ForeignCurrency(t *testing.T) {
	f := newFixture()
	m := f.move(ledger.TypeOutInvoice, f.eur.ID)
	tax10 := tax.NewPercentTax(f.companyID, "VAT10", "VAT 10%", types.MustMoney("10"))
	tax10.AccountID = &f.taxAccount

	lines, err := Balance(f.ctx(m, tax10), []*ledger.Line{f.product("100", tax10)}, Options{RecomputeTaxes: true})
	require.NoError(t, err)
	assertBalanced(t, lines)

	product := only(t, lines, ledger.DisplayProduct)[0]
	assertMoney(t, "-100", product.AmountCurrency, "product amount currency")
	assertMoney(t, "200", product.Credit, "product credit")
	assert.Equal(t, f.eur.ID, *product.CurrencyID)

	taxLine := only(t, lines, ledger.DisplayTax)[0]
	assertMoney(t, "-10", taxLine.AmountCurrency, "tax amount currency")
	assertMoney(t, "20", taxLine.Credit, "tax credit")

	term := only(t, lines, ledger.DisplayPaymentTerm)[0]
	assertMoney(t, "110", term.AmountCurrency, "receivable amount currency")
	assertMoney(t, "220", term.Debit, "receivable debit")
}

func TestBalance_EntryConvertsForeignAmounts(t *testing.T) {
	f := newFixture()
	m := f.move(ledger.TypeEntry, f.usd.ID)
	m.PaymentAccountID = nil

	debit := ledger.NewLine(f.receivable, "Debit", decimal.Zero)
	debit.CurrencyID = &f.eur.ID
	debit.AmountCurrency = types.MustMoney("50")
	credit := ledger.NewLine(f.income, "Credit", types.MustMoney("-100"))

	lines, err := Balance(f.ctx(m), []*ledger.Line{debit, credit}, Options{RecomputeTaxes: true})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assertMoney(t, "100", debit.Debit, "converted")
	assertBalanced(t, lines)
}

func TestBalance_InvoiceWithoutPaymentAccount(t *testing.T) {
	f := newFixture()
	m := f.move(ledger.TypeOutInvoice, f.usd.ID)
	m.PaymentAccountID = nil

	_, err := Balance(f.ctx(m), []*ledger.Line{f.product("1")}, Options{})
	require.Error(t, err)
}

func TestNeedsTaxRecompute(t *testing.T) {
	f := newFixture()
	base := f.product("100", f.vat15)
	taxLine := ledger.NewLine(f.taxAccount, "VAT", types.MustMoney("-15"))
	taxLine.DisplayType = ledger.DisplayTax
	taxLine.TaxLineID = &f.vat15.ID
	before := []*ledger.Line{base, taxLine}

	changedPrice := base.Clone()
	changedPrice.PriceUnit = types.MustMoney("120")
	changedTaxes := base.Clone()
	changedTaxes.TaxIDs = nil
	editedTax := taxLine.Clone()
	editedTax.SetBalance(types.MustMoney("-14"))

	tests := []struct {
		name  string
		after []*ledger.Line
		want  bool
	}{
		{"unchanged", []*ledger.Line{base.Clone(), taxLine.Clone()}, false},
		{"tax line edited", []*ledger.Line{base.Clone(), editedTax}, false},
		{"tax line removed", []*ledger.Line{base.Clone()}, false},
		{"base line price", []*ledger.Line{changedPrice, taxLine}, true},
		{"base line taxes", []*ledger.Line{changedTaxes, taxLine}, true},
		{"base line removed", []*ledger.Line{taxLine}, true},
		{"base line added", []*ledger.Line{base, f.product("1"), taxLine}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsTaxRecompute(before, tt.after))
		})
	}
}

func TestCompute(t *testing.T) {
	ref := types.MustDate("2024-01-31")

	term := payment_term.NewPaymentTerm("MIX", "Mixed",
		payment_term.Line{Sequence: 1, Value: payment_term.ValueFixed, ValueAmount: types.MustMoney("100"), Option: payment_term.LastDayCurrentMonth},
		payment_term.Line{Sequence: 2, Value: payment_term.ValuePercent, ValueAmount: types.MustMoney("33.333"), Option: payment_term.LastDayFollowingMonth},
		payment_term.Line{Sequence: 3, Value: payment_term.ValueBalance, Days: 10, Option: payment_term.FixDayFollowingMonth},
	)

	got := Compute(term, types.MustMoney("-1000"), ref, 2)
	require.Len(t, got, 3)
	assertMoney(t, "-100", got[0].Amount, "fixed")
	assertMoney(t, "-333.33", got[1].Amount, "percent")
	assertMoney(t, "-566.67", got[2].Amount, "balance")
	assert.Equal(t, types.MustDate("2024-01-31"), got[0].Date)
	assert.Equal(t, types.MustDate("2024-02-29"), got[1].Date)
	assert.Equal(t, types.MustDate("2024-02-10"), got[2].Date)

	sum := decimal.Zero
	for _, inst := range got {
		sum = sum.Add(inst.Amount)
	}
	assertMoney(t, "-1000", sum, "sum")
}
