package ledgertest

import (
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core/id"
	"ledger/internal/core/types"
	"ledger/internal/domain/catalogs/account"
	"ledger/internal/domain/catalogs/company"
	"ledger/internal/domain/catalogs/currency"
	"ledger/internal/domain/catalogs/journal"
	"ledger/internal/domain/catalogs/tax"
	"ledger/internal/domain/ledger"
)

// Fixture is a USD company with a EUR rate of 0.5 from 2024-01-01, a small
// chart of accounts, one journal per kind and two 15% sale taxes: one due on
// invoice, one due on payment.
type Fixture struct {
	*Arena

	USD, EUR *currency.Currency
	Company  *company.Company

	Sale, Purchase, Bank, General, Exchange, CashBasis *journal.Journal

	Receivable, Payable, Income, Expense, BankAccount *account.Account
	TaxPayable, TaxSuspense, Gain, Loss               *account.Account

	VAT15     *tax.Tax
	VAT15Cash *tax.Tax

	Partner id.ID
}

// NewFixture builds the fixture into a fresh arena.
func NewFixture() *Fixture {
	a := NewArena()
	f := &Fixture{Arena: a, Partner: id.New()}

	f.USD = currency.NewCurrency("USD", "US Dollar", "$")
	f.USD.IsBase = true
	f.EUR = currency.NewCurrency("EUR", "Euro", "€")
	a.AddCurrency(f.USD)
	a.AddCurrency(f.EUR)
	a.AddRate(currency.NewRate(f.EUR.ID, types.MustDate("2024-01-01"), types.MustMoney("0.5")))

	f.Company = company.NewCompany("MAIN", "Main Company", f.USD.ID)
	a.AddCompany(f.Company)
	cid := f.Company.ID

	f.Sale = f.journal(journal.NewJournal(cid, "INV", "Customer Invoices", journal.TypeSale))
	f.Sale.RefundSequence = true
	f.Purchase = f.journal(journal.NewJournal(cid, "BILL", "Vendor Bills", journal.TypePurchase))
	f.Bank = f.journal(journal.NewJournal(cid, "BNK", "Bank", journal.TypeBank))
	f.General = f.journal(journal.NewJournal(cid, "MISC", "Miscellaneous", journal.TypeGeneral))
	f.Exchange = f.journal(journal.NewJournal(cid, "EXCH", "Exchange Difference", journal.TypeGeneral))
	f.CashBasis = f.journal(journal.NewJournal(cid, "CABA", "Cash Basis Taxes", journal.TypeGeneral))

	f.Receivable = f.account(account.NewAccount(cid, "121000", "Account Receivable", account.TypeReceivable))
	f.Payable = f.account(account.NewAccount(cid, "211000", "Account Payable", account.TypePayable))
	f.Income = f.account(account.NewAccount(cid, "400000", "Product Sales", account.TypeIncome))
	f.Expense = f.account(account.NewAccount(cid, "600000", "Expenses", account.TypeExpense))
	f.BankAccount = f.account(account.NewAccount(cid, "101401", "Bank", account.TypeLiquidity))
	f.TaxPayable = f.account(account.NewAccount(cid, "251000", "Tax Payable", account.TypeLiability))
	f.TaxSuspense = f.account(account.NewAccount(cid, "251100", "Tax Received Suspense", account.TypeLiability))
	f.Gain = f.account(account.NewAccount(cid, "441000", "Foreign Exchange Gain", account.TypeIncome))
	f.Loss = f.account(account.NewAccount(cid, "641000", "Foreign Exchange Loss", account.TypeExpense))

	f.Company.ExchangeJournalID = &f.Exchange.ID
	f.Company.ExchangeGainAccountID = &f.Gain.ID
	f.Company.ExchangeLossAccountID = &f.Loss.ID
	f.Company.TaxCashBasisJournalID = &f.CashBasis.ID

	f.VAT15 = tax.NewPercentTax(cid, "VAT15", "VAT 15%", types.MustMoney("15"))
	f.VAT15.AccountID = &f.TaxPayable.ID
	a.AddTax(f.VAT15)

	f.VAT15Cash = tax.NewPercentTax(cid, "VAT15C", "VAT 15% on payment", types.MustMoney("15"))
	f.VAT15Cash.AccountID = &f.TaxPayable.ID
	f.VAT15Cash.CashBasisAccountID = &f.TaxSuspense.ID
	f.VAT15Cash.Exigibility = tax.OnPayment
	a.AddTax(f.VAT15Cash)

	return f
}

func (f *Fixture) journal(j *journal.Journal) *journal.Journal {
	f.AddJournal(j)
	return j
}

func (f *Fixture) account(acc *account.Account) *account.Account {
	f.AddAccount(acc)
	return acc
}

// Invoice builds a draft invoice of typ on the sale or purchase journal with
// one product line per price, each taxed with taxes.
func (f *Fixture) Invoice(typ ledger.MoveType, currencyID id.ID, date string, prices []string, taxes ...*tax.Tax) *ledger.Move {
	j, payment, product := f.Sale, f.Receivable, f.Income
	if !typ.IsSale() {
		j, payment, product = f.Purchase, f.Payable, f.Expense
	}
	m := ledger.NewMove(f.Company.ID, j.ID, currencyID, f.USD.ID, typ, types.MustDate(date))
	m.PartnerID = &f.Partner
	m.PaymentAccountID = &payment.ID

	lines := make([]*ledger.Line, 0, len(prices))
	for _, price := range prices {
		line := ledger.NewLine(product.ID, "Product", decimal.Zero)
		line.DisplayType = ledger.DisplayProduct
		line.PriceUnit = types.MustMoney(price)
		for _, t := range taxes {
			line.TaxIDs = append(line.TaxIDs, t.ID)
		}
		lines = append(lines, line)
	}
	m.SetLines(lines)
	return m
}

// Entry builds a draft miscellaneous entry on journal j.
func (f *Fixture) Entry(j *journal.Journal, date string, lines ...*ledger.Line) *ledger.Move {
	m := ledger.NewMove(f.Company.ID, j.ID, f.USD.ID, f.USD.ID, ledger.TypeEntry, types.MustDate(date))
	m.SetLines(lines)
	return m
}

// Payment builds a draft bank entry settling amount on acc for the fixture
// partner. A positive amount is a customer payment: bank debit, acc credit.
func (f *Fixture) Payment(acc *account.Account, date, amount string) *ledger.Move {
	value := types.MustMoney(amount)
	bank := ledger.NewLine(f.BankAccount.ID, "Payment", value)
	counterpart := ledger.NewLine(acc.ID, "Payment", value.Neg())
	counterpart.PartnerID = &f.Partner
	return f.Entry(f.Bank, date, bank, counterpart)
}

// ForeignPayment is Payment in EUR: amountCurrency is the EUR amount and
// amount its USD value on the day.
func (f *Fixture) ForeignPayment(acc *account.Account, date, amount, amountCurrency string) *ledger.Move {
	m := f.Payment(acc, date, amount)
	m.CurrencyID = f.EUR.ID
	value := types.MustMoney(amountCurrency)
	for _, line := range m.Lines {
		line.CurrencyID = &f.EUR.ID
		line.AmountCurrency = value
		if line.AccountID == acc.ID {
			line.AmountCurrency = value.Neg()
		}
	}
	return m
}

// Line builds an entry line with a signed balance.
func Line(acc *account.Account, balance string) *ledger.Line {
	return ledger.NewLine(acc.ID, acc.Name, types.MustMoney(balance))
}

// LockPeriod sets the period lock date of the fixture company.
func (f *Fixture) LockPeriod(date string) {
	d := types.MustDate(date)
	f.Company.PeriodLockDate = &d
}

// LockFiscalYear sets the fiscal year lock date of the fixture company.
func (f *Fixture) LockFiscalYear(date string) {
	d := types.MustDate(date)
	f.Company.FiscalYearLockDate = &d
}

// Date parses a YYYY-MM-DD date.
func Date(s string) time.Time {
	return types.MustDate(s)
}
