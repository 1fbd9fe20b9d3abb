// Package seed loads master data from a YAML file into the catalogs.
//
// Catalog entries reference each other by code: a journal names its default
// account, a company its exchange journal, a group tax its children. Codes
// are resolved within the enclosing company.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/account"
	"ledger/internal/domain/catalogs/cash_rounding"
	"ledger/internal/domain/catalogs/company"
	"ledger/internal/domain/catalogs/currency"
	"ledger/internal/domain/catalogs/journal"
	"ledger/internal/domain/catalogs/payment_term"
	"ledger/internal/domain/catalogs/tax"
	"ledger/pkg/logger"
)

// File is the root of a seed document.
type File struct {
	Currencies   []Currency    `yaml:"currencies"`
	PaymentTerms []PaymentTerm `yaml:"paymentTerms"`
	Companies    []Company     `yaml:"companies"`
}

type Currency struct {
	ISOCode       string `yaml:"isoCode"`
	Name          string `yaml:"name"`
	Symbol        string `yaml:"symbol"`
	DecimalPlaces *int   `yaml:"decimalPlaces"`
	IsBase        bool   `yaml:"isBase"`
	Rates         []Rate `yaml:"rates"`
}

type Rate struct {
	Date time.Time       `yaml:"date"`
	Rate decimal.Decimal `yaml:"rate"`
}

type PaymentTerm struct {
	Code  string            `yaml:"code"`
	Name  string            `yaml:"name"`
	Lines []PaymentTermLine `yaml:"lines"`
}

type PaymentTermLine struct {
	Value       string          `yaml:"value"`
	ValueAmount decimal.Decimal `yaml:"valueAmount"`
	Days        int             `yaml:"days"`
	Option      string          `yaml:"option"`
}

type Company struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Currency    string `yaml:"currency"`
	TaxRounding string `yaml:"taxRounding"`

	ExchangeJournal     string `yaml:"exchangeJournal"`
	ExchangeGainAccount string `yaml:"exchangeGainAccount"`
	ExchangeLossAccount string `yaml:"exchangeLossAccount"`
	CashBasisJournal    string `yaml:"cashBasisJournal"`

	Accounts      []Account      `yaml:"accounts"`
	Journals      []Journal      `yaml:"journals"`
	Taxes         []Tax          `yaml:"taxes"`
	CashRoundings []CashRounding `yaml:"cashRoundings"`
}

type Account struct {
	Code      string `yaml:"code"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Reconcile *bool  `yaml:"reconcile"`
	Currency  string `yaml:"currency"`
}

type Journal struct {
	Code                 string `yaml:"code"`
	Name                 string `yaml:"name"`
	Type                 string `yaml:"type"`
	SequencePrefix       string `yaml:"sequencePrefix"`
	RefundSequence       bool   `yaml:"refundSequence"`
	RefundSequencePrefix string `yaml:"refundSequencePrefix"`
	UpdatePosted         bool   `yaml:"updatePosted"`
	DefaultAccount       string `yaml:"defaultAccount"`
	Currency             string `yaml:"currency"`
}

type Tax struct {
	Code              string          `yaml:"code"`
	Name              string          `yaml:"name"`
	Use               string          `yaml:"use"`
	Sequence          int             `yaml:"sequence"`
	AmountType        string          `yaml:"amountType"`
	Amount            decimal.Decimal `yaml:"amount"`
	Formula           string          `yaml:"formula"`
	PriceInclude      bool            `yaml:"priceInclude"`
	IncludeBaseAmount bool            `yaml:"includeBaseAmount"`
	Exigibility       string          `yaml:"exigibility"`
	Account           string          `yaml:"account"`
	RefundAccount     string          `yaml:"refundAccount"`
	CashBasisAccount  string          `yaml:"cashBasisAccount"`
	Children          []string        `yaml:"children"`
}

type CashRounding struct {
	Code     string          `yaml:"code"`
	Name     string          `yaml:"name"`
	Rounding decimal.Decimal `yaml:"rounding"`
	Strategy string          `yaml:"strategy"`
	Method   string          `yaml:"method"`
	Account  string          `yaml:"account"`
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return &f, nil
}

// Services are the catalog services the seeder writes through.
type Services struct {
	Currencies    *currency.Service
	Companies     *company.Service
	Accounts      *account.Service
	Journals      *journal.Service
	Taxes         *tax.Service
	PaymentTerms  *payment_term.Service
	CashRoundings *cash_rounding.Service
}

// Stats counts the created entries.
type Stats struct {
	Currencies    int `json:"currencies"`
	Rates         int `json:"rates"`
	PaymentTerms  int `json:"paymentTerms"`
	Companies     int `json:"companies"`
	Accounts      int `json:"accounts"`
	Journals      int `json:"journals"`
	Taxes         int `json:"taxes"`
	CashRoundings int `json:"cashRoundings"`
}

// Seeder writes a File into the catalogs. Currencies, payment terms and
// companies that already exist by code are skipped, a skipped company with
// everything it owns.
type Seeder struct {
	svc   Services
	stats Stats

	currencies map[string]id.ID
}

// NewSeeder creates a seeder.
func NewSeeder(svc Services) *Seeder {
	return &Seeder{svc: svc, currencies: make(map[string]id.ID)}
}

// Apply creates the catalog entries of f.
func (s *Seeder) Apply(ctx context.Context, f *File) (Stats, error) {
	for _, c := range f.Currencies {
		if err := s.currency(ctx, c); err != nil {
			return s.stats, fmt.Errorf("currency %s: %w", c.ISOCode, err)
		}
	}
	for _, t := range f.PaymentTerms {
		if err := s.paymentTerm(ctx, t); err != nil {
			return s.stats, fmt.Errorf("payment term %s: %w", t.Code, err)
		}
	}
	for _, c := range f.Companies {
		if err := s.company(ctx, c); err != nil {
			return s.stats, fmt.Errorf("company %s: %w", c.Code, err)
		}
	}
	return s.stats, nil
}

func (s *Seeder) currency(ctx context.Context, c Currency) error {
	existing, err := s.svc.Currencies.FindByISOCode(ctx, c.ISOCode)
	switch {
	case err == nil:
		s.currencies[c.ISOCode] = existing.ID
		logger.Debug(ctx, "currency exists, skipped", "iso_code", c.ISOCode)
		return nil
	case !apperror.IsNotFound(err):
		return err
	}

	curr := currency.NewCurrency(c.ISOCode, c.Name, c.Symbol)
	if c.DecimalPlaces != nil {
		curr.DecimalPlaces = *c.DecimalPlaces
	}
	curr.IsBase = c.IsBase
	if err := s.svc.Currencies.Create(ctx, curr); err != nil {
		return err
	}
	s.currencies[c.ISOCode] = curr.ID
	s.stats.Currencies++

	for _, r := range c.Rates {
		if err := s.svc.Currencies.SetRate(ctx, currency.NewRate(curr.ID, r.Date, r.Rate)); err != nil {
			return fmt.Errorf("rate %s: %w", r.Date.Format(time.DateOnly), err)
		}
		s.stats.Rates++
	}
	return nil
}

func (s *Seeder) currencyID(iso string) (id.ID, error) {
	currID, ok := s.currencies[iso]
	if !ok {
		return id.Nil(), fmt.Errorf("unknown currency %q", iso)
	}
	return currID, nil
}

func (s *Seeder) optionalCurrency(iso string) (*id.ID, error) {
	if iso == "" {
		return nil, nil
	}
	currID, err := s.currencyID(iso)
	if err != nil {
		return nil, err
	}
	return &currID, nil
}

func (s *Seeder) paymentTerm(ctx context.Context, t PaymentTerm) error {
	if _, err := s.svc.PaymentTerms.GetByCode(ctx, t.Code); err == nil {
		return nil
	} else if !apperror.IsNotFound(err) {
		return err
	}

	lines := make([]payment_term.Line, len(t.Lines))
	for i, l := range t.Lines {
		lines[i] = payment_term.Line{
			Sequence:    i + 1,
			Value:       payment_term.Value(l.Value),
			ValueAmount: l.ValueAmount,
			Days:        l.Days,
			Option:      payment_term.Option(l.Option),
		}
		if lines[i].Option == "" {
			lines[i].Option = payment_term.DayAfterInvoiceDate
		}
	}
	if err := s.svc.PaymentTerms.Create(ctx, payment_term.NewPaymentTerm(t.Code, t.Name, lines...)); err != nil {
		return err
	}
	s.stats.PaymentTerms++
	return nil
}

// refs resolves codes within one company.
type refs struct {
	accounts map[string]id.ID
	journals map[string]id.ID
	taxes    map[string]id.ID
}

func lookup(kind string, m map[string]id.ID, code string) (*id.ID, error) {
	if code == "" {
		return nil, nil
	}
	v, ok := m[code]
	if !ok {
		return nil, fmt.Errorf("unknown %s %q", kind, code)
	}
	return &v, nil
}

func (s *Seeder) company(ctx context.Context, c Company) error {
	if _, err := s.svc.Companies.GetByCode(ctx, c.Code); err == nil {
		logger.Info(ctx, "company exists, skipped", "code", c.Code)
		return nil
	} else if !apperror.IsNotFound(err) {
		return err
	}

	currID, err := s.currencyID(c.Currency)
	if err != nil {
		return err
	}
	comp := company.NewCompany(c.Code, c.Name, currID)
	if c.TaxRounding != "" {
		comp.TaxRounding = company.TaxRounding(c.TaxRounding)
	}
	if err := s.svc.Companies.Create(ctx, comp); err != nil {
		return err
	}
	s.stats.Companies++

	r := refs{
		accounts: make(map[string]id.ID),
		journals: make(map[string]id.ID),
		taxes:    make(map[string]id.ID),
	}
	for _, a := range c.Accounts {
		if err := s.account(ctx, comp.ID, a, r); err != nil {
			return fmt.Errorf("account %s: %w", a.Code, err)
		}
	}
	for _, j := range c.Journals {
		if err := s.journal(ctx, comp.ID, j, r); err != nil {
			return fmt.Errorf("journal %s: %w", j.Code, err)
		}
	}
	for _, t := range c.Taxes {
		if err := s.tax(ctx, comp.ID, t, r); err != nil {
			return fmt.Errorf("tax %s: %w", t.Code, err)
		}
	}
	for _, cr := range c.CashRoundings {
		if err := s.cashRounding(ctx, cr, r); err != nil {
			return fmt.Errorf("cash rounding %s: %w", cr.Code, err)
		}
	}

	// exchange and cash-basis settings point at entries created above
	if comp.ExchangeJournalID, err = lookup("journal", r.journals, c.ExchangeJournal); err != nil {
		return err
	}
	if comp.ExchangeGainAccountID, err = lookup("account", r.accounts, c.ExchangeGainAccount); err != nil {
		return err
	}
	if comp.ExchangeLossAccountID, err = lookup("account", r.accounts, c.ExchangeLossAccount); err != nil {
		return err
	}
	if comp.TaxCashBasisJournalID, err = lookup("journal", r.journals, c.CashBasisJournal); err != nil {
		return err
	}
	if c.ExchangeJournal == "" && c.ExchangeGainAccount == "" && c.ExchangeLossAccount == "" && c.CashBasisJournal == "" {
		return nil
	}
	return s.svc.Companies.Update(ctx, comp)
}

func (s *Seeder) account(ctx context.Context, companyID id.ID, a Account, r refs) error {
	acc := account.NewAccount(companyID, a.Code, a.Name, account.Type(a.Type))
	if a.Reconcile != nil {
		acc.Reconcile = *a.Reconcile
	}
	var err error
	if acc.CurrencyID, err = s.optionalCurrency(a.Currency); err != nil {
		return err
	}
	if err := s.svc.Accounts.Create(ctx, acc); err != nil {
		return err
	}
	r.accounts[a.Code] = acc.ID
	s.stats.Accounts++
	return nil
}

func (s *Seeder) journal(ctx context.Context, companyID id.ID, j Journal, r refs) error {
	jr := journal.NewJournal(companyID, j.Code, j.Name, journal.Type(j.Type))
	jr.SequencePrefix = j.SequencePrefix
	jr.RefundSequence = j.RefundSequence
	jr.RefundSequencePrefix = j.RefundSequencePrefix
	jr.UpdatePosted = j.UpdatePosted

	var err error
	if jr.DefaultAccountID, err = lookup("account", r.accounts, j.DefaultAccount); err != nil {
		return err
	}
	if jr.CurrencyID, err = s.optionalCurrency(j.Currency); err != nil {
		return err
	}
	if err := s.svc.Journals.Create(ctx, jr); err != nil {
		return err
	}
	r.journals[j.Code] = jr.ID
	s.stats.Journals++
	return nil
}

func (s *Seeder) tax(ctx context.Context, companyID id.ID, t Tax, r refs) error {
	tr := tax.NewPercentTax(companyID, t.Code, t.Name, t.Amount)
	if t.Use != "" {
		tr.Use = tax.Use(t.Use)
	}
	if t.Sequence != 0 {
		tr.Sequence = t.Sequence
	}
	if t.AmountType != "" {
		tr.AmountType = tax.AmountType(t.AmountType)
	}
	if t.Exigibility != "" {
		tr.Exigibility = tax.Exigibility(t.Exigibility)
	}
	tr.Formula = t.Formula
	tr.PriceInclude = t.PriceInclude
	tr.IncludeBaseAmount = t.IncludeBaseAmount

	var err error
	if tr.AccountID, err = lookup("account", r.accounts, t.Account); err != nil {
		return err
	}
	if tr.RefundAccountID, err = lookup("account", r.accounts, t.RefundAccount); err != nil {
		return err
	}
	if tr.CashBasisAccountID, err = lookup("account", r.accounts, t.CashBasisAccount); err != nil {
		return err
	}
	for _, code := range t.Children {
		child, err := lookup("tax", r.taxes, code)
		if err != nil {
			return err
		}
		tr.ChildrenIDs = append(tr.ChildrenIDs, *child)
	}

	if err := s.svc.Taxes.Create(ctx, tr); err != nil {
		return err
	}
	r.taxes[t.Code] = tr.ID
	s.stats.Taxes++
	return nil
}

func (s *Seeder) cashRounding(ctx context.Context, c CashRounding, r refs) error {
	cr := cash_rounding.NewCashRounding(c.Code, c.Name, c.Rounding)
	if c.Strategy != "" {
		cr.Strategy = cash_rounding.Strategy(c.Strategy)
	}
	if c.Method != "" {
		cr.Method = cash_rounding.Method(c.Method)
	}
	var err error
	if cr.AccountID, err = lookup("account", r.accounts, c.Account); err != nil {
		return err
	}
	if err := s.svc.CashRoundings.Create(ctx, cr); err != nil {
		return err
	}
	s.stats.CashRoundings++
	return nil
}
