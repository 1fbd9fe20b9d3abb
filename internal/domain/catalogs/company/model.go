// Package company provides the Company catalog: the accounting entity that
// owns journals, accounts and moves, with its lock dates and the accounts
// used by automatic entries.
package company

import (
	"context"
	"time"

	"ledger/internal/core/apperror"
	"ledger/internal/core/entity"
	"ledger/internal/core/id"
)

// TaxRounding selects when tax amounts are rounded.
type TaxRounding string

const (
	TaxRoundPerLine  TaxRounding = "per_line"
	TaxRoundGlobally TaxRounding = "globally"
)

// Company represents a legal entity keeping its own books.
type Company struct {
	entity.Catalog

	// CurrencyID is the company (accounting) currency
	CurrencyID id.ID `db:"currency_id" json:"currencyId"`

	// FiscalYearLockDate blocks everyone, advisers included
	FiscalYearLockDate *time.Time `db:"fiscal_year_lock_date" json:"fiscalYearLockDate,omitempty"`

	// PeriodLockDate blocks everyone except advisers
	PeriodLockDate *time.Time `db:"period_lock_date" json:"periodLockDate,omitempty"`

	ExchangeJournalID     *id.ID `db:"exchange_journal_id" json:"exchangeJournalId,omitempty"`
	ExchangeGainAccountID *id.ID `db:"exchange_gain_account_id" json:"exchangeGainAccountId,omitempty"`
	ExchangeLossAccountID *id.ID `db:"exchange_loss_account_id" json:"exchangeLossAccountId,omitempty"`

	// TaxCashBasisJournalID receives the entries recognizing taxes due on payment
	TaxCashBasisJournalID *id.ID `db:"tax_cash_basis_journal_id" json:"taxCashBasisJournalId,omitempty"`

	TaxRounding TaxRounding `db:"tax_rounding" json:"taxRounding"`
}

// NewCompany creates a company that rounds taxes per line.
func NewCompany(code, name string, currencyID id.ID) *Company {
	return &Company{
		Catalog:     entity.NewCatalog(code, name),
		CurrencyID:  currencyID,
		TaxRounding: TaxRoundPerLine,
	}
}

// Validate implements entity.Validatable interface.
func (c *Company) Validate(ctx context.Context) error {
	if err := c.Catalog.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(c.CurrencyID) {
		return apperror.NewValidation("currency is required").WithDetail("field", "currencyId")
	}
	switch c.TaxRounding {
	case TaxRoundPerLine, TaxRoundGlobally:
	default:
		return apperror.NewValidation("unknown tax rounding method").
			WithDetail("field", "taxRounding").
			WithDetail("value", c.TaxRounding)
	}
	return nil
}

// LockDate returns the date up to which entries are frozen for the caller.
// Advisers are bound by the fiscal year lock only; everyone else by the later
// of the fiscal year and period locks.
func (c *Company) LockDate(adviser bool) *time.Time {
	if adviser {
		return c.FiscalYearLockDate
	}
	lock := c.FiscalYearLockDate
	if c.PeriodLockDate != nil && (lock == nil || c.PeriodLockDate.After(*lock)) {
		lock = c.PeriodLockDate
	}
	return lock
}

// RoundGlobally reports whether taxes are rounded on totals instead of per line.
func (c *Company) RoundGlobally() bool {
	return c.TaxRounding == TaxRoundGlobally
}
