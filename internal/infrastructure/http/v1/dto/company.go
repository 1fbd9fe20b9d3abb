package dto

import (
	"time"

	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/company"
)

// CompanyRequest is the request body for creating a company.
type CompanyRequest struct {
	CatalogFields
	CurrencyID id.ID `json:"currencyId" binding:"required"`

	FiscalYearLockDate *time.Time `json:"fiscalYearLockDate"`
	PeriodLockDate     *time.Time `json:"periodLockDate"`

	ExchangeJournalID     *id.ID `json:"exchangeJournalId"`
	ExchangeGainAccountID *id.ID `json:"exchangeGainAccountId"`
	ExchangeLossAccountID *id.ID `json:"exchangeLossAccountId"`
	TaxCashBasisJournalID *id.ID `json:"taxCashBasisJournalId"`

	TaxRounding company.TaxRounding `json:"taxRounding" binding:"omitempty,oneof=per_line globally"`
}

// ToEntity converts DTO to domain entity.
func (r *CompanyRequest) ToEntity() *company.Company {
	c := company.NewCompany(r.Code, r.Name, r.CurrencyID)
	r.apply(c)
	return c
}

func (r *CompanyRequest) apply(c *company.Company) {
	c.Code = r.Code
	c.Name = r.Name
	c.CurrencyID = r.CurrencyID
	c.FiscalYearLockDate = r.FiscalYearLockDate
	c.PeriodLockDate = r.PeriodLockDate
	c.ExchangeJournalID = r.ExchangeJournalID
	c.ExchangeGainAccountID = r.ExchangeGainAccountID
	c.ExchangeLossAccountID = r.ExchangeLossAccountID
	c.TaxCashBasisJournalID = r.TaxCashBasisJournalID
	if r.TaxRounding != "" {
		c.TaxRounding = r.TaxRounding
	}
}

// UpdateCompanyRequest is the request body for updating a company.
type UpdateCompanyRequest struct {
	CompanyRequest
	VersionedRequest
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateCompanyRequest) ApplyTo(c *company.Company) {
	r.apply(c)
	c.Version = r.Version
}
