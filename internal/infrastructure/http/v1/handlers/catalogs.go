package handlers

import (
	"ledger/internal/domain/catalogs/account"
	"ledger/internal/domain/catalogs/cash_rounding"
	"ledger/internal/domain/catalogs/company"
	"ledger/internal/domain/catalogs/journal"
	"ledger/internal/domain/catalogs/payment_term"
	"ledger/internal/domain/catalogs/tax"
	"ledger/internal/infrastructure/http/v1/dto"
)

// Type aliases keep the router signatures short.
type (
	CompanyHTTPHandler      = CatalogHandler[*company.Company, dto.CompanyRequest, dto.UpdateCompanyRequest]
	AccountHTTPHandler      = CatalogHandler[*account.Account, dto.AccountRequest, dto.UpdateAccountRequest]
	JournalHTTPHandler      = CatalogHandler[*journal.Journal, dto.JournalRequest, dto.UpdateJournalRequest]
	TaxHTTPHandler          = CatalogHandler[*tax.Tax, dto.TaxRequest, dto.UpdateTaxRequest]
	PaymentTermHTTPHandler  = CatalogHandler[*payment_term.PaymentTerm, dto.PaymentTermRequest, dto.UpdatePaymentTermRequest]
	CashRoundingHTTPHandler = CatalogHandler[*cash_rounding.CashRounding, dto.CashRoundingRequest, dto.UpdateCashRoundingRequest]
)

// NewCompanyHandler creates the companies handler.
func NewCompanyHandler(base *BaseHandler, service *company.Service) *CompanyHTTPHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*company.Company, dto.CompanyRequest, dto.UpdateCompanyRequest]{
		Service:    service.CatalogService,
		EntityName: "company",
		MapCreateDTO: func(req dto.CompanyRequest) *company.Company {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.UpdateCompanyRequest, existing *company.Company) *company.Company {
			req.ApplyTo(existing)
			return existing
		},
	})
}

// NewAccountHandler creates the chart of accounts handler.
func NewAccountHandler(base *BaseHandler, service *account.Service) *AccountHTTPHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*account.Account, dto.AccountRequest, dto.UpdateAccountRequest]{
		Service:    service.CatalogService,
		EntityName: "account",
		MapCreateDTO: func(req dto.AccountRequest) *account.Account {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.UpdateAccountRequest, existing *account.Account) *account.Account {
			req.ApplyTo(existing)
			return existing
		},
	})
}

// NewJournalHandler creates the journals handler.
func NewJournalHandler(base *BaseHandler, service *journal.Service) *JournalHTTPHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*journal.Journal, dto.JournalRequest, dto.UpdateJournalRequest]{
		Service:    service.CatalogService,
		EntityName: "journal",
		MapCreateDTO: func(req dto.JournalRequest) *journal.Journal {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.UpdateJournalRequest, existing *journal.Journal) *journal.Journal {
			req.ApplyTo(existing)
			return existing
		},
	})
}

// NewTaxCatalogHandler creates the taxes handler.
func NewTaxCatalogHandler(base *BaseHandler, service *tax.Service) *TaxHTTPHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*tax.Tax, dto.TaxRequest, dto.UpdateTaxRequest]{
		Service:    service.CatalogService,
		EntityName: "tax",
		MapCreateDTO: func(req dto.TaxRequest) *tax.Tax {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.UpdateTaxRequest, existing *tax.Tax) *tax.Tax {
			req.ApplyTo(existing)
			return existing
		},
	})
}

// NewPaymentTermHandler creates the payment terms handler.
func NewPaymentTermHandler(base *BaseHandler, service *payment_term.Service) *PaymentTermHTTPHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*payment_term.PaymentTerm, dto.PaymentTermRequest, dto.UpdatePaymentTermRequest]{
		Service:    service.CatalogService,
		EntityName: "payment term",
		MapCreateDTO: func(req dto.PaymentTermRequest) *payment_term.PaymentTerm {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.UpdatePaymentTermRequest, existing *payment_term.PaymentTerm) *payment_term.PaymentTerm {
			req.ApplyTo(existing)
			return existing
		},
	})
}

// NewCashRoundingHandler creates the cash roundings handler.
func NewCashRoundingHandler(base *BaseHandler, service *cash_rounding.Service) *CashRoundingHTTPHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*cash_rounding.CashRounding, dto.CashRoundingRequest, dto.UpdateCashRoundingRequest]{
		Service:    service.CatalogService,
		EntityName: "cash rounding",
		MapCreateDTO: func(req dto.CashRoundingRequest) *cash_rounding.CashRounding {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.UpdateCashRoundingRequest, existing *cash_rounding.CashRounding) *cash_rounding.CashRounding {
			req.ApplyTo(existing)
			return existing
		},
	})
}
