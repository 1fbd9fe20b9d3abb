package dto

import (
	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/account"
)

// AccountRequest is the request body for creating an account.
type AccountRequest struct {
	CatalogFields
	CompanyID  id.ID        `json:"companyId" binding:"required"`
	Type       account.Type `json:"type" binding:"required,oneof=receivable payable liquidity income expense asset liability equity other"`
	Reconcile  *bool        `json:"reconcile"`
	CurrencyID *id.ID       `json:"currencyId"`
}

// ToEntity converts DTO to domain entity.
func (r *AccountRequest) ToEntity() *account.Account {
	a := account.NewAccount(r.CompanyID, r.Code, r.Name, r.Type)
	if r.Reconcile != nil {
		a.Reconcile = *r.Reconcile
	}
	a.CurrencyID = r.CurrencyID
	return a
}

// UpdateAccountRequest is the request body for updating an account. The
// owning company cannot change.
type UpdateAccountRequest struct {
	VersionedRequest
	CatalogFields
	Type       account.Type `json:"type" binding:"required,oneof=receivable payable liquidity income expense asset liability equity other"`
	Reconcile  bool         `json:"reconcile"`
	CurrencyID *id.ID       `json:"currencyId"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateAccountRequest) ApplyTo(a *account.Account) {
	a.Code = r.Code
	a.Name = r.Name
	a.Type = r.Type
	a.Reconcile = r.Reconcile
	a.CurrencyID = r.CurrencyID
	a.Version = r.Version
}
