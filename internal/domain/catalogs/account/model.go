// Package account provides the chart of accounts.
package account

import (
	"context"

	"ledger/internal/core/apperror"
	"ledger/internal/core/entity"
	"ledger/internal/core/id"
)

// Type is the internal account type driving engine behavior.
type Type string

const (
	TypeReceivable Type = "receivable"
	TypePayable    Type = "payable"
	TypeLiquidity  Type = "liquidity"
	TypeIncome     Type = "income"
	TypeExpense    Type = "expense"
	TypeAsset      Type = "asset"
	TypeLiability  Type = "liability"
	TypeEquity     Type = "equity"
	TypeOther      Type = "other"
)

// Valid reports whether t is a known account type.
func (t Type) Valid() bool {
	switch t {
	case TypeReceivable, TypePayable, TypeLiquidity, TypeIncome, TypeExpense,
		TypeAsset, TypeLiability, TypeEquity, TypeOther:
		return true
	}
	return false
}

// Account is a ledger account of one company.
type Account struct {
	entity.Catalog

	CompanyID id.ID `db:"company_id" json:"companyId"`
	Type      Type  `db:"account_type" json:"type"`

	// Reconcile allows matching debit and credit lines posted to this account
	Reconcile bool `db:"reconcile" json:"reconcile"`

	// CurrencyID forces a secondary currency on every line of the account
	CurrencyID *id.ID `db:"currency_id" json:"currencyId,omitempty"`
}

// NewAccount creates an account; receivable and payable accounts are reconcilable.
func NewAccount(companyID id.ID, code, name string, typ Type) *Account {
	return &Account{
		Catalog:   entity.NewCatalog(code, name),
		CompanyID: companyID,
		Type:      typ,
		Reconcile: typ == TypeReceivable || typ == TypePayable,
	}
}

// Validate implements entity.Validatable interface.
func (a *Account) Validate(ctx context.Context) error {
	if err := a.Catalog.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(a.CompanyID) {
		return apperror.NewValidation("company is required").WithDetail("field", "companyId")
	}
	if !a.Type.Valid() {
		return apperror.NewValidation("unknown account type").
			WithDetail("field", "type").
			WithDetail("value", a.Type)
	}
	if (a.Type == TypeReceivable || a.Type == TypePayable) && !a.Reconcile {
		return apperror.NewValidation("receivable and payable accounts must allow reconciliation").
			WithDetail("field", "reconcile")
	}
	return nil
}

// IsReconcilable reports whether lines on this account can be matched.
func (a *Account) IsReconcilable() bool {
	return a.Reconcile || a.Type == TypeLiquidity
}

// IsReceivablePayable reports whether the account tracks partner balances.
func (a *Account) IsReceivablePayable() bool {
	return a.Type == TypeReceivable || a.Type == TypePayable
}
