// Package tax provides the Tax catalog: rates and posting rules applied to
// invoice lines.
package tax

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"ledger/internal/core/apperror"
	"ledger/internal/core/entity"
	"ledger/internal/core/id"
)

// AmountType selects how the tax amount is derived from its base.
type AmountType string

const (
	AmountPercent  AmountType = "percent"
	AmountFixed    AmountType = "fixed"
	AmountDivision AmountType = "division"
	AmountGroup    AmountType = "group"
	AmountCode     AmountType = "code"
)

// Exigibility says when the tax becomes due.
type Exigibility string

const (
	OnInvoice Exigibility = "on_invoice"
	OnPayment Exigibility = "on_payment"
)

// Use restricts the documents a tax may appear on.
type Use string

const (
	UseSale     Use = "sale"
	UsePurchase Use = "purchase"
	UseNone     Use = "none"
)

// Tax is one tax definition.
type Tax struct {
	entity.Catalog

	CompanyID id.ID `db:"company_id" json:"companyId"`
	Use       Use   `db:"type_tax_use" json:"use"`

	// Sequence orders taxes applied to the same line, ascending
	Sequence   int             `db:"sequence" json:"sequence"`
	AmountType AmountType      `db:"amount_type" json:"amountType"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`

	// Formula is a CEL expression over base, price_unit and quantity (code taxes)
	Formula string `db:"formula" json:"formula,omitempty"`

	PriceInclude      bool        `db:"price_include" json:"priceInclude"`
	IncludeBaseAmount bool        `db:"include_base_amount" json:"includeBaseAmount"`
	Exigibility       Exigibility `db:"exigibility" json:"exigibility"`

	AccountID       *id.ID `db:"account_id" json:"accountId,omitempty"`
	RefundAccountID *id.ID `db:"refund_account_id" json:"refundAccountId,omitempty"`

	// CashBasisAccountID is the suspense account holding taxes due on payment
	// until the invoice is paid
	CashBasisAccountID *id.ID `db:"cash_basis_account_id" json:"cashBasisAccountId,omitempty"`

	// Analytic keeps one tax line per analytic account
	Analytic bool `db:"analytic" json:"analytic"`

	ChildrenIDs []id.ID `db:"children_ids" json:"childrenIds,omitempty"`

	// Children are resolved by the configuration provider for group taxes
	Children []*Tax `db:"-" json:"-"`
}

// NewPercentTax creates a percent tax due on invoice.
func NewPercentTax(companyID id.ID, code, name string, amount decimal.Decimal) *Tax {
	return &Tax{
		Catalog:     entity.NewCatalog(code, name),
		CompanyID:   companyID,
		Use:         UseSale,
		Sequence:    1,
		AmountType:  AmountPercent,
		Amount:      amount,
		Exigibility: OnInvoice,
	}
}

// Validate implements entity.Validatable interface.
func (t *Tax) Validate(ctx context.Context) error {
	if err := t.Catalog.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(t.CompanyID) {
		return apperror.NewValidation("company is required").WithDetail("field", "companyId")
	}

	switch t.AmountType {
	case AmountPercent, AmountFixed:
	case AmountDivision:
		if t.Amount.GreaterThanOrEqual(decimal.NewFromInt(100)) {
			return apperror.NewValidation("division taxes must be below 100%").WithDetail("field", "amount")
		}
	case AmountGroup:
		if len(t.ChildrenIDs) == 0 {
			return apperror.NewValidation("group taxes need children").WithDetail("field", "childrenIds")
		}
		if slices.Contains(t.ChildrenIDs, t.ID) {
			return apperror.NewValidation("a group tax cannot contain itself").WithDetail("field", "childrenIds")
		}
	case AmountCode:
		if t.Formula == "" {
			return apperror.NewValidation("code taxes need a formula").WithDetail("field", "formula")
		}
	default:
		return apperror.NewValidation("unknown amount type").
			WithDetail("field", "amountType").
			WithDetail("value", t.AmountType)
	}

	switch t.Exigibility {
	case OnInvoice:
	case OnPayment:
		if t.CashBasisAccountID == nil {
			return apperror.NewValidation("taxes due on payment need a cash basis account").
				WithDetail("field", "cashBasisAccountId")
		}
	default:
		return apperror.NewValidation("unknown exigibility").WithDetail("field", "exigibility")
	}

	return nil
}

// IsCashBasis reports whether the tax is recognized when paid.
func (t *Tax) IsCashBasis() bool {
	return t.Exigibility == OnPayment
}

// PostingAccount returns the account tax lines are booked on. Cash-basis
// taxes go to their suspense account first.
func (t *Tax) PostingAccount(refund bool) *id.ID {
	if t.IsCashBasis() {
		return t.CashBasisAccountID
	}
	return t.DueAccount(refund)
}

// DueAccount returns the account the tax is ultimately due on.
func (t *Tax) DueAccount(refund bool) *id.ID {
	if refund && t.RefundAccountID != nil {
		return t.RefundAccountID
	}
	return t.AccountID
}
