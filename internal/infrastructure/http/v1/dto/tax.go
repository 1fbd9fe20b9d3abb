package dto

import (
	"github.com/shopspring/decimal"

	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/tax"
	"ledger/internal/domain/ledger/taxcalc"
)

// TaxRequest is the request body for creating a tax.
type TaxRequest struct {
	CatalogFields
	CompanyID id.ID `json:"companyId" binding:"required"`
	TaxOptions
}

// TaxOptions are the editable settings of a tax.
type TaxOptions struct {
	Use                tax.Use         `json:"use" binding:"omitempty,oneof=sale purchase none"`
	Sequence           int             `json:"sequence"`
	AmountType         tax.AmountType  `json:"amountType" binding:"required,oneof=percent fixed division group code"`
	Amount             decimal.Decimal `json:"amount"`
	Formula            string          `json:"formula"`
	PriceInclude       bool            `json:"priceInclude"`
	IncludeBaseAmount  bool            `json:"includeBaseAmount"`
	Exigibility        tax.Exigibility `json:"exigibility" binding:"omitempty,oneof=on_invoice on_payment"`
	AccountID          *id.ID          `json:"accountId"`
	RefundAccountID    *id.ID          `json:"refundAccountId"`
	CashBasisAccountID *id.ID          `json:"cashBasisAccountId"`
	Analytic           bool            `json:"analytic"`
	ChildrenIDs        []id.ID         `json:"childrenIds"`
}

func (o *TaxOptions) apply(t *tax.Tax) {
	if o.Use != "" {
		t.Use = o.Use
	}
	if o.Sequence != 0 {
		t.Sequence = o.Sequence
	}
	t.AmountType = o.AmountType
	t.Amount = o.Amount
	t.Formula = o.Formula
	t.PriceInclude = o.PriceInclude
	t.IncludeBaseAmount = o.IncludeBaseAmount
	if o.Exigibility != "" {
		t.Exigibility = o.Exigibility
	}
	t.AccountID = o.AccountID
	t.RefundAccountID = o.RefundAccountID
	t.CashBasisAccountID = o.CashBasisAccountID
	t.Analytic = o.Analytic
	t.ChildrenIDs = o.ChildrenIDs
}

// ToEntity converts DTO to domain entity.
func (r *TaxRequest) ToEntity() *tax.Tax {
	t := tax.NewPercentTax(r.CompanyID, r.Code, r.Name, r.Amount)
	r.apply(t)
	return t
}

// UpdateTaxRequest is the request body for updating a tax.
type UpdateTaxRequest struct {
	VersionedRequest
	CatalogFields
	TaxOptions
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateTaxRequest) ApplyTo(t *tax.Tax) {
	t.Code = r.Code
	t.Name = r.Name
	r.apply(t)
	t.Version = r.Version
}

// ComputeTaxesRequest asks for the taxes of one line without booking anything.
type ComputeTaxesRequest struct {
	CompanyID    id.ID            `json:"companyId" binding:"required"`
	CurrencyID   id.ID            `json:"currencyId" binding:"required"`
	TaxIDs       []id.ID          `json:"taxIds" binding:"required,min=1"`
	PriceUnit    decimal.Decimal  `json:"priceUnit"`
	Quantity     decimal.Decimal  `json:"quantity"`
	Discount     decimal.Decimal  `json:"discount" binding:"decimal_gte0"`
	BaseAmount   *decimal.Decimal `json:"baseAmount"`
	PriceInclude bool             `json:"priceInclude"`
	IsRefund     bool             `json:"isRefund"`
}

// TaxAmountResponse is the share of one tax in a computation.
type TaxAmountResponse struct {
	TaxID        string          `json:"taxId"`
	Name         string          `json:"name"`
	Sequence     int             `json:"sequence"`
	Base         decimal.Decimal `json:"base"`
	Amount       decimal.Decimal `json:"amount"`
	AccountID    *id.ID          `json:"accountId,omitempty"`
	PriceInclude bool            `json:"priceInclude"`
	Exigibility  tax.Exigibility `json:"exigibility"`
}

// ComputeTaxesResponse is the breakdown of a line's taxes.
type ComputeTaxesResponse struct {
	TotalExcluded decimal.Decimal     `json:"totalExcluded"`
	TotalIncluded decimal.Decimal     `json:"totalIncluded"`
	TaxAmount     decimal.Decimal     `json:"taxAmount"`
	Taxes         []TaxAmountResponse `json:"taxes"`
}

// FromTaxResult creates response DTO from a computation.
func FromTaxResult(res taxcalc.Result) ComputeTaxesResponse {
	out := ComputeTaxesResponse{
		TotalExcluded: res.TotalExcluded,
		TotalIncluded: res.TotalIncluded,
		TaxAmount:     res.TaxAmount(),
		Taxes:         make([]TaxAmountResponse, len(res.Taxes)),
	}
	for i, t := range res.Taxes {
		out.Taxes[i] = TaxAmountResponse{
			TaxID:        t.TaxID.String(),
			Name:         t.Name,
			Sequence:     t.Sequence,
			Base:         t.Base,
			Amount:       t.Amount,
			AccountID:    t.AccountID,
			PriceInclude: t.PriceInclude,
			Exigibility:  t.Exigibility,
		}
	}
	return out
}
