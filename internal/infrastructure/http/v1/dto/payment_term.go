package dto

import (
	"github.com/shopspring/decimal"

	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/cash_rounding"
	"ledger/internal/domain/catalogs/payment_term"
)

// PaymentTermLine is one installment rule.
type PaymentTermLine struct {
	Value       payment_term.Value  `json:"value" binding:"required,oneof=balance percent fixed"`
	ValueAmount decimal.Decimal     `json:"valueAmount" binding:"decimal_gte0"`
	Days        int                 `json:"days" binding:"min=0"`
	Option      payment_term.Option `json:"option" binding:"omitempty,oneof=day_after_invoice_date fix_day_following_month last_day_following_month last_day_current_month"`
}

// PaymentTermRequest is the request body for creating a payment term.
type PaymentTermRequest struct {
	CatalogFields
	Lines []PaymentTermLine `json:"lines" binding:"required,min=1,dive"`
}

func toTermLines(in []PaymentTermLine) payment_term.Lines {
	lines := make(payment_term.Lines, len(in))
	for i, l := range in {
		lines[i] = payment_term.Line{
			Sequence:    i + 1,
			Value:       l.Value,
			ValueAmount: l.ValueAmount,
			Days:        l.Days,
			Option:      l.Option,
		}
	}
	return lines
}

// ToEntity converts DTO to domain entity.
func (r *PaymentTermRequest) ToEntity() *payment_term.PaymentTerm {
	return payment_term.NewPaymentTerm(r.Code, r.Name, toTermLines(r.Lines)...)
}

// UpdatePaymentTermRequest is the request body for updating a payment term.
type UpdatePaymentTermRequest struct {
	PaymentTermRequest
	VersionedRequest
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdatePaymentTermRequest) ApplyTo(p *payment_term.PaymentTerm) {
	p.Code = r.Code
	p.Name = r.Name
	p.Lines = toTermLines(r.Lines)
	p.Version = r.Version
}

// CashRoundingRequest is the request body for creating a cash rounding rule.
type CashRoundingRequest struct {
	CatalogFields
	Rounding  decimal.Decimal        `json:"rounding" binding:"decimal_gt0"`
	Strategy  cash_rounding.Strategy `json:"strategy" binding:"required,oneof=add_invoice_line biggest_tax"`
	Method    cash_rounding.Method   `json:"method" binding:"required,oneof=UP DOWN HALF-UP"`
	AccountID *id.ID                 `json:"accountId"`
}

func (r *CashRoundingRequest) apply(c *cash_rounding.CashRounding) {
	c.Code = r.Code
	c.Name = r.Name
	c.Rounding = r.Rounding
	c.Strategy = r.Strategy
	c.Method = r.Method
	c.AccountID = r.AccountID
}

// ToEntity converts DTO to domain entity.
func (r *CashRoundingRequest) ToEntity() *cash_rounding.CashRounding {
	c := cash_rounding.NewCashRounding(r.Code, r.Name, r.Rounding)
	r.apply(c)
	return c
}

// UpdateCashRoundingRequest is the request body for updating a cash rounding rule.
type UpdateCashRoundingRequest struct {
	CashRoundingRequest
	VersionedRequest
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateCashRoundingRequest) ApplyTo(c *cash_rounding.CashRounding) {
	r.apply(c)
	c.Version = r.Version
}
