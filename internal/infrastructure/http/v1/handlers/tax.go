package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ledger/internal/core/apperror"
	"ledger/internal/domain/catalogs/company"
	"ledger/internal/domain/catalogs/tax"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/taxcalc"
	"ledger/internal/infrastructure/http/v1/dto"
)

// TaxHandler computes taxes of a line without booking anything, for
// previews in invoice forms.
type TaxHandler struct {
	*BaseHandler
	provider ledger.Provider
}

// NewTaxHandler creates a tax computation handler.
func NewTaxHandler(base *BaseHandler, provider ledger.Provider) *TaxHandler {
	return &TaxHandler{BaseHandler: base, provider: provider}
}

// Compute handles POST /taxes/compute
func (h *TaxHandler) Compute(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ComputeTaxesRequest
	if !h.BindJSON(c, &req) {
		return
	}

	comp, err := h.provider.Company(ctx, req.CompanyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	byID, err := h.provider.Taxes(ctx, req.TaxIDs)
	if err != nil {
		h.Error(c, err)
		return
	}
	taxes := make([]*tax.Tax, 0, len(req.TaxIDs))
	for _, taxID := range req.TaxIDs {
		t := byID[taxID]
		if t.CompanyID != comp.ID {
			h.Error(c, apperror.NewValidation("tax belongs to another company").WithDetail("taxId", taxID.String()))
			return
		}
		taxes = append(taxes, t)
	}

	rates, err := h.provider.Rates(ctx, time.Now().UTC(), req.CurrencyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	places, err := rates.Places(req.CurrencyID)
	if err != nil {
		h.Error(c, err)
		return
	}

	quantity := req.Quantity
	if quantity.IsZero() && req.BaseAmount == nil {
		quantity = decimal.NewFromInt(1)
	}

	res, err := taxcalc.ComputeAll(taxcalc.Input{
		BaseAmount:        req.BaseAmount,
		Quantity:          quantity,
		PriceUnit:         req.PriceUnit,
		Discount:          req.Discount,
		Places:            places,
		Taxes:             taxes,
		ForcePriceInclude: req.PriceInclude,
		RoundGlobally:     comp.TaxRounding == company.TaxRoundGlobally,
		IsRefund:          req.IsRefund,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTaxResult(res))
}
