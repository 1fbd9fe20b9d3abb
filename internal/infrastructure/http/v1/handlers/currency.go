package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/currency"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/money"
	"ledger/internal/infrastructure/http/v1/dto"
)

// CurrencyHandler serves the currency catalog, its dated rates and conversions.
type CurrencyHandler struct {
	*CatalogHandler[*currency.Currency, dto.CreateCurrencyRequest, dto.UpdateCurrencyRequest]
	service  *currency.Service
	provider ledger.Provider
}

// NewCurrencyHandler creates the currencies handler.
func NewCurrencyHandler(base *BaseHandler, service *currency.Service, provider ledger.Provider) *CurrencyHandler {
	catalog := NewCatalogHandler(base, CatalogHandlerConfig[*currency.Currency, dto.CreateCurrencyRequest, dto.UpdateCurrencyRequest]{
		Service:    service.CatalogService,
		EntityName: "currency",
		MapCreateDTO: func(req dto.CreateCurrencyRequest) *currency.Currency {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.UpdateCurrencyRequest, existing *currency.Currency) *currency.Currency {
			req.ApplyTo(existing)
			return existing
		},
		MapToDTO: func(c *currency.Currency) any {
			return dto.FromCurrency(c)
		},
	})
	return &CurrencyHandler{CatalogHandler: catalog, service: service, provider: provider}
}

// SetRate handles POST /catalogs/currencies/:id/rates
func (h *CurrencyHandler) SetRate(c *gin.Context) {
	currencyID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.SetRateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rate := req.ToEntity(currencyID)
	if err := h.service.SetRate(c.Request.Context(), rate); err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromRate(rate)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// Rates handles GET /catalogs/currencies/:id/rates?until=2024-12-31
func (h *CurrencyHandler) Rates(c *gin.Context) {
	currencyID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	until := time.Now().UTC()
	if raw := c.Query("until"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid until date (YYYY-MM-DD expected)"))
			return
		}
		until = parsed
	}

	rates, err := h.service.Rates(c.Request.Context(), currencyID, until)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.RateResponse, len(rates))
	for i, r := range rates {
		items[i] = dto.FromRate(r)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Convert handles GET /currencies/convert
func (h *CurrencyHandler) Convert(c *gin.Context) {
	var q dto.ConvertQuery
	if !h.BindQuery(c, &q) {
		return
	}

	amount, err := decimal.NewFromString(q.Amount)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid amount").WithDetail("param", "amount"))
		return
	}
	from, to, companyID := id.MustParse(q.From), id.MustParse(q.To), id.MustParse(q.CompanyID)
	date := q.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	rates, err := h.provider.Rates(c.Request.Context(), date, from, to)
	if err != nil {
		h.Error(c, err)
		return
	}
	conv := money.NewConverter(rates)

	var converted decimal.Decimal
	if q.Round {
		converted, err = conv.Convert(amount, from, to, companyID, date)
	} else {
		var rate decimal.Decimal
		rate, err = conv.Rate(from, to, companyID, date)
		converted = amount.Mul(rate)
	}
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ConvertResponse{
		Amount: converted,
		From:   from.String(),
		To:     to.String(),
		Date:   date.Format(time.DateOnly),
	})
}
