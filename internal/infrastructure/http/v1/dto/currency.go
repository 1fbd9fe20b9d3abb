package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/currency"
)

// --- Request DTOs ---

// CreateCurrencyRequest is the request body for creating a currency.
type CreateCurrencyRequest struct {
	ISOCode       string `json:"isoCode" binding:"required,len=3,alpha"`
	Name          string `json:"name" binding:"required"`
	Symbol        string `json:"symbol" binding:"required"`
	DecimalPlaces *int   `json:"decimalPlaces" binding:"omitempty,min=0,max=6"`
	IsBase        bool   `json:"isBase"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateCurrencyRequest) ToEntity() *currency.Currency {
	c := currency.NewCurrency(r.ISOCode, r.Name, r.Symbol)
	if r.DecimalPlaces != nil {
		c.DecimalPlaces = *r.DecimalPlaces
	}
	c.IsBase = r.IsBase
	return c
}

// UpdateCurrencyRequest is the request body for updating a currency.
type UpdateCurrencyRequest struct {
	VersionedRequest
	Name          string `json:"name" binding:"required"`
	Symbol        string `json:"symbol" binding:"required"`
	DecimalPlaces int    `json:"decimalPlaces" binding:"min=0,max=6"`
	IsBase        bool   `json:"isBase"`
}

// ApplyTo applies update DTO to existing entity. The ISO code is immutable.
func (r *UpdateCurrencyRequest) ApplyTo(c *currency.Currency) {
	c.Name = r.Name
	c.Symbol = r.Symbol
	c.DecimalPlaces = r.DecimalPlaces
	c.IsBase = r.IsBase
	c.Version = r.Version
}

// SetRateRequest records the rate of a currency on a date.
type SetRateRequest struct {
	Date      time.Time       `json:"date" binding:"required"`
	Rate      decimal.Decimal `json:"rate" binding:"decimal_gt0"`
	CompanyID *id.ID          `json:"companyId"`
}

// ToEntity converts DTO to domain entity.
func (r *SetRateRequest) ToEntity(currencyID id.ID) *currency.Rate {
	rate := currency.NewRate(currencyID, r.Date, r.Rate)
	rate.CompanyID = r.CompanyID
	return rate
}

// ConvertQuery are the query parameters of GET /currencies/convert.
type ConvertQuery struct {
	Amount    string    `form:"amount" binding:"required,numeric"`
	From      string    `form:"from" binding:"required,uuid"`
	To        string    `form:"to" binding:"required,uuid"`
	CompanyID string    `form:"companyId" binding:"required,uuid"`
	Date      time.Time `form:"date" time_format:"2006-01-02"`
	Round     bool      `form:"round"`
}

// --- Response DTOs ---

// CurrencyResponse is the response body for a currency.
type CurrencyResponse struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	ISOCode       string `json:"isoCode"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	DecimalPlaces int    `json:"decimalPlaces"`
	IsBase        bool   `json:"isBase"`
	DeletionMark  bool   `json:"deletionMark"`
	Version       int    `json:"version"`
}

// FromCurrency creates response DTO from domain entity.
func FromCurrency(c *currency.Currency) *CurrencyResponse {
	return &CurrencyResponse{
		ID:            c.ID.String(),
		Code:          c.Code,
		ISOCode:       c.ISOCode,
		Name:          c.Name,
		Symbol:        c.Symbol,
		DecimalPlaces: c.DecimalPlaces,
		IsBase:        c.IsBase,
		DeletionMark:  c.DeletionMark,
		Version:       c.Version,
	}
}

// RateResponse is one dated rate.
type RateResponse struct {
	ID         string          `json:"id"`
	CurrencyID string          `json:"currencyId"`
	CompanyID  *id.ID          `json:"companyId,omitempty"`
	Date       string          `json:"date"`
	Rate       decimal.Decimal `json:"rate"`
}

// FromRate creates response DTO from domain entity.
func FromRate(r *currency.Rate) RateResponse {
	return RateResponse{
		ID:         r.ID.String(),
		CurrencyID: r.CurrencyID.String(),
		CompanyID:  r.CompanyID,
		Date:       r.Date.Format(time.DateOnly),
		Rate:       r.Rate,
	}
}

// ConvertResponse is the result of a conversion.
type ConvertResponse struct {
	Amount decimal.Decimal `json:"amount"`
	From   string          `json:"from"`
	To     string          `json:"to"`
	Date   string          `json:"date"`
}
