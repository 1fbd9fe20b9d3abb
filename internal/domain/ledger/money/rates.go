package money

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/currency"
)

// RateTable holds currencies and their rates, sorted by date per currency.
type RateTable struct {
	currencies map[id.ID]*currency.Currency
	rates      map[id.ID][]*currency.Rate
}

// NewRateTable indexes the given currencies and rates.
func NewRateTable(currencies []*currency.Currency, rates []*currency.Rate) *RateTable {
	t := &RateTable{
		currencies: make(map[id.ID]*currency.Currency, len(currencies)),
		rates:      make(map[id.ID][]*currency.Rate),
	}
	for _, c := range currencies {
		t.currencies[c.ID] = c
	}
	for _, r := range rates {
		t.rates[r.CurrencyID] = append(t.rates[r.CurrencyID], r)
	}
	for _, list := range t.rates {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Date.Before(list[j].Date)
		})
	}
	return t
}

// Currency returns a currency of the table.
func (t *RateTable) Currency(currencyID id.ID) (*currency.Currency, error) {
	c, ok := t.currencies[currencyID]
	if !ok {
		return nil, apperror.NewNotFound("currency", currencyID.String())
	}
	return c, nil
}

// Places returns the decimal places of a currency of the table.
func (t *RateTable) Places(currencyID id.ID) (int32, error) {
	c, err := t.Currency(currencyID)
	if err != nil {
		return 0, err
	}
	return c.Places(), nil
}

// RateAt returns the latest rate of the currency dated on or before date.
// Rates of companyID win over shared rates of the same date. The base
// currency without any rate counts as 1.
func (t *RateTable) RateAt(currencyID, companyID id.ID, date time.Time) (decimal.Decimal, error) {
	c, err := t.Currency(currencyID)
	if err != nil {
		return decimal.Zero, err
	}

	var found *currency.Rate
	for _, r := range t.rates[currencyID] {
		if r.Date.After(date) {
			break
		}
		if r.CompanyID != nil && *r.CompanyID != companyID {
			continue
		}
		if found != nil && found.Date.Equal(r.Date) && found.CompanyID != nil && r.CompanyID == nil {
			continue
		}
		found = r
	}

	if found != nil {
		return found.Rate, nil
	}
	if c.IsBase {
		return decimal.NewFromInt(1), nil
	}
	return decimal.Zero, apperror.NewMissingConfiguration("currency_rate",
		fmt.Sprintf("No exchange rate for %s on or before %s", c.ISOCode, date.Format(time.DateOnly)))
}
