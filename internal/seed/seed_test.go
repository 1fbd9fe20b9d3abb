package seed

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core/id"
)

const sample = `
currencies:
  - isoCode: EUR
    name: Euro
    symbol: "€"
    isBase: true
  - isoCode: USD
    name: US Dollar
    symbol: "$"
    decimalPlaces: 2
    rates:
      - date: 2024-01-01
        rate: "1.0850"
paymentTerms:
  - code: 30-70
    name: 30% now, balance in 60 days
    lines:
      - value: percent
        valueAmount: "30"
      - value: balance
        days: 60
companies:
  - code: MAIN
    name: Main Company
    currency: EUR
    exchangeJournal: EXCH
    accounts:
      - code: "411000"
        name: Customers
        type: receivable
    journals:
      - code: EXCH
        name: Exchange Difference
        type: general
    taxes:
      - code: VAT20
        name: VAT 20%
        amount: "20"
        account: "445710"
`

func TestParse_Document(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	require.Len(t, f.Currencies, 2)
	assert.True(t, f.Currencies[0].IsBase)
	assert.Nil(t, f.Currencies[0].DecimalPlaces)
	require.NotNil(t, f.Currencies[1].DecimalPlaces)
	assert.Equal(t, 2, *f.Currencies[1].DecimalPlaces)
	require.Len(t, f.Currencies[1].Rates, 1)
	assert.True(t, decimal.RequireFromString("1.085").Equal(f.Currencies[1].Rates[0].Rate))
	assert.Equal(t, 2024, f.Currencies[1].Rates[0].Date.Year())

	require.Len(t, f.PaymentTerms, 1)
	require.Len(t, f.PaymentTerms[0].Lines, 2)
	assert.Equal(t, "percent", f.PaymentTerms[0].Lines[0].Value)
	assert.Equal(t, 60, f.PaymentTerms[0].Lines[1].Days)

	require.Len(t, f.Companies, 1)
	c := f.Companies[0]
	assert.Equal(t, "EXCH", c.ExchangeJournal)
	assert.Equal(t, "411000", c.Accounts[0].Code)
	assert.Nil(t, c.Accounts[0].Reconcile)
	assert.True(t, decimal.NewFromInt(20).Equal(c.Taxes[0].Amount))
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader("currencies:\n  - isoCode: EUR\n    rounding: 0.01\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rounding")
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Companies)
}

func TestLookup(t *testing.T) {
	accID := id.New()
	m := map[string]id.ID{"411000": accID}

	got, err := lookup("account", m, "411000")
	require.NoError(t, err)
	assert.Equal(t, accID, *got)

	got, err = lookup("account", m, "")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = lookup("account", m, "999")
	assert.ErrorContains(t, err, `unknown account "999"`)
}

func TestCurrencyID_Unknown(t *testing.T) {
	s := NewSeeder(Services{})
	_, err := s.currencyID("JPY")
	assert.ErrorContains(t, err, "JPY")

	none, err := s.optionalCurrency("")
	require.NoError(t, err)
	assert.Nil(t, none)
}
