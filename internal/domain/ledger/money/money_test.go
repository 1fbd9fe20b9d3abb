package money

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
	"ledger/internal/core/types"
	"ledger/internal/domain/catalogs/currency"
)

func TestRound(t *testing.T) {
	tests := []struct {
		in     string
		places int32
		want   string
	}{
		{"2.675", 2, "2.68"},
		{"-2.675", 2, "-2.68"},
		{"2.674", 2, "2.67"},
		{"0.5", 0, "1"},
		{"1.23456", 3, "1.235"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Round(types.MustMoney(tt.in), tt.places)
			assert.True(t, got.Equal(types.MustMoney(tt.want)), "got %s", got)
		})
	}
}

func TestCompare(t *testing.T) {
	assert.Equal(t, 0, Compare(types.MustMoney("1.001"), types.MustMoney("1.004"), 2))
	assert.Equal(t, -1, Compare(types.MustMoney("1.00"), types.MustMoney("1.01"), 2))
	assert.Equal(t, 1, Compare(types.MustMoney("1.02"), types.MustMoney("1.01"), 2))
	assert.True(t, IsZero(types.MustMoney("0.004"), 2))
	assert.False(t, IsZero(types.MustMoney("0.005"), 2))
}

type fixture struct {
	usd, eur, jpy *currency.Currency
	company       id.ID
	table         *RateTable
}

func newFixture() fixture {
	usd := currency.NewCurrency("USD", "US Dollar", "$")
	usd.IsBase = true
	eur := currency.NewCurrency("EUR", "Euro", "€")
	jpy := currency.NewCurrency("JPY", "Yen", "¥")
	jpy.DecimalPlaces = 0

	company := id.New()
	companyRate := currency.NewRate(eur.ID, types.MustDate("2024-02-01"), types.MustMoney("0.5"))
	companyRate.CompanyID = &company

	rates := []*currency.Rate{
		currency.NewRate(eur.ID, types.MustDate("2024-03-01"), types.MustMoney("0.8")),
		currency.NewRate(eur.ID, types.MustDate("2024-01-01"), types.MustMoney("0.9")),
		currency.NewRate(eur.ID, types.MustDate("2024-02-01"), types.MustMoney("0.85")),
		companyRate,
		currency.NewRate(jpy.ID, types.MustDate("2024-01-01"), types.MustMoney("150")),
	}
	return fixture{
		usd: usd, eur: eur, jpy: jpy, company: company,
		table: NewRateTable([]*currency.Currency{usd, eur, jpy}, rates),
	}
}

func TestRateTable_RateAt(t *testing.T) {
	f := newFixture()
	other := id.New()

	tests := []struct {
		name    string
		company id.ID
		date    string
		want    string
	}{
		{"latest rate before date", other, "2024-02-15", "0.85"},
		{"rate of the same day", other, "2024-03-01", "0.8"},
		{"company rate wins on its day", f.company, "2024-02-10", "0.5"},
		{"later shared rate replaces company rate", f.company, "2024-03-02", "0.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, err := f.table.RateAt(f.eur.ID, tt.company, types.MustDate(tt.date))
			require.NoError(t, err)
			assert.True(t, rate.Equal(types.MustMoney(tt.want)), "got %s", rate)
		})
	}

	t.Run("base currency without rates", func(t *testing.T) {
		rate, err := f.table.RateAt(f.usd.ID, f.company, types.MustDate("2024-01-01"))
		require.NoError(t, err)
		assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	})

	t.Run("missing rate", func(t *testing.T) {
		_, err := f.table.RateAt(f.eur.ID, other, types.MustDate("2023-12-31"))
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeMissingConfiguration))
	})

	t.Run("unknown currency", func(t *testing.T) {
		_, err := f.table.RateAt(id.New(), other, time.Now())
		assert.True(t, apperror.IsNotFound(err))
	})
}

func TestConverter_Convert(t *testing.T) {
	f := newFixture()
	c := NewConverter(f.table)
	date := types.MustDate("2024-02-15")
	other := id.New()

	got, err := c.Convert(types.MustMoney("100"), f.usd.ID, f.eur.ID, other, date)
	require.NoError(t, err)
	assert.Equal(t, "85", got.String())

	got, err = c.Convert(types.MustMoney("85"), f.eur.ID, f.usd.ID, other, date)
	require.NoError(t, err)
	assert.Equal(t, "100", got.String())

	got, err = c.Convert(types.MustMoney("10"), f.eur.ID, f.jpy.ID, other, date)
	require.NoError(t, err)
	// 10 * 150 / 0.85 = 1764.70...
	assert.Equal(t, "1765", got.String())

	got, err = c.Convert(types.MustMoney("12.345"), f.eur.ID, f.eur.ID, other, date)
	require.NoError(t, err)
	assert.Equal(t, "12.35", got.String())
}
