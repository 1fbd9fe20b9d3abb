package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core/id"
	"ledger/internal/core/types"
	"ledger/internal/domain/ledger"
)

func openLineAt(date, balance string) *ledger.Line {
	line := ledger.NewLine(id.New(), "line", types.MustMoney(balance))
	line.Date = types.MustDate(date)
	line.AmountResidual = line.Balance()
	return line
}

func foreign(line *ledger.Line, currencyID id.ID, amount string) *ledger.Line {
	line.CurrencyID = &currencyID
	line.AmountCurrency = types.MustMoney(amount)
	line.AmountResidualCurrency = line.AmountCurrency
	return line
}

func TestMatch_OldestFirst(t *testing.T) {
	late := openLineAt("2024-02-01", "50")
	early := openLineAt("2024-01-01", "100")
	credit := openLineAt("2024-03-01", "-120")

	partials := Match([]*ledger.Line{late, credit, early}, 2, 2)
	require.Len(t, partials, 2)

	assert.Equal(t, early.ID, partials[0].DebitLineID)
	assert.True(t, partials[0].Amount.Equal(types.MustMoney("100")))
	assert.Equal(t, late.ID, partials[1].DebitLineID)
	assert.True(t, partials[1].Amount.Equal(types.MustMoney("20")))
	for _, p := range partials {
		assert.Equal(t, credit.ID, p.CreditLineID)
		assert.Nil(t, p.CurrencyID)
	}
}

func TestMatch_MaturityBeforeDate(t *testing.T) {
	a := openLineAt("2024-01-01", "100")
	due := types.MustDate("2024-06-01")
	a.DateMaturity = &due
	b := openLineAt("2024-02-01", "100")
	credit := openLineAt("2024-03-01", "-100")

	partials := Match([]*ledger.Line{a, b, credit}, 2, 2)
	require.Len(t, partials, 1)
	assert.Equal(t, b.ID, partials[0].DebitLineID)
}

func TestMatch_SharedCurrencyDrivesMatching(t *testing.T) {
	eur := id.New()
	invoice := foreign(openLineAt("2024-01-01", "200"), eur, "100")
	payment := foreign(openLineAt("2024-02-01", "-180"), eur, "-100")

	partials := Match([]*ledger.Line{invoice, payment}, 2, 2)
	require.Len(t, partials, 1)

	p := partials[0]
	assert.True(t, p.Amount.Equal(types.MustMoney("180")))
	require.NotNil(t, p.CurrencyID)
	assert.Equal(t, eur, *p.CurrencyID)
	assert.True(t, p.AmountCurrency.Equal(types.MustMoney("100")))
}

func TestMatch_SettledForeignLineLeavesQueue(t *testing.T) {
	eur := id.New()
	invoice := foreign(openLineAt("2024-01-01", "200"), eur, "100")
	first := foreign(openLineAt("2024-02-01", "-180"), eur, "-100")
	second := foreign(openLineAt("2024-02-02", "-50"), eur, "-25")

	partials := Match([]*ledger.Line{invoice, first, second}, 2, 2)
	require.Len(t, partials, 1)
	assert.Equal(t, first.ID, partials[0].CreditLineID)
}

func TestMatch_ExchangeLinesUseCompanyResidual(t *testing.T) {
	eur := id.New()
	fix := foreign(openLineAt("2024-02-01", "-20"), eur, "0")
	reversal := foreign(openLineAt("2024-02-02", "20"), eur, "0")

	partials := Match([]*ledger.Line{fix, reversal}, 2, 2)
	require.Len(t, partials, 1)
	assert.Equal(t, reversal.ID, partials[0].DebitLineID)
	assert.True(t, partials[0].Amount.Equal(types.MustMoney("20")))
	assert.True(t, partials[0].AmountCurrency.IsZero())
}

func TestMatch_MixedCurrenciesMatchInCompanyCurrency(t *testing.T) {
	eur := id.New()
	invoice := foreign(openLineAt("2024-01-01", "200"), eur, "100")
	payment := openLineAt("2024-02-01", "-150")

	partials := Match([]*ledger.Line{invoice, payment}, 2, 2)
	require.Len(t, partials, 1)
	assert.True(t, partials[0].Amount.Equal(types.MustMoney("150")))
	assert.Nil(t, partials[0].CurrencyID)
}

func TestMatch_OneSidedOrSettled(t *testing.T) {
	assert.Empty(t, Match([]*ledger.Line{openLineAt("2024-01-01", "100"), openLineAt("2024-01-02", "50")}, 2, 2))

	zero := openLineAt("2024-01-01", "0")
	assert.Empty(t, Match([]*ledger.Line{zero, openLineAt("2024-01-02", "-50")}, 2, 2))
}

func TestSharedCurrency(t *testing.T) {
	eur, gbp := id.New(), id.New()

	shared := SharedCurrency([]*ledger.Line{
		foreign(openLineAt("2024-01-01", "1"), eur, "1"),
		foreign(openLineAt("2024-01-01", "-1"), eur, "-1"),
	})
	require.NotNil(t, shared)
	assert.Equal(t, eur, *shared)

	assert.Nil(t, SharedCurrency([]*ledger.Line{
		foreign(openLineAt("2024-01-01", "1"), eur, "1"),
		foreign(openLineAt("2024-01-01", "-1"), gbp, "-1"),
	}))
	assert.Nil(t, SharedCurrency([]*ledger.Line{
		foreign(openLineAt("2024-01-01", "1"), eur, "1"),
		openLineAt("2024-01-01", "-1"),
	}))
}
