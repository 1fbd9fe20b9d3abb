package taxcalc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
	"ledger/internal/core/types"
	"ledger/internal/domain/catalogs/tax"
)

var companyID = id.New()

func percent(amount string, seq int) *tax.Tax {
	t := tax.NewPercentTax(companyID, "T"+amount, "Tax "+amount+"%", types.MustMoney(amount))
	t.Sequence = seq
	return t
}

func money(s string) decimal.Decimal { return types.MustMoney(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, got.Equal(money(want)), "%s: want %s, got %s", msg, want, got)
}

func TestComputeAll_SinglePercent(t *testing.T) {
	res, err := ComputeAll(Input{
		Quantity:  money("1"),
		PriceUnit: money("1000"),
		Places:    2,
		Taxes:     []*tax.Tax{percent("15", 1)},
	})
	require.NoError(t, err)

	assertMoney(t, "1000", res.TotalExcluded, "total excluded")
	assertMoney(t, "1150", res.TotalIncluded, "total included")
	require.Len(t, res.Taxes, 1)
	assertMoney(t, "150", res.Taxes[0].Amount, "tax")
	assertMoney(t, "1000", res.Taxes[0].Base, "base")
}

func TestComputeAll_FullDiscount(t *testing.T) {
	included := percent("21", 1)
	included.PriceInclude = true

	for _, tx := range []*tax.Tax{percent("15", 1), included} {
		res, err := ComputeAll(Input{
			Quantity:  money("3"),
			PriceUnit: money("99.99"),
			Discount:  money("100"),
			Places:    2,
			Taxes:     []*tax.Tax{tx},
		})
		require.NoError(t, err)
		assert.True(t, res.TotalExcluded.IsZero())
		assert.True(t, res.TotalIncluded.IsZero())
		assert.True(t, res.Taxes[0].Amount.IsZero())
	}
}

func TestComputeAll_PriceInclude(t *testing.T) {
	tx := percent("21", 1)
	tx.PriceInclude = true

	res, err := ComputeAll(Input{
		Quantity:  money("1"),
		PriceUnit: money("121"),
		Places:    2,
		Taxes:     []*tax.Tax{tx},
	})
	require.NoError(t, err)
	assertMoney(t, "100", res.TotalExcluded, "total excluded")
	assertMoney(t, "121", res.TotalIncluded, "total included")
	assertMoney(t, "21", res.Taxes[0].Amount, "tax")
	assertMoney(t, "100", res.Taxes[0].Base, "base")
}

func TestComputeAll_ForcePriceInclude(t *testing.T) {
	res, err := ComputeAll(Input{
		Quantity:          money("1"),
		PriceUnit:         money("110"),
		Places:            2,
		Taxes:             []*tax.Tax{percent("10", 1)},
		ForcePriceInclude: true,
	})
	require.NoError(t, err)
	assertMoney(t, "100", res.TotalExcluded, "total excluded")
	assertMoney(t, "10", res.Taxes[0].Amount, "tax")
}

func TestComputeAll_TaxOnTax(t *testing.T) {
	first := percent("10", 1)
	first.IncludeBaseAmount = true
	second := percent("5", 2)

	// order of the slice does not matter, sequence does
	res, err := ComputeAll(Input{
		Quantity:  money("2"),
		PriceUnit: money("50"),
		Places:    2,
		Taxes:     []*tax.Tax{second, first},
	})
	require.NoError(t, err)
	require.Len(t, res.Taxes, 2)
	assert.Equal(t, first.ID, res.Taxes[0].TaxID)
	assertMoney(t, "10", res.Taxes[0].Amount, "first")
	assertMoney(t, "100", res.Taxes[0].Base, "first base")
	assertMoney(t, "5.5", res.Taxes[1].Amount, "second")
	assertMoney(t, "110", res.Taxes[1].Base, "second base")
	assertMoney(t, "115.5", res.TotalIncluded, "total included")
}

func TestComputeAll_PerTaxRounding(t *testing.T) {
	res, err := ComputeAll(Input{
		Quantity:  money("1"),
		PriceUnit: money("10.05"),
		Places:    2,
		Taxes:     []*tax.Tax{percent("7.5", 1), percent("7.5", 2)},
	})
	require.NoError(t, err)
	// 0.75375 rounds to 0.75 for each tax
	assertMoney(t, "0.75", res.Taxes[0].Amount, "first")
	assertMoney(t, "0.75", res.Taxes[1].Amount, "second")
	assertMoney(t, "11.55", res.TotalIncluded, "total")

	res, err = ComputeAll(Input{
		Quantity:      money("1"),
		PriceUnit:     money("10.05"),
		Places:        2,
		Taxes:         []*tax.Tax{percent("7.5", 1), percent("7.5", 2)},
		RoundGlobally: true,
	})
	require.NoError(t, err)
	assertMoney(t, "0.75375", res.Taxes[0].Amount, "unrounded")
	assertMoney(t, "11.56", res.TotalIncluded, "global total")
}

func TestComputeAll_Group(t *testing.T) {
	child1 := percent("10", 1)
	child2 := percent("5", 2)
	group := percent("0", 1)
	group.AmountType = tax.AmountGroup
	group.ChildrenIDs = []id.ID{child1.ID, child2.ID}
	group.Children = []*tax.Tax{child1, child2}

	res, err := ComputeAll(Input{
		Quantity:  money("1"),
		PriceUnit: money("200"),
		Places:    2,
		Taxes:     []*tax.Tax{group},
	})
	require.NoError(t, err)
	require.Len(t, res.Taxes, 2)
	assertMoney(t, "20", res.Taxes[0].Amount, "child 1")
	assertMoney(t, "10", res.Taxes[1].Amount, "child 2")
	assertMoney(t, "230", res.TotalIncluded, "total")
	assertMoney(t, "30", res.TaxAmount(), "tax amount")
}

func TestComputeAll_GroupChildrenNotLoaded(t *testing.T) {
	group := percent("0", 1)
	group.AmountType = tax.AmountGroup
	group.ChildrenIDs = []id.ID{id.New()}

	_, err := ComputeAll(Input{Quantity: money("1"), PriceUnit: money("1"), Places: 2, Taxes: []*tax.Tax{group}})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestComputeAll_Fixed(t *testing.T) {
	eco := percent("0", 1)
	eco.AmountType = tax.AmountFixed
	eco.Amount = money("0.30")

	res, err := ComputeAll(Input{Quantity: money("4"), PriceUnit: money("2"), Places: 2, Taxes: []*tax.Tax{eco}})
	require.NoError(t, err)
	assertMoney(t, "1.2", res.Taxes[0].Amount, "fixed")

	res, err = ComputeAll(Input{Quantity: money("4"), PriceUnit: money("-2"), Places: 2, Taxes: []*tax.Tax{eco}})
	require.NoError(t, err)
	assertMoney(t, "-1.2", res.Taxes[0].Amount, "fixed on negative base")
}

func TestComputeAll_Division(t *testing.T) {
	div := percent("20", 1)
	div.AmountType = tax.AmountDivision

	res, err := ComputeAll(Input{Quantity: money("1"), PriceUnit: money("80"), Places: 2, Taxes: []*tax.Tax{div}})
	require.NoError(t, err)
	assertMoney(t, "20", res.Taxes[0].Amount, "division")
	assertMoney(t, "100", res.TotalIncluded, "total")

	div.PriceInclude = true
	res, err = ComputeAll(Input{Quantity: money("1"), PriceUnit: money("100"), Places: 2, Taxes: []*tax.Tax{div}})
	require.NoError(t, err)
	assertMoney(t, "20", res.Taxes[0].Amount, "division included")
	assertMoney(t, "80", res.TotalExcluded, "excluded")
}

func TestComputeAll_Code(t *testing.T) {
	code := percent("0", 1)
	code.AmountType = tax.AmountCode
	code.Formula = "base > 100.0 ? base * 0.1 : quantity * 2.0"

	res, err := ComputeAll(Input{Quantity: money("3"), PriceUnit: money("100"), Places: 2, Taxes: []*tax.Tax{code}})
	require.NoError(t, err)
	assertMoney(t, "30", res.Taxes[0].Amount, "over threshold")

	res, err = ComputeAll(Input{Quantity: money("3"), PriceUnit: money("10"), Places: 2, Taxes: []*tax.Tax{code}})
	require.NoError(t, err)
	assertMoney(t, "6", res.Taxes[0].Amount, "under threshold")
}

func TestCompileFormula_Invalid(t *testing.T) {
	_, err := CompileFormula("base +")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = CompileFormula("'text'")
	require.Error(t, err)
}

func TestComputeAll_CashBasisAccounts(t *testing.T) {
	suspense, due, refund := id.New(), id.New(), id.New()
	tx := percent("10", 1)
	tx.Exigibility = tax.OnPayment
	tx.CashBasisAccountID = &suspense
	tx.AccountID = &due
	tx.RefundAccountID = &refund

	res, err := ComputeAll(Input{Quantity: money("1"), PriceUnit: money("10"), Places: 2, Taxes: []*tax.Tax{tx}, IsRefund: true})
	require.NoError(t, err)
	assert.Equal(t, suspense, *res.Taxes[0].AccountID)
	assert.Equal(t, refund, *res.Taxes[0].DueAccountID)
	assert.Equal(t, tax.OnPayment, res.Taxes[0].Exigibility)
}
