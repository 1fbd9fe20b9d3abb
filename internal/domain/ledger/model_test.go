package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core/id"
	"ledger/internal/core/types"
)

func TestMoveType_Tables(t *testing.T) {
	tests := []struct {
		typ     MoveType
		product int
		payment int
		refund  MoveType
		invoice bool
		inbound bool
	}{
		{TypeEntry, 0, 0, TypeEntry, false, false},
		{TypeOutInvoice, -1, 1, TypeOutRefund, true, true},
		{TypeOutRefund, 1, -1, TypeOutInvoice, true, false},
		{TypeInInvoice, 1, -1, TypeInRefund, true, false},
		{TypeInRefund, -1, 1, TypeInInvoice, true, true},
		{TypeOutReceipt, -1, 1, TypeOutRefund, false, true},
		{TypeInReceipt, 1, -1, TypeInRefund, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.product, tt.typ.ProductSign())
			assert.Equal(t, tt.payment, tt.typ.PaymentSign())
			assert.Equal(t, tt.refund, tt.typ.RefundType())
			assert.Equal(t, tt.invoice, tt.typ.IsInvoice(false))
			assert.Equal(t, tt.typ != TypeEntry, tt.typ.IsInvoice(true))
			assert.Equal(t, tt.inbound, tt.typ.IsInbound())
		})
	}
	assert.False(t, MoveType("bogus").Valid())
}

func TestLine_Validate(t *testing.T) {
	ctx := context.Background()
	account := id.New()

	line := NewLine(account, "ok", types.MustMoney("10"))
	require.NoError(t, line.Validate(ctx))
	assert.True(t, line.Debit.Equal(types.MustMoney("10")))
	assert.True(t, line.Credit.IsZero())

	both := NewLine(account, "both", types.MustMoney("10"))
	both.Credit = types.MustMoney("1")
	assert.Error(t, both.Validate(ctx))

	negative := NewLine(account, "negative", decimal.Zero)
	negative.Debit = types.MustMoney("-1")
	assert.Error(t, negative.Validate(ctx))

	note := &Line{DisplayType: DisplayNote, Name: "note"}
	assert.NoError(t, note.Validate(ctx))
}

func TestMove_Validate(t *testing.T) {
	ctx := context.Background()
	usd := id.New()
	m := NewMove(id.New(), id.New(), usd, usd, TypeOutInvoice, types.MustDate("2024-01-01"))
	assert.Error(t, m.Validate(ctx), "invoice without payment account")

	receivable := id.New()
	m.PaymentAccountID = &receivable
	bad := NewLine(id.New(), "bad", types.MustMoney("1"))
	bad.Credit = types.MustMoney("1")
	m.SetLines([]*Line{bad})
	assert.Error(t, m.Validate(ctx))

	m.SetLines([]*Line{NewLine(id.New(), "fine", types.MustMoney("1"))})
	require.NoError(t, m.Validate(ctx))
	assert.Equal(t, m.ID, m.Lines[0].MoveID)
	assert.Equal(t, m.CompanyID, m.Lines[0].CompanyID)
	assert.False(t, m.IsForeign())
}

func TestComputeResidual(t *testing.T) {
	account := id.New()
	debit := NewLine(account, "invoice", types.MustMoney("100"))
	credit1 := NewLine(account, "payment 1", types.MustMoney("-60"))
	credit2 := NewLine(account, "payment 2", types.MustMoney("-40"))

	p1 := NewPartialReconcile(debit.ID, credit1.ID, types.MustMoney("60"))
	ComputeResidual(debit, []*PartialReconcile{p1}, true, 2, 2)
	ComputeResidual(credit1, []*PartialReconcile{p1}, true, 2, 2)
	assert.Equal(t, "40", debit.AmountResidual.String())
	assert.False(t, debit.Reconciled)
	assert.True(t, credit1.AmountResidual.IsZero())
	assert.True(t, credit1.Reconciled)

	p2 := NewPartialReconcile(debit.ID, credit2.ID, types.MustMoney("40"))
	ComputeResidual(debit, []*PartialReconcile{p1, p2}, true, 2, 2)
	assert.True(t, debit.AmountResidual.IsZero())
	assert.True(t, debit.Reconciled)

	ComputeResidual(credit2, nil, true, 2, 2)
	assert.Equal(t, "-40", credit2.AmountResidual.String())

	ComputeResidual(credit2, nil, false, 2, 2)
	assert.True(t, credit2.AmountResidual.IsZero())
	assert.False(t, credit2.Reconciled)
}

func TestComputeResidual_Currency(t *testing.T) {
	account, eur := id.New(), id.New()
	debit := NewLine(account, "invoice", types.MustMoney("200"))
	debit.CurrencyID = &eur
	debit.AmountCurrency = types.MustMoney("100")

	same := NewPartialReconcile(debit.ID, id.New(), types.MustMoney("50"))
	same.CurrencyID = &eur
	same.AmountCurrency = types.MustMoney("30")
	ComputeResidual(debit, []*PartialReconcile{same}, true, 2, 2)
	assert.Equal(t, "150", debit.AmountResidual.String())
	assert.Equal(t, "70", debit.AmountResidualCurrency.String())

	// partial without currency is pro-rated at the line's own rate
	other := NewPartialReconcile(debit.ID, id.New(), types.MustMoney("50"))
	ComputeResidual(debit, []*PartialReconcile{other}, true, 2, 2)
	assert.Equal(t, "75", debit.AmountResidualCurrency.String())

	// company side settled while the foreign side is still open
	full := NewPartialReconcile(debit.ID, id.New(), types.MustMoney("200"))
	full.CurrencyID = &eur
	full.AmountCurrency = types.MustMoney("90")
	ComputeResidual(debit, []*PartialReconcile{full}, true, 2, 2)
	assert.True(t, debit.AmountResidual.IsZero())
	assert.Equal(t, "10", debit.AmountResidualCurrency.String())
	assert.False(t, debit.Reconciled)
}

func TestComputeResidual_ExchangeLine(t *testing.T) {
	account, eur := id.New(), id.New()
	fix := NewLine(account, "exchange", decimal.Zero)
	fix.CurrencyID = &eur
	fix.AmountCurrency = types.MustMoney("-10")

	ComputeResidual(fix, nil, true, 2, 2)
	assert.Equal(t, "-10", fix.AmountResidualCurrency.String())

	p := NewPartialReconcile(id.New(), fix.ID, decimal.Zero)
	p.CurrencyID = &eur
	p.AmountCurrency = types.MustMoney("10")
	ComputeResidual(fix, []*PartialReconcile{p}, true, 2, 2)
	assert.True(t, fix.AmountResidualCurrency.IsZero())
	assert.True(t, fix.Reconciled)
}
