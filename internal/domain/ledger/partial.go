package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core/id"
)

// PartialReconcile settles part of one debit line against part of one credit line.
type PartialReconcile struct {
	ID           id.ID `db:"id" json:"id"`
	DebitLineID  id.ID `db:"debit_line_id" json:"debitLineId"`
	CreditLineID id.ID `db:"credit_line_id" json:"creditLineId"`

	// Amount is positive, in company currency
	Amount decimal.Decimal `db:"amount" json:"amount"`

	// AmountCurrency is the matched amount in CurrencyID when both lines share it
	AmountCurrency decimal.Decimal `db:"amount_currency" json:"amountCurrency"`
	CurrencyID     *id.ID          `db:"currency_id" json:"currencyId,omitempty"`

	FullReconcileID *id.ID    `db:"full_reconcile_id" json:"fullReconcileId,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// NewPartialReconcile creates a partial between a debit and a credit line.
func NewPartialReconcile(debitLineID, creditLineID id.ID, amount decimal.Decimal) *PartialReconcile {
	return &PartialReconcile{
		ID:           id.New(),
		DebitLineID:  debitLineID,
		CreditLineID: creditLineID,
		Amount:       amount,
		CreatedAt:    time.Now().UTC(),
	}
}

// Touches reports whether the partial involves the line.
func (p *PartialReconcile) Touches(lineID id.ID) bool {
	return p.DebitLineID == lineID || p.CreditLineID == lineID
}

// Other returns the line on the opposite side of lineID.
func (p *PartialReconcile) Other(lineID id.ID) id.ID {
	if p.DebitLineID == lineID {
		return p.CreditLineID
	}
	return p.DebitLineID
}

// FullReconcile closes a chain of partials whose lines net to zero.
type FullReconcile struct {
	ID   id.ID  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`

	// ExchangeMoveID is the adjustment entry booked when the chain closed
	ExchangeMoveID *id.ID    `db:"exchange_move_id" json:"exchangeMoveId,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`

	PartialIDs []id.ID `db:"-" json:"partialIds"`
	LineIDs    []id.ID `db:"-" json:"lineIds"`
}

// NewFullReconcile creates a full reconcile grouping partials and lines.
func NewFullReconcile(name string, partialIDs, lineIDs []id.ID) *FullReconcile {
	return &FullReconcile{
		ID:         id.New(),
		Name:       name,
		CreatedAt:  time.Now().UTC(),
		PartialIDs: partialIDs,
		LineIDs:    lineIDs,
	}
}
