package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core/id"
	"ledger/internal/domain/ledger"
)

// MoveLineRequest is one line of a move. Lines sent back with their id keep
// it, so computed lines the client edited are recognized.
type MoveLineRequest struct {
	ID          *id.ID             `json:"id"`
	AccountID   id.ID              `json:"accountId"`
	PartnerID   *id.ID             `json:"partnerId"`
	Name        string             `json:"name" binding:"max=512"`
	DisplayType ledger.DisplayType `json:"displayType" binding:"omitempty,oneof=entry product tax payment_term rounding line_section line_note"`

	Quantity  *decimal.Decimal `json:"quantity"`
	PriceUnit decimal.Decimal  `json:"priceUnit"`
	Discount  decimal.Decimal  `json:"discount" binding:"decimal_gte0"`

	Debit          decimal.Decimal `json:"debit" binding:"decimal_gte0"`
	Credit         decimal.Decimal `json:"credit" binding:"decimal_gte0"`
	AmountCurrency decimal.Decimal `json:"amountCurrency"`
	CurrencyID     *id.ID          `json:"currencyId"`

	TaxIDs            []id.ID    `json:"taxIds"`
	TaxLineID         *id.ID     `json:"taxLineId"`
	AnalyticAccountID *id.ID     `json:"analyticAccountId"`
	DateMaturity      *time.Time `json:"dateMaturity"`
}

// ToEntity converts DTO to domain entity.
func (r *MoveLineRequest) ToEntity(seq int) *ledger.Line {
	line := ledger.NewLine(r.AccountID, r.Name, r.Debit.Sub(r.Credit))
	if r.ID != nil {
		line.ID = *r.ID
	}
	if r.DisplayType != "" {
		line.DisplayType = r.DisplayType
	}
	line.Sequence = seq
	line.PartnerID = r.PartnerID
	if r.Quantity != nil {
		line.Quantity = *r.Quantity
	}
	line.PriceUnit = r.PriceUnit
	line.Discount = r.Discount
	line.AmountCurrency = r.AmountCurrency
	line.CurrencyID = r.CurrencyID
	line.TaxIDs = r.TaxIDs
	line.TaxLineID = r.TaxLineID
	line.AnalyticAccountID = r.AnalyticAccountID
	line.DateMaturity = r.DateMaturity
	return line
}

// ToLines converts line DTOs, numbering them in request order.
func ToLines(in []MoveLineRequest) []*ledger.Line {
	lines := make([]*ledger.Line, len(in))
	for i := range in {
		lines[i] = in[i].ToEntity(i + 1)
	}
	return lines
}

// MoveHeader holds the editable header fields of a move.
type MoveHeader struct {
	JournalID        id.ID     `json:"journalId" binding:"required"`
	CurrencyID       id.ID     `json:"currencyId" binding:"required"`
	Date             time.Time `json:"date" binding:"required"`
	Ref              string    `json:"ref" binding:"max=255"`
	Narration        string    `json:"narration"`
	PartnerID        *id.ID    `json:"partnerId"`
	PaymentAccountID *id.ID    `json:"paymentAccountId"`
	PaymentTermID    *id.ID    `json:"paymentTermId"`
	CashRoundingID   *id.ID    `json:"cashRoundingId"`
}

func (h *MoveHeader) apply(m *ledger.Move) {
	m.JournalID = h.JournalID
	m.CurrencyID = h.CurrencyID
	m.Date = h.Date
	m.Ref = h.Ref
	m.Narration = h.Narration
	m.PartnerID = h.PartnerID
	m.PaymentAccountID = h.PaymentAccountID
	m.PaymentTermID = h.PaymentTermID
	m.CashRoundingID = h.CashRoundingID
}

// CreateMoveRequest is the request body for creating a draft move.
type CreateMoveRequest struct {
	CompanyID id.ID           `json:"companyId" binding:"required"`
	MoveType  ledger.MoveType `json:"moveType" binding:"omitempty,oneof=entry out_invoice out_refund in_invoice in_refund out_receipt in_receipt"`
	MoveHeader
	Lines []MoveLineRequest `json:"lines" binding:"dive"`
}

// ToEntity converts DTO to domain entity. The company currency is resolved
// by the service.
func (r *CreateMoveRequest) ToEntity() *ledger.Move {
	typ := r.MoveType
	if typ == "" {
		typ = ledger.TypeEntry
	}
	m := ledger.NewMove(r.CompanyID, r.JournalID, r.CurrencyID, id.Nil(), typ, r.Date)
	r.apply(m)
	m.Lines = ToLines(r.Lines)
	return m
}

// UpdateMoveRequest edits the header of a move.
type UpdateMoveRequest struct {
	VersionedRequest
	MoveHeader
}

// ApplyTo applies update DTO to a copy of the stored move.
func (r *UpdateMoveRequest) ApplyTo(m *ledger.Move) {
	r.apply(m)
	m.Version = r.Version
}

// ReplaceLinesRequest replaces the lines of a draft.
type ReplaceLinesRequest struct {
	VersionedRequest
	Lines []MoveLineRequest `json:"lines" binding:"dive"`
}

// ReverseRequest reverses a posted move. With Reconcile the open lines of
// the move are reconciled with their reversing lines.
type ReverseRequest struct {
	Date      *time.Time `json:"date"`
	Reconcile bool       `json:"reconcile"`
}

// MoveListQuery are the query parameters of GET /moves.
type MoveListQuery struct {
	CompanyID string `form:"companyId" binding:"omitempty,uuid"`
	JournalID string `form:"journalId" binding:"omitempty,uuid"`
	PartnerID string `form:"partnerId" binding:"omitempty,uuid"`
	MoveType  string `form:"moveType" binding:"omitempty,oneof=entry out_invoice out_refund in_invoice in_refund out_receipt in_receipt"`
	State     string `form:"state" binding:"omitempty,oneof=draft posted cancelled"`
	DateFrom  string `form:"dateFrom" binding:"omitempty,datetime=2006-01-02"`
	DateTo    string `form:"dateTo" binding:"omitempty,datetime=2006-01-02"`
	Search    string `form:"search"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset    int    `form:"offset" binding:"omitempty,min=0"`
	OrderBy   string `form:"orderBy"`
}

// --- Response DTOs ---

// MoveSummary is a move header as listed.
type MoveSummary struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	Date       string          `json:"date"`
	MoveType   ledger.MoveType `json:"moveType"`
	State      ledger.State    `json:"state"`
	CompanyID  string          `json:"companyId"`
	JournalID  string          `json:"journalId"`
	CurrencyID string          `json:"currencyId"`
	PartnerID  *id.ID          `json:"partnerId,omitempty"`
	Ref        string          `json:"ref,omitempty"`
	Version    int             `json:"version"`
	PostedAt   *time.Time      `json:"postedAt,omitempty"`
}

// FromMoveSummary creates a list item from a move header.
func FromMoveSummary(m *ledger.Move) MoveSummary {
	return MoveSummary{
		ID:         m.ID.String(),
		Number:     m.Number,
		Date:       m.Date.Format(time.DateOnly),
		MoveType:   m.Type,
		State:      m.State,
		CompanyID:  m.CompanyID.String(),
		JournalID:  m.JournalID.String(),
		CurrencyID: m.CurrencyID.String(),
		PartnerID:  m.PartnerID,
		Ref:        m.Ref,
		Version:    m.Version,
		PostedAt:   m.PostedAt,
	}
}

// MoveResponse is a move with its lines and totals.
type MoveResponse struct {
	MoveSummary
	Narration        string          `json:"narration,omitempty"`
	PaymentAccountID *id.ID          `json:"paymentAccountId,omitempty"`
	PaymentTermID    *id.ID          `json:"paymentTermId,omitempty"`
	CashRoundingID   *id.ID          `json:"cashRoundingId,omitempty"`
	InvoiceDateDue   *time.Time      `json:"invoiceDateDue,omitempty"`
	ReversedEntryID  *id.ID          `json:"reversedEntryId,omitempty"`
	TotalDebit       decimal.Decimal `json:"totalDebit"`
	TotalCredit      decimal.Decimal `json:"totalCredit"`
	Lines            []*ledger.Line  `json:"lines"`
}

// FromMove creates response DTO from domain entity.
func FromMove(m *ledger.Move) MoveResponse {
	debit, credit := m.Totals()
	return MoveResponse{
		MoveSummary:      FromMoveSummary(m),
		Narration:        m.Narration,
		PaymentAccountID: m.PaymentAccountID,
		PaymentTermID:    m.PaymentTermID,
		CashRoundingID:   m.CashRoundingID,
		InvoiceDateDue:   m.InvoiceDateDue,
		ReversedEntryID:  m.ReversedEntryID,
		TotalDebit:       debit,
		TotalCredit:      credit,
		Lines:            m.Lines,
	}
}
