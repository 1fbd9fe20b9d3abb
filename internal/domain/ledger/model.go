// Package ledger provides the journal entry model shared by the ledger
// engine: moves, their lines, reconciliation records and the repository
// and configuration ports the engine works against.
package ledger

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core/apperror"
	"ledger/internal/core/entity"
	"ledger/internal/core/id"
)

// State is the lifecycle state of a move.
type State string

const (
	StateDraft     State = "draft"
	StatePosted    State = "posted"
	StateCancelled State = "cancelled"
)

// DisplayType tags the role a line plays in its move.
type DisplayType string

const (
	// DisplayEntry is a plain journal item of a miscellaneous entry
	DisplayEntry       DisplayType = "entry"
	DisplayProduct     DisplayType = "product"
	DisplayTax         DisplayType = "tax"
	DisplayPaymentTerm DisplayType = "payment_term"
	DisplayRounding    DisplayType = "rounding"
	DisplaySection     DisplayType = "line_section"
	DisplayNote        DisplayType = "line_note"
)

// IsCosmetic reports whether lines of this type carry no amounts.
func (d DisplayType) IsCosmetic() bool {
	return d == DisplaySection || d == DisplayNote
}

// Move is a journal entry: a balanced set of debit and credit lines.
type Move struct {
	entity.Document

	Ref       string   `db:"ref" json:"ref,omitempty"`
	Narration string   `db:"narration" json:"narration,omitempty"`
	Type      MoveType `db:"move_type" json:"moveType"`
	State     State    `db:"state" json:"state"`

	JournalID         id.ID `db:"journal_id" json:"journalId"`
	CurrencyID        id.ID `db:"currency_id" json:"currencyId"`
	CompanyCurrencyID id.ID `db:"company_currency_id" json:"companyCurrencyId"`

	PartnerID *id.ID `db:"partner_id" json:"partnerId,omitempty"`

	// PaymentAccountID is the receivable or payable account of invoice types
	PaymentAccountID *id.ID     `db:"payment_account_id" json:"paymentAccountId,omitempty"`
	PaymentTermID    *id.ID     `db:"payment_term_id" json:"paymentTermId,omitempty"`
	CashRoundingID   *id.ID     `db:"cash_rounding_id" json:"cashRoundingId,omitempty"`
	InvoiceDateDue   *time.Time `db:"invoice_date_due" json:"invoiceDateDue,omitempty"`

	ReversedEntryID       *id.ID `db:"reversed_entry_id" json:"reversedEntryId,omitempty"`
	CashBasisOriginMoveID *id.ID `db:"cash_basis_origin_move_id" json:"cashBasisOriginMoveId,omitempty"`

	// CashBasisPercentage is the paid fraction already recognized by cash-basis entries
	CashBasisPercentage decimal.Decimal `db:"cash_basis_percentage" json:"cashBasisPercentage"`

	PostedAt *time.Time `db:"posted_at" json:"postedAt,omitempty"`

	Lines []*Line `db:"-" json:"lines"`
}

// NewMove creates a draft move.
func NewMove(companyID, journalID, currencyID, companyCurrencyID id.ID, typ MoveType, date time.Time) *Move {
	return &Move{
		Document:          entity.NewDocument(companyID, date),
		Type:              typ,
		State:             StateDraft,
		JournalID:         journalID,
		CurrencyID:        currencyID,
		CompanyCurrencyID: companyCurrencyID,
		Lines:             make([]*Line, 0),
	}
}

// Validate implements entity.Validatable.
func (m *Move) Validate(ctx context.Context) error {
	if err := m.Document.Validate(ctx); err != nil {
		return err
	}
	if !m.Type.Valid() {
		return apperror.NewValidation("unknown move type").
			WithDetail("field", "moveType").
			WithDetail("value", m.Type)
	}
	if id.IsNil(m.JournalID) {
		return apperror.NewValidation("journal is required").WithDetail("field", "journalId")
	}
	if id.IsNil(m.CurrencyID) || id.IsNil(m.CompanyCurrencyID) {
		return apperror.NewValidation("currency is required").WithDetail("field", "currencyId")
	}
	if m.Type.IsInvoice(true) && m.PaymentAccountID == nil {
		return apperror.NewValidation("invoices need a receivable or payable account").
			WithDetail("field", "paymentAccountId")
	}

	for i, line := range m.Lines {
		if err := line.Validate(ctx); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("lineNo", i+1)
			}
			return err
		}
	}
	return nil
}

// IsDraft reports whether lines may still change.
func (m *Move) IsDraft() bool {
	return m.State == StateDraft
}

// IsPosted reports whether the move is posted.
func (m *Move) IsPosted() bool {
	return m.State == StatePosted
}

// IsForeign reports whether the document currency differs from the company currency.
func (m *Move) IsForeign() bool {
	return m.CurrencyID != m.CompanyCurrencyID
}

// SetLines attaches lines to the move, filling in the fields lines inherit.
func (m *Move) SetLines(lines []*Line) {
	for i, line := range lines {
		line.MoveID = m.ID
		line.CompanyID = m.CompanyID
		line.Date = m.Date
		if line.Sequence == 0 {
			line.Sequence = (i + 1) * 10
		}
	}
	m.Lines = lines
}

// LinesOf returns the lines with the given display type, in order.
func (m *Move) LinesOf(display DisplayType) []*Line {
	out := make([]*Line, 0)
	for _, line := range m.Lines {
		if line.DisplayType == display {
			out = append(out, line)
		}
	}
	return out
}

// Totals returns the sums of debit and credit over the lines held in memory.
func (m *Move) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range m.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// Line is one debit or credit entry of a move.
type Line struct {
	ID          id.ID       `db:"id" json:"id"`
	MoveID      id.ID       `db:"move_id" json:"moveId"`
	CompanyID   id.ID       `db:"company_id" json:"companyId"`
	AccountID   id.ID       `db:"account_id" json:"accountId"`
	PartnerID   *id.ID      `db:"partner_id" json:"partnerId,omitempty"`
	Sequence    int         `db:"sequence" json:"sequence"`
	Name        string      `db:"name" json:"name"`
	DisplayType DisplayType `db:"display_type" json:"displayType"`

	Quantity  decimal.Decimal `db:"quantity" json:"quantity"`
	PriceUnit decimal.Decimal `db:"price_unit" json:"priceUnit"`
	Discount  decimal.Decimal `db:"discount" json:"discount"`

	Debit  decimal.Decimal `db:"debit" json:"debit"`
	Credit decimal.Decimal `db:"credit" json:"credit"`

	// AmountCurrency is the signed balance in CurrencyID when that is set
	AmountCurrency decimal.Decimal `db:"amount_currency" json:"amountCurrency"`
	CurrencyID     *id.ID          `db:"currency_id" json:"currencyId,omitempty"`

	// TaxLineID is set on tax lines: the tax that produced the line
	TaxLineID *id.ID `db:"tax_line_id" json:"taxLineId,omitempty"`

	// TaxIDs are the taxes applied to a base line
	TaxIDs        []id.ID         `db:"tax_ids" json:"taxIds,omitempty"`
	TaxBaseAmount decimal.Decimal `db:"tax_base_amount" json:"taxBaseAmount"`

	// TaxExigible is false while a tax due on payment is not yet recognized
	TaxExigible bool `db:"tax_exigible" json:"taxExigible"`

	AnalyticAccountID *id.ID     `db:"analytic_account_id" json:"analyticAccountId,omitempty"`
	Date              time.Time  `db:"date" json:"date"`
	DateMaturity      *time.Time `db:"date_maturity" json:"dateMaturity,omitempty"`

	Reconciled             bool            `db:"reconciled" json:"reconciled"`
	AmountResidual         decimal.Decimal `db:"amount_residual" json:"amountResidual"`
	AmountResidualCurrency decimal.Decimal `db:"amount_residual_currency" json:"amountResidualCurrency"`
	FullReconcileID        *id.ID          `db:"full_reconcile_id" json:"fullReconcileId,omitempty"`
}

// NewLine creates an entry line on account with the given signed balance.
func NewLine(accountID id.ID, name string, balance decimal.Decimal) *Line {
	l := &Line{
		ID:          id.New(),
		AccountID:   accountID,
		Name:        name,
		DisplayType: DisplayEntry,
		Quantity:    decimal.NewFromInt(1),
		TaxExigible: true,
	}
	l.SetBalance(balance)
	return l
}

// Validate implements entity.Validatable.
func (l *Line) Validate(ctx context.Context) error {
	if l.DisplayType.IsCosmetic() {
		if !l.Debit.IsZero() || !l.Credit.IsZero() {
			return apperror.NewValidation("section and note lines cannot carry amounts")
		}
		return nil
	}
	if id.IsNil(l.AccountID) {
		return apperror.NewValidation("account is required").WithDetail("field", "accountId")
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return apperror.NewValidation("debit and credit cannot be negative")
	}
	if !l.Debit.IsZero() && !l.Credit.IsZero() {
		return apperror.NewValidation("a line cannot be both debit and credit")
	}
	if l.Discount.IsNegative() || l.Discount.GreaterThan(decimal.NewFromInt(100)) {
		return apperror.NewValidation("discount must be between 0 and 100").WithDetail("field", "discount")
	}
	return nil
}

// Balance returns debit minus credit.
func (l *Line) Balance() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// SetBalance splits a signed balance into debit and credit.
func (l *Line) SetBalance(balance decimal.Decimal) {
	if balance.IsPositive() {
		l.Debit, l.Credit = balance, decimal.Zero
		return
	}
	l.Debit, l.Credit = decimal.Zero, balance.Neg()
}

// HasCurrency reports whether the line carries a foreign currency amount.
func (l *Line) HasCurrency() bool {
	return l.CurrencyID != nil
}

// SameCurrency reports whether two lines carry the same foreign currency.
func (l *Line) SameCurrency(other *Line) bool {
	if l.CurrencyID == nil || other.CurrencyID == nil {
		return l.CurrencyID == nil && other.CurrencyID == nil
	}
	return *l.CurrencyID == *other.CurrencyID
}

// MaturityOrDate is the date the line falls due; its accounting date when
// it has no maturity.
func (l *Line) MaturityOrDate() time.Time {
	if l.DateMaturity != nil {
		return *l.DateMaturity
	}
	return l.Date
}

// IsTaxLine reports whether the line was produced by a tax.
func (l *Line) IsTaxLine() bool {
	return l.TaxLineID != nil
}

// IsBaseLine reports whether the line is a taxable invoice line.
func (l *Line) IsBaseLine() bool {
	return l.DisplayType == DisplayProduct
}

// HasTax reports whether the tax is applied to the line.
func (l *Line) HasTax(taxID id.ID) bool {
	return slices.Contains(l.TaxIDs, taxID)
}

// Clone returns a deep copy with the same ID.
func (l *Line) Clone() *Line {
	c := *l
	c.TaxIDs = slices.Clone(l.TaxIDs)
	return &c
}
