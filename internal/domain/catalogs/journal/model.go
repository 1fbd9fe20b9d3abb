// Package journal provides the Journal catalog: the books moves are posted
// into, each with its own numbering sequence.
package journal

import (
	"context"
	"strings"

	"ledger/internal/core/apperror"
	"ledger/internal/core/entity"
	"ledger/internal/core/id"
)

// Type classifies a journal.
type Type string

const (
	TypeSale     Type = "sale"
	TypePurchase Type = "purchase"
	TypeCash     Type = "cash"
	TypeBank     Type = "bank"
	TypeGeneral  Type = "general"
)

// Journal groups moves of one kind for one company.
type Journal struct {
	entity.Catalog

	CompanyID id.ID `db:"company_id" json:"companyId"`
	Type      Type  `db:"journal_type" json:"type"`

	// SequencePrefix starts every number issued by this journal; defaults to Code
	SequencePrefix string `db:"sequence_prefix" json:"sequencePrefix"`

	// RefundSequence gives credit notes their own numbering
	RefundSequence       bool   `db:"refund_sequence" json:"refundSequence"`
	RefundSequencePrefix string `db:"refund_sequence_prefix" json:"refundSequencePrefix"`

	// UpdatePosted allows editing the reference and narration of posted moves
	UpdatePosted bool `db:"update_posted" json:"updatePosted"`

	DefaultAccountID *id.ID `db:"default_account_id" json:"defaultAccountId,omitempty"`
	CurrencyID       *id.ID `db:"currency_id" json:"currencyId,omitempty"`
}

// NewJournal creates a journal numbering with its code.
func NewJournal(companyID id.ID, code, name string, typ Type) *Journal {
	return &Journal{
		Catalog:        entity.NewCatalog(code, name),
		CompanyID:      companyID,
		Type:           typ,
		SequencePrefix: code,
	}
}

// Validate implements entity.Validatable interface.
func (j *Journal) Validate(ctx context.Context) error {
	if err := j.Catalog.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(j.CompanyID) {
		return apperror.NewValidation("company is required").WithDetail("field", "companyId")
	}
	switch j.Type {
	case TypeSale, TypePurchase, TypeCash, TypeBank, TypeGeneral:
	default:
		return apperror.NewValidation("unknown journal type").
			WithDetail("field", "type").
			WithDetail("value", j.Type)
	}
	if strings.ContainsAny(j.SequencePrefix, " /") {
		return apperror.NewValidation("sequence prefix cannot contain spaces or slashes").
			WithDetail("field", "sequencePrefix")
	}
	return nil
}

// Prefix returns the numbering prefix for regular or refund moves.
func (j *Journal) Prefix(refund bool) string {
	if refund && j.RefundSequence {
		if j.RefundSequencePrefix != "" {
			return j.RefundSequencePrefix
		}
		return "R" + j.prefix()
	}
	return j.prefix()
}

func (j *Journal) prefix() string {
	if j.SequencePrefix != "" {
		return j.SequencePrefix
	}
	return j.Code
}
