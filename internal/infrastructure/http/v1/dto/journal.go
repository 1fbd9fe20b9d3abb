package dto

import (
	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/journal"
)

// JournalRequest is the request body for creating a journal.
type JournalRequest struct {
	CatalogFields
	CompanyID id.ID        `json:"companyId" binding:"required"`
	Type      journal.Type `json:"type" binding:"required,oneof=sale purchase cash bank general"`
	JournalOptions
}

// JournalOptions are the editable settings of a journal.
type JournalOptions struct {
	SequencePrefix       string `json:"sequencePrefix" binding:"max=32"`
	RefundSequence       bool   `json:"refundSequence"`
	RefundSequencePrefix string `json:"refundSequencePrefix" binding:"max=32"`
	UpdatePosted         bool   `json:"updatePosted"`
	DefaultAccountID     *id.ID `json:"defaultAccountId"`
	CurrencyID           *id.ID `json:"currencyId"`
}

func (o *JournalOptions) apply(j *journal.Journal) {
	if o.SequencePrefix != "" {
		j.SequencePrefix = o.SequencePrefix
	}
	j.RefundSequence = o.RefundSequence
	j.RefundSequencePrefix = o.RefundSequencePrefix
	j.UpdatePosted = o.UpdatePosted
	j.DefaultAccountID = o.DefaultAccountID
	j.CurrencyID = o.CurrencyID
}

// ToEntity converts DTO to domain entity.
func (r *JournalRequest) ToEntity() *journal.Journal {
	j := journal.NewJournal(r.CompanyID, r.Code, r.Name, r.Type)
	r.apply(j)
	return j
}

// UpdateJournalRequest is the request body for updating a journal.
type UpdateJournalRequest struct {
	VersionedRequest
	CatalogFields
	JournalOptions
}

// ApplyTo applies update DTO to existing entity. Type and company are fixed
// once moves exist, so they are not editable.
func (r *UpdateJournalRequest) ApplyTo(j *journal.Journal) {
	j.Code = r.Code
	j.Name = r.Name
	r.apply(j)
	j.Version = r.Version
}
