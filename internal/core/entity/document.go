package entity

import (
	"context"
	"time"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
)

// Document is the base type for business transactions owned by a company.
type Document struct {
	BaseDocument

	// Number is assigned once, when the document is first finalized
	Number string `db:"number" json:"number"`

	// Date is the accounting date
	Date time.Time `db:"date" json:"date"`

	// CompanyID owns the document and every line in it
	CompanyID id.ID `db:"company_id" json:"companyId"`
}

// NewDocument creates a new Document with generated ID.
func NewDocument(companyID id.ID, date time.Time) Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         date,
		CompanyID:    companyID,
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if id.IsNil(d.CompanyID) {
		return apperror.NewValidation("company is required").
			WithDetail("field", "companyId")
	}

	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}

	return nil
}

// GetID returns the document ID.
func (d *Document) GetID() id.ID {
	return d.ID
}

// HasNumber reports whether a number was already assigned.
func (d *Document) HasNumber() bool {
	return d.Number != "" && d.Number != "/"
}
