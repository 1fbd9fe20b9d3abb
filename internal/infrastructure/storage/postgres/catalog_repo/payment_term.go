package catalog_repo

import (
	"ledger/internal/domain/catalogs/payment_term"
	"ledger/internal/infrastructure/storage/postgres"
)

const paymentTermTable = "cat_payment_terms"

// PaymentTermRepo implements payment_term.Repository.
type PaymentTermRepo struct {
	*BaseCatalogRepo[*payment_term.PaymentTerm]
}

// NewPaymentTermRepo creates a new payment term repository.
func NewPaymentTermRepo() *PaymentTermRepo {
	return &PaymentTermRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*payment_term.PaymentTerm](
			paymentTermTable,
			postgres.ExtractDBColumns[payment_term.PaymentTerm](),
			func() *payment_term.PaymentTerm { return &payment_term.PaymentTerm{} },
		),
	}
}
