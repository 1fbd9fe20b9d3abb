package payment_term

import (
	"ledger/internal/domain"
)

// Repository defines the interface for PaymentTerm persistence.
type Repository interface {
	domain.CatalogRepository[*PaymentTerm]
}
