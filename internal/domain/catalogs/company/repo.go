package company

import (
	"ledger/internal/domain"
)

// Repository defines the interface for Company persistence.
type Repository interface {
	domain.CatalogRepository[*Company]
}
