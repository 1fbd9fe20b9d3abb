package cash_rounding

import (
	"ledger/internal/domain"
)

// Repository defines the interface for CashRounding persistence.
type Repository interface {
	domain.CatalogRepository[*CashRounding]
}
