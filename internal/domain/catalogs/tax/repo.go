package tax

import (
	"context"

	"ledger/internal/core/id"
	"ledger/internal/domain"
)

// Repository defines the interface for Tax persistence.
type Repository interface {
	domain.CatalogRepository[*Tax]

	// GetByIDs loads several taxes at once; missing ids are not an error.
	GetByIDs(ctx context.Context, ids []id.ID) ([]*Tax, error)
}
