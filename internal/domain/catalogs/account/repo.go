package account

import (
	"context"

	"ledger/internal/core/id"
	"ledger/internal/domain"
)

// Repository defines the interface for Account persistence.
type Repository interface {
	domain.CatalogRepository[*Account]

	// GetByIDs loads several accounts at once; missing ids are not an error.
	GetByIDs(ctx context.Context, ids []id.ID) ([]*Account, error)

	// HasLines reports whether any move line references the account.
	HasLines(ctx context.Context, accountID id.ID) (bool, error)
}
