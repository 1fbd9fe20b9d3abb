package currency

import (
	"context"
	"time"

	"ledger/internal/core/id"
	"ledger/internal/domain"
)

// Repository defines the interface for Currency persistence.
type Repository interface {
	domain.CatalogRepository[*Currency]

	// FindByISOCode retrieves currency by ISO code.
	FindByISOCode(ctx context.Context, isoCode string) (*Currency, error)

	// ClearBase clears the base flag on all currencies (before setting new base).
	ClearBase(ctx context.Context) error

	// SaveRate inserts a rate, replacing any rate for the same currency, company and date.
	SaveRate(ctx context.Context, rate *Rate) error

	// ListRates returns rates of the given currencies dated on or before until, oldest first.
	ListRates(ctx context.Context, currencyIDs []id.ID, until time.Time) ([]*Rate, error)
}
