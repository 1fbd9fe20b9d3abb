package journal

import (
	"context"

	"ledger/internal/core/tx"
	"ledger/internal/domain"
)

// Service provides business logic for the Journal catalog.
type Service struct {
	*domain.CatalogService[*Journal]
}

// NewService creates a new Journal service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Journal]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "journal",
	})
	base.Hooks().OnBeforeCreate(defaultPrefix)
	base.Hooks().OnBeforeUpdate(defaultPrefix)
	return &Service{CatalogService: base}
}

func defaultPrefix(_ context.Context, j *Journal) error {
	if j.SequencePrefix == "" {
		j.SequencePrefix = j.Code
	}
	return nil
}
