package payment_term

import (
	"ledger/internal/core/tx"
	"ledger/internal/domain"
)

// Service provides business logic for payment terms.
type Service struct {
	*domain.CatalogService[*PaymentTerm]
}

// NewService creates a new PaymentTerm service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		CatalogService: domain.NewCatalogService(domain.CatalogServiceConfig[*PaymentTerm]{
			Repo:       repo,
			TxManager:  txManager,
			EntityName: "payment term",
		}),
	}
}
