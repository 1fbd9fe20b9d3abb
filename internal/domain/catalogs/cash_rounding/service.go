package cash_rounding

import (
	"ledger/internal/core/tx"
	"ledger/internal/domain"
)

// Service provides business logic for cash rounding rules.
type Service struct {
	*domain.CatalogService[*CashRounding]
}

// NewService creates a new CashRounding service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		CatalogService: domain.NewCatalogService(domain.CatalogServiceConfig[*CashRounding]{
			Repo:       repo,
			TxManager:  txManager,
			EntityName: "cash rounding",
		}),
	}
}
