package company

import (
	"context"

	"ledger/internal/core/apperror"
	"ledger/internal/core/tx"
	"ledger/internal/domain"
)

// Service provides business logic for the Company catalog.
type Service struct {
	*domain.CatalogService[*Company]
	repo Repository
}

// NewService creates a new Company service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Company]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "company",
	})

	svc := &Service{CatalogService: base, repo: repo}
	base.Hooks().OnBeforeUpdate(svc.checkLockDates)
	return svc
}

// checkLockDates refuses moving the fiscal year lock backwards.
func (s *Service) checkLockDates(ctx context.Context, c *Company) error {
	current, err := s.repo.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	if current.FiscalYearLockDate == nil {
		return nil
	}
	if c.FiscalYearLockDate == nil || c.FiscalYearLockDate.Before(*current.FiscalYearLockDate) {
		return apperror.NewBusinessRule(apperror.CodeLockDate, "the fiscal year lock date cannot be moved backwards").
			WithDetail("current", current.FiscalYearLockDate)
	}
	return nil
}
