package account

import (
	"context"

	"ledger/internal/core/apperror"
	"ledger/internal/core/tx"
	"ledger/internal/domain"
)

// Service provides business logic for the chart of accounts.
type Service struct {
	*domain.CatalogService[*Account]
	repo Repository
}

// NewService creates a new Account service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Account]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "account",
	})

	svc := &Service{CatalogService: base, repo: repo}
	base.Hooks().OnBeforeUpdate(svc.guardUsedAccount)
	base.Hooks().OnBeforeDelete(svc.guardDelete)
	return svc
}

// guardUsedAccount forbids turning off reconciliation or changing the type
// of an account that already carries entries.
func (s *Service) guardUsedAccount(ctx context.Context, a *Account) error {
	current, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if current.Type == a.Type && (a.Reconcile || !current.Reconcile) {
		return nil
	}
	used, err := s.repo.HasLines(ctx, a.ID)
	if err != nil {
		return err
	}
	if used {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule,
			"cannot change the type or disable reconciliation of an account with journal items").
			WithDetail("account", a.Code)
	}
	return nil
}

func (s *Service) guardDelete(ctx context.Context, a *Account) error {
	used, err := s.repo.HasLines(ctx, a.ID)
	if err != nil {
		return err
	}
	if used {
		return apperror.NewConflict("account has journal items").WithDetail("account", a.Code)
	}
	return nil
}
