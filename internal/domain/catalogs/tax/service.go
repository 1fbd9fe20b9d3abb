package tax

import (
	"context"

	"ledger/internal/core/apperror"
	"ledger/internal/core/tx"
	"ledger/internal/domain"
)

// Service provides business logic for the Tax catalog.
type Service struct {
	*domain.CatalogService[*Tax]
	repo Repository
}

// NewService creates a new Tax service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Tax]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "tax",
	})
	svc := &Service{CatalogService: base, repo: repo}
	base.Hooks().OnBeforeCreate(svc.checkChildren)
	base.Hooks().OnBeforeUpdate(svc.checkChildren)
	return svc
}

// checkChildren allows one level of grouping and same-company children only.
func (s *Service) checkChildren(ctx context.Context, t *Tax) error {
	if t.AmountType != AmountGroup {
		return nil
	}
	children, err := s.repo.GetByIDs(ctx, t.ChildrenIDs)
	if err != nil {
		return err
	}
	if len(children) != len(t.ChildrenIDs) {
		return apperror.NewValidation("unknown child tax").WithDetail("field", "childrenIds")
	}
	for _, child := range children {
		if child.AmountType == AmountGroup {
			return apperror.NewValidation("nested tax groups are not allowed").WithDetail("child", child.Code)
		}
		if child.CompanyID != t.CompanyID {
			return apperror.NewValidation("child tax belongs to another company").WithDetail("child", child.Code)
		}
	}
	return nil
}
