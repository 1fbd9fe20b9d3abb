package currency

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
	"ledger/internal/core/tx"
	"ledger/internal/domain"
)

// Service provides business logic for Currency catalog.
// Uses composition with domain.CatalogService for common CRUD operations.
type Service struct {
	*domain.CatalogService[*Currency]
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new Currency service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Currency]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "currency",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		txManager:      txManager,
	}

	base.Hooks().OnBeforeCreate(svc.prepare)
	base.Hooks().OnBeforeUpdate(svc.prepare)
	base.Hooks().OnBeforeDelete(svc.validateBeforeDelete)

	return svc
}

// prepare enforces ISO code uniqueness and a single base currency.
func (s *Service) prepare(ctx context.Context, curr *Currency) error {
	if curr.Code == "" {
		curr.Code = curr.ISOCode
	}

	existing, err := s.repo.FindByISOCode(ctx, curr.ISOCode)
	if err != nil && !apperror.IsNotFound(err) {
		return err
	}
	if err == nil && existing.ID != curr.ID {
		return apperror.NewDuplicate("currency", "isoCode", curr.ISOCode)
	}

	if curr.IsBase {
		return s.repo.ClearBase(ctx)
	}
	return nil
}

func (s *Service) validateBeforeDelete(ctx context.Context, curr *Currency) error {
	if curr.IsBase {
		return apperror.NewValidation("cannot delete base currency")
	}
	return nil
}

// FindByISOCode retrieves currency by ISO code.
func (s *Service) FindByISOCode(ctx context.Context, isoCode string) (*Currency, error) {
	return s.repo.FindByISOCode(ctx, isoCode)
}

// SetRate records the rate of a currency on a date.
func (s *Service) SetRate(ctx context.Context, rate *Rate) error {
	if err := rate.Validate(ctx); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetByID(ctx, rate.CurrencyID); err != nil {
			return err
		}
		if err := s.repo.SaveRate(ctx, rate); err != nil {
			return fmt.Errorf("save rate: %w", err)
		}
		return nil
	})
}

// Rates returns the rate history of one currency up to a date.
func (s *Service) Rates(ctx context.Context, currencyID id.ID, until time.Time) ([]*Rate, error) {
	return s.repo.ListRates(ctx, []id.ID{currencyID}, until)
}
