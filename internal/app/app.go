// Package app assembles repositories and services over one database pool.
// The server, the seeder and the CLI share this wiring.
package app

import (
	"context"
	"fmt"

	"ledger/internal/core/numerator"
	"ledger/internal/domain/catalogs/account"
	"ledger/internal/domain/catalogs/cash_rounding"
	"ledger/internal/domain/catalogs/company"
	"ledger/internal/domain/catalogs/currency"
	"ledger/internal/domain/catalogs/journal"
	"ledger/internal/domain/catalogs/payment_term"
	"ledger/internal/domain/catalogs/tax"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/cashbasis"
	"ledger/internal/domain/ledger/move"
	"ledger/internal/domain/ledger/reconcile"
	infranumerator "ledger/internal/infrastructure/numerator"
	"ledger/internal/infrastructure/storage/postgres"
	"ledger/internal/infrastructure/storage/postgres/catalog_repo"
	"ledger/internal/infrastructure/storage/postgres/document_repo"
	"ledger/internal/infrastructure/storage/postgres/register_repo"
)

// Options tunes the assembled services.
type Options struct {
	NumberingStrategy numerator.Strategy
}

// App holds every service of the engine. Repositories take the TxManager
// from the context, so callers run with postgres.WithTxManager applied.
type App struct {
	TxManager *postgres.TxManager

	Companies     *company.Service
	Currencies    *currency.Service
	Accounts      *account.Service
	Journals      *journal.Service
	Taxes         *tax.Service
	PaymentTerms  *payment_term.Service
	CashRoundings *cash_rounding.Service

	Provider   ledger.Provider
	MoveRepo   ledger.MoveRepository
	Reconciles ledger.ReconcileRepository

	Moves     *move.Service
	Reconcile *reconcile.Service
	CashBasis *cashbasis.Poster

	Audit  *postgres.AuditService
	Outbox *postgres.OutboxPublisher
}

// New wires the engine over txManager.
func New(txManager *postgres.TxManager, opts Options) (*App, error) {
	auditSvc, err := postgres.NewAuditService(txManager)
	if err != nil {
		return nil, fmt.Errorf("audit service: %w", err)
	}

	companyRepo := catalog_repo.NewCompanyRepo()
	currencyRepo := catalog_repo.NewCurrencyRepo()
	accountRepo := catalog_repo.NewAccountRepo()
	journalRepo := catalog_repo.NewJournalRepo()
	taxRepo := catalog_repo.NewTaxRepo()
	termRepo := catalog_repo.NewPaymentTermRepo()
	roundingRepo := catalog_repo.NewCashRoundingRepo()

	provider := ledger.NewCatalogProvider(ledger.CatalogProviderConfig{
		Companies:     companyRepo,
		Journals:      journalRepo,
		Currencies:    currencyRepo,
		Accounts:      accountRepo,
		Taxes:         taxRepo,
		PaymentTerms:  termRepo,
		CashRoundings: roundingRepo,
	})

	moveRepo := document_repo.NewMoveRepo()
	reconcileRepo := register_repo.NewReconcileRepo()
	numbers := infranumerator.NewFromContext()
	outbox := postgres.NewOutboxPublisher(txManager)

	moveSvc := move.NewService(move.Config{
		Moves:             moveRepo,
		Reconciles:        reconcileRepo,
		Provider:          provider,
		TxManager:         txManager,
		Numerator:         numbers,
		NumberingStrategy: opts.NumberingStrategy,
		Events:            outbox,
		Audit:             auditSvc,
	})

	poster := cashbasis.NewPoster(cashbasis.Config{
		Moves:       moveRepo,
		Reconciles:  reconcileRepo,
		Provider:    provider,
		TxManager:   txManager,
		MoveService: moveSvc,
	})

	reconcileSvc := reconcile.NewService(reconcile.Config{
		Moves:       moveRepo,
		Reconciles:  reconcileRepo,
		Provider:    provider,
		TxManager:   txManager,
		MoveService: moveSvc,
		Numerator:   numbers,
		CashBasis:   poster,
		Events:      outbox,
	})

	a := &App{
		TxManager:     txManager,
		Companies:     company.NewService(companyRepo, txManager),
		Currencies:    currency.NewService(currencyRepo, txManager),
		Accounts:      account.NewService(accountRepo, txManager),
		Journals:      journal.NewService(journalRepo, txManager),
		Taxes:         tax.NewService(taxRepo, txManager),
		PaymentTerms:  payment_term.NewService(termRepo, txManager),
		CashRoundings: cash_rounding.NewService(roundingRepo, txManager),
		Provider:      provider,
		MoveRepo:      moveRepo,
		Reconciles:    reconcileRepo,
		Moves:         moveSvc,
		Reconcile:     reconcileSvc,
		CashBasis:     poster,
		Audit:         auditSvc,
		Outbox:        outbox,
	}

	auditCatalog(a.Companies.Hooks(), auditSvc, "company")
	auditCatalog(a.Currencies.Hooks(), auditSvc, "currency")
	auditCatalog(a.Accounts.Hooks(), auditSvc, "account")
	auditCatalog(a.Journals.Hooks(), auditSvc, "journal")
	auditCatalog(a.Taxes.Hooks(), auditSvc, "tax")
	auditCatalog(a.PaymentTerms.Hooks(), auditSvc, "payment_term")
	auditCatalog(a.CashRoundings.Hooks(), auditSvc, "cash_rounding")

	return a, nil
}

// Context returns ctx carrying the TxManager the repositories resolve.
func (a *App) Context(ctx context.Context) context.Context {
	return postgres.WithTxManager(ctx, a.TxManager)
}
