package ledger

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/account"
	"ledger/internal/domain/catalogs/cash_rounding"
	"ledger/internal/domain/catalogs/company"
	"ledger/internal/domain/catalogs/currency"
	"ledger/internal/domain/catalogs/journal"
	"ledger/internal/domain/catalogs/payment_term"
	"ledger/internal/domain/catalogs/tax"
	"ledger/internal/domain/ledger/money"
)

// Provider is the read-only configuration the engine works from.
type Provider interface {
	Company(ctx context.Context, companyID id.ID) (*company.Company, error)
	Journal(ctx context.Context, journalID id.ID) (*journal.Journal, error)
	Currency(ctx context.Context, currencyID id.ID) (*currency.Currency, error)

	// Accounts fails with NotFound when any id is unknown.
	Accounts(ctx context.Context, accountIDs []id.ID) (map[id.ID]*account.Account, error)

	// Taxes fails with NotFound when any id is unknown. Children of group
	// taxes are resolved.
	Taxes(ctx context.Context, taxIDs []id.ID) (map[id.ID]*tax.Tax, error)

	PaymentTerm(ctx context.Context, termID id.ID) (*payment_term.PaymentTerm, error)
	CashRounding(ctx context.Context, roundingID id.ID) (*cash_rounding.CashRounding, error)

	// Rates returns the rates of the given currencies known on until.
	Rates(ctx context.Context, until time.Time, currencyIDs ...id.ID) (*money.RateTable, error)
}

// maxTaxDepth bounds group tax nesting.
const maxTaxDepth = 5

// CatalogProviderConfig lists the repositories a CatalogProvider reads.
type CatalogProviderConfig struct {
	Companies     company.Repository
	Journals      journal.Repository
	Currencies    currency.Repository
	Accounts      account.Repository
	Taxes         tax.Repository
	PaymentTerms  payment_term.Repository
	CashRoundings cash_rounding.Repository
}

// CatalogProvider implements Provider over the catalog repositories.
type CatalogProvider struct {
	companies     company.Repository
	journals      journal.Repository
	currencies    currency.Repository
	accounts      account.Repository
	taxes         tax.Repository
	paymentTerms  payment_term.Repository
	cashRoundings cash_rounding.Repository
}

// NewCatalogProvider creates a provider.
func NewCatalogProvider(cfg CatalogProviderConfig) *CatalogProvider {
	return &CatalogProvider{
		companies:     cfg.Companies,
		journals:      cfg.Journals,
		currencies:    cfg.Currencies,
		accounts:      cfg.Accounts,
		taxes:         cfg.Taxes,
		paymentTerms:  cfg.PaymentTerms,
		cashRoundings: cfg.CashRoundings,
	}
}

func (p *CatalogProvider) Company(ctx context.Context, companyID id.ID) (*company.Company, error) {
	return p.companies.GetByID(ctx, companyID)
}

func (p *CatalogProvider) Journal(ctx context.Context, journalID id.ID) (*journal.Journal, error) {
	return p.journals.GetByID(ctx, journalID)
}

func (p *CatalogProvider) Currency(ctx context.Context, currencyID id.ID) (*currency.Currency, error) {
	return p.currencies.GetByID(ctx, currencyID)
}

func (p *CatalogProvider) PaymentTerm(ctx context.Context, termID id.ID) (*payment_term.PaymentTerm, error) {
	return p.paymentTerms.GetByID(ctx, termID)
}

func (p *CatalogProvider) CashRounding(ctx context.Context, roundingID id.ID) (*cash_rounding.CashRounding, error) {
	return p.cashRoundings.GetByID(ctx, roundingID)
}

func (p *CatalogProvider) Accounts(ctx context.Context, accountIDs []id.ID) (map[id.ID]*account.Account, error) {
	list, err := p.accounts.GetByIDs(ctx, uniqueIDs(accountIDs))
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	out := make(map[id.ID]*account.Account, len(list))
	for _, a := range list {
		out[a.ID] = a
	}
	for _, accountID := range accountIDs {
		if _, ok := out[accountID]; !ok {
			return nil, apperror.NewNotFound("account", accountID.String())
		}
	}
	return out, nil
}

func (p *CatalogProvider) Taxes(ctx context.Context, taxIDs []id.ID) (map[id.ID]*tax.Tax, error) {
	out := make(map[id.ID]*tax.Tax)
	pending := uniqueIDs(taxIDs)

	for depth := 0; len(pending) > 0; depth++ {
		if depth > maxTaxDepth {
			return nil, apperror.NewValidation("group taxes are nested too deeply")
		}
		list, err := p.taxes.GetByIDs(ctx, pending)
		if err != nil {
			return nil, fmt.Errorf("load taxes: %w", err)
		}
		for _, t := range list {
			out[t.ID] = t
		}
		next := make([]id.ID, 0)
		for _, taxID := range pending {
			t, ok := out[taxID]
			if !ok {
				return nil, apperror.NewNotFound("tax", taxID.String())
			}
			for _, childID := range t.ChildrenIDs {
				if _, loaded := out[childID]; !loaded {
					next = append(next, childID)
				}
			}
		}
		pending = uniqueIDs(next)
	}

	for _, t := range out {
		t.Children = make([]*tax.Tax, 0, len(t.ChildrenIDs))
		for _, childID := range t.ChildrenIDs {
			t.Children = append(t.Children, out[childID])
		}
	}
	return out, nil
}

func (p *CatalogProvider) Rates(ctx context.Context, until time.Time, currencyIDs ...id.ID) (*money.RateTable, error) {
	currencyIDs = uniqueIDs(currencyIDs)
	currencies := make([]*currency.Currency, 0, len(currencyIDs))
	for _, currencyID := range currencyIDs {
		c, err := p.currencies.GetByID(ctx, currencyID)
		if err != nil {
			return nil, err
		}
		currencies = append(currencies, c)
	}
	rates, err := p.currencies.ListRates(ctx, currencyIDs, until)
	if err != nil {
		return nil, fmt.Errorf("load rates: %w", err)
	}
	return money.NewRateTable(currencies, rates), nil
}

func uniqueIDs(ids []id.ID) []id.ID {
	seen := make(map[id.ID]struct{}, len(ids))
	out := make([]id.ID, 0, len(ids))
	for _, v := range ids {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
