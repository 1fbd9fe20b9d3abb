package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/currency"
	"ledger/internal/infrastructure/storage/postgres"
)

const (
	currencyTable     = "cat_currencies"
	currencyRateTable = "cat_currency_rates"
)

var rateColumns = []string{"id", "currency_id", "company_id", "date", "rate"}

// CurrencyRepo implements currency.Repository.
type CurrencyRepo struct {
	*BaseCatalogRepo[*currency.Currency]
}

// NewCurrencyRepo creates a new currency repository.
func NewCurrencyRepo() *CurrencyRepo {
	return &CurrencyRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*currency.Currency](
			currencyTable,
			postgres.ExtractDBColumns[currency.Currency](),
			func() *currency.Currency { return &currency.Currency{} },
		),
	}
}

// FindByISOCode retrieves currency by ISO code.
func (r *CurrencyRepo) FindByISOCode(ctx context.Context, isoCode string) (*currency.Currency, error) {
	q := r.baseSelect(ctx).
		Where(squirrel.Eq{"iso_code": isoCode}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var c currency.Currency
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("currency", isoCode)
		}
		return nil, fmt.Errorf("find by iso code: %w", err)
	}

	return &c, nil
}

// ClearBase clears the base flag on all currencies.
func (r *CurrencyRepo) ClearBase(ctx context.Context) error {
	q := r.Builder().
		Update(currencyTable).
		Set("is_base", false).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"is_base": true})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	_, err = querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("clear base: %w", err)
	}

	return nil
}

// SaveRate upserts the rate of a currency for one company (or all) and date.
func (r *CurrencyRepo) SaveRate(ctx context.Context, rate *currency.Rate) error {
	q := r.Builder().
		Insert(currencyRateTable).
		Columns(rateColumns...).
		Values(rate.ID, rate.CurrencyID, rate.CompanyID, rate.Date, rate.Rate).
		Suffix("ON CONFLICT ON CONSTRAINT uq_currency_rate DO UPDATE SET rate = EXCLUDED.rate RETURNING id")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, args...).Scan(&rate.ID); err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return apperror.NewNotFound("currency", rate.CurrencyID.String())
		}
		return fmt.Errorf("save rate: %w", err)
	}

	return nil
}

// ListRates returns rates of the given currencies dated on or before until,
// oldest first.
func (r *CurrencyRepo) ListRates(ctx context.Context, currencyIDs []id.ID, until time.Time) ([]*currency.Rate, error) {
	rates := make([]*currency.Rate, 0)
	if len(currencyIDs) == 0 {
		return rates, nil
	}

	q := r.Builder().
		Select(rateColumns...).
		From(currencyRateTable).
		Where(squirrel.Eq{"currency_id": currencyIDs}).
		Where(squirrel.LtOrEq{"date": until}).
		OrderBy("date", "id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rates, sql, args...); err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}

	return rates, nil
}
