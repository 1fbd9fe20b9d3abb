package catalog_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/account"
	"ledger/internal/infrastructure/storage/postgres"
)

const accountTable = "cat_accounts"

// AccountRepo implements account.Repository.
type AccountRepo struct {
	*BaseCatalogRepo[*account.Account]
}

// NewAccountRepo creates a new account repository.
func NewAccountRepo() *AccountRepo {
	return &AccountRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*account.Account](
			accountTable,
			postgres.ExtractDBColumns[account.Account](),
			func() *account.Account { return &account.Account{} },
		),
	}
}

// HasLines reports whether any move line is booked on the account.
func (r *AccountRepo) HasLines(ctx context.Context, accountID id.ID) (bool, error) {
	q := r.Builder().
		Select("1").
		From("doc_move_lines").
		Where(squirrel.Eq{"account_id": accountID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = r.getTxManager(ctx).GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("account has lines: %w", err)
	}
	return true, nil
}
