// Package register_repo provides PostgreSQL implementations for register
// repositories: append-mostly records that link ledger lines together.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
	"ledger/internal/domain/ledger"
	"ledger/internal/infrastructure/storage/postgres"
)

const (
	partialsTable   = "reg_partial_reconciles"
	fullsTable      = "reg_full_reconciles"
	moveLinesTable  = "doc_move_lines"
	partialsIDIndex = "reg_partial_reconciles_pkey"
)

var (
	partialColumns = postgres.ExtractDBColumns[ledger.PartialReconcile]()
	fullColumns    = postgres.ExtractDBColumns[ledger.FullReconcile]()
)

// ReconcileRepo implements ledger.ReconcileRepository.
type ReconcileRepo struct {
	builder squirrel.StatementBuilderType
}

var _ ledger.ReconcileRepository = (*ReconcileRepo)(nil)

// NewReconcileRepo creates a new reconciliation register repository.
func NewReconcileRepo() *ReconcileRepo {
	return &ReconcileRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// getTxManager retrieves TxManager from context.
func (r *ReconcileRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// CreatePartials copies the partials in with the COPY protocol.
func (r *ReconcileRepo) CreatePartials(ctx context.Context, partials []*ledger.PartialReconcile) error {
	rows := make([][]any, 0, len(partials))
	for _, p := range partials {
		values := postgres.StructToMap(p)
		row := make([]any, len(partialColumns))
		for i, col := range partialColumns {
			v := values[col]
			if d, ok := v.(decimal.Decimal); ok {
				v = pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
			}
			row[i] = v
		}
		rows = append(rows, row)
	}

	inserter := postgres.NewBatchInserter(r.getTxManager(ctx))
	if _, err := inserter.CopyFromSlice(ctx, partialsTable, partialColumns, rows); err != nil {
		if postgres.IsUniqueViolation(err, partialsIDIndex) {
			return apperror.NewConflict("partial reconcile already exists").WithCause(err)
		}
		return fmt.Errorf("create partials: %w", err)
	}
	return nil
}

// PartialsByLines returns every partial touching one of the lines, in id order.
func (r *ReconcileRepo) PartialsByLines(ctx context.Context, lineIDs []id.ID) ([]*ledger.PartialReconcile, error) {
	partials := make([]*ledger.PartialReconcile, 0)
	if len(lineIDs) == 0 {
		return partials, nil
	}

	sql, args, err := r.builder.
		Select(partialColumns...).
		From(partialsTable).
		Where(squirrel.Or{
			squirrel.Eq{"debit_line_id": lineIDs},
			squirrel.Eq{"credit_line_id": lineIDs},
		}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, r.getTxManager(ctx).GetQuerier(ctx), &partials, sql, args...); err != nil {
		return nil, fmt.Errorf("partials by lines: %w", err)
	}
	return partials, nil
}

// DeletePartials removes partials by id.
func (r *ReconcileRepo) DeletePartials(ctx context.Context, partialIDs []id.ID) error {
	if len(partialIDs) == 0 {
		return nil
	}

	sql, args, err := r.builder.
		Delete(partialsTable).
		Where(squirrel.Eq{"id": partialIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := r.getTxManager(ctx).GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete partials: %w", err)
	}
	return nil
}

// CreateFullReconcile inserts the group and links its partials to it.
// Lines are linked by the caller through UpdateReconciliation.
func (r *ReconcileRepo) CreateFullReconcile(ctx context.Context, full *ledger.FullReconcile) error {
	sql, args, err := r.builder.
		Insert(fullsTable).
		Columns(fullColumns...).
		Values(full.ID, full.Name, full.ExchangeMoveID, full.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("create full reconcile: %w", err)
	}

	if len(full.PartialIDs) == 0 {
		return nil
	}
	sql, args, err = r.builder.
		Update(partialsTable).
		Set("full_reconcile_id", full.ID).
		Where(squirrel.Eq{"id": full.PartialIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("link partials: %w", err)
	}
	return nil
}

// GetFullReconcile loads a group with the ids of its partials and lines.
func (r *ReconcileRepo) GetFullReconcile(ctx context.Context, fullID id.ID) (*ledger.FullReconcile, error) {
	querier := r.getTxManager(ctx).GetQuerier(ctx)

	sql, args, err := r.builder.
		Select(fullColumns...).
		From(fullsTable).
		Where(squirrel.Eq{"id": fullID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var full ledger.FullReconcile
	if err := pgxscan.Get(ctx, querier, &full, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("full reconcile", fullID.String())
		}
		return nil, fmt.Errorf("get full reconcile: %w", err)
	}

	full.PartialIDs, err = r.linkedIDs(ctx, partialsTable, fullID)
	if err != nil {
		return nil, err
	}
	full.LineIDs, err = r.linkedIDs(ctx, moveLinesTable, fullID)
	if err != nil {
		return nil, err
	}
	return &full, nil
}

// DeleteFullReconcile clears the links to the group, then removes it.
func (r *ReconcileRepo) DeleteFullReconcile(ctx context.Context, fullID id.ID) error {
	querier := r.getTxManager(ctx).GetQuerier(ctx)

	for _, table := range []string{partialsTable, moveLinesTable} {
		sql, args, err := r.builder.
			Update(table).
			Set("full_reconcile_id", nil).
			Where(squirrel.Eq{"full_reconcile_id": fullID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}
		if _, err := querier.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("unlink %s: %w", table, err)
		}
	}

	sql, args, err := r.builder.
		Delete(fullsTable).
		Where(squirrel.Eq{"id": fullID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete full reconcile: %w", err)
	}
	return nil
}

func (r *ReconcileRepo) linkedIDs(ctx context.Context, table string, fullID id.ID) ([]id.ID, error) {
	sql, args, err := r.builder.
		Select("id").
		From(table).
		Where(squirrel.Eq{"full_reconcile_id": fullID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	ids := make([]id.ID, 0)
	if err := pgxscan.Select(ctx, r.getTxManager(ctx).GetQuerier(ctx), &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("linked ids of %s: %w", table, err)
	}
	return ids, nil
}
