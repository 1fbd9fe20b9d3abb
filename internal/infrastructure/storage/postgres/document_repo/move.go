package document_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
	"ledger/internal/domain"
	"ledger/internal/domain/ledger"
	"ledger/internal/infrastructure/storage/postgres"
)

const (
	movesTable     = "doc_moves"
	moveLinesTable = "doc_move_lines"

	// moveNumberIndex is the unique index over posted numbers
	moveNumberIndex = "uq_doc_moves_number"
)

var lineColumns = postgres.ExtractDBColumns[ledger.Line]()

// MoveRepo implements ledger.MoveRepository.
type MoveRepo struct {
	*BaseDocumentRepo[*ledger.Move]
}

var _ ledger.MoveRepository = (*MoveRepo)(nil)

// NewMoveRepo creates a new move repository.
func NewMoveRepo() *MoveRepo {
	return &MoveRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*ledger.Move](
			movesTable,
			postgres.ExtractDBColumns[ledger.Move](),
			func() *ledger.Move { return &ledger.Move{} },
		),
	}
}

// Create inserts the move header and copies its lines in.
func (r *MoveRepo) Create(ctx context.Context, m *ledger.Move) error {
	if err := r.insert(ctx, m); err != nil {
		return r.translate(err, m)
	}
	return r.copyLines(ctx, m.Lines)
}

// Update writes the header. On success the in-memory version follows the stored one.
func (r *MoveRepo) Update(ctx context.Context, m *ledger.Move) error {
	if err := r.update(ctx, m); err != nil {
		return r.translate(err, m)
	}
	m.SetVersion(m.Version + 1)
	return nil
}

// Delete removes a move and its lines.
func (r *MoveRepo) Delete(ctx context.Context, moveID id.ID) error {
	if err := r.deleteLines(ctx, moveID); err != nil {
		return err
	}
	return r.deleteByID(ctx, moveID)
}

// GetByID loads a move with its lines.
func (r *MoveRepo) GetByID(ctx context.Context, moveID id.ID) (*ledger.Move, error) {
	m, err := r.getHeader(ctx, moveID)
	if err != nil {
		return nil, err
	}
	return r.withLines(ctx, m)
}

// GetForUpdate locks the move header and loads it with its lines.
func (r *MoveRepo) GetForUpdate(ctx context.Context, moveID id.ID) (*ledger.Move, error) {
	m, err := r.getHeaderForUpdate(ctx, moveID)
	if err != nil {
		return nil, err
	}
	return r.withLines(ctx, m)
}

// List returns move headers without lines.
func (r *MoveRepo) List(ctx context.Context, filter ledger.MoveFilter) (domain.ListResult[*ledger.Move], error) {
	q := r.baseSelect(ctx)

	if filter.JournalID != nil {
		q = q.Where(squirrel.Eq{"journal_id": *filter.JournalID})
	}
	if filter.PartnerID != nil {
		q = q.Where(squirrel.Eq{"partner_id": *filter.PartnerID})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"move_type": *filter.Type})
	}
	if filter.State != nil {
		q = q.Where(squirrel.Eq{"state": *filter.State})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
	}

	return r.list(ctx, q, filter.ListFilter)
}

// NumberExists reports whether another move of the same sequence uses the number.
func (r *MoveRepo) NumberExists(ctx context.Context, m *ledger.Move) (bool, error) {
	q := r.Builder().
		Select("1").
		From(movesTable).
		Where(squirrel.Eq{
			"company_id": m.CompanyID,
			"journal_id": m.JournalID,
			"move_type":  m.Type,
			"number":     m.Number,
		}).
		Where(squirrel.NotEq{"id": m.ID}).
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
		return false, fmt.Errorf("number exists: %w", err)
	}
	return true, nil
}

// ReplaceLines deletes the move's lines and copies the given ones in.
func (r *MoveRepo) ReplaceLines(ctx context.Context, moveID id.ID, lines []*ledger.Line) error {
	if err := r.deleteLines(ctx, moveID); err != nil {
		return err
	}
	return r.copyLines(ctx, lines)
}

// GetLines loads lines by id, in id order.
func (r *MoveRepo) GetLines(ctx context.Context, lineIDs []id.ID) ([]*ledger.Line, error) {
	return r.selectLines(ctx, r.linesByID(lineIDs))
}

// LockLines loads lines by id with FOR UPDATE. Rows are locked in id order so
// concurrent reconciliations of overlapping lines cannot deadlock.
func (r *MoveRepo) LockLines(ctx context.Context, lineIDs []id.ID) ([]*ledger.Line, error) {
	return r.selectLines(ctx, r.linesByID(lineIDs).Suffix("FOR UPDATE"))
}

// FindLines returns lines matching the filter, oldest maturity first.
func (r *MoveRepo) FindLines(ctx context.Context, filter ledger.LineFilter) ([]*ledger.Line, error) {
	cols := make([]string, len(lineColumns))
	for i, col := range lineColumns {
		cols[i] = "l." + col
	}

	q := r.Builder().
		Select(cols...).
		From(moveLinesTable+" l").
		Where(squirrel.Eq{"l.account_id": filter.AccountID}).
		OrderBy("COALESCE(l.date_maturity, l.date)", "l.id")

	if filter.PartnerID != nil {
		q = q.Where(squirrel.Eq{"l.partner_id": *filter.PartnerID})
	}
	if filter.OnlyOpen {
		q = q.Where(squirrel.Eq{"l.reconciled": false})
	}
	if filter.OnlyPosted {
		q = q.Join(movesTable+" m ON m.id = l.move_id").
			Where(squirrel.Eq{"m.state": ledger.StatePosted})
	}

	return r.selectLines(ctx, q)
}

// UpdateReconciliation writes residuals, reconciled flags and full reconcile
// links of the lines in one batch.
func (r *MoveRepo) UpdateReconciliation(ctx context.Context, lines []*ledger.Line) error {
	queries := make([]postgres.BatchQuery, 0, len(lines))
	for _, line := range lines {
		sql, args, err := r.Builder().
			Update(moveLinesTable).
			Set("reconciled", line.Reconciled).
			Set("amount_residual", numeric(line.AmountResidual)).
			Set("amount_residual_currency", numeric(line.AmountResidualCurrency)).
			Set("full_reconcile_id", line.FullReconcileID).
			Where(squirrel.Eq{"id": line.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args, ExpectRows: 1})
	}

	err := postgres.NewBatchExecutor(r.getTxManager(ctx)).ExecuteBatch(ctx, queries)
	if errors.Is(err, postgres.ErrRowsNotAffected) {
		return apperror.NewNotFound("move line", "batch").WithCause(err)
	}
	if err != nil {
		return fmt.Errorf("update reconciliation: %w", err)
	}
	return nil
}

// Totals re-reads the persisted debit and credit sums of a move.
func (r *MoveRepo) Totals(ctx context.Context, moveID id.ID) (decimal.Decimal, decimal.Decimal, error) {
	sql, args, err := r.Builder().
		Select("COALESCE(SUM(debit), 0)", "COALESCE(SUM(credit), 0)").
		From(moveLinesTable).
		Where(squirrel.Eq{"move_id": moveID}).
		ToSql()
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("build query: %w", err)
	}

	var debit, credit decimal.Decimal
	if err := r.getTxManager(ctx).GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&debit, &credit); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("move totals: %w", err)
	}
	return debit, credit, nil
}

func (r *MoveRepo) withLines(ctx context.Context, m *ledger.Move) (*ledger.Move, error) {
	q := r.Builder().
		Select(lineColumns...).
		From(moveLinesTable).
		Where(squirrel.Eq{"move_id": m.ID}).
		OrderBy("sequence", "id")

	lines, err := r.selectLines(ctx, q)
	if err != nil {
		return nil, err
	}
	m.Lines = lines
	return m, nil
}

func (r *MoveRepo) linesByID(lineIDs []id.ID) squirrel.SelectBuilder {
	return r.Builder().
		Select(lineColumns...).
		From(moveLinesTable).
		Where(squirrel.Eq{"id": lineIDs}).
		OrderBy("id")
}

func (r *MoveRepo) selectLines(ctx context.Context, q squirrel.SelectBuilder) ([]*ledger.Line, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	lines := make([]*ledger.Line, 0)
	if err := pgxscan.Select(ctx, r.getTxManager(ctx).GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select lines: %w", err)
	}
	return lines, nil
}

func (r *MoveRepo) deleteLines(ctx context.Context, moveID id.ID) error {
	sql, args, err := r.Builder().
		Delete(moveLinesTable).
		Where(squirrel.Eq{"move_id": moveID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := r.getTxManager(ctx).GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return apperror.NewReconciliation("lines of the move are reconciled; unreconcile them first").WithCause(err)
		}
		return fmt.Errorf("delete lines: %w", err)
	}
	return nil
}

// copyLines bulk-loads lines with the COPY protocol.
func (r *MoveRepo) copyLines(ctx context.Context, lines []*ledger.Line) error {
	rows := make([][]any, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, lineRow(line))
	}

	if _, err := postgres.NewBatchInserter(r.getTxManager(ctx)).CopyFromSlice(ctx, moveLinesTable, lineColumns, rows); err != nil {
		return fmt.Errorf("save lines: %w", err)
	}
	return nil
}

// lineRow lists the values of a line in lineColumns order. Decimals are
// passed as pgtype.Numeric since COPY uses the binary format.
func lineRow(line *ledger.Line) []any {
	values := postgres.StructToMap(line)
	row := make([]any, len(lineColumns))
	for i, col := range lineColumns {
		v := values[col]
		if d, ok := v.(decimal.Decimal); ok {
			v = numeric(d)
		}
		row[i] = v
	}
	return row
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// translate maps the unique index on posted numbers to a domain error.
func (r *MoveRepo) translate(err error, m *ledger.Move) error {
	if postgres.IsUniqueViolation(err, moveNumberIndex) {
		return apperror.NewDuplicateDocumentNumber(m.Number).WithCause(err)
	}
	return err
}
