package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchInserter bulk-loads rows with the COPY protocol.
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a new batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyFromSlice inserts rows into table. Each row holds one value per column.
// It must run inside a transaction so a failed copy leaves nothing behind.
//
// Example:
//
//	rows := make([][]any, 0, len(lines))
//	for _, l := range lines {
//	    rows = append(rows, []any{l.ID, l.MoveID, l.AccountID, l.Debit, l.Credit})
//	}
//	n, err := inserter.CopyFromSlice(ctx, "doc_move_lines", []string{"id", "move_id", "account_id", "debit", "credit"}, rows)
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx := b.txManager.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("CopyFromSlice requires transaction context")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

// BatchExecutor sends several statements in one round-trip.
type BatchExecutor struct {
	txManager *TxManager
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(txManager *TxManager) *BatchExecutor {
	return &BatchExecutor{txManager: txManager}
}

// BatchQuery represents a query in a batch.
type BatchQuery struct {
	SQL  string
	Args []any

	// ExpectRows fails the batch when the statement touches fewer rows
	ExpectRows int64
}

// ExecuteBatch executes queries in a single round-trip.
func (e *BatchExecutor) ExecuteBatch(ctx context.Context, queries []BatchQuery) error {
	tx := e.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("ExecuteBatch requires transaction context")
	}
	if len(queries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(q.SQL, q.Args...)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i, q := range queries {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("batch query %d failed: %w", i, err)
		}
		if tag.RowsAffected() < q.ExpectRows {
			return fmt.Errorf("batch query %d: %w", i, ErrRowsNotAffected)
		}
	}

	return nil
}
