package postgres

import (
	"context"
)

type txManagerKey struct{}

// WithTxManager stores the transaction manager in ctx for repositories.
func WithTxManager(ctx context.Context, m *TxManager) context.Context {
	return context.WithValue(ctx, txManagerKey{}, m)
}

// GetTxManager returns the transaction manager stored in ctx, or nil.
func GetTxManager(ctx context.Context) *TxManager {
	m, _ := ctx.Value(txManagerKey{}).(*TxManager)
	return m
}

// MustGetTxManager returns the transaction manager stored in ctx.
// It is meant for infrastructure code that needs access to GetQuerier()/GetTx().
// A missing manager means the Database middleware was not installed.
//
// Domain code should depend only on internal/core/tx.Manager.
func MustGetTxManager(ctx context.Context) *TxManager {
	m := GetTxManager(ctx)
	if m == nil {
		panic("postgres: no TxManager in context")
	}
	return m
}
