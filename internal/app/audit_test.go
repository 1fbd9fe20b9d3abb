package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core/id"
	"ledger/internal/domain"
	"ledger/internal/domain/catalogs/account"
)

type recorded struct {
	entityType string
	entityID   id.ID
	action     string
}

type recorder struct {
	entries []recorded
	err     error
}

func (r *recorder) Record(_ context.Context, entityType string, entityID id.ID, action string, _ any) error {
	r.entries = append(r.entries, recorded{entityType, entityID, action})
	return r.err
}

func TestAuditCatalog_RecordsCommittedChanges(t *testing.T) {
	ctx := context.Background()
	hooks := domain.NewHookRegistry[*account.Account]()
	rec := &recorder{}
	auditCatalog(hooks, rec, "account")

	acc := account.NewAccount(id.New(), "411000", "Customers", account.TypeReceivable)
	require.NoError(t, hooks.RunAfterCreate(ctx, acc))
	require.NoError(t, hooks.RunAfterUpdate(ctx, acc))
	require.NoError(t, hooks.RunAfterDelete(ctx, acc))

	assert.Equal(t, []recorded{
		{"account", acc.ID, "create"},
		{"account", acc.ID, "update"},
		{"account", acc.ID, "delete"},
	}, rec.entries)
}

func TestAuditCatalog_BeforeHooksUntouched(t *testing.T) {
	ctx := context.Background()
	hooks := domain.NewHookRegistry[*account.Account]()
	rec := &recorder{err: assert.AnError}
	auditCatalog(hooks, rec, "account")

	acc := account.NewAccount(id.New(), "411000", "Customers", account.TypeReceivable)
	require.NoError(t, hooks.RunBeforeCreate(ctx, acc))
	assert.Empty(t, rec.entries)

	assert.ErrorIs(t, hooks.RunAfterCreate(ctx, acc), assert.AnError)
}
