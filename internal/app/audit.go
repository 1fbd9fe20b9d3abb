package app

import (
	"context"

	"ledger/internal/core/id"
	"ledger/internal/domain"
)

// identified is a catalog entry with a primary key.
type identified interface {
	GetID() id.ID
}

// auditCatalog records created, updated and deleted catalog entries once the
// change is committed. A failed record is logged by the catalog service and
// does not undo the change.
func auditCatalog[T identified](hooks *domain.HookRegistry[T], rec domain.AuditRecorder, entityType string) {
	record := func(action string) domain.Hook[T] {
		return func(ctx context.Context, e T) error {
			return rec.Record(ctx, entityType, e.GetID(), action, e)
		}
	}
	hooks.OnAfterCreate(record("create"))
	hooks.OnAfterUpdate(record("update"))
	hooks.OnAfterDelete(record("delete"))
}
