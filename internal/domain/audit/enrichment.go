// Package audit provides utilities for audit field enrichment in domain entities.
package audit

import (
	"context"

	appctx "ledger/internal/core/context"
)

// EnrichCreatedByDirect sets the creator and last editor fields from the
// context user ID.
func EnrichCreatedByDirect(ctx context.Context, createdBy, updatedBy *string) {
	userID := appctx.GetUserID(ctx)
	if userID != "" && createdBy != nil && updatedBy != nil {
		*createdBy = userID
		*updatedBy = userID
	}
}

// EnrichUpdatedByDirect sets the last editor field from the context user ID.
func EnrichUpdatedByDirect(ctx context.Context, updatedBy *string) {
	userID := appctx.GetUserID(ctx)
	if userID != "" && updatedBy != nil {
		*updatedBy = userID
	}
}
