package dto

import (
	"encoding/json"
	"time"

	"ledger/internal/infrastructure/storage/postgres"
)

// AuditEntryResponse is one entry of an entity's history.
type AuditEntryResponse struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	UserID    string          `json:"userId,omitempty"`
	Changes   json.RawMessage `json:"changes,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// FromAuditEntries creates response DTOs from audit log entries.
func FromAuditEntries(entries []postgres.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{
			ID:        e.ID.String(),
			Action:    string(e.Action),
			UserID:    e.UserID,
			Changes:   e.Changes,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		}
	}
	return out
}
