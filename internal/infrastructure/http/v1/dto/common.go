// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"ledger/internal/core/id"
)

// --- List Response ---

// ListResponse wraps list results with pagination.
type ListResponse struct {
	Items      any   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// --- Base DTOs ---

// CatalogFields are shared by every catalog request.
type CatalogFields struct {
	Code string `json:"code" binding:"required,max=64"`
	Name string `json:"name" binding:"required,max=255"`
}

// VersionedRequest carries the version the client edited, for optimistic locking.
type VersionedRequest struct {
	Version int `json:"version" binding:"required,min=1"`
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// IDsRequest lists entity ids for batch operations.
type IDsRequest struct {
	IDs []id.ID `json:"ids" binding:"required,min=1,dive,required"`
}

// --- Success Response ---

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// --- Deletion ---

// SetDeletionMarkRequest sets or clears the soft-delete mark.
type SetDeletionMarkRequest struct {
	Marked bool `json:"marked"`
}
