package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ledger/internal/core/id"
	"ledger/internal/domain"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/move"
	"ledger/internal/domain/ledger/reconcile"
	"ledger/internal/infrastructure/http/v1/dto"
	"ledger/internal/infrastructure/storage/postgres"
)

const historyLimit = 100

// MoveHistory reads the audit trail of an entity.
type MoveHistory interface {
	GetEntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]postgres.AuditEntry, error)
}

// MoveHandler serves journal entries and invoices: drafting, line edits and
// the state machine.
type MoveHandler struct {
	*BaseHandler
	moves     *move.Service
	reconcile *reconcile.Service
	history   MoveHistory
}

// NewMoveHandler creates the moves handler.
func NewMoveHandler(base *BaseHandler, moves *move.Service, rec *reconcile.Service, history MoveHistory) *MoveHandler {
	return &MoveHandler{BaseHandler: base, moves: moves, reconcile: rec, history: history}
}

// List handles GET /moves
func (h *MoveHandler) List(c *gin.Context) {
	var q dto.MoveListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := ledger.MoveFilter{ListFilter: domain.DefaultListFilter()}
	filter.OrderBy = q.OrderBy
	filter.Search = q.Search
	if q.Limit > 0 {
		filter.Limit = q.Limit
	}
	filter.Offset = q.Offset
	filter.CompanyID = optionalID(q.CompanyID)
	filter.JournalID = optionalID(q.JournalID)
	filter.PartnerID = optionalID(q.PartnerID)
	if q.MoveType != "" {
		t := ledger.MoveType(q.MoveType)
		filter.Type = &t
	}
	if q.State != "" {
		s := ledger.State(q.State)
		filter.State = &s
	}
	filter.DateFrom = optionalDate(q.DateFrom)
	filter.DateTo = optionalDate(q.DateTo)

	result, err := h.moves.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.MoveSummary, len(result.Items))
	for i, m := range result.Items {
		items[i] = dto.FromMoveSummary(m)
	}
	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Create handles POST /moves
func (h *MoveHandler) Create(c *gin.Context) {
	var req dto.CreateMoveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	m := req.ToEntity()
	if err := h.moves.Create(c.Request.Context(), m); err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromMove(m)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// Get handles GET /moves/:id
func (h *MoveHandler) Get(c *gin.Context) {
	moveID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	m, err := h.moves.GetByID(c.Request.Context(), moveID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromMove(m))
}

// Update handles PUT /moves/:id
func (h *MoveHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	moveID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateMoveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	edited, err := h.moves.GetByID(ctx, moveID)
	if err != nil {
		h.Error(c, err)
		return
	}
	req.ApplyTo(edited)

	updated, err := h.moves.Update(ctx, edited)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromMove(updated))
}

// ReplaceLines handles PUT /moves/:id/lines
func (h *MoveHandler) ReplaceLines(c *gin.Context) {
	moveID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.ReplaceLinesRequest
	if !h.BindJSON(c, &req) {
		return
	}

	updated, err := h.moves.UpdateLines(c.Request.Context(), moveID, req.Version, dto.ToLines(req.Lines))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromMove(updated))
}

// Delete handles DELETE /moves/:id
func (h *MoveHandler) Delete(c *gin.Context) {
	moveID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.moves.Delete(c.Request.Context(), moveID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Post handles POST /moves/:id/post
func (h *MoveHandler) Post(c *gin.Context) {
	h.transition(c, func(ctx context.Context, moveID id.ID) error {
		return h.moves.Post(ctx, moveID)
	})
}

// Cancel handles POST /moves/:id/cancel
func (h *MoveHandler) Cancel(c *gin.Context) {
	h.transition(c, h.moves.Cancel)
}

// Draft handles POST /moves/:id/draft
func (h *MoveHandler) Draft(c *gin.Context) {
	h.transition(c, h.moves.ResetToDraft)
}

func (h *MoveHandler) transition(c *gin.Context, apply func(ctx context.Context, moveID id.ID) error) {
	ctx := c.Request.Context()

	moveID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := apply(ctx, moveID); err != nil {
		h.Error(c, err)
		return
	}

	m, err := h.moves.GetByID(ctx, moveID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromMove(m))
}

// PostBatch handles POST /moves/post. Either every move posts or none does.
func (h *MoveHandler) PostBatch(c *gin.Context) {
	var req dto.IDsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.moves.Post(c.Request.Context(), req.IDs...); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "moves posted")
}

// Reverse handles POST /moves/:id/reverse
func (h *MoveHandler) Reverse(c *gin.Context) {
	ctx := c.Request.Context()

	moveID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.ReverseRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}
	date := time.Now().UTC()
	if req.Date != nil {
		date = *req.Date
	}

	var reversal *ledger.Move
	if req.Reconcile {
		reversals, err := h.reconcile.ReverseMoves(ctx, []id.ID{moveID}, date)
		if err != nil {
			h.Error(c, err)
			return
		}
		reversal = reversals[0]
	} else {
		var err error
		reversal, err = h.moves.Reverse(ctx, moveID, date)
		if err != nil {
			h.Error(c, err)
			return
		}
	}

	response := dto.FromMove(reversal)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// History handles GET /moves/:id/history
func (h *MoveHandler) History(c *gin.Context) {
	moveID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	entries, err := h.history.GetEntityHistory(c.Request.Context(), "move", moveID, h.ParseIntQuery(c, "limit", historyLimit))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": dto.FromAuditEntries(entries)})
}

// optionalID parses a query value the binding already validated as uuid.
func optionalID(raw string) *id.ID {
	if raw == "" {
		return nil
	}
	v := id.MustParse(raw)
	return &v
}

func optionalDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil
	}
	return &t
}
