package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ledger/internal/core/id"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/reconcile"
	"ledger/internal/infrastructure/http/v1/dto"
)

// ReconcileHandler matches receivable and payable lines.
type ReconcileHandler struct {
	*BaseHandler
	service *reconcile.Service
	repo    ledger.ReconcileRepository
}

// NewReconcileHandler creates the reconciliation handler.
func NewReconcileHandler(base *BaseHandler, service *reconcile.Service, repo ledger.ReconcileRepository) *ReconcileHandler {
	return &ReconcileHandler{BaseHandler: base, service: service, repo: repo}
}

// Reconcile handles POST /reconcile
func (h *ReconcileHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.Reconcile(c.Request.Context(), req.LineIDs, req.Options())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromReconcileResult(res))
}

// Remove handles POST /reconcile/remove
func (h *ReconcileHandler) Remove(c *gin.Context) {
	var req dto.UnreconcileRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.RemoveMoveReconcile(c.Request.Context(), req.LineIDs); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "reconciliation removed")
}

// AutoAccount handles POST /reconcile/accounts/:id/auto
func (h *ReconcileHandler) AutoAccount(c *gin.Context) {
	accountID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	n, err := h.service.AutoReconcileAccount(c.Request.Context(), accountID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.AutoReconcileResponse{AccountID: accountID.String(), Partials: n})
}

// ReverseMoves handles POST /reconcile/reverse
func (h *ReconcileHandler) ReverseMoves(c *gin.Context) {
	var req dto.ReverseMovesRequest
	if !h.BindJSON(c, &req) {
		return
	}
	date := time.Now().UTC()
	if req.Date != nil {
		date = *req.Date
	}

	reversals, err := h.service.ReverseMoves(c.Request.Context(), req.MoveIDs, date)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.MoveSummary, len(reversals))
	for i, m := range reversals {
		items[i] = dto.FromMoveSummary(m)
	}
	response := gin.H{"items": items}
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// LinePartials handles GET /lines/:id/partials
func (h *ReconcileHandler) LinePartials(c *gin.Context) {
	lineID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	partials, err := h.repo.PartialsByLines(c.Request.Context(), []id.ID{lineID})
	if err != nil {
		h.Error(c, err)
		return
	}
	if partials == nil {
		partials = []*ledger.PartialReconcile{}
	}

	c.JSON(http.StatusOK, gin.H{"items": partials})
}
