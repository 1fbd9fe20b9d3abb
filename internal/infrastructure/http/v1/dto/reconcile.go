package dto

import (
	"time"

	"ledger/internal/core/id"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/reconcile"
)

// WriteoffRequest books the open remainder of a reconciliation.
type WriteoffRequest struct {
	AccountID id.ID      `json:"accountId" binding:"required"`
	JournalID id.ID      `json:"journalId" binding:"required"`
	Date      *time.Time `json:"date"`
	Label     string     `json:"label" binding:"max=255"`
}

// ReconcileRequest matches lines against each other.
type ReconcileRequest struct {
	LineIDs  []id.ID          `json:"lineIds" binding:"required,min=1,dive,required"`
	Writeoff *WriteoffRequest `json:"writeoff"`
}

// Options converts the request to service options.
func (r *ReconcileRequest) Options() reconcile.Options {
	if r.Writeoff == nil {
		return reconcile.Options{}
	}
	return reconcile.Options{Writeoff: &reconcile.Writeoff{
		AccountID: r.Writeoff.AccountID,
		JournalID: r.Writeoff.JournalID,
		Date:      r.Writeoff.Date,
		Label:     r.Writeoff.Label,
	}}
}

// UnreconcileRequest removes every reconciliation of the lines.
type UnreconcileRequest struct {
	LineIDs []id.ID `json:"lineIds" binding:"required,min=1,dive,required"`
}

// ReconcileResponse describes what a reconciliation created.
type ReconcileResponse struct {
	Partials       []*ledger.PartialReconcile `json:"partials"`
	FullReconcile  *ledger.FullReconcile      `json:"fullReconcile,omitempty"`
	ExchangeMoveID *string                    `json:"exchangeMoveId,omitempty"`
	WriteoffMoveID *string                    `json:"writeoffMoveId,omitempty"`
	CashBasisMoves []string                   `json:"cashBasisMoveIds,omitempty"`
}

// FromReconcileResult creates response DTO from a reconciliation result.
func FromReconcileResult(res *reconcile.Result) ReconcileResponse {
	out := ReconcileResponse{
		Partials:      res.Partials,
		FullReconcile: res.FullReconcile,
	}
	if out.Partials == nil {
		out.Partials = []*ledger.PartialReconcile{}
	}
	if res.ExchangeMove != nil {
		s := res.ExchangeMove.ID.String()
		out.ExchangeMoveID = &s
	}
	if res.WriteoffMove != nil {
		s := res.WriteoffMove.ID.String()
		out.WriteoffMoveID = &s
	}
	for _, m := range res.CashBasisMoves {
		out.CashBasisMoves = append(out.CashBasisMoves, m.ID.String())
	}
	return out
}

// AutoReconcileResponse reports how many partials an account sweep created.
type AutoReconcileResponse struct {
	AccountID string `json:"accountId"`
	Partials  int    `json:"partials"`
}

// ReverseMovesRequest reverses several posted moves and reconciles each with its reversal.
type ReverseMovesRequest struct {
	MoveIDs []id.ID    `json:"moveIds" binding:"required,min=1,dive,required"`
	Date    *time.Time `json:"date"`
}
