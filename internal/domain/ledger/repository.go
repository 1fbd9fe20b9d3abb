package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core/id"
	"ledger/internal/domain"
)

// MoveFilter narrows move listings.
type MoveFilter struct {
	domain.ListFilter

	JournalID *id.ID
	PartnerID *id.ID
	Type      *MoveType
	State     *State
	DateFrom  *time.Time
	DateTo    *time.Time
}

// LineFilter selects open lines for automatic reconciliation.
type LineFilter struct {
	AccountID id.ID
	PartnerID *id.ID

	// OnlyOpen skips reconciled lines
	OnlyOpen bool

	// OnlyPosted skips lines of draft and cancelled moves
	OnlyPosted bool
}

// MoveRepository persists moves and their lines.
type MoveRepository interface {
	// Create inserts the move header and its lines.
	Create(ctx context.Context, move *Move) error

	// Update writes the header with optimistic locking on Version.
	Update(ctx context.Context, move *Move) error

	// Delete removes a move and its lines.
	Delete(ctx context.Context, moveID id.ID) error

	// GetByID loads a move with its lines.
	GetByID(ctx context.Context, moveID id.ID) (*Move, error)

	// GetForUpdate loads a move with its lines and locks the header row.
	GetForUpdate(ctx context.Context, moveID id.ID) (*Move, error)

	// List returns move headers without lines.
	List(ctx context.Context, filter MoveFilter) (domain.ListResult[*Move], error)

	// NumberExists reports whether another move of the same company, journal
	// and type already uses the move's number.
	NumberExists(ctx context.Context, move *Move) (bool, error)

	// ReplaceLines deletes the move's lines and inserts the given ones.
	ReplaceLines(ctx context.Context, moveID id.ID, lines []*Line) error

	// GetLines loads lines by id, in id order.
	GetLines(ctx context.Context, lineIDs []id.ID) ([]*Line, error)

	// LockLines loads lines by id and locks them, in id order.
	LockLines(ctx context.Context, lineIDs []id.ID) ([]*Line, error)

	// FindLines returns lines matching the filter, oldest maturity first.
	FindLines(ctx context.Context, filter LineFilter) ([]*Line, error)

	// UpdateReconciliation writes residuals, reconciled flags and full reconcile links.
	UpdateReconciliation(ctx context.Context, lines []*Line) error

	// Totals re-reads the persisted debit and credit sums of a move.
	Totals(ctx context.Context, moveID id.ID) (debit, credit decimal.Decimal, err error)
}

// ReconcileRepository persists partial and full reconciles.
type ReconcileRepository interface {
	CreatePartials(ctx context.Context, partials []*PartialReconcile) error

	// PartialsByLines returns every partial touching one of the lines.
	PartialsByLines(ctx context.Context, lineIDs []id.ID) ([]*PartialReconcile, error)

	DeletePartials(ctx context.Context, partialIDs []id.ID) error

	CreateFullReconcile(ctx context.Context, full *FullReconcile) error

	GetFullReconcile(ctx context.Context, fullID id.ID) (*FullReconcile, error)

	// DeleteFullReconcile removes the group and clears the links to it.
	DeleteFullReconcile(ctx context.Context, fullID id.ID) error
}
