package ledgertest

import (
	"context"
	"slices"
	"sort"

	"github.com/shopspring/decimal"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
	"ledger/internal/domain"
	"ledger/internal/domain/ledger"
)

// --- ledger.MoveRepository ---

func (a *Arena) Create(_ context.Context, m *ledger.Move) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.st.moves[m.ID]; ok {
		return apperror.NewConflict("move already exists")
	}
	if err := a.checkNumber(m); err != nil {
		return err
	}
	a.st.moves[m.ID] = cloneMove(m)
	a.putLines(m.ID, m.Lines)
	return nil
}

func (a *Arena) Update(_ context.Context, m *ledger.Move) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	stored, ok := a.st.moves[m.ID]
	if !ok {
		return apperror.NewNotFound("move", m.ID.String())
	}
	if stored.Version != m.Version {
		return apperror.NewConcurrentModification("move", m.ID.String())
	}
	if err := a.checkNumber(m); err != nil {
		return err
	}
	m.SetVersion(m.Version + 1)
	a.st.moves[m.ID] = cloneMove(m)
	return nil
}

// checkNumber plays the part of the unique index on posted numbers.
func (a *Arena) checkNumber(m *ledger.Move) error {
	if !m.HasNumber() {
		return nil
	}
	for _, other := range a.st.moves {
		if other.ID != m.ID && sameSequence(other, m) {
			return apperror.NewDuplicateDocumentNumber(m.Number)
		}
	}
	return nil
}

func sameSequence(a, b *ledger.Move) bool {
	return a.Number == b.Number && a.CompanyID == b.CompanyID && a.JournalID == b.JournalID && a.Type == b.Type
}

func (a *Arena) Delete(_ context.Context, moveID id.ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.st.moves[moveID]; !ok {
		return apperror.NewNotFound("move", moveID.String())
	}
	for _, lineID := range a.st.moveLines[moveID] {
		delete(a.st.lines, lineID)
	}
	delete(a.st.moveLines, moveID)
	delete(a.st.moves, moveID)
	return nil
}

func (a *Arena) GetByID(_ context.Context, moveID id.ID) (*ledger.Move, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loadMove(moveID)
}

func (a *Arena) GetForUpdate(ctx context.Context, moveID id.ID) (*ledger.Move, error) {
	return a.GetByID(ctx, moveID)
}

func (a *Arena) loadMove(moveID id.ID) (*ledger.Move, error) {
	stored, ok := a.st.moves[moveID]
	if !ok {
		return nil, apperror.NewNotFound("move", moveID.String())
	}
	m := cloneMove(stored)
	m.Lines = make([]*ledger.Line, 0, len(a.st.moveLines[moveID]))
	for _, lineID := range a.st.moveLines[moveID] {
		m.Lines = append(m.Lines, a.st.lines[lineID].Clone())
	}
	return m, nil
}

func (a *Arena) List(_ context.Context, filter ledger.MoveFilter) (domain.ListResult[*ledger.Move], error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	items := make([]*ledger.Move, 0)
	for _, m := range a.st.moves {
		switch {
		case filter.CompanyID != nil && m.CompanyID != *filter.CompanyID:
		case filter.JournalID != nil && m.JournalID != *filter.JournalID:
		case filter.PartnerID != nil && (m.PartnerID == nil || *m.PartnerID != *filter.PartnerID):
		case filter.Type != nil && m.Type != *filter.Type:
		case filter.State != nil && m.State != *filter.State:
		case filter.DateFrom != nil && m.Date.Before(*filter.DateFrom):
		case filter.DateTo != nil && m.Date.After(*filter.DateTo):
		default:
			items = append(items, cloneMove(m))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.Before(items[j].Date)
		}
		return items[i].ID.String() < items[j].ID.String()
	})

	total := len(items)
	if filter.Offset > 0 {
		items = items[min(filter.Offset, len(items)):]
	}
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return domain.ListResult[*ledger.Move]{
		Items:      items,
		TotalCount: int64(total),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

func (a *Arena) NumberExists(_ context.Context, m *ledger.Move) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, other := range a.st.moves {
		if other.ID != m.ID && sameSequence(other, m) {
			return true, nil
		}
	}
	return false, nil
}

func (a *Arena) ReplaceLines(_ context.Context, moveID id.ID, lines []*ledger.Line) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.st.moves[moveID]; !ok {
		return apperror.NewNotFound("move", moveID.String())
	}
	for _, lineID := range a.st.moveLines[moveID] {
		delete(a.st.lines, lineID)
	}
	a.putLines(moveID, lines)
	return nil
}

func (a *Arena) putLines(moveID id.ID, lines []*ledger.Line) {
	ids := make([]id.ID, 0, len(lines))
	for _, line := range lines {
		c := line.Clone()
		c.MoveID = moveID
		a.st.lines[c.ID] = c
		ids = append(ids, c.ID)
	}
	a.st.moveLines[moveID] = ids
}

func (a *Arena) GetLines(_ context.Context, lineIDs []id.ID) ([]*ledger.Line, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.linesByID(lineIDs)
}

func (a *Arena) LockLines(ctx context.Context, lineIDs []id.ID) ([]*ledger.Line, error) {
	lines, err := a.GetLines(ctx, lineIDs)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	for _, line := range lines {
		a.Locked = append(a.Locked, line.ID)
	}
	a.mu.Unlock()
	return lines, nil
}

func (a *Arena) linesByID(lineIDs []id.ID) ([]*ledger.Line, error) {
	out := make([]*ledger.Line, 0, len(lineIDs))
	seen := make(map[id.ID]bool, len(lineIDs))
	for _, lineID := range lineIDs {
		if seen[lineID] {
			continue
		}
		seen[lineID] = true
		line, ok := a.st.lines[lineID]
		if !ok {
			return nil, apperror.NewNotFound("move line", lineID.String())
		}
		out = append(out, line.Clone())
	}
	sortByID(out)
	return out, nil
}

func (a *Arena) FindLines(_ context.Context, filter ledger.LineFilter) ([]*ledger.Line, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*ledger.Line, 0)
	for _, line := range a.st.lines {
		if line.AccountID != filter.AccountID {
			continue
		}
		if filter.PartnerID != nil && (line.PartnerID == nil || *line.PartnerID != *filter.PartnerID) {
			continue
		}
		if filter.OnlyOpen && line.Reconciled {
			continue
		}
		if filter.OnlyPosted && a.st.moves[line.MoveID].State != ledger.StatePosted {
			continue
		}
		out = append(out, line.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		mi, mj := out[i].MaturityOrDate(), out[j].MaturityOrDate()
		if !mi.Equal(mj) {
			return mi.Before(mj)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (a *Arena) UpdateReconciliation(_ context.Context, lines []*ledger.Line) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, line := range lines {
		stored, ok := a.st.lines[line.ID]
		if !ok {
			return apperror.NewNotFound("move line", line.ID.String())
		}
		stored.Reconciled = line.Reconciled
		stored.AmountResidual = line.AmountResidual
		stored.AmountResidualCurrency = line.AmountResidualCurrency
		stored.FullReconcileID = line.FullReconcileID
	}
	return nil
}

func (a *Arena) Totals(_ context.Context, moveID id.ID) (decimal.Decimal, decimal.Decimal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	lines := make([]*ledger.Line, 0)
	for _, lineID := range a.st.moveLines[moveID] {
		lines = append(lines, a.st.lines[lineID])
	}
	debit, credit := sumLines(lines)
	return debit, credit, nil
}

// Line returns the stored state of a line.
func (a *Arena) Line(lineID id.ID) *ledger.Line {
	a.mu.Lock()
	defer a.mu.Unlock()
	if line, ok := a.st.lines[lineID]; ok {
		return line.Clone()
	}
	return nil
}

// Move returns the stored state of a move with its lines, nil when absent.
func (a *Arena) Move(moveID id.ID) *ledger.Move {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, err := a.loadMove(moveID)
	if err != nil {
		return nil
	}
	return m
}

// Moves returns every stored move header.
func (a *Arena) Moves() []*ledger.Move {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*ledger.Move, 0, len(a.st.moves))
	for _, m := range a.st.moves {
		out = append(out, cloneMove(m))
	}
	return out
}

// --- ledger.ReconcileRepository ---

func (a *Arena) CreatePartials(_ context.Context, partials []*ledger.PartialReconcile) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range partials {
		c := *p
		a.st.partials[p.ID] = &c
	}
	return nil
}

func (a *Arena) PartialsByLines(_ context.Context, lineIDs []id.ID) ([]*ledger.PartialReconcile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*ledger.PartialReconcile, 0)
	for _, p := range a.st.partials {
		if slices.Contains(lineIDs, p.DebitLineID) || slices.Contains(lineIDs, p.CreditLineID) {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (a *Arena) DeletePartials(_ context.Context, partialIDs []id.ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, partialID := range partialIDs {
		delete(a.st.partials, partialID)
	}
	return nil
}

func (a *Arena) CreateFullReconcile(_ context.Context, full *ledger.FullReconcile) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := *full
	c.PartialIDs = nil
	c.LineIDs = nil
	a.st.fulls[full.ID] = &c
	for _, partialID := range full.PartialIDs {
		if p, ok := a.st.partials[partialID]; ok {
			fullID := full.ID
			p.FullReconcileID = &fullID
		}
	}
	return nil
}

func (a *Arena) GetFullReconcile(_ context.Context, fullID id.ID) (*ledger.FullReconcile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	stored, ok := a.st.fulls[fullID]
	if !ok {
		return nil, apperror.NewNotFound("full reconcile", fullID.String())
	}
	full := *stored
	full.PartialIDs = make([]id.ID, 0)
	full.LineIDs = make([]id.ID, 0)
	for _, p := range a.st.partials {
		if p.FullReconcileID != nil && *p.FullReconcileID == fullID {
			full.PartialIDs = append(full.PartialIDs, p.ID)
		}
	}
	for _, line := range a.st.lines {
		if line.FullReconcileID != nil && *line.FullReconcileID == fullID {
			full.LineIDs = append(full.LineIDs, line.ID)
		}
	}
	return &full, nil
}

func (a *Arena) DeleteFullReconcile(_ context.Context, fullID id.ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.st.fulls, fullID)
	for _, p := range a.st.partials {
		if p.FullReconcileID != nil && *p.FullReconcileID == fullID {
			p.FullReconcileID = nil
		}
	}
	for _, line := range a.st.lines {
		if line.FullReconcileID != nil && *line.FullReconcileID == fullID {
			line.FullReconcileID = nil
		}
	}
	return nil
}

// FullReconciles returns the number of stored full reconciles.
func (a *Arena) FullReconciles() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.st.fulls)
}

// Partials returns the number of stored partial reconciles.
func (a *Arena) Partials() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.st.partials)
}
