// Package move provides the journal entry lifecycle: creation and edition of
// drafts through the line balancer, posting with validation and numbering,
// cancellation, reset to draft and reversal.
package move

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"ledger/internal/core/apperror"
	appctx "ledger/internal/core/context"
	"ledger/internal/core/id"
	"ledger/internal/core/numerator"
	"ledger/internal/core/tx"
	"ledger/internal/domain"
	"ledger/internal/domain/audit"
	"ledger/internal/domain/catalogs/account"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/balance"
	"ledger/internal/domain/ledger/money"
	"ledger/pkg/logger"
)

var tracer = otel.Tracer("ledger/move")

// Event types published by the service.
const (
	EventPosted    = "move.posted"
	EventCancelled = "move.cancelled"
	EventReset     = "move.reset"
	EventReversed  = "move.reversed"
)

// Config wires the service collaborators. Events and Audit are optional.
type Config struct {
	Moves      ledger.MoveRepository
	Reconciles ledger.ReconcileRepository
	Provider   ledger.Provider
	TxManager  tx.Manager
	Numerator  numerator.Generator

	// NumberingStrategy defaults to strict (gapless) numbering
	NumberingStrategy numerator.Strategy

	Events domain.EventPublisher
	Audit  domain.AuditRecorder
}

// Service provides business operations on moves.
type Service struct {
	moves      ledger.MoveRepository
	reconciles ledger.ReconcileRepository
	provider   ledger.Provider
	txManager  tx.Manager
	numerator  numerator.Generator
	strategy   numerator.Strategy
	events     domain.EventPublisher
	audit      domain.AuditRecorder
	hooks      *domain.HookRegistry[*ledger.Move]
}

// NewService creates a move service.
func NewService(cfg Config) *Service {
	return &Service{
		moves:      cfg.Moves,
		reconciles: cfg.Reconciles,
		provider:   cfg.Provider,
		txManager:  cfg.TxManager,
		numerator:  cfg.Numerator,
		strategy:   cfg.NumberingStrategy,
		events:     cfg.Events,
		audit:      cfg.Audit,
		hooks:      domain.NewHookRegistry[*ledger.Move](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*ledger.Move] {
	return s.hooks
}

// Create balances and stores a draft move. Computed lines (taxes, rounding,
// payment terms) are generated from the product lines.
func (s *Service) Create(ctx context.Context, m *ledger.Move) error {
	if err := CheckDraft(m, "create"); err != nil {
		return err
	}
	if err := s.hooks.RunBeforeCreate(ctx, m); err != nil {
		return err
	}
	audit.EnrichCreatedByDirect(ctx, &m.CreatedBy, &m.UpdatedBy)

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.prepare(ctx, m, m.Lines, true); err != nil {
			return err
		}
		if err := s.moves.Create(ctx, m); err != nil {
			return fmt.Errorf("create move: %w", err)
		}
		if err := s.assertValid(ctx, m); err != nil {
			return err
		}
		return s.record(ctx, m, "create")
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterCreate(ctx, m); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "move created",
		"id", m.ID,
		"type", m.Type,
		"lines", len(m.Lines))

	return nil
}

// GetByID retrieves a move with its lines.
func (s *Service) GetByID(ctx context.Context, moveID id.ID) (*ledger.Move, error) {
	return s.moves.GetByID(ctx, moveID)
}

// List retrieves move headers.
func (s *Service) List(ctx context.Context, filter ledger.MoveFilter) (domain.ListResult[*ledger.Move], error) {
	return s.moves.List(ctx, filter)
}

// Update applies the header of edited to the stored move. Drafts are
// rebalanced; posted moves accept a new reference and narration only, and
// only when their journal allows it.
func (s *Service) Update(ctx context.Context, edited *ledger.Move) (*ledger.Move, error) {
	if err := s.hooks.RunBeforeUpdate(ctx, edited); err != nil {
		return nil, err
	}

	var current *ledger.Move
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		current, err = s.moves.GetForUpdate(ctx, edited.ID)
		if err != nil {
			return err
		}
		if current.Version != edited.Version {
			return apperror.NewConcurrentModification("move", edited.ID.String())
		}

		switch current.State {
		case ledger.StateDraft:
			recompute := !current.Date.Equal(edited.Date) || current.CurrencyID != edited.CurrencyID
			copyHeader(current, edited)
			if err := s.prepare(ctx, current, current.Lines, recompute); err != nil {
				return err
			}
			if err := s.moves.ReplaceLines(ctx, current.ID, current.Lines); err != nil {
				return fmt.Errorf("replace lines: %w", err)
			}
			if err := s.assertValid(ctx, current); err != nil {
				return err
			}
		case ledger.StatePosted:
			if err := s.updatePosted(ctx, current, edited); err != nil {
				return err
			}
		default:
			return apperror.NewInvalidState("move", string(current.State), "update")
		}

		audit.EnrichUpdatedByDirect(ctx, &current.UpdatedBy)
		current.UpdatedAt = time.Now().UTC()
		if err := s.moves.Update(ctx, current); err != nil {
			return fmt.Errorf("update move: %w", err)
		}
		return s.record(ctx, current, "update")
	})
	if err != nil {
		return nil, err
	}

	if err := s.hooks.RunAfterUpdate(ctx, current); err != nil {
		logger.Warn(ctx, "after-update hook failed", "error", err)
	}
	return current, nil
}

func copyHeader(dst, src *ledger.Move) {
	dst.Ref = src.Ref
	dst.Narration = src.Narration
	dst.Date = src.Date
	dst.JournalID = src.JournalID
	dst.CurrencyID = src.CurrencyID
	dst.PartnerID = src.PartnerID
	dst.PaymentAccountID = src.PaymentAccountID
	dst.PaymentTermID = src.PaymentTermID
	dst.CashRoundingID = src.CashRoundingID
}

func (s *Service) updatePosted(ctx context.Context, current, edited *ledger.Move) error {
	j, err := s.provider.Journal(ctx, current.JournalID)
	if err != nil {
		return err
	}
	if !j.UpdatePosted {
		return apperror.NewInvalidState("move", string(current.State), "update")
	}
	if !current.Date.Equal(edited.Date) || current.JournalID != edited.JournalID || current.CurrencyID != edited.CurrencyID {
		return apperror.NewValidation("only the reference and narration of a posted entry can change")
	}
	current.Ref = edited.Ref
	current.Narration = edited.Narration
	return nil
}

// UpdateLines replaces the lines of a draft. Taxes are recomputed only when
// base lines changed, so a manually edited tax line survives.
func (s *Service) UpdateLines(ctx context.Context, moveID id.ID, version int, lines []*ledger.Line) (*ledger.Move, error) {
	var current *ledger.Move
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		current, err = s.moves.GetForUpdate(ctx, moveID)
		if err != nil {
			return err
		}
		if err := CheckDraft(current, "edit lines of"); err != nil {
			return err
		}
		if current.Version != version {
			return apperror.NewConcurrentModification("move", moveID.String())
		}

		recompute := balance.NeedsTaxRecompute(current.Lines, lines)
		if err := s.prepare(ctx, current, lines, recompute); err != nil {
			return err
		}
		if err := s.moves.ReplaceLines(ctx, moveID, current.Lines); err != nil {
			return fmt.Errorf("replace lines: %w", err)
		}
		if err := s.assertValid(ctx, current); err != nil {
			return err
		}

		audit.EnrichUpdatedByDirect(ctx, &current.UpdatedBy)
		current.UpdatedAt = time.Now().UTC()
		if err := s.moves.Update(ctx, current); err != nil {
			return fmt.Errorf("update move: %w", err)
		}
		return s.record(ctx, current, "update_lines")
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}

// assertValid checks a draft just written by a line mutation.
func (s *Service) assertValid(ctx context.Context, m *ledger.Move) error {
	if !ValidityChecked(ctx) {
		return nil
	}
	companyCurrency, err := s.provider.Currency(ctx, m.CompanyCurrencyID)
	if err != nil {
		return err
	}
	return AssertBalanced(ctx, s.moves, m.ID, companyCurrency.Places())
}

// Delete removes a draft move.
func (s *Service) Delete(ctx context.Context, moveID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		m, err := s.moves.GetForUpdate(ctx, moveID)
		if err != nil {
			return err
		}
		if err := CheckDraft(m, "delete"); err != nil {
			return err
		}
		if err := s.hooks.RunBeforeDelete(ctx, m); err != nil {
			return err
		}
		if err := s.moves.Delete(ctx, moveID); err != nil {
			return fmt.Errorf("delete move: %w", err)
		}
		return s.record(ctx, m, "delete")
	})
}

// Post validates and posts the moves in order, in one transaction. Either
// every move is posted or none is.
func (s *Service) Post(ctx context.Context, moveIDs ...id.ID) error {
	ctx, span := tracer.Start(ctx, "move.Post")
	defer span.End()
	span.SetAttributes(attribute.Int("moves", len(moveIDs)))

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, moveID := range moveIDs {
			if err := s.post(ctx, moveID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) post(ctx context.Context, moveID id.ID) error {
	m, err := s.moves.GetForUpdate(ctx, moveID)
	if err != nil {
		return err
	}
	if err := CheckDraft(m, "post"); err != nil {
		return err
	}
	if countAmountLines(m.Lines) == 0 {
		return apperror.NewValidation("cannot post an entry without lines").WithDetail("move_id", moveID.String())
	}

	c, err := s.provider.Company(ctx, m.CompanyID)
	if err != nil {
		return err
	}
	accounts, err := s.provider.Accounts(ctx, ledger.AccountIDs(m.Lines))
	if err != nil {
		return err
	}
	if err := CheckCompany(m, accounts); err != nil {
		return err
	}
	if err := CheckLockDate(c, m.Date, appctx.IsAdviser(ctx)); err != nil {
		return err
	}

	companyCurrency, err := s.provider.Currency(ctx, m.CompanyCurrencyID)
	if err != nil {
		return err
	}
	if err := AssertBalanced(ctx, s.moves, m.ID, companyCurrency.Places()); err != nil {
		return err
	}

	if err := s.assignNumber(ctx, m); err != nil {
		return err
	}

	now := time.Now().UTC()
	m.State = ledger.StatePosted
	m.PostedAt = &now
	m.UpdatedAt = now
	audit.EnrichUpdatedByDirect(ctx, &m.UpdatedBy)
	if err := s.moves.Update(ctx, m); err != nil {
		return fmt.Errorf("update move: %w", err)
	}

	if err := s.publish(ctx, m, EventPosted, map[string]any{"number": m.Number, "type": m.Type}); err != nil {
		return err
	}
	if err := s.record(ctx, m, "post"); err != nil {
		return err
	}

	logger.Info(ctx, "move posted",
		"id", m.ID,
		"number", m.Number)
	return nil
}

// assignNumber gives the move its number the first time it is posted. A
// move reset to draft and posted again keeps the number it had.
func (s *Service) assignNumber(ctx context.Context, m *ledger.Move) error {
	if !m.HasNumber() {
		j, err := s.provider.Journal(ctx, m.JournalID)
		if err != nil {
			return err
		}
		cfg := numerator.DefaultConfig(j.Prefix(m.Type.IsRefund()))
		number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: s.strategy}, m.Date)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		m.Number = number
	}

	exists, err := s.moves.NumberExists(ctx, m)
	if err != nil {
		return fmt.Errorf("check number: %w", err)
	}
	if exists {
		return apperror.NewDuplicateDocumentNumber(m.Number)
	}
	return nil
}

func countAmountLines(lines []*ledger.Line) int {
	n := 0
	for _, line := range lines {
		if !line.DisplayType.IsCosmetic() {
			n++
		}
	}
	return n
}

// Cancel moves a posted entry to cancelled. Entries with reconciled lines
// must be unreconciled first.
func (s *Service) Cancel(ctx context.Context, moveID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		m, err := s.moves.GetForUpdate(ctx, moveID)
		if err != nil {
			return err
		}
		if !m.IsPosted() {
			return apperror.NewInvalidState("move", string(m.State), "cancel")
		}

		partials, err := s.reconciles.PartialsByLines(ctx, ledger.LineIDs(m.Lines))
		if err != nil {
			return fmt.Errorf("load partials: %w", err)
		}
		if len(partials) > 0 {
			return apperror.NewReconciliation("You cannot cancel an entry with reconciled lines; unreconcile first").
				WithDetail("move_id", moveID.String())
		}

		if err := s.transition(ctx, m, ledger.StateCancelled, EventCancelled); err != nil {
			return err
		}
		logger.Info(ctx, "move cancelled", "id", m.ID, "number", m.Number)
		return nil
	})
}

// ResetToDraft reopens a cancelled entry. Its number is kept for the next post.
func (s *Service) ResetToDraft(ctx context.Context, moveID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		m, err := s.moves.GetForUpdate(ctx, moveID)
		if err != nil {
			return err
		}
		if m.State != ledger.StateCancelled {
			return apperror.NewInvalidState("move", string(m.State), "reset to draft")
		}

		if err := s.transition(ctx, m, ledger.StateDraft, EventReset); err != nil {
			return err
		}
		logger.Info(ctx, "move reset to draft", "id", m.ID, "number", m.Number)
		return nil
	})
}

func (s *Service) transition(ctx context.Context, m *ledger.Move, state ledger.State, eventType string) error {
	c, err := s.provider.Company(ctx, m.CompanyID)
	if err != nil {
		return err
	}
	if err := CheckLockDate(c, m.Date, appctx.IsAdviser(ctx)); err != nil {
		return err
	}

	m.State = state
	if state == ledger.StateDraft {
		m.PostedAt = nil
	}
	m.UpdatedAt = time.Now().UTC()
	audit.EnrichUpdatedByDirect(ctx, &m.UpdatedBy)
	if err := s.moves.Update(ctx, m); err != nil {
		return fmt.Errorf("update move: %w", err)
	}
	if err := s.publish(ctx, m, eventType, map[string]any{"number": m.Number}); err != nil {
		return err
	}
	return s.record(ctx, m, string(state))
}

// CreatePosted stores m with its lines exactly as given and posts it. The
// balancer is not run: this is the path for entries the engine builds itself.
func (s *Service) CreatePosted(ctx context.Context, m *ledger.Move) error {
	if err := CheckDraft(m, "create"); err != nil {
		return err
	}
	if id.IsNil(m.CompanyCurrencyID) {
		c, err := s.provider.Company(ctx, m.CompanyID)
		if err != nil {
			return err
		}
		m.CompanyCurrencyID = c.CurrencyID
	}
	audit.EnrichCreatedByDirect(ctx, &m.CreatedBy, &m.UpdatedBy)

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.check(ctx, m); err != nil {
			return err
		}
		if err := s.moves.Create(ctx, m); err != nil {
			return fmt.Errorf("create move: %w", err)
		}
		if err := s.record(ctx, m, "create"); err != nil {
			return err
		}
		if err := s.post(ctx, m.ID); err != nil {
			return err
		}

		stored, err := s.moves.GetByID(ctx, m.ID)
		if err != nil {
			return err
		}
		*m = *stored
		return nil
	})
}

// Reverse creates and posts the counter-entry of a posted move on date.
// Invoices are reversed by their refund type.
func (s *Service) Reverse(ctx context.Context, moveID id.ID, date time.Time) (*ledger.Move, error) {
	var reversal *ledger.Move
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		orig, err := s.moves.GetByID(ctx, moveID)
		if err != nil {
			return err
		}
		if !orig.IsPosted() {
			return apperror.NewInvalidState("move", string(orig.State), "reverse")
		}

		reversal = reverseOf(orig, date)
		if err := s.CreatePosted(ctx, reversal); err != nil {
			return err
		}
		if err := s.publish(ctx, orig, EventReversed, map[string]any{"reversal_id": reversal.ID.String()}); err != nil {
			return err
		}
		return s.record(ctx, orig, "reverse")
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "move reversed",
		"id", moveID,
		"reversal_id", reversal.ID,
		"reversal_number", reversal.Number)
	return reversal, nil
}

func reverseOf(orig *ledger.Move, date time.Time) *ledger.Move {
	rev := ledger.NewMove(orig.CompanyID, orig.JournalID, orig.CurrencyID, orig.CompanyCurrencyID, orig.Type.RefundType(), date)
	rev.Ref = "Reversal of: " + orig.Number
	rev.ReversedEntryID = &orig.ID
	rev.PartnerID = orig.PartnerID
	rev.PaymentAccountID = orig.PaymentAccountID
	rev.InvoiceDateDue = orig.InvoiceDateDue

	lines := make([]*ledger.Line, 0, len(orig.Lines))
	for _, line := range orig.Lines {
		c := line.Clone()
		c.ID = id.New()
		c.Debit, c.Credit = line.Credit, line.Debit
		c.AmountCurrency = line.AmountCurrency.Neg()
		c.Reconciled = false
		c.FullReconcileID = nil
		lines = append(lines, c)
	}
	rev.SetLines(lines)
	return rev
}

// prepare balances lines into m and runs the checks every stored move passes.
func (s *Service) prepare(ctx context.Context, m *ledger.Move, lines []*ledger.Line, recomputeTaxes bool) error {
	if id.IsNil(m.CompanyCurrencyID) {
		c, err := s.provider.Company(ctx, m.CompanyID)
		if err != nil {
			return err
		}
		m.CompanyCurrencyID = c.CurrencyID
	}
	for _, line := range lines {
		line.MoveID = m.ID
	}
	m.Lines = lines
	if err := m.Validate(ctx); err != nil {
		return err
	}

	bctx, err := s.balanceContext(ctx, m)
	if err != nil {
		return err
	}
	balanced, err := balance.Balance(bctx, lines, balance.Options{RecomputeTaxes: recomputeTaxes})
	if err != nil {
		return err
	}
	m.SetLines(balanced)
	return s.check(ctx, m)
}

// check validates a move whose lines are final and refreshes their residuals.
func (s *Service) check(ctx context.Context, m *ledger.Move) error {
	if err := m.Validate(ctx); err != nil {
		return err
	}
	accounts, err := s.provider.Accounts(ctx, ledger.AccountIDs(m.Lines))
	if err != nil {
		return err
	}
	if err := CheckCompany(m, accounts); err != nil {
		return err
	}
	return s.refreshResiduals(ctx, m, accounts)
}

func (s *Service) refreshResiduals(ctx context.Context, m *ledger.Move, accounts map[id.ID]*account.Account) error {
	rates, err := s.provider.Rates(ctx, m.Date, lineCurrencies(m)...)
	if err != nil {
		return err
	}
	companyPlaces, err := rates.Places(m.CompanyCurrencyID)
	if err != nil {
		return err
	}
	ledger.RefreshResiduals(m.Lines, nil, accounts, companyPlaces, placesOf(rates, companyPlaces))
	return nil
}

func (s *Service) balanceContext(ctx context.Context, m *ledger.Move) (balance.Context, error) {
	c, err := s.provider.Company(ctx, m.CompanyID)
	if err != nil {
		return balance.Context{}, err
	}
	rates, err := s.provider.Rates(ctx, m.Date, lineCurrencies(m)...)
	if err != nil {
		return balance.Context{}, err
	}
	places, err := rates.Places(m.CurrencyID)
	if err != nil {
		return balance.Context{}, err
	}
	companyPlaces, err := rates.Places(m.CompanyCurrencyID)
	if err != nil {
		return balance.Context{}, err
	}

	bctx := balance.Context{
		Move:          m,
		Places:        places,
		CompanyPlaces: companyPlaces,
		Converter:     money.NewConverter(rates),
		RoundGlobally: c.RoundGlobally(),
	}

	if taxIDs := lineTaxes(m.Lines); len(taxIDs) > 0 {
		if bctx.Taxes, err = s.provider.Taxes(ctx, taxIDs); err != nil {
			return balance.Context{}, err
		}
	}
	if m.PaymentTermID != nil {
		if bctx.PaymentTerm, err = s.provider.PaymentTerm(ctx, *m.PaymentTermID); err != nil {
			return balance.Context{}, err
		}
	}
	if m.CashRoundingID != nil {
		if bctx.CashRounding, err = s.provider.CashRounding(ctx, *m.CashRoundingID); err != nil {
			return balance.Context{}, err
		}
	}
	return bctx, nil
}

func lineCurrencies(m *ledger.Move) []id.ID {
	out := []id.ID{m.CurrencyID}
	if m.CompanyCurrencyID != m.CurrencyID {
		out = append(out, m.CompanyCurrencyID)
	}
	seen := map[id.ID]bool{m.CurrencyID: true, m.CompanyCurrencyID: true}
	for _, line := range m.Lines {
		if line.CurrencyID != nil && !seen[*line.CurrencyID] {
			seen[*line.CurrencyID] = true
			out = append(out, *line.CurrencyID)
		}
	}
	return out
}

func lineTaxes(lines []*ledger.Line) []id.ID {
	out := make([]id.ID, 0)
	seen := make(map[id.ID]bool)
	add := func(taxID id.ID) {
		if !seen[taxID] {
			seen[taxID] = true
			out = append(out, taxID)
		}
	}
	for _, line := range lines {
		for _, taxID := range line.TaxIDs {
			add(taxID)
		}
		if line.TaxLineID != nil {
			add(*line.TaxLineID)
		}
	}
	return out
}

func placesOf(rates *money.RateTable, fallback int32) ledger.PlacesFunc {
	return func(currencyID id.ID) int32 {
		places, err := rates.Places(currencyID)
		if err != nil {
			return fallback
		}
		return places
	}
}

func (s *Service) publish(ctx context.Context, m *ledger.Move, eventType string, payload map[string]any) error {
	if s.events == nil {
		return nil
	}
	payload["move_id"] = m.ID.String()
	err := s.events.Publish(ctx, domain.Event{
		AggregateType: "move",
		AggregateID:   m.ID,
		EventType:     eventType,
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, m *ledger.Move, action string) error {
	if s.audit == nil {
		return nil
	}
	if err := s.audit.Record(ctx, "move", m.ID, action, m); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}
