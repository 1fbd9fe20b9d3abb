// Package reconcile matches debit and credit lines of reconcilable accounts:
// partial reconciles, full reconcile groups, currency exchange difference
// entries, write-offs and unreconciliation.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"ledger/internal/core/apperror"
	appctx "ledger/internal/core/context"
	"ledger/internal/core/id"
	"ledger/internal/core/numerator"
	"ledger/internal/core/tx"
	"ledger/internal/domain"
	"ledger/internal/domain/catalogs/account"
	"ledger/internal/domain/catalogs/company"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/money"
	"ledger/internal/domain/ledger/move"
	"ledger/pkg/logger"
)

var tracer = otel.Tracer("ledger/reconcile")

// Event types published by the service.
const (
	EventReconciled   = "lines.reconciled"
	EventUnreconciled = "lines.unreconciled"
)

const exchangeLabel = "Currency exchange rate difference"

// fullReconcileConfig numbers full reconcile groups. Gaps are harmless here.
var fullReconcileConfig = numerator.Config{Prefix: "FR", PadWidth: 6, ResetPeriod: "never"}

// CashBasis recognizes taxes due on payment as their invoice gets paid.
type CashBasis interface {
	Sync(ctx context.Context, moveID id.ID) (*ledger.Move, error)
}

// Config wires the service collaborators. CashBasis and Events are optional.
type Config struct {
	Moves       ledger.MoveRepository
	Reconciles  ledger.ReconcileRepository
	Provider    ledger.Provider
	TxManager   tx.Manager
	MoveService *move.Service
	Numerator   numerator.Generator
	CashBasis   CashBasis
	Events      domain.EventPublisher
}

// Service reconciles lines.
type Service struct {
	moves      ledger.MoveRepository
	reconciles ledger.ReconcileRepository
	provider   ledger.Provider
	txManager  tx.Manager
	moveSvc    *move.Service
	numerator  numerator.Generator
	cashBasis  CashBasis
	events     domain.EventPublisher
}

// NewService creates a reconciliation service.
func NewService(cfg Config) *Service {
	return &Service{
		moves:      cfg.Moves,
		reconciles: cfg.Reconciles,
		provider:   cfg.Provider,
		txManager:  cfg.TxManager,
		moveSvc:    cfg.MoveService,
		numerator:  cfg.Numerator,
		cashBasis:  cfg.CashBasis,
		events:     cfg.Events,
	}
}

// Writeoff books the remaining open amount on AccountID so the lines
// reconcile completely.
type Writeoff struct {
	AccountID id.ID
	JournalID id.ID

	// Date defaults to the latest date of the reconciled lines
	Date  *time.Time
	Label string
}

// Options tunes a reconciliation.
type Options struct {
	Writeoff *Writeoff
}

// Result describes what a reconciliation created.
type Result struct {
	Partials       []*ledger.PartialReconcile
	FullReconcile  *ledger.FullReconcile
	ExchangeMove   *ledger.Move
	WriteoffMove   *ledger.Move
	CashBasisMoves []*ledger.Move
}

// Reconcile matches the given lines against each other. The lines are
// locked for the duration of the transaction.
func (s *Service) Reconcile(ctx context.Context, lineIDs []id.ID, opts Options) (*Result, error) {
	ctx, span := tracer.Start(ctx, "reconcile.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.Int("lines", len(lineIDs)))

	var res *Result
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.reconcile(ctx, lineIDs, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "lines reconciled",
		"lines", len(lineIDs),
		"partials", len(res.Partials),
		"full", res.FullReconcile != nil,
		"exchange", res.ExchangeMove != nil)
	return res, nil
}

func (s *Service) reconcile(ctx context.Context, lineIDs []id.ID, opts Options) (*Result, error) {
	lines, err := s.moves.LockLines(ctx, lineIDs)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, apperror.NewValidation("nothing to reconcile")
	}
	acc, c, err := s.check(ctx, lines)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if opts.Writeoff != nil {
		wo, line, err := s.writeoff(ctx, c, acc, lines, *opts.Writeoff)
		if err != nil {
			return nil, err
		}
		if wo != nil {
			res.WriteoffMove = wo
			lines = append(lines, line)
		}
	}

	companyPlaces, err := s.companyPlaces(ctx, c)
	if err != nil {
		return nil, err
	}
	currencyPlaces := companyPlaces
	if shared := SharedCurrency(lines); shared != nil {
		cur, err := s.provider.Currency(ctx, *shared)
		if err != nil {
			return nil, err
		}
		currencyPlaces = cur.Places()
	}

	res.Partials = Match(lines, companyPlaces, currencyPlaces)
	if len(res.Partials) > 0 {
		if err := s.reconciles.CreatePartials(ctx, res.Partials); err != nil {
			return nil, fmt.Errorf("create partials: %w", err)
		}
	}
	if _, err := s.refresh(ctx, c, ledger.LineIDs(lines)); err != nil {
		return nil, err
	}

	res.FullReconcile, res.ExchangeMove, err = s.finalize(ctx, c, ledger.LineIDs(lines))
	if err != nil {
		return nil, err
	}

	res.CashBasisMoves, err = s.syncCashBasis(ctx, moveIDs(lines))
	if err != nil {
		return nil, err
	}

	if err := s.publish(ctx, EventReconciled, lines, len(res.Partials)); err != nil {
		return nil, err
	}
	return res, nil
}

// check enforces one company, one reconcilable account, open lines and
// posted moves.
func (s *Service) check(ctx context.Context, lines []*ledger.Line) (*account.Account, *company.Company, error) {
	first := lines[0]
	for _, line := range lines {
		if line.DisplayType.IsCosmetic() {
			return nil, nil, apperror.NewValidation("section and note lines cannot be reconciled")
		}
		if line.CompanyID != first.CompanyID {
			return nil, nil, apperror.NewReconciliation("To reconcile the entries company should be the same for all entries")
		}
		if line.AccountID != first.AccountID {
			return nil, nil, apperror.NewReconciliation("Entries are not of the same account")
		}
		if line.Reconciled {
			return nil, nil, apperror.NewAlreadyReconciled(line.ID.String())
		}
	}

	accounts, err := s.provider.Accounts(ctx, []id.ID{first.AccountID})
	if err != nil {
		return nil, nil, err
	}
	acc := accounts[first.AccountID]
	if !acc.IsReconcilable() {
		return nil, nil, apperror.NewReconciliation(
			fmt.Sprintf("Account %s (%s) does not allow reconciliation", acc.Code, acc.Name))
	}

	for _, moveID := range moveIDs(lines) {
		m, err := s.moves.GetByID(ctx, moveID)
		if err != nil {
			return nil, nil, err
		}
		if !m.IsPosted() {
			return nil, nil, apperror.NewReconciliation("Only posted entries can be reconciled").
				WithDetail("move_id", moveID.String())
		}
	}

	c, err := s.provider.Company(ctx, first.CompanyID)
	if err != nil {
		return nil, nil, err
	}
	return acc, c, nil
}

// writeoff books the open balance of lines on the write-off account and
// returns the move with its counterpart on the reconciled account.
func (s *Service) writeoff(ctx context.Context, c *company.Company, acc *account.Account,
	lines []*ledger.Line, wo Writeoff) (*ledger.Move, *ledger.Line, error) {
	total, totalCurrency := decimal.Zero, decimal.Zero
	for _, line := range lines {
		total = total.Add(line.AmountResidual)
		totalCurrency = totalCurrency.Add(line.AmountResidualCurrency)
	}
	shared := SharedCurrency(lines)
	if total.IsZero() && (shared == nil || totalCurrency.IsZero()) {
		return nil, nil, nil
	}

	date := latestDate(lines)
	if wo.Date != nil {
		date = *wo.Date
	}
	label := wo.Label
	if label == "" {
		label = "Write-Off"
	}

	currencyID := c.CurrencyID
	if shared != nil {
		currencyID = *shared
	}
	m := ledger.NewMove(c.ID, wo.JournalID, currencyID, c.CurrencyID, ledger.TypeEntry, date)
	m.Ref = label

	counterpart := ledger.NewLine(acc.ID, label, total.Neg())
	counterpart.PartnerID = lines[0].PartnerID
	writeoff := ledger.NewLine(wo.AccountID, label, total)
	if shared != nil {
		counterpart.CurrencyID, counterpart.AmountCurrency = shared, totalCurrency.Neg()
		writeoff.CurrencyID, writeoff.AmountCurrency = shared, totalCurrency
	}
	m.SetLines([]*ledger.Line{counterpart, writeoff})

	if err := s.moveSvc.CreatePosted(ctx, m); err != nil {
		return nil, nil, fmt.Errorf("write-off: %w", err)
	}
	return m, m.Lines[0], nil
}

// refresh recomputes and stores the residuals of the lines from every
// partial touching them.
func (s *Service) refresh(ctx context.Context, c *company.Company, lineIDs []id.ID) ([]*ledger.Line, error) {
	lines, err := s.moves.GetLines(ctx, lineIDs)
	if err != nil {
		return nil, err
	}
	partials, err := s.reconciles.PartialsByLines(ctx, lineIDs)
	if err != nil {
		return nil, fmt.Errorf("load partials: %w", err)
	}
	accounts, err := s.provider.Accounts(ctx, ledger.AccountIDs(lines))
	if err != nil {
		return nil, err
	}
	companyPlaces, err := s.companyPlaces(ctx, c)
	if err != nil {
		return nil, err
	}
	places, err := s.currencyPlaces(ctx, lines, companyPlaces)
	if err != nil {
		return nil, err
	}

	ledger.RefreshResiduals(lines, partials, accounts, companyPlaces, places)
	if err := s.moves.UpdateReconciliation(ctx, lines); err != nil {
		return nil, fmt.Errorf("update residuals: %w", err)
	}
	return lines, nil
}

// finalize closes the reconciliation chain reachable from seeds when it
// nets to zero. Residuals left by exchange rate drift are booked on an
// exchange difference entry first.
func (s *Service) finalize(ctx context.Context, c *company.Company, seeds []id.ID) (*ledger.FullReconcile, *ledger.Move, error) {
	lineIDs, partials, err := s.chain(ctx, seeds)
	if err != nil {
		return nil, nil, err
	}
	if len(partials) == 0 {
		return nil, nil, nil
	}
	lines, err := s.moves.GetLines(ctx, lineIDs)
	if err != nil {
		return nil, nil, err
	}

	companyPlaces, err := s.companyPlaces(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	if !s.nets(ctx, lines, companyPlaces) {
		return nil, nil, nil
	}

	open := make([]*ledger.Line, 0)
	for _, line := range lines {
		if !line.AmountResidual.IsZero() || !line.AmountResidualCurrency.IsZero() {
			open = append(open, line)
		}
	}

	var exchange *ledger.Move
	if len(open) > 0 {
		var fixes []*ledger.PartialReconcile
		exchange, fixes, err = s.exchangeMove(ctx, c, open)
		if err != nil {
			return nil, nil, err
		}
		if err := s.reconciles.CreatePartials(ctx, fixes); err != nil {
			return nil, nil, fmt.Errorf("create exchange partials: %w", err)
		}
		partials = append(partials, fixes...)
		for _, p := range fixes {
			lineIDs = append(lineIDs, p.Other(openLineOf(p, open)))
		}
	}

	lines, err = s.refresh(ctx, c, lineIDs)
	if err != nil {
		return nil, nil, err
	}

	name, err := s.numerator.GetNextNumber(ctx, fullReconcileConfig,
		&numerator.Options{Strategy: numerator.StrategyCached}, time.Now())
	if err != nil {
		return nil, nil, fmt.Errorf("full reconcile number: %w", err)
	}
	partialIDs := make([]id.ID, 0, len(partials))
	for _, p := range partials {
		partialIDs = append(partialIDs, p.ID)
	}
	full := ledger.NewFullReconcile(name, partialIDs, lineIDs)
	if exchange != nil {
		full.ExchangeMoveID = &exchange.ID
	}
	if err := s.reconciles.CreateFullReconcile(ctx, full); err != nil {
		return nil, nil, fmt.Errorf("create full reconcile: %w", err)
	}

	for _, line := range lines {
		line.FullReconcileID = &full.ID
	}
	if err := s.moves.UpdateReconciliation(ctx, lines); err != nil {
		return nil, nil, fmt.Errorf("link full reconcile: %w", err)
	}
	return full, exchange, nil
}

// nets reports whether the chain balances in company currency, or in its
// foreign currency when every line shares one.
func (s *Service) nets(ctx context.Context, lines []*ledger.Line, companyPlaces int32) bool {
	total, totalCurrency := decimal.Zero, decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Balance())
		totalCurrency = totalCurrency.Add(line.AmountCurrency)
	}
	if money.IsZero(total, companyPlaces) {
		return true
	}
	shared := SharedCurrency(lines)
	if shared == nil {
		return false
	}
	cur, err := s.provider.Currency(ctx, *shared)
	if err != nil {
		return false
	}
	return money.IsZero(totalCurrency, cur.Places())
}

func openLineOf(p *ledger.PartialReconcile, open []*ledger.Line) id.ID {
	for _, line := range open {
		if p.Touches(line.ID) {
			return line.ID
		}
	}
	return p.DebitLineID
}

// chain walks the partials graph from seeds and returns every line and
// partial reachable from them.
func (s *Service) chain(ctx context.Context, seeds []id.ID) ([]id.ID, []*ledger.PartialReconcile, error) {
	seenLines := make(map[id.ID]bool, len(seeds))
	seenPartials := make(map[id.ID]bool)
	lineIDs := make([]id.ID, 0, len(seeds))
	partials := make([]*ledger.PartialReconcile, 0)

	frontier := make([]id.ID, 0, len(seeds))
	for _, lineID := range seeds {
		if !seenLines[lineID] {
			seenLines[lineID] = true
			lineIDs = append(lineIDs, lineID)
			frontier = append(frontier, lineID)
		}
	}

	for len(frontier) > 0 {
		found, err := s.reconciles.PartialsByLines(ctx, frontier)
		if err != nil {
			return nil, nil, fmt.Errorf("load partials: %w", err)
		}
		frontier = frontier[:0]
		for _, p := range found {
			if seenPartials[p.ID] {
				continue
			}
			seenPartials[p.ID] = true
			partials = append(partials, p)
			for _, lineID := range []id.ID{p.DebitLineID, p.CreditLineID} {
				if !seenLines[lineID] {
					seenLines[lineID] = true
					lineIDs = append(lineIDs, lineID)
					frontier = append(frontier, lineID)
				}
			}
		}
	}
	return lineIDs, partials, nil
}

// exchangeMove posts one fix line per open line, on the line's account,
// with its counterpart on the exchange gain or loss account, and returns
// the partials reconciling each open line with its fix line.
func (s *Service) exchangeMove(ctx context.Context, c *company.Company, open []*ledger.Line) (*ledger.Move, []*ledger.PartialReconcile, error) {
	if c.ExchangeJournalID == nil {
		return nil, nil, apperror.NewMissingConfiguration("exchange_journal_id",
			"You should configure the 'Exchange Gain or Loss Journal' in the accounting settings, to manage automatically the booking of accounting entries related to differences between exchange rates.")
	}
	if c.ExchangeGainAccountID == nil || c.ExchangeLossAccountID == nil {
		return nil, nil, apperror.NewMissingConfiguration("exchange_gain_loss_accounts",
			"You should configure the 'Gain Exchange Rate Account' and the 'Loss Exchange Rate Account' in the accounting settings, to manage automatically the booking of accounting entries related to differences between exchange rates.")
	}

	m := ledger.NewMove(c.ID, *c.ExchangeJournalID, c.CurrencyID, c.CurrencyID, ledger.TypeEntry,
		openDate(c, latestDate(open), appctx.IsAdviser(ctx)))
	m.Ref = exchangeLabel

	lines := make([]*ledger.Line, 0, 2*len(open))
	for _, line := range open {
		fix := ledger.NewLine(line.AccountID, exchangeLabel, line.AmountResidual.Neg())
		fix.PartnerID = line.PartnerID
		counterAccount := *c.ExchangeGainAccountID
		if residualSign(line) > 0 {
			counterAccount = *c.ExchangeLossAccountID
		}
		counter := ledger.NewLine(counterAccount, exchangeLabel, line.AmountResidual)
		if line.CurrencyID != nil {
			fix.CurrencyID, fix.AmountCurrency = line.CurrencyID, line.AmountResidualCurrency.Neg()
			counter.CurrencyID, counter.AmountCurrency = line.CurrencyID, line.AmountResidualCurrency
		}
		lines = append(lines, fix, counter)
	}
	m.SetLines(lines)

	if err := s.moveSvc.CreatePosted(ctx, m); err != nil {
		return nil, nil, fmt.Errorf("exchange difference entry: %w", err)
	}

	partials := make([]*ledger.PartialReconcile, 0, len(open))
	for i, line := range open {
		fix := m.Lines[2*i]
		var p *ledger.PartialReconcile
		if residualSign(line) > 0 {
			p = ledger.NewPartialReconcile(line.ID, fix.ID, line.AmountResidual.Abs())
		} else {
			p = ledger.NewPartialReconcile(fix.ID, line.ID, line.AmountResidual.Abs())
		}
		if line.CurrencyID != nil {
			currencyID := *line.CurrencyID
			p.CurrencyID = &currencyID
			p.AmountCurrency = line.AmountResidualCurrency.Abs()
		}
		partials = append(partials, p)
	}

	logger.Info(ctx, "exchange difference booked",
		"move_id", m.ID,
		"number", m.Number,
		"lines", len(open))
	return m, partials, nil
}

// residualSign is +1 for lines still open on the debit side.
func residualSign(line *ledger.Line) int {
	if sign := line.AmountResidual.Sign(); sign != 0 {
		return sign
	}
	return line.AmountResidualCurrency.Sign()
}

// openDate moves date past the lock date binding the caller.
func openDate(c *company.Company, date time.Time, adviser bool) time.Time {
	if lock := c.LockDate(adviser); lock != nil && !date.After(*lock) {
		return lock.AddDate(0, 0, 1)
	}
	return date
}

// RemoveMoveReconcile deletes every partial touching the lines, the full
// reconciles they belonged to, and reverses the exchange difference entries
// those carried. Residuals are restored.
func (s *Service) RemoveMoveReconcile(ctx context.Context, lineIDs []id.ID) error {
	ctx, span := tracer.Start(ctx, "reconcile.RemoveMoveReconcile")
	defer span.End()

	removed := 0
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		removed, err = s.unreconcile(ctx, lineIDs)
		return err
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "lines unreconciled",
		"lines", len(lineIDs),
		"partials", removed)
	return nil
}

func (s *Service) unreconcile(ctx context.Context, lineIDs []id.ID) (int, error) {
	lines, err := s.moves.LockLines(ctx, lineIDs)
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}
	partials, err := s.reconciles.PartialsByLines(ctx, lineIDs)
	if err != nil {
		return 0, fmt.Errorf("load partials: %w", err)
	}
	if len(partials) == 0 {
		return 0, nil
	}

	doomed := make(map[id.ID]bool)
	affected := newIDSet(lineIDs...)
	for _, p := range partials {
		doomed[p.ID] = true
		affected.add(p.DebitLineID, p.CreditLineID)
	}

	exchangeMoves := make([]*ledger.Move, 0)
	for _, fullID := range fullReconcileIDs(partials) {
		full, err := s.reconciles.GetFullReconcile(ctx, fullID)
		if err != nil {
			return 0, err
		}
		affected.add(full.LineIDs...)

		if full.ExchangeMoveID != nil {
			exchange, err := s.moves.GetByID(ctx, *full.ExchangeMoveID)
			if err != nil {
				return 0, err
			}
			exchangeMoves = append(exchangeMoves, exchange)
			exchangeLines := ledger.LineIDs(exchange.Lines)
			linked, err := s.reconciles.PartialsByLines(ctx, exchangeLines)
			if err != nil {
				return 0, fmt.Errorf("load partials: %w", err)
			}
			for _, p := range linked {
				doomed[p.ID] = true
				affected.add(p.DebitLineID, p.CreditLineID)
			}
		}

		if err := s.reconciles.DeleteFullReconcile(ctx, fullID); err != nil {
			return 0, fmt.Errorf("delete full reconcile: %w", err)
		}
	}

	partialIDs := make([]id.ID, 0, len(doomed))
	for partialID := range doomed {
		partialIDs = append(partialIDs, partialID)
	}
	if err := s.reconciles.DeletePartials(ctx, partialIDs); err != nil {
		return 0, fmt.Errorf("delete partials: %w", err)
	}

	c, err := s.provider.Company(ctx, lines[0].CompanyID)
	if err != nil {
		return 0, err
	}
	restored, err := s.refresh(ctx, c, affected.ids)
	if err != nil {
		return 0, err
	}

	for _, exchange := range exchangeMoves {
		if err := s.revertExchange(ctx, c, exchange); err != nil {
			return 0, err
		}
	}

	if _, err := s.syncCashBasis(ctx, moveIDs(restored)); err != nil {
		return 0, err
	}
	if err := s.publish(ctx, EventUnreconciled, restored, len(partialIDs)); err != nil {
		return 0, err
	}
	return len(partialIDs), nil
}

// revertExchange reverses an exchange difference entry and reconciles each
// of its lines on a reconcilable account with the reversing line.
func (s *Service) revertExchange(ctx context.Context, c *company.Company, exchange *ledger.Move) error {
	reversal, err := s.moveSvc.Reverse(ctx, exchange.ID, openDate(c, exchange.Date, appctx.IsAdviser(ctx)))
	if err != nil {
		return fmt.Errorf("reverse exchange difference: %w", err)
	}
	return s.reconcileCounterparts(ctx, exchange.ID, reversal)
}

func (s *Service) reconcileCounterparts(ctx context.Context, origID id.ID, reversal *ledger.Move) error {
	orig, err := s.moves.GetByID(ctx, origID)
	if err != nil {
		return err
	}
	accounts, err := s.provider.Accounts(ctx, ledger.AccountIDs(orig.Lines))
	if err != nil {
		return err
	}
	for i, line := range orig.Lines {
		if line.DisplayType.IsCosmetic() || line.Reconciled || i >= len(reversal.Lines) {
			continue
		}
		if acc := accounts[line.AccountID]; acc == nil || !acc.IsReconcilable() {
			continue
		}
		if _, err := s.reconcile(ctx, []id.ID{line.ID, reversal.Lines[i].ID}, Options{}); err != nil {
			return err
		}
	}
	return nil
}

// ReverseMoves reverses posted moves on date and reconciles every open line
// on a reconcilable account with its reversing line.
func (s *Service) ReverseMoves(ctx context.Context, moveIDs []id.ID, date time.Time) ([]*ledger.Move, error) {
	reversals := make([]*ledger.Move, 0, len(moveIDs))
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, moveID := range moveIDs {
			reversal, err := s.moveSvc.Reverse(ctx, moveID, date)
			if err != nil {
				return err
			}
			if err := s.reconcileCounterparts(ctx, moveID, reversal); err != nil {
				return err
			}
			reversals = append(reversals, reversal)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reversals, nil
}

// AutoReconcileAccount reconciles the open posted lines of an account,
// partner by partner, oldest first. It returns the number of partials created.
func (s *Service) AutoReconcileAccount(ctx context.Context, accountID id.ID) (int, error) {
	ctx, span := tracer.Start(ctx, "reconcile.AutoReconcileAccount")
	defer span.End()

	created := 0
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		lines, err := s.moves.FindLines(ctx, ledger.LineFilter{
			AccountID:  accountID,
			OnlyOpen:   true,
			OnlyPosted: true,
		})
		if err != nil {
			return err
		}

		for _, group := range byPartner(lines) {
			if !hasBothSides(group) {
				continue
			}
			res, err := s.reconcile(ctx, ledger.LineIDs(group), Options{})
			if err != nil {
				return err
			}
			created += len(res.Partials)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info(ctx, "account auto-reconciled",
		"account_id", accountID,
		"partials", created)
	return created, nil
}

func byPartner(lines []*ledger.Line) [][]*ledger.Line {
	index := make(map[id.ID]int)
	groups := make([][]*ledger.Line, 0)
	for _, line := range lines {
		key := id.Nil()
		if line.PartnerID != nil {
			key = *line.PartnerID
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], line)
	}
	return groups
}

func hasBothSides(lines []*ledger.Line) bool {
	debit, credit := false, false
	for _, line := range lines {
		switch residualSign(line) {
		case 1:
			debit = true
		case -1:
			credit = true
		}
	}
	return debit && credit
}

func (s *Service) syncCashBasis(ctx context.Context, moveIDs []id.ID) ([]*ledger.Move, error) {
	if s.cashBasis == nil {
		return nil, nil
	}
	posted := make([]*ledger.Move, 0)
	for _, moveID := range moveIDs {
		m, err := s.cashBasis.Sync(ctx, moveID)
		if err != nil {
			return nil, fmt.Errorf("cash basis: %w", err)
		}
		if m != nil {
			posted = append(posted, m)
		}
	}
	return posted, nil
}

func (s *Service) companyPlaces(ctx context.Context, c *company.Company) (int32, error) {
	cur, err := s.provider.Currency(ctx, c.CurrencyID)
	if err != nil {
		return 0, err
	}
	return cur.Places(), nil
}

func (s *Service) currencyPlaces(ctx context.Context, lines []*ledger.Line, fallback int32) (ledger.PlacesFunc, error) {
	places := make(map[id.ID]int32)
	for _, line := range lines {
		if line.CurrencyID == nil {
			continue
		}
		if _, ok := places[*line.CurrencyID]; ok {
			continue
		}
		cur, err := s.provider.Currency(ctx, *line.CurrencyID)
		if err != nil {
			return nil, err
		}
		places[*line.CurrencyID] = cur.Places()
	}
	return func(currencyID id.ID) int32 {
		if p, ok := places[currencyID]; ok {
			return p
		}
		return fallback
	}, nil
}

func (s *Service) publish(ctx context.Context, eventType string, lines []*ledger.Line, partials int) error {
	if s.events == nil || len(lines) == 0 {
		return nil
	}
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ID.String())
	}
	err := s.events.Publish(ctx, domain.Event{
		AggregateType: "move_line",
		AggregateID:   lines[0].ID,
		EventType:     eventType,
		Payload:       map[string]any{"line_ids": ids, "partials": partials},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func latestDate(lines []*ledger.Line) time.Time {
	var latest time.Time
	for _, line := range lines {
		if line.Date.After(latest) {
			latest = line.Date
		}
	}
	return latest
}

func moveIDs(lines []*ledger.Line) []id.ID {
	set := newIDSet()
	for _, line := range lines {
		set.add(line.MoveID)
	}
	return set.ids
}

func fullReconcileIDs(partials []*ledger.PartialReconcile) []id.ID {
	set := newIDSet()
	for _, p := range partials {
		if p.FullReconcileID != nil {
			set.add(*p.FullReconcileID)
		}
	}
	return set.ids
}

// idSet keeps insertion order.
type idSet struct {
	seen map[id.ID]bool
	ids  []id.ID
}

func newIDSet(ids ...id.ID) *idSet {
	s := &idSet{seen: make(map[id.ID]bool)}
	s.add(ids...)
	return s
}

func (s *idSet) add(ids ...id.ID) {
	for _, v := range ids {
		if !s.seen[v] {
			s.seen[v] = true
			s.ids = append(s.ids, v)
		}
	}
}
