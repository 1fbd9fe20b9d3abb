// Package cashbasis recognizes taxes due on payment in proportion to how
// much of their invoice has been paid.
package cashbasis

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
	"ledger/internal/core/tx"
	"ledger/internal/domain/catalogs/account"
	"ledger/internal/domain/catalogs/tax"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/money"
	"ledger/internal/domain/ledger/move"
	"ledger/pkg/logger"
)

var tracer = otel.Tracer("ledger/cashbasis")

// percentPlaces is the precision the recognized percentage is stored with.
const percentPlaces = 6

var one = decimal.NewFromInt(1)

// Config wires the poster collaborators.
type Config struct {
	Moves       ledger.MoveRepository
	Reconciles  ledger.ReconcileRepository
	Provider    ledger.Provider
	TxManager   tx.Manager
	MoveService *move.Service
}

// Poster books cash-basis tax entries.
type Poster struct {
	moves      ledger.MoveRepository
	reconciles ledger.ReconcileRepository
	provider   ledger.Provider
	txManager  tx.Manager
	moveSvc    *move.Service
}

// NewPoster creates a cash-basis poster.
func NewPoster(cfg Config) *Poster {
	return &Poster{
		moves:      cfg.Moves,
		reconciles: cfg.Reconciles,
		provider:   cfg.Provider,
		txManager:  cfg.TxManager,
		moveSvc:    cfg.MoveService,
	}
}

// MatchedPercentage is the paid fraction of a move: the amount reconciled on
// its receivable and payable lines over their total. Foreign amounts are used
// when those lines and every partial touching them share one currency.
// A move without such lines counts as fully paid.
func MatchedPercentage(lines []*ledger.Line, partials []*ledger.PartialReconcile) decimal.Decimal {
	if len(lines) == 0 {
		return one
	}

	inCurrency := true
	var currencyID *id.ID
	for _, line := range lines {
		if line.CurrencyID == nil || (currencyID != nil && *currencyID != *line.CurrencyID) {
			inCurrency = false
			break
		}
		currencyID = line.CurrencyID
	}

	touching := make([]*ledger.PartialReconcile, 0, len(partials))
	for _, p := range partials {
		for _, line := range lines {
			if p.Touches(line.ID) {
				touching = append(touching, p)
				break
			}
		}
	}
	if inCurrency {
		for _, p := range touching {
			if p.CurrencyID == nil || *p.CurrencyID != *currencyID {
				inCurrency = false
				break
			}
		}
	}

	total, matched := decimal.Zero, decimal.Zero
	for _, line := range lines {
		if inCurrency {
			total = total.Add(line.AmountCurrency.Abs())
		} else {
			total = total.Add(line.Balance().Abs())
		}
	}
	for _, p := range touching {
		if inCurrency {
			matched = matched.Add(p.AmountCurrency)
		} else {
			matched = matched.Add(p.Amount)
		}
	}

	if total.IsZero() {
		return one
	}
	pct := matched.Div(total)
	if pct.GreaterThan(one) {
		pct = one
	}
	return pct.Round(percentPlaces)
}

// Sync brings the tax recognized for a move in line with its current paid
// fraction. It returns the entry it posted, or nil when nothing changed or
// the move has no tax due on payment.
func (p *Poster) Sync(ctx context.Context, moveID id.ID) (*ledger.Move, error) {
	ctx, span := tracer.Start(ctx, "cashbasis.Sync")
	defer span.End()

	var posted *ledger.Move
	var before, after decimal.Decimal
	err := p.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		m, err := p.moves.GetByID(ctx, moveID)
		if err != nil {
			return err
		}
		if !m.IsPosted() || len(pending(m)) == 0 {
			return nil
		}

		accounts, err := p.provider.Accounts(ctx, ledger.AccountIDs(m.Lines))
		if err != nil {
			return err
		}
		terms := paymentLines(m, accounts)
		partials, err := p.reconciles.PartialsByLines(ctx, ledger.LineIDs(terms))
		if err != nil {
			return fmt.Errorf("load partials: %w", err)
		}

		before = m.CashBasisPercentage
		after = MatchedPercentage(terms, partials)
		if after.Equal(before) {
			return nil
		}

		date, err := p.entryDate(ctx, m, terms, partials)
		if err != nil {
			return err
		}
		posted, err = p.post(ctx, m, before, after, date)
		if err != nil {
			return err
		}

		m.CashBasisPercentage = after
		if err := p.moves.Update(ctx, m); err != nil {
			return fmt.Errorf("store cash basis percentage: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if posted != nil {
		span.SetAttributes(attribute.String("cash_basis_move_id", posted.ID.String()))
		logger.Info(ctx, "cash basis taxes recognized",
			"move_id", moveID,
			"entry_id", posted.ID,
			"before", before.String(),
			"after", after.String())
	}
	return posted, nil
}

// post books the fraction between before and after of every pending line.
func (p *Poster) post(ctx context.Context, m *ledger.Move, before, after decimal.Decimal, date time.Time) (*ledger.Move, error) {
	c, err := p.provider.Company(ctx, m.CompanyID)
	if err != nil {
		return nil, err
	}
	if c.TaxCashBasisJournalID == nil {
		return nil, apperror.NewMissingConfiguration("tax_cash_basis_journal_id",
			"There is no tax cash basis journal defined for the company. Configure it in the accounting settings.")
	}

	lines := pending(m)
	taxes, err := p.provider.Taxes(ctx, taxIDs(lines))
	if err != nil {
		return nil, err
	}
	companyPlaces, err := p.places(ctx, m.CompanyCurrencyID)
	if err != nil {
		return nil, err
	}

	entry := ledger.NewMove(m.CompanyID, *c.TaxCashBasisJournalID, m.CurrencyID, m.CompanyCurrencyID, ledger.TypeEntry, date)
	entry.Ref = m.Number
	entry.CashBasisOriginMoveID = &m.ID

	out := make([]*ledger.Line, 0, 2*len(lines))
	for _, line := range lines {
		amount := portion(line.Balance(), before, after, companyPlaces)
		amountCurrency := decimal.Zero
		if line.CurrencyID != nil {
			currencyPlaces, err := p.places(ctx, *line.CurrencyID)
			if err != nil {
				return nil, err
			}
			amountCurrency = portion(line.AmountCurrency, before, after, currencyPlaces)
		}
		if amount.IsZero() && amountCurrency.IsZero() {
			continue
		}

		var pair [2]*ledger.Line
		if line.IsTaxLine() {
			t := taxes[*line.TaxLineID]
			due := t.DueAccount(m.Type.IsRefund())
			if due == nil {
				return nil, apperror.NewMissingConfiguration("tax_account",
					fmt.Sprintf("Tax %s has no account to recognize it on", t.Code))
			}
			pair = taxPair(line, t, *due, amount)
		} else {
			pair = basePair(line, amount)
		}
		for i, l := range pair {
			l.PartnerID = line.PartnerID
			if line.CurrencyID != nil {
				currencyID := *line.CurrencyID
				l.CurrencyID = &currencyID
				l.AmountCurrency = amountCurrency
				if i == 0 {
					l.AmountCurrency = amountCurrency.Neg()
				}
			}
		}
		out = append(out, pair[0], pair[1])
	}
	if len(out) == 0 {
		return nil, nil
	}
	entry.SetLines(out)

	if err := p.moveSvc.CreatePosted(ctx, entry); err != nil {
		return nil, fmt.Errorf("cash basis entry: %w", err)
	}
	return entry, nil
}

// taxPair empties the suspense account by amount into the due account.
func taxPair(line *ledger.Line, t *tax.Tax, due id.ID, amount decimal.Decimal) [2]*ledger.Line {
	suspense := ledger.NewLine(line.AccountID, t.Name, amount.Neg())
	recognized := ledger.NewLine(due, t.Name, amount)
	taxID := t.ID
	recognized.TaxLineID = &taxID
	recognized.TaxBaseAmount = line.TaxBaseAmount
	return [2]*ledger.Line{suspense, recognized}
}

// basePair nets to zero on the base account and carries the taxes on the
// recognized half, so tax reports see the paid base.
func basePair(line *ledger.Line, amount decimal.Decimal) [2]*ledger.Line {
	counter := ledger.NewLine(line.AccountID, line.Name, amount.Neg())
	base := ledger.NewLine(line.AccountID, line.Name, amount)
	base.TaxIDs = append([]id.ID(nil), line.TaxIDs...)
	return [2]*ledger.Line{counter, base}
}

// portion is round(amount*after) - round(amount*before), so repeated syncs
// add up to exactly round(amount*final).
func portion(amount, before, after decimal.Decimal, places int32) decimal.Decimal {
	return money.Round(amount.Mul(after), places).Sub(money.Round(amount.Mul(before), places))
}

// entryDate is the latest of the move date and the dates of the lines it was
// reconciled with, moved past the lock date binding the caller.
func (p *Poster) entryDate(ctx context.Context, m *ledger.Move, terms []*ledger.Line, partials []*ledger.PartialReconcile) (time.Time, error) {
	date := m.Date

	counterparts := make([]id.ID, 0, len(partials))
	for _, pr := range partials {
		for _, line := range terms {
			if pr.Touches(line.ID) {
				counterparts = append(counterparts, pr.Other(line.ID))
				break
			}
		}
	}
	if len(counterparts) > 0 {
		lines, err := p.moves.GetLines(ctx, counterparts)
		if err != nil {
			return time.Time{}, err
		}
		for _, line := range lines {
			if line.Date.After(date) {
				date = line.Date
			}
		}
	}

	c, err := p.provider.Company(ctx, m.CompanyID)
	if err != nil {
		return time.Time{}, err
	}
	if lock := c.LockDate(appctx.IsAdviser(ctx)); lock != nil && !date.After(*lock) {
		date = lock.AddDate(0, 0, 1)
	}
	return date, nil
}

func (p *Poster) places(ctx context.Context, currencyID id.ID) (int32, error) {
	cur, err := p.provider.Currency(ctx, currencyID)
	if err != nil {
		return 0, err
	}
	return cur.Places(), nil
}

// pending returns the lines whose tax is not yet recognized.
func pending(m *ledger.Move) []*ledger.Line {
	out := make([]*ledger.Line, 0)
	for _, line := range m.Lines {
		if line.DisplayType.IsCosmetic() || line.TaxExigible {
			continue
		}
		if line.IsTaxLine() || line.IsBaseLine() {
			out = append(out, line)
		}
	}
	return out
}

func paymentLines(m *ledger.Move, accounts map[id.ID]*account.Account) []*ledger.Line {
	out := make([]*ledger.Line, 0)
	for _, line := range m.Lines {
		if acc, ok := accounts[line.AccountID]; ok && acc.IsReceivablePayable() {
			out = append(out, line)
		}
	}
	return out
}

func taxIDs(lines []*ledger.Line) []id.ID {
	out := make([]id.ID, 0, len(lines))
	for _, line := range lines {
		if line.TaxLineID != nil {
			out = append(out, *line.TaxLineID)
		}
	}
	return out
}
