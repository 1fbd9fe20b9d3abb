// Package ledgertest provides an in-memory arena for exercising the ledger
// engine without a database: repositories, configuration provider,
// transaction manager, numerator and event sinks over plain maps.
package ledgertest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
	"ledger/internal/core/numerator"
	"ledger/internal/domain"
	"ledger/internal/domain/catalogs/account"
	"ledger/internal/domain/catalogs/cash_rounding"
	"ledger/internal/domain/catalogs/company"
	"ledger/internal/domain/catalogs/currency"
	"ledger/internal/domain/catalogs/journal"
	"ledger/internal/domain/catalogs/payment_term"
	"ledger/internal/domain/catalogs/tax"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/money"
)

// AuditRecord is one recorded audit entry.
type AuditRecord struct {
	EntityType string
	EntityID   id.ID
	Action     string
}

type state struct {
	moves     map[id.ID]*ledger.Move
	lines     map[id.ID]*ledger.Line
	moveLines map[id.ID][]id.ID
	partials  map[id.ID]*ledger.PartialReconcile
	fulls     map[id.ID]*ledger.FullReconcile
	sequences map[string]int64
	events    []domain.Event
	audit     []AuditRecord
}

func newState() *state {
	return &state{
		moves:     make(map[id.ID]*ledger.Move),
		lines:     make(map[id.ID]*ledger.Line),
		moveLines: make(map[id.ID][]id.ID),
		partials:  make(map[id.ID]*ledger.PartialReconcile),
		fulls:     make(map[id.ID]*ledger.FullReconcile),
		sequences: make(map[string]int64),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.moves {
		c.moves[k] = cloneMove(v)
	}
	for k, v := range s.lines {
		c.lines[k] = v.Clone()
	}
	for k, v := range s.moveLines {
		c.moveLines[k] = slices.Clone(v)
	}
	for k, v := range s.partials {
		p := *v
		c.partials[k] = &p
	}
	for k, v := range s.fulls {
		f := *v
		c.fulls[k] = &f
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	c.events = slices.Clone(s.events)
	c.audit = slices.Clone(s.audit)
	return c
}

// Arena is an in-memory ledger store. The zero value is not usable; call NewArena.
type Arena struct {
	mu sync.Mutex
	st *state

	companies     map[id.ID]*company.Company
	journals      map[id.ID]*journal.Journal
	accounts      map[id.ID]*account.Account
	currencies    map[id.ID]*currency.Currency
	rates         []*currency.Rate
	taxes         map[id.ID]*tax.Tax
	paymentTerms  map[id.ID]*payment_term.PaymentTerm
	cashRoundings map[id.ID]*cash_rounding.CashRounding

	// Locked records every id passed to LockLines, in lock order
	Locked []id.ID
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{
		st:            newState(),
		companies:     make(map[id.ID]*company.Company),
		journals:      make(map[id.ID]*journal.Journal),
		accounts:      make(map[id.ID]*account.Account),
		currencies:    make(map[id.ID]*currency.Currency),
		taxes:         make(map[id.ID]*tax.Tax),
		paymentTerms:  make(map[id.ID]*payment_term.PaymentTerm),
		cashRoundings: make(map[id.ID]*cash_rounding.CashRounding),
	}
}

var (
	_ ledger.MoveRepository      = (*Arena)(nil)
	_ ledger.ReconcileRepository = (*Arena)(nil)
	_ ledger.Provider            = (*Arena)(nil)
	_ domain.EventPublisher      = (*Arena)(nil)
	_ domain.AuditRecorder       = (*Arena)(nil)
	_ numerator.Generator        = (*Arena)(nil)
)

// --- configuration ---

// AddCompany registers c.
func (a *Arena) AddCompany(c *company.Company) {
	a.companies[c.ID] = c
}

// AddJournal registers j.
func (a *Arena) AddJournal(j *journal.Journal) {
	a.journals[j.ID] = j
}

// AddAccount registers acc.
func (a *Arena) AddAccount(acc *account.Account) {
	a.accounts[acc.ID] = acc
}

// AddCurrency registers c.
func (a *Arena) AddCurrency(c *currency.Currency) {
	a.currencies[c.ID] = c
}

// AddRate appends r to the rate table.
func (a *Arena) AddRate(r *currency.Rate) {
	a.rates = append(a.rates, r)
}

// AddTax registers t.
func (a *Arena) AddTax(t *tax.Tax) {
	a.taxes[t.ID] = t
}

// AddPaymentTerm registers p.
func (a *Arena) AddPaymentTerm(p *payment_term.PaymentTerm) {
	a.paymentTerms[p.ID] = p
}

// AddCashRounding registers r.
func (a *Arena) AddCashRounding(r *cash_rounding.CashRounding) {
	a.cashRoundings[r.ID] = r
}

func (a *Arena) Company(_ context.Context, companyID id.ID) (*company.Company, error) {
	if c, ok := a.companies[companyID]; ok {
		return c, nil
	}
	return nil, apperror.NewNotFound("company", companyID.String())
}

func (a *Arena) Journal(_ context.Context, journalID id.ID) (*journal.Journal, error) {
	if j, ok := a.journals[journalID]; ok {
		return j, nil
	}
	return nil, apperror.NewNotFound("journal", journalID.String())
}

func (a *Arena) Currency(_ context.Context, currencyID id.ID) (*currency.Currency, error) {
	if c, ok := a.currencies[currencyID]; ok {
		return c, nil
	}
	return nil, apperror.NewNotFound("currency", currencyID.String())
}

func (a *Arena) Accounts(_ context.Context, accountIDs []id.ID) (map[id.ID]*account.Account, error) {
	out := make(map[id.ID]*account.Account, len(accountIDs))
	for _, accountID := range accountIDs {
		acc, ok := a.accounts[accountID]
		if !ok {
			return nil, apperror.NewNotFound("account", accountID.String())
		}
		out[accountID] = acc
	}
	return out, nil
}

func (a *Arena) Taxes(_ context.Context, taxIDs []id.ID) (map[id.ID]*tax.Tax, error) {
	out := make(map[id.ID]*tax.Tax)
	var add func(taxID id.ID) error
	add = func(taxID id.ID) error {
		t, ok := a.taxes[taxID]
		if !ok {
			return apperror.NewNotFound("tax", taxID.String())
		}
		out[taxID] = t
		t.Children = t.Children[:0]
		for _, childID := range t.ChildrenIDs {
			if err := add(childID); err != nil {
				return err
			}
			t.Children = append(t.Children, a.taxes[childID])
		}
		return nil
	}
	for _, taxID := range taxIDs {
		if err := add(taxID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (a *Arena) PaymentTerm(_ context.Context, termID id.ID) (*payment_term.PaymentTerm, error) {
	if p, ok := a.paymentTerms[termID]; ok {
		return p, nil
	}
	return nil, apperror.NewNotFound("payment term", termID.String())
}

func (a *Arena) CashRounding(_ context.Context, roundingID id.ID) (*cash_rounding.CashRounding, error) {
	if r, ok := a.cashRoundings[roundingID]; ok {
		return r, nil
	}
	return nil, apperror.NewNotFound("cash rounding", roundingID.String())
}

func (a *Arena) Rates(_ context.Context, until time.Time, currencyIDs ...id.ID) (*money.RateTable, error) {
	currencies := make([]*currency.Currency, 0, len(currencyIDs))
	for _, currencyID := range currencyIDs {
		c, ok := a.currencies[currencyID]
		if !ok {
			return nil, apperror.NewNotFound("currency", currencyID.String())
		}
		currencies = append(currencies, c)
	}
	rates := make([]*currency.Rate, 0, len(a.rates))
	for _, r := range a.rates {
		if !r.Date.After(until) {
			rates = append(rates, r)
		}
	}
	return money.NewRateTable(currencies, rates), nil
}

// --- tx.Manager ---

type txKey struct{}

// RunInTransaction snapshots the arena and restores it when fn fails or panics.
// Nested calls join the outer transaction.
func (a *Arena) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	a.mu.Lock()
	snapshot := a.st.clone()
	a.mu.Unlock()

	rollback := func() {
		a.mu.Lock()
		a.st = snapshot
		a.mu.Unlock()
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		rollback()
		return err
	}
	return nil
}

// --- sinks ---

// Publish implements domain.EventPublisher.
func (a *Arena) Publish(_ context.Context, event domain.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.st.events = append(a.st.events, event)
	return nil
}

// Events returns the published events.
func (a *Arena) Events() []domain.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.st.events)
}

// EventTypes returns the types of the published events, in order.
func (a *Arena) EventTypes() []string {
	out := make([]string, 0)
	for _, e := range a.Events() {
		out = append(out, e.EventType)
	}
	return out
}

// Record implements domain.AuditRecorder.
func (a *Arena) Record(_ context.Context, entityType string, entityID id.ID, action string, _ any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.st.audit = append(a.st.audit, AuditRecord{EntityType: entityType, EntityID: entityID, Action: action})
	return nil
}

// AuditTrail returns the recorded audit entries.
func (a *Arena) AuditTrail() []AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.st.audit)
}

// GetNextNumber implements numerator.Generator with one gapless counter per
// prefix, and per year when the year is part of the number.
func (a *Arena) GetNextNumber(_ context.Context, cfg numerator.Config, _ *numerator.Options, period time.Time) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := sequenceKey(cfg, period)
	a.st.sequences[key]++
	return fmt.Sprintf("%s/%0*d", key, cfg.PadWidth, a.st.sequences[key]), nil
}

func sequenceKey(cfg numerator.Config, period time.Time) string {
	if !cfg.IncludeYear {
		return cfg.Prefix
	}
	return fmt.Sprintf("%s/%d", cfg.Prefix, period.Year())
}

// SetNextNumber implements numerator.Generator.
func (a *Arena) SetNextNumber(_ context.Context, cfg numerator.Config, period time.Time, value int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.st.sequences[sequenceKey(cfg, period)] = value - 1
	return nil
}

// --- helpers ---

func cloneMove(m *ledger.Move) *ledger.Move {
	c := *m
	c.Lines = nil
	return &c
}

func sumLines(lines []*ledger.Line) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

func sortByID(lines []*ledger.Line) {
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ID.String() < lines[j].ID.String()
	})
}
