package reconcile

import (
	"context"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"ledger/internal/core/apperror"
	appctx "ledger/internal/core/context"
	"ledger/internal/core/id"
	"ledger/internal/core/types"
	"ledger/internal/domain/catalogs/account"
	"ledger/internal/domain/catalogs/company"
	"ledger/internal/domain/catalogs/journal"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/ledgertest"
	"ledger/internal/domain/ledger/move"
)

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	f     *ledgertest.Fixture
	moves *move.Service
	svc   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "accountant"})
	s.f = ledgertest.NewFixture()
	s.moves = move.NewService(move.Config{
		Moves:      s.f.Arena,
		Reconciles: s.f.Arena,
		Provider:   s.f.Arena,
		TxManager:  s.f.Arena,
		Numerator:  s.f.Arena,
		Events:     s.f.Arena,
	})
	s.svc = NewService(Config{
		Moves:       s.f.Arena,
		Reconciles:  s.f.Arena,
		Provider:    s.f.Arena,
		TxManager:   s.f.Arena,
		MoveService: s.moves,
		Numerator:   s.f.Arena,
		Events:      s.f.Arena,
	})
}

func (s *ServiceSuite) post(m *ledger.Move) *ledger.Move {
	s.Require().NoError(s.moves.Create(s.ctx, m))
	s.Require().NoError(s.moves.Post(s.ctx, m.ID))
	return s.f.Move(m.ID)
}

// invoice posts a USD customer invoice and returns its receivable line.
func (s *ServiceSuite) invoice(date string, prices ...string) *ledger.Line {
	m := s.post(s.f.Invoice(ledger.TypeOutInvoice, s.f.USD.ID, date, prices))
	return m.LinesOf(ledger.DisplayPaymentTerm)[0]
}

// payment posts a customer payment and returns its receivable line.
func (s *ServiceSuite) payment(date, amount string) *ledger.Line {
	return lineOn(s.post(s.f.Payment(s.f.Receivable, date, amount)), s.f.Receivable)
}

func lineOn(m *ledger.Move, acc *account.Account) *ledger.Line {
	for _, line := range m.Lines {
		if line.AccountID == acc.ID {
			return line
		}
	}
	return nil
}

func (s *ServiceSuite) money(want string, got decimal.Decimal) {
	s.T().Helper()
	s.True(got.Equal(types.MustMoney(want)), "want %s, got %s", want, got)
}

func (s *ServiceSuite) assertCode(err error, code string) {
	s.T().Helper()
	s.Require().Error(err)
	s.True(apperror.IsCode(err, code), "want %s, got %v", code, err)
}

func (s *ServiceSuite) TestReconcile_TwoPaymentsCloseInvoice() {
	inv := s.invoice("2024-01-15", "100")
	p1 := s.payment("2024-01-20", "60")
	p2 := s.payment("2024-01-25", "40")

	res, err := s.svc.Reconcile(s.ctx, []id.ID{inv.ID, p1.ID, p2.ID}, Options{})
	s.Require().NoError(err)

	s.Require().Len(res.Partials, 2)
	s.money("60", res.Partials[0].Amount)
	s.money("40", res.Partials[1].Amount)
	s.Nil(res.ExchangeMove)
	s.Require().NotNil(res.FullReconcile)
	s.Equal("FR/000001", res.FullReconcile.Name)

	for _, lineID := range []id.ID{inv.ID, p1.ID, p2.ID} {
		line := s.f.Line(lineID)
		s.True(line.Reconciled)
		s.True(line.AmountResidual.IsZero())
		s.Equal(res.FullReconcile.ID, *line.FullReconcileID)
	}
	s.Contains(s.f.EventTypes(), EventReconciled)
}

func (s *ServiceSuite) TestReconcile_PartialLeavesResidual() {
	inv := s.invoice("2024-01-15", "100")
	p1 := s.payment("2024-01-20", "60")

	res, err := s.svc.Reconcile(s.ctx, []id.ID{inv.ID, p1.ID}, Options{})
	s.Require().NoError(err)
	s.Len(res.Partials, 1)
	s.Nil(res.FullReconcile)

	s.money("40", s.f.Line(inv.ID).AmountResidual)
	s.False(s.f.Line(inv.ID).Reconciled)
	s.True(s.f.Line(p1.ID).Reconciled)

	// the second payment closes the chain started by the first
	p2 := s.payment("2024-01-25", "40")
	res, err = s.svc.Reconcile(s.ctx, []id.ID{inv.ID, p2.ID}, Options{})
	s.Require().NoError(err)
	s.Require().NotNil(res.FullReconcile)
	s.ElementsMatch([]id.ID{inv.ID, p1.ID, p2.ID}, res.FullReconcile.LineIDs)
	s.Equal(1, s.f.FullReconciles())
}

func (s *ServiceSuite) TestReconcile_OldestFirst() {
	late := s.invoice("2024-02-15", "50")
	early := s.invoice("2024-01-15", "100")
	pay := s.payment("2024-03-01", "120")

	res, err := s.svc.Reconcile(s.ctx, []id.ID{late.ID, early.ID, pay.ID}, Options{})
	s.Require().NoError(err)
	s.Require().Len(res.Partials, 2)
	s.Equal(early.ID, res.Partials[0].DebitLineID)
	s.money("100", res.Partials[0].Amount)
	s.Equal(late.ID, res.Partials[1].DebitLineID)
	s.money("20", res.Partials[1].Amount)

	s.money("30", s.f.Line(late.ID).AmountResidual)
	s.Nil(res.FullReconcile)
}

func (s *ServiceSuite) TestReconcile_LocksLinesInIDOrder() {
	inv := s.invoice("2024-01-15", "100")
	pay := s.payment("2024-01-20", "100")

	_, err := s.svc.Reconcile(s.ctx, []id.ID{pay.ID, inv.ID}, Options{})
	s.Require().NoError(err)

	s.Require().Len(s.f.Locked, 2)
	s.True(sort.SliceIsSorted(s.f.Locked, func(i, j int) bool {
		return s.f.Locked[i].String() < s.f.Locked[j].String()
	}))
}

func (s *ServiceSuite) TestReconcile_ExchangeDifference() {
	inv := s.post(s.f.Invoice(ledger.TypeOutInvoice, s.f.EUR.ID, "2024-01-15", []string{"100"}))
	receivable := inv.LinesOf(ledger.DisplayPaymentTerm)[0]
	s.money("200", receivable.Debit)
	s.money("100", receivable.AmountCurrency)

	pay := lineOn(s.post(s.f.ForeignPayment(s.f.Receivable, "2024-02-01", "180", "100")), s.f.Receivable)

	res, err := s.svc.Reconcile(s.ctx, []id.ID{receivable.ID, pay.ID}, Options{})
	s.Require().NoError(err)

	s.Require().Len(res.Partials, 1)
	s.money("180", res.Partials[0].Amount)
	s.money("100", res.Partials[0].AmountCurrency)

	exchange := res.ExchangeMove
	s.Require().NotNil(exchange)
	s.Equal(ledger.StatePosted, exchange.State)
	s.Equal(s.f.Exchange.ID, exchange.JournalID)
	s.Equal(ledgertest.Date("2024-02-01"), exchange.Date)
	s.Require().Len(exchange.Lines, 2)
	s.money("20", lineOn(exchange, s.f.Receivable).Credit)
	s.money("20", lineOn(exchange, s.f.Loss).Debit)

	s.Require().NotNil(res.FullReconcile)
	s.Equal(exchange.ID, *res.FullReconcile.ExchangeMoveID)
	for _, lineID := range []id.ID{receivable.ID, pay.ID, lineOn(exchange, s.f.Receivable).ID} {
		line := s.f.Line(lineID)
		s.True(line.Reconciled, "line %s", lineID)
		s.Equal(res.FullReconcile.ID, *line.FullReconcileID)
	}
}

func (s *ServiceSuite) TestReconcile_ForeignOnlyDrift() {
	inv := s.post(s.f.Invoice(ledger.TypeOutInvoice, s.f.EUR.ID, "2024-01-15", []string{"100"}))
	receivable := inv.LinesOf(ledger.DisplayPaymentTerm)[0]
	pay := lineOn(s.post(s.f.ForeignPayment(s.f.Receivable, "2024-02-01", "200", "90")), s.f.Receivable)

	res, err := s.svc.Reconcile(s.ctx, []id.ID{receivable.ID, pay.ID}, Options{})
	s.Require().NoError(err)

	s.Require().Len(res.Partials, 1)
	s.money("200", res.Partials[0].Amount)
	s.money("90", res.Partials[0].AmountCurrency)

	exchange := res.ExchangeMove
	s.Require().NotNil(exchange)
	s.Require().Len(exchange.Lines, 2)
	for _, line := range exchange.Lines {
		s.True(line.Debit.IsZero())
		s.True(line.Credit.IsZero())
	}
	fix := lineOn(exchange, s.f.Receivable)
	s.Require().NotNil(fix)
	s.money("-10", fix.AmountCurrency)

	s.Require().NotNil(res.FullReconcile)
	s.Equal(exchange.ID, *res.FullReconcile.ExchangeMoveID)

	stored := s.f.Line(receivable.ID)
	s.True(stored.Reconciled)
	s.True(stored.AmountResidual.IsZero())
	s.True(stored.AmountResidualCurrency.IsZero())
	for _, lineID := range []id.ID{receivable.ID, pay.ID, fix.ID} {
		s.Equal(res.FullReconcile.ID, *s.f.Line(lineID).FullReconcileID, "line %s", lineID)
	}
}

func (s *ServiceSuite) TestReconcile_ExchangeGainAfterLockDate() {
	inv := s.post(s.f.Invoice(ledger.TypeOutInvoice, s.f.EUR.ID, "2024-01-15", []string{"100"}))
	receivable := inv.LinesOf(ledger.DisplayPaymentTerm)[0]
	pay := lineOn(s.post(s.f.ForeignPayment(s.f.Receivable, "2024-02-01", "230", "100")), s.f.Receivable)
	s.f.LockPeriod("2024-02-15")

	res, err := s.svc.Reconcile(s.ctx, []id.ID{receivable.ID, pay.ID}, Options{})
	s.Require().NoError(err)

	exchange := res.ExchangeMove
	s.Require().NotNil(exchange)
	s.Equal(ledgertest.Date("2024-02-16"), exchange.Date)
	s.money("30", lineOn(exchange, s.f.Receivable).Debit)
	s.money("30", lineOn(exchange, s.f.Gain).Credit)
}

func (s *ServiceSuite) TestReconcile_MissingExchangeJournal() {
	inv := s.post(s.f.Invoice(ledger.TypeOutInvoice, s.f.EUR.ID, "2024-01-15", []string{"100"}))
	receivable := inv.LinesOf(ledger.DisplayPaymentTerm)[0]
	pay := lineOn(s.post(s.f.ForeignPayment(s.f.Receivable, "2024-02-01", "180", "100")), s.f.Receivable)
	s.f.Company.ExchangeJournalID = nil

	_, err := s.svc.Reconcile(s.ctx, []id.ID{receivable.ID, pay.ID}, Options{})
	s.assertCode(err, apperror.CodeMissingConfiguration)

	s.Zero(s.f.Partials())
	s.money("200", s.f.Line(receivable.ID).AmountResidual)
}

func (s *ServiceSuite) TestReconcile_Rejections() {
	inv := s.invoice("2024-01-15", "100")
	bill := s.post(s.f.Invoice(ledger.TypeInInvoice, s.f.USD.ID, "2024-01-15", []string{"100"}))
	payable := bill.LinesOf(ledger.DisplayPaymentTerm)[0]

	_, err := s.svc.Reconcile(s.ctx, []id.ID{inv.ID, payable.ID}, Options{})
	s.assertCode(err, apperror.CodeReconciliation)

	income := lineOn(s.f.Move(inv.MoveID), s.f.Income)
	other := bill.LinesOf(ledger.DisplayProduct)[0]
	_, err = s.svc.Reconcile(s.ctx, []id.ID{income.ID, other.ID}, Options{})
	s.assertCode(err, apperror.CodeReconciliation)

	_, err = s.svc.Reconcile(s.ctx, []id.ID{income.ID}, Options{})
	s.assertCode(err, apperror.CodeReconciliation)

	draft := s.f.Payment(s.f.Receivable, "2024-01-20", "100")
	s.Require().NoError(s.moves.Create(s.ctx, draft))
	_, err = s.svc.Reconcile(s.ctx, []id.ID{inv.ID, lineOn(s.f.Move(draft.ID), s.f.Receivable).ID}, Options{})
	s.assertCode(err, apperror.CodeReconciliation)

	pay := s.payment("2024-01-20", "100")
	_, err = s.svc.Reconcile(s.ctx, []id.ID{inv.ID, pay.ID}, Options{})
	s.Require().NoError(err)

	_, err = s.svc.Reconcile(s.ctx, []id.ID{inv.ID, pay.ID}, Options{})
	s.assertCode(err, apperror.CodeAlreadyReconciled)
}

func (s *ServiceSuite) TestReconcile_RejectsCrossCompany() {
	inv := s.invoice("2024-01-15", "100")

	sub := company.NewCompany("SUB", "Subsidiary", s.f.USD.ID)
	s.f.AddCompany(sub)
	bank := journal.NewJournal(sub.ID, "SBNK", "Subsidiary Bank", journal.TypeBank)
	s.f.AddJournal(bank)
	cash := account.NewAccount(sub.ID, "101401", "Bank", account.TypeLiquidity)
	s.f.AddAccount(cash)
	recv := account.NewAccount(sub.ID, "121000", "Account Receivable", account.TypeReceivable)
	s.f.AddAccount(recv)

	m := ledger.NewMove(sub.ID, bank.ID, s.f.USD.ID, s.f.USD.ID, ledger.TypeEntry, ledgertest.Date("2024-01-20"))
	counterpart := ledgertest.Line(recv, "-100")
	counterpart.PartnerID = &s.f.Partner
	m.SetLines([]*ledger.Line{ledgertest.Line(cash, "100"), counterpart})
	other := lineOn(s.post(m), recv)

	_, err := s.svc.Reconcile(s.ctx, []id.ID{inv.ID, other.ID}, Options{})
	s.assertCode(err, apperror.CodeReconciliation)
	s.Contains(err.Error(), "company should be the same")
	s.Zero(s.f.Partials())
}

func (s *ServiceSuite) TestReconcile_Writeoff() {
	inv := s.invoice("2024-01-15", "100")
	pay := s.payment("2024-01-20", "95")

	res, err := s.svc.Reconcile(s.ctx, []id.ID{inv.ID, pay.ID}, Options{
		Writeoff: &Writeoff{AccountID: s.f.Expense.ID, JournalID: s.f.General.ID, Label: "Bank fees"},
	})
	s.Require().NoError(err)

	wo := res.WriteoffMove
	s.Require().NotNil(wo)
	s.Equal(ledger.StatePosted, wo.State)
	s.Equal(ledgertest.Date("2024-01-20"), wo.Date)
	s.money("5", lineOn(wo, s.f.Receivable).Credit)
	s.money("5", lineOn(wo, s.f.Expense).Debit)

	s.Len(res.Partials, 2)
	s.Require().NotNil(res.FullReconcile)
	s.True(s.f.Line(inv.ID).Reconciled)
}

func (s *ServiceSuite) TestRemoveMoveReconcile_RestoresResiduals() {
	inv := s.invoice("2024-01-15", "100")
	p1 := s.payment("2024-01-20", "60")
	p2 := s.payment("2024-01-25", "40")
	_, err := s.svc.Reconcile(s.ctx, []id.ID{inv.ID, p1.ID, p2.ID}, Options{})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.RemoveMoveReconcile(s.ctx, []id.ID{p1.ID}))

	s.Zero(s.f.FullReconciles())
	s.Equal(1, s.f.Partials())

	s.money("60", s.f.Line(inv.ID).AmountResidual)
	s.False(s.f.Line(inv.ID).Reconciled)
	s.Nil(s.f.Line(inv.ID).FullReconcileID)
	s.money("-60", s.f.Line(p1.ID).AmountResidual)
	s.True(s.f.Line(p2.ID).Reconciled)
	s.Nil(s.f.Line(p2.ID).FullReconcileID)
	s.Contains(s.f.EventTypes(), EventUnreconciled)
}

func (s *ServiceSuite) TestRemoveMoveReconcile_ReversesExchangeEntry() {
	inv := s.post(s.f.Invoice(ledger.TypeOutInvoice, s.f.EUR.ID, "2024-01-15", []string{"100"}))
	receivable := inv.LinesOf(ledger.DisplayPaymentTerm)[0]
	pay := lineOn(s.post(s.f.ForeignPayment(s.f.Receivable, "2024-02-01", "180", "100")), s.f.Receivable)
	res, err := s.svc.Reconcile(s.ctx, []id.ID{receivable.ID, pay.ID}, Options{})
	s.Require().NoError(err)
	exchange := res.ExchangeMove
	s.Require().NotNil(exchange)

	s.Require().NoError(s.svc.RemoveMoveReconcile(s.ctx, []id.ID{receivable.ID}))

	line := s.f.Line(receivable.ID)
	s.money("200", line.AmountResidual)
	s.money("100", line.AmountResidualCurrency)
	s.False(line.Reconciled)
	s.money("-180", s.f.Line(pay.ID).AmountResidual)

	var reversal *ledger.Move
	for _, m := range s.f.Moves() {
		if m.ReversedEntryID != nil && *m.ReversedEntryID == exchange.ID {
			reversal = m
		}
	}
	s.Require().NotNil(reversal)
	s.Equal(ledger.StatePosted, reversal.State)
	s.money("20", lineOn(reversal, s.f.Receivable).Debit)

	// the exchange line is now settled by its reversal
	s.True(s.f.Line(lineOn(exchange, s.f.Receivable).ID).Reconciled)
	s.True(s.f.Line(lineOn(reversal, s.f.Receivable).ID).Reconciled)
}

func (s *ServiceSuite) TestRemoveMoveReconcile_NothingToDo() {
	inv := s.invoice("2024-01-15", "100")
	s.Require().NoError(s.svc.RemoveMoveReconcile(s.ctx, []id.ID{inv.ID}))
	s.NotContains(s.f.EventTypes(), EventUnreconciled)
}

func (s *ServiceSuite) TestReverseMoves_ReconcilesWithReversal() {
	inv := s.invoice("2024-01-15", "100")

	reversals, err := s.svc.ReverseMoves(s.ctx, []id.ID{inv.MoveID}, ledgertest.Date("2024-01-20"))
	s.Require().NoError(err)
	s.Require().Len(reversals, 1)

	rev := reversals[0]
	s.Equal(ledger.TypeOutRefund, rev.Type)
	s.Equal(inv.MoveID, *rev.ReversedEntryID)

	s.True(s.f.Line(inv.ID).Reconciled)
	s.True(s.f.Line(lineOn(rev, s.f.Receivable).ID).Reconciled)
	s.Equal(1, s.f.FullReconciles())
}

func (s *ServiceSuite) TestAutoReconcileAccount_PerPartner() {
	inv := s.invoice("2024-01-15", "100")
	pay := s.payment("2024-01-20", "100")

	// another partner with only an open invoice
	other := s.f.Invoice(ledger.TypeOutInvoice, s.f.USD.ID, "2024-01-15", []string{"50"})
	otherPartner := id.New()
	other.PartnerID = &otherPartner
	lonely := s.post(other).LinesOf(ledger.DisplayPaymentTerm)[0]

	created, err := s.svc.AutoReconcileAccount(s.ctx, s.f.Receivable.ID)
	s.Require().NoError(err)
	s.Equal(1, created)

	s.True(s.f.Line(inv.ID).Reconciled)
	s.True(s.f.Line(pay.ID).Reconciled)
	s.False(s.f.Line(lonely.ID).Reconciled)
	s.money("50", s.f.Line(lonely.ID).AmountResidual)
}
