package cashbasis

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"ledger/internal/core/apperror"
	appctx "ledger/internal/core/context"
	"ledger/internal/core/id"
	"ledger/internal/core/types"
	"ledger/internal/domain/catalogs/account"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/ledgertest"
	"ledger/internal/domain/ledger/move"
	"ledger/internal/domain/ledger/reconcile"
)

type PosterSuite struct {
	suite.Suite
	ctx       context.Context
	f         *ledgertest.Fixture
	moves     *move.Service
	poster    *Poster
	reconcile *reconcile.Service
}

func TestPosterSuite(t *testing.T) {
	suite.Run(t, new(PosterSuite))
}

func (s *PosterSuite) SetupTest() {
	s.ctx = appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "accountant"})
	s.f = ledgertest.NewFixture()
	s.moves = move.NewService(move.Config{
		Moves:      s.f.Arena,
		Reconciles: s.f.Arena,
		Provider:   s.f.Arena,
		TxManager:  s.f.Arena,
		Numerator:  s.f.Arena,
	})
	s.poster = NewPoster(Config{
		Moves:       s.f.Arena,
		Reconciles:  s.f.Arena,
		Provider:    s.f.Arena,
		TxManager:   s.f.Arena,
		MoveService: s.moves,
	})
	s.reconcile = reconcile.NewService(reconcile.Config{
		Moves:       s.f.Arena,
		Reconciles:  s.f.Arena,
		Provider:    s.f.Arena,
		TxManager:   s.f.Arena,
		MoveService: s.moves,
		Numerator:   s.f.Arena,
		CashBasis:   s.poster,
	})
}

func (s *PosterSuite) post(m *ledger.Move) *ledger.Move {
	s.Require().NoError(s.moves.Create(s.ctx, m))
	s.Require().NoError(s.moves.Post(s.ctx, m.ID))
	return s.f.Move(m.ID)
}

// invoice posts a 1000 + 15% invoice whose tax is due on payment.
func (s *PosterSuite) invoice() *ledger.Move {
	return s.post(s.f.Invoice(ledger.TypeOutInvoice, s.f.USD.ID, "2024-01-15", []string{"1000"}, s.f.VAT15Cash))
}

func (s *PosterSuite) pay(inv *ledger.Move, date, amount string) *reconcile.Result {
	payment := s.post(s.f.Payment(s.f.Receivable, date, amount))
	res, err := s.reconcile.Reconcile(s.ctx, []id.ID{
		inv.LinesOf(ledger.DisplayPaymentTerm)[0].ID,
		lineOn(payment, s.f.Receivable).ID,
	}, reconcile.Options{})
	s.Require().NoError(err)
	return res
}

func lineOn(m *ledger.Move, acc *account.Account) *ledger.Line {
	for _, line := range m.Lines {
		if line.AccountID == acc.ID && len(line.TaxIDs) == 0 {
			return line
		}
	}
	return nil
}

func (s *PosterSuite) money(want string, got decimal.Decimal) {
	s.T().Helper()
	s.True(got.Equal(types.MustMoney(want)), "want %s, got %s", want, got)
}

func (s *PosterSuite) TestInvoiceDefersTax() {
	inv := s.invoice()

	taxLine := inv.LinesOf(ledger.DisplayTax)[0]
	s.Equal(s.f.TaxSuspense.ID, taxLine.AccountID)
	s.False(taxLine.TaxExigible)
	s.False(inv.LinesOf(ledger.DisplayProduct)[0].TaxExigible)
}

func (s *PosterSuite) TestPartialPaymentRecognizesProportion() {
	inv := s.invoice()

	res := s.pay(inv, "2024-01-20", "460")
	s.Require().Len(res.CashBasisMoves, 1)

	entry := res.CashBasisMoves[0]
	s.Equal(ledger.StatePosted, entry.State)
	s.Equal(s.f.CashBasis.ID, entry.JournalID)
	s.Equal(inv.ID, *entry.CashBasisOriginMoveID)
	s.Equal(ledgertest.Date("2024-01-20"), entry.Date)
	s.Require().Len(entry.Lines, 4)

	s.money("60", lineOn(entry, s.f.TaxSuspense).Debit)
	recognized := lineOn(entry, s.f.TaxPayable)
	s.money("60", recognized.Credit)
	s.Equal(s.f.VAT15Cash.ID, *recognized.TaxLineID)

	var base *ledger.Line
	for _, line := range entry.Lines {
		if len(line.TaxIDs) > 0 {
			base = line
		}
	}
	s.Require().NotNil(base)
	s.Equal(s.f.Income.ID, base.AccountID)
	s.money("400", base.Credit)
	s.money("400", lineOn(entry, s.f.Income).Debit)

	s.money("0.4", s.f.Move(inv.ID).CashBasisPercentage)
}

func (s *PosterSuite) TestSyncIsIdempotent() {
	inv := s.invoice()
	s.pay(inv, "2024-01-20", "460")
	before := len(s.f.Moves())

	entry, err := s.poster.Sync(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.Nil(entry)
	s.Len(s.f.Moves(), before)
}

func (s *PosterSuite) TestFullPaymentRecognizesRemainder() {
	inv := s.invoice()
	s.pay(inv, "2024-01-20", "460")
	res := s.pay(inv, "2024-02-10", "690")

	s.Require().Len(res.CashBasisMoves, 1)
	entry := res.CashBasisMoves[0]
	s.money("90", lineOn(entry, s.f.TaxSuspense).Debit)
	s.money("90", lineOn(entry, s.f.TaxPayable).Credit)
	s.money("1", s.f.Move(inv.ID).CashBasisPercentage)

	// the suspense account is empty once the invoice is paid
	total := decimal.Zero
	for _, m := range s.f.Moves() {
		for _, line := range m.Lines {
			if line.AccountID == s.f.TaxSuspense.ID {
				total = total.Add(line.Balance())
			}
		}
	}
	s.True(total.IsZero(), "suspense balance %s", total)
}

func (s *PosterSuite) TestUnreconcileReversesRecognizedTax() {
	inv := s.invoice()
	s.pay(inv, "2024-01-20", "460")

	term := inv.LinesOf(ledger.DisplayPaymentTerm)[0]
	s.Require().NoError(s.reconcile.RemoveMoveReconcile(s.ctx, []id.ID{term.ID}))

	var reversal *ledger.Move
	for _, m := range s.f.Moves() {
		if m.CashBasisOriginMoveID != nil && lineOn(m, s.f.TaxSuspense).Balance().IsNegative() {
			reversal = m
		}
	}
	s.Require().NotNil(reversal)
	s.money("60", lineOn(reversal, s.f.TaxSuspense).Credit)
	s.money("60", lineOn(reversal, s.f.TaxPayable).Debit)
	s.True(s.f.Move(inv.ID).CashBasisPercentage.IsZero())
}

func (s *PosterSuite) TestMissingJournal() {
	inv := s.invoice()
	s.f.Company.TaxCashBasisJournalID = nil
	payment := s.post(s.f.Payment(s.f.Receivable, "2024-01-20", "460"))

	_, err := s.reconcile.Reconcile(s.ctx, []id.ID{
		inv.LinesOf(ledger.DisplayPaymentTerm)[0].ID,
		lineOn(payment, s.f.Receivable).ID,
	}, reconcile.Options{})
	s.Require().Error(err)
	s.True(apperror.IsCode(err, apperror.CodeMissingConfiguration), "got %v", err)
	s.Zero(s.f.Partials())
}

func (s *PosterSuite) TestInvoiceTaxedOnInvoiceIsIgnored() {
	inv := s.post(s.f.Invoice(ledger.TypeOutInvoice, s.f.USD.ID, "2024-01-15", []string{"1000"}, s.f.VAT15))
	res := s.pay(inv, "2024-01-20", "1150")
	s.Empty(res.CashBasisMoves)

	entry, err := s.poster.Sync(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.Nil(entry)
}

func TestMatchedPercentage(t *testing.T) {
	eur := id.New()
	line := func(balance, amountCurrency string, currencyID *id.ID) *ledger.Line {
		l := ledger.NewLine(id.New(), "term", types.MustMoney(balance))
		if currencyID != nil {
			l.CurrencyID = currencyID
			l.AmountCurrency = types.MustMoney(amountCurrency)
		}
		return l
	}
	partial := func(debit *ledger.Line, amount, amountCurrency string, currencyID *id.ID) *ledger.PartialReconcile {
		p := ledger.NewPartialReconcile(debit.ID, id.New(), types.MustMoney(amount))
		if currencyID != nil {
			p.CurrencyID = currencyID
			p.AmountCurrency = types.MustMoney(amountCurrency)
		}
		return p
	}

	t.Run("company currency", func(t *testing.T) {
		term := line("1150", "", nil)
		pct := MatchedPercentage([]*ledger.Line{term}, []*ledger.PartialReconcile{partial(term, "460", "", nil)})
		assert.True(t, pct.Equal(types.MustMoney("0.4")), pct.String())
	})

	t.Run("shared foreign currency ignores exchange drift", func(t *testing.T) {
		term := line("200", "100", &eur)
		pct := MatchedPercentage([]*ledger.Line{term}, []*ledger.PartialReconcile{partial(term, "90", "50", &eur)})
		assert.True(t, pct.Equal(types.MustMoney("0.5")), pct.String())
	})

	t.Run("partial without currency falls back to company amounts", func(t *testing.T) {
		term := line("200", "100", &eur)
		pct := MatchedPercentage([]*ledger.Line{term}, []*ledger.PartialReconcile{partial(term, "90", "", nil)})
		assert.True(t, pct.Equal(types.MustMoney("0.45")), pct.String())
	})

	t.Run("unrelated partials ignored", func(t *testing.T) {
		term := line("100", "", nil)
		other := line("100", "", nil)
		pct := MatchedPercentage([]*ledger.Line{term}, []*ledger.PartialReconcile{partial(other, "100", "", nil)})
		assert.True(t, pct.IsZero())
	})

	t.Run("no payment lines counts as paid", func(t *testing.T) {
		assert.True(t, MatchedPercentage(nil, nil).Equal(decimal.NewFromInt(1)))
	})
}
