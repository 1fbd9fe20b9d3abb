package move

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ledger/internal/core/apperror"
	appctx "ledger/internal/core/context"
	"ledger/internal/core/id"
	"ledger/internal/core/numerator"
	"ledger/internal/core/types"
	"ledger/internal/domain"
	"ledger/internal/domain/catalogs/account"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/ledgertest"
)

type ServiceSuite struct {
	suite.Suite
	ctx context.Context
	f   *ledgertest.Fixture
	svc *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "accountant"})
	s.f = ledgertest.NewFixture()
	s.svc = s.newService(s.f.Arena)
}

func (s *ServiceSuite) newService(gen numerator.Generator) *Service {
	return NewService(Config{
		Moves:      s.f.Arena,
		Reconciles: s.f.Arena,
		Provider:   s.f.Arena,
		TxManager:  s.f.Arena,
		Numerator:  gen,
		Events:     s.f.Arena,
		Audit:      s.f.Arena,
	})
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event domain.Event) error {
	return m.Called(ctx, event).Error(0)
}

func (s *ServiceSuite) invoice(prices ...string) *ledger.Move {
	m := s.f.Invoice(ledger.TypeOutInvoice, s.f.USD.ID, "2024-01-15", prices, s.f.VAT15)
	s.Require().NoError(s.svc.Create(s.ctx, m))
	return m
}

func (s *ServiceSuite) posted(prices ...string) *ledger.Move {
	m := s.invoice(prices...)
	s.Require().NoError(s.svc.Post(s.ctx, m.ID))
	return s.f.Move(m.ID)
}

func (s *ServiceSuite) assertCode(err error, code string) {
	s.T().Helper()
	s.Require().Error(err)
	s.True(apperror.IsCode(err, code), "want %s, got %v", code, err)
}

func (s *ServiceSuite) money(want string, got decimal.Decimal) {
	s.T().Helper()
	s.True(got.Equal(types.MustMoney(want)), "want %s, got %s", want, got)
}

func (s *ServiceSuite) TestCreate_BalancesInvoice() {
	m := s.invoice("1000")

	stored := s.f.Move(m.ID)
	s.Require().NotNil(stored)
	s.Equal(ledger.StateDraft, stored.State)
	s.False(stored.HasNumber())
	s.Equal("accountant", stored.CreatedBy)
	s.Len(stored.Lines, 3)

	debit, credit := stored.Totals()
	s.money("1150", debit)
	s.money("1150", credit)

	term := stored.LinesOf(ledger.DisplayPaymentTerm)[0]
	s.money("1150", term.AmountResidual)
	s.False(term.Reconciled)

	s.Equal([]ledgertest.AuditRecord{{EntityType: "move", EntityID: m.ID, Action: "create"}}, s.f.AuditTrail())
}

func (s *ServiceSuite) TestCreate_RejectsUnbalancedDraft() {
	m := s.f.Entry(s.f.General, "2024-01-15",
		ledgertest.Line(s.f.BankAccount, "100"),
		ledgertest.Line(s.f.Income, "-70"))

	s.assertCode(s.svc.Create(s.ctx, m), apperror.CodeUnbalancedEntry)
	s.Nil(s.f.Move(m.ID))

	s.Require().NoError(s.svc.Create(WithoutValidityCheck(s.ctx), m))
	stored := s.f.Move(m.ID)
	s.Require().NotNil(stored)
	s.Equal(ledger.StateDraft, stored.State)
}

func (s *ServiceSuite) TestUpdateLines_RejectsUnbalanced() {
	m := s.f.Entry(s.f.General, "2024-01-15",
		ledgertest.Line(s.f.BankAccount, "100"),
		ledgertest.Line(s.f.Income, "-100"))
	s.Require().NoError(s.svc.Create(s.ctx, m))
	stored := s.f.Move(m.ID)

	lines := []*ledger.Line{
		ledgertest.Line(s.f.BankAccount, "100"),
		ledgertest.Line(s.f.Income, "-60"),
	}
	_, err := s.svc.UpdateLines(s.ctx, m.ID, stored.Version, lines)
	s.assertCode(err, apperror.CodeUnbalancedEntry)
	s.money("100", s.f.Move(m.ID).Lines[1].Credit)

	updated, err := s.svc.UpdateLines(WithoutValidityCheck(s.ctx), m.ID, stored.Version, lines)
	s.Require().NoError(err)
	s.Len(updated.Lines, 2)
	s.Equal("accountant", updated.UpdatedBy)
}

func (s *ServiceSuite) TestCreate_RejectsForeignAccount() {
	other := account.NewAccount(id.New(), "700000", "Other Company Sales", account.TypeIncome)
	s.f.AddAccount(other)

	m := s.f.Entry(s.f.General, "2024-01-15",
		ledgertest.Line(s.f.BankAccount, "100"),
		ledgertest.Line(other, "-100"))

	s.assertCode(s.svc.Create(s.ctx, m), "COMPANY_MISMATCH")
	s.Nil(s.f.Move(m.ID))
}

func (s *ServiceSuite) TestPost_AssignsNumberOnce() {
	m := s.posted("1000")

	s.Equal(ledger.StatePosted, m.State)
	s.Equal("INV/2024/00001", m.Number)
	s.NotNil(m.PostedAt)
	s.Equal([]string{EventPosted}, s.f.EventTypes())

	debit, credit := m.Totals()
	s.True(debit.Equal(credit))

	s.Require().NoError(s.svc.Cancel(s.ctx, m.ID))
	s.Require().NoError(s.svc.ResetToDraft(s.ctx, m.ID))
	s.Require().NoError(s.svc.Post(s.ctx, m.ID))

	again := s.f.Move(m.ID)
	s.Equal("INV/2024/00001", again.Number)
	s.Equal([]string{EventPosted, EventCancelled, EventReset, EventPosted}, s.f.EventTypes())

	next := s.posted("50")
	s.Equal("INV/2024/00002", next.Number)
}

func (s *ServiceSuite) TestPost_RefundSequence() {
	m := s.f.Invoice(ledger.TypeOutRefund, s.f.USD.ID, "2024-01-15", []string{"100"}, s.f.VAT15)
	s.Require().NoError(s.svc.Create(s.ctx, m))
	s.Require().NoError(s.svc.Post(s.ctx, m.ID))
	s.Equal("RINV/2024/00001", s.f.Move(m.ID).Number)
}

func (s *ServiceSuite) TestPost_Unbalanced() {
	m := s.f.Entry(s.f.General, "2024-01-15",
		ledgertest.Line(s.f.BankAccount, "100"),
		ledgertest.Line(s.f.Income, "-90"))
	s.Require().NoError(s.svc.Create(WithoutValidityCheck(s.ctx), m))

	s.assertCode(s.svc.Post(s.ctx, m.ID), apperror.CodeUnbalancedEntry)
	s.Equal(ledger.StateDraft, s.f.Move(m.ID).State)
	s.Empty(s.f.Events())
}

func (s *ServiceSuite) TestPost_BalancedWithinPrecision() {
	m := s.f.Entry(s.f.General, "2024-01-15",
		ledgertest.Line(s.f.BankAccount, "100.001"),
		ledgertest.Line(s.f.Income, "-100"))
	s.Require().NoError(s.svc.Create(s.ctx, m))
	s.NoError(s.svc.Post(s.ctx, m.ID))
}

func (s *ServiceSuite) TestPost_EmptyMove() {
	m := s.f.Entry(s.f.General, "2024-01-15")
	s.Require().NoError(s.svc.Create(s.ctx, m))
	s.assertCode(s.svc.Post(s.ctx, m.ID), apperror.CodeValidation)
}

func (s *ServiceSuite) TestPost_LockDate() {
	m := s.invoice("100")
	s.f.LockPeriod("2024-01-31")

	err := s.svc.Post(s.ctx, m.ID)
	s.assertCode(err, apperror.CodeLockDate)
	s.Contains(err.Error(), "Adviser")

	adviser := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "chief",
		Roles:  []string{appctx.RoleAdviser},
	})
	s.Require().NoError(s.svc.Post(adviser, m.ID))

	s.f.LockFiscalYear("2024-01-15")
	err = s.svc.Cancel(adviser, m.ID)
	s.assertCode(err, apperror.CodeLockDate)
	s.NotContains(err.Error(), "Adviser")
}

func (s *ServiceSuite) TestPost_BatchIsAtomic() {
	first := s.invoice("100")
	second := s.f.Entry(s.f.General, "2024-01-15",
		ledgertest.Line(s.f.BankAccount, "10"),
		ledgertest.Line(s.f.Income, "-5"))
	s.Require().NoError(s.svc.Create(WithoutValidityCheck(s.ctx), second))

	s.assertCode(s.svc.Post(s.ctx, first.ID, second.ID), apperror.CodeUnbalancedEntry)
	s.Equal(ledger.StateDraft, s.f.Move(first.ID).State)
	s.False(s.f.Move(first.ID).HasNumber())
	s.Empty(s.f.Events())

	third := s.invoice("200")
	s.Require().NoError(s.svc.Post(s.ctx, first.ID, third.ID))
	s.Equal("INV/2024/00001", s.f.Move(first.ID).Number)
	s.Equal("INV/2024/00002", s.f.Move(third.ID).Number)
}

func (s *ServiceSuite) TestPost_DuplicateNumber() {
	gen := &numerator.MockGenerator{
		GetNextNumberFunc: func(_ context.Context, cfg numerator.Config, _ *numerator.Options, _ time.Time) (string, error) {
			return cfg.Prefix + "/2024/00001", nil
		},
	}
	s.svc = s.newService(gen)

	s.posted("100")
	m := s.invoice("200")

	s.assertCode(s.svc.Post(s.ctx, m.ID), apperror.CodeDuplicateDocumentNumber)
	s.Equal(ledger.StateDraft, s.f.Move(m.ID).State)
}

func (s *ServiceSuite) TestPost_PublishesEvent() {
	events := new(mockPublisher)
	svc := s.newService(s.f.Arena)
	svc.events = events

	m := s.f.Invoice(ledger.TypeOutInvoice, s.f.USD.ID, "2024-01-15", []string{"100"}, s.f.VAT15)
	s.Require().NoError(svc.Create(s.ctx, m))

	events.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.Event) bool {
		return e.EventType == EventPosted && e.AggregateID == m.ID
	})).Return(nil).Once()

	s.Require().NoError(svc.Post(s.ctx, m.ID))
	events.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestPost_PublishFailureRollsBack() {
	events := new(mockPublisher)
	svc := s.newService(s.f.Arena)
	svc.events = events

	m := s.f.Invoice(ledger.TypeOutInvoice, s.f.USD.ID, "2024-01-15", []string{"100"}, s.f.VAT15)
	s.Require().NoError(svc.Create(s.ctx, m))

	events.On("Publish", mock.Anything, mock.Anything).Return(assert.AnError)

	err := svc.Post(s.ctx, m.ID)
	s.Require().ErrorIs(err, assert.AnError)
	s.Equal(ledger.StateDraft, s.f.Move(m.ID).State)
	s.Empty(s.f.Move(m.ID).Number)
}

func (s *ServiceSuite) TestCancel_BlockedByReconciliation() {
	m := s.posted("100")
	term := m.LinesOf(ledger.DisplayPaymentTerm)[0]

	payment := s.f.Payment(s.f.Receivable, "2024-01-20", "115")
	s.Require().NoError(s.svc.Create(s.ctx, payment))
	s.Require().NoError(s.svc.Post(s.ctx, payment.ID))
	credit := s.f.Move(payment.ID).Lines[1]

	partial := ledger.NewPartialReconcile(term.ID, credit.ID, types.MustMoney("115"))
	s.Require().NoError(s.f.CreatePartials(s.ctx, []*ledger.PartialReconcile{partial}))

	s.assertCode(s.svc.Cancel(s.ctx, m.ID), apperror.CodeReconciliation)
	s.Equal(ledger.StatePosted, s.f.Move(m.ID).State)
}

func (s *ServiceSuite) TestStateMachine_IllegalTransitions() {
	m := s.invoice("100")

	s.assertCode(s.svc.Cancel(s.ctx, m.ID), apperror.CodeInvalidState)
	s.assertCode(s.svc.ResetToDraft(s.ctx, m.ID), apperror.CodeInvalidState)

	s.Require().NoError(s.svc.Post(s.ctx, m.ID))
	s.assertCode(s.svc.Post(s.ctx, m.ID), apperror.CodeInvalidState)
	s.assertCode(s.svc.ResetToDraft(s.ctx, m.ID), apperror.CodeInvalidState)
	s.assertCode(s.svc.Delete(s.ctx, m.ID), apperror.CodeInvalidState)

	_, err := s.svc.UpdateLines(s.ctx, m.ID, s.f.Move(m.ID).Version, nil)
	s.assertCode(err, apperror.CodeInvalidState)
}

func (s *ServiceSuite) TestDelete_Draft() {
	m := s.invoice("100")
	s.Require().NoError(s.svc.Delete(s.ctx, m.ID))
	s.Nil(s.f.Move(m.ID))
}

func (s *ServiceSuite) TestUpdate_PostedNeedsJournalPermission() {
	m := s.posted("100")

	edited := s.f.Move(m.ID)
	edited.Ref = "PO-42"
	_, err := s.svc.Update(s.ctx, edited)
	s.assertCode(err, apperror.CodeInvalidState)

	s.f.Sale.UpdatePosted = true
	updated, err := s.svc.Update(s.ctx, edited)
	s.Require().NoError(err)
	s.Equal("PO-42", updated.Ref)

	edited = s.f.Move(m.ID)
	edited.Date = types.MustDate("2024-02-01")
	_, err = s.svc.Update(s.ctx, edited)
	s.assertCode(err, apperror.CodeValidation)
}

func (s *ServiceSuite) TestUpdate_StaleVersion() {
	m := s.invoice("100")
	stale := s.f.Move(m.ID)

	fresh := s.f.Move(m.ID)
	fresh.Ref = "first"
	_, err := s.svc.Update(s.ctx, fresh)
	s.Require().NoError(err)

	stale.Ref = "second"
	_, err = s.svc.Update(s.ctx, stale)
	s.True(apperror.IsConcurrentModification(err))
}

func (s *ServiceSuite) TestUpdateLines_ManualTaxSurvives() {
	m := s.invoice("1000")
	stored := s.f.Move(m.ID)

	for _, line := range stored.Lines {
		if line.IsTaxLine() {
			line.Credit = types.MustMoney("149.99")
		}
	}
	updated, err := s.svc.UpdateLines(s.ctx, m.ID, stored.Version, stored.Lines)
	s.Require().NoError(err)
	s.money("149.99", updated.LinesOf(ledger.DisplayTax)[0].Credit)
	s.money("1149.99", updated.LinesOf(ledger.DisplayPaymentTerm)[0].Debit)

	// changing a base line recomputes the taxes
	for _, line := range updated.Lines {
		if line.IsBaseLine() {
			line.PriceUnit = types.MustMoney("2000")
		}
	}
	updated, err = s.svc.UpdateLines(s.ctx, m.ID, updated.Version, updated.Lines)
	s.Require().NoError(err)
	s.money("300", updated.LinesOf(ledger.DisplayTax)[0].Credit)
	s.money("2300", updated.LinesOf(ledger.DisplayPaymentTerm)[0].Debit)
}

func (s *ServiceSuite) TestReverse() {
	m := s.posted("1000")

	rev, err := s.svc.Reverse(s.ctx, m.ID, types.MustDate("2024-01-31"))
	s.Require().NoError(err)

	s.Equal(ledger.TypeOutRefund, rev.Type)
	s.Equal(ledger.StatePosted, rev.State)
	s.Equal("RINV/2024/00001", rev.Number)
	s.Equal("Reversal of: INV/2024/00001", rev.Ref)
	s.Require().NotNil(rev.ReversedEntryID)
	s.Equal(m.ID, *rev.ReversedEntryID)

	s.Require().Len(rev.Lines, len(m.Lines))
	for i, line := range rev.Lines {
		s.NotEqual(m.Lines[i].ID, line.ID)
		s.True(line.Debit.Equal(m.Lines[i].Credit))
		s.True(line.Credit.Equal(m.Lines[i].Debit))
	}
	s.Equal([]string{EventPosted, EventPosted, EventReversed}, s.f.EventTypes())
}

func (s *ServiceSuite) TestReverse_DraftRejected() {
	m := s.invoice("100")
	_, err := s.svc.Reverse(s.ctx, m.ID, types.MustDate("2024-01-31"))
	s.assertCode(err, apperror.CodeInvalidState)
}

func TestCheckLockDate(t *testing.T) {
	f := ledgertest.NewFixture()
	f.LockFiscalYear("2023-12-31")
	f.LockPeriod("2024-03-31")

	tests := []struct {
		name    string
		date    string
		adviser bool
		wantErr bool
	}{
		{"after both locks", "2024-04-01", false, false},
		{"on period lock", "2024-03-31", false, true},
		{"adviser ignores period lock", "2024-03-31", true, false},
		{"adviser bound by fiscal lock", "2023-12-31", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckLockDate(f.Company, types.MustDate(tt.date), tt.adviser)
			if tt.wantErr {
				assert.True(t, apperror.IsCode(err, apperror.CodeLockDate))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidityChecked(t *testing.T) {
	ctx := context.Background()
	assert.True(t, ValidityChecked(ctx))
	assert.False(t, ValidityChecked(WithoutValidityCheck(ctx)))
}

func TestAssertBalanced(t *testing.T) {
	f := ledgertest.NewFixture()
	ctx := context.Background()

	m := f.Entry(f.General, "2024-01-15",
		ledgertest.Line(f.BankAccount, "10.004"),
		ledgertest.Line(f.Income, "-10"))
	require.NoError(t, f.Create(ctx, m))

	assert.NoError(t, AssertBalanced(ctx, f, m.ID, 2))
	assert.True(t, apperror.IsCode(AssertBalanced(ctx, f, m.ID, 3), apperror.CodeUnbalancedEntry))
}
