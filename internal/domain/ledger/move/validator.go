package move

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/account"
	"ledger/internal/domain/catalogs/company"
	"ledger/internal/domain/ledger"
	"ledger/internal/domain/ledger/money"
)

// TotalsReader re-reads persisted debit and credit sums.
type TotalsReader interface {
	Totals(ctx context.Context, moveID id.ID) (debit, credit decimal.Decimal, err error)
}

// AssertBalanced fails with UnbalancedEntry when the persisted lines of the
// move do not net to zero at places. The sums are read back from storage so
// the check sees what was actually written in the current transaction.
func AssertBalanced(ctx context.Context, repo TotalsReader, moveID id.ID, places int32) error {
	debit, credit, err := repo.Totals(ctx, moveID)
	if err != nil {
		return fmt.Errorf("read totals: %w", err)
	}
	if !money.IsZero(debit.Sub(credit), places) {
		return apperror.NewUnbalancedEntry(moveID.String(), debit, credit)
	}
	return nil
}

type validityKey struct{}

// WithoutValidityCheck returns a context in which Create, Update and
// UpdateLines store drafts that do not balance. Posting still requires a
// balanced entry.
func WithoutValidityCheck(ctx context.Context) context.Context {
	return context.WithValue(ctx, validityKey{}, false)
}

// ValidityChecked reports whether line mutations in ctx must leave the move
// balanced. It is on unless WithoutValidityCheck was applied.
func ValidityChecked(ctx context.Context) bool {
	v, ok := ctx.Value(validityKey{}).(bool)
	return !ok || v
}

// CheckCompany verifies that every line and every account it uses belong to
// the company of the move.
func CheckCompany(m *ledger.Move, accounts map[id.ID]*account.Account) error {
	for i, line := range m.Lines {
		if line.DisplayType.IsCosmetic() {
			continue
		}
		if line.CompanyID != m.CompanyID {
			return apperror.NewBusinessRule("COMPANY_MISMATCH", "all lines of an entry must belong to one company").
				WithDetail("lineNo", i+1)
		}
		acc, ok := accounts[line.AccountID]
		if !ok {
			return apperror.NewNotFound("account", line.AccountID.String())
		}
		if acc.CompanyID != m.CompanyID {
			return apperror.NewBusinessRule("COMPANY_MISMATCH", "the account of a line belongs to another company").
				WithDetail("lineNo", i+1).
				WithDetail("account", acc.Code)
		}
	}
	return nil
}

// CheckLockDate fails with LockDate when date falls on or before the lock
// date that binds the caller. Advisers are only bound by the fiscal year lock.
func CheckLockDate(c *company.Company, date time.Time, adviser bool) error {
	lock := c.LockDate(adviser)
	if lock != nil && !date.After(*lock) {
		return apperror.NewLockDate(*lock, adviser)
	}
	return nil
}

// CheckDraft fails unless the move can still be edited.
func CheckDraft(m *ledger.Move, operation string) error {
	if !m.IsDraft() {
		return apperror.NewInvalidState("move", string(m.State), operation)
	}
	return nil
}
