package apperror

import (
	"fmt"
	"net/http"
	"time"
)

// NewUnbalancedEntry is raised when the persisted lines of a move do not net to zero.
func NewUnbalancedEntry(moveID any, debit, credit fmt.Stringer) *AppError {
	return &AppError{
		Code:       CodeUnbalancedEntry,
		Message:    "Cannot create unbalanced journal entry",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"move_id": moveID,
			"debit":   debit.String(),
			"credit":  credit.String(),
		},
	}
}

// NewLockDate is raised when an entry is dated on or before the effective lock date.
// Callers without the adviser privilege get a hint about whom to ask.
func NewLockDate(lockDate time.Time, privileged bool) *AppError {
	msg := fmt.Sprintf("You cannot add/modify entries prior to and inclusive of the lock date %s.",
		lockDate.Format(time.DateOnly))
	if !privileged {
		msg += " Check the company settings or ask someone with the 'Adviser' role"
	}
	return &AppError{
		Code:       CodeLockDate,
		Message:    msg,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"lock_date": lockDate.Format(time.DateOnly)},
	}
}

// NewReconciliation covers cross-company, cross-account and non-reconcilable attempts.
func NewReconciliation(message string) *AppError {
	return &AppError{
		Code:       CodeReconciliation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewAlreadyReconciled is raised when a fully reconciled line is passed to reconcile again.
func NewAlreadyReconciled(lineID any) *AppError {
	return &AppError{
		Code:       CodeAlreadyReconciled,
		Message:    "You are trying to reconcile some entries that are already reconciled",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"line_id": lineID},
	}
}

// NewMissingConfiguration names the company setting an operation needs.
func NewMissingConfiguration(setting, message string) *AppError {
	return &AppError{
		Code:       CodeMissingConfiguration,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"setting": setting},
	}
}

// NewDuplicateDocumentNumber is raised when a number is already used by another
// move of the same company, journal and type.
func NewDuplicateDocumentNumber(number string) *AppError {
	return &AppError{
		Code:       CodeDuplicateDocumentNumber,
		Message:    fmt.Sprintf("Duplicated document number %q detected", number),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"number": number},
	}
}
