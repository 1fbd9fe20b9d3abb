// Package payment_term provides payment terms: installment schedules that
// split an invoice total into dated receivable or payable lines.
package payment_term

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"ledger/internal/core/apperror"
	"ledger/internal/core/entity"
)

// Value is the kind of amount an installment carries.
type Value string

const (
	ValueBalance Value = "balance"
	ValuePercent Value = "percent"
	ValueFixed   Value = "fixed"
)

// Option selects how the due date is derived from the invoice date.
type Option string

const (
	DayAfterInvoiceDate   Option = "day_after_invoice_date"
	FixDayFollowingMonth  Option = "fix_day_following_month"
	LastDayFollowingMonth Option = "last_day_following_month"
	LastDayCurrentMonth   Option = "last_day_current_month"
)

// Line is one installment rule.
type Line struct {
	Sequence    int             `json:"sequence"`
	Value       Value           `json:"value"`
	ValueAmount decimal.Decimal `json:"valueAmount"`
	Days        int             `json:"days"`
	Option      Option          `json:"option"`
}

// Lines is stored as a JSONB document.
type Lines []Line

// Value implements driver.Valuer.
func (l Lines) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *Lines) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("payment term lines: unsupported type %T", src)
	}
}

// PaymentTerm is an ordered installment schedule.
type PaymentTerm struct {
	entity.Catalog

	Lines Lines `db:"lines" json:"lines"`
}

// NewPaymentTerm creates a term with the given installments.
func NewPaymentTerm(code, name string, lines ...Line) *PaymentTerm {
	return &PaymentTerm{
		Catalog: entity.NewCatalog(code, name),
		Lines:   lines,
	}
}

// Validate implements entity.Validatable interface.
func (p *PaymentTerm) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}
	if len(p.Lines) == 0 {
		return apperror.NewValidation("a payment term needs at least one line").WithDetail("field", "lines")
	}

	balances := 0
	for i, line := range p.Lines {
		switch line.Value {
		case ValueBalance:
			balances++
		case ValuePercent:
			if !line.ValueAmount.IsPositive() || line.ValueAmount.GreaterThan(decimal.NewFromInt(100)) {
				return apperror.NewValidation("percentages on payment term lines must be between 0 and 100").
					WithDetail("line", i)
			}
		case ValueFixed:
		default:
			return apperror.NewValidation("unknown payment term line value").WithDetail("line", i)
		}
		switch line.Option {
		case DayAfterInvoiceDate, FixDayFollowingMonth, LastDayFollowingMonth, LastDayCurrentMonth:
		case "":
			p.Lines[i].Option = DayAfterInvoiceDate
		default:
			return apperror.NewValidation("unknown payment term line option").WithDetail("line", i)
		}
		if line.Days < 0 {
			return apperror.NewValidation("days cannot be negative").WithDetail("line", i)
		}
	}

	if balances != 1 || p.Lines[len(p.Lines)-1].Value != ValueBalance {
		return apperror.NewValidation("the last line of a payment term must be the only balance line").
			WithDetail("field", "lines")
	}
	return nil
}
