package taxcalc

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"

	"ledger/internal/core/apperror"
	"ledger/internal/domain/catalogs/tax"
)

var (
	envOnce sync.Once
	env     *cel.Env
	envErr  error

	programs sync.Map // formula -> cel.Program
)

func formulaEnv() (*cel.Env, error) {
	envOnce.Do(func() {
		env, envErr = cel.NewEnv(
			cel.Variable("base", cel.DoubleType),
			cel.Variable("price_unit", cel.DoubleType),
			cel.Variable("quantity", cel.DoubleType),
		)
	})
	return env, envErr
}

// CompileFormula checks that a formula is a valid CEL expression yielding a number.
func CompileFormula(formula string) (cel.Program, error) {
	if prg, ok := programs.Load(formula); ok {
		return prg.(cel.Program), nil
	}

	e, err := formulaEnv()
	if err != nil {
		return nil, fmt.Errorf("tax formula environment: %w", err)
	}
	ast, iss := e.Compile(formula)
	if iss != nil && iss.Err() != nil {
		return nil, apperror.NewValidation("invalid tax formula").
			WithDetail("formula", formula).
			WithCause(iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.DoubleType) {
		return nil, apperror.NewValidation("tax formula must evaluate to a double").
			WithDetail("formula", formula)
	}
	prg, err := e.Program(ast)
	if err != nil {
		return nil, apperror.NewValidation("invalid tax formula").
			WithDetail("formula", formula).
			WithCause(err)
	}
	programs.Store(formula, prg)
	return prg, nil
}

func evalFormula(t *tax.Tax, base, priceUnit, quantity decimal.Decimal) (decimal.Decimal, error) {
	prg, err := CompileFormula(t.Formula)
	if err != nil {
		return decimal.Zero, err
	}
	out, _, err := prg.Eval(map[string]any{
		"base":       base.InexactFloat64(),
		"price_unit": priceUnit.InexactFloat64(),
		"quantity":   quantity.InexactFloat64(),
	})
	if err != nil {
		return decimal.Zero, apperror.NewValidation("tax formula failed").
			WithDetail("tax", t.Code).
			WithCause(err)
	}
	value, ok := out.Value().(float64)
	if !ok {
		return decimal.Zero, apperror.NewValidation("tax formula must evaluate to a double").
			WithDetail("tax", t.Code)
	}
	return decimal.NewFromFloat(value), nil
}
