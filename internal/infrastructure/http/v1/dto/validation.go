package dto

import (
	"errors"
	"reflect"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// RegisterValidators teaches gin's validator about decimal amounts:
//
//	decimal_gt0  amount > 0
//	decimal_gte0 amount >= 0
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not validator/v10")
	}

	// decimals are validated through their canonical string form
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	if err := v.RegisterValidation("decimal_gt0", decimalCmp(func(d decimal.Decimal) bool {
		return d.IsPositive()
	})); err != nil {
		return err
	}
	return v.RegisterValidation("decimal_gte0", decimalCmp(func(d decimal.Decimal) bool {
		return !d.IsNegative()
	}))
}

func decimalCmp(ok func(decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		return ok(d)
	}
}
