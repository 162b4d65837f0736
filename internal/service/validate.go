package service

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/Additional-Code/buildmart/internal/entity"
	"github.com/Additional-Code/buildmart/pkg/errorbank"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})
		_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return !math.IsNaN(f) && !math.IsInf(f, 0)
		})
		v.RegisterStructValidation(tenderBudgetRange, entity.Tender{})
		validate = v
	})
	return validate
}

func tenderBudgetRange(sl validator.StructLevel) {
	t := sl.Current().Interface().(entity.Tender)
	if t.BudgetMin != nil && t.BudgetMax != nil && *t.BudgetMin > *t.BudgetMax {
		sl.ReportError(t.BudgetMin, "budget_min", "BudgetMin", "ltefield", "budget_max")
	}
}

// Validate checks a record against its field rules. Failures come back as a
// validation error with one detail entry per offending field.
func Validate(record any) error {
	err := validatorInstance().Struct(record)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errorbank.Validation("invalid record", errorbank.WithCause(err))
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = describe(fe)
	}
	return errorbank.Validation("invalid "+strings.ToLower(reflect.Indirect(reflect.ValueOf(record)).Type().Name()), errorbank.WithDetails(details))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "finite":
		return "must be a finite number"
	case "ltefield":
		return "must not exceed " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
