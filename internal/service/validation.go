package service

import (
	"errors"
	"strings"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateParams runs struct tag validation and converts failures into a
// domain.ValidationError keyed by snake_case field name.
func validateParams(op string, params interface{}) error {
	err := validate.Struct(params)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Internal(err, op, "failed to validate parameters")
	}

	ve := &domain.ValidationError{Op: op, Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		ve.Fields[fieldName(fe.Namespace())] = validationMessage(fe)
	}
	return ve
}

func fieldName(namespace string) string {
	// Drop the struct name prefix: "InsertOrderItemParams.Quantity" -> "quantity"
	if i := strings.Index(namespace, "."); i >= 0 {
		namespace = namespace[i+1:]
	}
	var b strings.Builder
	for i, r := range namespace {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && namespace[i-1] != '.' && namespace[i-1] != '[' {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must contain at least " + fe.Param() + " entries"
	case "email":
		return "must be a valid email address"
	}
	return "is invalid"
}
