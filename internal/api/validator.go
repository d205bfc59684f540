package api

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate checks request bodies against struct tags.
var validate = validator.New(validator.WithRequiredStructEnabled())

// validationMessage flattens a validator error into a short, client-facing
// message without leaking internal struct names.
func validationMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return "invalid request body"
	}

	var fields []string
	for _, fe := range errs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return "missing or invalid fields: " + strings.Join(fields, ", ")
}
