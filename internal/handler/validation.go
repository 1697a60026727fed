package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// formatValidationErrors maps each failing field to the rule it broke.
func formatValidationErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		out[e.Field()] = e.Tag()
	}
	return out
}
