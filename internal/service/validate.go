package service

import (
	"fmt"

	"xp_engine/internal/util"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs the struct tags and wraps failures in util.ErrValidation.
func validateStruct(op string, v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%s: %w: %v", op, util.ErrValidation, err)
	}
	return nil
}

func validationError(op, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w: %s", op, util.ErrValidation, fmt.Sprintf(format, args...))
}
