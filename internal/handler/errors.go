package handler

import (
	"errors"

	"github.com/soundforge/studio/internal/intake"
)

func formatValidationErrors(err error) interface{} {
	var verr *intake.ValidationError
	if errors.As(err, &verr) {
		return map[string]string{verr.Field: string(verr.Kind)}
	}
	return nil
}
