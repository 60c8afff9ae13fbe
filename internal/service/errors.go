package service

import (
	"errors"

	"myblog/internal/models"
)

// appError passes AppErrors through and wraps anything else as internal.
func appError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}
