package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotLoggedIn    = errors.New("not logged in to the telematics API")
	ErrLoginFailed    = errors.New("token login failed")
	ErrSessionExpired = errors.New("session expired")

	ErrNoUnitsFound   = errors.New("no units found")
	ErrUnitNotFound   = errors.New("unit not found")
	ErrNoExtraction   = errors.New("no extraction has been run yet")
	ErrEmptyDateRange = errors.New("date range is empty or inverted")

	ErrInvalidConfig = errors.New("invalid configuration")
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
