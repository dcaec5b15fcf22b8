package common

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound       = errors.New("requested resource not found")
	ErrInternalServer = errors.New("internal server error")
	ErrValidation     = errors.New("validation failed")
	ErrInvalidFlag    = errors.New("invalid flag value") // rights/enabled outside {"0","1"}
)

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrInvalidFlag) {
		return http.StatusGone
	}
	if errors.Is(err, ErrValidation) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the text safe to show a client for err. Server-side
// failures collapse to a generic message; everything else keeps its wording.
func PublicMessage(err error) string {
	if HTTPStatusFromError(err) >= http.StatusInternalServerError {
		return ErrInternalServer.Error()
	}
	var detailErr *DetailError
	if errors.As(err, &detailErr) {
		return detailErr.Detail
	}
	return err.Error()
}

// DetailError carries a client-facing message while still matching its
// sentinel through errors.Is.
type DetailError struct {
	Err    error
	Detail string
}

func (e *DetailError) Error() string { return e.Detail }
func (e *DetailError) Unwrap() error { return e.Err }

// WithDetail attaches a client-facing detail string to a sentinel error.
func WithDetail(err error, detail string) error {
	return &DetailError{Err: err, Detail: detail}
}
