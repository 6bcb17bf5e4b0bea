package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the stable, machine-checkable failure shape surfaced to HTTP
// handlers. Code is part of the API contract; Description is for humans.
type Error struct {
	Code        string
	Description string
	Status      int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func newValidationError(desc string) *Error {
	return &Error{Code: "validation_error", Description: desc, Status: http.StatusBadRequest}
}

func newUnauthorizedError(desc string) *Error {
	return &Error{Code: "unauthorized", Description: desc, Status: http.StatusUnauthorized}
}

func newNotFoundError(desc string) *Error {
	return &Error{Code: "not_found", Description: desc, Status: http.StatusNotFound}
}

// AsError extracts a *Error; internal failures map to a generic
// server_error so no store detail leaks to callers.
func AsError(err error) *Error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return &Error{Code: "server_error", Description: "Internal server error.", Status: http.StatusInternalServerError}
}
