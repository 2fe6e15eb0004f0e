package domain

import (
	"errors"
	"net/http"
)

// Code classifies an AppError. Handlers turn it into an HTTP status with
// HTTPStatus.
type Code string

const (
	CodeNotFound      Code = "not_found"
	CodeAlreadyExists Code = "already_exists"
	CodeValidation    Code = "validation"
	// CodeUnavailable means the site has no installed build to answer from.
	CodeUnavailable Code = "unavailable"
	CodeInternal    Code = "internal"
)

var statusByCode = map[Code]int{
	CodeNotFound:      http.StatusNotFound,
	CodeAlreadyExists: http.StatusConflict,
	CodeValidation:    http.StatusBadRequest,
	CodeUnavailable:   http.StatusServiceUnavailable,
	CodeInternal:      http.StatusInternalServerError,
}

// AppError is an error that carries a Code and a message safe to show to
// clients. Err stays server side.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

// Sentinels for the common cases. Compare with CodeOf or the Is helpers, not
// errors.Is: a NewAppError value with the same code is a different pointer.
var (
	ErrNotFound    = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrUnavailable = &AppError{Code: CodeUnavailable, Message: "site has not been built"}
	ErrInternal    = &AppError{Code: CodeInternal, Message: "internal error"}
)

// NewAppError creates an AppError.
func NewAppError(code Code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first AppError in err's chain, or "" when
// there is none.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsNotFound(err error) bool      { return CodeOf(err) == CodeNotFound }
func IsAlreadyExists(err error) bool { return CodeOf(err) == CodeAlreadyExists }
func IsValidation(err error) bool    { return CodeOf(err) == CodeValidation }

// HTTPStatus maps err to a response status. Errors without a known code are
// 500s.
func HTTPStatus(err error) int {
	if status, ok := statusByCode[CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the client-facing message of err. Errors that are not
// AppErrors may leak internals, so they get a generic message.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ErrInternal.Message
}
