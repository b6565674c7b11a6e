package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for callers.
type Kind string

const (
	KindValidation    Kind = "VALIDATION"
	KindNotFound      Kind = "NOT_FOUND"
	KindConflict      Kind = "CONFLICT"
	KindAuthorization Kind = "AUTHORIZATION"
	KindInternal      Kind = "INTERNAL"
)

// Error is a classified error. Sentinels are package-level *Error values and
// compare by identity through errors.Is.
type Error struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return e.Message + " (" + e.Field + ")"
	}
	return e.Message
}

// New constructs a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation constructs a field-level validation error.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// KindOf returns the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) && classified != nil {
		return classified.Kind
	}
	return KindInternal
}

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var classified *Error
	if errors.As(err, &classified) && classified != nil {
		return classified.Field
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAuthorization:
		return http.StatusForbidden
	case "":
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
