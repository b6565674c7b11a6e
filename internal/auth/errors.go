package auth

import (
	"errors"

	"residential-cloud/internal/apperr"
)

var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrComplexMismatch is returned when the caller's token is scoped to a
	// different complex.
	ErrComplexMismatch = apperr.New(apperr.KindAuthorization, "auth: token not valid for complex")
)
