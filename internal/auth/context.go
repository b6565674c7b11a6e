package auth

import (
	"context"
	"strconv"
)

type contextKey string

const (
	contextKeyComplex contextKey = "auth.complex_id"
	contextKeyRole    contextKey = "auth.role"
	contextKeySubject contextKey = "auth.subject"
)

// WithIdentity stores auth identity details in context. complexScope is a
// complex id or AllComplexes.
func WithIdentity(ctx context.Context, complexScope string, role Role, subject string) context.Context {
	ctx = context.WithValue(ctx, contextKeyComplex, complexScope)
	ctx = context.WithValue(ctx, contextKeyRole, role)
	ctx = context.WithValue(ctx, contextKeySubject, subject)
	return ctx
}

// ComplexScopeFromContext extracts the complex scope of the caller.
func ComplexScopeFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if scope, ok := ctx.Value(contextKeyComplex).(string); ok {
		return scope
	}
	return ""
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeyRole)
	if role, ok := value.(Role); ok {
		return role
	}
	if role, ok := value.(string); ok {
		if normalized, valid := NormalizeRole(role); valid {
			return normalized
		}
	}
	return ""
}

// SubjectFromContext extracts subject from context.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if subject, ok := ctx.Value(contextKeySubject).(string); ok {
		return subject
	}
	return ""
}

// AllowsComplex reports whether a caller scoped to scope with role may act
// on complexID.
func AllowsComplex(scope string, role Role, complexID int64) bool {
	if scope == AllComplexes {
		return role == RoleAdmin
	}
	id, err := strconv.ParseInt(scope, 10, 64)
	return err == nil && id == complexID
}

// CheckComplex returns ErrComplexMismatch unless the identity in ctx may act
// on complexID.
func CheckComplex(ctx context.Context, complexID int64) error {
	if !AllowsComplex(ComplexScopeFromContext(ctx), RoleFromContext(ctx), complexID) {
		return ErrComplexMismatch
	}
	return nil
}
