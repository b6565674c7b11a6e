package auth

import (
	"net/http"
	"strconv"
	"strings"
)

// Middleware validates JWTs and enforces RBAC and complex scoping.
type Middleware struct {
	Secret []byte
	Policy Policy
	// Disabled injects a wildcard admin identity instead of checking tokens.
	Disabled bool
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy) *Middleware {
	return &Middleware{Secret: secret, Policy: policy}
}

// Wrap applies auth and RBAC to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		if m.Disabled {
			ctx := WithIdentity(r.Context(), AllComplexes, RoleAdmin, "anonymous")
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		required, ok := m.Policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := ParseJWT(extractBearer(r), m.Secret)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		role, _ := NormalizeRole(claims.Role)
		if !RoleAtLeast(role, required) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if raw, ok := complexIDFromPath(r.URL.Path); ok {
			complexID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || !AllowsComplex(claims.ComplexID, role, complexID) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
		ctx := WithIdentity(r.Context(), claims.ComplexID, role, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
