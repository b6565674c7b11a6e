package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(t *testing.T, mw *Middleware, method, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	mw.Wrap(okHandler()).ServeHTTP(resp, req)
	return resp.Code
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	mw := NewMiddleware(testSecret, NewDefaultPolicy(nil, nil))
	if code := serve(t, mw, http.MethodGet, "/api/v1/complexes/1/bills", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	mw := NewMiddleware(testSecret, NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil))
	if code := serve(t, mw, http.MethodGet, "/healthz", ""); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestAuthMiddleware_Roles(t *testing.T) {
	mw := NewMiddleware(testSecret, NewDefaultPolicy(nil, nil))
	cases := []struct {
		name   string
		role   string
		method string
		path   string
		want   int
	}{
		{name: "viewer reads bills", role: "viewer", method: http.MethodGet, path: "/api/v1/complexes/1/bills", want: http.StatusOK},
		{name: "viewer cannot pay", role: "viewer", method: http.MethodPost, path: "/api/v1/complexes/1/payments", want: http.StatusForbidden},
		{name: "operator pays", role: "operator", method: http.MethodPost, path: "/api/v1/complexes/1/payments", want: http.StatusOK},
		{name: "operator cannot generate", role: "operator", method: http.MethodPost, path: "/api/v1/complexes/1/bills/generate", want: http.StatusForbidden},
		{name: "operator cannot create fee", role: "operator", method: http.MethodPost, path: "/api/v1/complexes/1/fees", want: http.StatusForbidden},
		{name: "viewer cannot export", role: "viewer", method: http.MethodGet, path: "/api/v1/complexes/1/reports/financial.xlsx", want: http.StatusForbidden},
		{name: "viewer reads report", role: "viewer", method: http.MethodGet, path: "/api/v1/complexes/1/reports/financial", want: http.StatusOK},
		{name: "operator votes", role: "operator", method: http.MethodPost, path: "/api/v1/complexes/1/votings/v1/votes", want: http.StatusOK},
		{name: "operator cannot schedule assembly", role: "operator", method: http.MethodPost, path: "/api/v1/complexes/1/assemblies", want: http.StatusForbidden},
		{name: "operator cannot open voting", role: "operator", method: http.MethodPost, path: "/api/v1/complexes/1/assemblies/a1/votings", want: http.StatusForbidden},
		{name: "operator registers attendance", role: "operator", method: http.MethodPost, path: "/api/v1/complexes/1/assemblies/a1/attendance", want: http.StatusOK},
		{name: "viewer reads quorum", role: "viewer", method: http.MethodGet, path: "/api/v1/complexes/1/assemblies/a1/quorum", want: http.StatusOK},
		{name: "admin generates", role: "admin", method: http.MethodPost, path: "/api/v1/complexes/1/bills/generate", want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token := mustToken(t, testSecret, "1", tc.role)
			if code := serve(t, mw, tc.method, tc.path, token); code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, code)
			}
		})
	}
}

func TestAuthMiddleware_ComplexScope(t *testing.T) {
	mw := NewMiddleware(testSecret, NewDefaultPolicy(nil, nil))
	other := mustToken(t, testSecret, "2", "admin")
	if code := serve(t, mw, http.MethodGet, "/api/v1/complexes/1/bills", other); code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign complex, got %d", code)
	}
	wildcard := mustToken(t, testSecret, AllComplexes, "admin")
	if code := serve(t, mw, http.MethodGet, "/api/v1/complexes/1/bills", wildcard); code != http.StatusOK {
		t.Fatalf("expected wildcard admin allowed, got %d", code)
	}
	if code := serve(t, mw, http.MethodGet, "/api/v1/complexes/abc/bills", wildcard); code != http.StatusForbidden {
		t.Fatalf("expected 403 for malformed complex id, got %d", code)
	}
}

func TestAuthMiddleware_DisabledInjectsAdmin(t *testing.T) {
	mw := &Middleware{Policy: NewDefaultPolicy(nil, nil), Disabled: true}
	var got Role
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RoleFromContext(r.Context())
		if err := CheckComplex(r.Context(), 99); err != nil {
			t.Errorf("expected any complex allowed: %v", err)
		}
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/complexes/99/payments", nil))
	if got != RoleAdmin {
		t.Fatalf("expected admin identity, got %q", got)
	}
}

func TestParseJWT_RejectsWildcardNonAdmin(t *testing.T) {
	token := mustToken(t, testSecret, AllComplexes, "operator")
	if _, err := ParseJWT(token, testSecret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestParseJWT_Expired(t *testing.T) {
	token, err := SignJWT(testSecret, "user-1", "1", RoleViewer, -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseJWT(token, testSecret); err == nil {
		t.Fatalf("expected expired token error")
	}
}

func TestCheckComplex(t *testing.T) {
	ctx := WithIdentity(context.Background(), "5", RoleOperator, "user-1")
	if err := CheckComplex(ctx, 5); err != nil {
		t.Fatalf("expected allowed: %v", err)
	}
	if err := CheckComplex(ctx, 6); !errors.Is(err, ErrComplexMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := CheckComplex(context.Background(), 5); err == nil {
		t.Fatalf("expected anonymous context refused")
	}
}

func mustToken(t *testing.T, secret []byte, complexID, role string) string {
	t.Helper()
	claims := Claims{
		ComplexID: complexID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
