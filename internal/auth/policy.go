package auth

import (
	"net/http"
	"strings"
)

const complexesPrefix = "/api/v1/complexes/"

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves required role for the request.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	method := r.Method
	resource := complexResource(r.URL.Path)

	switch {
	case resource == "fees" || strings.HasPrefix(resource, "fees/"):
		if method == http.MethodGet {
			return RoleViewer, true
		}
		return RoleAdmin, true
	case resource == "bills/generate":
		return RoleAdmin, true
	case strings.HasPrefix(resource, "reports/"):
		if strings.HasSuffix(resource, ".pdf") || strings.HasSuffix(resource, ".xlsx") {
			return RoleAdmin, true
		}
		return RoleViewer, true
	case resource == "assemblies" || strings.HasSuffix(resource, "/votings"):
		if method == http.MethodGet {
			return RoleViewer, true
		}
		return RoleAdmin, true
	case resource == "payments",
		strings.HasSuffix(resource, "/attendance"),
		strings.HasSuffix(resource, "/votes"):
		if method == http.MethodGet {
			return RoleViewer, true
		}
		return RoleOperator, true
	}

	if strings.HasPrefix(r.URL.Path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return RoleViewer, true
		}
		return RoleOperator, true
	}
	return "", false
}

// complexResource returns the path below /api/v1/complexes/{id}/.
func complexResource(path string) string {
	rest, ok := strings.CutPrefix(path, complexesPrefix)
	if !ok {
		return ""
	}
	_, resource, _ := strings.Cut(rest, "/")
	return resource
}

// complexIDFromPath returns the {complexID} path segment, if any.
func complexIDFromPath(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, complexesPrefix)
	if !ok {
		return "", false
	}
	id, _, _ := strings.Cut(rest, "/")
	return id, id != ""
}
