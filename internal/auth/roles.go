package auth

import "strings"

// Role is the access level of a caller within a complex.
type Role string

const (
	// RoleViewer reads bills, reports and assembly results (board members,
	// residents).
	RoleViewer Role = "viewer"
	// RoleOperator also records payments, attendance and votes (front desk,
	// accounting).
	RoleOperator Role = "operator"
	// RoleAdmin also manages fees, generates bills and runs assemblies.
	RoleAdmin Role = "admin"
)

var roleRanks = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := roleRanks[role]; !ok {
		return "", false
	}
	return role, true
}

// RoleAtLeast reports whether role satisfies required. Unknown roles satisfy
// nothing.
func RoleAtLeast(role Role, required Role) bool {
	rank, ok := roleRanks[role]
	return ok && rank >= roleRanks[required]
}
