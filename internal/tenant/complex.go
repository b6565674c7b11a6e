package tenant

import (
	"context"
	"regexp"
	"strings"

	"residential-cloud/internal/apperr"
)

var (
	// ErrComplexNotFound is returned when a complex id is unknown.
	ErrComplexNotFound = apperr.New(apperr.KindNotFound, "tenant: complex not found")
	// ErrInvalidSchema is returned when a complex carries an unusable schema name.
	ErrInvalidSchema = apperr.New(apperr.KindInternal, "tenant: invalid schema name")
	// ErrFeatureNotGranted is returned when the complex plan lacks a feature.
	ErrFeatureNotGranted = apperr.New(apperr.KindAuthorization, "tenant: plan does not grant feature")
)

var schemaPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Plan is the subscription tier of a complex.
type Plan string

const (
	PlanBasic    Plan = "BASIC"
	PlanStandard Plan = "STANDARD"
	PlanPremium  Plan = "PREMIUM"
)

// Feature is a plan-gated capability.
type Feature string

const (
	FeatureAssemblies Feature = "assemblies"
	FeatureBilling    Feature = "billing"
	FeatureExports    Feature = "exports"
)

var planFeatures = map[Plan][]Feature{
	PlanBasic:    {FeatureAssemblies},
	PlanStandard: {FeatureAssemblies, FeatureBilling},
	PlanPremium:  {FeatureAssemblies, FeatureBilling, FeatureExports},
}

// NormalizePlan validates and normalizes a plan string.
func NormalizePlan(value string) (Plan, bool) {
	plan := Plan(strings.ToUpper(strings.TrimSpace(value)))
	_, ok := planFeatures[plan]
	return plan, ok
}

// Grants reports whether the plan includes feature.
func (p Plan) Grants(feature Feature) bool {
	for _, f := range planFeatures[p] {
		if f == feature {
			return true
		}
	}
	return false
}

// Complex is a residential complex, the tenant unit. Each complex owns one
// database schema.
type Complex struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Schema string `json:"schema"`
	Plan   Plan   `json:"plan"`
}

// ValidSchemaName reports whether name is a safe lower-case schema identifier.
func ValidSchemaName(name string) bool {
	return schemaPattern.MatchString(name)
}

// Directory resolves complexes by id.
type Directory interface {
	Lookup(ctx context.Context, complexID int64) (*Complex, error)
}

// Authorization is the outcome of a plan check performed before calling an
// engine operation. Engines refuse to run without a granted authorization for
// the same complex and feature.
type Authorization struct {
	ComplexID int64
	Feature   Feature
	Granted   bool
}

// Authorize evaluates the plan of c for feature.
func Authorize(c *Complex, feature Feature) Authorization {
	if c == nil {
		return Authorization{Feature: feature}
	}
	return Authorization{ComplexID: c.ID, Feature: feature, Granted: c.Plan.Grants(feature)}
}

// Check returns ErrFeatureNotGranted unless the authorization covers
// complexID and feature.
func (a Authorization) Check(complexID int64, feature Feature) error {
	if !a.Granted || a.ComplexID != complexID || a.Feature != feature {
		return ErrFeatureNotGranted
	}
	return nil
}

// Gate checks plan features for a complex using a directory.
type Gate struct {
	directory Directory
}

// NewGate constructs a plan gate.
func NewGate(directory Directory) *Gate {
	return &Gate{directory: directory}
}

// Authorize looks up the complex and evaluates feature against its plan.
func (g *Gate) Authorize(ctx context.Context, complexID int64, feature Feature) (Authorization, error) {
	if g == nil || g.directory == nil {
		return Authorization{}, apperr.New(apperr.KindInternal, "tenant gate: nil directory")
	}
	complex, err := g.directory.Lookup(ctx, complexID)
	if err != nil {
		return Authorization{}, err
	}
	return Authorize(complex, feature), nil
}
