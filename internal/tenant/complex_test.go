package tenant

import (
	"context"
	"errors"
	"testing"
)

func TestPlanGrants(t *testing.T) {
	cases := []struct {
		plan    Plan
		feature Feature
		want    bool
	}{
		{PlanBasic, FeatureAssemblies, true},
		{PlanBasic, FeatureBilling, false},
		{PlanStandard, FeatureBilling, true},
		{PlanStandard, FeatureExports, false},
		{PlanPremium, FeatureExports, true},
		{Plan("GOLD"), FeatureAssemblies, false},
	}
	for _, tc := range cases {
		if got := tc.plan.Grants(tc.feature); got != tc.want {
			t.Fatalf("%s/%s: got %v want %v", tc.plan, tc.feature, got, tc.want)
		}
	}
}

func TestAuthorizationCheck(t *testing.T) {
	c := &Complex{ID: 7, Schema: "cj_7", Plan: PlanStandard}
	authz := Authorize(c, FeatureBilling)
	if err := authz.Check(7, FeatureBilling); err != nil {
		t.Fatalf("expected granted, got %v", err)
	}
	if err := authz.Check(8, FeatureBilling); !errors.Is(err, ErrFeatureNotGranted) {
		t.Fatalf("expected complex mismatch to be rejected, got %v", err)
	}
	if err := authz.Check(7, FeatureAssemblies); !errors.Is(err, ErrFeatureNotGranted) {
		t.Fatalf("expected feature mismatch to be rejected, got %v", err)
	}
	if err := (Authorization{}).Check(7, FeatureBilling); !errors.Is(err, ErrFeatureNotGranted) {
		t.Fatalf("expected zero authorization to be rejected")
	}
}

func TestGateAuthorize(t *testing.T) {
	dir := NewMemoryDirectory(Complex{ID: 1, Schema: "cj_1", Plan: PlanBasic})
	gate := NewGate(dir)

	authz, err := gate.Authorize(context.Background(), 1, FeatureBilling)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if authz.Granted {
		t.Fatalf("basic plan must not grant billing")
	}

	if _, err := gate.Authorize(context.Background(), 99, FeatureBilling); !errors.Is(err, ErrComplexNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestValidSchemaName(t *testing.T) {
	valid := []string{"cj_1", "tenant_conjunto_norte", "_x"}
	invalid := []string{"", "1abc", "Tenant", "a-b", `a"; drop`}
	for _, name := range valid {
		if !ValidSchemaName(name) {
			t.Fatalf("expected %q valid", name)
		}
	}
	for _, name := range invalid {
		if ValidSchemaName(name) {
			t.Fatalf("expected %q invalid", name)
		}
	}
}
