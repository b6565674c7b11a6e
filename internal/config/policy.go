package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	defaultLateFeeRate      = "0.03"
	defaultDueDay           = 15
	defaultQuorumPercentage = 50
)

// PolicyValues are the tunable billing and assembly parameters. Zero values
// in an override keep the default.
type PolicyValues struct {
	LateFeeMonthlyRate string  `yaml:"late_fee_monthly_rate"`
	DueDay             int     `yaml:"due_day"`
	QuorumPercentage   float64 `yaml:"quorum_percentage"`
}

// Policy is the billing policy file: defaults plus per-complex overrides.
type Policy struct {
	Defaults  PolicyValues           `yaml:"defaults"`
	Complexes map[int64]PolicyValues `yaml:"complexes"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{Defaults: PolicyValues{
		LateFeeMonthlyRate: defaultLateFeeRate,
		DueDay:             defaultDueDay,
		QuorumPercentage:   defaultQuorumPercentage,
	}}
}

// LoadPolicy reads the YAML policy at path over the built-in defaults. An
// empty path returns the defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return policy, err
	}
	var file Policy
	if err := yaml.Unmarshal(data, &file); err != nil {
		return policy, fmt.Errorf("policy %s: %w", path, err)
	}
	policy.Defaults = mergeValues(policy.Defaults, file.Defaults)
	policy.Complexes = file.Complexes
	if err := policy.validate(); err != nil {
		return policy, fmt.Errorf("policy %s: %w", path, err)
	}
	return policy, nil
}

// ValuesFor returns the effective values for complexID.
func (p Policy) ValuesFor(complexID int64) PolicyValues {
	if p.Complexes != nil {
		if override, ok := p.Complexes[complexID]; ok {
			return mergeValues(p.Defaults, override)
		}
	}
	return p.Defaults
}

// DueDay returns the bill due day of complexID.
func (p Policy) DueDay(complexID int64) int {
	if day := p.ValuesFor(complexID).DueDay; day > 0 {
		return day
	}
	return defaultDueDay
}

// LateFeeMonthlyRate returns the late-fee monthly rate of complexID.
func (p Policy) LateFeeMonthlyRate(complexID int64) decimal.Decimal {
	rate, err := decimal.NewFromString(p.ValuesFor(complexID).LateFeeMonthlyRate)
	if err != nil {
		return decimal.RequireFromString(defaultLateFeeRate)
	}
	return rate
}

// QuorumPercentage returns the default assembly quorum of complexID.
func (p Policy) QuorumPercentage(complexID int64) float64 {
	if pct := p.ValuesFor(complexID).QuorumPercentage; pct > 0 {
		return pct
	}
	return defaultQuorumPercentage
}

func (p Policy) validate() error {
	check := func(label string, v PolicyValues) error {
		if v.LateFeeMonthlyRate != "" {
			rate, err := decimal.NewFromString(v.LateFeeMonthlyRate)
			if err != nil || rate.IsNegative() {
				return fmt.Errorf("%s: late_fee_monthly_rate must be a non-negative decimal", label)
			}
		}
		if v.DueDay < 0 || v.DueDay > 31 {
			return fmt.Errorf("%s: due_day must be between 1 and 31", label)
		}
		if v.QuorumPercentage < 0 || v.QuorumPercentage > 100 {
			return fmt.Errorf("%s: quorum_percentage must be between 0 and 100", label)
		}
		return nil
	}
	if err := check("defaults", p.Defaults); err != nil {
		return err
	}
	for id, v := range p.Complexes {
		if err := check(fmt.Sprintf("complex %d", id), v); err != nil {
			return err
		}
	}
	return nil
}

func mergeValues(base, override PolicyValues) PolicyValues {
	if override.LateFeeMonthlyRate != "" {
		base.LateFeeMonthlyRate = override.LateFeeMonthlyRate
	}
	if override.DueDay != 0 {
		base.DueDay = override.DueDay
	}
	if override.QuorumPercentage != 0 {
		base.QuorumPercentage = override.QuorumPercentage
	}
	return base
}
