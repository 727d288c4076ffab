package audit

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy controls auditor behaviour: how aggressively it reacts to findings
// and how long generated reports stay on disk.
type Policy struct {
	// RetentionDays prunes report directories older than this many days.
	RetentionDays int `yaml:"retentionDays"`
	// MaxReports caps the number of retained report directories regardless
	// of age. Zero disables the cap.
	MaxReports int `yaml:"maxReports"`
	// QuarantineOnMismatch freezes an asset when its share sum diverges
	// from the issued total.
	QuarantineOnMismatch bool `yaml:"quarantineOnMismatch"`
	// EmitEvents publishes audit.completed / audit.anomaly events on the
	// node journal.
	EmitEvents bool `yaml:"emitEvents"`
}

// DefaultPolicy is applied when no policy file is configured.
func DefaultPolicy() Policy {
	return Policy{
		RetentionDays:        90,
		MaxReports:           0,
		QuarantineOnMismatch: true,
		EmitEvents:           true,
	}
}

// LoadPolicy reads a YAML policy file, filling unset fields with defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if strings.TrimSpace(path) == "" {
		return policy, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("audit: read policy %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return policy, fmt.Errorf("audit: decode policy %q: %w", path, err)
	}
	if policy.RetentionDays < 0 {
		return policy, fmt.Errorf("audit: retentionDays must not be negative")
	}
	if policy.MaxReports < 0 {
		return policy, fmt.Errorf("audit: maxReports must not be negative")
	}
	return policy, nil
}
