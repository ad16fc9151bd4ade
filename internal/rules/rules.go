// Package rules loads the business validation rules consumed by the
// validation engine. Rules are an explicit value threaded into each
// validation call, never ambient state.
package rules

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Config holds the rule set for one validation run. MandatoryFields is
// checked in declared order, which fixes discrepancy ordering.
type Config struct {
	MandatoryFields       []string `yaml:"mandatory_fields" json:"mandatory_fields"`
	PriceTolerancePercent float64  `yaml:"price_tolerance_percent" json:"price_tolerance_percent"`
	AutoRejectIfPOMissing bool     `yaml:"auto_reject_if_po_missing" json:"auto_reject_if_po_missing"`
}

// Default returns the built-in rule set used when no rules file is
// configured.
func Default() Config {
	return Config{
		MandatoryFields:       []string{"invoice_no", "total_amount"},
		PriceTolerancePercent: 5.0,
		AutoRejectIfPOMissing: true,
	}
}

// rulesFile mirrors the on-disk layout: rules live under a
// validation_rules block so the same file can carry prompt and persona
// configuration for other tools.
type rulesFile struct {
	ValidationRules struct {
		MandatoryFields       []string `yaml:"mandatory_fields"`
		PriceTolerancePercent *float64 `yaml:"price_tolerance_percent"`
		AutoRejectIfPOMissing *bool    `yaml:"auto_reject_if_po_missing"`
	} `yaml:"validation_rules"`
}

// Load reads a YAML rules file. A missing file is not an error: the
// defaults apply. Keys absent from the file also fall back to their
// defaults individually.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, eris.Wrapf(err, "rules: read %s", path)
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return cfg, eris.Wrapf(err, "rules: parse %s", path)
	}

	if f.ValidationRules.MandatoryFields != nil {
		cfg.MandatoryFields = f.ValidationRules.MandatoryFields
	}
	if f.ValidationRules.PriceTolerancePercent != nil {
		cfg.PriceTolerancePercent = *f.ValidationRules.PriceTolerancePercent
	}
	if f.ValidationRules.AutoRejectIfPOMissing != nil {
		cfg.AutoRejectIfPOMissing = *f.ValidationRules.AutoRejectIfPOMissing
	}
	return cfg, nil
}
