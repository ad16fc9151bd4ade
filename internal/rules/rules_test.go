package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "business_rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullFile(t *testing.T) {
	path := writeRules(t, `
validation_rules:
  mandatory_fields:
    - invoice_no
    - vendor_name
    - total_amount
  price_tolerance_percent: 2.5
  auto_reject_if_po_missing: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"invoice_no", "vendor_name", "total_amount"}, cfg.MandatoryFields)
	assert.Equal(t, 2.5, cfg.PriceTolerancePercent)
	assert.False(t, cfg.AutoRejectIfPOMissing)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeRules(t, `
validation_rules:
  price_tolerance_percent: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Default().MandatoryFields, cfg.MandatoryFields)
	assert.Equal(t, 10.0, cfg.PriceTolerancePercent)
	assert.True(t, cfg.AutoRejectIfPOMissing)
}

func TestLoadExplicitFalseIsNotDefaulted(t *testing.T) {
	path := writeRules(t, `
validation_rules:
  auto_reject_if_po_missing: false
  price_tolerance_percent: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.AutoRejectIfPOMissing)
	assert.Equal(t, 0.0, cfg.PriceTolerancePercent, "explicit zero tolerance sticks")
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathFallsBack(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadBadYAML(t *testing.T) {
	path := writeRules(t, "validation_rules: [broken")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, []string{"invoice_no", "total_amount"}, cfg.MandatoryFields)
	assert.Equal(t, 5.0, cfg.PriceTolerancePercent)
	assert.True(t, cfg.AutoRejectIfPOMissing)
}
