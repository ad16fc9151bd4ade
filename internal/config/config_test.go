package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "invoice-audit.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "http://localhost:9000", cfg.ERP.BaseURL)
	assert.Equal(t, 10, cfg.ERP.TimeoutSecs)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.QAModel)
	assert.Equal(t, 4096, cfg.Anthropic.MaxTokens)
	assert.Equal(t, "pixtral-large-latest", cfg.Mistral.OCRModel)
	assert.Equal(t, "local", cfg.OCR.Provider)
	assert.Equal(t, "pdftotext", cfg.OCR.PdfToTextPath)
	assert.Equal(t, "eng", cfg.OCR.TesseractLang)
	assert.Equal(t, "validation_rules.yaml", cfg.Rules.Path)
	assert.Equal(t, "incoming_invoices", cfg.Paths.IncomingDir)
	assert.Equal(t, "processed", cfg.Paths.ProcessedDir)
	assert.Equal(t, "reports", cfg.Paths.ReportsDir)
	assert.Equal(t, 10, cfg.Watch.IntervalSecs)
	assert.Equal(t, 2, cfg.Watch.MaxConcurrent)
	assert.False(t, cfg.Watch.FTP.Enabled)
	assert.Equal(t, 21, cfg.Watch.FTP.Port)
	assert.Equal(t, "/", cfg.Watch.FTP.RemoteDir)
	assert.Equal(t, 3, cfg.QA.TopK)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/invoices
erp:
  base_url: https://erp.internal/api
log:
  level: debug
  format: console
server:
  port: 9090
watch:
  interval_secs: 30
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/invoices", cfg.Store.DatabaseURL)
	assert.Equal(t, "https://erp.internal/api", cfg.ERP.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Watch.IntervalSecs)
	// Defaults still apply for unset values
	assert.Equal(t, "local", cfg.OCR.Provider)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("INVOICE_STORE_DRIVER", "postgres")
	t.Setenv("INVOICE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("INVOICE_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestValidateRun_AllPresent(t *testing.T) {
	cfg := &Config{}
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.ERP.BaseURL = "http://localhost:9000"

	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateRun_Missing(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key")
	assert.Contains(t, err.Error(), "erp.base_url")
}

func TestValidateRun_MistralProviderNeedsKey(t *testing.T) {
	cfg := &Config{}
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.ERP.BaseURL = "http://localhost:9000"
	cfg.OCR.Provider = "mistral"

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral.key")
}

func TestValidateWatch_FTPEnabled(t *testing.T) {
	cfg := &Config{}
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.ERP.BaseURL = "http://localhost:9000"
	cfg.Watch.FTP.Enabled = true

	err := cfg.Validate("watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch.ftp.host")
	assert.Contains(t, err.Error(), "watch.ftp.user")
}

func TestValidateAsk(t *testing.T) {
	cfg := &Config{}
	require.Error(t, cfg.Validate("ask"))

	cfg.Anthropic.Key = "sk-ant-key"
	assert.NoError(t, cfg.Validate("ask"))
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
