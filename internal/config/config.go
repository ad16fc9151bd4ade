package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	ERP       ERPConfig       `yaml:"erp" mapstructure:"erp"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Mistral   MistralConfig   `yaml:"mistral" mapstructure:"mistral"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Rules     RulesConfig     `yaml:"rules" mapstructure:"rules"`
	Paths     PathsConfig     `yaml:"paths" mapstructure:"paths"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
	QA        QAConfig        `yaml:"qa" mapstructure:"qa"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ERPConfig holds the ERP lookup API settings.
type ERPConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	QAModel   string `yaml:"qa_model" mapstructure:"qa_model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// MistralConfig holds Mistral API settings for the OCR provider.
type MistralConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	OCRModel string `yaml:"ocr_model" mapstructure:"ocr_model"`
}

// OCRConfig configures document text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	TesseractLang string `yaml:"tesseract_lang" mapstructure:"tesseract_lang"`
}

// RulesConfig points at the business rules file.
type RulesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PathsConfig holds the working directories for the invoice pipeline.
type PathsConfig struct {
	IncomingDir  string `yaml:"incoming_dir" mapstructure:"incoming_dir"`
	ProcessedDir string `yaml:"processed_dir" mapstructure:"processed_dir"`
	ReportsDir   string `yaml:"reports_dir" mapstructure:"reports_dir"`
}

// WatchConfig configures continuous directory monitoring.
type WatchConfig struct {
	IntervalSecs  int       `yaml:"interval_secs" mapstructure:"interval_secs"`
	MaxConcurrent int       `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	FTP           FTPConfig `yaml:"ftp" mapstructure:"ftp"`
}

// FTPConfig configures the optional FTP inbox sync.
type FTPConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Host      string `yaml:"host" mapstructure:"host"`
	Port      int    `yaml:"port" mapstructure:"port"`
	User      string `yaml:"user" mapstructure:"user"`
	Password  string `yaml:"password" mapstructure:"password"`
	RemoteDir string `yaml:"remote_dir" mapstructure:"remote_dir"`
}

// QAConfig configures the report Q&A assistant.
type QAConfig struct {
	TopK int `yaml:"top_k" mapstructure:"top_k"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "invoice-audit.db")
	v.SetDefault("erp.base_url", "http://localhost:9000")
	v.SetDefault("erp.timeout_secs", 10)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.qa_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("mistral.ocr_model", "pixtral-large-latest")
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.tesseract_lang", "eng")
	v.SetDefault("rules.path", "validation_rules.yaml")
	v.SetDefault("paths.incoming_dir", "incoming_invoices")
	v.SetDefault("paths.processed_dir", "processed")
	v.SetDefault("paths.reports_dir", "reports")
	v.SetDefault("watch.interval_secs", 10)
	v.SetDefault("watch.max_concurrent", 2)
	v.SetDefault("watch.ftp.port", 21)
	v.SetDefault("watch.ftp.remote_dir", "/")
	v.SetDefault("qa.top_k", 3)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required for the given command are set.
func (c *Config) Validate(command string) error {
	var missing []string

	need := func(val, name string) {
		if val == "" {
			missing = append(missing, name)
		}
	}

	switch command {
	case "run", "watch", "serve":
		need(c.Anthropic.Key, "anthropic.key")
		need(c.ERP.BaseURL, "erp.base_url")
		if c.OCR.Provider == "mistral" {
			need(c.Mistral.Key, "mistral.key")
		}
	case "ask":
		need(c.Anthropic.Key, "anthropic.key")
	}

	if command == "watch" && c.Watch.FTP.Enabled {
		need(c.Watch.FTP.Host, "watch.ftp.host")
		need(c.Watch.FTP.User, "watch.ftp.user")
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings for %s: %s", command, strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
