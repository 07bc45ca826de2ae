// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/dossier-cli/api/schemas"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig               `mapstructure:"logger" yaml:"logger"`
	Engine     EngineConfig               `mapstructure:"engine" yaml:"engine"`
	Report     ReportConfig               `mapstructure:"report" yaml:"report"`
	Collectors map[string]CollectorConfig `mapstructure:"collectors" yaml:"collectors"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// EngineConfig configures the orchestration engine.
type EngineConfig struct {
	// Concurrency bounds the number of collectors running in parallel.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`

	// Deadline is the investigation-level deadline.
	Deadline time.Duration `mapstructure:"deadline" yaml:"deadline"`

	// CollectorTimeout is the per-collector budget covering rate-limiter
	// waits, the external call, and all retries.
	CollectorTimeout time.Duration `mapstructure:"collector_timeout" yaml:"collector_timeout"`

	// MaxRetries bounds re-invocations after a transient network error.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// RetryBackoff is the base delay before the first retry; it doubles on
	// each subsequent attempt.
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
}

// ReportConfig configures report rendering.
type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// CollectorConfig is the documented per-collector configuration block.
// Unknown collectors in the config file are ignored; collectors missing from
// the file run with defaults.
type CollectorConfig struct {
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Enabled *bool         `mapstructure:"enabled" yaml:"enabled"`
}

// SettingsFor resolves the runtime settings for one collector, applying the
// engine-level timeout where the collector block sets none. Collectors are
// enabled unless the config explicitly disables them.
func (c *Config) SettingsFor(name string) schemas.CollectorSettings {
	s := schemas.CollectorSettings{
		Timeout: c.Engine.CollectorTimeout,
		Enabled: true,
	}
	cc, ok := c.Collectors[name]
	if !ok {
		return s
	}
	s.APIKey = cc.APIKey
	if cc.Timeout > 0 {
		s.Timeout = cc.Timeout
	}
	if cc.Enabled != nil {
		s.Enabled = *cc.Enabled
	}
	return s
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "dossier-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Engine --
	v.SetDefault("engine.concurrency", 8)
	v.SetDefault("engine.deadline", "2m")
	v.SetDefault("engine.collector_timeout", "30s")
	v.SetDefault("engine.max_retries", 2)
	v.SetDefault("engine.retry_backoff", "250ms")

	// -- Report --
	v.SetDefault("report.format", "structured")
	v.SetDefault("report.output", "")

	// -- Collectors --
	v.SetDefault("collectors.crtsh.enabled", true)
	v.SetDefault("collectors.shodan.enabled", true)
	v.SetDefault("collectors.userenum.enabled", true)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with pure defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates and validates a configuration from a viper
// instance that has already read files, env vars and flag bindings.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Engine.Concurrency <= 0 {
		return fmt.Errorf("engine.concurrency must be a positive integer")
	}
	if c.Engine.Deadline <= 0 {
		return fmt.Errorf("engine.deadline must be a positive duration")
	}
	if c.Engine.CollectorTimeout <= 0 {
		return fmt.Errorf("engine.collector_timeout must be a positive duration")
	}
	if c.Engine.MaxRetries < 0 {
		return fmt.Errorf("engine.max_retries must not be negative")
	}
	switch c.Report.Format {
	case "structured", "tabular":
	default:
		return fmt.Errorf("report.format must be 'structured' or 'tabular', got %q", c.Report.Format)
	}
	return nil
}
