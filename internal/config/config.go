// File: internal/config/config.go
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration. Values come from the
// config file, SURVEYOR_* environment variables, and flag bindings, with
// viper resolving precedence.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	// Survey gets its marching orders from CLI flags, not the config file.
	Survey SurveyConfig `mapstructure:"-" yaml:"-"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BackendConfig tunes how the EDR API clients behave.
type BackendConfig struct {
	// CredentialDir is where profile files live. Supports ~ expansion.
	CredentialDir string `mapstructure:"credential_dir" yaml:"credential_dir"`
	// RequestTimeout bounds each individual API call.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	// PageSize is the number of process records requested per result page.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
	// PageRateLimit caps result-page requests per second against the server.
	PageRateLimit float64 `mapstructure:"page_rate_limit" yaml:"page_rate_limit"`
	// IgnoreTLSErrors disables certificate verification. Common on
	// self-signed on-prem Response servers.
	IgnoreTLSErrors bool `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
}

// SurveyConfig holds settings populated from CLI flags for a single run.
type SurveyConfig struct {
	Prefix    string
	Profile   string
	Cloud     bool
	Translate bool
	Days      int
	Minutes   int
	DefFile   string
	DefDir    string
	Query     string
	IOCFile   string
	IOCType   string
	Hostname  string
	Username  string
}

// OutputFilename derives the CSV path from the prefix flag.
func (s SurveyConfig) OutputFilename() string {
	if s.Prefix != "" {
		return s.Prefix + "-survey.csv"
	}
	return "survey.csv"
}

// SetDefaults initializes default values for configuration parameters that
// have a sensible out-of-the-box answer.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "surveyor")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("backend.credential_dir", "~/.carbonblack")
	v.SetDefault("backend.request_timeout", 90*time.Second)
	v.SetDefault("backend.page_size", 500)
	v.SetDefault("backend.page_rate_limit", 5.0)
	v.SetDefault("backend.ignore_tls_errors", false)
}
