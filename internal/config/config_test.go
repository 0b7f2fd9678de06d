// File: internal/config/config_test.go
package config_test

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cafogleman/cb-response-surveyor/internal/config"
)

func TestSurveyConfig_OutputFilename(t *testing.T) {
	assert.Equal(t, "survey.csv", config.SurveyConfig{}.OutputFilename())
	assert.Equal(t, "incident42-survey.csv", config.SurveyConfig{Prefix: "incident42"}.OutputFilename())
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)

	var cfg config.Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "surveyor", cfg.Logger.ServiceName)
	assert.Equal(t, "~/.carbonblack", cfg.Backend.CredentialDir)
	assert.Equal(t, 90*time.Second, cfg.Backend.RequestTimeout)
	assert.Equal(t, 500, cfg.Backend.PageSize)
	assert.InDelta(t, 5.0, cfg.Backend.PageRateLimit, 0.001)
	assert.False(t, cfg.Backend.IgnoreTLSErrors)
}

// Config file values override defaults through viper's precedence rules.
func TestConfigOverridesDefaults(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("logger.level", "debug")
	v.Set("backend.page_size", 50)

	var cfg config.Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 50, cfg.Backend.PageSize)
}
