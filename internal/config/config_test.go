// File: internal/config/config_test.go
package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "dlsmap", cfg.Logger.ServiceName)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.Zero(t, cfg.Server.RequestTimeout, "no whole-request deadline unless configured")
	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.NoSandbox)
	assert.Equal(t, 1920, cfg.Browser.Viewport.Width)
	assert.Equal(t, 1080, cfg.Browser.Viewport.Height)
	assert.Equal(t, 60*time.Second, cfg.Browser.OperationTimeout)
	assert.Zero(t, cfg.Browser.MaxSessions)
	assert.Equal(t, "https://maps.dls.gov.jo/dlsweb/", cfg.Form.TargetURL)
	assert.Equal(t, 3*time.Second, cfg.Form.SettleDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Form.FieldDelay)
	assert.Equal(t, 5*time.Second, cfg.Form.RenderDelay)
	assert.Equal(t, 2, cfg.Form.IdleMaxInflight)
	assert.Equal(t, WaitFixed, cfg.Form.WaitStrategy)
	assert.Equal(t, "#form-hode-select", cfg.Form.Selectors["basin"])

	for _, key := range FieldKeys {
		assert.NotEmpty(t, cfg.Form.Selectors[key], "selector for %s should have a default", key)
	}
	require.NoError(t, cfg.Validate(), "defaults must validate")
}

func TestServerConfig_Addr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8080}
	assert.Equal(t, "127.0.0.1:8080", s.Addr())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port must be between 1 and 65535"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port must be between 1 and 65535"},
		{"body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "server.max_body_bytes"},
		{"viewport", func(c *Config) { c.Browser.Viewport.Width = 0 }, "browser.viewport"},
		{"operation timeout", func(c *Config) { c.Browser.OperationTimeout = 0 }, "browser.operation_timeout"},
		{"max sessions", func(c *Config) { c.Browser.MaxSessions = -1 }, "browser.max_sessions"},
		{"target url", func(c *Config) { c.Form.TargetURL = "" }, "form.target_url is required"},
		{"missing selector", func(c *Config) { delete(c.Form.Selectors, "sector") }, "form.selectors.sector is required"},
		{"negative delay", func(c *Config) { c.Form.FieldDelay = -time.Second }, "form delays must not be negative"},
		{"wait strategy", func(c *Config) { c.Form.WaitStrategy = "eventually" }, "form.wait_strategy"},
		{"request timeout", func(c *Config) { c.Server.RequestTimeout = -time.Second }, "server.request_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("request timeout is optional", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Server.RequestTimeout = 0
		assert.NoError(t, cfg.Validate())
		cfg.Server.RequestTimeout = 10 * time.Minute
		assert.NoError(t, cfg.Validate())
	})

	t.Run("idle strategy is valid", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Form.WaitStrategy = WaitIdle
		assert.NoError(t, cfg.Validate())
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
server:
  port: 8081
form:
  wait_strategy: idle
  render_delay: 2s
  selectors:
    basin: "#basin"
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 8081, cfg.Server.Port)
		assert.Equal(t, WaitIdle, cfg.Form.WaitStrategy)
		assert.Equal(t, 2*time.Second, cfg.Form.RenderDelay)
		assert.Equal(t, "#basin", cfg.Form.Selectors["basin"])
		// Untouched selectors keep their defaults.
		assert.Equal(t, "#form-gov-select", cfg.Form.Selectors["governorate"])
		for _, key := range FieldKeys {
			if key != "basin" {
				assert.Equal(t, defaultSelectors[key], cfg.Form.Selectors[key], key)
			}
		}
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("form.wait_strategy", "sometimes")

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("PORT Environment Variable", func(t *testing.T) {
		t.Setenv("PORT", "4321")
		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 4321, cfg.Server.Port)
	})

	t.Run("Browser Executable Override", func(t *testing.T) {
		t.Setenv("PUPPETEER_EXECUTABLE_PATH", "/usr/bin/chromium")
		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/chromium", cfg.Browser.ExecPath)
	})

	t.Run("Prefixed Variable Wins", func(t *testing.T) {
		t.Setenv("PUPPETEER_EXECUTABLE_PATH", "/usr/bin/chromium")
		t.Setenv("DLSMAP_BROWSER_EXEC_PATH", "/opt/chrome/chrome")
		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "/opt/chrome/chrome", cfg.Browser.ExecPath)
	})

	t.Run("Home Directory Expansion", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		homedir.DisableCache = true
		t.Cleanup(func() { homedir.DisableCache = false })

		v := viper.New()
		SetDefaults(v)
		v.Set("logger.log_file", "~/logs/dlsmap.log")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "logs", "dlsmap.log"), cfg.Logger.LogFile)
		assert.Empty(t, cfg.Browser.ExecPath, "Empty paths stay empty")
	})
}
