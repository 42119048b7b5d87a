// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Field keys recognized by the DLS search form, in the order they are applied.
// The order matters: each select narrows the options of the one after it.
var FieldKeys = []string{
	"governorate",
	"directorate",
	"village",
	"basin",
	"sector",
	"parcel",
}

// Wait strategies for the settle and render pauses.
const (
	// WaitFixed sleeps for the full configured delay.
	WaitFixed = "fixed"
	// WaitIdle polls for network idleness and returns early, capped at the configured delay.
	WaitIdle = "idle"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Form    FormConfig    `mapstructure:"form" yaml:"form"`
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

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host               string        `mapstructure:"host" yaml:"host"`
	Port               int           `mapstructure:"port" yaml:"port"`
	MaxBodyBytes       int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	// RequestTimeout caps a whole request when positive. Zero leaves only the
	// per-operation browser timeouts.
	RequestTimeout     time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins" yaml:"cors_allowed_origins"`
}

// Addr returns the host:port the server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ViewportConfig is the browser window size in CSS pixels.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless         bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath         string         `mapstructure:"exec_path" yaml:"exec_path"`
	NoSandbox        bool           `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	DisableGPU       bool           `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	Args             []string       `mapstructure:"args" yaml:"args"`
	Viewport         ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	OperationTimeout time.Duration  `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	// MaxSessions bounds concurrent browser processes. Zero means unbounded.
	MaxSessions int `mapstructure:"max_sessions" yaml:"max_sessions"`
}

// FormConfig describes the target page and the pacing of the form interaction.
type FormConfig struct {
	TargetURL       string            `mapstructure:"target_url" yaml:"target_url"`
	Selectors       map[string]string `mapstructure:"selectors" yaml:"selectors"`
	SettleDelay     time.Duration     `mapstructure:"settle_delay" yaml:"settle_delay"`
	FieldDelay      time.Duration     `mapstructure:"field_delay" yaml:"field_delay"`
	RenderDelay     time.Duration     `mapstructure:"render_delay" yaml:"render_delay"`
	IdleMaxInflight int               `mapstructure:"idle_max_inflight" yaml:"idle_max_inflight"`
	IdleQuietPeriod time.Duration     `mapstructure:"idle_quiet_period" yaml:"idle_quiet_period"`
	WaitStrategy    string            `mapstructure:"wait_strategy" yaml:"wait_strategy"`
}

// defaultSelectors are the ids of the search form's select controls.
var defaultSelectors = map[string]string{
	"governorate": "#form-gov-select",
	"directorate": "#form-directorate-select",
	"village":     "#form-village-select",
	"basin":       "#form-hode-select",
	"sector":      "#form-sector-select",
	"parcel":      "#form-parcel-select",
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "dlsmap")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Server --
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("server.request_timeout", "0s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors_allowed_origins", []string{"*"})

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.viewport.width", 1920)
	v.SetDefault("browser.viewport.height", 1080)
	v.SetDefault("browser.operation_timeout", "60s")
	v.SetDefault("browser.max_sessions", 0)

	// -- Form --
	v.SetDefault("form.target_url", "https://maps.dls.gov.jo/dlsweb/")
	// One default per key so a config file can override a single selector.
	for _, key := range FieldKeys {
		v.SetDefault("form.selectors."+key, defaultSelectors[key])
	}
	v.SetDefault("form.settle_delay", "3s")
	v.SetDefault("form.field_delay", "500ms")
	v.SetDefault("form.render_delay", "5s")
	v.SetDefault("form.idle_max_inflight", 2)
	v.SetDefault("form.idle_quiet_period", "500ms")
	v.SetDefault("form.wait_strategy", WaitFixed)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// PORT and PUPPETEER_EXECUTABLE_PATH are the names deployment platforms already set.
	if err := v.BindEnv("server.port", "DLSMAP_SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("error binding server.port: %w", err)
	}
	if err := v.BindEnv("browser.exec_path", "DLSMAP_BROWSER_EXEC_PATH", "PUPPETEER_EXECUTABLE_PATH"); err != nil {
		return nil, fmt.Errorf("error binding browser.exec_path: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Paths may be written as ~/...
	for _, p := range []*string{&cfg.Logger.LogFile, &cfg.Browser.ExecPath} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return nil, fmt.Errorf("error expanding path %q: %w", *p, err)
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Browser.Validate(); err != nil {
		return err
	}
	return c.Form.Validate()
}

// Validate checks the server settings.
func (s *ServerConfig) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if s.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be a positive integer")
	}
	if s.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout must not be negative")
	}
	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be a positive duration")
	}
	return nil
}

// Validate checks the browser settings.
func (b *BrowserConfig) Validate() error {
	if b.Viewport.Width <= 0 || b.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport width and height must be positive")
	}
	if b.OperationTimeout <= 0 {
		return fmt.Errorf("browser.operation_timeout must be a positive duration")
	}
	if b.MaxSessions < 0 {
		return fmt.Errorf("browser.max_sessions must not be negative")
	}
	return nil
}

// Validate checks the form settings.
func (f *FormConfig) Validate() error {
	if f.TargetURL == "" {
		return fmt.Errorf("form.target_url is required")
	}
	for _, key := range FieldKeys {
		if f.Selectors[key] == "" {
			return fmt.Errorf("form.selectors.%s is required", key)
		}
	}
	if f.SettleDelay < 0 || f.FieldDelay < 0 || f.RenderDelay < 0 {
		return fmt.Errorf("form delays must not be negative")
	}
	if f.IdleMaxInflight < 0 {
		return fmt.Errorf("form.idle_max_inflight must not be negative")
	}
	if f.IdleQuietPeriod <= 0 {
		return fmt.Errorf("form.idle_quiet_period must be a positive duration")
	}
	switch f.WaitStrategy {
	case WaitFixed, WaitIdle:
	default:
		return fmt.Errorf("form.wait_strategy must be %q or %q, got %q", WaitFixed, WaitIdle, f.WaitStrategy)
	}
	return nil
}
