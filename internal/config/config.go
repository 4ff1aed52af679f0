// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Browser() BrowserConfig
	Humanoid() HumanoidConfig
	Batch() BatchConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserExecutablePath(string)

	// Batch Setters
	SetBatchResultFile(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	BatchCfg    BatchConfig    `mapstructure:"batch" yaml:"batch"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Humanoid() HumanoidConfig { return c.BrowserCfg.Humanoid }
func (c *Config) Batch() BatchConfig       { return c.BatchCfg }

func (c *Config) SetBrowserHeadless(b bool)         { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserExecutablePath(p string) { c.BrowserCfg.ExecutablePath = p }
func (c *Config) SetBatchResultFile(path string)    { c.BatchCfg.ResultFile = path }

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

// DatabaseConfig holds the run history database connection details.
// An empty URL disables run history.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// ViewportConfig is the fixed window size applied to launched browsers.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// BrowserConfig holds settings for acquiring the browser session.
type BrowserConfig struct {
	Headless       bool           `mapstructure:"headless" yaml:"headless"`
	ExecutablePath string         `mapstructure:"executable_path" yaml:"executable_path"`
	DebugHost      string         `mapstructure:"debug_host" yaml:"debug_host"`
	DebugPort      int            `mapstructure:"debug_port" yaml:"debug_port"`
	ProfileDir     string         `mapstructure:"profile_dir" yaml:"profile_dir"`
	Viewport       ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	Args           []string       `mapstructure:"args" yaml:"args"`
	Stealth        bool           `mapstructure:"stealth" yaml:"stealth"`
	AttachTimeout  time.Duration  `mapstructure:"attach_timeout" yaml:"attach_timeout"`
	LaunchTimeout  time.Duration  `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	Humanoid       HumanoidConfig `mapstructure:"humanoid" yaml:"humanoid"`
}

// BatchConfig configures the command interpreter.
type BatchConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SelectorTimeout   time.Duration `mapstructure:"selector_timeout" yaml:"selector_timeout"`
	TryClickTimeout   time.Duration `mapstructure:"try_click_timeout" yaml:"try_click_timeout"`
	DefaultWait       time.Duration `mapstructure:"default_wait" yaml:"default_wait"`
	// SnapshotLimit is the maximum number of characters returned by snapshot.
	SnapshotLimit int    `mapstructure:"snapshot_limit" yaml:"snapshot_limit"`
	ResultFile    string `mapstructure:"result_file" yaml:"result_file"`
	// AutoAcquire makes a batch acquire the session before its first command.
	AutoAcquire bool `mapstructure:"auto_acquire" yaml:"auto_acquire"`
	// CommandRate caps commands per second. Zero disables pacing.
	CommandRate float64 `mapstructure:"command_rate" yaml:"command_rate"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
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
	v.SetDefault("logger.service_name", "browse")
	v.SetDefault("logger.log_file", "browse.log")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Database --
	v.SetDefault("database.url", "")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.executable_path", "")
	v.SetDefault("browser.debug_host", "127.0.0.1")
	v.SetDefault("browser.debug_port", 9222)
	v.SetDefault("browser.profile_dir", ".session")
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 720)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.attach_timeout", "3s")
	v.SetDefault("browser.launch_timeout", "30s")
	setHumanoidDefaults(v)

	// -- Batch --
	v.SetDefault("batch.navigation_timeout", "30s")
	v.SetDefault("batch.selector_timeout", "10s")
	v.SetDefault("batch.try_click_timeout", "2s")
	v.SetDefault("batch.default_wait", "1s")
	v.SetDefault("batch.snapshot_limit", 5000000)
	v.SetDefault("batch.result_file", "last_result.json")
	v.SetDefault("batch.auto_acquire", true)
	v.SetDefault("batch.command_rate", 0.0)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Accept the conventional DATABASE_URL as well.
	if err := v.BindEnv("database.url", "BROWSE_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("error binding database env: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BrowserCfg.DebugPort <= 0 || c.BrowserCfg.DebugPort > 65535 {
		return fmt.Errorf("browser.debug_port must be between 1 and 65535")
	}
	if c.BrowserCfg.ProfileDir == "" {
		return fmt.Errorf("browser.profile_dir is required")
	}
	if c.BrowserCfg.Viewport.Width <= 0 || c.BrowserCfg.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport dimensions must be positive")
	}
	if c.BatchCfg.SnapshotLimit <= 0 {
		return fmt.Errorf("batch.snapshot_limit must be a positive integer")
	}
	if c.BatchCfg.CommandRate < 0 {
		return fmt.Errorf("batch.command_rate cannot be negative")
	}
	if c.BatchCfg.NavigationTimeout <= 0 || c.BatchCfg.SelectorTimeout <= 0 {
		return fmt.Errorf("batch timeouts must be positive")
	}
	if err := c.BrowserCfg.Humanoid.Validate(); err != nil {
		return fmt.Errorf("browser.humanoid configuration invalid: %w", err)
	}
	return nil
}
