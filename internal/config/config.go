package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/UnknownOlympus/pincheck/internal/provider"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. PINCHECK_RUN_PROVIDERS.
const EnvPrefix = "PINCHECK"

// Config holds the configuration of a check run.
//
// Fields:
// - Env: The current environment (local, development, production), selects the log format.
// - Input/Output: The CSV files read and written by the run.
// - Run: Provider order and pacing.
// - Browser/Appium: The automation backends.
// - Geocoder: The optional address fallback.
// - Monitoring: The Prometheus/health server, disabled when the port is 0.
// - Providers: Per-provider profile overrides merged over the built-in profiles.
type Config struct {
	Env        string                      `mapstructure:"env"`
	Input      InputConfig                 `mapstructure:"input"`
	Output     OutputConfig                `mapstructure:"output"`
	Run        RunConfig                   `mapstructure:"run"`
	Browser    BrowserConfig               `mapstructure:"browser"`
	Appium     AppiumConfig                `mapstructure:"appium"`
	Geocoder   GeocoderConfig              `mapstructure:"geocoder"`
	Monitoring MonitoringConfig            `mapstructure:"monitoring"`
	Providers  map[string]provider.Profile `mapstructure:"providers"`
}

// InputConfig describes the pincode input file.
type InputConfig struct {
	Path   string `mapstructure:"path"`
	Header bool   `mapstructure:"header"` // Header marks a first row holding column names.
	Column string `mapstructure:"column"` // Column is the pincode column of a headered file.
}

// OutputConfig names the two output files.
type OutputConfig struct {
	Results string `mapstructure:"results"`
	Invalid string `mapstructure:"invalid"`
}

// RunConfig controls which providers run and how fast.
type RunConfig struct {
	Providers    []string      `mapstructure:"providers"`     // Providers in column order.
	PincodeDelay time.Duration `mapstructure:"pincode_delay"` // PincodeDelay is the pause between pincodes.
}

// BrowserConfig configures the DevTools backend used by the web providers.
type BrowserConfig struct {
	ControlURL        string        `mapstructure:"control_url"`
	Bin               string        `mapstructure:"bin"`
	Headless          bool          `mapstructure:"headless"`
	ViewportWidth     int           `mapstructure:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
}

// AppiumConfig configures the WebDriver backend used by the Zepto app provider.
// Capabilities is a JSON object merged over DefaultCapabilities; it is kept as a string
// because capability names are case-sensitive.
type AppiumConfig struct {
	URL            string        `mapstructure:"url"`
	Capabilities   string        `mapstructure:"capabilities"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// DefaultCapabilities targets the Zepto app on a local emulator.
func DefaultCapabilities() map[string]any {
	return map[string]any{
		"platformName":   "Android",
		"automationName": "UiAutomator2",
		"deviceName":     "emulator-5554",
		"appPackage":     "com.zeptoconsumerapp",
		"appActivity":    "com.zeptoconsumerapp.ui.splash.SplashActivity",
		"noReset":        true,
	}
}

// DesiredCapabilities returns the defaults with the configured capabilities applied on top.
func (a AppiumConfig) DesiredCapabilities() (map[string]any, error) {
	caps := DefaultCapabilities()
	if strings.TrimSpace(a.Capabilities) == "" {
		return caps, nil
	}

	var extra map[string]any
	if err := json.Unmarshal([]byte(a.Capabilities), &extra); err != nil {
		return nil, fmt.Errorf("%w: appium capabilities: %w", ErrDecode, err)
	}
	if err := mergo.Merge(&caps, extra, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("%w: appium capabilities: %w", ErrDecode, err)
	}
	return caps, nil
}

// GeocoderConfig enables the pincode to address fallback. An empty Type disables it.
type GeocoderConfig struct {
	Type      string `mapstructure:"type"`
	APIKey    string `mapstructure:"api_key"`
	RateLimit int    `mapstructure:"rate_limit"`
	BaseURL   string `mapstructure:"base_url"`
}

// MonitoringConfig configures the metrics and health server.
type MonitoringConfig struct {
	Port int `mapstructure:"port"`
}

// Errors returned by Load.
var (
	ErrConfigFile = errors.New("failed to read configuration file")
	ErrDecode     = errors.New("failed to parse configuration")
	ErrInvalid    = errors.New("invalid configuration")
)

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"input":     "input.path",
	"output":    "output.results",
	"invalid":   "output.invalid",
	"providers": "run.providers",
	"header":    "input.header",
	"column":    "input.column",
}

const maxPort = 65535

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")
	v.SetDefault("input.path", "")
	v.SetDefault("input.header", false)
	v.SetDefault("input.column", "pincode")
	v.SetDefault("output.results", "results.csv")
	v.SetDefault("output.invalid", "invalid_pincodes.csv")
	v.SetDefault("run.providers", []string{
		string(provider.ProviderTypeZeptoWeb),
		string(provider.ProviderTypeBlinkit),
		string(provider.ProviderTypeInstamart),
	})
	v.SetDefault("run.pincode_delay", time.Duration(0))
	v.SetDefault("browser.control_url", "")
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("appium.url", "http://127.0.0.1:4723")
	v.SetDefault("appium.capabilities", "")
	v.SetDefault("appium.poll_interval", 500*time.Millisecond)
	v.SetDefault("appium.command_timeout", 60*time.Second)
	v.SetDefault("geocoder.type", "")
	v.SetDefault("geocoder.api_key", "")
	v.SetDefault("geocoder.rate_limit", 0)
	v.SetDefault("geocoder.base_url", "")
	v.SetDefault("monitoring.port", 0)
}

// Load reads .env (if present), defaults, the optional config file, PINCHECK_* environment
// variables and the flags listed in FlagKeys, in increasing order of precedence.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfigFile, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("%w: flag %s: %w", ErrDecode, name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Input.Path == "" {
		return fmt.Errorf("%w: input path is required", ErrInvalid)
	}
	if c.Input.Header && c.Input.Column == "" {
		return fmt.Errorf("%w: input column is required for a headered file", ErrInvalid)
	}
	if len(c.Run.Providers) == 0 {
		return fmt.Errorf("%w: at least one provider is required", ErrInvalid)
	}
	if c.Run.PincodeDelay < 0 {
		return fmt.Errorf("%w: pincode delay must not be negative", ErrInvalid)
	}
	if c.Monitoring.Port < 0 || c.Monitoring.Port > maxPort {
		return fmt.Errorf("%w: monitoring port %d out of range", ErrInvalid, c.Monitoring.Port)
	}
	if _, err := c.Appium.DesiredCapabilities(); err != nil {
		return err
	}
	return nil
}

// ProviderTypes returns the configured providers in column order.
func (c *Config) ProviderTypes() []provider.ProviderType {
	types := make([]provider.ProviderType, 0, len(c.Run.Providers))
	for _, name := range c.Run.Providers {
		types = append(types, provider.ProviderType(strings.TrimSpace(name)))
	}
	return types
}

// Override returns the profile override configured for t, if any.
func (c *Config) Override(t provider.ProviderType) provider.Profile {
	return c.Providers[string(t)]
}
