// Package config loads lnvpsctl configuration from YAML and LNVPS_ environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/lnvps/lnvps-go"
	"github.com/lnvps/lnvps-go/validation"
)

// EnvPrefix prefixes environment overrides, e.g. LNVPS_API_BASE_URL.
const EnvPrefix = "LNVPS"

// Config is the full lnvpsctl configuration.
type Config struct {
	API     APIConfig     `yaml:"api" mapstructure:"api"`
	Auth    AuthConfig    `yaml:"auth" mapstructure:"auth"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Payment PaymentConfig `yaml:"payment" mapstructure:"payment"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	NATS    NATSConfig    `yaml:"nats" mapstructure:"nats"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// APIConfig locates the storefront API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
}

// AuthConfig supplies the signing key. Without a key requests are anonymous.
type AuthConfig struct {
	// PrivateKey is a hex secp256k1 key. KeyFile takes precedence.
	PrivateKey string `yaml:"private_key,omitempty" mapstructure:"private_key" validate:"omitempty,hexadecimal"`
	KeyFile    string `yaml:"key_file,omitempty" mapstructure:"key_file"`
}

// CacheConfig selects the cache store. An empty Path keeps it in memory.
type CacheConfig struct {
	Path       string        `yaml:"path,omitempty" mapstructure:"path"`
	MethodsTTL time.Duration `yaml:"methods_ttl" mapstructure:"methods_ttl" validate:"gt=0"`
}

// PaymentConfig tunes the payment flow.
type PaymentConfig struct {
	Method        string        `yaml:"method,omitempty" mapstructure:"method"`
	PollInterval  time.Duration `yaml:"poll_interval" mapstructure:"poll_interval" validate:"gt=0"`
	PollTimeout   time.Duration `yaml:"poll_timeout" mapstructure:"poll_timeout" validate:"gtefield=PollInterval"`
	DebounceDelay time.Duration `yaml:"debounce_delay" mapstructure:"debounce_delay" validate:"gt=0"`
}

// ServerConfig configures the HTTP surfaces.
type ServerConfig struct {
	Addr           string `yaml:"addr" mapstructure:"addr" validate:"required"`
	CallbackSecret string `yaml:"callback_secret,omitempty" mapstructure:"callback_secret"`

	// CallbackKeys are the hex public keys allowed to sign callbacks.
	CallbackKeys []string `yaml:"callback_keys,omitempty" mapstructure:"callback_keys" validate:"dive,len=64,hexadecimal"`
	PublicURL    string   `yaml:"public_url,omitempty" mapstructure:"public_url" validate:"omitempty,url"`
}

// NATSConfig enables the NATS bridge when URL is set.
type NATSConfig struct {
	URL string `yaml:"url,omitempty" mapstructure:"url" validate:"omitempty,url"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "https://api.lnvps.net",
			Timeout: lnvps.DefaultTimeouts.RequestTimeout,
		},
		Cache: CacheConfig{
			MethodsTTL: 24 * time.Hour,
		},
		Payment: PaymentConfig{
			PollInterval:  lnvps.DefaultTimeouts.PollInterval,
			PollTimeout:   lnvps.DefaultTimeouts.PollTimeout,
			DebounceDelay: lnvps.DefaultTimeouts.DebounceDelay,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns ~/.lnvps/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".lnvps", "config.yaml")
}

// Load reads path, or the default locations when path is empty, applies
// environment overrides and validates the result. A missing default file is
// not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Dir(DefaultPath()))
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("auth.private_key", d.Auth.PrivateKey)
	v.SetDefault("auth.key_file", d.Auth.KeyFile)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.methods_ttl", d.Cache.MethodsTTL)
	v.SetDefault("payment.method", d.Payment.Method)
	v.SetDefault("payment.poll_interval", d.Payment.PollInterval)
	v.SetDefault("payment.poll_timeout", d.Payment.PollTimeout)
	v.SetDefault("payment.debounce_delay", d.Payment.DebounceDelay)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.callback_secret", d.Server.CallbackSecret)
	v.SetDefault("server.callback_keys", d.Server.CallbackKeys)
	v.SetDefault("server.public_url", d.Server.PublicURL)
	v.SetDefault("nats.url", d.NATS.URL)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks field constraints and the API base URL shape.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	if err := validation.ValidateBaseURL(c.API.BaseURL); err != nil {
		return lnvps.NewValidationError("api.base_url", err)
	}
	return nil
}

// Timeouts returns the SDK timeout configuration.
func (c *Config) Timeouts() lnvps.TimeoutConfig {
	return lnvps.TimeoutConfig{
		RequestTimeout: c.API.Timeout,
		PollInterval:   c.Payment.PollInterval,
		PollTimeout:    c.Payment.PollTimeout,
		DebounceDelay:  c.Payment.DebounceDelay,
	}
}

// PrivateKey returns the configured signing key, reading KeyFile if set.
// It returns "" when no key is configured.
func (c *Config) PrivateKey() (string, error) {
	if c.Auth.KeyFile == "" {
		return c.Auth.PrivateKey, nil
	}
	b, err := os.ReadFile(c.Auth.KeyFile)
	if err != nil {
		return "", fmt.Errorf("read key file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Write saves the configuration to path, creating parent directories.
// Existing files are not overwritten unless force is set.
func (c *Config) Write(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
