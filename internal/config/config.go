// Package config loads n3dssmb's configuration from built-in defaults, a YAML
// file, and N3DSSMB_* environment variables, in that order of increasing
// precedence, the way the teacher's pkg/config does for its own server.
// Environment variables override only keys that the file sets, and are not
// read when no config file is found.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is n3dssmb's full runtime configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Target    TargetConfig    `mapstructure:"target"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	WebDAV    WebDAVConfig    `mapstructure:"webdav"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// LoggingConfig controls internal/logger's behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// TargetConfig holds the defaults used to build an smb1.Target once a
// console has been located.
type TargetConfig struct {
	Share          string        `mapstructure:"share" validate:"required"`
	Port           int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	ClientName     string        `mapstructure:"client_name" validate:"required"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"required,gt=0"`
}

// DiscoveryConfig tunes the three-strategy discovery pipeline.
type DiscoveryConfig struct {
	CachePath           string        `mapstructure:"cache_path"`
	WSDiscoveryTimeout  time.Duration `mapstructure:"ws_discovery_timeout" validate:"required,gt=0"`
	NetBIOSProbeTimeout time.Duration `mapstructure:"netbios_probe_timeout" validate:"required,gt=0"`
}

// WebDAVConfig configures the HTTP front end in internal/webdavbridge.
type WebDAVConfig struct {
	Host       string `mapstructure:"host" validate:"required"`
	Port       int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadOnly   bool   `mapstructure:"readonly"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	NumWorkers int    `mapstructure:"num_workers" validate:"required,min=1"`
}

// MetricsConfig controls the optional Prometheus metrics registration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// Load reads configuration from configPath (or the default location when
// empty), applies defaults for anything unset, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := GetDefaultConfig()
	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
			return nil, fmt.Errorf("config: unmarshal: %w", err)
		}
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("N3DSSMB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}
	return true, nil
}

// Validate runs go-playground/validator struct tags over cfg.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "n3dssmb")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "n3dssmb")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
