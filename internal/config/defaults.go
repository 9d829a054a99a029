package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/JohnDeved/n3ds-smb/internal/netbios"
)

// GetDefaultConfig returns a Config populated entirely with defaults; Load
// starts from this and overlays whatever the file/environment provide.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills any zero-valued field of cfg with its default.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTargetDefaults(&cfg.Target)
	applyDiscoveryDefaults(&cfg.Discovery)
	applyWebDAVDefaults(&cfg.WebDAV)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
}

func applyTargetDefaults(cfg *TargetConfig) {
	if cfg.Share == "" {
		cfg.Share = "microSD"
	}
	if cfg.Port == 0 {
		cfg.Port = netbios.DefaultServicePort
	}
	if cfg.ClientName == "" {
		cfg.ClientName = "3DSCLIENT"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
}

func applyDiscoveryDefaults(cfg *DiscoveryConfig) {
	if cfg.CachePath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.CachePath = filepath.Join(home, ".n3ds_smb_cache")
		}
	}
	if cfg.WSDiscoveryTimeout == 0 {
		cfg.WSDiscoveryTimeout = 3 * time.Second
	}
	if cfg.NetBIOSProbeTimeout == 0 {
		cfg.NetBIOSProbeTimeout = 150 * time.Millisecond
	}
}

func applyWebDAVDefaults(cfg *WebDAVConfig) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.NumWorkers == 0 {
		cfg.NumWorkers = 4
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}
