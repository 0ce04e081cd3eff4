package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when GYMBOOK_CONFIG_PATH is not set.
const DefaultPath = "configs/config.yaml"

type Config struct {
	App struct {
		Name     string `yaml:"name"`
		LogLevel string `yaml:"log_level"`
		Timezone string `yaml:"timezone"`
	} `yaml:"app"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Facility struct {
		Path                 string `yaml:"path"`
		WatchIntervalSeconds int    `yaml:"watch_interval_seconds"`
	} `yaml:"facility"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	API struct {
		Port              int     `yaml:"port"`
		AdminAPIKey       string  `yaml:"admin_api_key"`
		RequestTimeoutSec int     `yaml:"request_timeout_seconds"`
		SubmitRatePerMin  float64 `yaml:"submit_rate_per_minute"`
		SubmitBurst       int     `yaml:"submit_burst"`
		TrustProxyHeaders bool    `yaml:"trust_proxy_headers"`
	} `yaml:"api"`

	Usage struct {
		CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	} `yaml:"usage"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

// LoadEnv loads .env files that exist; missing files are ignored.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// Load reads the YAML config at path, expanding ${ENV_VAR} placeholders.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "gymbook"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/gymbook.db"
	}
	if c.Facility.Path == "" {
		c.Facility.Path = "configs/facility.yaml"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Backup.IntervalHours <= 0 {
		c.Backup.IntervalHours = 24
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8081
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}

// Location returns the configured time zone or the process local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.App.Timezone)
}

func (c *Config) RequestTimeout() time.Duration {
	if c.API.RequestTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.API.RequestTimeoutSec) * time.Second
}

func (c *Config) UsageCacheTTL() time.Duration {
	if c.Usage.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Usage.CacheTTLSeconds) * time.Second
}

func (c *Config) FacilityWatchInterval() time.Duration {
	if c.Facility.WatchIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Facility.WatchIntervalSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}
