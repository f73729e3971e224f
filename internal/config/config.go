package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port               int `yaml:"port"`
		RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
		RateLimitBurst     int `yaml:"rate_limit_burst"`
	} `yaml:"server"`

	Telegram struct {
		BotToken string  `yaml:"bot_token"`
		Debug    bool    `yaml:"debug"`
		StaffIDs []int64 `yaml:"staff_ids"`
	} `yaml:"telegram"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	// Report schedules the monthly Excel export of the previous month.
	Report struct {
		Enabled bool   `yaml:"enabled"`
		Dir     string `yaml:"dir"`
	} `yaml:"report"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	// API configures the HTTP consumer used by the bot and the CLI.
	API struct {
		BaseURL         string `yaml:"base_url"`
		APIKey          string `yaml:"api_key"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
		TimeoutSeconds  int    `yaml:"timeout_seconds"`
	} `yaml:"api"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		InitialStatus  string `yaml:"initial_status"`
		OpenHour       int    `yaml:"open_hour"`
		CloseHour      int    `yaml:"close_hour"`
		LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
		DebounceMillis int    `yaml:"debounce_ms"`
		SessionTimeout int    `yaml:"session_timeout_minutes"`
		LookaheadDays  int    `yaml:"lookahead_days"`
	} `yaml:"booking"`

	CatalogPath string `yaml:"catalog_path"`
}

// Load reads the YAML config. A .env file next to the working directory is
// applied first so ${VAR} placeholders can refer to it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
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

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/salonbook.db"
	}
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = "configs/catalog.yaml"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadCatalog loads the catalog referenced by the config.
func (c *Config) LoadCatalog() (*Catalog, error) {
	return LoadCatalog(c.CatalogPath)
}

func (c *Config) ServerPort() int {
	if c.Server.Port <= 0 {
		return 8080
	}
	return c.Server.Port
}

func (c *Config) OpenHour() int {
	if c.Booking.OpenHour <= 0 {
		return 9
	}
	return c.Booking.OpenHour
}

func (c *Config) CloseHour() int {
	if c.Booking.CloseHour <= 0 || c.Booking.CloseHour <= c.OpenHour() {
		return 18
	}
	return c.Booking.CloseHour
}

func (c *Config) LockTTL() time.Duration {
	if c.Booking.LockTTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Booking.LockTTLSeconds) * time.Second
}

func (c *Config) Debounce() time.Duration {
	if c.Booking.DebounceMillis <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(c.Booking.DebounceMillis) * time.Millisecond
}

func (c *Config) SessionTimeout() time.Duration {
	if c.Booking.SessionTimeout <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Booking.SessionTimeout) * time.Minute
}

func (c *Config) LookaheadDays() int {
	if c.Booking.LookaheadDays <= 0 {
		return 14
	}
	return c.Booking.LookaheadDays
}

func (c *Config) ReportDir() string {
	if c.Report.Dir == "" {
		return "data/reports"
	}
	return c.Report.Dir
}

func (c *Config) APICacheTTL() time.Duration {
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}

func (c *Config) APITimeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// RateLimit returns requests per second and burst for mutating endpoints.
func (c *Config) RateLimit() (float64, int) {
	perMinute := c.Server.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	burst := c.Server.RateLimitBurst
	if burst <= 0 {
		burst = 10
	}
	return float64(perMinute) / 60, burst
}
