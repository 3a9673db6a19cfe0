package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// ConfigFileEnv names an optional config file (toml, yaml or json) whose
// values sit below the environment.
const ConfigFileEnv = "LEDGER_CONFIG"

type Config struct {
	// HTTP Server
	Port               string `mapstructure:"port"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute"`

	// Storage
	DataBackend  string `mapstructure:"data_backend"`
	SQLiteDBPath string `mapstructure:"sqlite_db_path"`
	SeedDir      string `mapstructure:"seed_dir"`

	// Calendar days, months and same-day dedup are computed in this zone.
	// Empty means the host zone.
	Timezone string         `mapstructure:"timezone"`
	Location *time.Location `mapstructure:"-"`

	// AMQP
	AMQPURL      string `mapstructure:"amqp_url"`
	AMQPExchange string `mapstructure:"amqp_exchange"`
	AMQPQueue    string `mapstructure:"amqp_queue"`

	// Google Sheets export
	GoogleSpreadsheetID      string        `mapstructure:"google_spreadsheet_id"`
	GoogleServiceAccountFile string        `mapstructure:"google_service_account_file"`
	GoogleServiceAccountJSON string        `mapstructure:"google_service_account_json"`
	ExportInterval           time.Duration `mapstructure:"export_interval"`

	// Query cache
	QueryCacheSize     int           `mapstructure:"query_cache_size"`
	QueryCacheTTL      time.Duration `mapstructure:"query_cache_ttl"`
	CacheCleanInterval time.Duration `mapstructure:"cache_clean_interval"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

var defaults = map[string]any{
	"port":                        "8081",
	"rate_limit_per_minute":       120,
	"data_backend":                "memory",
	"sqlite_db_path":              "./data/ledger.db",
	"seed_dir":                    "./data",
	"timezone":                    "",
	"amqp_url":                    "",
	"amqp_exchange":               "ledger",
	"amqp_queue":                  "ledger_commands",
	"google_spreadsheet_id":       "",
	"google_service_account_file": "",
	"google_service_account_json": "",
	"export_interval":             "1h",
	"query_cache_size":            64,
	"query_cache_ttl":             "5m",
	"cache_clean_interval":        "1m",
	"log_level":                   "info",
	"log_format":                  "text",
}

// Load reads defaults, then the optional LEDGER_CONFIG file, then the
// environment. An unknown timezone leaves Location nil for Validate to report.
func Load() (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Location, _ = loadLocation(cfg.Timezone)
	return &cfg, nil
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

// SheetsEnabled reports whether the monthly export is configured.
func (c *Config) SheetsEnabled() bool { return c.GoogleSpreadsheetID != "" }

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	validBackends := []string{"memory", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.SeedDir != "" {
		if info, err := os.Stat(c.SeedDir); err == nil && !info.IsDir() {
			errors = append(errors, fmt.Sprintf("seed dir '%s' is not a directory", c.SeedDir))
		}
	}

	if _, err := loadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided with GOOGLE_SPREADSHEET_ID")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
		if c.ExportInterval < time.Minute {
			errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at least 1 minute", c.ExportInterval))
		}
	}

	if c.QueryCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid query cache size %d: must not be negative", c.QueryCacheSize))
	}
	if c.QueryCacheSize > 0 && c.QueryCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid query cache TTL %v: must be positive", c.QueryCacheTTL))
	}
	if c.CacheCleanInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache clean interval %v: must be at least 1 second", c.CacheCleanInterval))
	}

	validFormats := []string{"text", "json", "tint"}
	if !slices.Contains(validFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validFormats))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
