// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`

	// PrivateKey is the application secret; SigningKey authenticates the
	// external aggregation trigger.
	PrivateKey string `mapstructure:"privatekey"`
	SigningKey string `mapstructure:"signingkey"`

	// Ingestion settings
	SessionWindowSeconds int `mapstructure:"sessionwindowseconds"`
	MaxInactiveSeconds   int `mapstructure:"maxinactiveseconds"`

	// Aggregation settings
	LookbackMinutes     int    `mapstructure:"lookbackminutes"`
	AggregationTimezone string `mapstructure:"aggregationtimezone"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	GeoDBPath             string `mapstructure:"geodbpath"`
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`

	// Data retention settings
	PageviewRetentionDays int `mapstructure:"pageviewretentiondays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		// Set defaults
		v.SetDefault("appname", "pagepulse")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", "88888888888888888888888888888888")
		v.SetDefault("signingkey", "")
		v.SetDefault("sessionwindowseconds", 1800)
		v.SetDefault("maxinactiveseconds", 30)
		v.SetDefault("lookbackminutes", 30)
		v.SetDefault("aggregationtimezone", "UTC")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-City.mmdb")
		v.SetDefault("publicdir", "public")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("jobintervalseconds", 60)
		v.SetDefault("pageviewretentiondays", 90)

		// Bind environment variables
		v.BindEnv("appname", "PAGEPULSE_APP_NAME")
		v.BindEnv("appport", "PAGEPULSE_APP_PORT")
		v.BindEnv("environment", "PAGEPULSE_ENV")
		v.BindEnv("loglevel", "PAGEPULSE_LOG_LEVEL")
		v.BindEnv("privatekey", "PAGEPULSE_PRIVATE_KEY")
		v.BindEnv("signingkey", "PAGEPULSE_SIGNING_KEY")
		v.BindEnv("sessionwindowseconds", "PAGEPULSE_SESSION_WINDOW_SECONDS")
		v.BindEnv("maxinactiveseconds", "PAGEPULSE_MAX_INACTIVE_SECONDS")
		v.BindEnv("lookbackminutes", "PAGEPULSE_LOOKBACK_MINUTES")
		v.BindEnv("aggregationtimezone", "PAGEPULSE_AGGREGATION_TIMEZONE")
		v.BindEnv("storagepath", "PAGEPULSE_STORAGE_PATH")
		v.BindEnv("geodbpath", "PAGEPULSE_GEO_DB_PATH")
		v.BindEnv("publicdir", "PAGEPULSE_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "PAGEPULSE_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "PAGEPULSE_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "PAGEPULSE_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "PAGEPULSE_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "PAGEPULSE_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "PAGEPULSE_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "PAGEPULSE_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "PAGEPULSE_DB_MAX_IDLE_CONNS")
		v.BindEnv("jobintervalseconds", "PAGEPULSE_JOB_INTERVAL_SECONDS")
		v.BindEnv("pageviewretentiondays", "PAGEPULSE_PAGEVIEW_RETENTION_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		// Validate
		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		// Set derived values
		cfg.DatabaseName = cfg.GetDatabasePath()

		// Validate private key - in production, must be explicitly set (not empty, not default)
		defaultKey := "88888888888888888888888888888888"
		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultKey {
			log.Fatal("Production requires a unique PAGEPULSE_PRIVATE_KEY (cannot use default)")
		}
		if cfg.IsProduction() && cfg.SigningKey == "" {
			log.Fatal("Production requires PAGEPULSE_SIGNING_KEY (aggregation trigger signature)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if c.SessionWindowSeconds <= 0 {
		return fmt.Errorf("invalid session window seconds: %d", c.SessionWindowSeconds)
	}
	if c.MaxInactiveSeconds <= 0 {
		return fmt.Errorf("invalid max inactive seconds: %d", c.MaxInactiveSeconds)
	}
	if _, err := time.LoadLocation(c.AggregationTimezone); err != nil {
		return fmt.Errorf("invalid aggregation timezone %q: %w", c.AggregationTimezone, err)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// SessionWindow returns the session continuity window as a duration.
func (c *Config) SessionWindow() time.Duration {
	return time.Duration(c.SessionWindowSeconds) * time.Second
}

// Lookback returns the aggregation lookback window as a duration.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackMinutes) * time.Minute
}

// ReferenceTimezone returns the fixed timezone used for hour bucketing.
// The name is validated at startup; a load failure here falls back to UTC.
func (c *Config) ReferenceTimezone() *time.Location {
	loc, err := time.LoadLocation(c.AggregationTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetSessionTimeout returns the visitor session window in seconds.
// A pageview only continues a prior one created within this window.
func (c *Config) GetSessionTimeout() int {
	return c.SessionWindowSeconds
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1 (required for test stability)
// - Development/Production: 10 (allows concurrent reads for parallel rollup queries)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1 // Required for test stability
	}

	return 10 // Higher concurrency for development and production
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1 (matches MaxOpenConns for test stability)
// - Development/Production: 5 (keep half the connections warm for reuse)
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1 // Matches MaxOpenConns for test stability
	}

	return 5 // Keep half the pool warm for development and production
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
