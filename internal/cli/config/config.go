package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the working directory
const FileName = "rowfilter"

// EnvPrefix prefixes environment overrides, e.g. ROWFILTER_NULL_MARKER
const EnvPrefix = "ROWFILTER"

// Config represents the rowfilter configuration
type Config struct {
	// Schema is the path of the YAML file declaring the columns
	Schema               string         `mapstructure:"schema"`
	IgnoreCase           bool           `mapstructure:"ignore_case"`
	NullMarker           string         `mapstructure:"null_marker"`
	DateLayout           string         `mapstructure:"date_layout"`
	CompareRenderedDates bool           `mapstructure:"compare_rendered_dates"`
	Log                  LogConfig      `mapstructure:"log"`
	Server               ServerConfig   `mapstructure:"server"`
	Database             DatabaseConfig `mapstructure:"database"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig represents HTTP server configuration. AllowedOrigins lists
// the Origin values accepted on /v1/stream, empty meaning same-origin only.
// Profiling mounts /debug/pprof behind the API authentication.
type ServerConfig struct {
	Address        string          `mapstructure:"address"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	MaxBodyBytes   int64           `mapstructure:"max_body_bytes"`
	MaxRows        int             `mapstructure:"max_rows"`
	Workers        int             `mapstructure:"workers"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	Profiling      bool            `mapstructure:"profiling"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
	Auth           AuthConfig      `mapstructure:"auth"`
}

// RateLimitConfig limits requests per caller. Zero requests disables
// limiting; an empty RedisURL keeps counters in memory.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	RedisURL string        `mapstructure:"redis_url"`
}

// AuthConfig guards the API. Tokens are accepted when JWTSecret is set and
// API keys when APIKeys holds bcrypt hashes; with neither the API is open.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	APIKeys   []string      `mapstructure:"api_keys"`
}

// DatabaseConfig represents the database queried by the query command
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Table  string `mapstructure:"table"`
}

// Drivers lists the database/sql drivers the query command registers
var Drivers = []string{"sqlite3", "pgx", "postgres"}

// Load loads the configuration. An empty path looks for rowfilter.yml or
// rowfilter.yaml in the working directory and falls back to defaults when
// neither exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("ignore_case", false)
	v.SetDefault("null_marker", "")
	v.SetDefault("date_layout", "2006-01-02")
	v.SetDefault("compare_rendered_dates", false)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.address", "localhost:8080")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 8<<20)
	v.SetDefault("server.max_rows", 100000)
	v.SetDefault("server.workers", 0)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.profiling", false)
	v.SetDefault("server.rate_limit.requests", 0)
	v.SetDefault("server.rate_limit.window", "1m")
	v.SetDefault("server.rate_limit.redis_url", "")
	v.SetDefault("server.auth.jwt_secret", "")
	v.SetDefault("server.auth.token_ttl", "24h")
	v.SetDefault("server.auth.api_keys", []string{})
	v.SetDefault("database.driver", "sqlite3")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Enable environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Schema != "" && !filepath.IsAbs(config.Schema) && v.ConfigFileUsed() != "" {
		config.Schema = filepath.Join(filepath.Dir(v.ConfigFileUsed()), config.Schema)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// FindSchema returns the configured schema path, or schema.yml next to the
// working directory when none is configured
func (c *Config) FindSchema() (string, error) {
	if c.Schema != "" {
		return c.Schema, nil
	}
	for _, name := range []string{"schema.yml", "schema.yaml"} {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("no schema configured (set schema in %s.yml or pass --schema)", FileName)
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.DateLayout) == "" {
		return fmt.Errorf("date_layout must not be empty")
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be 'console' or 'json', got: %s", cfg.Log.Format)
	}

	known := false
	for _, d := range Drivers {
		if cfg.Database.Driver == d {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("database.driver must be one of %s, got: %s", strings.Join(Drivers, ", "), cfg.Database.Driver)
	}

	if cfg.Server.MaxRows < 0 {
		return fmt.Errorf("server.max_rows must not be negative, got: %d", cfg.Server.MaxRows)
	}
	if cfg.Server.Workers < 0 {
		return fmt.Errorf("server.workers must not be negative, got: %d", cfg.Server.Workers)
	}

	if rl := cfg.Server.RateLimit; rl.Requests < 0 {
		return fmt.Errorf("server.rate_limit.requests must not be negative, got: %d", rl.Requests)
	} else if rl.Requests > 0 && rl.Window <= 0 {
		return fmt.Errorf("server.rate_limit.window must be positive when requests is set")
	}
	if cfg.Server.Auth.TokenTTL < 0 {
		return fmt.Errorf("server.auth.token_ttl must not be negative")
	}
	return nil
}
