// Package config loads the server configuration.
//
// Sources, lowest priority first:
//
//	defaults → config.yaml → .env → environment variables
//
// Nested keys map to environment variables with "." replaced by "_", so
// storage.mongo_uri is read from STORAGE_MONGO_URI. The JWT secret is also
// accepted as plain JWT_SECRET.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// minSecretLength matches what the token service accepts.
const minSecretLength = 16

type Config struct {
	Port     int
	LogLevel string
	BasePath string

	CORSOrigins []string

	Storage    StorageConfig
	Auth       AuthConfig
	Pagination PaginationConfig
}

type StorageConfig struct {
	Driver        string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
}

type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	CookieSecure bool

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
	// LoginRedirectURL is where the browser lands after a GitHub login.
	LoginRedirectURL string
}

// GitHubEnabled reports whether GitHub login routes should be mounted.
func (a AuthConfig) GitHubEnabled() bool {
	return a.GitHubClientID != "" && a.GitHubClientSecret != ""
}

type PaginationConfig struct {
	// FilteredCount makes totalCount honour the difficulty filter.
	FilteredCount bool
	DefaultLimit  int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 5000)
	v.SetDefault("log_level", "info")
	v.SetDefault("server.base_path", "")
	v.SetDefault("cors.origins", []string{"http://localhost:5173"})

	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite_path", "data/groupstudy.db")
	v.SetDefault("storage.mongo_uri", "")
	v.SetDefault("storage.mongo_database", "groupStudy")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("auth.cookie_secure", true)
	v.SetDefault("auth.github_client_id", "")
	v.SetDefault("auth.github_client_secret", "")
	v.SetDefault("auth.github_callback_url", "")
	v.SetDefault("auth.login_redirect_url", "")

	v.SetDefault("pagination.filtered_count", false)
	v.SetDefault("pagination.default_limit", 10)
}

// Load reads the configuration. configFile may be empty, in which case
// config.yaml is looked up in "." and "./config" and skipped when absent.
// A .env file in the working directory is loaded if it exists.
func Load(configFile string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("config: binding JWT_SECRET: %w", err)
	}

	cfg := &Config{
		Port:        v.GetInt("port"),
		LogLevel:    v.GetString("log_level"),
		BasePath:    strings.TrimSuffix(v.GetString("server.base_path"), "/"),
		CORSOrigins: splitList(v.GetStringSlice("cors.origins")),
		Storage: StorageConfig{
			Driver:        strings.ToLower(v.GetString("storage.driver")),
			SQLitePath:    v.GetString("storage.sqlite_path"),
			MongoURI:      v.GetString("storage.mongo_uri"),
			MongoDatabase: v.GetString("storage.mongo_database"),
		},
		Auth: AuthConfig{
			JWTSecret:          v.GetString("auth.jwt_secret"),
			TokenTTL:           v.GetDuration("auth.token_ttl"),
			CookieSecure:       v.GetBool("auth.cookie_secure"),
			GitHubClientID:     v.GetString("auth.github_client_id"),
			GitHubClientSecret: v.GetString("auth.github_client_secret"),
			GitHubCallbackURL:  v.GetString("auth.github_callback_url"),
			LoginRedirectURL:   v.GetString("auth.login_redirect_url"),
		},
		Pagination: PaginationConfig{
			FilteredCount: v.GetBool("pagination.filtered_count"),
			DefaultLimit:  v.GetInt("pagination.default_limit"),
		},
	}

	if cfg.Auth.GitHubCallbackURL == "" {
		cfg.Auth.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d%s/auth/github/callback", cfg.Port, cfg.BasePath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that would keep the server from starting.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.BasePath != "" && !strings.HasPrefix(c.BasePath, "/") {
		return fmt.Errorf("config: server.base_path %q must start with /", c.BasePath)
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("config: storage.sqlite_path is required for the sqlite driver")
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			return errors.New("config: storage.mongo_uri is required for the mongo driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q (want %s or %s)", c.Storage.Driver, DriverSQLite, DriverMongo)
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d characters", minSecretLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config: auth.token_ttl must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Pagination.DefaultLimit < 1 {
		return fmt.Errorf("config: pagination.default_limit must be at least 1, got %d", c.Pagination.DefaultLimit)
	}
	return nil
}

// ParseLevel turns a log_level value (debug, info, warn, error) into a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: invalid log_level %q", s)
	}
	return level, nil
}

// loadDotEnv loads path into the process environment if the file exists.
// Variables already set in the environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: loading %s: %w", path, err)
	}
	return nil
}

// splitList accepts both YAML lists and a comma-separated environment value.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
