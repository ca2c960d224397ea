package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/homelab/roster/internal/datastore"
	"github.com/jbweber/homelab/roster/internal/datastore/dialect"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "ROSTER_"

// Config holds all configuration for the roster service
type Config struct {
	DB   DBConfig   `yaml:"db"`
	HTTP HTTPConfig `yaml:"http"`
	Log  LogConfig  `yaml:"log"`
}

// DBConfig selects and tunes the database
type DBConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// HTTPConfig configures the API server
type HTTPConfig struct {
	Port string `yaml:"port"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		DB: DBConfig{
			Driver:          datastore.DefaultDriver,
			DSN:             "~/roster/data/roster.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		HTTP: HTTPConfig{Port: "8080"},
		Log:  LogConfig{Env: "dev", Level: "info"},
	}
}

// Load builds the configuration from defaults, then the YAML file at path,
// then the dotenv file at envFile, then ROSTER_* environment variables.
// Empty paths are skipped; a missing dotenv file is not an error. The result
// is not validated, so callers can layer their own overrides before Validate.
func Load(path, envFile string) (*Config, error) {
	c := NewConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if err := c.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnvOverrides() error {
	var errs []error
	if v, ok := getEnvStr("DB_DRIVER"); ok {
		c.DB.Driver = v
	}
	if v, ok := getEnvStr("DB_DSN"); ok {
		c.DB.DSN = v
	}
	if v, ok, err := getEnvInt("DB_MAX_OPEN_CONNS"); ok {
		c.DB.MaxOpenConns = v
	} else if err != nil {
		errs = append(errs, err)
	}
	if v, ok, err := getEnvInt("DB_MAX_IDLE_CONNS"); ok {
		c.DB.MaxIdleConns = v
	} else if err != nil {
		errs = append(errs, err)
	}
	if v, ok, err := getEnvDur("DB_CONN_MAX_LIFETIME"); ok {
		c.DB.ConnMaxLifetime = v
	} else if err != nil {
		errs = append(errs, err)
	}
	if v, ok := getEnvStr("HTTP_PORT"); ok {
		c.HTTP.Port = v
	}
	if v, ok := getEnvStr("LOG_ENV"); ok {
		c.Log.Env = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	return errors.Join(errs...)
}

func getEnvStr(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(EnvPrefix + key))
	return v, v != ""
}

func getEnvInt(key string) (int, bool, error) {
	v, ok := getEnvStr(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s%s %q: expected an integer", EnvPrefix, key, v)
	}
	return n, true, nil
}

func getEnvDur(key string) (time.Duration, bool, error) {
	v, ok := getEnvStr(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s%s %q: expected a duration", EnvPrefix, key, v)
	}
	return d, true, nil
}

// Validate checks that the configuration can be used to start the service
func (c *Config) Validate() error {
	if dialect.New(c.DB.Driver).Name() == dialect.NameUnknown {
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		return errors.New("db dsn is required")
	}
	if strings.TrimSpace(c.HTTP.Port) == "" {
		return errors.New("http port is required")
	}
	return nil
}

// DatastoreOptions converts the database settings for datastore.New
func (c *Config) DatastoreOptions(log *zap.Logger) datastore.Options {
	dsn := c.DB.DSN
	if c.isSQLiteFile() {
		dsn = c.expandPath(dsn)
	}
	return datastore.Options{
		Driver:          c.DB.Driver,
		DSN:             dsn,
		MaxOpenConns:    c.DB.MaxOpenConns,
		MaxIdleConns:    c.DB.MaxIdleConns,
		ConnMaxLifetime: c.DB.ConnMaxLifetime,
		Logger:          log,
	}
}

// InitializeDatastore creates the database directory when needed, opens the
// datastore and runs migrations
func (c *Config) InitializeDatastore(log *zap.Logger) (*datastore.Datastore, error) {
	opts := c.DatastoreOptions(log)

	if c.isSQLiteFile() {
		// Ensure database directory exists
		if err := os.MkdirAll(filepath.Dir(opts.DSN), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	ds, err := datastore.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize datastore: %w", err)
	}
	return ds, nil
}

// isSQLiteFile reports whether the DSN is a plain SQLite file path
func (c *Config) isSQLiteFile() bool {
	if dialect.New(c.DB.Driver).Name() != dialect.NameSQLite {
		return false
	}
	return !strings.HasPrefix(c.DB.DSN, "file:") && c.DB.DSN != ":memory:"
}

// expandPath expands ~ to home directory
func (c *Config) expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Return original path if we can't get home dir
		return path
	}

	return filepath.Join(homeDir, path[2:])
}
