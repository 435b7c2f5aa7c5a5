package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultPredictorURL is the local development prediction backend
const DefaultPredictorURL = "http://localhost:5000"

// Config holds all runtime settings for the predictor UI
type Config struct {
	Environment string `toml:"environment"`
	Port        string `toml:"port"`
	GRPCPort    string `toml:"grpc_port"`

	Predictor  PredictorConfig  `toml:"predictor"`
	Database   DatabaseConfig   `toml:"database"`
	NATS       NATSConfig       `toml:"nats"`
	ClickHouse ClickHouseConfig `toml:"clickhouse"`
	Redis      RedisConfig      `toml:"redis"`

	SessionTTL          Duration `toml:"session_ttl"`
	HealthProbeInterval Duration `toml:"health_probe_interval"`
}

// PredictorConfig configures the remote prediction service client
type PredictorConfig struct {
	BaseURL     string   `toml:"base_url"`
	Timeout     Duration `toml:"timeout"`
	MockBackend bool     `toml:"mock_backend"`

	// Optional OAuth2 client credentials for the backend
	TokenURL     string   `toml:"token_url"`
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	Scopes       []string `toml:"scopes"`
}

// DatabaseConfig selects the prediction history store
type DatabaseConfig struct {
	Driver     string `toml:"driver"` // memory, sqlite, postgres
	SQLiteFile string `toml:"sqlite_file"`
	URL        string `toml:"url"`
}

type NATSConfig struct {
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

type ClickHouseConfig struct {
	Addr     string `toml:"addr"`
	Database string `toml:"database"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// RedisConfig enables the prediction result cache when Addr is set
type RedisConfig struct {
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	TTL      Duration `toml:"ttl"`
}

// Duration wraps time.Duration so TOML files can use strings like "10s"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Defaults returns the development configuration
func Defaults() Config {
	return Config{
		Environment: "development",
		Port:        "3000",
		GRPCPort:    "50051",
		Predictor: PredictorConfig{
			BaseURL: DefaultPredictorURL,
			Timeout: Duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			Driver:     "memory",
			SQLiteFile: "dev.sqlite",
		},
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Subject: "predictor.events",
		},
		ClickHouse: ClickHouseConfig{
			Database: "default",
			User:     "default",
		},
		Redis: RedisConfig{
			TTL: Duration{10 * time.Minute},
		},
		SessionTTL:          Duration{30 * time.Minute},
		HealthProbeInterval: Duration{30 * time.Second},
	}
}

// Load builds the configuration from defaults, an optional TOML file named by
// CONFIG_FILE, and finally environment variables, including those from a .env
// file if present.
func Load() (*Config, error) {
	cfg := Defaults()

	// Missing .env is fine. It may name CONFIG_FILE, so it loads first.
	_ = godotenv.Load()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setStr(&cfg.Environment, "ENVIRONMENT")
	setStr(&cfg.Port, "PORT")
	setStr(&cfg.GRPCPort, "GRPC_PORT")

	// REACT_APP_API_URL is the variable the browser frontend used; PREDICTOR_API_URL wins
	setStr(&cfg.Predictor.BaseURL, "REACT_APP_API_URL")
	setStr(&cfg.Predictor.BaseURL, "PREDICTOR_API_URL")
	setStr(&cfg.Predictor.TokenURL, "PREDICTOR_OAUTH_TOKEN_URL")
	setStr(&cfg.Predictor.ClientID, "PREDICTOR_OAUTH_CLIENT_ID")
	setStr(&cfg.Predictor.ClientSecret, "PREDICTOR_OAUTH_CLIENT_SECRET")
	if v := os.Getenv("PREDICTOR_OAUTH_SCOPES"); v != "" {
		cfg.Predictor.Scopes = strings.Split(v, ",")
	}

	setStr(&cfg.Database.Driver, "DB_DRIVER")
	setStr(&cfg.Database.SQLiteFile, "SQLITE_FILE")
	setStr(&cfg.Database.URL, "DATABASE_URL")

	setStr(&cfg.NATS.URL, "NATS_URL")
	setStr(&cfg.NATS.Subject, "NATS_SUBJECT")

	setStr(&cfg.ClickHouse.Addr, "CLICKHOUSE_ADDR")
	setStr(&cfg.ClickHouse.Database, "CLICKHOUSE_DB")
	setStr(&cfg.ClickHouse.User, "CLICKHOUSE_USER")
	setStr(&cfg.ClickHouse.Password, "CLICKHOUSE_PASSWORD")

	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")

	if err := setBool(&cfg.Predictor.MockBackend, "MOCK_BACKEND"); err != nil {
		return err
	}
	if err := setInt(&cfg.Redis.DB, "REDIS_DB"); err != nil {
		return err
	}

	durations := []struct {
		dst *Duration
		key string
	}{
		{&cfg.Predictor.Timeout, "PREDICTOR_TIMEOUT"},
		{&cfg.Redis.TTL, "CACHE_TTL"},
		{&cfg.SessionTTL, "SESSION_TTL"},
		{&cfg.HealthProbeInterval, "HEALTH_PROBE_INTERVAL"},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the configuration for values that would fail at runtime
func (c *Config) Validate() error {
	u, err := url.Parse(c.Predictor.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid predictor base URL %q", c.Predictor.BaseURL)
	}
	// Trailing slashes would double up when joining paths
	c.Predictor.BaseURL = strings.TrimRight(c.Predictor.BaseURL, "/")

	switch c.Database.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q (valid: memory, sqlite, postgres)", c.Database.Driver)
	}

	if c.Predictor.TokenURL != "" && c.Predictor.ClientID == "" {
		return fmt.Errorf("PREDICTOR_OAUTH_CLIENT_ID is required when a token URL is set")
	}
	if c.Predictor.Timeout.Duration <= 0 {
		return fmt.Errorf("predictor timeout must be positive")
	}
	if c.SessionTTL.Duration <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.HealthProbeInterval.Duration <= 0 {
		return fmt.Errorf("health probe interval must be positive")
	}
	return nil
}

// IsDevelopment reports whether the app runs with local stand-ins for infrastructure
func (c *Config) IsDevelopment() bool {
	return c.Environment == "" || c.Environment == "development"
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	dst.Duration = d
	return nil
}
