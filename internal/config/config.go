package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

type Config struct {
	App struct {
		Env      string
		Name     string
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"app"`

	HTTP struct {
		Addr            string
		AllowedOrigins  string        `mapstructure:"allowed_origins"`
		BodyLimit       int64         `mapstructure:"body_limit"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"http"`

	Store struct {
		Driver    string
		BadgerDir string `mapstructure:"badger_dir"`
	} `mapstructure:"store"`

	Postgres struct {
		DSN     string
		Migrate bool
	} `mapstructure:"postgres"`

	Redis struct {
		Addr     string
		Password string
		DB       int
		LeaseTTL time.Duration `mapstructure:"lease_ttl"`
	} `mapstructure:"redis"`

	Auth struct {
		JWTSecret  string `mapstructure:"jwt_secret"`
		CookieName string `mapstructure:"cookie_name"`
	} `mapstructure:"auth"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

// IsDev reports whether the service runs with development defaults.
func (c Config) IsDev() bool { return c.App.Env == "dev" }

const devJWTSecret = "spicechain-dev-secret"

// Load reads .env (if present), then the optional YAML file at path, then
// APP_* environment overrides (APP_POSTGRES_DSN, APP_STORE_DRIVER, ...).
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.name", "spicechain")
	v.SetDefault("app.log_level", "")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", "")
	v.SetDefault("http.body_limit", 1<<20)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.badger_dir", "data/ledger")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.migrate", true)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lease_ttl", 15*time.Second)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.cookie_name", "auth_token")
	v.SetDefault("metrics.enabled", true)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("failed to decode config: %w", err)
	}

	// Plain DATABASE_URL / JWT_SECRET are honoured for existing deployments.
	if c.Postgres.DSN == "" {
		c.Postgres.DSN = os.Getenv("DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	}
	if c.Auth.JWTSecret == "" && c.IsDev() {
		c.Auth.JWTSecret = devJWTSecret
	}

	return c, c.Validate()
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverBadger:
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("store.driver=postgres requires postgres.dsn or DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown store.driver %q (want memory, postgres or badger)", c.Store.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (or JWT_SECRET) must be set outside dev")
	}
	if c.Redis.Addr != "" && c.Redis.LeaseTTL <= 0 {
		return fmt.Errorf("redis.lease_ttl must be positive")
	}
	return nil
}
