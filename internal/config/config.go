package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// DevelopmentJWTSecret is used outside production when JWT_SECRET is unset.
// Tokens signed with it are only valid for the lifetime of a dev setup.
const DevelopmentJWTSecret = "eventops-insecure-development-secret-change-me"

const minProductionSecretLength = 32

type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Auth           AuthConfig           `yaml:"auth"`
	RateLimit      RateLimitConfig      `yaml:"rateLimit"`
	CORS           CORSConfig           `yaml:"cors"`
	AdminBootstrap AdminBootstrapConfig `yaml:"adminBootstrap"`
	History        HistoryConfig        `yaml:"history"`
	Jobs           JobsConfig           `yaml:"jobs"`
	Logging        LoggingConfig        `yaml:"logging"`
	Tracing        TracingConfig        `yaml:"tracing"`
	Environment    string               `yaml:"environment"`

	// UsingDevelopmentSecret is set when Load fell back to DevelopmentJWTSecret.
	UsingDevelopmentSecret bool `yaml:"-"`
}

type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	BaseURL           string        `yaml:"baseURL"`
	RequireHTTPS      bool          `yaml:"requireHTTPS"`
	MaxBodyBytes      int64         `yaml:"maxBodyBytes"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	TrustedProxyCIDRs []string      `yaml:"trustedProxyCIDRs"`
}

// DatabaseConfig points at PostgreSQL. An empty URL runs the server on the
// in-memory stores, which is refused in production.
type DatabaseConfig struct {
	URL            string        `yaml:"url"`
	MaxConnections int           `yaml:"maxConnections"`
	QueryTimeout   time.Duration `yaml:"queryTimeout"`
	MigrationsPath string        `yaml:"migrationsPath"`
}

type AuthConfig struct {
	JWTSecret            string `yaml:"jwtSecret"`
	TokenLifetimeSeconds int    `yaml:"tokenLifetimeSeconds"`
	Issuer               string `yaml:"issuer"`
	CookieName           string `yaml:"cookieName"`
	DefaultPreset        string `yaml:"defaultPreset"`
}

// TokenLifetime returns the configured session lifetime.
func (a AuthConfig) TokenLifetime() time.Duration {
	return time.Duration(a.TokenLifetimeSeconds) * time.Second
}

// RateLimitConfig sets requests per minute per client. Zero disables a tier.
type RateLimitConfig struct {
	PublicPerMinute        int      `yaml:"publicPerMinute"`
	AuthenticatedPerMinute int      `yaml:"authenticatedPerMinute"`
	LoginPer15Minutes      int      `yaml:"loginPer15Minutes"`
	TrustedProxyCIDRs      []string `yaml:"-"`
}

type CORSConfig struct {
	AllowedOrigins  []string `yaml:"allowedOrigins"`
	AllowAllOrigins bool     `yaml:"allowAllOrigins"`
}

type AdminBootstrapConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Enabled reports whether both credentials are present.
func (a AdminBootstrapConfig) Enabled() bool {
	return strings.TrimSpace(a.Email) != "" && a.Password != ""
}

type HistoryConfig struct {
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

type JobsConfig struct {
	Enabled                bool          `yaml:"enabled"`
	HistoryRetentionPeriod time.Duration `yaml:"historyRetentionPeriod"`
	MaxAttempts            int           `yaml:"maxAttempts"`
	Workers                int           `yaml:"workers"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	ServiceName  string  `yaml:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	SampleRate   float64 `yaml:"sampleRate"`
}

// IsProduction reports whether the server runs with production rules.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

// UsesMemoryStorage reports whether no database is configured.
func (c Config) UsesMemoryStorage() bool {
	return strings.TrimSpace(c.Database.URL) == ""
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile reads the configuration from the environment, overlaid by the
// YAML file at path when path is not empty. Values in the file win over the
// environment.
func LoadFile(path string) (Config, error) {
	cfg := fromEnv()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.finalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromEnv() Config {
	trusted := getEnvList("TRUSTED_PROXY_CIDRS")
	return Config{
		Server: ServerConfig{
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			BaseURL:           getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			RequireHTTPS:      getEnvBool("REQUIRE_HTTPS", false),
			MaxBodyBytes:      int64(getEnvInt("SERVER_MAX_BODY_BYTES", 1<<20)),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedProxyCIDRs: trusted,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
			QueryTimeout:   getEnvDuration("DATABASE_QUERY_TIMEOUT", 5*time.Second),
			MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
		},
		Auth: AuthConfig{
			JWTSecret:            getEnv("JWT_SECRET", ""),
			TokenLifetimeSeconds: getEnvInt("JWT_LIFETIME_SECONDS", 24*60*60),
			Issuer:               getEnv("JWT_ISSUER", "eventops"),
			CookieName:           getEnv("AUTH_COOKIE_NAME", "eventops_session"),
			DefaultPreset:        getEnv("DEFAULT_PERMISSION_PRESET", "viewer"),
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute:        getEnvInt("RATE_LIMIT_PUBLIC", 60),
			AuthenticatedPerMinute: getEnvInt("RATE_LIMIT_AUTHENTICATED", 300),
			LoginPer15Minutes:      getEnvInt("RATE_LIMIT_LOGIN", 5),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		},
		AdminBootstrap: AdminBootstrapConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		History: HistoryConfig{
			WriteTimeout: getEnvDuration("HISTORY_WRITE_TIMEOUT", 5*time.Second),
		},
		Jobs: JobsConfig{
			Enabled:                getEnvBool("JOBS_ENABLED", true),
			HistoryRetentionPeriod: getEnvDuration("JOB_HISTORY_RETENTION_PERIOD", 24*time.Hour),
			MaxAttempts:            getEnvInt("JOB_MAX_ATTEMPTS", 5),
			Workers:                getEnvInt("JOB_WORKERS", 2),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", false),
			Exporter:     getEnv("TRACING_EXPORTER", "stdout"),
			ServiceName:  getEnv("TRACING_SERVICE_NAME", "eventops-server"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		Environment: strings.ToLower(getEnv("ENVIRONMENT", EnvDevelopment)),
	}
}

// finalize applies cross-field rules and fallbacks after all sources are merged.
func (c *Config) finalize() error {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment == "" {
		c.Environment = EnvDevelopment
	}
	c.RateLimit.TrustedProxyCIDRs = c.Server.TrustedProxyCIDRs

	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Auth.TokenLifetimeSeconds <= 0 {
		errs = append(errs, fmt.Errorf("JWT_LIFETIME_SECONDS must be positive, got %d", c.Auth.TokenLifetimeSeconds))
	}
	if c.Database.QueryTimeout <= 0 {
		errs = append(errs, errors.New("DATABASE_QUERY_TIMEOUT must be positive"))
	}

	if c.IsProduction() {
		switch {
		case c.Auth.JWTSecret == "":
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		case len(c.Auth.JWTSecret) < minProductionSecretLength:
			errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters in production", minProductionSecretLength))
		}
		if c.UsesMemoryStorage() {
			errs = append(errs, errors.New("DATABASE_URL is required in production"))
		}
		if len(c.CORS.AllowedOrigins) == 0 {
			errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS is required in production"))
		}
		c.CORS.AllowAllOrigins = false
	} else {
		if c.Auth.JWTSecret == "" {
			c.Auth.JWTSecret = DevelopmentJWTSecret
			c.UsingDevelopmentSecret = true
		}
		if len(c.CORS.AllowedOrigins) == 0 {
			c.CORS.AllowAllOrigins = true
		}
	}

	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
