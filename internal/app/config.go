package app

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Permission sources accepted by PERMISSIONS_SOURCE.
const (
	SourcePostgres = "postgres"
	SourceHTTP     = "http"
)

// Config holds runtime configuration for the console.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`
	AppRateLimit      int           `envconfig:"APP_RATE_LIMIT" default:"120"`
	LoginRateLimit    int           `envconfig:"LOGIN_RATE_LIMIT" default:"10"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	PGDSN      string `envconfig:"PG_DSN" default:"postgres://rh:rh@localhost:5432/rh?sslmode=disable"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"10"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RelayChannel  string        `envconfig:"RELAY_CHANNEL" default:"rh:identity"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"12h"`

	PermissionsSource    string        `envconfig:"PERMISSIONS_SOURCE" default:"postgres"`
	PermissionsURL       string        `envconfig:"PERMISSIONS_URL"`
	PermissionsJWTSecret string        `envconfig:"PERMISSIONS_JWT_SECRET"`
	PermissionsTimeout   time.Duration `envconfig:"PERMISSIONS_TIMEOUT" default:"10s"`
	LoadingWait          time.Duration `envconfig:"LOADING_WAIT" default:"2s"`
	WorkspaceIdle        time.Duration `envconfig:"WORKSPACE_IDLE" default:"1h"`

	WorkerConcurrency int           `envconfig:"WORKER_CONCURRENCY" default:"2"`
	SessionPurgeCron  string        `envconfig:"SESSION_PURGE_CRON" default:"@every 1h"`
	SessionPurgeGrace time.Duration `envconfig:"SESSION_PURGE_GRACE" default:"24h"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations envconfig cannot express.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return errors.New("session secret must be provided")
	}
	switch c.PermissionsSource {
	case "":
		// envconfig keeps a variable that is set but empty instead of the default.
		c.PermissionsSource = SourcePostgres
	case SourcePostgres:
	case SourceHTTP:
		if c.PermissionsURL == "" {
			return errors.New("PERMISSIONS_URL is required when PERMISSIONS_SOURCE=http")
		}
		if u, err := url.Parse(c.PermissionsURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("PERMISSIONS_URL %q is not an absolute URL", c.PermissionsURL)
		}
		if c.PermissionsJWTSecret == "" {
			return errors.New("PERMISSIONS_JWT_SECRET is required when PERMISSIONS_SOURCE=http")
		}
	default:
		return fmt.Errorf("unknown PERMISSIONS_SOURCE %q", c.PermissionsSource)
	}
	if c.PermissionsTimeout <= 0 {
		return errors.New("PERMISSIONS_TIMEOUT must be positive")
	}
	if c.SessionPurgeGrace < 0 {
		return errors.New("SESSION_PURGE_GRACE must not be negative")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
