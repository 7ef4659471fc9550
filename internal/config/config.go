// Package config loads the service configuration from a YAML file with
// environment-variable overrides. The pool credential list is immutable for
// the process lifetime; the watcher only hot-reloads debug/logging knobs.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PoolCredential is one (secret, C, R) tuple for the credential pool.
type PoolCredential struct {
	Secret             string `yaml:"secret" json:"-"`
	MaxConcurrent      int    `yaml:"max_concurrent" json:"max_concurrent"`
	MaxStartsPerMinute int    `yaml:"max_starts_per_minute" json:"max_starts_per_minute"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        string   `yaml:"port"`
	BasePath    string   `yaml:"base_path"`
	Debug       bool     `yaml:"debug"`
	LogFile     string   `yaml:"log_file"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// PoolConfig holds credential pool settings.
type PoolConfig struct {
	Credentials      []PoolCredential `yaml:"credentials"`
	AcquireRecheckMs int              `yaml:"acquire_recheck_ms"`
	// Defaults applied to credentials loaded from SVGFORGE_POOL_KEY_<n>
	// environment variables.
	DefaultMaxConcurrent      int `yaml:"default_max_concurrent"`
	DefaultMaxStartsPerMinute int `yaml:"default_max_starts_per_minute"`
}

// QuotaConfig holds daily-trial ledger settings.
type QuotaConfig struct {
	Backend       string `yaml:"backend"` // mongo | postgres | memory
	DailyLimit    int    `yaml:"daily_limit"`
	MongoURI      string `yaml:"mongodb_uri"`
	MongoDatabase string `yaml:"mongodb_database"`
	PostgresDSN   string `yaml:"postgres_dsn"`
}

// KeysConfig holds per-user private key storage settings.
type KeysConfig struct {
	Backend       string `yaml:"backend"` // redis | memory
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
	// SealKey is the hex-encoded 32-byte key used to seal stored secrets.
	SealKey string `yaml:"seal_key"`
}

// OAuthConfig holds the Google OAuth client used for user sign-in.
type OAuthConfig struct {
	ClientID        string `yaml:"client_id"`
	ClientSecret    string `yaml:"client_secret"`
	RedirectURL     string `yaml:"redirect_url"`
	SessionTTLHours int    `yaml:"session_ttl_hours"`
}

// UpstreamConfig holds Gemini API client settings.
type UpstreamConfig struct {
	Endpoint                 string `yaml:"endpoint"`
	Model                    string `yaml:"model"`
	ProxyURL                 string `yaml:"proxy_url"`
	DialTimeoutSec           int    `yaml:"dial_timeout_sec"`
	TLSHandshakeTimeoutSec   int    `yaml:"tls_handshake_timeout_sec"`
	ResponseHeaderTimeoutSec int    `yaml:"response_header_timeout_sec"`
	RetryMax                 int    `yaml:"retry_max"`
}

// RateLimitConfig holds edge rate limiting for the HTTP surface. This is
// protection for the service itself and independent of the pool's
// per-credential ceilings.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	RPS     int  `yaml:"rps"`
	Burst   int  `yaml:"burst"`
}

// SecurityConfig holds the admin surface credentials.
type SecurityConfig struct {
	// ManagementKeyHash is the bcrypt hash guarding /admin endpoints.
	ManagementKeyHash string `yaml:"management_key_hash"`
}

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Pool      PoolConfig      `yaml:"pool"`
	Quota     QuotaConfig     `yaml:"quota"`
	Keys      KeysConfig      `yaml:"keys"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Security  SecurityConfig  `yaml:"security"`
}

// Load reads the YAML file at path (missing file is not an error; defaults
// plus environment apply), layers environment overrides on top, and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Fine: env-only deployments don't ship a file.
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency. An empty pool is allowed (the
// pool degrades per its own contract) but gets flagged in logs by main.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("config: server.port must not be empty")
	}
	for i, pc := range c.Pool.Credentials {
		if pc.Secret == "" {
			return fmt.Errorf("config: pool.credentials[%d].secret must not be empty", i)
		}
	}
	switch c.Quota.Backend {
	case "mongo", "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown quota backend %q", c.Quota.Backend)
	}
	switch c.Keys.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("config: unknown keys backend %q", c.Keys.Backend)
	}
	if c.Quota.DailyLimit < 0 {
		return fmt.Errorf("config: quota.daily_limit must not be negative")
	}
	return nil
}
