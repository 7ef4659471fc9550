package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// applyEnv layers environment overrides on top of file values. Pool secrets
// follow the SVGFORGE_POOL_KEY_<n> convention (n starting at 0, contiguous)
// so deployments can supply the shared keys without writing them to disk.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("SVGFORGE_DEBUG"); v != "" {
		cfg.Server.Debug = !(v == "false" || v == "0")
	}
	if v := os.Getenv("SVGFORGE_LOG_FILE"); v != "" {
		cfg.Server.LogFile = v
	}
	if v := os.Getenv("SVGFORGE_BASE_PATH"); v != "" {
		cfg.Server.BasePath = v
	}

	if v := os.Getenv("SVGFORGE_QUOTA_BACKEND"); v != "" {
		cfg.Quota.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("SVGFORGE_DAILY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Quota.DailyLimit = n
		}
	}
	if v := os.Getenv("MONGODB_URI"); v != "" {
		cfg.Quota.MongoURI = v
	}
	if v := os.Getenv("MONGODB_DATABASE"); v != "" {
		cfg.Quota.MongoDatabase = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Quota.PostgresDSN = v
	}

	if v := os.Getenv("SVGFORGE_KEYS_BACKEND"); v != "" {
		cfg.Keys.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Keys.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Keys.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Keys.RedisDB = n
		}
	}
	if v := os.Getenv("SVGFORGE_SEAL_KEY"); v != "" {
		cfg.Keys.SealKey = v
	}

	if v := os.Getenv("OAUTH_CLIENT_ID"); v != "" {
		cfg.OAuth.ClientID = v
	}
	if v := os.Getenv("OAUTH_CLIENT_SECRET"); v != "" {
		cfg.OAuth.ClientSecret = v
	}
	if v := os.Getenv("OAUTH_REDIRECT_URL"); v != "" {
		cfg.OAuth.RedirectURL = v
	}

	if v := os.Getenv("SVGFORGE_UPSTREAM_ENDPOINT"); v != "" {
		cfg.Upstream.Endpoint = v
	}
	if v := os.Getenv("SVGFORGE_MODEL"); v != "" {
		cfg.Upstream.Model = v
	}
	if v := os.Getenv("PROXY_URL"); v != "" {
		cfg.Upstream.ProxyURL = v
	}

	if v := os.Getenv("MANAGEMENT_KEY_HASH"); v != "" {
		cfg.Security.ManagementKeyHash = v
	}

	loadEnvPoolKeys(cfg)
}

// loadEnvPoolKeys appends SVGFORGE_POOL_KEY_0..n to the pool credential
// list, each with the configured default ceilings. A gap in the numbering
// ends the scan, matching how the keys are provisioned.
func loadEnvPoolKeys(cfg *Config) {
	for i := 0; ; i++ {
		v := os.Getenv(fmt.Sprintf("SVGFORGE_POOL_KEY_%d", i))
		if v == "" {
			return
		}
		cfg.Pool.Credentials = append(cfg.Pool.Credentials, PoolCredential{
			Secret:             v,
			MaxConcurrent:      cfg.Pool.DefaultMaxConcurrent,
			MaxStartsPerMinute: cfg.Pool.DefaultMaxStartsPerMinute,
		})
	}
}
