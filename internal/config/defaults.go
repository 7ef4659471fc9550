package config

// Defaults returns the built-in configuration. Values mirror the upstream
// ceilings the service was originally sized for: 3 simultaneous holders and
// 3 new sessions per minute per credential, 3 free requests per user per day.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "5001",
			CORSOrigins: []string{"*"},
		},
		Pool: PoolConfig{
			AcquireRecheckMs:          100,
			DefaultMaxConcurrent:      3,
			DefaultMaxStartsPerMinute: 3,
		},
		Quota: QuotaConfig{
			Backend:       "memory",
			DailyLimit:    3,
			MongoDatabase: "svgforge",
		},
		Keys: KeysConfig{
			Backend:     "memory",
			RedisPrefix: "svgforge:",
		},
		OAuth: OAuthConfig{
			SessionTTLHours: 24,
		},
		Upstream: UpstreamConfig{
			Endpoint:                 "https://generativelanguage.googleapis.com",
			Model:                    "gemini-2.0-flash-exp",
			DialTimeoutSec:           10,
			TLSHandshakeTimeoutSec:   10,
			ResponseHeaderTimeoutSec: 120,
			RetryMax:                 2,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     10,
			Burst:   20,
		},
	}
}
