// Package config centralizes every tunable named in spec §6, loaded
// once at startup from the environment with safe defaults for
// everything non-secret. Mirrors the teacher's requireEnv/
// getEnvOrDefault helpers in cmd/engine/main.go.
package config

import (
	"os"
	"strconv"
	"time"
)

// CacheNamespaceConfig is one entry of the §4.8 namespace table.
type CacheNamespaceConfig struct {
	TTL       time.Duration
	KeyPrefix string
	Compress  bool
}

// Config bundles every recognized option from spec §6.
type Config struct {
	MaxRequestSize int

	PipelineDeadline        time.Duration
	PerAnalyzerDeadlines    map[string]time.Duration
	ExplainerDeadline       time.Duration

	QueueMaxSize                int
	WorkerCount                 int
	ConcurrencyLimit            int
	AdmissionBreakerThreshold   int
	AdmissionBreakerResetPeriod time.Duration

	CacheBreakerFailureThreshold int
	CacheBreakerResetPeriod      time.Duration
	CacheNamespaces              map[string]CacheNamespaceConfig

	FingerprintHash       string
	MLModelPath           string
	FallbackRulesEnabled  bool

	RedisAddr string
	DSN       string

	HTTPAddr      string
	APIAuthToken  string
	AllowedOrigin string

	ThreatFeedPath     string
	ThreatFeedInterval time.Duration
	ThreatFeedRetry    time.Duration
}

// Load reads the environment and returns a fully populated Config.
// Every value has a safe default; nothing here is a required secret —
// Redis and Postgres are optional collaborators and the pipeline
// degrades gracefully without them.
func Load() Config {
	return Config{
		MaxRequestSize: getEnvInt("MAX_REQUEST_SIZE", 64*1024),

		PipelineDeadline:  getEnvDurationMs("PIPELINE_DEADLINE_MS", 1700),
		ExplainerDeadline: getEnvDurationMs("EXPLAINER_DEADLINE_MS", 1000),
		PerAnalyzerDeadlines: map[string]time.Duration{
			"program": getEnvDurationMs("PROGRAM_ANALYZER_DEADLINE_MS", 50),
			"pattern": getEnvDurationMs("PATTERN_ANALYZER_DEADLINE_MS", 100),
			"ml":      getEnvDurationMs("ML_ANALYZER_DEADLINE_MS", 500),
			"account": getEnvDurationMs("ACCOUNT_ANALYZER_DEADLINE_MS", 150),
		},

		QueueMaxSize:                getEnvInt("QUEUE_MAX_SIZE", 1000),
		WorkerCount:                 getEnvInt("WORKER_COUNT", 20),
		ConcurrencyLimit:            getEnvInt("CONCURRENCY_LIMIT", 100),
		AdmissionBreakerThreshold:   getEnvInt("CIRCUIT_BREAKER_THRESHOLD", 10),
		AdmissionBreakerResetPeriod: getEnvDurationSec("CIRCUIT_BREAKER_RESET_SECONDS", 60),

		CacheBreakerFailureThreshold: getEnvInt("CACHE_BREAKER_THRESHOLD", 5),
		CacheBreakerResetPeriod:      getEnvDurationSec("CACHE_BREAKER_RESET_SECONDS", 60),
		CacheNamespaces:              defaultCacheNamespaces(),

		FingerprintHash:      getEnvOrDefault("FINGERPRINT_HASH", "sha256"),
		MLModelPath:          getEnvOrDefault("ML_MODEL_PATH", ""),
		FallbackRulesEnabled: getEnvBool("FALLBACK_RULES_ENABLED", true),

		RedisAddr: getEnvOrDefault("REDIS_ADDR", ""),
		DSN:       getEnvOrDefault("DATABASE_URL", ""),

		HTTPAddr:      getEnvOrDefault("PORT", "8080"),
		APIAuthToken:  os.Getenv("API_AUTH_TOKEN"),
		AllowedOrigin: getEnvOrDefault("ALLOWED_ORIGINS", "*"),

		ThreatFeedPath:     getEnvOrDefault("THREAT_FEED_PATH", ""),
		ThreatFeedInterval: getEnvDurationSec("THREAT_FEED_INTERVAL_SECONDS", 6*3600),
		ThreatFeedRetry:    getEnvDurationSec("THREAT_FEED_RETRY_SECONDS", 300),
	}
}

func defaultCacheNamespaces() map[string]CacheNamespaceConfig {
	return map[string]CacheNamespaceConfig{
		"scan_results":     {TTL: 5 * time.Minute, KeyPrefix: "sr:"},
		"pattern_matches":  {TTL: 30 * time.Minute, KeyPrefix: "pm:"},
		"ml_predictions":   {TTL: 10 * time.Minute, KeyPrefix: "ml:"},
		"program_analysis": {TTL: time.Hour, KeyPrefix: "pa:"},
		"account_analysis": {TTL: 15 * time.Minute, KeyPrefix: "aa:"},
		"user_sessions":    {TTL: 24 * time.Hour, KeyPrefix: "us:", Compress: true},
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDurationMs(key string, fallbackMs int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMs)) * time.Millisecond
}

func getEnvDurationSec(key string, fallbackSec int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackSec)) * time.Second
}
