package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// CacheBackend selects the ResourceCache implementation the process wires
// up.
type CacheBackend string

const (
	CacheBackendDisk  CacheBackend = "disk"
	CacheBackendRedis CacheBackend = "redis"
)

// Config holds process-level configuration: the CDP attach target, the
// resource-cache backend, hostname policy, and the pass-through knobs fed
// into netwatch.Config. Grounded on this codebase's existing config
// loader, re-pointed at the asset-discovery domain.
type Config struct {
	// CDP connection settings
	CDPAddress string
	CDPPort    int

	// Target selection: attach to the first page target whose URL contains
	// this substring. Empty matches the first page target found.
	TargetURLFilter string

	// Resource cache backend
	CacheBackend  CacheBackend
	CacheDir      string
	RedisAddress  string
	RedisKeyPrefix string

	// Hostname policy (glob patterns, comma-separated in the environment)
	AllowedHostnames    []string
	DisallowedHostnames []string

	// netwatch.Config pass-through knobs
	NetworkIdleTimeoutMS       int
	CaptureMockedServiceWorker bool
	EnableJavaScriptCapture    bool
	DisableCache               bool
	UserAgent                  string

	// HTTP Basic auth injected on both Fetch.continueWithAuth and the
	// direct-fetch font re-fetch path.
	AuthUsername string
	AuthPassword string

	// Status API
	StatusAddr string
}

// Load reads configuration from environment variables and an optional
// .env file, the same godotenv.Load()-then-typed-getters shape this
// codebase's config package has always used.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:      getEnvOrDefault("ASSETWATCH_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:         getEnvIntOrDefault("ASSETWATCH_CDP_PORT", 9220),
		TargetURLFilter: getEnvOrDefault("ASSETWATCH_TARGET_URL_FILTER", ""),

		CacheBackend:   CacheBackend(getEnvOrDefault("ASSETWATCH_CACHE_BACKEND", string(CacheBackendDisk))),
		CacheDir:       getEnvOrDefault("ASSETWATCH_CACHE_DIR", "./assetwatch_cache"),
		RedisAddress:   getEnvOrDefault("ASSETWATCH_REDIS_ADDRESS", "127.0.0.1:6379"),
		RedisKeyPrefix: getEnvOrDefault("ASSETWATCH_REDIS_KEY_PREFIX", "assetwatch"),

		AllowedHostnames:    splitGlobList(getEnvOrDefault("ASSETWATCH_ALLOWED_HOSTNAMES", "")),
		DisallowedHostnames: splitGlobList(getEnvOrDefault("ASSETWATCH_DISALLOWED_HOSTNAMES", "")),

		NetworkIdleTimeoutMS:       getEnvIntOrDefault("ASSETWATCH_NETWORK_IDLE_TIMEOUT_MS", 100),
		CaptureMockedServiceWorker: getEnvBoolOrDefault("ASSETWATCH_CAPTURE_MOCKED_SERVICE_WORKER", false),
		EnableJavaScriptCapture:    getEnvBoolOrDefault("ASSETWATCH_ENABLE_JAVASCRIPT_CAPTURE", false),
		DisableCache:               getEnvBoolOrDefault("ASSETWATCH_DISABLE_CACHE", false),
		UserAgent:                  getEnvOrDefault("ASSETWATCH_USER_AGENT", ""),

		AuthUsername: getEnvOrDefault("ASSETWATCH_AUTH_USERNAME", ""),
		AuthPassword: getEnvOrDefault("ASSETWATCH_AUTH_PASSWORD", ""),

		StatusAddr: getEnvOrDefault("ASSETWATCH_STATUS_ADDR", "127.0.0.1:4040"),
	}

	return cfg, nil
}

func splitGlobList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
