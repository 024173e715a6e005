package netwatch

import (
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"

	"github.com/dgnsrekt/assetwatch/internal/types"
)

// Config is the `page`-scoped configuration object a Watcher is built
// from. Struct-tag defaults (via mcuadros/go-defaults) fill in every field
// the caller leaves zero-valued; only NetworkIdleTimeoutMS and
// CaptureMockedServiceWorker carry a meaningful default, the rest default
// to their Go zero value, which also reads as "absent" to the rest of the
// package.
type Config struct {
	NetworkIdleTimeoutMS       int    `default:"100"`
	Authorization              *types.Authorization
	RequestHeaders              map[string]string
	CaptureMockedServiceWorker bool `default:"false"`
	UserAgent                   string
	Intercept                   types.InterceptPolicy
	Meta                        any
}

// ApplyDefaults fills zero-valued fields per their `default` tag.
func (c *Config) ApplyDefaults() {
	defaults.SetDefaults(c)
}

const (
	// envIdleWaitTimeout is the environment variable that overrides the
	// hard ceiling on how long Idle will ever block.
	envIdleWaitTimeout        = "PERCY_NETWORK_IDLE_WAIT_TIMEOUT"
	defaultIdleWaitTimeoutMS  = 30000
	idleWaitWarnThresholdMS   = 60000
)

var (
	idleWaitTimeoutOnce sync.Once
	idleWaitTimeout     time.Duration
)

// idleHardCeiling reads PERCY_NETWORK_IDLE_WAIT_TIMEOUT once, at first use,
// and caches it for the lifetime of the process.
func idleHardCeiling() time.Duration {
	idleWaitTimeoutOnce.Do(func() {
		ms := defaultIdleWaitTimeoutMS
		if raw := os.Getenv(envIdleWaitTimeout); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil {
				ms = parsed
			} else {
				slog.Warn("invalid "+envIdleWaitTimeout+", using default", "value", raw, "default_ms", defaultIdleWaitTimeoutMS)
			}
		}
		if ms > idleWaitWarnThresholdMS {
			slog.Warn(envIdleWaitTimeout+" exceeds recommended ceiling", "value_ms", ms, "threshold_ms", idleWaitWarnThresholdMS)
		}
		idleWaitTimeout = time.Duration(ms) * time.Millisecond
	})
	return idleWaitTimeout
}
