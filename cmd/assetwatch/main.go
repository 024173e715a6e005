package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/assetwatch/internal/api"
	"github.com/dgnsrekt/assetwatch/internal/browser"
	"github.com/dgnsrekt/assetwatch/internal/config"
	"github.com/dgnsrekt/assetwatch/internal/hostmatch"
	"github.com/dgnsrekt/assetwatch/internal/mimesniff"
	"github.com/dgnsrekt/assetwatch/internal/netwatch"
	"github.com/dgnsrekt/assetwatch/internal/resourcecache"
	"github.com/dgnsrekt/assetwatch/internal/types"
	"github.com/dgnsrekt/assetwatch/internal/urlnorm"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assetwatch",
		Short: "Attach to a running browser page and discover its network assets",
		RunE:  runWatch,
	}
	cmd.Flags().String("target-id", "", "attach to this exact CDP target ID instead of matching by URL substring")
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		slog.Debug("log directory creation failed", "error", err)
	}

	logWriter := &lumberjack.Logger{
		Filename:   "logs/assetwatch.log",
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(handler))

	slog.Info("starting asset discovery engine")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	slog.Info("configuration loaded",
		"cdp_address", cfg.CDPAddress,
		"cdp_port", cfg.CDPPort,
		"cache_backend", cfg.CacheBackend,
		"status_addr", cfg.StatusAddr,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	cache, err := buildCache(cfg)
	if err != nil {
		return fmt.Errorf("build resource cache: %w", err)
	}

	targetID, _ := cmd.Flags().GetString("target-id")
	filter := browser.ByURLSubstring(cfg.TargetURLFilter)
	if targetID != "" {
		filter = browser.ByTargetID(targetID)
	}

	attachment, err := browser.Attach(ctx, cfg.CDPAddress, cfg.CDPPort, filter)
	if err != nil {
		slog.Error("failed to attach to browser", "error", err)
		slog.Info("make sure Chromium is running with --remote-debugging-port enabled")
		return err
	}
	defer attachment.Close()
	slog.Info("attached to page", "target_id", attachment.TargetID, "url", attachment.URL)

	watcher := netwatch.NewWatcher(watcherConfig(cfg, cache), resourcecache.NewHTTPFetcher(nil), urlnorm.New(), mimesniff.New())
	if err := watcher.Watch(attachment.TargetCtx); err != nil {
		return fmt.Errorf("watch page: %w", err)
	}
	defer watcher.Close()

	server := &http.Server{Addr: cfg.StatusAddr, Handler: api.NewServer(watcher)}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("status server stopped unexpectedly", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	printStatusLine(cfg.StatusAddr, attachment.URL)
	slog.Info("engine running, press Ctrl+C to stop")

	<-sigCh
	slog.Info("shutdown signal received")
	cancel()
	slog.Info("engine stopped", "captured", watcher.CapturedCount(), "aborted", watcher.AbortedCount())
	return nil
}

func buildCache(cfg *config.Config) (types.ResourceCache, error) {
	var inner types.ResourceCache
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		inner = resourcecache.NewRedisCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddress}), cfg.RedisKeyPrefix)
	default:
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		inner = resourcecache.NewDiskCache(afero.NewOsFs(), cfg.CacheDir)
	}
	return resourcecache.NewBreakerCache(inner, string(cfg.CacheBackend)), nil
}

func watcherConfig(cfg *config.Config, cache types.ResourceCache) *netwatch.Config {
	nc := &netwatch.Config{
		NetworkIdleTimeoutMS:       cfg.NetworkIdleTimeoutMS,
		CaptureMockedServiceWorker: cfg.CaptureMockedServiceWorker,
		UserAgent:                  cfg.UserAgent,
		Intercept: types.InterceptPolicy{
			Cache:                   cache,
			DisableCache:            cfg.DisableCache,
			EnableJavaScriptCapture: cfg.EnableJavaScriptCapture,
		},
	}
	if len(cfg.AllowedHostnames) > 0 {
		nc.Intercept.AllowedHostnames = hostmatch.New(cfg.AllowedHostnames)
	}
	if len(cfg.DisallowedHostnames) > 0 {
		nc.Intercept.DisallowedHostnames = hostmatch.New(cfg.DisallowedHostnames)
	}
	if cfg.AuthUsername != "" {
		nc.Authorization = &types.Authorization{Username: cfg.AuthUsername, Password: cfg.AuthPassword}
	}
	return nc
}

// printStatusLine announces where the status API is listening, colored
// when stdout is a real terminal and plain otherwise (so piped/CI output
// stays clean).
func printStatusLine(statusAddr, pageURL string) {
	plain := !isatty.IsTerminal(os.Stdout.Fd())
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	if plain {
		bold.DisableColor()
		green.DisableColor()
	}
	bold.Printf("assetwatch")
	fmt.Print(" attached to ")
	green.Printf("%s", pageURL)
	fmt.Printf(", status API on http://%s/status\n", statusAddr)
}
