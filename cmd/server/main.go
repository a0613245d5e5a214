package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "memberdir/syncservice/internal/api/http"
	"memberdir/syncservice/internal/app"
	"memberdir/syncservice/internal/directory"
	"memberdir/syncservice/internal/heropool"
	"memberdir/syncservice/internal/metrics"
	"memberdir/syncservice/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "directory-sync")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "directory-sync"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("backendURL", cfg.BackendURL),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Bool("cacheDisabled", cfg.CacheDisabled),
		slog.Duration("cacheTTL", cfg.CacheTTL),
	)

	backendClient := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	client, err := directory.NewClient(directory.ClientConfig{
		BaseURL:   cfg.BackendURL,
		UserAgent: cfg.UserAgent,
		Client:    backendClient,
	})
	if err != nil {
		logger.Error("invalid backend configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	probeClient := &http.Client{
		Timeout:   cfg.ProbeTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	heroSelector := heropool.NewSelector(
		heropool.NewHTTPProber(probeClient, cfg.UserAgent),
		heropool.WithMaxConcurrentProbes(int64(cfg.ProbeConcurrency)),
	)

	serviceOpts := append(buildCacheOptions(cfg, logger),
		directory.WithLogger(logger),
		directory.WithHeroSelector(heroSelector),
		directory.WithSnippetBudget(cfg.SnippetLength),
		directory.WithDefaultPageSize(cfg.DefaultPageSize),
	)
	service := directory.NewService(client, cfg.RequestTimeout, serviceOpts...)

	handler := apihttp.NewServer(service, apihttp.WithLogger(logger)).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("directory sync service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.RequestTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("directory sync service stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildCacheOptions(cfg app.Config, logger *slog.Logger) []directory.ServiceOption {
	var opts []directory.ServiceOption

	if cfg.CacheDisabled {
		opts = append(opts, directory.WithCacheDisabled(true))
		return opts
	}

	if cfg.CacheTTL > 0 {
		opts = append(opts, directory.WithCacheTTL(cfg.CacheTTL))
	}

	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Warn("invalid redis url, using in-memory cache only", slog.String("error", err.Error()))
			return opts
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable, using in-memory cache only", slog.String("error", err.Error()))
			return opts
		}
		logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
		opts = append(opts, directory.WithRedisCache(directory.NewRedisCacheBackend(redisClient)))
	}

	return opts
}
