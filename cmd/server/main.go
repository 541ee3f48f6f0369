// Package main is the entry point for the Cognigate gateway server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/cognigate/cognigate/internal/agent"
	"github.com/cognigate/cognigate/internal/api"
	"github.com/cognigate/cognigate/internal/bus"
	"github.com/cognigate/cognigate/internal/cache"
	"github.com/cognigate/cognigate/internal/config"
	"github.com/cognigate/cognigate/internal/executor"
	"github.com/cognigate/cognigate/internal/keypool"
	"github.com/cognigate/cognigate/internal/observability"
	"github.com/cognigate/cognigate/internal/prompt"
	"github.com/cognigate/cognigate/internal/provider"
	"github.com/cognigate/cognigate/internal/provider/anthropic"
	"github.com/cognigate/cognigate/internal/provider/gemini"
	"github.com/cognigate/cognigate/internal/provider/openailike"
	"github.com/cognigate/cognigate/internal/queue"
	"github.com/cognigate/cognigate/internal/resilience"
	"github.com/cognigate/cognigate/internal/router"
	"github.com/cognigate/cognigate/internal/tools"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	redactor := observability.NewRedactor()
	bootLog := observability.NewLogger(observability.LoggerConfig{
		Output:     os.Stdout,
		JSONFormat: true,
	}, redactor)

	cfgManager, err := config.NewManager(configPath, bootLog.Logger)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	defer cfgManager.Close()

	cfg := cfgManager.Get()

	logger := observability.NewLogger(observability.LoggerConfig{
		Level:      observability.ParseLevel(cfg.Logging.Level),
		Output:     os.Stdout,
		JSONFormat: cfg.Logging.Format != "text",
	}, redactor)
	logger.Info("starting cognigate gateway", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown", "error", err)
		}
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable at startup, sessions and queue degraded", "addr", cfg.Redis.Addr, "error", err)
	}

	pool := keypool.New(keypool.Options{
		QuarantineEnabled:  cfg.KeyManagement.EnableQuarantine,
		QuarantineDuration: cfg.KeyManagement.QuarantineDuration,
		SweepInterval:      cfg.KeyManagement.SweepInterval,
		Logger:             logger.Logger,
	})
	if err := pool.LoadDir(cfg.Server.KeysDir); err != nil {
		logger.Warn("credential directory load failed", "dir", cfg.Server.KeysDir, "error", err)
	}
	if v := cfg.KeyManagement.Vault; v != nil && v.Address != "" {
		if err := pool.LoadVault(ctx, keypool.VaultConfig{
			Address:   v.Address,
			Token:     v.Token,
			MountPath: v.MountPath,
		}, profileProviders(cfg)); err != nil {
			logger.Warn("vault credential load failed", "error", err)
		}
	}

	registry := provider.NewRegistry()
	registry.Register(anthropic.New())
	registry.Register(gemini.New())
	registry.SetFallback(func(name string) provider.Adapter {
		return openailike.New(name)
	})

	exec := executor.New(pool, logger.Logger)

	var store cache.Store
	if cfg.Cache.Backend == "redis" {
		store = cache.NewRedisStore(redisClient)
	} else {
		store = cache.NewMemoryStore()
	}
	defer store.Close()
	cacheMgr := cache.NewManager(store, cache.NewKeyGenerator(cfg.Cache.KeyPrefix), logger.Logger)

	rt := router.New(cfgManager, registry, exec, cacheMgr, logger.Logger)

	patterns, err := prompt.NewPatternStore(cfg.Server.PatternDir)
	if err != nil {
		logger.Warn("pattern directory load failed", "dir", cfg.Server.PatternDir, "error", err)
	}

	var toolClient *tools.Client
	if cfg.Agent.MCPServerURL != "" {
		toolClient = tools.NewClient(cfg.Agent.MCPServerURL, cfg.Agent.ToolTimeout)
	}

	eventBus := bus.New(redisClient, logger.Logger)
	taskQueue := queue.New(redisClient, "")

	engine := agent.New(cfgManager, rt, eventBus, taskQueue, patterns, toolClient, tp.Tracer(), logger.Logger)

	restart := make(chan struct{}, 1)
	handler := api.NewHandler(cfgManager, rt, pool, eventBus, taskQueue, patterns, logger, func() {
		select {
		case restart <- struct{}{}:
		default:
		}
	})

	limiter := resilience.NewClientLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)

	mux := buildMux(cfg, handler)
	httpHandler := buildMiddleware(cfg, limiter, logger)(mux)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     httpHandler,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays zero so SSE sessions are never cut off.
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return engine.Run(gctx)
	})
	g.Go(func() error {
		pool.Run(gctx)
		return nil
	})
	g.Go(func() error {
		limiter.Run(gctx.Done())
		return nil
	})
	g.Go(func() error {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
	case <-restart:
		logger.Info("restart requested, shutting down for supervisor")
	case <-gctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	cancel()

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("subsystem exited with error", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

// profileProviders collects the distinct providers referenced by the
// model list, preserving first-seen order.
func profileProviders(cfg *config.Config) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range cfg.ModelList {
		if _, ok := seen[p.Provider]; ok {
			continue
		}
		seen[p.Provider] = struct{}{}
		out = append(out, p.Provider)
	}
	return out
}
