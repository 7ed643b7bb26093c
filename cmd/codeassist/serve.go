package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	cfhttp "github.com/Strob0t/CodeAssist/internal/adapter/http"
	"github.com/Strob0t/CodeAssist/internal/adapter/markdown"
	"github.com/Strob0t/CodeAssist/internal/adapter/mcp"
	"github.com/Strob0t/CodeAssist/internal/adapter/memory"
	cfotel "github.com/Strob0t/CodeAssist/internal/adapter/otel"
	"github.com/Strob0t/CodeAssist/internal/adapter/ws"
	"github.com/Strob0t/CodeAssist/internal/config"
	"github.com/Strob0t/CodeAssist/internal/logger"
	"github.com/Strob0t/CodeAssist/internal/middleware"
	"github.com/Strob0t/CodeAssist/internal/port/a2a"
	"github.com/Strob0t/CodeAssist/internal/port/completion"
	"github.com/Strob0t/CodeAssist/internal/resilience"
	"github.com/Strob0t/CodeAssist/internal/service"
)

const idempotencyTTL = 24 * time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and the MCP listener when enabled)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logs, err := loadConfig()
		if err != nil {
			return err
		}
		defer flushLogs(logs)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg, logs)
	},
}

func runServe(ctx context.Context, cfg *config.Config, logs logger.Flusher) error {
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"mode", cfg.Agent.Mode,
		"provider", cfg.LLM.Provider,
		"cache", cfg.Cache.Enabled,
	)

	// --- Observability ---
	otelShutdown, err := cfotel.Setup(ctx, cfotel.Config{
		Enabled:     cfg.OTEL.Enabled,
		Endpoint:    cfg.OTEL.Endpoint,
		Insecure:    cfg.OTEL.Insecure,
		ServiceName: cfg.OTEL.ServiceName,
		SampleRate:  cfg.OTEL.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	var metrics *cfotel.Metrics
	if cfg.OTEL.Enabled {
		if metrics, err = cfotel.NewMetrics(); err != nil {
			return fmt.Errorf("otel metrics: %w", err)
		}
		if err := metrics.ObserveLogDrops(logs.Dropped); err != nil {
			return fmt.Errorf("otel metrics: %w", err)
		}
	}

	// --- Infrastructure and tools ---
	a, err := buildApp(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer a.Close()
	checkProvider(ctx, a.completer)

	// --- Task manager ---
	hub := ws.NewHub()
	tasks := service.NewTaskManager(a.runner, memory.NewTaskStore(), hub)
	tasks.SetMetrics(metrics)
	tasks.SetConcurrency(resilience.NewPool(cfg.Tasks.MaxConcurrent))
	if a.queue != nil {
		tasks.SetQueue(a.queue)
	}
	stopSweep := tasks.StartRetentionSweep(cfg.Tasks.Retention, sweepInterval(cfg.Tasks.Retention))
	defer stopSweep()

	// --- HTTP ---
	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newRouter(cfg, a, tasks, hub, limiter),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout, // tool invocations extend their own deadline
		IdleTimeout:       120 * time.Second,
	}

	var mcpSrv *mcp.Server
	if cfg.MCP.Enabled {
		mcpSrv = mcp.NewServer(mcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    "codeassist",
			Version: version,
			APIKey:  cfg.MCP.APIKey,
		}, mcp.ServerDeps{Tools: a.registry, Tasks: tasks})
		if err := mcpSrv.Start(); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		limiter.Run(gctx, cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
		return nil
	})
	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Tasks.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if mcpSrv != nil {
			if err := mcpSrv.Stop(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("mcp shutdown: %w", err))
			}
		}
		hub.Close()
		if err := tasks.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		// Drain logs before the final metric export so the drop count is complete.
		if err := logs.Flush(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := otelShutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("otel shutdown: %w", err))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}

func newRouter(cfg *config.Config, a *app, tasks *service.TaskManager, hub *ws.Hub, limiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(cfhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cfhttp.SecurityHeaders)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	if cfg.OTEL.Enabled {
		r.Use(cfotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	}

	r.Use(limiter.Handler)

	var postMiddleware []func(http.Handler) http.Handler
	if a.cache != nil {
		postMiddleware = append(postMiddleware, middleware.Idempotency(a.cache, idempotencyTTL))
	}

	cfhttp.MountRoutes(r, &cfhttp.Handlers{
		Tasks:    tasks,
		Tools:    a.registry,
		Markdown: markdown.NewRenderer(),
		Events:   hub.HandleWS,

		InvokeTimeout: cfg.Server.InvokeTimeout,
	}, postMiddleware...)

	baseURL := cfg.Server.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.Server.Port
	}
	a2a.NewHandler(baseURL, tasks, a.registry).MountRoutes(r)

	return r
}

// sweepInterval checks a few times per retention window, at most once a minute.
func sweepInterval(retention time.Duration) time.Duration {
	return max(retention/4, time.Minute)
}

// checkProvider logs whether the completion backend is reachable. An
// unreachable backend does not stop the server.
func checkProvider(ctx context.Context, c completion.Completer) {
	hc, ok := c.(completion.HealthChecker)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if healthy, err := hc.Health(ctx); err != nil || !healthy {
		slog.Warn("llm provider not reachable", "error", err)
	}
}
