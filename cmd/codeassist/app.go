package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/CodeAssist/internal/adapter/markdownlog"
	cfnats "github.com/Strob0t/CodeAssist/internal/adapter/nats"
	cfotel "github.com/Strob0t/CodeAssist/internal/adapter/otel"
	"github.com/Strob0t/CodeAssist/internal/adapter/postgres"
	"github.com/Strob0t/CodeAssist/internal/config"
	"github.com/Strob0t/CodeAssist/internal/domain/pipeline"
	"github.com/Strob0t/CodeAssist/internal/domain/tool"
	"github.com/Strob0t/CodeAssist/internal/port/audit"
	"github.com/Strob0t/CodeAssist/internal/port/cache"
	"github.com/Strob0t/CodeAssist/internal/port/completion"
	"github.com/Strob0t/CodeAssist/internal/service"
)

// app holds everything shared by the serve, invoke and tools commands.
type app struct {
	cfg       *config.Config
	metrics   *cfotel.Metrics
	queue     *cfnats.Queue // nil unless audit or cache uses NATS
	pool      *pgxpool.Pool // nil unless audit.postgres
	cache     cache.Cache   // nil when caching is disabled
	completer completion.Completer
	audit     *service.MultiSink
	registry  *tool.Registry
	runner    service.Runner

	closers []func()
}

// buildApp connects the configured infrastructure and assembles the tool
// registry and runner. metrics may be nil.
func buildApp(ctx context.Context, cfg *config.Config, metrics *cfotel.Metrics) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	slog.Info("agent ready", "mode", cfg.Agent.Mode, "provider", cfg.LLM.Provider, "tools", a.registry.Len())
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg := a.cfg
	if cfg.Audit.NATS || (cfg.Cache.Enabled && cfg.Cache.L2 == config.CacheL2NATS) {
		q, err := cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		a.queue = q
		a.onClose(func() { _ = q.Drain() })
	}

	c, closeCache, err := newCache(ctx, cfg, a.queue)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	a.cache = c
	a.onClose(closeCache)

	a.completer, err = newCompleter(ctx, cfg, a.cache, a.metrics)
	if err != nil {
		return err
	}

	if err := a.buildAudit(ctx); err != nil {
		return err
	}
	a.buildRegistry()

	switch cfg.Agent.Mode {
	case config.AgentModeDirect:
		a.runner = service.NewDirectRunner(a.completer, a.audit)
	default:
		a.runner = service.NewAgentGraph(a.registry, a.completer, a.audit)
	}
	return nil
}

func (a *app) buildAudit(ctx context.Context) error {
	var sinks []audit.Sink

	if dir := a.cfg.Audit.Dir; dir != "" {
		s, err := markdownlog.New(dir)
		if err != nil {
			return fmt.Errorf("audit dir: %w", err)
		}
		sinks = append(sinks, s)
	}

	if a.cfg.Audit.Postgres {
		pool, err := postgres.NewPool(ctx, a.cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		a.pool = pool
		a.onClose(pool.Close)
		if err := postgres.RunMigrations(ctx, a.cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		sinks = append(sinks, postgres.NewAuditStore(pool))
	}

	if a.cfg.Audit.NATS && a.queue != nil {
		sinks = append(sinks, cfnats.NewAuditPublisher(a.queue))
	}

	a.audit = service.NewMultiSink(sinks...)
	slog.Info("audit sinks configured", "count", a.audit.Len())
	return nil
}

func (a *app) buildRegistry() {
	extra, err := pipeline.LoadFromDirectory(a.cfg.Pipelines.Dir)
	if err != nil {
		slog.Error("some pipeline definitions failed to load", "dir", a.cfg.Pipelines.Dir, "error", err)
	}

	a.registry = tool.NewRegistry()
	deps := service.ToolDeps{Completer: a.completer, Audit: a.audit, Metrics: a.metrics}
	tool.Discover(a.registry, service.BuiltinLoaders(deps, extra...)...)
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
