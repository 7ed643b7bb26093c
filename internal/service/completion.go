package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	cfotel "github.com/Strob0t/CodeAssist/internal/adapter/otel"
	"github.com/Strob0t/CodeAssist/internal/port/cache"
	"github.com/Strob0t/CodeAssist/internal/port/completion"
)

const completionNamespace = "completion"

// CachedCompleter serves repeated prompts from a cache and collapses
// concurrent identical prompts into one backend call. Cache errors never
// fail a completion.
type CachedCompleter struct {
	inner   completion.Completer
	cache   cache.Cache
	ttl     time.Duration
	scope   string
	group   singleflight.Group
	metrics *cfotel.Metrics
}

// NewCachedCompleter wraps inner. scope (typically provider/model) is part
// of every key so switching models never serves stale answers.
func NewCachedCompleter(inner completion.Completer, c cache.Cache, ttl time.Duration, scope string) *CachedCompleter {
	return &CachedCompleter{inner: inner, cache: c, ttl: ttl, scope: scope}
}

// SetMetrics enables cache hit counting.
func (c *CachedCompleter) SetMetrics(m *cfotel.Metrics) {
	c.metrics = m
}

// Complete returns the cached completion for prompt or asks the backend.
func (c *CachedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	key := cache.Key(completionNamespace, c.scope+"\x00"+prompt)

	if data, ok, err := c.cache.Get(ctx, key); err != nil {
		slog.WarnContext(ctx, "completion cache get failed", "error", err)
	} else if ok {
		if c.metrics != nil {
			c.metrics.CacheHits.Add(ctx, 1)
		}
		return string(data), nil
	}

	// The shared call is detached from every caller's cancellation; each
	// caller stops waiting when its own ctx ends.
	ch := c.group.DoChan(key, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		out, err := c.inner.Complete(shared, prompt)
		if err != nil {
			return "", err
		}
		if err := c.cache.Set(shared, key, []byte(out), c.ttl); err != nil {
			slog.WarnContext(ctx, "completion cache set failed", "error", err)
		}
		return out, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Health delegates to the wrapped completer when it can report health.
func (c *CachedCompleter) Health(ctx context.Context) (bool, error) {
	if hc, ok := c.inner.(completion.HealthChecker); ok {
		return hc.Health(ctx)
	}
	return true, nil
}

// TracedCompleter records a span and a call counter around every completion.
type TracedCompleter struct {
	inner    completion.Completer
	provider string
	model    string
	metrics  *cfotel.Metrics
}

// NewTracedCompleter wraps inner. metrics may be nil.
func NewTracedCompleter(inner completion.Completer, provider, model string, m *cfotel.Metrics) *TracedCompleter {
	return &TracedCompleter{inner: inner, provider: provider, model: model, metrics: m}
}

// Complete forwards to the wrapped completer.
func (t *TracedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := cfotel.StartCompletionSpan(ctx, t.provider, t.model)
	out, err := t.inner.Complete(ctx, prompt)
	cfotel.EndSpan(span, err)

	if t.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		t.metrics.CompletionCalls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("llm.provider", t.provider),
			attribute.String("status", status),
		))
	}
	return out, err
}

// Health delegates to the wrapped completer when it can report health.
func (t *TracedCompleter) Health(ctx context.Context) (bool, error) {
	if hc, ok := t.inner.(completion.HealthChecker); ok {
		return hc.Health(ctx)
	}
	return true, nil
}
