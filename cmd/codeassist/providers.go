package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/CodeAssist/internal/adapter/anthropic"
	"github.com/Strob0t/CodeAssist/internal/adapter/dummy"
	"github.com/Strob0t/CodeAssist/internal/adapter/gemini"
	"github.com/Strob0t/CodeAssist/internal/adapter/litellm"
	cfnats "github.com/Strob0t/CodeAssist/internal/adapter/nats"
	"github.com/Strob0t/CodeAssist/internal/adapter/natskv"
	cfotel "github.com/Strob0t/CodeAssist/internal/adapter/otel"
	"github.com/Strob0t/CodeAssist/internal/adapter/redis"
	"github.com/Strob0t/CodeAssist/internal/adapter/ristretto"
	"github.com/Strob0t/CodeAssist/internal/adapter/tiered"
	"github.com/Strob0t/CodeAssist/internal/config"
	"github.com/Strob0t/CodeAssist/internal/domain"
	"github.com/Strob0t/CodeAssist/internal/port/cache"
	"github.com/Strob0t/CodeAssist/internal/port/completion"
	"github.com/Strob0t/CodeAssist/internal/resilience"
	"github.com/Strob0t/CodeAssist/internal/service"
)

// newProvider builds the configured completion backend behind a circuit
// breaker. Unknown providers are a configuration error.
func newProvider(ctx context.Context, cfg *config.Config) (completion.Completer, error) {
	llm := cfg.LLM
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)

	switch llm.Provider {
	case config.ProviderLiteLLM, config.ProviderOpenAI, config.ProviderOllama:
		c := litellm.NewClient(litellm.Config{
			BaseURL:     llm.URL,
			APIKey:      llm.APIKey,
			Model:       llm.Model,
			System:      llm.System,
			Temperature: llm.Temperature,
			MaxTokens:   llm.MaxTokens,
			Timeout:     llm.Timeout,
		})
		c.SetBreaker(breaker)
		return c, nil

	case config.ProviderAnthropic:
		c, err := anthropic.New(anthropic.Config{
			APIKey:    llm.APIKey,
			Model:     llm.Model,
			System:    llm.System,
			MaxTokens: llm.MaxTokens,
			BaseURL:   llm.URL,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
		c.SetBreaker(breaker)
		return c, nil

	case config.ProviderGemini:
		c, err := gemini.New(ctx, gemini.Config{
			APIKey:      llm.APIKey,
			Model:       llm.Model,
			System:      llm.System,
			Temperature: llm.Temperature,
			MaxTokens:   llm.MaxTokens,
			BaseURL:     llm.URL,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
		c.SetBreaker(breaker)
		return c, nil

	case config.ProviderDummy:
		return dummy.New(), nil

	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", domain.ErrConfiguration, llm.Provider)
	}
}

// newCompleter wraps the provider with tracing and, when c is non-nil, the
// completion cache.
func newCompleter(ctx context.Context, cfg *config.Config, c cache.Cache, metrics *cfotel.Metrics) (completion.Completer, error) {
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.LLM.Model
	if m, ok := provider.(interface{ Model() string }); ok {
		model = m.Model()
	}

	var out completion.Completer = service.NewTracedCompleter(provider, cfg.LLM.Provider, model, metrics)
	if c == nil {
		return out, nil
	}
	cached := service.NewCachedCompleter(out, c, cfg.Cache.TTL, cfg.LLM.Provider+"/"+model)
	cached.SetMetrics(metrics)
	return cached, nil
}

// newCache builds the ristretto L1 and, when configured, a NATS KV or Redis
// L2 behind it. It returns nil when caching is disabled.
func newCache(ctx context.Context, cfg *config.Config, queue *cfnats.Queue) (cache.Cache, func(), error) {
	if !cfg.Cache.Enabled {
		return nil, func() {}, nil
	}

	l1, err := ristretto.New(ristretto.Config{
		MaxCostBytes: cfg.Cache.L1MaxSizeMB << 20,
		DefaultTTL:   cfg.Cache.TTL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("l1 cache: %w", err)
	}
	l1Expire := min(cfg.Cache.TTL, time.Hour)

	switch cfg.Cache.L2 {
	case config.CacheL2NATS:
		kv, err := natskv.Open(ctx, queue.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.TTL)
		if err != nil {
			l1.Close()
			return nil, nil, err
		}
		return tiered.New(l1, kv, l1Expire), l1.Close, nil

	case config.CacheL2Redis:
		rc, err := redis.Connect(ctx, cfg.Redis.URL, cfg.Redis.Prefix+":")
		if err != nil {
			l1.Close()
			return nil, nil, err
		}
		return tiered.New(l1, rc, l1Expire), func() {
			l1.Close()
			_ = rc.Close()
		}, nil

	default:
		return l1, l1.Close, nil
	}
}
