package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/CodeAssist/internal/domain"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "codeassist.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w: %w", domain.ErrConfiguration, err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CODEASSIST_PORT")
	setString(&cfg.Server.CORSOrigin, "CODEASSIST_CORS_ORIGIN")
	setString(&cfg.Server.BaseURL, "CODEASSIST_BASE_URL")
	setDuration(&cfg.Server.WriteTimeout, "CODEASSIST_WRITE_TIMEOUT")
	setDuration(&cfg.Server.InvokeTimeout, "CODEASSIST_INVOKE_TIMEOUT")
	setString(&cfg.Agent.Mode, "CODEASSIST_AGENT_MODE")

	// LLM
	setString(&cfg.LLM.Provider, "CODEASSIST_LLM_PROVIDER")
	setString(&cfg.LLM.URL, "LITELLM_URL")
	setString(&cfg.LLM.URL, "CODEASSIST_LLM_URL")
	setString(&cfg.LLM.APIKey, "LITELLM_MASTER_KEY")
	setString(&cfg.LLM.Model, "CODEASSIST_LLM_MODEL")
	setString(&cfg.LLM.System, "CODEASSIST_LLM_SYSTEM")
	setFloat64(&cfg.LLM.Temperature, "CODEASSIST_LLM_TEMPERATURE")
	setInt(&cfg.LLM.MaxTokens, "CODEASSIST_LLM_MAX_TOKENS")
	setDuration(&cfg.LLM.Timeout, "CODEASSIST_LLM_TIMEOUT")
	switch cfg.LLM.Provider {
	case ProviderOpenAI:
		setString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	case ProviderAnthropic:
		setString(&cfg.LLM.APIKey, "ANTHROPIC_API_KEY")
	case ProviderGemini:
		setString(&cfg.LLM.APIKey, "GEMINI_API_KEY")
	}
	setString(&cfg.LLM.APIKey, "CODEASSIST_LLM_API_KEY")

	setString(&cfg.Pipelines.Dir, "CODEASSIST_PIPELINES_DIR")

	// Audit
	setString(&cfg.Audit.Dir, "CODEASSIST_AUDIT_DIR")
	setBool(&cfg.Audit.Postgres, "CODEASSIST_AUDIT_POSTGRES")
	setBool(&cfg.Audit.NATS, "CODEASSIST_AUDIT_NATS")

	// Postgres
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CODEASSIST_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CODEASSIST_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CODEASSIST_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CODEASSIST_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CODEASSIST_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Redis.Prefix, "CODEASSIST_REDIS_PREFIX")

	// Cache
	setBool(&cfg.Cache.Enabled, "CODEASSIST_CACHE_ENABLED")
	setInt64(&cfg.Cache.L1MaxSizeMB, "CODEASSIST_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "CODEASSIST_CACHE_TTL")
	setString(&cfg.Cache.L2, "CODEASSIST_CACHE_L2")
	setString(&cfg.Cache.L2Bucket, "CODEASSIST_CACHE_L2_BUCKET")

	setString(&cfg.Logging.Level, "CODEASSIST_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CODEASSIST_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CODEASSIST_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "CODEASSIST_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "CODEASSIST_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "CODEASSIST_RATE_RPS")
	setInt(&cfg.Rate.Burst, "CODEASSIST_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "CODEASSIST_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "CODEASSIST_RATE_MAX_IDLE_TIME")

	// OpenTelemetry
	setBool(&cfg.OTEL.Enabled, "CODEASSIST_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "CODEASSIST_OTEL_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "CODEASSIST_OTEL_INSECURE")
	setString(&cfg.OTEL.ServiceName, "CODEASSIST_OTEL_SERVICE_NAME")
	setFloat64(&cfg.OTEL.SampleRate, "CODEASSIST_OTEL_SAMPLE_RATE")

	setBool(&cfg.MCP.Enabled, "CODEASSIST_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "CODEASSIST_MCP_ADDR")
	setString(&cfg.MCP.APIKey, "CODEASSIST_MCP_API_KEY")

	setDuration(&cfg.Tasks.Retention, "CODEASSIST_TASK_RETENTION")
	setDuration(&cfg.Tasks.ShutdownTimeout, "CODEASSIST_SHUTDOWN_TIMEOUT")
	setInt(&cfg.Tasks.MaxConcurrent, "CODEASSIST_TASK_MAX_CONCURRENT")
}

// validate checks that required fields are set and enumerations are known.
// Every failure wraps domain.ErrConfiguration.
func validate(cfg *Config) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrConfiguration}, args...)...))
	}

	if cfg.Server.Port == "" {
		fail("server.port is required")
	}
	if cfg.Server.WriteTimeout <= 0 || cfg.Server.InvokeTimeout <= 0 {
		fail("server.write_timeout and server.invoke_timeout must be positive")
	}
	switch cfg.Agent.Mode {
	case AgentModeGraph, AgentModeDirect:
	default:
		fail("agent.mode %q is not one of graph, direct", cfg.Agent.Mode)
	}
	switch cfg.LLM.Provider {
	case ProviderLiteLLM, ProviderOpenAI, ProviderOllama:
		if cfg.LLM.URL == "" {
			fail("llm.url is required for provider %s", cfg.LLM.Provider)
		}
	case ProviderAnthropic, ProviderGemini:
		if cfg.LLM.APIKey == "" {
			fail("llm.api_key is required for provider %s", cfg.LLM.Provider)
		}
	case ProviderDummy:
	default:
		fail("llm.provider %q is unknown", cfg.LLM.Provider)
	}
	if cfg.Audit.Postgres && cfg.Postgres.DSN == "" {
		fail("postgres.dsn is required when audit.postgres is set")
	}
	if cfg.Postgres.MaxConns < 1 {
		fail("postgres.max_conns must be >= 1")
	}
	if (cfg.Audit.NATS || cfg.Cache.L2 == CacheL2NATS) && cfg.NATS.URL == "" {
		fail("nats.url is required")
	}
	switch cfg.Cache.L2 {
	case "", CacheL2None, CacheL2NATS:
	case CacheL2Redis:
		if cfg.Redis.URL == "" {
			fail("redis.url is required when cache.l2 is redis")
		}
	default:
		fail("cache.l2 %q is not one of none, nats, redis", cfg.Cache.L2)
	}
	if cfg.Cache.Enabled && cfg.Cache.L1MaxSizeMB < 1 {
		fail("cache.l1_max_size_mb must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		fail("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		fail("rate.burst must be >= 1")
	}
	if cfg.MCP.Enabled && cfg.MCP.Addr == "" {
		fail("mcp.addr is required when mcp.enabled is set")
	}
	if cfg.Tasks.Retention < 0 {
		fail("tasks.retention must not be negative")
	}
	if cfg.Tasks.MaxConcurrent < 0 {
		fail("tasks.max_concurrent must not be negative")
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
