package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/transcript-enrichment/internal/core/usecase"
)

const (
	QueueBackendInProcess = "inprocess"
	QueueBackendNATS      = "nats"
)

type Config struct {
	APIPort     string `yaml:"api_port"`
	LogLevel    string `yaml:"log_level"`
	ServiceName string `yaml:"service_name"`

	TenantHeader string `yaml:"tenant_header"`

	PipelineDelayMS        int `yaml:"pipeline_delay_ms"`
	PipelineTimeoutSeconds int `yaml:"pipeline_timeout_seconds"`
	WorkerConcurrency      int `yaml:"worker_concurrency"`
	RandomSeed             int `yaml:"random_seed"`

	QueueBackend string `yaml:"queue_backend"`
	NATSURL      string `yaml:"nats_url"`
	NATSSubject  string `yaml:"nats_subject"`

	DebugEndpointEnabled bool   `yaml:"debug_endpoint_enabled"`
	DebugToken           string `yaml:"debug_token"`

	APIRateLimitRPS           float64 `yaml:"api_rate_limit_rps"`
	APIRateLimitBurst         int     `yaml:"api_rate_limit_burst"`
	APIMaxInFlight            int     `yaml:"api_max_in_flight"`
	APIBackpressureWaitMS     int     `yaml:"api_backpressure_wait_ms"`
	ShutdownTimeoutSeconds    int     `yaml:"shutdown_timeout_seconds"`
	RetryMaxAttempts          int     `yaml:"retry_max_attempts"`
	RetryInitialBackoffMS     int     `yaml:"retry_initial_backoff_ms"`
	RetryMaxBackoffMS         int     `yaml:"retry_max_backoff_ms"`
	BreakerEnabled            bool    `yaml:"breaker_enabled"`
	BreakerMinRequests        int     `yaml:"breaker_min_requests"`
	BreakerFailureRatio       float64 `yaml:"breaker_failure_ratio"`
	BreakerOpenTimeoutSeconds int     `yaml:"breaker_open_timeout_seconds"`
}

func Defaults() Config {
	return Config{
		APIPort:     "8080",
		LogLevel:    "info",
		ServiceName: "transcript-api",

		TenantHeader: "X-Tenant-ID",

		PipelineDelayMS:        int(usecase.DefaultProcessingDelay / time.Millisecond),
		PipelineTimeoutSeconds: 60,

		QueueBackend: QueueBackendInProcess,
		NATSURL:      "nats://localhost:4222",
		NATSSubject:  "transcripts.jobs",

		DebugEndpointEnabled: true,

		APIBackpressureWaitMS:  50,
		ShutdownTimeoutSeconds: 10,

		RetryMaxAttempts:          3,
		RetryInitialBackoffMS:     100,
		RetryMaxBackoffMS:         400,
		BreakerEnabled:            true,
		BreakerMinRequests:        10,
		BreakerFailureRatio:       0.5,
		BreakerOpenTimeoutSeconds: 30,
	}
}

// Load applies, in order: defaults, the YAML file named by CONFIG_FILE (if
// any), then environment variables.
func Load() (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg = Config{
		APIPort:     mustEnv("API_PORT", cfg.APIPort),
		LogLevel:    mustEnv("LOG_LEVEL", cfg.LogLevel),
		ServiceName: mustEnv("SERVICE_NAME", cfg.ServiceName),

		TenantHeader: mustEnv("TENANT_HEADER", cfg.TenantHeader),

		PipelineDelayMS:        mustEnvInt("PIPELINE_DELAY_MS", cfg.PipelineDelayMS),
		PipelineTimeoutSeconds: mustEnvInt("PIPELINE_TIMEOUT_SECONDS", cfg.PipelineTimeoutSeconds),
		WorkerConcurrency:      mustEnvInt("WORKER_CONCURRENCY", cfg.WorkerConcurrency),
		RandomSeed:             mustEnvInt("RANDOM_SEED", cfg.RandomSeed),

		QueueBackend: strings.ToLower(mustEnv("QUEUE_BACKEND", cfg.QueueBackend)),
		NATSURL:      mustEnv("NATS_URL", cfg.NATSURL),
		NATSSubject:  mustEnv("NATS_SUBJECT", cfg.NATSSubject),

		DebugEndpointEnabled: mustEnvBool("DEBUG_ENDPOINT_ENABLED", cfg.DebugEndpointEnabled),
		DebugToken:           mustEnv("DEBUG_TOKEN", cfg.DebugToken),

		APIRateLimitRPS:        mustEnvFloat("API_RATE_LIMIT_RPS", cfg.APIRateLimitRPS),
		APIRateLimitBurst:      mustEnvInt("API_RATE_LIMIT_BURST", cfg.APIRateLimitBurst),
		APIMaxInFlight:         mustEnvInt("API_MAX_IN_FLIGHT", cfg.APIMaxInFlight),
		APIBackpressureWaitMS:  mustEnvInt("API_BACKPRESSURE_WAIT_MS", cfg.APIBackpressureWaitMS),
		ShutdownTimeoutSeconds: mustEnvInt("SHUTDOWN_TIMEOUT_SECONDS", cfg.ShutdownTimeoutSeconds),

		RetryMaxAttempts:          mustEnvInt("RETRY_MAX_ATTEMPTS", cfg.RetryMaxAttempts),
		RetryInitialBackoffMS:     mustEnvInt("RETRY_INITIAL_BACKOFF_MS", cfg.RetryInitialBackoffMS),
		RetryMaxBackoffMS:         mustEnvInt("RETRY_MAX_BACKOFF_MS", cfg.RetryMaxBackoffMS),
		BreakerEnabled:            mustEnvBool("BREAKER_ENABLED", cfg.BreakerEnabled),
		BreakerMinRequests:        mustEnvInt("BREAKER_MIN_REQUESTS", cfg.BreakerMinRequests),
		BreakerFailureRatio:       mustEnvFloat("BREAKER_FAILURE_RATIO", cfg.BreakerFailureRatio),
		BreakerOpenTimeoutSeconds: mustEnvInt("BREAKER_OPEN_TIMEOUT_SECONDS", cfg.BreakerOpenTimeoutSeconds),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks that values are usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.TenantHeader) == "" {
		return fmt.Errorf("tenant_header is required")
	}
	if c.PipelineDelayMS < 0 {
		return fmt.Errorf("pipeline_delay_ms must be >= 0")
	}
	if c.WorkerConcurrency < 0 {
		return fmt.Errorf("worker_concurrency must be >= 0")
	}
	switch c.QueueBackend {
	case QueueBackendInProcess:
	case QueueBackendNATS:
		if c.NATSURL == "" || c.NATSSubject == "" {
			return fmt.Errorf("nats_url and nats_subject are required for queue_backend=nats")
		}
	default:
		return fmt.Errorf("unsupported queue_backend %q (use %s or %s)", c.QueueBackend, QueueBackendInProcess, QueueBackendNATS)
	}
	if c.APIRateLimitRPS < 0 {
		return fmt.Errorf("api_rate_limit_rps must be >= 0")
	}
	return nil
}

func (c Config) PipelineDelay() time.Duration {
	return time.Duration(c.PipelineDelayMS) * time.Millisecond
}

func (c Config) PipelineTimeout() time.Duration {
	return time.Duration(c.PipelineTimeoutSeconds) * time.Second
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func (c Config) BackpressureWait() time.Duration {
	return time.Duration(c.APIBackpressureWaitMS) * time.Millisecond
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
