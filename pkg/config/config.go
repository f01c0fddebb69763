package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/classhub/classhub/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Identity provider configuration
	Identity IdentityConfig

	// Profile store configuration
	Store StoreConfig

	// Session reconciliation configuration
	Reconcile ReconcileConfig

	// Authorization configuration
	Authz AuthzConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// AuthRateLimitEnabled throttles sign-in/sign-up attempts
	AuthRateLimitEnabled bool
}

// IdentityConfig selects and configures the identity provider
type IdentityConfig struct {
	// Provider is "dev" or "oidc"
	Provider string

	OIDCIssuerURL    string
	OIDCClientID     string
	OIDCClientSecret string
}

// StoreConfig selects and configures the profile store
type StoreConfig struct {
	// Type is "memory", "http", or "postgres"
	Type string

	// HTTP store
	BaseURL     string
	HTTPTimeout time.Duration

	// Postgres store
	PostgresURL string

	// Redis read-through cache
	CacheEnabled bool
	RedisURL     string
	RedisDB      int
	CacheTTL     time.Duration
}

// ReconcileConfig holds retry and deadline knobs for session reconciliation
type ReconcileConfig struct {
	FetchAttempts int
	RetryInterval time.Duration
	CallTimeout   time.Duration
	Deadline      time.Duration
}

// AuthzConfig holds authorization policy settings
type AuthzConfig struct {
	// PolicyFile overrides the built-in policy table when set
	PolicyFile string

	// WatchPolicy hot-reloads the policy file on change
	WatchPolicy bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Identity:      loadIdentityConfig(),
		Store:         loadStoreConfig(),
		Reconcile:     loadReconcileConfig(),
		Authz:         loadAuthzConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:                 getEnv("CLASSHUB_HOST", "0.0.0.0"),
		Port:                 getEnv("CLASSHUB_PORT", "8080"),
		ReadTimeout:          getEnvDuration("CLASSHUB_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:         getEnvDuration("CLASSHUB_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:          getEnvDuration("CLASSHUB_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:      getEnvDuration("CLASSHUB_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:           getEnv("CLASSHUB_HEALTH_PORT", "9090"),
		AuthRateLimitEnabled: getEnvBool("CLASSHUB_AUTH_RATE_LIMIT_ENABLED", true),
	}
}

// loadIdentityConfig loads identity provider configuration from environment
func loadIdentityConfig() IdentityConfig {
	return IdentityConfig{
		Provider:         getEnv("CLASSHUB_IDENTITY_PROVIDER", "dev"),
		OIDCIssuerURL:    getEnv("CLASSHUB_OIDC_ISSUER_URL", ""),
		OIDCClientID:     getEnv("CLASSHUB_OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("CLASSHUB_OIDC_CLIENT_SECRET", ""),
	}
}

// loadStoreConfig loads profile store configuration from environment
func loadStoreConfig() StoreConfig {
	return StoreConfig{
		Type:         getEnv("CLASSHUB_STORE_TYPE", "memory"),
		BaseURL:      getEnv("CLASSHUB_STORE_BASE_URL", ""),
		HTTPTimeout:  getEnvDuration("CLASSHUB_STORE_HTTP_TIMEOUT", 2*time.Second),
		PostgresURL:  getEnv("CLASSHUB_POSTGRES_URL", ""),
		CacheEnabled: getEnvBool("CLASSHUB_CACHE_ENABLED", false),
		RedisURL:     getEnv("CLASSHUB_REDIS_URL", "localhost:6379"),
		RedisDB:      getEnvInt("CLASSHUB_REDIS_DB", 0),
		CacheTTL:     getEnvDuration("CLASSHUB_CACHE_TTL", 5*time.Minute),
	}
}

// loadReconcileConfig loads reconciliation knobs from environment
func loadReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		FetchAttempts: getEnvInt("CLASSHUB_RECONCILE_FETCH_ATTEMPTS", 3),
		RetryInterval: getEnvDuration("CLASSHUB_RECONCILE_RETRY_INTERVAL", time.Second),
		CallTimeout:   getEnvDuration("CLASSHUB_RECONCILE_CALL_TIMEOUT", 2*time.Second),
		Deadline:      getEnvDuration("CLASSHUB_RECONCILE_DEADLINE", 5*time.Second),
	}
}

// loadAuthzConfig loads authorization configuration from environment
func loadAuthzConfig() AuthzConfig {
	return AuthzConfig{
		PolicyFile:  getEnv("CLASSHUB_POLICY_FILE", ""),
		WatchPolicy: getEnvBool("CLASSHUB_POLICY_WATCH", false),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("CLASSHUB_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("CLASSHUB_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("CLASSHUB_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("CLASSHUB_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("CLASSHUB_OTEL_SERVICE_NAME", "classhub"),
		OTelServiceVersion: getEnv("CLASSHUB_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("CLASSHUB_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate identity provider config
	switch c.Identity.Provider {
	case "dev":
	case "oidc":
		if c.Identity.OIDCIssuerURL == "" {
			return fmt.Errorf("OIDC issuer URL is required for the oidc provider")
		}
		if c.Identity.OIDCClientID == "" {
			return fmt.Errorf("OIDC client ID is required for the oidc provider")
		}
	default:
		return fmt.Errorf("invalid identity provider: %s (must be dev or oidc)", c.Identity.Provider)
	}

	// Validate store config based on type
	switch c.Store.Type {
	case "memory":
	case "http":
		if c.Store.BaseURL == "" {
			return fmt.Errorf("store base URL is required for http storage")
		}
	case "postgres":
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be memory, http, or postgres)", c.Store.Type)
	}

	if c.Store.CacheEnabled && c.Store.RedisURL == "" {
		return fmt.Errorf("redis URL is required when the cache is enabled")
	}

	// Validate reconciliation config
	if c.Reconcile.FetchAttempts < 1 {
		return fmt.Errorf("reconcile fetch attempts must be at least 1")
	}
	if c.Reconcile.Deadline < c.Reconcile.CallTimeout {
		return fmt.Errorf("reconcile deadline must cover at least one store call")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
