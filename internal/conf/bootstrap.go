package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/protobuf/types/known/durationpb"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with AEROSENTRY_.
//
// Configuration priority: CLI flags > Environment variables > Config file > Defaults
//
// Required environment variables:
//   - MYSQL_DSN or AEROSENTRY_DATA_DATABASE_SOURCE: MySQL connection string
//   - ENCRYPTION_KEY or AEROSENTRY_AUTH_ENCRYPTION_KEY: at-rest encryption key
//
// Optional but recommended:
//   - AEROAPI_KEY or FLIGHTAWARE_API_KEY: AeroAPI credentials (without it the
//     aeroapi provider starts unavailable and failover rides on the mock)
//   - API_KEY or AEROSENTRY_AUTH_API_KEY: key required on /v1 routes
//
// Parameters:
//   - configPath: Path to the configuration file or directory
//
// Returns:
//   - *Bootstrap: Loaded configuration
//   - error: Configuration loading or validation error
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Enable environment variable support with AEROSENTRY_ prefix
	v.SetEnvPrefix("AEROSENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow direct environment variable names (without AEROSENTRY_ prefix) for compatibility
	// Bind specific environment variables for required fields
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "AEROSENTRY_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "REDIS_ADDR", "AEROSENTRY_DATA_REDIS_ADDR")
	_ = v.BindEnv("auth.api_key", "API_KEY", "AEROSENTRY_AUTH_API_KEY")
	_ = v.BindEnv("auth.encryption.key", "ENCRYPTION_KEY", "AEROSENTRY_AUTH_ENCRYPTION_KEY")
	_ = v.BindEnv("aeroapi.api_key", "AEROAPI_KEY", "FLIGHTAWARE_API_KEY")

	// Load configuration file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// If config file is specified but not found, return error
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	providers, err := loadProviders(v)
	if err != nil {
		return nil, err
	}

	// Parse configuration into Bootstrap structure
	bc := &Bootstrap{
		Server: &Server{
			Http: &ServerHTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: durationpb.New(v.GetDuration("server.http.timeout")),
			},
		},
		Data: &Data{
			Database: &Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				Password:     v.GetString("data.redis.password"),
				Db:           v.GetInt("data.redis.db"),
				ReadTimeout:  durationpb.New(v.GetDuration("data.redis.read_timeout")),
				WriteTimeout: durationpb.New(v.GetDuration("data.redis.write_timeout")),
			},
		},
		Providers: providers,
		Failover: &Failover{
			MaxRetriesPerProvider:         v.GetInt("failover.max_retries_per_provider"),
			TimeoutBetweenRetries:         durationpb.New(v.GetDuration("failover.timeout_between_retries")),
			CircuitBreakerThreshold:       v.GetInt("failover.circuit_breaker_threshold"),
			CircuitBreakerTimeout:         durationpb.New(v.GetDuration("failover.circuit_breaker_timeout")),
			DegradedProviderRetryInterval: durationpb.New(v.GetDuration("failover.degraded_provider_retry_interval")),
		},
		Monitor: &Monitor{
			Window:               durationpb.New(v.GetDuration("monitor.window")),
			CacheTTL:             durationpb.New(v.GetDuration("monitor.cache_ttl")),
			SweepSchedule:        v.GetString("monitor.sweep_schedule"),
			HealthCheckSchedule:  v.GetString("monitor.health_check_schedule"),
			QuotaCleanupSchedule: v.GetString("monitor.quota_cleanup_schedule"),
			BatchSize:            v.GetInt("monitor.batch_size"),
		},
		Auth: &Auth{
			ApiKey: v.GetString("auth.api_key"),
			Encryption: &Encryption{
				Key: v.GetString("auth.encryption.key"),
			},
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	// Validate required fields
	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// loadProviders reads the providers list from configuration. When the list is
// empty a default pair is synthesized: the aeroapi source (credentials from
// AEROAPI_KEY) backed by the mock source at lowest priority, mirroring the
// standard deployment shape.
func loadProviders(v *viper.Viper) ([]*Provider, error) {
	var providers []*Provider
	if err := v.UnmarshalKey("providers", &providers); err != nil {
		return nil, fmt.Errorf("failed to parse providers configuration: %w", err)
	}

	if len(providers) == 0 {
		providers = []*Provider{
			{
				Name:     "FlightAware",
				Type:     "aeroapi",
				Priority: 10,
				Timeout:  10 * time.Second,
			},
			{
				Name:     "MockProvider",
				Type:     "mock",
				Priority: 1,
			},
		}
	}

	for _, p := range providers {
		if p.Timeout <= 0 {
			p.Timeout = 10 * time.Second
		}
		// Backfill aeroapi credentials from the bound environment variables.
		if p.Type == "aeroapi" && p.APIKey == "" {
			p.APIKey = v.GetString("aeroapi.api_key")
		}
	}

	return providers, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 30*time.Second)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	// Note: data.database.source (MYSQL_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// Failover defaults
	v.SetDefault("failover.max_retries_per_provider", 2)
	v.SetDefault("failover.timeout_between_retries", time.Second)
	v.SetDefault("failover.circuit_breaker_threshold", 5)
	v.SetDefault("failover.circuit_breaker_timeout", 300*time.Second)
	v.SetDefault("failover.degraded_provider_retry_interval", 600*time.Second)

	// Monitor defaults
	v.SetDefault("monitor.window", 48*time.Hour)
	v.SetDefault("monitor.cache_ttl", 300*time.Second)
	v.SetDefault("monitor.sweep_schedule", "0 */5 * * * *")
	v.SetDefault("monitor.health_check_schedule", "0 */10 * * * *")
	v.SetDefault("monitor.quota_cleanup_schedule", "30 */10 * * * *")
	v.SetDefault("monitor.batch_size", 10)

	// Auth defaults
	// Note: auth.encryption.key (ENCRYPTION_KEY) is required from environment

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.env", "production")
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing all missing required fields.
func Validate(bc *Bootstrap) error {
	var missingFields []string

	// Check required database configuration
	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		missingFields = append(missingFields, "data.database.source (MYSQL_DSN)")
	}

	// Check required encryption configuration
	if bc.Auth == nil || bc.Auth.Encryption == nil || bc.Auth.Encryption.Key == "" {
		missingFields = append(missingFields, "auth.encryption.key (ENCRYPTION_KEY)")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration fields: %s", strings.Join(missingFields, ", "))
	}

	for _, p := range bc.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider with empty name in providers configuration")
		}
		if p.Type != "aeroapi" && p.Type != "mock" {
			return fmt.Errorf("provider %s has unknown type %q (want aeroapi or mock)", p.Name, p.Type)
		}
	}

	return nil
}
