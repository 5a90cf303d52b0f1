// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables,
// with CLI flag overrides.
package conf

import (
	"time"

	"google.golang.org/protobuf/types/known/durationpb"
)

// Bootstrap is the root configuration for the service.
type Bootstrap struct {
	Server    *Server
	Data      *Data
	Providers []*Provider
	Failover  *Failover
	Monitor   *Monitor
	Auth      *Auth
	Log       *Log
}

// Server holds transport server configuration.
type Server struct {
	Http *ServerHTTP
}

// ServerHTTP holds the HTTP server configuration.
type ServerHTTP struct {
	Network string
	Addr    string
	Timeout *durationpb.Duration
}

// Data holds datasource configuration.
type Data struct {
	Database *Database
	Redis    *Redis
}

// Database holds the MySQL configuration.
type Database struct {
	Driver string
	Source string
}

// Redis holds the Redis configuration.
type Redis struct {
	Network      string
	Addr         string
	Password     string
	Db           int
	ReadTimeout  *durationpb.Duration
	WriteTimeout *durationpb.Duration
}

// Provider configures one flight-data source. The list is ordered by
// descending Priority when handed to the failover manager.
type Provider struct {
	Name     string        `mapstructure:"name"`
	Type     string        `mapstructure:"type"` // "aeroapi" or "mock"
	Priority int           `mapstructure:"priority"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`

	// Client-side request budget. Zero disables the corresponding check.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	RequestsPerDay    int `mapstructure:"requests_per_day"`

	// Mock-only tuning knobs.
	FailureRate   float64       `mapstructure:"failure_rate"`
	ResponseDelay time.Duration `mapstructure:"response_delay"`

	// Optional metadata JSON (proxy_url, region, tags, notes).
	Metadata string `mapstructure:"metadata"`
}

// Failover holds the failover manager tuning parameters.
type Failover struct {
	MaxRetriesPerProvider         int
	TimeoutBetweenRetries         *durationpb.Duration
	CircuitBreakerThreshold       int
	CircuitBreakerTimeout         *durationpb.Duration
	DegradedProviderRetryInterval *durationpb.Duration
}

// Monitor holds the disruption monitoring configuration.
type Monitor struct {
	Window               *durationpb.Duration // how far ahead bookings are checked
	CacheTTL             *durationpb.Duration // flight status cache TTL
	SweepSchedule        string               // cron expression (with seconds)
	HealthCheckSchedule  string               // cron expression (with seconds)
	QuotaCleanupSchedule string               // cron expression (with seconds)
	BatchSize            int                  // flights per provider batch call
}

// Auth holds API authentication and encryption configuration.
type Auth struct {
	ApiKey     string // key required on /v1 routes; empty disables enforcement
	Encryption *Encryption
}

// Encryption holds the at-rest encryption key configuration.
type Encryption struct {
	Key string
}

// Log holds the logging configuration.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}
