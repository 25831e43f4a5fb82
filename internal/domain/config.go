package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete service configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier" yaml:"tier"`

	// Eligibility thresholds and the authorized payer list
	HardRules HardRulesConfig `json:"hardRules" yaml:"hardRules"`

	// Policy rule reloading
	PolicyRules PolicyRulesConfig `json:"policyRules" yaml:"policyRules"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" yaml:"eventBus"`
	Providers  ProvidersConfig  `json:"providers" yaml:"providers"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	ReadTimeout  int    `json:"readTimeout" yaml:"readTimeout"`   // seconds
	WriteTimeout int    `json:"writeTimeout" yaml:"writeTimeout"` // seconds
}

// HardRulesConfig holds the hard rule thresholds.
type HardRulesConfig struct {
	MinNetIncome     float64 `json:"minNetIncome" yaml:"minNetIncome"`
	MaxDebtRatio     float64 `json:"maxDebtRatio" yaml:"maxDebtRatio"`
	MinAge           int     `json:"minAge" yaml:"minAge"`
	MaxAgeAtMaturity int     `json:"maxAgeAtMaturity" yaml:"maxAgeAtMaturity"`

	// PayersFile replaces the built-in authorized payer list when set
	PayersFile string `json:"payersFile" yaml:"payersFile"`
}

// PolicyRulesConfig controls how policy rules are refreshed.
type PolicyRulesConfig struct {
	// ReloadSchedule is a cron spec (e.g. "@every 5m"); empty disables scheduled reloads
	ReloadSchedule string `json:"reloadSchedule" yaml:"reloadSchedule"`

	// VelocityWindow is the look-back window for recent_applications
	VelocityWindow time.Duration `json:"velocityWindow" yaml:"velocityWindow"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	ServiceName  string `json:"serviceName" yaml:"serviceName"`
	ExporterType string `json:"exporterType" yaml:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + channels + in-memory cache
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		HardRules: HardRulesConfig{
			MinNetIncome:     1_750_905,
			MaxDebtRatio:     0.5,
			MinAge:           20,
			MaxAgeAtMaturity: 75,
		},
		PolicyRules: PolicyRulesConfig{
			ReloadSchedule: "@every 5m",
			VelocityWindow: 30 * 24 * time.Hour,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./motor-credito.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Providers: ProvidersConfig{
			Mode:          "mock",
			BureauTimeout: 10 * time.Second,
			BureauTTL:     24 * time.Hour,
			GatherTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "motor-credito",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "motor_credito",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.HardRules.MaxDebtRatio <= 0 || c.HardRules.MaxDebtRatio > 1 {
		return fmt.Errorf("%w: hardRules.maxDebtRatio must be in (0, 1]", ErrInvalidConfig)
	}
	if c.HardRules.MinAge < 0 || c.HardRules.MaxAgeAtMaturity <= c.HardRules.MinAge {
		return fmt.Errorf("%w: hardRules ages must satisfy 0 <= minAge < maxAgeAtMaturity", ErrInvalidConfig)
	}
	switch c.Repository.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unsupported repository.driver %q", ErrInvalidConfig, c.Repository.Driver)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: unsupported cache.type %q", ErrInvalidConfig, c.Cache.Type)
	}
	switch c.EventBus.Type {
	case "channel", "nats":
	case "kafka":
		if len(c.EventBus.KafkaBrokers) == 0 {
			return fmt.Errorf("%w: eventBus.kafkaBrokers is required for kafka", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported eventBus.type %q", ErrInvalidConfig, c.EventBus.Type)
	}
	switch c.Providers.Mode {
	case "mock":
	case "http":
		if c.Providers.BureauURL == "" {
			return fmt.Errorf("%w: providers.bureauUrl is required for http mode", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported providers.mode %q", ErrInvalidConfig, c.Providers.Mode)
	}
	return nil
}
