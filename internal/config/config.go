package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Metering  MeteringConfig  `mapstructure:"metering"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type RedisConfig struct {
	URL       string        `mapstructure:"url"`
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

type DirectoryConfig struct {
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type MeteringConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	NatsURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

type IngestionConfig struct {
	MaxPayloadSize   int           `mapstructure:"max_payload_size"`
	SaltTTL          time.Duration `mapstructure:"salt_ttl"`
	SaltCacheTTL     time.Duration `mapstructure:"salt_cache_ttl"`
	SaltStaleAfter   time.Duration `mapstructure:"salt_stale_after"`
	DedupStandardTTL time.Duration `mapstructure:"dedup_standard_ttl"`
	DedupExitTTL     time.Duration `mapstructure:"dedup_exit_ttl"`
	QuotaCacheTTL    time.Duration `mapstructure:"quota_cache_ttl"`
	QuotaStaleAfter  time.Duration `mapstructure:"quota_stale_after"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.op_timeout", "500ms")
	v.SetDefault("directory.url", "http://localhost:8082")
	v.SetDefault("directory.timeout", "5s")
	v.SetDefault("directory.cache_ttl", "5m")
	v.SetDefault("metering.url", "http://localhost:8083")
	v.SetDefault("metering.timeout", "5s")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.nats_url", "nats://localhost:4222")
	v.SetDefault("telemetry.subject", "telemetry.blocked")
	v.SetDefault("ingestion.max_payload_size", 1048576)
	v.SetDefault("ingestion.salt_ttl", "24h")
	v.SetDefault("ingestion.salt_cache_ttl", "1h")
	v.SetDefault("ingestion.salt_stale_after", "5m")
	v.SetDefault("ingestion.dedup_standard_ttl", "24h")
	v.SetDefault("ingestion.dedup_exit_ttl", "48h")
	v.SetDefault("ingestion.quota_cache_ttl", "60s")
	v.SetDefault("ingestion.quota_stale_after", "30s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pathlight/gatekeeper")
	}

	// Environment variables override
	v.SetEnvPrefix("GATEKEEPER")
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
