// Package config loads service settings from a YAML file overlaid by environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/draftturns/go/internal/dbconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath     = "DRAFTTURNS_CONFIG"
	DefaultConfigPath = "config.yaml"
)

type Config struct {
	Port       int              `yaml:"port"`
	LogLevel   string           `yaml:"log_level"`
	Database   dbconfig.Config  `yaml:"database"`
	Engine     EngineConfig     `yaml:"engine"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	NATS       NATSConfig       `yaml:"nats"`
	Redis      RedisConfig      `yaml:"redis"`
	Outbox     OutboxConfig     `yaml:"outbox"`
	Gateway    GatewayConfig    `yaml:"gateway"`
}

type EngineConfig struct {
	ConflictRetries uint64        `yaml:"conflict_retries"`
	ConflictBackoff time.Duration `yaml:"conflict_backoff"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`
}

type SupervisorConfig struct {
	Workers    int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type OutboxConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
}

type GatewayConfig struct {
	Port         int    `yaml:"port"`
	ConsumerName string `yaml:"consumer_name"`
	EngineURL    string `yaml:"engine_url"`
}

func Default() Config {
	return Config{
		Port:     8080,
		LogLevel: "info",
		Database: dbconfig.Default(),
		Engine: EngineConfig{
			ConflictRetries: 5,
			ConflictBackoff: 10 * time.Millisecond,
			LockTimeout:     2 * time.Second,
		},
		Supervisor: SupervisorConfig{
			Workers:    10,
			QueueSize:  20,
			RetryDelay: time.Second,
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			Stream:        "DRAFT_EVENTS",
			SubjectPrefix: "draft.events",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  30 * time.Second,
		},
		Outbox: OutboxConfig{
			PollInterval: 30 * time.Second,
			BatchSize:    100,
		},
		Gateway: GatewayConfig{
			Port:         8081,
			ConsumerName: "draft-gateway",
			EngineURL:    "http://localhost:8080",
		},
	}
}

// Load reads .env, then the YAML file named by DRAFTTURNS_CONFIG (config.yaml when unset),
// then applies environment overrides. A missing file leaves the defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = DefaultConfigPath
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return Config{}, err
	}
	return cfg.WithEnv(), nil
}

func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// WithEnv overrides fields whose environment variable is set.
func (c Config) WithEnv() Config {
	c.Port = envInt("PORT", c.Port)
	c.LogLevel = envString("LOG_LEVEL", c.LogLevel)
	c.Database = c.Database.WithEnv()
	c.Engine.ConflictRetries = uint64(envInt("CONFLICT_RETRIES", int(c.Engine.ConflictRetries)))
	c.Engine.ConflictBackoff = envDuration("CONFLICT_BACKOFF", c.Engine.ConflictBackoff)
	c.Supervisor.Workers = envInt("SUPERVISOR_WORKERS", c.Supervisor.Workers)
	c.Supervisor.QueueSize = envInt("SUPERVISOR_QUEUE_SIZE", c.Supervisor.QueueSize)
	c.NATS.URL = envString("NATS_URL", c.NATS.URL)
	c.Redis.Addr = envString("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envString("REDIS_PASSWORD", c.Redis.Password)
	c.Outbox.PollInterval = envDuration("FALLBACK_INTERVAL", c.Outbox.PollInterval)
	c.Gateway.Port = envInt("GATEWAY_PORT", c.Gateway.Port)
	c.Gateway.EngineURL = envString("ENGINE_URL", c.Gateway.EngineURL)
	return c
}

// Level parses LogLevel, falling back to info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring non-integer environment value")
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring invalid duration environment value")
		return fallback
	}
	return d
}
