package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Events    EventsConfig    `yaml:"events"`
	Roster    RosterConfig    `yaml:"roster"`
	Recommend RecommendConfig `yaml:"recommend"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type EventsConfig struct {
	URL string `yaml:"url"`
}

type RosterConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type RecommendConfig struct {
	DefaultLimit     int `yaml:"default_limit"`
	MaxLimit         int `yaml:"max_limit"`
	PeerTimeoutMs    int `yaml:"peer_timeout_ms"`
	WeightCacheTTLMs int `yaml:"weight_cache_ttl_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) PeerTimeout() time.Duration {
	return time.Duration(c.Recommend.PeerTimeoutMs) * time.Millisecond
}

func (c *Config) WeightCacheTTL() time.Duration {
	return time.Duration(c.Recommend.WeightCacheTTLMs) * time.Millisecond
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		Events: EventsConfig{
			URL: "nats://localhost:4222",
		},
		Roster: RosterConfig{
			URL: "http://localhost:8710",
		},
		Recommend: RecommendConfig{
			DefaultLimit:     20,
			MaxLimit:         100,
			PeerTimeoutMs:    1500,
			WeightCacheTTLMs: 30000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("KINDRED_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("KINDRED_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("KINDRED_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("KINDRED_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("KINDRED_EVENTS_URL"); v != "" {
		cfg.Events.URL = v
	}
	if v := os.Getenv("KINDRED_ROSTER_URL"); v != "" {
		cfg.Roster.URL = v
	}
	if v := os.Getenv("KINDRED_ROSTER_TOKEN"); v != "" {
		cfg.Roster.Token = v
	}
	if v := os.Getenv("KINDRED_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Recommend.DefaultLimit = n
		}
	}
	if v := os.Getenv("KINDRED_PEER_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Recommend.PeerTimeoutMs = n
		}
	}
	if v := os.Getenv("KINDRED_WEIGHT_CACHE_TTL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Recommend.WeightCacheTTLMs = n
		}
	}
	if v := os.Getenv("KINDRED_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
