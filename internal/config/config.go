package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Engine    EngineConfig    `yaml:"engine"`
	State     StateConfig     `yaml:"state"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// EngineConfig drives the reconciliation loops. TrainerID scopes every query:
// the display belongs to exactly one trainer, and without one no polling
// starts at all.
type EngineConfig struct {
	TrainerID           string `yaml:"trainer_id"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	CandidateWindow     int    `yaml:"candidate_window"`
}

type StateConfig struct {
	Dir string `yaml:"dir"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable
// overrides. Env vars use the prefix STUDIOTV_ and underscore-separated paths:
//
//	STUDIOTV_SERVER_HOST, STUDIOTV_SERVER_PORT,
//	STUDIOTV_DB_HOST, STUDIOTV_DB_PORT, STUDIOTV_DB_NAME,
//	STUDIOTV_DB_USER, STUDIOTV_DB_PASSWORD, STUDIOTV_DB_SSLMODE,
//	STUDIOTV_REDIS_ADDR, STUDIOTV_REDIS_PASSWORD,
//	STUDIOTV_AUTH_API_KEY, STUDIOTV_TRAINER_ID, STUDIOTV_STATE_DIR
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STUDIOTV_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("STUDIOTV_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STUDIOTV_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("STUDIOTV_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("STUDIOTV_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("STUDIOTV_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("STUDIOTV_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("STUDIOTV_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("STUDIOTV_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("STUDIOTV_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("STUDIOTV_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("STUDIOTV_TRAINER_ID"); v != "" {
		cfg.Engine.TrainerID = v
	}
	if v := os.Getenv("STUDIOTV_STATE_DIR"); v != "" {
		cfg.State.Dir = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Engine.PollIntervalSeconds == 0 {
		cfg.Engine.PollIntervalSeconds = 30
	}
	if cfg.Engine.CandidateWindow == 0 {
		cfg.Engine.CandidateWindow = 10
	}
	if cfg.State.Dir == "" {
		cfg.State.Dir = "state"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Engine.TrainerID == "" {
		return fmt.Errorf("engine.trainer_id is required")
	}
	return nil
}
