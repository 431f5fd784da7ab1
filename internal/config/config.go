// Package config loads and watches the bridge configuration.
//
// Configuration comes from a YAML file merged with PLANNER_BRIDGE_*
// environment variables; env wins. A missing file is not an error:
// every key has a default or an env override.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full bridge configuration.
type Config struct {
	Redis     RedisConfig     `mapstructure:"redis"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	Namespace string `mapstructure:"namespace"`
}

type GraphConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	PlanID   string        `mapstructure:"plan_id"`
	BucketID string        `mapstructure:"bucket_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	// RefreshToken enables the delegated fallback; empty disables it.
	RefreshToken string `mapstructure:"refresh_token"`
}

type SyncConfig struct {
	// Interval between full sweeps.
	Interval time.Duration `mapstructure:"interval"`
	// OpTimeout bounds each per-task operation.
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

type JournalConfig struct {
	Path string `mapstructure:"path"`
}

type DashboardConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	// File enables rotating file output; empty logs to stderr only.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Load reads configuration from path. An empty path reads only defaults
// and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.namespace", "annika")
	v.SetDefault("graph.base_url", "https://graph.microsoft.com/v1.0")
	v.SetDefault("graph.timeout", 30*time.Second)
	// Empty defaults register the keys so env-only overrides survive
	// Unmarshal.
	v.SetDefault("redis.password", "")
	v.SetDefault("graph.plan_id", "")
	v.SetDefault("graph.bucket_id", "")
	v.SetDefault("auth.tenant_id", "")
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.client_secret", "")
	v.SetDefault("auth.refresh_token", "")
	v.SetDefault("log.file", "")
	v.SetDefault("sync.interval", 5*time.Minute)
	v.SetDefault("sync.op_timeout", 30*time.Second)
	v.SetDefault("journal.path", "planner-bridge.db")
	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)

	v.SetEnvPrefix("PLANNER_BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the fields a live sync requires. Load does not call
// it: read-only commands (history, status) work without credentials.
func (c *Config) Validate() error {
	if c.Auth.TenantID == "" {
		return fmt.Errorf("auth.tenant_id is required")
	}
	if c.Auth.ClientID == "" {
		return fmt.Errorf("auth.client_id is required")
	}
	if c.Auth.ClientSecret == "" && c.Auth.RefreshToken == "" {
		return fmt.Errorf("auth.client_secret or auth.refresh_token is required")
	}
	if c.Graph.PlanID == "" {
		return fmt.Errorf("graph.plan_id is required")
	}
	if c.Sync.Interval < time.Second {
		return fmt.Errorf("sync.interval %s is too short", c.Sync.Interval)
	}
	return nil
}
