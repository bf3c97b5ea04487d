// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/finswitch/finswitch/adapters/tcp"
	"github.com/finswitch/finswitch/core/link"
)

// Config is the root configuration structure.
type Config struct {
	Schemas  SchemasConfig  `yaml:"schemas"`
	Links    []LinkConfig   `yaml:"links"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// SchemasConfig locates the channel schema definitions.
type SchemasConfig struct {
	// Path is a YAML file or a directory of YAML files.
	Path string `yaml:"path"`
	// Watch reloads schemas when the path changes on disk.
	Watch bool `yaml:"watch"`
}

// LinkConfig configures one outbound link to an authorization host.
type LinkConfig struct {
	Name          string `yaml:"name"`
	Channel       string `yaml:"channel"` // channel schema id used on this link
	InstitutionID string `yaml:"institution_id"`

	Primary EndpointConfig `yaml:"primary"`
	Backup  EndpointConfig `yaml:"backup,omitempty"`

	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	MaxRetryAttempts   int           `yaml:"max_retry_attempts"`
	RetryDelay         time.Duration `yaml:"retry_delay"`
	AutoReconnect      *bool         `yaml:"auto_reconnect"`
	UseBackupOnFailure *bool         `yaml:"use_backup_on_failure"`

	KeepAlive         *bool `yaml:"keep_alive"`
	NoDelay           *bool `yaml:"no_delay"`
	ReceiveBufferSize int   `yaml:"receive_buffer_size"`
	SendBufferSize    int   `yaml:"send_buffer_size"`

	PoolMinSize int           `yaml:"pool_min_size"`
	PoolMaxSize int           `yaml:"pool_max_size"`
	PoolMaxWait time.Duration `yaml:"pool_max_wait"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// EndpointConfig is one host:port destination.
type EndpointConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DispatchConfig tunes request dispatching.
type DispatchConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures the operational HTTP listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"` // default: /metrics
}

// ToLink converts the YAML form into the link manager's runtime config.
func (lc LinkConfig) ToLink() link.Config {
	return link.Config{
		Name:          lc.Name,
		InstitutionID: lc.InstitutionID,
		Primary: link.Endpoint{
			Host: lc.Primary.Host,
			Port: lc.Primary.Port,
		},
		Backup: link.Endpoint{
			Host: lc.Backup.Host,
			Port: lc.Backup.Port,
		},
		ConnectTimeout:     lc.ConnectTimeout,
		ReadTimeout:        lc.ReadTimeout,
		WriteTimeout:       lc.WriteTimeout,
		IdleTimeout:        lc.IdleTimeout,
		HeartbeatInterval:  lc.HeartbeatInterval,
		MaxRetryAttempts:   lc.MaxRetryAttempts,
		RetryDelay:         lc.RetryDelay,
		AutoReconnect:      boolOrTrue(lc.AutoReconnect),
		UseBackupOnFailure: boolOrTrue(lc.UseBackupOnFailure),
		PoolMinSize:        lc.PoolMinSize,
		PoolMaxSize:        lc.PoolMaxSize,
		PoolMaxWait:        lc.PoolMaxWait,
	}
}

// ToTCP converts the YAML form into the TCP dialer's socket options.
func (lc LinkConfig) ToTCP() tcp.Options {
	return tcp.Options{
		ConnectTimeout:    lc.ConnectTimeout,
		ReadTimeout:       lc.ReadTimeout,
		WriteTimeout:      lc.WriteTimeout,
		KeepAlive:         boolOrTrue(lc.KeepAlive),
		NoDelay:           boolOrTrue(lc.NoDelay),
		ReceiveBufferSize: lc.ReceiveBufferSize,
		SendBufferSize:    lc.SendBufferSize,
	}
}

func boolOrTrue(v *bool) bool {
	return v == nil || *v
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies FINSWITCH_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FINSWITCH_SCHEMAS_PATH"); v != "" {
		cfg.Schemas.Path = v
	}
	if v := os.Getenv("FINSWITCH_SCHEMAS_WATCH"); v != "" {
		cfg.Schemas.Watch = parseBool(v)
	}

	if v := os.Getenv("FINSWITCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FINSWITCH_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("FINSWITCH_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("FINSWITCH_METRICS_HOST"); v != "" {
		cfg.Metrics.Host = v
	}
	if v := os.Getenv("FINSWITCH_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
	if v := os.Getenv("FINSWITCH_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	if v := os.Getenv("FINSWITCH_DISPATCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Dispatch.DefaultTimeout = d
		}
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Host == "" {
		cfg.Metrics.Host = "0.0.0.0"
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Dispatch.DefaultTimeout == 0 {
		cfg.Dispatch.DefaultTimeout = 30 * time.Second
	}

	for i := range cfg.Links {
		setLinkDefaults(&cfg.Links[i])
	}
}

func setLinkDefaults(lc *LinkConfig) {
	if lc.ConnectTimeout == 0 {
		lc.ConnectTimeout = 10 * time.Second
	}
	if lc.ReadTimeout == 0 {
		lc.ReadTimeout = 30 * time.Second
	}
	if lc.WriteTimeout == 0 {
		lc.WriteTimeout = 10 * time.Second
	}
	if lc.IdleTimeout == 0 {
		lc.IdleTimeout = 30 * time.Second
	}
	if lc.HeartbeatInterval == 0 {
		lc.HeartbeatInterval = 30 * time.Second
	}
	if lc.MaxRetryAttempts == 0 {
		lc.MaxRetryAttempts = 3
	}
	if lc.RetryDelay == 0 {
		lc.RetryDelay = 5 * time.Second
	}
	if lc.ReceiveBufferSize == 0 {
		lc.ReceiveBufferSize = 65536
	}
	if lc.SendBufferSize == 0 {
		lc.SendBufferSize = 65536
	}
	if lc.PoolMinSize == 0 {
		lc.PoolMinSize = 2
	}
	if lc.PoolMaxSize == 0 {
		lc.PoolMaxSize = 10
	}
	if lc.PoolMaxWait == 0 {
		lc.PoolMaxWait = 5 * time.Second
	}
	if lc.RequestTimeout == 0 {
		lc.RequestTimeout = 30 * time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.Schemas.Path == "" {
		return fmt.Errorf("schemas.path is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %q", cfg.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if len(cfg.Links) == 0 {
		return fmt.Errorf("at least one link is required")
	}

	seen := make(map[string]bool, len(cfg.Links))
	for i, lc := range cfg.Links {
		if lc.Name == "" {
			return fmt.Errorf("links[%d].name is required", i)
		}
		if seen[lc.Name] {
			return fmt.Errorf("links[%d]: duplicate link name %q", i, lc.Name)
		}
		seen[lc.Name] = true
		if lc.Channel == "" {
			return fmt.Errorf("link %s: channel is required", lc.Name)
		}
		if err := lc.ToLink().Validate(); err != nil {
			return fmt.Errorf("link %s: %w", lc.Name, err)
		}
	}

	return nil
}
