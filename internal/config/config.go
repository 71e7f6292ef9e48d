// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package config

import (
	"errors"
	"maps"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/postwright/postwright/internal/store"
	"github.com/postwright/postwright/internal/telemetry"
	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

// Config is the top-level Postwright configuration.
type Config struct {
	Log        LogConfig                 `mapstructure:"log"`
	Networking NetworkingConfig          `mapstructure:"networking"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Telemetry  TelemetryConfig           `mapstructure:"telemetry"`
	Scheduler  SchedulerConfig           `mapstructure:"scheduler"`
	Plugs      map[string]PlugConfig     `mapstructure:"plugs"`
	PostPlugs  map[string]PostPlugConfig `mapstructure:"post_plugs"`
	DataDir    string                    `mapstructure:"data_dir"`
}

// LogConfig controls the default slog logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NetworkingConfig controls how the admin API listens for connections.
type NetworkingConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// StorageConfig selects the storage backend for the run ledger and
// activation overrides.
type StorageConfig struct {
	Backend string      `mapstructure:"backend"`
	DSN     string      `mapstructure:"dsn"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the redis storage backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// TelemetryConfig configures where run records are published.
type TelemetryConfig struct {
	AMQP AMQPConfig `mapstructure:"amqp"`
}

// AMQPConfig configures failure publishing. An empty URL disables it.
type AMQPConfig struct {
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
}

// SchedulerConfig controls the plug scheduler.
type SchedulerConfig struct {
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PlugConfig overrides a Plug. Values are passed to every invocation.
type PlugConfig struct {
	Disabled *bool             `mapstructure:"disabled"`
	Values   map[string]string `mapstructure:"values"`
}

// PostPlugConfig overrides a PostPlug.
type PostPlugConfig struct {
	Disabled *bool `mapstructure:"disabled"`
}

// StoreConfig converts the storage section for store.Open.
func (c *Config) StoreConfig() *store.Config {
	return &store.Config{
		Backend: c.Storage.Backend,
		DSN:     c.Storage.DSN,
		Redis: store.RedisConfig{
			Addr:     c.Storage.Redis.Addr,
			Password: c.Storage.Redis.Password,
			DB:       c.Storage.Redis.DB,
			Prefix:   c.Storage.Redis.Prefix,
		},
	}
}

// TelemetryAMQP converts the telemetry.amqp section for telemetry.DialAMQP.
func (c *Config) TelemetryAMQP() telemetry.AMQPConfig {
	return telemetry.AMQPConfig{
		URL:        c.Telemetry.AMQP.URL,
		Exchange:   c.Telemetry.AMQP.Exchange,
		RoutingKey: c.Telemetry.AMQP.RoutingKey,
	}
}

// Override is one configured disabled flag.
type Override struct {
	Kind       capability.Kind
	Identifier string
	Disabled   bool
}

// Overrides returns the configured disabled flags, Plugs first, each kind
// sorted by identifier.
func (c *Config) Overrides() []Override {
	var out []Override
	for _, id := range sortedKeys(c.Plugs) {
		if d := c.Plugs[id].Disabled; d != nil {
			out = append(out, Override{Kind: capability.KindPlug, Identifier: id, Disabled: *d})
		}
	}
	for _, id := range sortedKeys(c.PostPlugs) {
		if d := c.PostPlugs[id].Disabled; d != nil {
			out = append(out, Override{Kind: capability.KindPostPlug, Identifier: id, Disabled: *d})
		}
	}
	return out
}

// PlugValues returns the configured field values keyed by Plug identifier.
func (c *Config) PlugValues() map[string]map[string]string {
	out := make(map[string]map[string]string, len(c.Plugs))
	for id, p := range c.Plugs {
		if p.Values != nil {
			out[id] = p.Values
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("networking.listen", "127.0.0.1:8480")
	v.SetDefault("networking.cors_origins", []string{})
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.redis.addr", "")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "postwright")
	v.SetDefault("telemetry.amqp.url", "")
	v.SetDefault("telemetry.amqp.exchange", telemetry.DefaultExchange)
	v.SetDefault("telemetry.amqp.routing_key", telemetry.DefaultRoutingKey)
	v.SetDefault("scheduler.shutdown_timeout", "30s")
	v.SetDefault("data_dir", DefaultDataDir())
}

// SetupEnv binds POSTWRIGHT_ prefixed environment variables, with "." in
// keys replaced by "_".
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("POSTWRIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, pwerr.Errorf(pwerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, pwerr.Errorf(pwerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix POSTWRIGHT_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, pwerr.Errorf(pwerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateLog()...)
	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateTelemetry()...)
	errs = append(errs, c.validateScheduler()...)

	if c.DataDir == "" {
		errs = append(errs, pwerr.Errorf(pwerr.CodeConfigValidateInvalidValue, "config: data_dir must not be empty"))
	}

	return errs
}

func (c *Config) validateLog() []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, pwerr.Errorf(pwerr.CodeConfigValidateInvalidValue,
			"config: log.level must be one of [debug, info, warn, error], got %q",
			c.Log.Level,
		))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, pwerr.Errorf(pwerr.CodeConfigValidateInvalidValue,
			"config: log.format must be one of [text, json], got %q",
			c.Log.Format,
		))
	}

	return errs
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, pwerr.Errorf(pwerr.CodeConfigValidateInvalidValue, "config: networking.listen must not be empty"))
	} else {
		_, portStr, err := net.SplitHostPort(c.Networking.Listen)
		if err != nil {
			errs = append(errs, pwerr.Errorf(pwerr.CodeConfigValidateInvalidValue,
				"config: networking.listen must be a valid host:port address, got %q: %w",
				c.Networking.Listen, err,
			))
		} else {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				errs = append(errs, pwerr.Errorf(pwerr.CodeConfigValidateInvalidValue,
					"config: networking.listen port must be a number, got %q",
					portStr,
				))
			} else if port < 1 || port > 65535 {
				errs = append(errs, pwerr.Errorf(pwerr.CodeConfigValidateInvalidValue,
					"config: networking.listen port must be between 1 and 65535, got %d",
					port,
				))
			}
		}
	}

	for i, origin := range c.Networking.CORSOrigins {
		if strings.TrimSpace(origin) == "" {
			errs = append(errs, pwerr.Errorf(pwerr.CodeConfigValidateInvalidValue,
				"config: networking.cors_origins[%d] must not be empty", i))
		}
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	switch c.Storage.Backend {
	case "sqlite":
	case "mysql":
		if c.Storage.DSN == "" {
			errs = append(errs, pwerr.Errorf(pwerr.CodeConfigValidateInvalidValue,
				"config: storage.dsn is required for the mysql backend"))
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, pwerr.Errorf(pwerr.CodeConfigValidateInvalidValue,
				"config: storage.redis.addr is required for the redis backend"))
		}
		if c.Storage.Redis.DB < 0 {
			errs = append(errs, pwerr.Errorf(pwerr.CodeConfigValidateInvalidValue,
				"config: storage.redis.db must not be negative, got %d", c.Storage.Redis.DB))
		}
	default:
		errs = append(errs, pwerr.Errorf(pwerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, mysql, redis], got %q",
			c.Storage.Backend,
		))
	}

	return errs
}

func (c *Config) validateTelemetry() []error {
	var errs []error

	amqp := c.Telemetry.AMQP
	if amqp.URL == "" {
		return nil
	}
	if !strings.HasPrefix(amqp.URL, "amqp://") && !strings.HasPrefix(amqp.URL, "amqps://") {
		errs = append(errs, pwerr.Errorf(pwerr.CodeConfigValidateInvalidValue,
			"config: telemetry.amqp.url must start with amqp:// or amqps://"))
	}
	if amqp.Exchange == "" {
		errs = append(errs, pwerr.Errorf(pwerr.CodeConfigValidateInvalidValue,
			"config: telemetry.amqp.exchange must not be empty when telemetry.amqp.url is set"))
	}

	return errs
}

func (c *Config) validateScheduler() []error {
	if c.Scheduler.ShutdownTimeout <= 0 {
		return []error{pwerr.Errorf(pwerr.CodeConfigValidateInvalidValue,
			"config: scheduler.shutdown_timeout must be greater than 0, got %s",
			c.Scheduler.ShutdownTimeout,
		)}
	}
	return nil
}

// HasCredentials reports whether the configuration carries a secret: a
// database DSN, a redis password or an AMQP URL with user info.
func (c *Config) HasCredentials() bool {
	if c.Storage.DSN != "" || c.Storage.Redis.Password != "" {
		return true
	}
	if u, err := url.Parse(c.Telemetry.AMQP.URL); err == nil && u.User != nil {
		return true
	}
	return false
}
