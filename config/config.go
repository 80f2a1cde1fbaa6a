/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/suparena/entitymap/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ENTITYMAP"

// Backend kinds.
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
)

// Config is the full configuration of an entitymap deployment.
type Config struct {
	Backend string `yaml:"backend" validate:"required,oneof=memory dynamodb"`
	// Naming is the table naming strategy: bare, qualified or namespace.
	Naming string `yaml:"naming" validate:"omitempty,oneof=bare qualified namespace"`
	// ShowDeleted makes new sessions see logically deleted records.
	ShowDeleted bool `yaml:"show_deleted"`
	// ApplicationRoot anchors relative paths checked by validation rules.
	ApplicationRoot string `yaml:"application_root"`

	Cache    CacheConfig    `yaml:"cache"`
	Log      logging.Config `yaml:"log"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DynamoDBConfig locates the single table backing the dynamodb backend.
type DynamoDBConfig struct {
	Table  string `yaml:"table"`
	Region string `yaml:"region"`
	// Endpoint points at DynamoDB Local or a compatible service.
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`

	PageSize     int32         `yaml:"page_size" validate:"gte=0"`
	MaxRetries   int           `yaml:"max_retries" validate:"gte=0"`
	RetryBackoff time.Duration `yaml:"retry_backoff" validate:"gte=0"`
}

// Default returns the configuration used when nothing is set: an in-memory
// backend with the cache on.
func Default() *Config {
	return &Config{
		Backend:         BackendMemory,
		Naming:          "bare",
		ApplicationRoot: ".",
		Cache:           CacheConfig{Enabled: true},
		Log:             logging.Config{Level: "info", Format: "json", Output: "stderr"},
		DynamoDB: DynamoDBConfig{
			PageSize:     100,
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
		},
	}
}

// Load reads .env, then the YAML file at path when path is not empty, then
// the environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// override binds one configuration key to its environment variable.
type override struct {
	key   string
	apply func(v *viper.Viper, c *Config)
}

var overrides = []override{
	{"backend", func(v *viper.Viper, c *Config) { c.Backend = v.GetString("backend") }},
	{"naming", func(v *viper.Viper, c *Config) { c.Naming = v.GetString("naming") }},
	{"show_deleted", func(v *viper.Viper, c *Config) { c.ShowDeleted = v.GetBool("show_deleted") }},
	{"application_root", func(v *viper.Viper, c *Config) { c.ApplicationRoot = v.GetString("application_root") }},
	{"cache.enabled", func(v *viper.Viper, c *Config) { c.Cache.Enabled = v.GetBool("cache.enabled") }},
	{"log.level", func(v *viper.Viper, c *Config) { c.Log.Level = v.GetString("log.level") }},
	{"log.format", func(v *viper.Viper, c *Config) { c.Log.Format = v.GetString("log.format") }},
	{"log.output", func(v *viper.Viper, c *Config) { c.Log.Output = v.GetString("log.output") }},
	{"log.caller", func(v *viper.Viper, c *Config) { c.Log.Caller = v.GetBool("log.caller") }},
	{"dynamodb.table", func(v *viper.Viper, c *Config) { c.DynamoDB.Table = v.GetString("dynamodb.table") }},
	{"dynamodb.region", func(v *viper.Viper, c *Config) { c.DynamoDB.Region = v.GetString("dynamodb.region") }},
	{"dynamodb.endpoint", func(v *viper.Viper, c *Config) { c.DynamoDB.Endpoint = v.GetString("dynamodb.endpoint") }},
	{"dynamodb.access_key", func(v *viper.Viper, c *Config) { c.DynamoDB.AccessKey = v.GetString("dynamodb.access_key") }},
	{"dynamodb.secret_key", func(v *viper.Viper, c *Config) { c.DynamoDB.SecretKey = v.GetString("dynamodb.secret_key") }},
	{"dynamodb.page_size", func(v *viper.Viper, c *Config) { c.DynamoDB.PageSize = v.GetInt32("dynamodb.page_size") }},
	{"dynamodb.max_retries", func(v *viper.Viper, c *Config) { c.DynamoDB.MaxRetries = v.GetInt("dynamodb.max_retries") }},
	{"dynamodb.retry_backoff", func(v *viper.Viper, c *Config) { c.DynamoDB.RetryBackoff = v.GetDuration("dynamodb.retry_backoff") }},
}

func (c *Config) applyEnv() error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, o := range overrides {
		if err := v.BindEnv(o.key); err != nil {
			return fmt.Errorf("bind %s: %w", o.key, err)
		}
		if v.IsSet(o.key) {
			o.apply(v, c)
		}
	}
	return nil
}

// EnvVar returns the environment variable overriding key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that the selected backend has what
// it needs.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for n, fe := range verrs {
				msgs[n] = fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Backend == BackendDynamoDB {
		if c.DynamoDB.Table == "" || c.DynamoDB.Region == "" {
			return fmt.Errorf("invalid config: dynamodb backend needs dynamodb.table and dynamodb.region")
		}
	}
	return nil
}

// YAML renders the configuration with secrets masked.
func (c *Config) YAML() ([]byte, error) {
	masked := *c
	if masked.DynamoDB.SecretKey != "" {
		masked.DynamoDB.SecretKey = "********"
	}
	return yaml.Marshal(&masked)
}
