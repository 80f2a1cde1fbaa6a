/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entitymap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, int32(100), cfg.DynamoDB.PageSize)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
backend: dynamodb
naming: qualified
show_deleted: true
cache:
  enabled: false
log:
  level: debug
  format: console
dynamodb:
  table: entities
  region: us-east-1
  retry_backoff: 250ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendDynamoDB, cfg.Backend)
	assert.Equal(t, "qualified", cfg.Naming)
	assert.True(t, cfg.ShowDeleted)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "entities", cfg.DynamoDB.Table)
	assert.Equal(t, 250*time.Millisecond, cfg.DynamoDB.RetryBackoff)
	assert.Equal(t, 3, cfg.DynamoDB.MaxRetries, "unset keys keep their defaults")
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "backend: memory\nlog:\n  level: warn\n")
	t.Setenv(EnvVar("log.level"), "debug")
	t.Setenv(EnvVar("cache.enabled"), "false")
	t.Setenv(EnvVar("dynamodb.page_size"), "25")
	t.Setenv(EnvVar("dynamodb.retry_backoff"), "2s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, int32(25), cfg.DynamoDB.PageSize)
	assert.Equal(t, 2*time.Second, cfg.DynamoDB.RetryBackoff)
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "ENTITYMAP_DYNAMODB_TABLE", EnvVar("dynamodb.table"))
	assert.Equal(t, "ENTITYMAP_SHOW_DELETED", EnvVar("show_deleted"))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown backend":     func(c *Config) { c.Backend = "postgres" },
		"unknown naming":      func(c *Config) { c.Naming = "camel" },
		"unknown log format":  func(c *Config) { c.Log.Format = "xml" },
		"negative page size":  func(c *Config) { c.DynamoDB.PageSize = -1 },
		"dynamodb sans table": func(c *Config) { c.Backend = BackendDynamoDB; c.DynamoDB.Region = "eu-west-1" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "backend: [memory"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "backend: sqlite\n"))
	assert.ErrorContains(t, err, "Backend")
}

func TestYAMLMasksSecret(t *testing.T) {
	cfg := Default()
	cfg.DynamoDB.SecretKey = "hunter2"
	data, err := cfg.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.Equal(t, "hunter2", cfg.DynamoDB.SecretKey)

	var back Config
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, cfg.Backend, back.Backend)
	assert.Equal(t, cfg.DynamoDB.RetryBackoff, back.DynamoDB.RetryBackoff)
}
