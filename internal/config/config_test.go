package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/s3fs-fuse/docbridge/internal/store/local"
	"github.com/s3fs-fuse/docbridge/internal/store/object"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return configPath
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "auto", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, "local", cfg.Store.Type)
	assert.Equal(t, ".", cfg.Store.Local["root"])
	assert.Empty(t, cfg.Grants)
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DOCBRIDGE_LOGGING_LEVEL", "error")
	t.Setenv("DOCBRIDGE_STORE_TYPE", "object")

	cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "ERROR", cfg.Logging.Level)
	assert.Equal(t, "object", cfg.Store.Type)
	assert.Equal(t, "memory", cfg.Store.Object.Backend)
}

func TestLoad_ObjectStore(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
store:
  type: object
  object:
    backend: badger
    spool_dir: /tmp
    badger:
      dir: /var/lib/docbridge
grants:
  - primary%3Aeasyrpg
`))
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.Store.Object.Backend)
	assert.Equal(t, "/var/lib/docbridge", cfg.Store.Object.Badger["dir"])
	assert.Equal(t, []string{"primary%3Aeasyrpg"}, cfg.Grants)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.Logging.Level = "LOUD" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad store", func(c *Config) { c.Store.Type = "ftp" }},
		{"bad backend", func(c *Config) { c.Store.Type = "object"; c.Store.Object.Backend = "ftp" }},
		{"empty grant", func(c *Config) { c.Grants = []string{""} }},
		{"duplicate grant", func(c *Config) { c.Grants = []string{"a", "a"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}

	assert.NoError(t, Validate(DefaultConfig()))
}

func TestInitConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	written, err := InitConfig(configPath, false)
	require.NoError(t, err)
	assert.Equal(t, configPath, written)

	content, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# docbridge configuration file")

	var parsed Config
	require.NoError(t, yaml.Unmarshal(content, &parsed))
	assert.Equal(t, "local", parsed.Store.Type)
	assert.Equal(t, "s3", parsed.Store.Object.Backend)

	_, err = InitConfig(configPath, false)
	assert.Error(t, err)
	_, err = InitConfig(configPath, true)
	assert.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestNewProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Local["root"] = t.TempDir()

	p, err := NewProvider(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &local.Provider{}, p)

	cfg.Store.Type = "object"
	cfg.Store.Object.Backend = "memory"
	p, err = NewProvider(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &object.Provider{}, p)
	closer, ok := p.(io.Closer)
	require.True(t, ok)
	assert.NoError(t, closer.Close())

	cfg.Store.Object.Backend = "badger"
	cfg.Store.Object.Badger["dir"] = t.TempDir()
	p, err = NewProvider(cfg, nil)
	require.NoError(t, err)
	assert.NoError(t, p.(io.Closer).Close())
}

func TestNewBackend_S3NeedsCredentials(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")

	_, err := NewBackend(&ObjectConfig{Backend: "s3", S3: map[string]any{"bucket": "saves"}})
	assert.Error(t, err)

	b, err := NewBackend(&ObjectConfig{Backend: "s3", S3: map[string]any{
		"bucket":            "saves",
		"access_key_id":     "k",
		"secret_access_key": "s",
	}})
	require.NoError(t, err)
	assert.NotNil(t, b)

	_, err = NewBackend(&ObjectConfig{Backend: "s3", S3: map[string]any{
		"bucket":            "saves",
		"endpoint":          "http://127.0.0.1:1",
		"access_key_id":     "k",
		"secret_access_key": "s",
		"create_bucket":     true,
	}})
	assert.Error(t, err, "create_bucket must reach the endpoint")
}

func TestNewLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "docbridge.log")

	logger, closeFn, err := NewLogger(&LoggingConfig{Level: "INFO", Format: "json", Output: logPath})
	require.NoError(t, err)
	logger.Info("hello")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)

	_, _, err = NewLogger(&LoggingConfig{Level: "INFO", Format: "xml", Output: "stderr"})
	assert.Error(t, err)
}
