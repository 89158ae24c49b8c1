package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) *Config {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	require.NoError(t, flags.Parse(args))
	cfg, err := Load(viper.New(), flags)
	require.NoError(t, err)
	return cfg
}

func TestLoad(t *testing.T) {

	t.Run("defaults", func(t *testing.T) {
		cfg := load(t)
		assert.Equal(t, DefaultAPI, cfg.API)
		assert.Equal(t, 60, cfg.Refresh)
		assert.Equal(t, 20, cfg.Timeout)
		assert.Equal(t, SupportedColumns(), cfg.Columns)
		assert.True(t, strings.HasSuffix(cfg.SessionFile, filepath.Join(".crypto-tracker", "session.yml")))
	})

	t.Run("config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tracker.yml")
		require.NoError(t, os.WriteFile(path, []byte("api: https://tracker.example.com/api\nrefresh: 30\nshow: [Symbol, Price]\n"), 0o600))

		cfg := load(t, "--config-file", path)
		assert.Equal(t, "https://tracker.example.com/api", cfg.API)
		assert.Equal(t, 30, cfg.Refresh)
		assert.Equal(t, []string{"Symbol", "Price"}, cfg.Columns)
	})

	t.Run("flag beats config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tracker.yml")
		require.NoError(t, os.WriteFile(path, []byte("refresh: 30\n"), 0o600))

		cfg := load(t, "--config-file", path, "--refresh", "90")
		assert.Equal(t, 90, cfg.Refresh)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("CRYPTO_TRACKER_TIMEOUT", "5")
		t.Setenv("CRYPTO_TRACKER_SESSION_FILE", "/tmp/session.yml")

		cfg := load(t)
		assert.Equal(t, 5, cfg.Timeout)
		assert.Equal(t, "/tmp/session.yml", cfg.SessionFile)
	})

	t.Run("example config is loadable", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "example.yml")
		require.NoError(t, WriteExampleConfig(path))

		cfg := load(t, "--config-file", path)
		assert.Equal(t, DefaultAPI, cfg.API)
		assert.Len(t, cfg.Columns, len(SupportedColumns()))
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{API: DefaultAPI, Refresh: 60, Timeout: 20, Columns: SupportedColumns()}
	}

	t.Run("valid", func(t *testing.T) {
		cfg := valid()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("bad scheme", func(t *testing.T) {
		cfg := valid()
		cfg.API = "ftp://localhost/api"
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive refresh", func(t *testing.T) {
		cfg := valid()
		cfg.Refresh = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown column", func(t *testing.T) {
		cfg := valid()
		cfg.Columns = []string{"price", "Nope"}
		assert.EqualError(t, cfg.Validate(), "unknown column: Nope")
	})

	t.Run("unknown output", func(t *testing.T) {
		cfg := valid()
		cfg.Output = "xml"
		assert.Error(t, cfg.Validate())
	})
}
