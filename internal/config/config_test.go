package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so a stray crates.yaml in
// the package directory can't leak into the defaults.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CRATES_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "data/crates.db", cfg.DB.DSN)
	assert.Equal(t, 10, cfg.DB.MaxOpenConns)
	assert.Equal(t, 30*time.Minute, cfg.DB.ConnMaxLifetime)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CRATES_CONFIG", "")
	t.Setenv("CRATES_PORT", "9090")
	t.Setenv("CRATES_LOG_LEVEL", "debug")
	t.Setenv("CRATES_DB_DRIVER", "Postgres")
	t.Setenv("CRATES_DB_DSN", "postgres://localhost/crates")
	t.Setenv("CRATES_DB_MAX_OPEN_CONNS", "25")
	t.Setenv("CRATES_REQUEST_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "postgres://localhost/crates", cfg.DB.DSN)
	assert.Equal(t, 25, cfg.DB.MaxOpenConns)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 7070
db:
  driver: mysql
  dsn: "root:secret@tcp(localhost:3306)/crates"
`), 0o600))
	t.Setenv("CRATES_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, DriverMySQL, cfg.DB.Driver)
	assert.Equal(t, "root:secret@tcp(localhost:3306)/crates", cfg.DB.DSN)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crates.yaml"), []byte("port: 7070\n"), 0o600))
	t.Setenv("CRATES_CONFIG", "")
	t.Setenv("CRATES_PORT", "6060")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Port)
}

func TestLoad_BrokenFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unterminated\n"), 0o600))
	t.Setenv("CRATES_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CRATES_CONFIG", "")
	t.Setenv("CRATES_LOG_LEVEL", "chatty")

	_, err := Load()
	assert.ErrorContains(t, err, "log_level")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:           8080,
			RequestTimeout: time.Second,
			DB:             DBConfig{Driver: DriverSQLite, DSN: ":memory:", MaxOpenConns: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero port", func(c *Config) { c.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"unknown driver", func(c *Config) { c.DB.Driver = "oracle" }, true},
		{"empty dsn", func(c *Config) { c.DB.DSN = "" }, true},
		{"zero pool", func(c *Config) { c.DB.MaxOpenConns = 0 }, true},
		{"negative idle", func(c *Config) { c.DB.MaxIdleConns = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
