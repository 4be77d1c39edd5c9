package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:     AppConfig{Environment: "development"},
		Logger:  LoggerConfig{Level: "info"},
		Storage: StorageConfig{DataPath: "/some/path", Backend: BackendBadger},
		License: LicenseConfig{IDPrefix: "BV", IssueTimeout: 10 * time.Second, RatePerMinute: 30},
	}
}

// clearEnv blanks every key Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV", "LOG_LEVEL", "DATA_PATH", "STORE_BACKEND", "SERVER_NAME", "SERVER_PORT",
		"SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT", "SERVER_IDLE_TIMEOUT", "SERVER_SHUTDOWN_TIMEOUT", "CORS_ORIGINS",
		"LICENSE_ID_PREFIX", "LICENSE_ISSUE_TIMEOUT", "ISSUE_RATE_PER_MINUTE",
	} {
		t.Setenv(key, "")
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_StoreBackend(t *testing.T) {
	tests := []struct {
		backend string
		valid   bool
	}{
		{BackendBadger, true},
		{BackendSQLite, true},
		{"postgres", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := validConfig()
			cfg.Storage.Backend = tt.backend

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_LicenseSettings(t *testing.T) {
	cfg := validConfig()
	cfg.License.IDPrefix = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.License.IDPrefix = "B V"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.License.IssueTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.License.RatePerMinute = -1
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.License.RatePerMinute = 0
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Server.ShutdownTimeout = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	dataDir := t.TempDir()

	cfg, err := Load([]string{"-env-file", filepath.Join(dataDir, "missing.env"), "-data-path", dataDir})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "BV", cfg.License.IDPrefix)
	assert.Equal(t, 10*time.Second, cfg.License.IssueTimeout)
	assert.Equal(t, 30, cfg.License.RatePerMinute)

	assert.Equal(t, filepath.Join(dataDir, "certificates"), cfg.CertificatesPath())
	assert.Equal(t, filepath.Join(dataDir, "search"), cfg.SearchIndexPath())
	assert.Equal(t, filepath.Join(dataDir, "ledger"), cfg.LedgerPath())
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	clearEnv(t)
	dataDir := t.TempDir()
	t.Setenv("STORE_BACKEND", "badger")
	t.Setenv("LICENSE_ID_PREFIX", "ENV")

	cfg, err := Load([]string{
		"-env-file", filepath.Join(dataDir, "missing.env"),
		"-data-path", dataDir,
		"-store-backend", "sqlite",
		"-license-id-prefix", "FLAG",
	})
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "FLAG", cfg.License.IDPrefix)
	assert.Equal(t, filepath.Join(dataDir, "ledger.sqlite"), cfg.LedgerPath())
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# comment\nDATA_PATH=" + dir + "\nCORS_ORIGINS=\"https://a.example, https://b.example\"\nLICENSE_ISSUE_TIMEOUT=3s\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	cfg, err := Load([]string{"-env-file", envPath})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Storage.DataPath)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 3*time.Second, cfg.License.IssueTimeout)
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("LICENSE_ISSUE_TIMEOUT", "soon")

	_, err := Load([]string{"-env-file", filepath.Join(dir, "missing.env"), "-data-path", dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LICENSE_ISSUE_TIMEOUT")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/beats", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "beats"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	got, err = expandPath("/a/b/../c", "")
	require.NoError(t, err)
	assert.Equal(t, "/a/c", got)
}

func TestLoadEnvFile_InvalidLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NOT A PAIR\n"), 0o600))

	err := loadEnvFile(path)
	assert.Error(t, err)
}
