package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/bankrules/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	v := viper.New()
	SetDefaults(v)
	if yaml != "" {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())
	}
	return v
}

func TestLoad_Defaults(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, err := Load(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".local", "share", "bankrules", "bankrules.db"), cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.Engine.SkipExistingArtifacts)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "0 2 * * *", cfg.Scheduler.Schedule)
	assert.Equal(t, time.Local, cfg.Scheduler.Location)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.False(t, cfg.Server.TLS)
	assert.Equal(t, filepath.Join(home, ".config", "bankrules", "certs"), cfg.Server.CertDir)
}

func TestLoad_FromFile(t *testing.T) {
	v := newViper(t, `
database:
  path: /tmp/rules.db
logging:
  level: debug
  format: json
engine:
  skip_existing_artifacts: true
scheduler:
  schedule: "*/15 * * * *"
  timezone: UTC
  bank_account: Checking
server:
  address: 127.0.0.1:9000
  tls: true
  cert_dir: /tmp/certs
  tls_hosts: [bankrules.lan]
`)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/rules.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Engine.SkipExistingArtifacts)
	assert.Equal(t, "*/15 * * * *", cfg.Scheduler.Schedule)
	assert.Equal(t, "Checking", cfg.Scheduler.BankAccount)
	assert.Equal(t, time.UTC, cfg.Scheduler.Location)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
	assert.True(t, cfg.Server.TLS)
	assert.Equal(t, "/tmp/certs", cfg.Server.CertDir)
	assert.Equal(t, []string{"bankrules.lan"}, cfg.Server.TLSHosts)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value any
		name  string
	}{
		{name: "log level", key: "logging.level", value: "loud"},
		{name: "log format", key: "logging.format", value: "xml"},
		{name: "timezone", key: "scheduler.timezone", value: "Mars/Olympus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper(t, "")
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}

	v := newViper(t, "")
	v.Set("database.path", "")
	_, err := Load(v)
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = Load(nil)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestXDGDirs(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "relative/ignored")
	assert.Equal(t, filepath.Join("~", ".config", "bankrules"), ConfigDir())
	assert.Equal(t, filepath.Join("~", ".local", "share", "bankrules"), DataDir())

	t.Setenv("XDG_CONFIG_HOME", "/etc/xdg")
	t.Setenv("XDG_DATA_HOME", "/srv/data")
	assert.Equal(t, "/etc/xdg/bankrules", ConfigDir())
	assert.Equal(t, "/srv/data/bankrules", DataDir())

	v := viper.New()
	SetDefaults(v)
	assert.Equal(t, "/srv/data/bankrules/bankrules.db", v.GetString("database.path"))
	assert.Equal(t, "/etc/xdg/bankrules/certs", v.GetString("server.cert_dir"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("BANKRULES_TEST_DIR", "/data")

	tests := []struct {
		input string
		want  string
	}{
		{input: "", want: ""},
		{input: "~", want: home},
		{input: "~/rules.db", want: filepath.Join(home, "rules.db")},
		{input: "$BANKRULES_TEST_DIR/rules.db", want: "/data/rules.db"},
		{input: "/abs/path.db", want: "/abs/path.db"},
		{input: "~other/x", want: "~other/x"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.input))
		})
	}
}

func TestLoadSheetsConfig(t *testing.T) {
	for _, key := range []string{
		"GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "GOOGLE_SHEETS_CLIENT_ID", "GOOGLE_SHEETS_CLIENT_SECRET",
		"GOOGLE_SHEETS_REFRESH_TOKEN", "GOOGLE_SHEETS_SPREADSHEET_ID", "GOOGLE_SHEETS_SPREADSHEET_NAME",
	} {
		t.Setenv(key, "")
	}

	t.Run("viper wins over env", func(t *testing.T) {
		t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "from-env")
		v := newViper(t, "")
		v.Set("sheets.service_account_path", "/keys/sa.json")
		v.Set("sheets.spreadsheet_id", "from-viper")
		v.Set("sheets.time_zone", "Europe/Berlin")

		cfg, err := LoadSheetsConfig(v)
		require.NoError(t, err)
		assert.Equal(t, "Europe/Berlin", cfg.TimeZone)
		assert.Equal(t, "/keys/sa.json", cfg.ServiceAccountPath)
		assert.Equal(t, "from-viper", cfg.SpreadsheetID)
		assert.Equal(t, "Bank Rule Statistics", cfg.SpreadsheetName)
	})

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "id")
		t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "secret")
		t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "refresh")

		cfg, err := LoadSheetsConfig(newViper(t, ""))
		require.NoError(t, err)
		assert.Equal(t, "id", cfg.ClientID)
		assert.Equal(t, "refresh", cfg.RefreshToken)
	})

	t.Run("refresh token from token file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "token.json")
		require.NoError(t, os.WriteFile(tokenFile, []byte(`{"refresh_token":"saved"}`), 0o600))

		v := newViper(t, "")
		v.Set("sheets.client_id", "id")
		v.Set("sheets.client_secret", "secret")
		v.Set("sheets.token_file", tokenFile)

		cfg, err := LoadSheetsConfig(v)
		require.NoError(t, err)
		assert.Equal(t, "saved", cfg.RefreshToken)
	})

	t.Run("no credentials", func(t *testing.T) {
		_, err := LoadSheetsConfig(newViper(t, ""))
		assert.ErrorIs(t, err, common.ErrMissingConfig)
	})

	t.Run("bad batch size", func(t *testing.T) {
		v := newViper(t, "")
		v.Set("sheets.service_account_path", "/keys/sa.json")
		v.Set("sheets.batch_size", 0)
		_, err := LoadSheetsConfig(v)
		assert.ErrorIs(t, err, common.ErrInvalidConfig)
	})
}

func TestLoadPlaidConfig(t *testing.T) {
	v := newViper(t, `
plaid:
  client_id: cid
  secret: sec
  access_token: tok
  accounts:
    acc-1: Checking
`)

	cfg, err := LoadPlaidConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "sandbox", cfg.Environment)
	assert.Equal(t, map[string]string{"acc-1": "Checking"}, cfg.Accounts)

	_, err = LoadPlaidConfig(newViper(t, ""))
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestLoadSimpleFINConfig(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	v := newViper(t, `
simplefin:
  token: aHR0cHM6Ly9leGFtcGxlLmNvbS9jbGFpbQ==
  bank_account: Checking
  accounts:
    ACT-2: Savings
`)

	cfg, err := LoadSimpleFINConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "Checking", cfg.BankAccount)
	assert.Equal(t, filepath.Join(home, ".local", "share", "bankrules", "simplefin_auth.json"), cfg.StateFile)
	// viper lowercases map keys
	assert.Equal(t, map[string]string{"act-2": "Savings"}, cfg.Accounts)

	_, err = LoadSimpleFINConfig(newViper(t, ""))
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}
