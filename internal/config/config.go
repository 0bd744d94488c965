// Package config loads bankrules settings from viper.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/Veraticus/bankrules/internal/common"
	"github.com/spf13/viper"
)

// Config is the resolved application configuration.
type Config struct {
	Database  DatabaseConfig
	Logging   LoggingConfig
	Scheduler SchedulerConfig
	Server    ServerConfig
	Engine    EngineConfig
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// EngineConfig tunes rule application.
type EngineConfig struct {
	// SkipExistingArtifacts reuses a payment or journal entry already
	// created for a transaction instead of creating another.
	SkipExistingArtifacts bool
}

// SchedulerConfig drives the periodic bulk application.
type SchedulerConfig struct {
	Location    *time.Location
	Schedule    string
	BankAccount string
	Enabled     bool
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Address string
	// CertDir holds the self-signed certificate used when TLS is set.
	CertDir         string
	TLSHosts        []string
	ShutdownTimeout time.Duration
	TLS             bool
}

// SetDefaults registers default values for every key Load reads.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", filepath.Join(DataDir(), "bankrules.db"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("engine.skip_existing_artifacts", false)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.schedule", "0 2 * * *")
	v.SetDefault("scheduler.timezone", "Local")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.tls", false)
	v.SetDefault("server.cert_dir", filepath.Join(ConfigDir(), "certs"))
	v.SetDefault("plaid.environment", "sandbox")
	v.SetDefault("simplefin.state_file", filepath.Join(DataDir(), "simplefin_auth.json"))
	v.SetDefault("sheets.token_file", filepath.Join(ConfigDir(), "sheets-token.json"))
}

// Load resolves the configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil viper instance", common.ErrMissingConfig)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Engine: EngineConfig{
			SkipExistingArtifacts: v.GetBool("engine.skip_existing_artifacts"),
		},
		Scheduler: SchedulerConfig{
			Enabled:     v.GetBool("scheduler.enabled"),
			Schedule:    v.GetString("scheduler.schedule"),
			BankAccount: v.GetString("scheduler.bank_account"),
		},
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			TLS:             v.GetBool("server.tls"),
			CertDir:         ExpandPath(v.GetString("server.cert_dir")),
			TLSHosts:        v.GetStringSlice("server.tls_hosts"),
		},
	}

	if cfg.Database.Path == "" {
		return nil, fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if _, err := common.ParseLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	switch cfg.Logging.Format {
	case "console", "json":
	default:
		return nil, fmt.Errorf("%w: invalid log format %q", common.ErrInvalidConfig, cfg.Logging.Format)
	}

	tz := v.GetString("scheduler.timezone")
	if tz == "" {
		tz = "Local"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: scheduler.timezone: %w", common.ErrInvalidConfig, err)
	}
	cfg.Scheduler.Location = loc

	return cfg, nil
}
