package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/bankrules/internal/common"
	"github.com/Veraticus/bankrules/internal/config"
	"github.com/Veraticus/bankrules/internal/rules"
	"github.com/Veraticus/bankrules/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const dateLayout = "2006-01-02"

// loadConfig resolves the application configuration from viper.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// initStorage opens the database and runs migrations.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// openStore loads config and storage in one step for commands that need both.
func openStore(ctx context.Context) (*config.Config, *storage.SQLiteStorage, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	closeFn := func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("failed to close storage", "error", closeErr)
		}
	}
	return cfg, store, closeFn, nil
}

func newEngine(store rules.Store, cfg *config.Config) *rules.Engine {
	engineCfg := rules.DefaultConfig()
	engineCfg.SkipExistingArtifacts = cfg.Engine.SkipExistingArtifacts
	return rules.NewWithConfig(store, slog.Default(), engineCfg)
}

// parseDateFlag parses an optional YYYY-MM-DD flag value.
func parseDateFlag(value, name string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD", name, value)
	}
	return &t, nil
}

func printLine(cmd *cobra.Command, s string) {
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), s)
}

// notFound turns a missing record into a message for the operator.
func notFound(what string, err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.NewUserError(what+" not found", err)
	}
	return err
}
