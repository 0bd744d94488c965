package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Bank rules and bank transactions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS bank_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					priority INTEGER NOT NULL DEFAULT 10,
					is_active BOOLEAN NOT NULL DEFAULT 1,
					bank_account TEXT NOT NULL DEFAULT '',
					match_field TEXT NOT NULL DEFAULT 'Description',
					match_type TEXT NOT NULL DEFAULT 'Contains',
					match_value TEXT NOT NULL DEFAULT '',
					transaction_type TEXT,
					min_amount TEXT,
					max_amount TEXT,
					action_type TEXT NOT NULL DEFAULT 'Categorize',
					account TEXT NOT NULL DEFAULT '',
					cost_center TEXT NOT NULL DEFAULT '',
					party_type TEXT NOT NULL DEFAULT '',
					party TEXT NOT NULL DEFAULT '',
					times_matched INTEGER NOT NULL DEFAULT 0,
					last_matched DATETIME,
					total_amount_matched TEXT NOT NULL DEFAULT '0',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_bank_rules_active_priority ON bank_rules(is_active, priority, id)`,

				`CREATE TABLE IF NOT EXISTS bank_transactions (
					id TEXT PRIMARY KEY,
					hash TEXT UNIQUE NOT NULL,
					date TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					reference_number TEXT NOT NULL DEFAULT '',
					party_name TEXT NOT NULL DEFAULT '',
					deposit TEXT NOT NULL DEFAULT '0',
					withdrawal TEXT NOT NULL DEFAULT '0',
					bank_account TEXT NOT NULL,
					currency TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'Pending',
					expense_account TEXT NOT NULL DEFAULT '',
					cost_center TEXT NOT NULL DEFAULT '',
					party_type TEXT NOT NULL DEFAULT '',
					party TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_bank_transactions_status_date ON bank_transactions(status, date, id)`,
				`CREATE INDEX idx_bank_transactions_account ON bank_transactions(bank_account)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Payment and journal entries created by bank rules",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS payment_entries (
					id TEXT PRIMARY KEY,
					bank_transaction TEXT NOT NULL REFERENCES bank_transactions(id),
					rule_id INTEGER,
					payment_type TEXT NOT NULL,
					paid_amount TEXT NOT NULL,
					received_amount TEXT NOT NULL,
					paid_from TEXT NOT NULL,
					paid_to TEXT NOT NULL,
					party_type TEXT NOT NULL DEFAULT '',
					party TEXT NOT NULL DEFAULT '',
					reference_no TEXT NOT NULL DEFAULT '',
					reference_date TEXT NOT NULL,
					posting_date TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_payment_entries_transaction ON payment_entries(bank_transaction)`,

				`CREATE TABLE IF NOT EXISTS journal_entries (
					id TEXT PRIMARY KEY,
					bank_transaction TEXT NOT NULL REFERENCES bank_transactions(id),
					rule_id INTEGER,
					posting_date TEXT NOT NULL,
					cheque_no TEXT NOT NULL DEFAULT '',
					cheque_date TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_journal_entries_transaction ON journal_entries(bank_transaction)`,

				`CREATE TABLE IF NOT EXISTS journal_entry_lines (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					journal_entry TEXT NOT NULL REFERENCES journal_entries(id) ON DELETE CASCADE,
					line_no INTEGER NOT NULL,
					account TEXT NOT NULL,
					debit TEXT NOT NULL DEFAULT '0',
					credit TEXT NOT NULL DEFAULT '0',
					cost_center TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX idx_journal_entry_lines_entry ON journal_entry_lines(journal_entry, line_no)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Bulk run history",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS bulk_runs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					source TEXT NOT NULL,
					bank_account TEXT NOT NULL DEFAULT '',
					total_transactions INTEGER NOT NULL DEFAULT 0,
					rules_applied INTEGER NOT NULL DEFAULT 0,
					errors INTEGER NOT NULL DEFAULT 0,
					started_at DATETIME NOT NULL,
					finished_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_bulk_runs_started ON bulk_runs(started_at)`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
