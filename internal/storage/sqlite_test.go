package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/bankrules/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// createTestStorage opens a migrated database in a temp dir.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err, "failed to create storage")

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func testDate(day int) time.Time {
	return time.Date(2025, 4, day, 0, 0, 0, 0, time.UTC)
}

func testWithdrawal(id string, day int, desc, amount string) model.BankTransaction {
	return model.BankTransaction{
		ID:          id,
		Date:        testDate(day),
		Description: desc,
		Withdrawal:  decimal.RequireFromString(amount),
		BankAccount: "Checking",
		Currency:    "USD",
	}
}

func testDeposit(id string, day int, desc, amount string) model.BankTransaction {
	txn := testWithdrawal(id, day, desc, "0")
	txn.Deposit = decimal.RequireFromString(amount)
	return txn
}

func seedTransactions(t *testing.T, store *SQLiteStorage, txns ...model.BankTransaction) {
	t.Helper()
	_, err := store.SaveBankTransactions(context.Background(), txns)
	require.NoError(t, err)
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	require.ErrorIs(t, err, ErrEmptyString)
}

func TestMigrate_IsIdempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, ExpectedSchemaVersion, version)

	for _, table := range []string{"bank_rules", "bank_transactions", "payment_entries", "journal_entries", "journal_entry_lines", "bulk_runs"} {
		var count int
		err := store.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
		require.NoError(t, err)
		require.Equal(t, 1, count, "table %s missing", table)
	}
}
