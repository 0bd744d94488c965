// Package testutil provides a migrated SQLite database and fluent builders
// for bank transactions and rules, for tests that need real storage.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/bankrules/internal/model"
	"github.com/Veraticus/bankrules/internal/storage"
)

// TestDB is a migrated database that is closed when the test ends.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a file-backed database in the test's temp directory.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	db.SeedTransactions(testutil.Withdrawal("T1", "STARBUCKS 1234", "4.50").Build())
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "bankrules.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return &TestDB{Storage: store, t: t}
}

// SeedTransactions saves transactions and fails the test on error.
func (db *TestDB) SeedTransactions(txns ...model.BankTransaction) {
	db.t.Helper()
	if _, err := db.Storage.SaveBankTransactions(context.Background(), txns); err != nil {
		db.t.Fatalf("failed to seed transactions: %v", err)
	}
}

// SeedRules creates rules, returning them with their assigned ids.
func (db *TestDB) SeedRules(rules ...model.BankRule) []model.BankRule {
	db.t.Helper()
	created := make([]model.BankRule, 0, len(rules))
	for _, rule := range rules {
		r := rule
		if err := db.Storage.CreateBankRule(context.Background(), &r); err != nil {
			db.t.Fatalf("failed to seed rule %q: %v", rule.Name, err)
		}
		created = append(created, r)
	}
	return created
}

// Transaction reloads a transaction and fails the test if it is missing.
func (db *TestDB) Transaction(id string) *model.BankTransaction {
	db.t.Helper()
	txn, err := db.Storage.GetBankTransaction(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to load transaction %s: %v", id, err)
	}
	return txn
}

// Rule reloads a rule and fails the test if it is missing.
func (db *TestDB) Rule(id int) *model.BankRule {
	db.t.Helper()
	rule, err := db.Storage.GetBankRule(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to load rule %d: %v", id, err)
	}
	return rule
}
