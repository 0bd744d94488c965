// Package rules implements bank-rule auto-categorization: a priority-ordered
// decision list evaluated against bank transactions, first match wins.
package rules

import (
	"context"
	"time"

	"github.com/Veraticus/bankrules/internal/model"
	"github.com/shopspring/decimal"
)

// RuleStore reads rules and persists their match statistics.
type RuleStore interface {
	// GetActiveBankRules returns active rules ordered by priority ascending,
	// ties broken by id ascending.
	GetActiveBankRules(ctx context.Context) ([]model.BankRule, error)
	// RecordBankRuleMatch atomically counts one successful apply of the rule
	// for amount at the given time and returns the rule as stored afterwards.
	RecordBankRuleMatch(ctx context.Context, ruleID int, amount decimal.Decimal, at time.Time) (*model.BankRule, error)
}

// TransactionStore reads bank transactions and writes categorization back.
type TransactionStore interface {
	GetBankTransaction(ctx context.Context, id string) (*model.BankTransaction, error)
	UpdateCategorization(ctx context.Context, id string, c model.Categorization) error
	// GetPendingBankTransactions returns Pending and Unreconciled transactions
	// matching the filter, ordered by date then id.
	GetPendingBankTransactions(ctx context.Context, filter model.BulkFilter) ([]model.BankTransaction, error)
}

// Ledger creates accounting artifacts. Creation is the only operation the
// engine needs, apart from the optional lookup used to avoid duplicates.
type Ledger interface {
	CreatePaymentEntry(ctx context.Context, entry *model.PaymentEntry) (string, error)
	CreateJournalEntry(ctx context.Context, entry *model.JournalEntry) (string, error)
	// FindArtifact returns the id of an existing artifact of the given kind
	// for the transaction, or "" when there is none.
	FindArtifact(ctx context.Context, transactionID string, kind model.ArtifactKind) (string, error)
}

// Store combines everything the engine needs from persistence.
type Store interface {
	RuleStore
	TransactionStore
	Ledger
}
