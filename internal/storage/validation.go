// Package storage provides the SQLite persistence layer for bank rules,
// bank transactions and the ledger artifacts rules create.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/bankrules/internal/model"
	"github.com/shopspring/decimal"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid bank transaction")
	ErrInvalidArtifact    = errors.New("invalid ledger artifact")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateBankTransaction checks the fields every stored transaction needs.
func validateBankTransaction(txn *model.BankTransaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if strings.TrimSpace(txn.BankAccount) == "" {
		return fmt.Errorf("%w: missing bank account", ErrInvalidTransaction)
	}
	if txn.Deposit.IsNegative() || txn.Withdrawal.IsNegative() {
		return fmt.Errorf("%w: amounts cannot be negative", ErrInvalidTransaction)
	}
	if !txn.Deposit.IsZero() && !txn.Withdrawal.IsZero() {
		return fmt.Errorf("%w: deposit and withdrawal are mutually exclusive", ErrInvalidTransaction)
	}
	switch txn.Status {
	case "", model.StatusPending, model.StatusUnreconciled, model.StatusReconciled:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransaction, txn.Status)
	}
	return nil
}

// validatePaymentEntry checks a payment entry before it is written.
func validatePaymentEntry(entry *model.PaymentEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: payment entry", ErrNilParameter)
	}
	if entry.PaymentType != model.PaymentPay && entry.PaymentType != model.PaymentReceive {
		return fmt.Errorf("%w: unknown payment type %q", ErrInvalidArtifact, entry.PaymentType)
	}
	if entry.PaidFrom == "" || entry.PaidTo == "" {
		return fmt.Errorf("%w: payment entry needs both accounts", ErrInvalidArtifact)
	}
	if !entry.PaidAmount.IsPositive() {
		return fmt.Errorf("%w: payment amount must be positive", ErrInvalidArtifact)
	}
	if entry.BankTransaction == "" {
		return fmt.Errorf("%w: missing bank transaction", ErrInvalidArtifact)
	}
	return nil
}

// validateJournalEntry checks a journal entry is balanced and non-empty.
func validateJournalEntry(entry *model.JournalEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: journal entry", ErrNilParameter)
	}
	if len(entry.Lines) < 2 {
		return fmt.Errorf("%w: journal entry needs at least two lines", ErrInvalidArtifact)
	}
	total := decimal.Zero
	for i, line := range entry.Lines {
		if line.Account == "" {
			return fmt.Errorf("%w: line %d has no account", ErrInvalidArtifact, i+1)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d has a negative amount", ErrInvalidArtifact, i+1)
		}
		total = total.Add(line.Debit)
	}
	if !total.IsPositive() {
		return fmt.Errorf("%w: journal entry amount must be positive", ErrInvalidArtifact)
	}
	if !entry.IsBalanced() {
		return fmt.Errorf("%w: debits and credits do not balance", ErrInvalidArtifact)
	}
	if entry.BankTransaction == "" {
		return fmt.Errorf("%w: missing bank transaction", ErrInvalidArtifact)
	}
	return nil
}
