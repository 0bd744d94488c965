package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/bankrules/internal/common"
	"github.com/Veraticus/bankrules/internal/model"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

const bankTransactionColumns = `
	id, hash, date, description, reference_number, party_name,
	deposit, withdrawal, bank_account, currency, status,
	expense_account, cost_center, party_type, party`

// SaveBankTransactions inserts transactions, skipping any whose hash is
// already stored. Missing IDs, hashes and statuses are filled in. It returns
// the number of rows actually inserted.
func (s *SQLiteStorage) SaveBankTransactions(ctx context.Context, transactions []model.BankTransaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(transactions) == 0 {
		return 0, nil
	}

	for i := range transactions {
		if err := validateBankTransaction(&transactions[i]); err != nil {
			return 0, fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO bank_transactions (
				id, hash, date, description, reference_number, party_name,
				deposit, withdrawal, bank_account, currency, status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i := range transactions {
			txn := &transactions[i]
			if txn.ID == "" {
				txn.ID = "BT-" + uuid.NewString()
			}
			if txn.Hash == "" {
				txn.Hash = txn.GenerateHash()
			}
			if txn.Status == "" {
				txn.Status = model.StatusPending
			}

			result, execErr := stmt.ExecContext(ctx,
				txn.ID, txn.Hash, txn.Date.Format(dateLayout), txn.Description, txn.ReferenceNumber, txn.PartyName,
				txn.Deposit.String(), txn.Withdrawal.String(), txn.BankAccount, txn.Currency, string(txn.Status),
			)
			if execErr != nil {
				return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, execErr)
			}
			if affected, _ := result.RowsAffected(); affected > 0 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

// GetBankTransaction retrieves a transaction by ID.
func (s *SQLiteStorage) GetBankTransaction(ctx context.Context, id string) (*model.BankTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+bankTransactionColumns+` FROM bank_transactions WHERE id = ?`, id)
	txn, err := scanBankTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bank transaction %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get bank transaction: %w", err)
	}
	return txn, nil
}

// UpdateCategorization writes the non-empty categorization fields onto a
// transaction. The party is only written when both party fields are set.
func (s *SQLiteStorage) UpdateCategorization(ctx context.Context, id string, c model.Categorization) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if c.ExpenseAccount != "" {
		sets = append(sets, "expense_account = ?")
		args = append(args, c.ExpenseAccount)
	}
	if c.CostCenter != "" {
		sets = append(sets, "cost_center = ?")
		args = append(args, c.CostCenter)
	}
	if c.PartyType != "" && c.Party != "" {
		sets = append(sets, "party_type = ?", "party = ?")
		args = append(args, c.PartyType, c.Party)
	}
	args = append(args, id)

	//nolint:gosec // column list is built from fixed strings
	query := `UPDATE bank_transactions SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update categorization: %w", err)
	}
	return requireAffected(result, "bank transaction", id)
}

// UpdateTransactionStatus moves a transaction through reconciliation.
func (s *SQLiteStorage) UpdateTransactionStatus(ctx context.Context, id string, status model.TransactionStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	switch status {
	case model.StatusPending, model.StatusUnreconciled, model.StatusReconciled:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransaction, status)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE bank_transactions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	return requireAffected(result, "bank transaction", id)
}

// GetPendingBankTransactions returns Pending and Unreconciled transactions
// matching the filter, oldest first. Both date bounds are inclusive.
func (s *SQLiteStorage) GetPendingBankTransactions(ctx context.Context, filter model.BulkFilter) ([]model.BankTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.FromDate != nil && filter.ToDate != nil && filter.ToDate.Before(*filter.FromDate) {
		return nil, fmt.Errorf("%w: end date %s is before start date %s",
			ErrInvalidDateRange, filter.ToDate.Format(dateLayout), filter.FromDate.Format(dateLayout))
	}

	where := []string{"status IN (?, ?)"}
	args := []any{string(model.StatusPending), string(model.StatusUnreconciled)}

	if filter.BankAccount != "" {
		where = append(where, "bank_account = ?")
		args = append(args, filter.BankAccount)
	}
	if filter.FromDate != nil {
		where = append(where, "date >= ?")
		args = append(args, filter.FromDate.Format(dateLayout))
	}
	if filter.ToDate != nil {
		where = append(where, "date <= ?")
		args = append(args, filter.ToDate.Format(dateLayout))
	}

	//nolint:gosec // where clauses are built from fixed strings
	query := `SELECT ` + bankTransactionColumns + ` FROM bank_transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY date ASC, id ASC`

	return s.queryBankTransactions(ctx, query, args...)
}

// ListBankTransactions returns the most recent transactions, newest first.
func (s *SQLiteStorage) ListBankTransactions(ctx context.Context, limit int) ([]model.BankTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.queryBankTransactions(ctx,
		`SELECT `+bankTransactionColumns+` FROM bank_transactions ORDER BY date DESC, id DESC LIMIT ?`, limit)
}

func (s *SQLiteStorage) queryBankTransactions(ctx context.Context, query string, args ...any) ([]model.BankTransaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bank transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.BankTransaction
	for rows.Next() {
		txn, err := scanBankTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank transaction: %w", err)
		}
		result = append(result, *txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bank transactions: %w", err)
	}
	return result, nil
}

func scanBankTransaction(row rowScanner) (*model.BankTransaction, error) {
	var (
		txn    model.BankTransaction
		date   string
		status string
	)

	err := row.Scan(
		&txn.ID, &txn.Hash, &date, &txn.Description, &txn.ReferenceNumber, &txn.PartyName,
		&txn.Deposit, &txn.Withdrawal, &txn.BankAccount, &txn.Currency, &status,
		&txn.ExpenseAccount, &txn.CostCenter, &txn.PartyType, &txn.Party,
	)
	if err != nil {
		return nil, err
	}

	txn.Date, err = time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", date, err)
	}
	txn.Status = model.TransactionStatus(status)

	return &txn, nil
}
