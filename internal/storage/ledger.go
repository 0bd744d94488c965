package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/bankrules/internal/common"
	"github.com/Veraticus/bankrules/internal/model"
	"github.com/google/uuid"
)

// CreatePaymentEntry stores a payment entry under a fresh PE- id and returns it.
func (s *SQLiteStorage) CreatePaymentEntry(ctx context.Context, entry *model.PaymentEntry) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validatePaymentEntry(entry); err != nil {
		return "", err
	}

	entry.ID = "PE-" + uuid.NewString()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_entries (
			id, bank_transaction, rule_id, payment_type, paid_amount, received_amount,
			paid_from, paid_to, party_type, party, reference_no, reference_date, posting_date,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.BankTransaction, entry.RuleID, string(entry.PaymentType),
		entry.PaidAmount.String(), entry.ReceivedAmount.String(),
		entry.PaidFrom, entry.PaidTo, entry.PartyType, entry.Party, entry.ReferenceNo,
		entry.ReferenceDate.Format(dateLayout), entry.PostingDate.Format(dateLayout),
		time.Now().UTC(),
	)
	if err != nil {
		entry.ID = ""
		return "", fmt.Errorf("failed to create payment entry: %w", err)
	}

	return entry.ID, nil
}

// CreateJournalEntry stores a balanced journal entry and its lines under a
// fresh JE- id and returns it.
func (s *SQLiteStorage) CreateJournalEntry(ctx context.Context, entry *model.JournalEntry) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateJournalEntry(entry); err != nil {
		return "", err
	}

	id := "JE-" + uuid.NewString()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO journal_entries (
				id, bank_transaction, rule_id, posting_date, cheque_no, cheque_date, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, entry.BankTransaction, entry.RuleID,
			entry.PostingDate.Format(dateLayout), entry.ChequeNo, entry.ChequeDate.Format(dateLayout),
			time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to create journal entry: %w", err)
		}

		for i, line := range entry.Lines {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO journal_entry_lines (journal_entry, line_no, account, debit, credit, cost_center)
				VALUES (?, ?, ?, ?, ?, ?)`,
				id, i+1, line.Account, line.Debit.String(), line.Credit.String(), line.CostCenter,
			)
			if err != nil {
				return fmt.Errorf("failed to create journal entry line %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	entry.ID = id
	return id, nil
}

// FindArtifact returns the id of the first artifact of the given kind created
// for the transaction, or "" when there is none.
func (s *SQLiteStorage) FindArtifact(ctx context.Context, transactionID string, kind model.ArtifactKind) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}

	var query string
	switch kind {
	case model.ArtifactPaymentEntry:
		query = `SELECT id FROM payment_entries WHERE bank_transaction = ? ORDER BY rowid ASC LIMIT 1`
	case model.ArtifactJournalEntry:
		query = `SELECT id FROM journal_entries WHERE bank_transaction = ? ORDER BY rowid ASC LIMIT 1`
	default:
		return "", fmt.Errorf("%w: unknown artifact kind %q", ErrInvalidArtifact, kind)
	}

	var id string
	err := s.db.QueryRowContext(ctx, query, transactionID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up %s: %w", kind, err)
	}
	return id, nil
}

// GetPaymentEntry retrieves a payment entry by ID.
func (s *SQLiteStorage) GetPaymentEntry(ctx context.Context, id string) (*model.PaymentEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		entry         model.PaymentEntry
		paymentType   string
		referenceDate string
		postingDate   string
		ruleID        sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, bank_transaction, rule_id, payment_type, paid_amount, received_amount,
			paid_from, paid_to, party_type, party, reference_no, reference_date, posting_date
		FROM payment_entries WHERE id = ?`, id).Scan(
		&entry.ID, &entry.BankTransaction, &ruleID, &paymentType, &entry.PaidAmount, &entry.ReceivedAmount,
		&entry.PaidFrom, &entry.PaidTo, &entry.PartyType, &entry.Party, &entry.ReferenceNo, &referenceDate, &postingDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment entry %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment entry: %w", err)
	}

	entry.PaymentType = model.PaymentType(paymentType)
	entry.RuleID = int(ruleID.Int64)
	if entry.ReferenceDate, err = time.Parse(dateLayout, referenceDate); err != nil {
		return nil, fmt.Errorf("invalid stored reference date %q: %w", referenceDate, err)
	}
	if entry.PostingDate, err = time.Parse(dateLayout, postingDate); err != nil {
		return nil, fmt.Errorf("invalid stored posting date %q: %w", postingDate, err)
	}

	return &entry, nil
}

// GetJournalEntry retrieves a journal entry and its lines by ID.
func (s *SQLiteStorage) GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		entry       model.JournalEntry
		postingDate string
		chequeDate  string
		ruleID      sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, bank_transaction, rule_id, posting_date, cheque_no, cheque_date
		FROM journal_entries WHERE id = ?`, id).Scan(
		&entry.ID, &entry.BankTransaction, &ruleID, &postingDate, &entry.ChequeNo, &chequeDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("journal entry %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get journal entry: %w", err)
	}

	entry.RuleID = int(ruleID.Int64)
	if entry.PostingDate, err = time.Parse(dateLayout, postingDate); err != nil {
		return nil, fmt.Errorf("invalid stored posting date %q: %w", postingDate, err)
	}
	if entry.ChequeDate, err = time.Parse(dateLayout, chequeDate); err != nil {
		return nil, fmt.Errorf("invalid stored cheque date %q: %w", chequeDate, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT account, debit, credit, cost_center
		FROM journal_entry_lines WHERE journal_entry = ? ORDER BY line_no ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get journal entry lines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var line model.JournalLine
		if err := rows.Scan(&line.Account, &line.Debit, &line.Credit, &line.CostCenter); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry line: %w", err)
		}
		entry.Lines = append(entry.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal entry lines: %w", err)
	}

	return &entry, nil
}
