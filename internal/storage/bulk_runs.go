package storage

import (
	"context"
	"fmt"

	"github.com/Veraticus/bankrules/internal/model"
)

// RecordBulkRun appends a finished bulk run to the history.
func (s *SQLiteStorage) RecordBulkRun(ctx context.Context, run *model.BulkRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: bulk run", ErrNilParameter)
	}
	if err := validateString(run.Source, "source"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO bulk_runs (
			source, bank_account, total_transactions, rules_applied, errors, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Source, run.BankAccount, run.Summary.TotalTransactions, run.Summary.RulesApplied,
		run.Summary.Errors, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record bulk run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get bulk run ID: %w", err)
	}
	run.ID = int(id)
	return nil
}

// ListBulkRuns returns the most recent bulk runs, newest first.
func (s *SQLiteStorage) ListBulkRuns(ctx context.Context, limit int) ([]model.BulkRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, bank_account, total_transactions, rules_applied, errors, started_at, finished_at
		FROM bulk_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query bulk runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.BulkRun
	for rows.Next() {
		var run model.BulkRun
		if err := rows.Scan(
			&run.ID, &run.Source, &run.BankAccount,
			&run.Summary.TotalTransactions, &run.Summary.RulesApplied, &run.Summary.Errors,
			&run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bulk run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bulk runs: %w", err)
	}
	return runs, nil
}
