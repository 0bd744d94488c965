package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/bankrules/internal/common"
	"github.com/Veraticus/bankrules/internal/model"
	"github.com/Veraticus/bankrules/internal/rules"
	"github.com/shopspring/decimal"
)

const bankRuleColumns = `
	id, name, priority, is_active, bank_account,
	match_field, match_type, match_value, transaction_type,
	min_amount, max_amount, action_type, account, cost_center,
	party_type, party, times_matched, last_matched, total_amount_matched,
	created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// CreateBankRule validates and inserts a new rule, filling in its ID. Rules
// start with zero statistics whatever the caller set.
func (s *SQLiteStorage) CreateBankRule(ctx context.Context, rule *model.BankRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := rules.ValidateRule(rule); err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO bank_rules (
			name, priority, is_active, bank_account,
			match_field, match_type, match_value, transaction_type,
			min_amount, max_amount, action_type, account, cost_center,
			party_type, party, times_matched, last_matched, total_amount_matched,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.Name, rule.Priority, rule.IsActive, rule.BankAccount,
		string(rule.MatchField), string(rule.MatchType), rule.MatchValue, transactionTypeToNull(rule.TransactionType),
		decimalToNull(rule.MinAmount), decimalToNull(rule.MaxAmount), string(rule.ActionType), rule.Account, rule.CostCenter,
		rule.PartyType, rule.Party, 0, nil, decimal.Zero.String(),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create bank rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get bank rule ID: %w", err)
	}

	rule.ID = int(id)
	rule.TimesMatched = 0
	rule.LastMatched = nil
	rule.TotalAmountMatched = decimal.Zero
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// GetBankRule retrieves a rule by ID.
func (s *SQLiteStorage) GetBankRule(ctx context.Context, id int) (*model.BankRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+bankRuleColumns+` FROM bank_rules WHERE id = ?`, id)
	rule, err := scanBankRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bank rule %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get bank rule: %w", err)
	}
	return rule, nil
}

// ListBankRules returns every rule, active or not, in evaluation order.
func (s *SQLiteStorage) ListBankRules(ctx context.Context) ([]model.BankRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryBankRules(ctx, `SELECT `+bankRuleColumns+` FROM bank_rules ORDER BY priority ASC, id ASC`)
}

// GetActiveBankRules returns active rules ordered by priority ascending with
// ties broken by id ascending.
func (s *SQLiteStorage) GetActiveBankRules(ctx context.Context) ([]model.BankRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryBankRules(ctx, `SELECT `+bankRuleColumns+` FROM bank_rules WHERE is_active = 1 ORDER BY priority ASC, id ASC`)
}

// UpdateBankRule validates and rewrites a rule's definition. Statistics are
// left alone; they only change through RecordBankRuleMatch.
func (s *SQLiteStorage) UpdateBankRule(ctx context.Context, rule *model.BankRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := rules.ValidateRule(rule); err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE bank_rules SET
			name = ?, priority = ?, is_active = ?, bank_account = ?,
			match_field = ?, match_type = ?, match_value = ?, transaction_type = ?,
			min_amount = ?, max_amount = ?, action_type = ?, account = ?, cost_center = ?,
			party_type = ?, party = ?, updated_at = ?
		WHERE id = ?`,
		rule.Name, rule.Priority, rule.IsActive, rule.BankAccount,
		string(rule.MatchField), string(rule.MatchType), rule.MatchValue, transactionTypeToNull(rule.TransactionType),
		decimalToNull(rule.MinAmount), decimalToNull(rule.MaxAmount), string(rule.ActionType), rule.Account, rule.CostCenter,
		rule.PartyType, rule.Party, now,
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update bank rule: %w", err)
	}

	if err := requireAffected(result, "bank rule", rule.ID); err != nil {
		return err
	}
	rule.UpdatedAt = now
	return nil
}

// DeleteBankRule removes a rule. Artifacts it created keep their rule id.
func (s *SQLiteStorage) DeleteBankRule(ctx context.Context, id int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM bank_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bank rule: %w", err)
	}
	return requireAffected(result, "bank rule", id)
}

// RecordBankRuleMatch counts one successful apply of a rule: times_matched
// goes up by one, |amount| is added to total_amount_matched and
// last_matched becomes at. The read and write share one transaction so
// concurrent applies (scheduler and API) never lose an increment.
func (s *SQLiteStorage) RecordBankRuleMatch(ctx context.Context, ruleID int, amount decimal.Decimal, at time.Time) (*model.BankRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var rule *model.BankRule
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var total decimal.Decimal
		err := tx.QueryRowContext(ctx, `SELECT total_amount_matched FROM bank_rules WHERE id = ?`, ruleID).Scan(&total)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("bank rule %d: %w", ruleID, common.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read bank rule statistics: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE bank_rules
			SET times_matched = times_matched + 1, last_matched = ?, total_amount_matched = ?
			WHERE id = ?`,
			at.UTC(), total.Add(amount.Abs()).String(), ruleID,
		)
		if err != nil {
			return fmt.Errorf("failed to save bank rule statistics: %w", err)
		}

		rule, err = scanBankRule(tx.QueryRowContext(ctx, `SELECT `+bankRuleColumns+` FROM bank_rules WHERE id = ?`, ruleID))
		if err != nil {
			return fmt.Errorf("failed to reload bank rule: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *SQLiteStorage) queryBankRules(ctx context.Context, query string, args ...any) ([]model.BankRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bank rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.BankRule
	for rows.Next() {
		rule, err := scanBankRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank rule: %w", err)
		}
		result = append(result, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bank rules: %w", err)
	}
	return result, nil
}

func scanBankRule(row rowScanner) (*model.BankRule, error) {
	var (
		rule            model.BankRule
		matchField      string
		matchType       string
		actionType      string
		transactionType sql.NullString
		minAmount       decimal.NullDecimal
		maxAmount       decimal.NullDecimal
		lastMatched     sql.NullTime
	)

	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Priority, &rule.IsActive, &rule.BankAccount,
		&matchField, &matchType, &rule.MatchValue, &transactionType,
		&minAmount, &maxAmount, &actionType, &rule.Account, &rule.CostCenter,
		&rule.PartyType, &rule.Party, &rule.TimesMatched, &lastMatched, &rule.TotalAmountMatched,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.MatchField = model.MatchField(matchField)
	rule.MatchType = model.MatchType(matchType)
	rule.ActionType = model.ActionType(actionType)
	if transactionType.Valid {
		tt := model.TransactionType(transactionType.String)
		rule.TransactionType = &tt
	}
	if minAmount.Valid {
		rule.MinAmount = &minAmount.Decimal
	}
	if maxAmount.Valid {
		rule.MaxAmount = &maxAmount.Decimal
	}
	if lastMatched.Valid {
		rule.LastMatched = &lastMatched.Time
	}

	return &rule, nil
}

func requireAffected(result sql.Result, what string, id any) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %v: %w", what, id, common.ErrNotFound)
	}
	return nil
}

func transactionTypeToNull(tt *model.TransactionType) sql.NullString {
	if tt == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*tt), Valid: true}
}

func decimalToNull(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
