package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/bankrules/internal/model"
)

// ErrInvalidFilter is returned when a bulk filter has an inverted date range.
var ErrInvalidFilter = errors.New("invalid bulk filter")

// Config holds configuration options for the rule engine.
type Config struct {
	// Now supplies the timestamp recorded as a rule's last match.
	Now func() time.Time
	// SkipExistingArtifacts reuses a payment or journal entry already
	// created for the transaction instead of creating another one.
	SkipExistingArtifacts bool
}

// DefaultConfig returns the default configuration: every successful
// payment or journal action creates a new artifact.
func DefaultConfig() Config {
	return Config{
		Now:                   time.Now,
		SkipExistingArtifacts: false,
	}
}

// Engine evaluates bank rules against transactions and applies the first
// matching rule's action.
type Engine struct {
	store   Store
	matcher *Matcher
	logger  *slog.Logger
	config  Config
}

// New creates a rule engine with the default configuration.
func New(store Store, logger *slog.Logger) *Engine {
	return NewWithConfig(store, logger, DefaultConfig())
}

// NewWithConfig creates a rule engine with custom configuration.
func NewWithConfig(store Store, logger *slog.Logger, config Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Engine{
		store:   store,
		matcher: NewMatcher(),
		logger:  logger.With("component", "rules"),
		config:  config,
	}
}

// ApplyRulesToTransaction runs the active rules in priority order against one
// transaction and stops after the first rule whose action takes effect.
// A caught action failure moves on to the next matching rule; storage
// failures abort evaluation and are returned.
func (e *Engine) ApplyRulesToTransaction(ctx context.Context, transactionID string) (model.EvaluationResult, error) {
	result := model.EvaluationResult{TransactionID: transactionID}

	txn, err := e.store.GetBankTransaction(ctx, transactionID)
	if err != nil {
		return result, fmt.Errorf("failed to load transaction %s: %w", transactionID, err)
	}

	bankRules, err := e.store.GetActiveBankRules(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load bank rules: %w", err)
	}
	result.RulesChecked = len(bankRules)

	snapshot := txn.Snapshot()

	for i := range bankRules {
		rule := &bankRules[i]
		if !rule.IsActive || !rule.AppliesToAccount(txn.BankAccount) {
			continue
		}
		if !e.matcher.Match(*rule, snapshot) {
			continue
		}

		applied, applyErr := e.apply(ctx, rule, txn)
		if applyErr != nil {
			return result, fmt.Errorf("rule %d on transaction %s: %w", rule.ID, transactionID, applyErr)
		}
		result.Results = append(result.Results, applied)

		if applied.Applied {
			break
		}
	}

	e.logger.Debug("evaluated bank rules",
		"transaction_id", transactionID,
		"rules_checked", result.RulesChecked,
		"results", len(result.Results),
		"applied", result.Applied())

	return result, nil
}

// Apply runs a single rule's action against a transaction, regardless of
// whether the rule matches it.
func (e *Engine) Apply(ctx context.Context, rule *model.BankRule, transactionID string) (model.ApplyResult, error) {
	if rule == nil {
		return model.ApplyResult{}, fmt.Errorf("rule cannot be nil")
	}

	txn, err := e.store.GetBankTransaction(ctx, transactionID)
	if err != nil {
		return model.ApplyResult{RuleID: rule.ID, RuleName: rule.Name, ActionType: rule.ActionType},
			fmt.Errorf("failed to load transaction %s: %w", transactionID, err)
	}

	return e.apply(ctx, rule, txn)
}

// BulkApply evaluates rules for every pending or unreconciled transaction
// selected by the filter. See BulkApplyWithProgress.
func (e *Engine) BulkApply(ctx context.Context, filter model.BulkFilter) (model.BulkSummary, error) {
	return e.BulkApplyWithProgress(ctx, filter, nil)
}

// ProgressFunc is called after each transaction of a bulk run.
type ProgressFunc func(txn model.BankTransaction, result model.EvaluationResult, err error)

// BulkApplyWithProgress processes the selected transactions one at a time.
// A failing transaction is counted and logged and never stops the batch.
// Only a failed selection or a canceled context returns an error, together
// with the counts gathered so far.
func (e *Engine) BulkApplyWithProgress(ctx context.Context, filter model.BulkFilter, progress ProgressFunc) (model.BulkSummary, error) {
	var summary model.BulkSummary

	if filter.FromDate != nil && filter.ToDate != nil && filter.FromDate.After(*filter.ToDate) {
		return summary, fmt.Errorf("%w: from date %s is after to date %s",
			ErrInvalidFilter, filter.FromDate.Format("2006-01-02"), filter.ToDate.Format("2006-01-02"))
	}

	txns, err := e.store.GetPendingBankTransactions(ctx, filter)
	if err != nil {
		return summary, fmt.Errorf("failed to select transactions: %w", err)
	}
	summary.TotalTransactions = len(txns)

	e.logger.Info("starting bulk rule application",
		"transactions", len(txns),
		"bank_account", filter.BankAccount)

	for _, txn := range txns {
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.logger.Warn("bulk rule application interrupted",
				"processed", summary.RulesApplied+summary.Errors,
				"total", summary.TotalTransactions)
			return summary, ctxErr
		}

		result, applyErr := e.ApplyRulesToTransaction(ctx, txn.ID)
		switch {
		case applyErr != nil:
			summary.Errors++
			e.logger.Error("failed to apply rules to transaction",
				"transaction_id", txn.ID,
				"error", applyErr)
		case result.Applied():
			summary.RulesApplied++
		}

		if progress != nil {
			progress(txn, result, applyErr)
		}
	}

	e.logger.Info("bulk rule application complete",
		"total", summary.TotalTransactions,
		"applied", summary.RulesApplied,
		"errors", summary.Errors)

	return summary, nil
}

// SuggestRule proposes a draft rule from a stored transaction.
func (e *Engine) SuggestRule(ctx context.Context, transactionID string) (model.RuleDraft, error) {
	txn, err := e.store.GetBankTransaction(ctx, transactionID)
	if err != nil {
		return model.RuleDraft{}, fmt.Errorf("failed to load transaction %s: %w", transactionID, err)
	}
	return SuggestFromTransaction(*txn), nil
}

// Test reports which active rules match a transaction without applying any
// of them. Rules are returned in evaluation order.
func (e *Engine) Test(ctx context.Context, txn model.BankTransaction) ([]model.BankRule, error) {
	bankRules, err := e.store.GetActiveBankRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load bank rules: %w", err)
	}

	snapshot := txn.Snapshot()
	var matched []model.BankRule
	for _, rule := range bankRules {
		if rule.AppliesToAccount(txn.BankAccount) && e.matcher.Match(rule, snapshot) {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}
