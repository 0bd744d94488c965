package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/bankrules/internal/model"
)

// ErrInvalidRule is returned when a rule fails save-time validation.
var ErrInvalidRule = errors.New("invalid bank rule")

// ValidateRule checks a rule before it is saved. Rules that pass never fail
// at evaluation time except for regex dialect differences, which match nothing.
func ValidateRule(rule *model.BankRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule cannot be nil", ErrInvalidRule)
	}
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if !rule.MatchField.IsValid() {
		return fmt.Errorf("%w: unknown match field %q", ErrInvalidRule, rule.MatchField)
	}
	if !rule.MatchType.IsValid() {
		return fmt.Errorf("%w: unknown match type %q", ErrInvalidRule, rule.MatchType)
	}
	if !rule.ActionType.IsValid() {
		return fmt.Errorf("%w: unknown action type %q", ErrInvalidRule, rule.ActionType)
	}
	if rule.TransactionType != nil && !rule.TransactionType.IsValid() {
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidRule, *rule.TransactionType)
	}

	if rule.MatchType == model.MatchRegex {
		if _, err := compileSearch(rule.MatchValue); err != nil {
			return fmt.Errorf("%w: invalid regex pattern: %v", ErrInvalidRule, err)
		}
	}

	if rule.MinAmount != nil && rule.MinAmount.IsNegative() {
		return fmt.Errorf("%w: minimum amount cannot be negative", ErrInvalidRule)
	}
	if rule.MaxAmount != nil && rule.MaxAmount.IsNegative() {
		return fmt.Errorf("%w: maximum amount cannot be negative", ErrInvalidRule)
	}
	if rule.MinAmount != nil && rule.MaxAmount != nil && rule.MinAmount.GreaterThan(*rule.MaxAmount) {
		return fmt.Errorf("%w: minimum amount cannot be greater than maximum amount", ErrInvalidRule)
	}

	return nil
}
