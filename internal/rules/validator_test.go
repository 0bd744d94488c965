package rules

import (
	"testing"

	"github.com/Veraticus/bankrules/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateRule(t *testing.T) {
	valid := func() model.BankRule {
		return model.BankRule{
			Name:       "Coffee",
			MatchField: model.MatchFieldDescription,
			MatchType:  model.MatchContains,
			MatchValue: "coffee",
			ActionType: model.ActionCategorize,
			Account:    "Meals",
		}
	}
	dec := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	tests := []struct {
		name    string
		mutate  func(r *model.BankRule)
		wantErr string
	}{
		{name: "valid rule", mutate: func(_ *model.BankRule) {}},
		{name: "missing name", mutate: func(r *model.BankRule) { r.Name = "  " }, wantErr: "name is required"},
		{name: "bad field", mutate: func(r *model.BankRule) { r.MatchField = "Memo" }, wantErr: "unknown match field"},
		{name: "bad match type", mutate: func(r *model.BankRule) { r.MatchType = "Fuzzy" }, wantErr: "unknown match type"},
		{name: "bad action", mutate: func(r *model.BankRule) { r.ActionType = "Delete" }, wantErr: "unknown action type"},
		{
			name: "bad transaction type",
			mutate: func(r *model.BankRule) {
				tt := model.TransactionType("Sideways")
				r.TransactionType = &tt
			},
			wantErr: "unknown transaction type",
		},
		{
			name: "invalid regex",
			mutate: func(r *model.BankRule) {
				r.MatchType = model.MatchRegex
				r.MatchValue = "[a-"
			},
			wantErr: "invalid regex pattern",
		},
		{
			name: "valid regex",
			mutate: func(r *model.BankRule) {
				r.MatchType = model.MatchRegex
				r.MatchValue = `^pos\s+\d+`
			},
		},
		{name: "negative min", mutate: func(r *model.BankRule) { r.MinAmount = dec("-1") }, wantErr: "minimum amount cannot be negative"},
		{name: "negative max", mutate: func(r *model.BankRule) { r.MaxAmount = dec("-1") }, wantErr: "maximum amount cannot be negative"},
		{
			name: "inverted range",
			mutate: func(r *model.BankRule) {
				r.MinAmount = dec("100")
				r.MaxAmount = dec("10")
			},
			wantErr: "minimum amount cannot be greater",
		},
		{
			name: "equal bounds allowed",
			mutate: func(r *model.BankRule) {
				r.MinAmount = dec("10")
				r.MaxAmount = dec("10")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := valid()
			tt.mutate(&rule)
			err := ValidateRule(&rule)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidRule)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.ErrorIs(t, ValidateRule(nil), ErrInvalidRule)
}
