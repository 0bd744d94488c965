// Package model defines the core data structures for the bankrules application.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchField selects the transaction attribute a rule tests.
type MatchField string

// Match field constants.
const (
	MatchFieldDescription     MatchField = "Description"
	MatchFieldReferenceNumber MatchField = "Reference Number"
	MatchFieldPartyName       MatchField = "Party Name"
)

// IsValid reports whether the match field is a known value.
func (f MatchField) IsValid() bool {
	switch f {
	case MatchFieldDescription, MatchFieldReferenceNumber, MatchFieldPartyName:
		return true
	}
	return false
}

// MatchType is the comparison operator applied to the selected field.
type MatchType string

// Match type constants.
const (
	MatchContains   MatchType = "Contains"
	MatchStartsWith MatchType = "Starts With"
	MatchEndsWith   MatchType = "Ends With"
	MatchExact      MatchType = "Exact Match"
	MatchRegex      MatchType = "Regex"
)

// IsValid reports whether the match type is a known value.
func (t MatchType) IsValid() bool {
	switch t {
	case MatchContains, MatchStartsWith, MatchEndsWith, MatchExact, MatchRegex:
		return true
	}
	return false
}

// ActionType is what a matched rule does to the transaction.
type ActionType string

// Action type constants.
const (
	ActionCategorize         ActionType = "Categorize"
	ActionCreatePaymentEntry ActionType = "Create Payment Entry"
	ActionCreateJournalEntry ActionType = "Create Journal Entry"
	ActionLinkToParty        ActionType = "Link to Party"
)

// IsValid reports whether the action type is a known value.
func (a ActionType) IsValid() bool {
	switch a {
	case ActionCategorize, ActionCreatePaymentEntry, ActionCreateJournalEntry, ActionLinkToParty:
		return true
	}
	return false
}

// BankRule is a stored predicate and action pair used to auto-categorize
// bank transactions. Rules are evaluated in ascending Priority order.
type BankRule struct {
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	LastMatched        *time.Time       `json:"last_matched,omitempty"`
	TransactionType    *TransactionType `json:"transaction_type,omitempty"`
	MinAmount          *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount          *decimal.Decimal `json:"max_amount,omitempty"`
	TotalAmountMatched decimal.Decimal  `json:"total_amount_matched"`
	Name               string           `json:"name"`
	BankAccount        string           `json:"bank_account,omitempty"`
	MatchField         MatchField       `json:"match_field"`
	MatchType          MatchType        `json:"match_type"`
	MatchValue         string           `json:"match_value"`
	ActionType         ActionType       `json:"action_type"`
	Account            string           `json:"account,omitempty"`
	CostCenter         string           `json:"cost_center,omitempty"`
	PartyType          string           `json:"party_type,omitempty"`
	Party              string           `json:"party,omitempty"`
	ID                 int              `json:"id"`
	Priority           int              `json:"priority"`
	TimesMatched       int              `json:"times_matched"`
	IsActive           bool             `json:"is_active"`
}

// HasParty reports whether both party fields are configured.
func (r *BankRule) HasParty() bool {
	return r.PartyType != "" && r.Party != ""
}

// AppliesToAccount reports whether the rule is scoped to the given bank account.
// A rule without a bank account applies to every account.
func (r *BankRule) AppliesToAccount(bankAccount string) bool {
	return r.BankAccount == "" || r.BankAccount == bankAccount
}

// RecordMatch updates the usage statistics after a successful apply.
func (r *BankRule) RecordMatch(amount decimal.Decimal, at time.Time) {
	r.TimesMatched++
	r.LastMatched = &at
	r.TotalAmountMatched = r.TotalAmountMatched.Add(amount.Abs())
}

// RuleDraft is a proposed rule derived from a transaction. It is advisory
// and never persisted without operator review.
type RuleDraft struct {
	TransactionType   TransactionType `json:"transaction_type"`
	RuleName          string          `json:"rule_name"`
	MatchType         MatchType       `json:"match_type"`
	MatchField        MatchField      `json:"match_field"`
	MatchValue        string          `json:"match_value"`
	SampleDescription string          `json:"sample_description"`
	SampleAmount      decimal.Decimal `json:"sample_amount"`
}

// ToRule converts the draft into an active Categorize rule for the operator to finish.
func (d RuleDraft) ToRule() BankRule {
	txnType := d.TransactionType
	return BankRule{
		Name:            d.RuleName,
		MatchField:      d.MatchField,
		MatchType:       d.MatchType,
		MatchValue:      d.MatchValue,
		TransactionType: &txnType,
		ActionType:      ActionCategorize,
		IsActive:        true,
	}
}
