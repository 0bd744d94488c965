package testutil

import (
	"time"

	"github.com/Veraticus/bankrules/internal/model"
	"github.com/shopspring/decimal"
)

// DefaultBankAccount is the bank account builders use unless told otherwise.
const DefaultBankAccount = "Checking"

// DefaultDate is the posting date builders use unless told otherwise.
var DefaultDate = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

// TransactionBuilder builds pending bank transactions.
type TransactionBuilder struct {
	txn model.BankTransaction
}

// Withdrawal starts a money-out transaction.
func Withdrawal(id, description, amount string) *TransactionBuilder {
	b := newTransaction(id, description)
	b.txn.Withdrawal = decimal.RequireFromString(amount)
	return b
}

// Deposit starts a money-in transaction.
func Deposit(id, description, amount string) *TransactionBuilder {
	b := newTransaction(id, description)
	b.txn.Deposit = decimal.RequireFromString(amount)
	return b
}

func newTransaction(id, description string) *TransactionBuilder {
	return &TransactionBuilder{txn: model.BankTransaction{
		ID:          id,
		Date:        DefaultDate,
		Description: description,
		BankAccount: DefaultBankAccount,
		Currency:    "USD",
		Status:      model.StatusPending,
	}}
}

// On sets the posting date.
func (b *TransactionBuilder) On(date time.Time) *TransactionBuilder {
	b.txn.Date = date
	return b
}

// InAccount sets the bank account.
func (b *TransactionBuilder) InAccount(account string) *TransactionBuilder {
	b.txn.BankAccount = account
	return b
}

// WithReference sets the reference number.
func (b *TransactionBuilder) WithReference(ref string) *TransactionBuilder {
	b.txn.ReferenceNumber = ref
	return b
}

// WithParty sets the party name.
func (b *TransactionBuilder) WithParty(name string) *TransactionBuilder {
	b.txn.PartyName = name
	return b
}

// Build returns the transaction with its hash filled in.
func (b *TransactionBuilder) Build() model.BankTransaction {
	txn := b.txn
	txn.Hash = txn.GenerateHash()
	return txn
}

// RuleBuilder builds active bank rules.
type RuleBuilder struct {
	rule model.BankRule
}

// Rule starts an active Description Contains rule with priority 10.
func Rule(name, matchValue string) *RuleBuilder {
	return &RuleBuilder{rule: model.BankRule{
		Name:       name,
		Priority:   10,
		IsActive:   true,
		MatchField: model.MatchFieldDescription,
		MatchType:  model.MatchContains,
		MatchValue: matchValue,
		ActionType: model.ActionCategorize,
	}}
}

// Priority sets the priority; lower runs first.
func (b *RuleBuilder) Priority(p int) *RuleBuilder {
	b.rule.Priority = p
	return b
}

// Match sets the field and match type.
func (b *RuleBuilder) Match(field model.MatchField, matchType model.MatchType) *RuleBuilder {
	b.rule.MatchField = field
	b.rule.MatchType = matchType
	return b
}

// Categorize sets a Categorize action posting to account.
func (b *RuleBuilder) Categorize(account string) *RuleBuilder {
	b.rule.ActionType = model.ActionCategorize
	b.rule.Account = account
	return b
}

// Pay sets a Create Payment Entry action against party.
func (b *RuleBuilder) Pay(account, partyType, party string) *RuleBuilder {
	b.rule.ActionType = model.ActionCreatePaymentEntry
	b.rule.Account = account
	b.rule.PartyType = partyType
	b.rule.Party = party
	return b
}

// Journal sets a Create Journal Entry action posting to account.
func (b *RuleBuilder) Journal(account string) *RuleBuilder {
	b.rule.ActionType = model.ActionCreateJournalEntry
	b.rule.Account = account
	return b
}

// ForBankAccount scopes the rule to one bank account.
func (b *RuleBuilder) ForBankAccount(account string) *RuleBuilder {
	b.rule.BankAccount = account
	return b
}

// Amounts bounds the transaction amount; empty strings leave a side open.
func (b *RuleBuilder) Amounts(minAmount, maxAmount string) *RuleBuilder {
	if minAmount != "" {
		v := decimal.RequireFromString(minAmount)
		b.rule.MinAmount = &v
	}
	if maxAmount != "" {
		v := decimal.RequireFromString(maxAmount)
		b.rule.MaxAmount = &v
	}
	return b
}

// Inactive disables the rule.
func (b *RuleBuilder) Inactive() *RuleBuilder {
	b.rule.IsActive = false
	return b
}

// Build returns the rule.
func (b *RuleBuilder) Build() model.BankRule {
	return b.rule
}
