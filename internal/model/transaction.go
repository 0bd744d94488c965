package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a bank transaction.
type TransactionType string

// Transaction type constants.
const (
	TransactionCredit TransactionType = "Credit"
	TransactionDebit  TransactionType = "Debit"
)

// IsValid reports whether the transaction type is Credit or Debit.
func (t TransactionType) IsValid() bool {
	return t == TransactionCredit || t == TransactionDebit
}

// TransactionStatus tracks reconciliation progress of a bank transaction.
type TransactionStatus string

// Transaction status constants.
const (
	StatusPending      TransactionStatus = "Pending"
	StatusUnreconciled TransactionStatus = "Unreconciled"
	StatusReconciled   TransactionStatus = "Reconciled"
)

// BankTransaction is a single posted banking record. Deposit and Withdrawal
// are mutually exclusive; the non-zero one is the transaction amount.
type BankTransaction struct {
	Date            time.Time         `json:"date"`
	Deposit         decimal.Decimal   `json:"deposit"`
	Withdrawal      decimal.Decimal   `json:"withdrawal"`
	ID              string            `json:"id"`
	Hash            string            `json:"hash,omitempty"`
	Description     string            `json:"description"`
	ReferenceNumber string            `json:"reference_number,omitempty"`
	PartyName       string            `json:"party_name,omitempty"`
	BankAccount     string            `json:"bank_account"`
	Currency        string            `json:"currency,omitempty"`
	Status          TransactionStatus `json:"status"`

	// Categorization written back by rule actions.
	ExpenseAccount string `json:"expense_account,omitempty"`
	CostCenter     string `json:"cost_center,omitempty"`
	PartyType      string `json:"party_type,omitempty"`
	Party          string `json:"party,omitempty"`
}

// IsDeposit reports whether money came into the account.
func (t *BankTransaction) IsDeposit() bool {
	return !t.Deposit.IsZero()
}

// Type returns Credit for deposits and Debit otherwise.
func (t *BankTransaction) Type() TransactionType {
	if t.IsDeposit() {
		return TransactionCredit
	}
	return TransactionDebit
}

// Amount returns the deposit when set, else the withdrawal.
func (t *BankTransaction) Amount() decimal.Decimal {
	if t.IsDeposit() {
		return t.Deposit
	}
	return t.Withdrawal
}

// Snapshot returns the read-only view consumed by rule matching.
func (t *BankTransaction) Snapshot() Snapshot {
	return Snapshot{
		Description:     t.Description,
		ReferenceNumber: t.ReferenceNumber,
		PartyName:       t.PartyName,
		Amount:          t.Amount(),
		TransactionType: t.Type(),
	}
}

// GenerateHash creates a unique hash for duplicate detection on import.
func (t *BankTransaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount().StringFixed(2),
		t.Type(),
		t.Description,
		t.BankAccount)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Snapshot is the subset of a transaction a rule predicate looks at.
type Snapshot struct {
	Amount          decimal.Decimal
	Description     string
	ReferenceNumber string
	PartyName       string
	TransactionType TransactionType
}

// Categorization holds the fields a Categorize or Link to Party action writes
// back onto a transaction. Empty fields are left untouched.
type Categorization struct {
	ExpenseAccount string
	CostCenter     string
	PartyType      string
	Party          string
}

// IsEmpty reports whether the categorization would change nothing.
func (c Categorization) IsEmpty() bool {
	return c.ExpenseAccount == "" && c.CostCenter == "" && c.PartyType == "" && c.Party == ""
}

// ApplyTo copies the non-empty fields onto the transaction.
func (c Categorization) ApplyTo(t *BankTransaction) {
	if c.ExpenseAccount != "" {
		t.ExpenseAccount = c.ExpenseAccount
	}
	if c.CostCenter != "" {
		t.CostCenter = c.CostCenter
	}
	if c.PartyType != "" && c.Party != "" {
		t.PartyType = c.PartyType
		t.Party = c.Party
	}
}
