package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType is the direction of a payment entry.
type PaymentType string

// Payment type constants.
const (
	PaymentReceive PaymentType = "Receive"
	PaymentPay     PaymentType = "Pay"
)

// ArtifactKind distinguishes the ledger records a rule can create.
type ArtifactKind string

// Artifact kind constants.
const (
	ArtifactPaymentEntry ArtifactKind = "Payment Entry"
	ArtifactJournalEntry ArtifactKind = "Journal Entry"
)

// PaymentEntry is a double-entry payment record created from a bank transaction.
type PaymentEntry struct {
	PostingDate     time.Time       `json:"posting_date"`
	ReferenceDate   time.Time       `json:"reference_date"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	ReceivedAmount  decimal.Decimal `json:"received_amount"`
	ID              string          `json:"id"`
	PaymentType     PaymentType     `json:"payment_type"`
	PaidFrom        string          `json:"paid_from"`
	PaidTo          string          `json:"paid_to"`
	PartyType       string          `json:"party_type,omitempty"`
	Party           string          `json:"party,omitempty"`
	ReferenceNo     string          `json:"reference_no,omitempty"`
	BankTransaction string          `json:"bank_transaction"`
	RuleID          int             `json:"rule_id"`
}

// JournalLine is one leg of a journal entry.
type JournalLine struct {
	Debit      decimal.Decimal `json:"debit"`
	Credit     decimal.Decimal `json:"credit"`
	Account    string          `json:"account"`
	CostCenter string          `json:"cost_center,omitempty"`
}

// JournalEntry is a balanced set of journal lines created from a bank transaction.
type JournalEntry struct {
	PostingDate     time.Time     `json:"posting_date"`
	ChequeDate      time.Time     `json:"cheque_date"`
	ID              string        `json:"id"`
	ChequeNo        string        `json:"cheque_no,omitempty"`
	BankTransaction string        `json:"bank_transaction"`
	Lines           []JournalLine `json:"lines"`
	RuleID          int           `json:"rule_id"`
}

// IsBalanced reports whether total debits equal total credits.
func (j *JournalEntry) IsBalanced() bool {
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range j.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit.Equal(credit)
}
