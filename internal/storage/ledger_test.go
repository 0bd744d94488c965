package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/Veraticus/bankrules/internal/common"
	"github.com/Veraticus/bankrules/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage_PaymentEntries(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	seedTransactions(t, store, testDeposit("T1", 4, "Invoice 1001", "100"))

	found, err := store.FindArtifact(ctx, "T1", model.ArtifactPaymentEntry)
	require.NoError(t, err)
	assert.Empty(t, found)

	entry := &model.PaymentEntry{
		PaymentType:     model.PaymentReceive,
		PaidAmount:      decimal.NewFromInt(100),
		ReceivedAmount:  decimal.NewFromInt(100),
		PaidFrom:        "Receivables",
		PaidTo:          "Checking",
		PartyType:       "Customer",
		Party:           "Globex",
		ReferenceNo:     "INV-1001",
		PostingDate:     testDate(4),
		ReferenceDate:   testDate(4),
		BankTransaction: "T1",
		RuleID:          3,
	}
	id, err := store.CreatePaymentEntry(ctx, entry)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "PE-"))
	assert.Equal(t, id, entry.ID)

	second, err := store.CreatePaymentEntry(ctx, entry)
	require.NoError(t, err)
	assert.NotEqual(t, id, second)

	found, err = store.FindArtifact(ctx, "T1", model.ArtifactPaymentEntry)
	require.NoError(t, err)
	assert.Equal(t, id, found, "the first artifact is the one reused")

	got, err := store.GetPaymentEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentReceive, got.PaymentType)
	assert.Equal(t, "Receivables", got.PaidFrom)
	assert.Equal(t, "Checking", got.PaidTo)
	assert.True(t, decimal.NewFromInt(100).Equal(got.PaidAmount))
	assert.Equal(t, "Globex", got.Party)
	assert.Equal(t, 3, got.RuleID)
	assert.Equal(t, testDate(4), got.PostingDate)

	_, err = store.GetPaymentEntry(ctx, "PE-missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_CreatePaymentEntry_Invalid(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	seedTransactions(t, store, testWithdrawal("T1", 4, "Zero", "0"))

	tests := []struct {
		entry *model.PaymentEntry
		name  string
	}{
		{name: "zero amount", entry: &model.PaymentEntry{
			PaymentType: model.PaymentPay, PaidFrom: "Checking", PaidTo: "Expenses", BankTransaction: "T1",
		}},
		{name: "missing account", entry: &model.PaymentEntry{
			PaymentType: model.PaymentPay, PaidFrom: "Checking", PaidAmount: decimal.NewFromInt(1), BankTransaction: "T1",
		}},
		{name: "unknown type", entry: &model.PaymentEntry{
			PaymentType: "Gift", PaidFrom: "Checking", PaidTo: "Expenses", PaidAmount: decimal.NewFromInt(1), BankTransaction: "T1",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreatePaymentEntry(ctx, tt.entry)
			assert.ErrorIs(t, err, ErrInvalidArtifact)
		})
	}

	// Foreign key to the bank transaction is enforced.
	_, err := store.CreatePaymentEntry(ctx, &model.PaymentEntry{
		PaymentType: model.PaymentPay, PaidFrom: "Checking", PaidTo: "Expenses",
		PaidAmount: decimal.NewFromInt(1), BankTransaction: "no-such-transaction",
	})
	assert.Error(t, err)
}

func TestSQLiteStorage_JournalEntries(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	seedTransactions(t, store, testWithdrawal("T1", 6, "Bank charge", "15.25"))

	amount := decimal.RequireFromString("15.25")
	entry := &model.JournalEntry{
		PostingDate:     testDate(6),
		ChequeDate:      testDate(6),
		ChequeNo:        "REF-9",
		BankTransaction: "T1",
		RuleID:          8,
		Lines: []model.JournalLine{
			{Account: "Bank Charges", Debit: amount, CostCenter: "HQ"},
			{Account: "Checking", Credit: amount},
		},
	}

	id, err := store.CreateJournalEntry(ctx, entry)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "JE-"))

	found, err := store.FindArtifact(ctx, "T1", model.ArtifactJournalEntry)
	require.NoError(t, err)
	assert.Equal(t, id, found)

	payment, err := store.FindArtifact(ctx, "T1", model.ArtifactPaymentEntry)
	require.NoError(t, err)
	assert.Empty(t, payment)

	got, err := store.GetJournalEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "REF-9", got.ChequeNo)
	assert.Equal(t, 8, got.RuleID)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "Bank Charges", got.Lines[0].Account)
	assert.Equal(t, "HQ", got.Lines[0].CostCenter)
	assert.True(t, amount.Equal(got.Lines[0].Debit))
	assert.True(t, amount.Equal(got.Lines[1].Credit))
	assert.True(t, got.IsBalanced())

	unbalanced := &model.JournalEntry{
		BankTransaction: "T1",
		Lines: []model.JournalLine{
			{Account: "Bank Charges", Debit: amount},
			{Account: "Checking", Credit: decimal.NewFromInt(1)},
		},
	}
	_, err = store.CreateJournalEntry(ctx, unbalanced)
	assert.ErrorIs(t, err, ErrInvalidArtifact)

	_, err = store.FindArtifact(ctx, "T1", "Invoice")
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}
