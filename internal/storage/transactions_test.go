package storage

import (
	"context"
	"testing"

	"github.com/Veraticus/bankrules/internal/common"
	"github.com/Veraticus/bankrules/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage_SaveBankTransactions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txns := []model.BankTransaction{
		testWithdrawal("T1", 1, "Coffee", "4.50"),
		testDeposit("", 2, "Payroll", "2500"),
	}
	inserted, err := store.SaveBankTransactions(ctx, txns)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.NotEmpty(t, txns[1].ID, "missing IDs are generated")

	// Same content hashes identically and is skipped.
	dup := testWithdrawal("T1-again", 1, "Coffee", "4.50")
	inserted, err = store.SaveBankTransactions(ctx, []model.BankTransaction{dup})
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	got, err := store.GetBankTransaction(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "Coffee", got.Description)
	assert.True(t, decimal.RequireFromString("4.5").Equal(got.Withdrawal))
	assert.True(t, got.Deposit.IsZero())
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, testDate(1), got.Date)
	assert.Equal(t, model.TransactionDebit, got.Type())

	payroll, err := store.GetBankTransaction(ctx, txns[1].ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionCredit, payroll.Type())
}

func TestSQLiteStorage_SaveBankTransactions_Invalid(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	both := testWithdrawal("X", 1, "Both", "1")
	both.Deposit = decimal.NewFromInt(1)

	noAccount := testWithdrawal("Y", 1, "No account", "1")
	noAccount.BankAccount = ""

	for _, txn := range []model.BankTransaction{both, noAccount} {
		_, err := store.SaveBankTransactions(ctx, []model.BankTransaction{txn})
		assert.ErrorIs(t, err, ErrInvalidTransaction)
	}
}

func TestSQLiteStorage_GetBankTransaction_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.GetBankTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_UpdateCategorization(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	seedTransactions(t, store, testWithdrawal("T1", 1, "Electric bill", "80"))

	require.NoError(t, store.UpdateCategorization(ctx, "T1", model.Categorization{
		ExpenseAccount: "Utilities",
		CostCenter:     "HQ",
	}))
	// A half-configured party and empty fields leave existing values alone.
	require.NoError(t, store.UpdateCategorization(ctx, "T1", model.Categorization{
		Party: "City Power",
	}))
	require.NoError(t, store.UpdateCategorization(ctx, "T1", model.Categorization{
		PartyType: "Supplier",
		Party:     "City Power",
	}))

	got, err := store.GetBankTransaction(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "Utilities", got.ExpenseAccount)
	assert.Equal(t, "HQ", got.CostCenter)
	assert.Equal(t, "Supplier", got.PartyType)
	assert.Equal(t, "City Power", got.Party)

	err = store.UpdateCategorization(ctx, "missing", model.Categorization{ExpenseAccount: "X"})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_GetPendingBankTransactions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	savings := testWithdrawal("S1", 3, "Savings fee", "2")
	savings.BankAccount = "Savings"
	unreconciled := testWithdrawal("U1", 7, "Unreconciled", "3")
	unreconciled.Status = model.StatusUnreconciled
	reconciled := testWithdrawal("R1", 5, "Reconciled", "4")
	reconciled.Status = model.StatusReconciled

	seedTransactions(t, store,
		testWithdrawal("B", 10, "ten-b", "1"),
		testWithdrawal("A", 10, "ten-a", "1"),
		testWithdrawal("C", 1, "first", "1"),
		savings, unreconciled, reconciled,
	)

	ids := func(txns []model.BankTransaction) []string {
		out := make([]string, 0, len(txns))
		for _, txn := range txns {
			out = append(out, txn.ID)
		}
		return out
	}
	from, to := testDate(3), testDate(7)

	tests := []struct {
		name   string
		filter model.BulkFilter
		want   []string
	}{
		{name: "all pending and unreconciled by date then id", want: []string{"C", "S1", "U1", "A", "B"}},
		{name: "bank account", filter: model.BulkFilter{BankAccount: "Savings"}, want: []string{"S1"}},
		{name: "from date inclusive", filter: model.BulkFilter{FromDate: &from}, want: []string{"S1", "U1", "A", "B"}},
		{name: "to date inclusive", filter: model.BulkFilter{ToDate: &to}, want: []string{"C", "S1", "U1"}},
		{name: "from and to are independent", filter: model.BulkFilter{FromDate: &from, ToDate: &to}, want: []string{"S1", "U1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetPendingBankTransactions(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	_, err := store.GetPendingBankTransactions(ctx, model.BulkFilter{FromDate: &to, ToDate: &from})
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestSQLiteStorage_UpdateTransactionStatus(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	seedTransactions(t, store, testWithdrawal("T1", 1, "x", "1"))
	require.NoError(t, store.UpdateTransactionStatus(ctx, "T1", model.StatusReconciled))

	pending, err := store.GetPendingBankTransactions(ctx, model.BulkFilter{})
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, store.UpdateTransactionStatus(ctx, "T1", "Lost"), ErrInvalidTransaction)
	assert.ErrorIs(t, store.UpdateTransactionStatus(ctx, "nope", model.StatusPending), common.ErrNotFound)
}

func TestSQLiteStorage_ListBankTransactions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	seedTransactions(t, store,
		testWithdrawal("T1", 1, "old", "1"),
		testWithdrawal("T2", 9, "new", "1"),
	)

	got, err := store.ListBankTransactions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "T2", got[0].ID)
}
