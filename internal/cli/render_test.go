package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/bankrules/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRenderRules(t *testing.T) {
	assert.Contains(t, RenderRules(nil), "No bank rules defined")

	out := RenderRules([]model.BankRule{
		{ID: 1, Priority: 10, Name: "Coffee", MatchField: model.MatchFieldDescription, MatchType: model.MatchContains,
			MatchValue: "starbucks", ActionType: model.ActionCategorize, Account: "Meals", TimesMatched: 4, IsActive: true},
		{ID: 2, Priority: 20, Name: "Old", ActionType: model.ActionLinkToParty},
	})

	for _, want := range []string{"Priority", "Coffee", `Description Contains "starbucks"`, "Meals", "active", "inactive", "Link to Party"} {
		assert.Contains(t, out, want)
	}
}

func TestRenderRule(t *testing.T) {
	matched := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	lo := decimal.NewFromInt(5)
	out := RenderRule(model.BankRule{
		ID: 7, Name: "Stripe payouts", Priority: 1, IsActive: true,
		MatchField: model.MatchFieldPartyName, MatchType: model.MatchExact, MatchValue: "stripe",
		MinAmount:  &lo,
		ActionType: model.ActionCreatePaymentEntry, Account: "Receivables",
		PartyType: "Customer", Party: "Stripe",
		TimesMatched: 3, LastMatched: &matched, TotalAmountMatched: decimal.RequireFromString("120.5"),
	})

	for _, want := range []string{"Rule 7: Stripe payouts", "Receivables", "Customer / Stripe", "5.00", "2025-04-02 09:30", "120.50"} {
		assert.Contains(t, out, want)
	}
}

func TestRenderEvaluation(t *testing.T) {
	out := RenderEvaluation(model.EvaluationResult{TransactionID: "T1", RulesChecked: 3})
	assert.Contains(t, out, "3 rules checked")
	assert.Contains(t, out, "No rule matched")

	out = RenderEvaluation(model.EvaluationResult{
		TransactionID: "T2",
		RulesChecked:  2,
		Results: []model.ApplyResult{
			{RuleID: 1, RuleName: "Rent", ActionType: model.ActionCreateJournalEntry, Reason: "MissingAccount: rule has no account"},
			{RuleID: 2, RuleName: "Fallback", ActionType: model.ActionCreatePaymentEntry, Applied: true,
				Reason: "created payment entry", ArtifactID: "PE-1"},
		},
	})
	assert.Contains(t, out, "MissingAccount")
	assert.Contains(t, out, "created payment entry PE-1")
}

func TestRenderBulkSummary(t *testing.T) {
	out := RenderBulkSummary(model.BulkSummary{TotalTransactions: 5, RulesApplied: 3})
	assert.Contains(t, out, "Transactions processed: 5")
	assert.NotContains(t, out, "failed")

	out = RenderBulkSummary(model.BulkSummary{TotalTransactions: 5, RulesApplied: 3, Errors: 1})
	assert.Contains(t, out, "Some transactions failed")
}

func TestRenderDraft(t *testing.T) {
	out := RenderDraft(model.RuleDraft{
		RuleName: "Auto: Starbucks", MatchField: model.MatchFieldDescription, MatchType: model.MatchContains,
		MatchValue: "starbucks", TransactionType: model.TransactionDebit,
		SampleDescription: "STARBUCKS #1", SampleAmount: decimal.RequireFromString("4.5"),
	})
	assert.Contains(t, out, "Auto: Starbucks")
	assert.Contains(t, out, "4.50")
}

func TestBulkProgress(t *testing.T) {
	var out bytes.Buffer
	progress := NewBulkProgress(&out, 3)

	applied := model.EvaluationResult{Results: []model.ApplyResult{{Applied: true}}}
	progress.Report(model.BankTransaction{ID: "T1"}, applied, nil)
	progress.Report(model.BankTransaction{ID: "T2"}, model.EvaluationResult{}, nil)
	progress.Report(model.BankTransaction{ID: "T3"}, model.EvaluationResult{}, errors.New("db locked"))
	progress.Finish()

	assert.Equal(t, model.BulkSummary{TotalTransactions: 3, RulesApplied: 1, Errors: 1}, progress.Summary())
	assert.Contains(t, out.String(), "Applying bank rules")
}

func TestStyleHelpers(t *testing.T) {
	assert.Contains(t, ActionLabel(model.ActionCreateJournalEntry), "Create Journal Entry")
	assert.Contains(t, ActionLabel(model.ActionType("Refund")), "Refund")

	out := FormatAmount(model.BankTransaction{Withdrawal: decimal.RequireFromString("4.5")})
	assert.Contains(t, out, "-4.50")
	out = FormatAmount(model.BankTransaction{Deposit: decimal.RequireFromString("2500")})
	assert.Contains(t, out, "2500.00")
	assert.NotContains(t, out, "-")

	assert.Contains(t, FormatTitle("Bank Rules", RuleIcon), RuleIcon+" Bank Rules")
	assert.Contains(t, FormatTitle("Bank Transactions"), BankIcon+" Bank Transactions")
}
