package rules

import (
	"context"
	"fmt"

	"github.com/Veraticus/bankrules/internal/model"
)

// apply carries out the rule's action on an already loaded transaction.
// Action failures are caught and reported on the result. Only storage errors
// are returned.
func (e *Engine) apply(ctx context.Context, rule *model.BankRule, txn *model.BankTransaction) (model.ApplyResult, error) {
	result := model.ApplyResult{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		ActionType: rule.ActionType,
	}

	var (
		artifactID string
		actionErr  *model.ActionError
		err        error
	)

	switch rule.ActionType {
	case model.ActionCategorize:
		err = e.categorize(ctx, rule, txn)
		result.Reason = "categorized"
	case model.ActionLinkToParty:
		actionErr, err = e.linkParty(ctx, rule, txn)
		result.Reason = "linked to party"
	case model.ActionCreatePaymentEntry:
		artifactID, result.Reason, actionErr = e.createPaymentEntry(ctx, rule, txn)
	case model.ActionCreateJournalEntry:
		artifactID, result.Reason, actionErr = e.createJournalEntry(ctx, rule, txn)
	default:
		result.Reason = fmt.Sprintf("unknown action type %q", rule.ActionType)
		return result, nil
	}

	if err != nil {
		return result, err
	}

	if actionErr != nil {
		result.Err = actionErr
		result.Reason = actionErr.Error()
		e.logger.Warn("bank rule action failed",
			"rule_id", rule.ID,
			"rule", rule.Name,
			"transaction_id", txn.ID,
			"kind", actionErr.Kind,
			"error", actionErr)
		return result, nil
	}

	result.ArtifactID = artifactID
	result.Applied = true

	stored, err := e.store.RecordBankRuleMatch(ctx, rule.ID, txn.Amount(), e.config.Now())
	if err != nil {
		return result, fmt.Errorf("failed to record rule statistics: %w", err)
	}
	rule.TimesMatched = stored.TimesMatched
	rule.LastMatched = stored.LastMatched
	rule.TotalAmountMatched = stored.TotalAmountMatched

	e.logger.Info("bank rule applied",
		"rule_id", rule.ID,
		"rule", rule.Name,
		"transaction_id", txn.ID,
		"action", rule.ActionType,
		"artifact_id", artifactID)

	return result, nil
}

func (e *Engine) categorize(ctx context.Context, rule *model.BankRule, txn *model.BankTransaction) error {
	c := model.Categorization{
		ExpenseAccount: rule.Account,
		CostCenter:     rule.CostCenter,
	}
	if rule.HasParty() {
		c.PartyType = rule.PartyType
		c.Party = rule.Party
	}

	if err := e.store.UpdateCategorization(ctx, txn.ID, c); err != nil {
		return fmt.Errorf("failed to categorize transaction: %w", err)
	}
	c.ApplyTo(txn)
	return nil
}

func (e *Engine) linkParty(ctx context.Context, rule *model.BankRule, txn *model.BankTransaction) (*model.ActionError, error) {
	if !rule.HasParty() {
		return model.NewActionError(model.MissingParty, "rule has no party configured", nil), nil
	}

	c := model.Categorization{PartyType: rule.PartyType, Party: rule.Party}
	if err := e.store.UpdateCategorization(ctx, txn.ID, c); err != nil {
		return nil, fmt.Errorf("failed to link party: %w", err)
	}
	c.ApplyTo(txn)
	return nil, nil
}

// requireAccounts checks both sides of a double-entry artifact are known.
func requireAccounts(rule *model.BankRule, txn *model.BankTransaction) *model.ActionError {
	if rule.Account == "" {
		return model.NewActionError(model.MissingAccount, "rule has no account configured", nil)
	}
	if txn.BankAccount == "" {
		return model.NewActionError(model.MissingAccount, "transaction has no bank account", nil)
	}
	return nil
}

// existingArtifact looks up an artifact already created for the transaction
// when the engine is configured to reuse them.
func (e *Engine) existingArtifact(ctx context.Context, txn *model.BankTransaction, kind model.ArtifactKind) (string, *model.ActionError) {
	if !e.config.SkipExistingArtifacts {
		return "", nil
	}
	id, err := e.store.FindArtifact(ctx, txn.ID, kind)
	if err != nil {
		return "", model.NewActionError(model.DownstreamCreateFailed, "failed to look up existing "+string(kind), err)
	}
	return id, nil
}

func (e *Engine) createPaymentEntry(ctx context.Context, rule *model.BankRule, txn *model.BankTransaction) (string, string, *model.ActionError) {
	if actionErr := requireAccounts(rule, txn); actionErr != nil {
		return "", "", actionErr
	}

	existing, actionErr := e.existingArtifact(ctx, txn, model.ArtifactPaymentEntry)
	if actionErr != nil {
		return "", "", actionErr
	}
	if existing != "" {
		return existing, "reused existing payment entry", nil
	}

	amount := txn.Amount()
	entry := &model.PaymentEntry{
		PostingDate:     txn.Date,
		ReferenceDate:   txn.Date,
		PaidAmount:      amount,
		ReceivedAmount:  amount,
		ReferenceNo:     txn.ReferenceNumber,
		BankTransaction: txn.ID,
		RuleID:          rule.ID,
	}
	if txn.IsDeposit() {
		entry.PaymentType = model.PaymentReceive
		entry.PaidFrom = rule.Account
		entry.PaidTo = txn.BankAccount
	} else {
		entry.PaymentType = model.PaymentPay
		entry.PaidFrom = txn.BankAccount
		entry.PaidTo = rule.Account
	}
	if rule.HasParty() {
		entry.PartyType = rule.PartyType
		entry.Party = rule.Party
	}

	id, err := e.store.CreatePaymentEntry(ctx, entry)
	if err != nil {
		return "", "", model.NewActionError(model.DownstreamCreateFailed, "failed to create payment entry", err)
	}
	return id, "created payment entry", nil
}

func (e *Engine) createJournalEntry(ctx context.Context, rule *model.BankRule, txn *model.BankTransaction) (string, string, *model.ActionError) {
	if actionErr := requireAccounts(rule, txn); actionErr != nil {
		return "", "", actionErr
	}

	existing, actionErr := e.existingArtifact(ctx, txn, model.ArtifactJournalEntry)
	if actionErr != nil {
		return "", "", actionErr
	}
	if existing != "" {
		return existing, "reused existing journal entry", nil
	}

	amount := txn.Amount()
	ruleLeg := model.JournalLine{Account: rule.Account, CostCenter: rule.CostCenter}
	bankLeg := model.JournalLine{Account: txn.BankAccount, CostCenter: rule.CostCenter}

	if txn.IsDeposit() {
		bankLeg.Debit = amount
		ruleLeg.Credit = amount
	} else {
		ruleLeg.Debit = amount
		bankLeg.Credit = amount
	}

	entry := &model.JournalEntry{
		PostingDate:     txn.Date,
		ChequeDate:      txn.Date,
		ChequeNo:        txn.ReferenceNumber,
		BankTransaction: txn.ID,
		RuleID:          rule.ID,
	}
	// Debit leg first.
	if txn.IsDeposit() {
		entry.Lines = []model.JournalLine{bankLeg, ruleLeg}
	} else {
		entry.Lines = []model.JournalLine{ruleLeg, bankLeg}
	}

	id, err := e.store.CreateJournalEntry(ctx, entry)
	if err != nil {
		return "", "", model.NewActionError(model.DownstreamCreateFailed, "failed to create journal entry", err)
	}
	return id, "created journal entry", nil
}
