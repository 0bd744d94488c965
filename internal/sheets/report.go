package sheets

import (
	"fmt"
	"sort"
	"time"

	"github.com/Veraticus/bankrules/internal/model"
	"github.com/shopspring/decimal"
)

// BuildReport collects rule statistics and bulk run history into a Report.
// Rules are listed in evaluation order, runs newest first.
func BuildReport(rules []model.BankRule, runs []model.BulkRun, generatedAt time.Time) Report {
	sorted := make([]model.BankRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].ID < sorted[j].ID
	})

	report := Report{
		GeneratedAt:  generatedAt,
		TotalMatched: decimal.Zero,
		Rules:        make([]RuleStatsRow, 0, len(sorted)),
		Runs:         make([]BulkRunRow, 0, len(runs)),
	}

	for _, rule := range sorted {
		report.Rules = append(report.Rules, RuleStatsRow{
			Name:         rule.Name,
			Priority:     rule.Priority,
			Active:       rule.IsActive,
			BankAccount:  rule.BankAccount,
			Match:        describeMatch(rule),
			Action:       string(rule.ActionType),
			Account:      rule.Account,
			TimesMatched: rule.TimesMatched,
			LastMatched:  rule.LastMatched,
			TotalMatched: rule.TotalAmountMatched,
		})
		report.TotalMatches += rule.TimesMatched
		report.TotalMatched = report.TotalMatched.Add(rule.TotalAmountMatched)
	}

	sortedRuns := make([]model.BulkRun, len(runs))
	copy(sortedRuns, runs)
	sort.SliceStable(sortedRuns, func(i, j int) bool {
		return sortedRuns[i].StartedAt.After(sortedRuns[j].StartedAt)
	})
	for _, run := range sortedRuns {
		report.Runs = append(report.Runs, BulkRunRow{
			StartedAt:    run.StartedAt,
			Source:       run.Source,
			BankAccount:  run.BankAccount,
			Transactions: run.Summary.TotalTransactions,
			Applied:      run.Summary.RulesApplied,
			Errors:       run.Summary.Errors,
		})
	}

	return report
}

func describeMatch(rule model.BankRule) string {
	match := fmt.Sprintf("%s %s %q", rule.MatchField, rule.MatchType, rule.MatchValue)
	if rule.TransactionType != nil {
		match += " (" + string(*rule.TransactionType) + ")"
	}
	return match
}
