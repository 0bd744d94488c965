package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/bankrules/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// RenderTable lays rows out in padded columns under a bold header.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	renderRow := func(cells []string, style lipgloss.Style) string {
		rendered := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			rendered[i] = TableCellStyle.Width(widths[i] + 2).Render(cell)
		}
		return style.Render(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, renderRow(headers, TableHeaderStyle))
	for _, row := range rows {
		lines = append(lines, renderRow(row, lipgloss.NewStyle()))
	}
	return strings.Join(lines, "\n")
}

// RenderRules renders rules in evaluation order as a table.
func RenderRules(rules []model.BankRule) string {
	if len(rules) == 0 {
		return FormatInfo("No bank rules defined")
	}

	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		status := SuccessStyle.Render("active")
		if !r.IsActive {
			status = SubtleStyle.Render("inactive")
		}
		rows = append(rows, []string{
			strconv.Itoa(r.ID),
			strconv.Itoa(r.Priority),
			r.Name,
			fmt.Sprintf("%s %s %q", r.MatchField, r.MatchType, r.MatchValue),
			ActionLabel(r.ActionType),
			r.Account,
			strconv.Itoa(r.TimesMatched),
			status,
		})
	}

	return RenderTable(
		[]string{"ID", "Priority", "Name", "Match", "Action", "Account", "Matched", "Status"},
		rows,
	)
}

// RenderRule renders every field of a single rule.
func RenderRule(r model.BankRule) string {
	var b strings.Builder
	field := func(label, value string) {
		if value == "" {
			value = SubtleStyle.Render("-")
		}
		fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render(fmt.Sprintf("%-18s", label+":")), value)
	}

	field("Priority", strconv.Itoa(r.Priority))
	field("Active", strconv.FormatBool(r.IsActive))
	field("Bank account", r.BankAccount)
	field("Match", fmt.Sprintf("%s %s %q", r.MatchField, r.MatchType, r.MatchValue))
	if r.TransactionType != nil {
		field("Transaction type", string(*r.TransactionType))
	}
	if r.MinAmount != nil {
		field("Min amount", r.MinAmount.StringFixed(2))
	}
	if r.MaxAmount != nil {
		field("Max amount", r.MaxAmount.StringFixed(2))
	}
	field("Action", ActionLabel(r.ActionType))
	field("Account", r.Account)
	field("Cost center", r.CostCenter)
	if r.HasParty() {
		field("Party", r.PartyType+" / "+r.Party)
	}
	field("Times matched", strconv.Itoa(r.TimesMatched))
	if r.LastMatched != nil {
		field("Last matched", r.LastMatched.Format("2006-01-02 15:04"))
	}
	field("Total matched", r.TotalAmountMatched.StringFixed(2))

	return RenderBox(fmt.Sprintf("%s Rule %d: %s", RuleIcon, r.ID, r.Name), strings.TrimRight(b.String(), "\n"))
}

// RenderEvaluation describes the outcome of evaluating one transaction.
func RenderEvaluation(result model.EvaluationResult) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Transaction %s: %d rules checked", result.TransactionID, result.RulesChecked))

	if len(result.Results) == 0 {
		lines = append(lines, FormatInfo("No rule matched"))
	}
	for _, res := range result.Results {
		label := fmt.Sprintf("Rule %d (%s) %s", res.RuleID, res.RuleName, res.ActionType)
		switch {
		case res.Applied && res.ArtifactID != "":
			lines = append(lines, FormatSuccess(fmt.Sprintf("%s: %s %s", label, res.Reason, res.ArtifactID)))
		case res.Applied:
			lines = append(lines, FormatSuccess(label+": "+res.Reason))
		default:
			lines = append(lines, FormatWarning(label+": "+res.Reason))
		}
	}

	return strings.Join(lines, "\n")
}

// RenderBulkSummary renders the counts of a bulk run in a box.
func RenderBulkSummary(summary model.BulkSummary) string {
	content := fmt.Sprintf("Transactions processed: %d\nRules applied:          %d\nErrors:                 %d",
		summary.TotalTransactions, summary.RulesApplied, summary.Errors)
	if summary.Errors > 0 {
		content += "\n" + FormatWarning("Some transactions failed; see the log for details")
	}
	return RenderBox(ChartIcon+" Bulk application complete", content)
}

// RenderDraft renders a suggested rule draft.
func RenderDraft(draft model.RuleDraft) string {
	content := fmt.Sprintf("Name:        %s\nMatch:       %s %s %q\nType:        %s\nSample:      %s (%s)",
		draft.RuleName,
		draft.MatchField, draft.MatchType, draft.MatchValue,
		draft.TransactionType,
		draft.SampleDescription, draft.SampleAmount.StringFixed(2))
	return RenderBox(RuleIcon+" Suggested rule", content)
}
