// Package cli provides styled terminal output and prompts for bankrules.
package cli

import (
	"github.com/Veraticus/bankrules/internal/model"
	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("#5B8DEF")
	teal   = lipgloss.Color("#4ECDC4")
	amber  = lipgloss.Color("#FFE66D")
	coral  = lipgloss.Color("#FF6B6B")
	violet = lipgloss.Color("#C792EA")
	gray   = lipgloss.Color("#666666")
	line   = lipgloss.Color("#333")

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().Foreground(teal)
	WarningStyle = lipgloss.NewStyle().Foreground(amber)
	ErrorStyle   = lipgloss.NewStyle().Foreground(coral)
	InfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1D3"))
	SubtleStyle  = lipgloss.NewStyle().Foreground(gray)
	BoldStyle    = lipgloss.NewStyle().Bold(true)
	PromptStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)

	// BoxStyle frames rule details and run summaries.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(line).
			Padding(1, 2)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(line)
	TableCellStyle = lipgloss.NewStyle().PaddingRight(2)

	// actionColors gives each rule action a stable color in tables.
	actionColors = map[model.ActionType]lipgloss.Color{
		model.ActionCategorize:         accent,
		model.ActionCreatePaymentEntry: teal,
		model.ActionCreateJournalEntry: violet,
		model.ActionLinkToParty:        amber,
	}
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	BankIcon    = "🏦"
	RuleIcon    = "📐"
	ChartIcon   = "📊"
)

func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title. The icon defaults to the bank icon.
func FormatTitle(title string, icon ...string) string {
	prefix := BankIcon
	if len(icon) > 0 {
		prefix = icon[0]
	}
	return TitleStyle.Render(prefix + " " + title)
}

// FormatPrompt formats a question put to the operator.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// ActionLabel renders a rule action in its color. Unknown actions are gray.
func ActionLabel(action model.ActionType) string {
	color, ok := actionColors[action]
	if !ok {
		color = gray
	}
	return lipgloss.NewStyle().Foreground(color).Render(string(action))
}

// FormatAmount renders a transaction's signed amount: money in is positive
// and teal, money out is negative and coral.
func FormatAmount(txn model.BankTransaction) string {
	if txn.IsDeposit() {
		return SuccessStyle.Render(txn.Deposit.StringFixed(2))
	}
	return ErrorStyle.Render("-" + txn.Withdrawal.StringFixed(2))
}

// RenderBox renders content under a title in a rounded box.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.UnsetMargins().Render(title)
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, boxTitle, content))
}
