// Package tui provides the interactive rule review form shown when an
// operator turns a suggested draft into a stored bank rule.
package tui

import (
	"fmt"
	"strings"

	"github.com/Veraticus/bankrules/internal/model"
	"github.com/Veraticus/bankrules/internal/rules"
	"github.com/Veraticus/bankrules/internal/tui/themes"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	fieldName = iota
	fieldMatchType
	fieldMatchValue
	fieldAction
	fieldAccount
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldName:       "Name",
	fieldMatchType:  "Match type",
	fieldMatchValue: "Match value",
	fieldAction:     "Action",
	fieldAccount:    "Account",
}

var matchTypeOptions = []model.MatchType{
	model.MatchContains,
	model.MatchStartsWith,
	model.MatchEndsWith,
	model.MatchExact,
	model.MatchRegex,
}

var actionOptions = []model.ActionType{
	model.ActionCategorize,
	model.ActionCreatePaymentEntry,
	model.ActionCreateJournalEntry,
	model.ActionLinkToParty,
}

// RuleReviewModel is a bubbletea model for editing a rule draft before it
// is saved.
type RuleReviewModel struct {
	err       error
	base      model.BankRule
	result    model.BankRule
	theme     themes.Theme
	keys      KeyMap
	help      help.Model
	name      textinput.Model
	value     textinput.Model
	account   textinput.Model
	sample    string
	matchIdx  int
	actionIdx int
	focus     int
	done      bool
	canceled  bool
}

// NewRuleReviewModel builds the form pre-filled from the draft.
func NewRuleReviewModel(draft model.RuleDraft, theme themes.Theme) RuleReviewModel {
	base := draft.ToRule()
	return newReviewModel(base, draft.SampleDescription, theme)
}

// NewRuleEditModel builds the form pre-filled from an existing rule.
func NewRuleEditModel(rule model.BankRule, theme themes.Theme) RuleReviewModel {
	return newReviewModel(rule, "", theme)
}

func newReviewModel(base model.BankRule, sample string, theme themes.Theme) RuleReviewModel {
	m := RuleReviewModel{
		base:    base,
		sample:  sample,
		theme:   theme,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		name:    newInput("Rule name", base.Name),
		value:   newInput("Text to match", base.MatchValue),
		account: newInput("Ledger account", base.Account),
	}
	m.matchIdx = indexOf(matchTypeOptions, base.MatchType)
	m.actionIdx = indexOf(actionOptions, base.ActionType)
	m.focusField(fieldName)
	return m
}

func newInput(placeholder, value string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 140
	ti.Width = 40
	ti.SetValue(value)
	return ti
}

func indexOf[T comparable](options []T, v T) int {
	for i, o := range options {
		if o == v {
			return i
		}
	}
	return 0
}

// Init implements tea.Model.
func (m RuleReviewModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m RuleReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.canceled = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Save):
			return m.submit()
		case key.Matches(msg, m.keys.Enter):
			if m.focus == fieldCount-1 {
				return m.submit()
			}
			return m, m.focusField(m.focus + 1)
		case key.Matches(msg, m.keys.Next):
			return m, m.focusField((m.focus + 1) % fieldCount)
		case key.Matches(msg, m.keys.Prev):
			return m, m.focusField((m.focus + fieldCount - 1) % fieldCount)
		case m.isSelect() && key.Matches(msg, m.keys.Left):
			m.cycle(-1)
			return m, nil
		case m.isSelect() && key.Matches(msg, m.keys.Right):
			m.cycle(1)
			return m, nil
		}
	}

	return m, m.updateInput(msg)
}

func (m *RuleReviewModel) isSelect() bool {
	return m.focus == fieldMatchType || m.focus == fieldAction
}

func (m *RuleReviewModel) cycle(delta int) {
	switch m.focus {
	case fieldMatchType:
		m.matchIdx = (m.matchIdx + delta + len(matchTypeOptions)) % len(matchTypeOptions)
	case fieldAction:
		m.actionIdx = (m.actionIdx + delta + len(actionOptions)) % len(actionOptions)
	}
}

func (m *RuleReviewModel) focusField(field int) tea.Cmd {
	m.focus = field
	m.name.Blur()
	m.value.Blur()
	m.account.Blur()

	if input := m.input(field); input != nil {
		return input.Focus()
	}
	return nil
}

func (m *RuleReviewModel) input(field int) *textinput.Model {
	switch field {
	case fieldName:
		return &m.name
	case fieldMatchValue:
		return &m.value
	case fieldAccount:
		return &m.account
	}
	return nil
}

func (m *RuleReviewModel) updateInput(msg tea.Msg) tea.Cmd {
	input := m.input(m.focus)
	if input == nil {
		return nil
	}
	var cmd tea.Cmd
	*input, cmd = input.Update(msg)
	return cmd
}

// Rule returns the rule as currently entered in the form.
func (m RuleReviewModel) Rule() model.BankRule {
	rule := m.base
	rule.Name = strings.TrimSpace(m.name.Value())
	rule.MatchType = matchTypeOptions[m.matchIdx]
	rule.MatchValue = m.value.Value()
	rule.ActionType = actionOptions[m.actionIdx]
	rule.Account = strings.TrimSpace(m.account.Value())
	return rule
}

func (m RuleReviewModel) submit() (tea.Model, tea.Cmd) {
	rule := m.Rule()
	if err := rules.ValidateRule(&rule); err != nil {
		m.err = err
		return m, nil
	}
	if rule.ActionType != model.ActionLinkToParty && rule.Account == "" {
		m.err = fmt.Errorf("%w: account is required for %s", rules.ErrInvalidRule, rule.ActionType)
		return m, m.focusField(fieldAccount)
	}

	m.err = nil
	m.result = rule
	m.done = true
	return m, tea.Quit
}

// Result returns the saved rule and whether the operator confirmed it.
func (m RuleReviewModel) Result() (model.BankRule, bool) {
	if !m.done || m.canceled {
		return model.BankRule{}, false
	}
	return m.result, true
}

// Err returns the last validation error shown in the form.
func (m RuleReviewModel) Err() error {
	return m.err
}

// View implements tea.Model.
func (m RuleReviewModel) View() string {
	if m.done || m.canceled {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.theme.Title.Render("Review bank rule"))
	b.WriteString("\n")
	if m.sample != "" {
		b.WriteString(m.theme.Subtitle.Render("Sample: " + m.sample))
		b.WriteString("\n")
	}

	rows := make([]string, 0, fieldCount)
	for field := 0; field < fieldCount; field++ {
		label := m.theme.Label.Render(fieldLabels[field])
		if field == m.focus {
			label = m.theme.Focused.Render(fieldLabels[field])
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, label, m.fieldView(field)))
	}
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, rows...))

	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(m.theme.StatusError.Render(m.err.Error()))
	}

	b.WriteString("\n")
	b.WriteString(m.theme.Help.Render(m.help.View(m.keys)))

	return m.theme.BorderedBox.Render(b.String())
}

func (m RuleReviewModel) fieldView(field int) string {
	switch field {
	case fieldMatchType:
		return m.selectView(string(matchTypeOptions[m.matchIdx]), field)
	case fieldAction:
		return m.selectView(string(actionOptions[m.actionIdx]), field)
	default:
		return m.input(field).View()
	}
}

func (m RuleReviewModel) selectView(value string, field int) string {
	if field == m.focus {
		return lipgloss.NewStyle().Foreground(m.theme.Primary).Render("‹ " + value + " ›")
	}
	return m.theme.Normal.Render("  " + value)
}
