package tui

import (
	"context"
	"fmt"
	"io"

	"github.com/Veraticus/bankrules/internal/model"
	"github.com/Veraticus/bankrules/internal/tui/themes"
	tea "github.com/charmbracelet/bubbletea"
)

// RunOptions configures where the form reads input and draws.
type RunOptions struct {
	Input  io.Reader
	Output io.Writer
	Theme  themes.Theme
}

func (o RunOptions) theme() themes.Theme {
	if o.Theme.Primary == "" {
		return themes.Default
	}
	return o.Theme
}

// RunRuleReview shows the review form for a draft and returns the rule the
// operator confirmed. The bool is false when the form was canceled.
func RunRuleReview(ctx context.Context, draft model.RuleDraft, opts RunOptions) (model.BankRule, bool, error) {
	return run(ctx, NewRuleReviewModel(draft, opts.theme()), opts)
}

// RunRuleEdit shows the form for an existing rule.
func RunRuleEdit(ctx context.Context, rule model.BankRule, opts RunOptions) (model.BankRule, bool, error) {
	return run(ctx, NewRuleEditModel(rule, opts.theme()), opts)
}

func run(ctx context.Context, m RuleReviewModel, opts RunOptions) (model.BankRule, bool, error) {
	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}

	final, err := tea.NewProgram(m, programOpts...).Run()
	if err != nil {
		return model.BankRule{}, false, fmt.Errorf("rule review failed: %w", err)
	}

	reviewed, ok := final.(RuleReviewModel)
	if !ok {
		return model.BankRule{}, false, fmt.Errorf("unexpected model type %T", final)
	}
	rule, confirmed := reviewed.Result()
	return rule, confirmed, nil
}
