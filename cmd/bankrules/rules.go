package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Veraticus/bankrules/internal/cli"
	"github.com/Veraticus/bankrules/internal/common"
	"github.com/Veraticus/bankrules/internal/model"
	"github.com/Veraticus/bankrules/internal/rules"
	"github.com/Veraticus/bankrules/internal/tui"
	"github.com/Veraticus/bankrules/internal/tui/themes"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rule"},
		Short:   "Manage bank rules",
		Long: `Create, inspect and edit the bank rules applied to incoming transactions.

Rules are evaluated in ascending priority order (ties by id). The first
matching rule whose action succeeds wins.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesShowCmd())
	cmd.AddCommand(rulesCreateCmd())
	cmd.AddCommand(rulesEditCmd())
	cmd.AddCommand(rulesDeleteCmd())
	cmd.AddCommand(rulesTestCmd())
	cmd.AddCommand(rulesSuggestCmd())

	return cmd
}

// ruleFlags holds the flags shared by create and edit.
type ruleFlags struct {
	name        string
	bankAccount string
	field       string
	matchType   string
	value       string
	txnType     string
	minAmount   string
	maxAmount   string
	action      string
	account     string
	costCenter  string
	partyType   string
	party       string
	priority    int
	active      bool
}

func (f *ruleFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "rule name")
	fs.IntVar(&f.priority, "priority", 10, "evaluation priority, lower runs first")
	fs.BoolVar(&f.active, "active", true, "whether the rule is evaluated")
	fs.StringVar(&f.bankAccount, "bank-account", "", "limit the rule to one bank account")
	fs.StringVar(&f.field, "field", string(model.MatchFieldDescription), "field to match: Description, Reference Number, Party Name")
	fs.StringVar(&f.matchType, "match", string(model.MatchContains), "match type: Contains, Starts With, Ends With, Exact Match, Regex")
	fs.StringVar(&f.value, "value", "", "text or pattern to match")
	fs.StringVar(&f.txnType, "type", "", "restrict to Credit or Debit transactions")
	fs.StringVar(&f.minAmount, "min-amount", "", "minimum absolute amount")
	fs.StringVar(&f.maxAmount, "max-amount", "", "maximum absolute amount")
	fs.StringVar(&f.action, "action", string(model.ActionCategorize), "action: Categorize, Create Payment Entry, Create Journal Entry, Link to Party")
	fs.StringVar(&f.account, "account", "", "ledger account used by the action")
	fs.StringVar(&f.costCenter, "cost-center", "", "cost center recorded with the action")
	fs.StringVar(&f.partyType, "party-type", "", "party type, e.g. Customer or Supplier")
	fs.StringVar(&f.party, "party", "", "party name")
}

// applyTo copies every flag the user set onto rule. With all set, every
// flag is copied, which is what create wants.
func (f *ruleFlags) applyTo(rule *model.BankRule, fs *pflag.FlagSet, all bool) error {
	changed := func(name string) bool { return all || fs.Changed(name) }

	if changed("name") {
		rule.Name = f.name
	}
	if changed("priority") {
		rule.Priority = f.priority
	}
	if changed("active") {
		rule.IsActive = f.active
	}
	if changed("bank-account") {
		rule.BankAccount = f.bankAccount
	}
	if changed("field") {
		rule.MatchField = model.MatchField(f.field)
	}
	if changed("match") {
		rule.MatchType = model.MatchType(f.matchType)
	}
	if changed("value") {
		rule.MatchValue = f.value
	}
	if changed("type") {
		if f.txnType == "" {
			rule.TransactionType = nil
		} else {
			t := model.TransactionType(f.txnType)
			rule.TransactionType = &t
		}
	}
	if changed("min-amount") {
		amount, err := parseAmount(f.minAmount, "min-amount")
		if err != nil {
			return err
		}
		rule.MinAmount = amount
	}
	if changed("max-amount") {
		amount, err := parseAmount(f.maxAmount, "max-amount")
		if err != nil {
			return err
		}
		rule.MaxAmount = amount
	}
	if changed("action") {
		rule.ActionType = model.ActionType(f.action)
	}
	if changed("account") {
		rule.Account = f.account
	}
	if changed("cost-center") {
		rule.CostCenter = f.costCenter
	}
	if changed("party-type") {
		rule.PartyType = f.partyType
	}
	if changed("party") {
		rule.Party = f.party
	}
	return nil
}

func parseAmount(value, name string) (*decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: %w", name, value, err)
	}
	return &d, nil
}

func parseRuleID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid rule id %q", arg)
	}
	return id, nil
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all bank rules in evaluation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			_, store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			bankRules, err := store.ListBankRules(ctx)
			if err != nil {
				return fmt.Errorf("failed to list bank rules: %w", err)
			}

			printLine(cmd, cli.FormatTitle("Bank Rules", cli.RuleIcon))
			printLine(cmd, cli.RenderRules(bankRules))
			return nil
		},
	}
}

func rulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a bank rule and its match statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			_, store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			rule, err := store.GetBankRule(ctx, id)
			if err != nil {
				return notFound(fmt.Sprintf("bank rule %d", id), err)
			}
			printLine(cmd, cli.RenderRule(*rule))
			return nil
		},
	}
}

func rulesCreateCmd() *cobra.Command {
	var flags ruleFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a bank rule",
		Example: `  bankrules rules create --name "Coffee" --value STARBUCKS --account "Coffee - Expenses"
  bankrules rules create --name "Rent" --field "Party Name" --match "Exact Match" --value "Landlord" \
      --action "Create Payment Entry" --account "Rent - Expenses" --party-type Supplier --party Landlord`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rule model.BankRule
			if err := flags.applyTo(&rule, cmd.Flags(), true); err != nil {
				return err
			}
			if err := rules.ValidateRule(&rule); err != nil {
				return err
			}

			ctx := cmd.Context()
			_, store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.CreateBankRule(ctx, &rule); err != nil {
				return fmt.Errorf("failed to create bank rule: %w", err)
			}
			printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Created rule %d: %s", rule.ID, rule.Name)))
			return nil
		},
	}
	flags.bind(cmd.Flags())
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func rulesEditCmd() *cobra.Command {
	var (
		flags       ruleFlags
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a bank rule",
		Long: `Change the fields of a bank rule given as flags. Fields without a flag
keep their value. With --interactive the rule opens in a form instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			_, store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			rule, err := store.GetBankRule(ctx, id)
			if err != nil {
				return notFound(fmt.Sprintf("bank rule %d", id), err)
			}

			if err := flags.applyTo(rule, cmd.Flags(), false); err != nil {
				return err
			}

			if interactive {
				edited, ok, runErr := tui.RunRuleEdit(ctx, *rule, tui.RunOptions{Theme: themes.Default})
				if runErr != nil {
					return runErr
				}
				if !ok {
					printLine(cmd, cli.FormatInfo("Edit canceled"))
					return nil
				}
				rule = &edited
			}

			if err := store.UpdateBankRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to update bank rule: %w", err)
			}
			printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Updated rule %d: %s", rule.ID, rule.Name)))
			return nil
		},
	}
	flags.bind(cmd.Flags())
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "edit the rule in a form")
	return cmd
}

func rulesDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a bank rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			_, store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			rule, err := store.GetBankRule(ctx, id)
			if err != nil {
				return notFound(fmt.Sprintf("bank rule %d", id), err)
			}

			if !yes {
				prompter := cli.NewCLIPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
				ok, promptErr := prompter.Confirm(ctx, fmt.Sprintf("Delete rule %d (%s)?", rule.ID, rule.Name))
				if promptErr != nil {
					return promptErr
				}
				if !ok {
					printLine(cmd, cli.FormatInfo("Nothing deleted"))
					return nil
				}
			}

			if err := store.DeleteBankRule(ctx, id); err != nil {
				return fmt.Errorf("failed to delete bank rule: %w", err)
			}
			printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Deleted rule %d", id)))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func rulesTestCmd() *cobra.Command {
	var (
		description string
		reference   string
		party       string
		amount      string
		bankAccount string
	)
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Show which rules would match a transaction, without applying any",
		Example: `  bankrules rules test --description "STARBUCKS STORE 1234" --amount -4.50
  bankrules rules test --party "Acme Corp" --amount 2500 --bank-account Checking`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			txn, err := sampleTransaction(description, reference, party, amount, bankAccount)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			cfg, store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			matched, err := newEngine(store, cfg).Test(ctx, txn)
			if err != nil {
				return err
			}
			if len(matched) == 0 {
				printLine(cmd, cli.FormatInfo("No rule matches this transaction"))
				return nil
			}

			printLine(cmd, cli.FormatTitle(fmt.Sprintf("%d matching rules, first one wins", len(matched)), cli.RuleIcon))
			printLine(cmd, cli.RenderRules(matched))
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "transaction description")
	cmd.Flags().StringVar(&reference, "reference", "", "reference number")
	cmd.Flags().StringVar(&party, "party", "", "party name")
	cmd.Flags().StringVar(&amount, "amount", "0", "amount, negative for a withdrawal")
	cmd.Flags().StringVar(&bankAccount, "bank-account", "", "bank account of the transaction")
	return cmd
}

// sampleTransaction builds an unsaved transaction for rules test. A
// negative amount is a withdrawal.
func sampleTransaction(description, reference, party, amount, bankAccount string) (model.BankTransaction, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("invalid --amount %q: %w", amount, err)
	}

	txn := model.BankTransaction{
		Description:     description,
		ReferenceNumber: reference,
		PartyName:       party,
		BankAccount:     bankAccount,
	}
	if value.IsNegative() {
		txn.Withdrawal = value.Abs()
	} else {
		txn.Deposit = value
	}
	return txn, nil
}

func rulesSuggestCmd() *cobra.Command {
	var interactive, save bool
	cmd := &cobra.Command{
		Use:   "suggest <transaction-id>",
		Short: "Suggest a rule from a stored transaction",
		Long: `Propose a Contains rule on the transaction description. The draft is only
printed; with --interactive it opens in a form, and with --save the name, value
and account are asked for on the terminal. Either way it is saved once confirmed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			draft, err := newEngine(store, cfg).SuggestRule(ctx, args[0])
			if err != nil {
				return notFound("transaction "+args[0], err)
			}

			printLine(cmd, cli.RenderDraft(draft))

			var (
				rule model.BankRule
				ok   bool
			)
			switch {
			case interactive:
				rule, ok, err = tui.RunRuleReview(ctx, draft, tui.RunOptions{Theme: themes.Default, Output: os.Stderr})
			case save:
				rule, ok, err = promptDraft(ctx, cli.NewCLIPrompter(cmd.InOrStdin(), cmd.OutOrStdout()), draft)
			default:
				return nil
			}
			if err != nil {
				return err
			}
			if !ok {
				printLine(cmd, cli.FormatInfo("Draft discarded"))
				return nil
			}

			if err := store.CreateBankRule(ctx, &rule); err != nil {
				return fmt.Errorf("failed to create bank rule: %w", err)
			}
			printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Created rule %d: %s", rule.ID, rule.Name)))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "review and save the draft in a form")
	cmd.Flags().BoolVar(&save, "save", false, "finish and save the draft with line prompts")
	cmd.MarkFlagsMutuallyExclusive("interactive", "save")
	return cmd
}

// promptDraft turns a draft into a Categorize rule by asking for the fields
// the draft cannot guess. The returned bool is false when the operator declines.
func promptDraft(ctx context.Context, prompter *cli.Prompter, draft model.RuleDraft) (model.BankRule, bool, error) {
	rule := draft.ToRule()
	rule.Priority = 10

	var err error
	if rule.Name, err = prompter.Ask(ctx, "Rule name", draft.RuleName); err != nil {
		return rule, false, err
	}
	if rule.MatchValue, err = prompter.Ask(ctx, "Match value", draft.MatchValue); err != nil {
		return rule, false, err
	}
	if rule.Account, err = prompter.Ask(ctx, "Account", ""); err != nil {
		return rule, false, err
	}
	if rule.Account == "" {
		return rule, false, common.NewUserError("an account is required to save a Categorize rule", nil)
	}

	ok, err := prompter.Confirm(ctx, fmt.Sprintf("Save %q (%s %q → %s)?", rule.Name, rule.MatchType, rule.MatchValue, rule.Account))
	return rule, ok, err
}
