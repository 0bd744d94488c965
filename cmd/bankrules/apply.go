package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/Veraticus/bankrules/internal/cli"
	"github.com/Veraticus/bankrules/internal/model"
	"github.com/Veraticus/bankrules/internal/rules"
	"github.com/spf13/cobra"
)

// SourceCLI is the bulk run source recorded for runs started from the CLI.
const SourceCLI = "cli"

func applyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <transaction-id>",
		Short: "Apply bank rules to one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			result, err := newEngine(store, cfg).ApplyRulesToTransaction(ctx, args[0])
			if err != nil {
				return notFound("transaction "+args[0], err)
			}
			printLine(cmd, cli.RenderEvaluation(result))
			return nil
		},
	}
}

func bulkApplyCmd() *cobra.Command {
	var (
		from        string
		to          string
		bankAccount string
		quiet       bool
	)
	cmd := &cobra.Command{
		Use:   "bulk-apply",
		Short: "Apply bank rules to every pending or unreconciled transaction",
		Long: `Evaluate bank rules against all pending and unreconciled transactions,
oldest first. A failing transaction is counted and skipped. Press Ctrl+C to
stop; transactions already processed keep their changes.`,
		Example: `  bankrules bulk-apply
  bankrules bulk-apply --from 2025-04-01 --to 2025-04-30 --bank-account Checking`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fromDate, err := parseDateFlag(from, "from")
			if err != nil {
				return err
			}
			toDate, err := parseDateFlag(to, "to")
			if err != nil {
				return err
			}
			filter := model.BulkFilter{FromDate: fromDate, ToDate: toDate, BankAccount: bankAccount}

			cfg, store, closeStore, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
			ctx, stop := handler.HandleInterrupts(cmd.Context(), "Bulk rule application", "bankrules bulk-apply")
			defer stop()

			pending, err := store.GetPendingBankTransactions(ctx, filter)
			if err != nil {
				return err
			}

			var progress rules.ProgressFunc
			var bar *cli.BulkProgress
			if !quiet && len(pending) > 0 {
				bar = cli.NewBulkProgress(os.Stderr, len(pending))
				progress = bar.Report
			}

			run := model.BulkRun{Source: SourceCLI, BankAccount: bankAccount, StartedAt: time.Now()}
			summary, applyErr := newEngine(store, cfg).BulkApplyWithProgress(ctx, filter, progress)
			if bar != nil {
				bar.Finish()
			}
			run.Summary = summary
			run.FinishedAt = time.Now()

			// An interrupted run is still recorded.
			if err := store.RecordBulkRun(context.WithoutCancel(ctx), &run); err != nil {
				slog.Warn("failed to record bulk run", "error", err)
			}

			if applyErr != nil && !handler.WasInterrupted() {
				return applyErr
			}
			printLine(cmd, cli.RenderBulkSummary(summary))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first transaction date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last transaction date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&bankAccount, "bank-account", "", "only this bank account")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

func runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the history of bulk runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			_, store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			runs, err := store.ListBulkRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				printLine(cmd, cli.FormatInfo("No bulk runs recorded yet"))
				return nil
			}

			printLine(cmd, cli.FormatTitle("Bulk Runs", cli.ChartIcon))
			printLine(cmd, renderRuns(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func renderRuns(runs []model.BulkRun) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			strconv.Itoa(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Source,
			run.BankAccount,
			strconv.Itoa(run.Summary.TotalTransactions),
			strconv.Itoa(run.Summary.RulesApplied),
			strconv.Itoa(run.Summary.Errors),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String(),
		})
	}
	return cli.RenderTable(
		[]string{"ID", "Started", "Source", "Bank Account", "Transactions", "Applied", "Errors", "Took"},
		rows,
	)
}

func transactionsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txns"},
		Short:   "List recent bank transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			_, store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			txns, err := store.ListBankTransactions(ctx, limit)
			if err != nil {
				return err
			}
			if len(txns) == 0 {
				printLine(cmd, cli.FormatInfo("No transactions imported yet"))
				return nil
			}

			printLine(cmd, cli.FormatTitle("Bank Transactions"))
			printLine(cmd, renderTransactions(txns))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of transactions to show")
	return cmd
}

func renderTransactions(txns []model.BankTransaction) string {
	rows := make([][]string, 0, len(txns))
	for _, txn := range txns {
		rows = append(rows, []string{
			txn.ID,
			txn.Date.Format(dateLayout),
			txn.BankAccount,
			truncate(txn.Description, 40),
			cli.FormatAmount(txn),
			string(txn.Status),
			txn.ExpenseAccount,
		})
	}
	return cli.RenderTable(
		[]string{"ID", "Date", "Bank Account", "Description", "Amount", "Status", "Account"},
		rows,
	)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return fmt.Sprintf("%s…", string(r[:n-1]))
}
