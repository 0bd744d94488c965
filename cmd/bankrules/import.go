package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/bankrules/internal/cli"
	"github.com/Veraticus/bankrules/internal/config"
	"github.com/Veraticus/bankrules/internal/model"
	"github.com/Veraticus/bankrules/internal/ofx"
	"github.com/Veraticus/bankrules/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func importCmd() *cobra.Command {
	var (
		bankAccount string
		dryRun      bool
		apply       bool
	)
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import bank transactions from OFX/QFX files",
		Long: `Import bank transactions from OFX or QFX files exported from your bank.

OFX account ids are mapped onto bank accounts with the ofx.accounts setting;
unmapped accounts use --bank-account. Transactions already imported are
skipped.`,
		Example: `  bankrules import ~/Downloads/checking_apr.qfx --bank-account Checking
  bankrules import ~/Downloads/*.qfx --apply`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := expandFiles(args)
			if err != nil {
				return err
			}

			parser := ofx.NewParser(bankAccount, viper.GetStringMapString("ofx.accounts"))
			txns := parseFiles(cmd.Context(), parser, files)
			if len(txns) == 0 {
				printLine(cmd, cli.FormatWarning("No transactions found"))
				return nil
			}

			if dryRun {
				printLine(cmd, cli.FormatInfo(fmt.Sprintf("Dry run: %d transactions parsed", len(txns))))
				printLine(cmd, renderTransactions(txns))
				return nil
			}

			cfg, store, closeStore, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			return saveAndApply(cmd, cfg, store, txns, apply, "import")
		},
	}
	cmd.Flags().StringVar(&bankAccount, "bank-account", "", "bank account for OFX accounts missing from ofx.accounts")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "parse and show transactions without saving")
	cmd.Flags().BoolVar(&apply, "apply", false, "apply bank rules to the imported date range")
	return cmd
}

// expandFiles resolves globs, keeping literal paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, statErr := os.Stat(pattern); statErr == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no files found to import")
	}
	return files, nil
}

// parseFiles parses every file, logging and skipping unreadable ones, and
// drops transactions repeated across files.
func parseFiles(ctx context.Context, parser *ofx.Parser, files []string) []model.BankTransaction {
	var all []model.BankTransaction
	seen := make(map[string]bool)

	for _, path := range files {
		f, err := os.Open(path) // #nosec G304 -- operator supplied path
		if err != nil {
			slog.Error("Failed to open file", "file", path, "error", err)
			continue
		}

		txns, err := parser.ParseFile(ctx, f)
		_ = f.Close()
		if err != nil {
			slog.Error("Failed to parse OFX file", "file", path, "error", err)
			continue
		}

		added := 0
		for _, txn := range txns {
			if seen[txn.Hash] {
				continue
			}
			seen[txn.Hash] = true
			all = append(all, txn)
			added++
		}
		slog.Info("Parsed file", "file", filepath.Base(path), "transactions", added)
	}

	return all
}

// saveAndApply stores new transactions and, when apply is set, runs the
// bulk pass over the date range they cover.
func saveAndApply(cmd *cobra.Command, cfg *config.Config, store *storage.SQLiteStorage, txns []model.BankTransaction, apply bool, source string) error {
	ctx := cmd.Context()

	inserted, err := store.SaveBankTransactions(ctx, txns)
	if err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}
	printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Saved %d new transactions (%d already present)", inserted, len(txns)-inserted)))

	if !apply || inserted == 0 {
		return nil
	}

	from, to := dateRange(txns)
	run := model.BulkRun{Source: source, StartedAt: time.Now()}
	summary, err := newEngine(store, cfg).BulkApply(ctx, model.BulkFilter{FromDate: &from, ToDate: &to})
	run.Summary = summary
	run.FinishedAt = time.Now()
	if recordErr := store.RecordBulkRun(context.WithoutCancel(ctx), &run); recordErr != nil {
		slog.Warn("failed to record bulk run", "error", recordErr)
	}
	if err != nil {
		return err
	}

	printLine(cmd, cli.RenderBulkSummary(summary))
	return nil
}

func dateRange(txns []model.BankTransaction) (time.Time, time.Time) {
	from, to := txns[0].Date, txns[0].Date
	for _, txn := range txns[1:] {
		if txn.Date.Before(from) {
			from = txn.Date
		}
		if txn.Date.After(to) {
			to = txn.Date
		}
	}
	return from, to
}
