package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/bankrules/internal/cli"
	"github.com/Veraticus/bankrules/internal/config"
	"github.com/Veraticus/bankrules/internal/model"
	"github.com/Veraticus/bankrules/internal/plaid"
	"github.com/Veraticus/bankrules/internal/simplefin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// transactionFetcher is a bank feed that sync can pull from.
type transactionFetcher interface {
	GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.BankTransaction, error)
	GetAccounts(ctx context.Context) ([]string, error)
}

var (
	_ transactionFetcher = (*plaid.Client)(nil)
	_ transactionFetcher = (*simplefin.Client)(nil)
)

func newFetcher(ctx context.Context, source string) (transactionFetcher, error) {
	switch source {
	case "plaid":
		plaidCfg, err := config.LoadPlaidConfig(viper.GetViper())
		if err != nil {
			return nil, err
		}
		return plaid.NewClient(plaidCfg)
	case "simplefin":
		sfCfg, err := config.LoadSimpleFINConfig(viper.GetViper())
		if err != nil {
			return nil, err
		}
		return simplefin.NewClient(ctx, sfCfg, slog.Default())
	default:
		return nil, fmt.Errorf("unknown source %q: must be plaid or simplefin", source)
	}
}

func syncCmd() *cobra.Command {
	var (
		days   int
		since  string
		source   string
		apply    bool
		accounts bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch recent bank transactions from Plaid or SimpleFIN",
		Long: `Fetch transactions from a bank feed and store the ones not seen before.

Plaid requires plaid.client_id, plaid.secret, plaid.access_token and either
plaid.bank_account or a plaid.accounts mapping.

SimpleFIN requires simplefin.token the first time (the claimed access URL
is saved to simplefin.state_file) and either simplefin.bank_account or a
simplefin.accounts mapping.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			end := time.Now()
			start := end.AddDate(0, 0, -days)
			if since != "" {
				parsed, err := parseDateFlag(since, "since")
				if err != nil {
					return err
				}
				start = *parsed
			}

			fetcher, err := newFetcher(cmd.Context(), source)
			if err != nil {
				return err
			}
			if accounts {
				return listAccounts(cmd, fetcher)
			}

			return runSync(cmd, fetcher, start, end, apply)
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "number of days to fetch")
	cmd.Flags().StringVar(&since, "since", "", "fetch from this date instead (YYYY-MM-DD)")
	cmd.Flags().StringVar(&source, "source", "plaid", "bank feed: plaid or simplefin")
	cmd.Flags().BoolVar(&apply, "apply", false, "apply bank rules to the fetched date range")
	cmd.Flags().BoolVar(&accounts, "accounts", false, "list the feed's account ids instead of syncing")
	return cmd
}

func runSync(cmd *cobra.Command, fetcher transactionFetcher, start, end time.Time, apply bool) error {
	ctx := cmd.Context()

	txns, err := fetcher.GetTransactions(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to fetch transactions: %w", err)
	}
	if len(txns) == 0 {
		printLine(cmd, cli.FormatInfo("No transactions in range"))
		return nil
	}

	cfg, store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	return saveAndApply(cmd, cfg, store, txns, apply, "sync")
}

// listAccounts prints the feed's account ids, for filling in an accounts mapping.
func listAccounts(cmd *cobra.Command, fetcher transactionFetcher) error {
	ids, err := fetcher.GetAccounts(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(ids) == 0 {
		printLine(cmd, cli.FormatWarning("The feed returned no accounts"))
		return nil
	}
	for _, id := range ids {
		printLine(cmd, id)
	}
	return nil
}
