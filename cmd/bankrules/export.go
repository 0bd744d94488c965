package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/bankrules/internal/cli"
	"github.com/Veraticus/bankrules/internal/config"
	"github.com/Veraticus/bankrules/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func exportCmd() *cobra.Command {
	var runLimit int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export rule statistics to Google Sheets",
		Long: `Write every rule with its match statistics, plus the recent bulk run
history, to a Google Sheets spreadsheet.

Authenticate with a service account (sheets.service_account_path) or with
OAuth2 client credentials and a refresh token. Run 'bankrules export auth'
once to obtain the refresh token.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sheetsCfg, err := config.LoadSheetsConfig(viper.GetViper())
			if err != nil {
				return fmt.Errorf("google sheets not configured: %w", err)
			}

			ctx := cmd.Context()
			_, store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			bankRules, err := store.ListBankRules(ctx)
			if err != nil {
				return err
			}
			runs, err := store.ListBulkRuns(ctx, runLimit)
			if err != nil {
				return err
			}

			writer, err := sheets.NewWriter(ctx, *sheetsCfg, slog.Default())
			if err != nil {
				return err
			}
			return exportReport(cmd, writer, sheets.BuildReport(bankRules, runs, time.Now()))
		},
	}
	cmd.Flags().IntVar(&runLimit, "runs", 50, "number of recent bulk runs to include")
	cmd.AddCommand(exportAuthCmd())
	return cmd
}

func exportReport(cmd *cobra.Command, writer sheets.ReportWriter, report sheets.Report) error {
	if err := writer.Write(cmd.Context(), report); err != nil {
		return err
	}
	printLine(cmd, cli.FormatSuccess(fmt.Sprintf("Exported %d rules and %d bulk runs", len(report.Rules), len(report.Runs))))
	return nil
}

func exportAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize Google Sheets access and save a refresh token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			clientID := viper.GetString("sheets.client_id")
			clientSecret := viper.GetString("sheets.client_secret")
			if clientID == "" || clientSecret == "" {
				return fmt.Errorf("sheets.client_id and sheets.client_secret are required")
			}

			tokenFile := viper.GetString("sheets.token_file")
			token, err := sheets.AuthenticateOAuth2Interactive(cmd.Context(), sheets.OAuth2Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				TokenFile:    config.ExpandPath(tokenFile),
				CallbackAddr: viper.GetString("sheets.callback_addr"),
			})
			if err != nil {
				return err
			}
			if token.RefreshToken == "" {
				return fmt.Errorf("google returned no refresh token; revoke access and try again")
			}

			printLine(cmd, cli.FormatSuccess("Google Sheets authorized; token saved to "+tokenFile))
			return nil
		},
	}
}
