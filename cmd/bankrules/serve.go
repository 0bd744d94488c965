package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/bankrules/internal/api"
	"github.com/Veraticus/bankrules/internal/certs"
	"github.com/Veraticus/bankrules/internal/scheduler"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	var noScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the bulk run scheduler",
		Long: `Serve the bank rules API and, unless disabled, run the bulk pass on the
scheduler.schedule cron expression in scheduler.timezone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			engine := newEngine(store, cfg)

			if cfg.Scheduler.Enabled && !noScheduler {
				sched, schedErr := scheduler.New(scheduler.Config{
					Schedule:    cfg.Scheduler.Schedule,
					Location:    cfg.Scheduler.Location.String(),
					BankAccount: cfg.Scheduler.BankAccount,
				}, engine, store, slog.Default())
				if schedErr != nil {
					return schedErr
				}
				sched.Start(ctx)
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
					defer cancel()
					if stopErr := sched.Stop(stopCtx); stopErr != nil {
						slog.Warn("scheduler did not stop cleanly", "error", stopErr)
					}
				}()
			}

			server := api.NewServer(engine, store, slog.Default())
			if cfg.Server.TLS {
				manager := certs.NewFileManager(cfg.Server.CertDir, cfg.Server.TLSHosts...)
				cert, certErr := manager.GetOrCreateCertificate()
				if certErr != nil {
					return fmt.Errorf("tls certificate: %w", certErr)
				}
				slog.Info("serving over https", "certificate", manager.CertFile())
				server.UseTLS(certs.TLSConfig(cert))
			}
			err = server.ListenAndServe(ctx, cfg.Server.Address, cfg.Server.ShutdownTimeout)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("api server: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "listen address (default from server.address)")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without the scheduler")
	_ = viper.BindPFlag("server.address", cmd.Flags().Lookup("addr"))
	return cmd
}
