package cmd

import (
	"context"
	"fmt"

	"github.com/paycrest/e2e/config"
	"github.com/paycrest/e2e/services/healthcheck"
	"github.com/paycrest/e2e/storage"
	"github.com/spf13/cobra"
)

func newHealthcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck <token>",
		Short: "Reconcile one transaction across the ledger and the business layer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			conf := config.DatabaseConfig()

			coreDB, err := storage.DBConnection(ctx, conf.CoreDSN, conf)
			if err != nil {
				return err
			}
			defer coreDB.Close()

			businessDB, err := storage.DBConnection(ctx, conf.BusinessDSN, conf)
			if err != nil {
				return err
			}
			defer businessDB.Close()

			checker := healthcheck.NewChecker(storage.NewCoreRepository(coreDB), storage.NewBusinessRepository(businessDB))
			return runHealthcheck(ctx, cmd, checker, args[0])
		},
	}
}

func runHealthcheck(ctx context.Context, cmd *cobra.Command, checker *healthcheck.Checker, token string) error {
	result, err := checker.BasicHealthcheck(ctx, token)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.String())
	return result.Err()
}
