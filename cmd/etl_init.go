package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nordic-credit/registry-cli/internal/etl"
)

var etlInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database schema",
	Long:  "Applies the embedded schema migrations: companies table, etl_runs audit table, and the dashboard_companies read view.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("init"); err != nil {
			return err
		}

		pool, err := etlPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := etl.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "etl init")
		}

		fmt.Println("Schema is up to date")
		return nil
	},
}

func init() {
	etlCmd.AddCommand(etlInitCmd)
}
