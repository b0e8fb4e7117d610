package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nordic-credit/registry-cli/internal/etl"
)

var etlRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full ETL pipeline",
	Long: `Run the extract-reconcile-load pipeline.

Reads the organisation number file, queries the registry API concurrently,
merges the results with the reference dataset, and bulk-upserts the snapshot
into the companies table. Each execution is recorded in etl_runs and in the
run-outcome document for downstream analytics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		log := zap.L().With(zap.String("command", "etl.run"))

		pool, err := etlPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		// Ensure the schema exists before writing.
		if err := etl.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "etl run: migrate")
		}

		log.Info("starting pipeline",
			zap.String("id_file", cfg.Input.IDFile),
			zap.String("reference_file", cfg.Input.ReferenceFile),
			zap.Int("workers", cfg.Registry.WorkerCount),
		)

		outcome, err := etl.New(pool, cfg).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "etl run")
		}

		fmt.Printf("Pipeline complete: %d companies processed in %.1fs\n",
			outcome.Processed, outcome.ExecutionSeconds)
		return nil
	},
}

func init() {
	etlCmd.AddCommand(etlRunCmd)
}
