package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Company-registry ETL pipeline",
	Long:  "Runs the extract-reconcile-load pipeline against the companies table and inspects its run history.",
}

func init() {
	rootCmd.AddCommand(etlCmd)
}

// etlPool creates a pgxpool.Pool for the pipeline from store.database_url.
func etlPool(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := cfg.Store.DatabaseURL
	if dsn == "" {
		return nil, eris.New("etl: no database_url configured (set store.database_url)")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "etl: create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "etl: ping database")
	}

	fmt.Println("Connected to database")
	return pool, nil
}
