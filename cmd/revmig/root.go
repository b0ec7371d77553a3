package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/daarxwalker/revmig"
)

var (
	dsn         string
	stepsDir    string
	table       string
	lockTimeout time.Duration
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "revmig",
		Short:         "Apply and revert predecessor-chained schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", os.Getenv("REVMIG_DSN"), "Postgres connection string (env REVMIG_DSN)")
	cmd.PersistentFlags().StringVar(&stepsDir, "dir", "migrations", "directory of step definition files")
	cmd.PersistentFlags().StringVar(&table, "table", "revmig_revisions", "applied-state table name")
	cmd.PersistentFlags().DurationVar(&lockTimeout, "lock-timeout", 10*time.Second, "bounded wait for the migration lock")
	cmd.AddCommand(
		newUpgradeCmd(),
		newDowngradeCmd(),
		newCurrentCmd(),
		newHistoryCmd(),
	)
	return cmd
}

func newEngine(cmd *cobra.Command) (*revmig.Revmig, func(), error) {
	if dsn == "" {
		return nil, nil, fmt.Errorf("no DSN configured, set --dsn or REVMIG_DSN")
	}
	ctx := cmd.Context()
	pool, connectErr := pgxpool.New(ctx, dsn)
	if connectErr != nil {
		return nil, nil, fmt.Errorf("connect failed: %w", connectErr)
	}
	engine, newErr := revmig.New(
		ctx,
		revmig.WithDB(pool),
		revmig.WithFS(os.DirFS(stepsDir)),
		revmig.WithTable(table),
		revmig.WithLockTimeout(lockTimeout),
	)
	if newErr != nil {
		pool.Close()
		return nil, nil, newErr
	}
	return engine, pool.Close, nil
}
