package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "history",
		Short: "Show recent snipe runs recorded in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			ctx := context.Background()
			repo, closeDB, err := a.openHistory(ctx, false)
			if err != nil {
				return err
			}
			defer closeDB()
			if repo == nil {
				return errors.New("history needs DATABASE_URL or [database] url")
			}
			runs, err := repo.Recent(ctx, limit)
			if err != nil {
				return err
			}
			return writeRuns(cmd.OutOrStdout(), runs)
		},
	}
	c.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return c
}
