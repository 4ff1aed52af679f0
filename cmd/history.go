package cmd

import (
	"errors"
	"fmt"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var errNoDatabase = errors.New("run history needs database.url (or DATABASE_URL) to be set")

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := a.cfg.Database().URL
			if url == "" {
				return errNoDatabase
			}
			history, closeFn, err := a.deps.openHistory(cmd.Context(), url, a.logger)
			if err != nil {
				return err
			}
			defer closeFn()

			runs, err := history.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(runs, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode runs: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list")
	return cmd
}
