package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/stealthbrowse/internal/observability"
)

func newLogsCmd(a *app) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Logger().LogFile
			if path == "" {
				return errors.New("logging to a file is disabled (logger.log_file is empty)")
			}
			return observability.FollowLog(cmd.Context(), path, follow, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new lines until interrupted")
	return cmd
}
