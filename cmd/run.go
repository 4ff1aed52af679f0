package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stealthbrowse/internal/batch"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <json>",
		Short: "Run a batch given inline as a JSON array of commands",
		Example: `  browse run '[["open","https://example.com"],["tryClick","#accept"],["snapshot"]]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, []byte(args[0]))
		},
	}
}

func newRunFileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "run-file <path>",
		Aliases: []string{"runFile"},
		Short:   "Run a batch read from a JSON file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := homedir.Expand(args[0])
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read batch file: %w", err)
			}
			return a.runBatch(cmd, raw)
		},
	}
}

// runBatch parses and runs raw. A malformed batch is reported as a trace
// holding one failing Result, so it is printed and stored like any other.
func (a *app) runBatch(cmd *cobra.Command, raw []byte) error {
	ctx := cmd.Context()
	inv := a.newInvocation()

	var trace []batch.Result
	cmds, err := batch.Parse(raw)
	if err != nil {
		inv.logger.Info("Rejected malformed batch", zap.Error(err))
		trace = []batch.Result{{OK: false, Error: err.Error()}}
	} else {
		inv.commands = len(cmds)
		exec, err := a.deps.newExecutor(ctx, a.cfg, inv.logger)
		if err != nil {
			return err
		}
		inv.logger.Info("Running batch", zap.Int("commands", len(cmds)))
		if trace, err = exec.RunTrace(ctx, cmds); err != nil {
			return err
		}
	}

	res, err := batch.Aggregate(trace)
	if err != nil {
		return err
	}
	return a.finish(cmd, inv, trace, res)
}

func (a *app) newInvocation() invocation {
	id := uuid.NewString()
	return invocation{
		id:      id,
		started: time.Now(),
		logger:  a.logger.With(zap.String("run_id", id)),
	}
}
