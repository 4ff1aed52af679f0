package cmd

import (
	"context"
	"time"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stealthbrowse/internal/batch"
	"github.com/xkilldash9x/stealthbrowse/internal/browser/cdp"
	"github.com/xkilldash9x/stealthbrowse/internal/config"
	"github.com/xkilldash9x/stealthbrowse/internal/humanoid"
	"github.com/xkilldash9x/stealthbrowse/internal/results"
	"github.com/xkilldash9x/stealthbrowse/internal/session"
	"github.com/xkilldash9x/stealthbrowse/internal/store"
)

// Executor runs parsed commands. *batch.Interpreter implements it.
type Executor interface {
	RunTrace(ctx context.Context, cmds []batch.Command) ([]batch.Result, error)
	Execute(ctx context.Context, cmd batch.Command) (batch.Result, error)
}

// History records and lists runs. *store.Store implements it.
type History interface {
	SaveRun(ctx context.Context, r store.Run) error
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

var (
	_ Executor = (*batch.Interpreter)(nil)
	_ History  = (*store.Store)(nil)
)

// dependencies are the factories commands use to reach the outside world.
type dependencies struct {
	newExecutor func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Executor, error)
	openHistory func(ctx context.Context, url string, logger *zap.Logger) (History, func(), error)
}

func defaultDependencies() dependencies {
	return dependencies{
		newExecutor: newBrowserExecutor,
		openHistory: openStore,
	}
}

// newBrowserExecutor wires the CDP driver, session manager and motion
// synthesizer into an interpreter.
func newBrowserExecutor(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Executor, error) {
	driver := cdp.NewDriver(logger, cfg.Browser().Stealth)
	sessions := session.NewManager(driver, cfg.Browser(), logger)
	motion := humanoid.New(cfg.Humanoid(), logger)
	return batch.NewInterpreter(sessions, motion, cfg.Batch(), sessions.DefaultOptions(), logger), nil
}

func openStore(ctx context.Context, url string, logger *zap.Logger) (History, func(), error) {
	s, closeFn, err := store.Connect(ctx, url, logger)
	if err != nil {
		return nil, nil, err
	}
	return s, closeFn, nil
}

// invocation tracks one CLI run from start to the persisted result.
type invocation struct {
	id       string
	started  time.Time
	commands int
	logger   *zap.Logger
}

// finish prints res, stores it in the result file and, with a database
// configured, records the run. Only printing can fail the command.
func (a *app) finish(cmd *cobra.Command, inv invocation, trace []batch.Result, res batch.Result) error {
	out, err := batch.Marshal(res, true)
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(append(out, '\n')); err != nil {
		return err
	}

	if path := a.cfg.Batch().ResultFile; path != "" {
		if err := results.Write(path, res); err != nil {
			inv.logger.Warn("Failed to write result file", zap.String("path", path), zap.Error(err))
		}
	}

	a.record(cmd.Context(), inv, trace, res)
	return nil
}

func (a *app) record(ctx context.Context, inv invocation, trace []batch.Result, res batch.Result) {
	url := a.cfg.Database().URL
	if url == "" {
		return
	}
	// The run is over; a canceled invocation still gets recorded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	history, closeFn, err := a.deps.openHistory(ctx, url, inv.logger)
	if err != nil {
		inv.logger.Warn("Run history unavailable", zap.Error(err))
		return
	}
	defer closeFn()

	payload, err := batch.Marshal(res, false)
	if err != nil {
		inv.logger.Warn("Failed to encode run result", zap.Error(err))
		return
	}
	run := store.Run{
		ID:         inv.id,
		StartedAt:  inv.started,
		FinishedAt: time.Now(),
		Commands:   inv.commands,
		Steps:      len(trace),
		Failed:     batch.Failed(trace),
		Result:     json.RawMessage(payload),
	}
	if err := history.SaveRun(ctx, run); err != nil {
		inv.logger.Warn("Failed to record run", zap.String("run_id", inv.id), zap.Error(err))
	}
}
