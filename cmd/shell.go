package cmd

import (
	"context"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stealthbrowse/internal/config"
	"github.com/xkilldash9x/stealthbrowse/internal/observability"
)

// Shell hands out command trees that share one executor, so the browser
// connection and the current tab carry over from one line to the next.
// Flags and config are still resolved per line; browser settings are taken
// from the line that first needed the browser.
type Shell struct {
	mu   sync.Mutex
	exec Executor
	deps dependencies
}

// NewShell creates a shell wired to a real browser.
func NewShell() *Shell {
	return newShell(defaultDependencies())
}

func newShell(deps dependencies) *Shell {
	s := &Shell{}
	build := deps.newExecutor
	deps.newExecutor = func(ctx context.Context, cfg *config.Config, _ *zap.Logger) (Executor, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.exec != nil {
			return s.exec, nil
		}
		// Per-line loggers carry a run id; the shared executor outlives it.
		exec, err := build(ctx, cfg, observability.GetLogger())
		if err != nil {
			return nil, err
		}
		s.exec = exec
		return exec, nil
	}
	s.deps = deps
	return s
}

// NewRootCommand builds a fresh command tree for one line of input.
func (s *Shell) NewRootCommand() *cobra.Command {
	return newRootCommand(s.deps)
}
