package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/stealthbrowse/internal/browser"
	"github.com/xkilldash9x/stealthbrowse/internal/config"
	"github.com/xkilldash9x/stealthbrowse/internal/humanoid"
	"github.com/xkilldash9x/stealthbrowse/internal/session"
)

// Sessions is the session handle the interpreter drives. *session.Manager
// implements it.
type Sessions interface {
	Acquire(ctx context.Context, opts session.Options) (browser.Page, error)
	Current() (browser.Page, error)
	Peek() browser.Page
	NewTab(ctx context.Context, url string, navTimeout time.Duration) (browser.Page, error)
	SwitchTab(ctx context.Context, x string) (browser.Page, error)
	CloseTab(ctx context.Context) (browser.Page, error)
	Close(ctx context.Context)
}

// Motion disguises pointer jumps and keystroke timing. *humanoid.Humanoid
// implements it.
type Motion interface {
	MoveTo(ctx context.Context, p humanoid.Pointer, x, y float64) error
	Settle(ctx context.Context) error
	KeyPause(ctx context.Context, text []rune, i int) error
}

var (
	_ Sessions = (*session.Manager)(nil)
	_ Motion   = (*humanoid.Humanoid)(nil)
)

// Interpreter runs commands against one session, halting at the first
// failure.
type Interpreter struct {
	sessions Sessions
	motion   Motion
	cfg      config.BatchConfig
	opts     session.Options
	logger   *zap.Logger
	limiter  *rate.Limiter
	sleep    humanoid.SleepFunc
}

// NewInterpreter creates an interpreter. opts are used whenever a command
// has to acquire the session.
func NewInterpreter(sessions Sessions, motion Motion, cfg config.BatchConfig, opts session.Options, logger *zap.Logger) *Interpreter {
	in := &Interpreter{
		sessions: sessions,
		motion:   motion,
		cfg:      cfg,
		opts:     opts,
		logger:   logger.Named("batch"),
		sleep:    humanoid.Sleep,
	}
	if cfg.CommandRate > 0 {
		in.limiter = rate.NewLimiter(rate.Limit(cfg.CommandRate), 1)
	}
	return in
}

// Run executes cmds and wraps the trace into the aggregate Result.
func (in *Interpreter) Run(ctx context.Context, cmds []Command) (Result, error) {
	trace, err := in.RunTrace(ctx, cmds)
	if err != nil {
		return Result{}, err
	}
	return Aggregate(trace)
}

// RunTrace executes cmds in order and returns one Result per executed
// command. It stops after the first ok=false Result. The error is non-nil
// only when a browser could not be launched.
func (in *Interpreter) RunTrace(ctx context.Context, cmds []Command) ([]Result, error) {
	trace := make([]Result, 0, len(cmds))
	acquired := false

	for i, cmd := range cmds {
		logger := in.logger.With(zap.Int("step", i), zap.String("command", cmd.Name()))

		if err := in.pace(ctx, cmd); err != nil {
			trace = append(trace, failure(err))
			logger.Debug("Batch interrupted while pacing", zap.Error(err))
			break
		}

		if !acquired && in.cfg.AutoAcquire && needsPage(cmd) {
			acquired = true
			if _, err := in.sessions.Acquire(ctx, in.opts); err != nil {
				if errors.Is(err, session.ErrLaunch) {
					return trace, err
				}
				logger.Debug("Session acquisition failed", zap.Error(err))
			}
		}

		res, err := in.execute(ctx, cmd)
		if err != nil {
			return trace, err
		}
		trace = append(trace, res)

		if !res.OK {
			logger.Info("Batch halted on failing command", zap.String("error", res.Error))
			break
		}
		logger.Debug("Command completed")
	}
	return trace, nil
}

// Execute runs a single command, acquiring the session first when the
// command needs a page and auto-acquire is on. A standalone wait also
// acquires, so it reports the page it waited on.
func (in *Interpreter) Execute(ctx context.Context, cmd Command) (Result, error) {
	_, isWait := cmd.(Wait)
	if in.cfg.AutoAcquire && (needsPage(cmd) || isWait) {
		if _, err := in.sessions.Acquire(ctx, in.opts); err != nil {
			if errors.Is(err, session.ErrLaunch) {
				return Result{}, err
			}
			in.logger.Debug("Session acquisition failed", zap.Error(err))
		}
	}
	return in.execute(ctx, cmd)
}

func (in *Interpreter) pace(ctx context.Context, cmd Command) error {
	if in.limiter == nil {
		return nil
	}
	if _, ok := cmd.(Comment); ok {
		return nil
	}
	if err := in.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("command pacing interrupted: %w", err)
	}
	return nil
}

// execute dispatches cmd. Faults become failing Results; only a launch
// failure is returned as an error.
func (in *Interpreter) execute(ctx context.Context, cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case Open:
		return in.open(ctx, c)
	case Snapshot:
		return in.snapshot(ctx), nil
	case Screenshot:
		return in.screenshot(ctx, c), nil
	case Click:
		return in.click(ctx, c), nil
	case TypeText:
		return in.typeText(ctx, c), nil
	case GetText:
		return in.getText(ctx, c), nil
	case Press:
		return in.press(ctx, c), nil
	case KeyboardType:
		return in.keyboardType(ctx, c), nil
	case NewTab:
		return in.newTab(ctx, c)
	case SwitchTab:
		return in.switchTab(ctx, c), nil
	case CloseTab:
		return in.closeTab(ctx), nil
	case CloseSession:
		in.sessions.Close(ctx)
		return Result{OK: true}, nil
	case Wait:
		return in.wait(ctx, c), nil
	case Evaluate:
		return in.evaluate(ctx, c), nil
	case Upload:
		return in.upload(ctx, c), nil
	case Comment:
		return Result{OK: true}, nil
	}
	return failuref("%v: %s", ErrUnknownCommand, cmd.Name()), nil
}

// withTimeout bounds ctx by d; a non-positive d leaves it unbounded.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
