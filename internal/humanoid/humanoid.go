// -- internal/humanoid/humanoid.go --
package humanoid

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/xkilldash9x/stealthbrowse/internal/config"
	"go.uber.org/zap"
)

// Pointer is the low-level capability the synthesizer drives. Browser pages
// implement it by dispatching a CDP mouseMoved event.
type Pointer interface {
	MouseMove(ctx context.Context, x, y float64) error
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Humanoid executes planned pointer trajectories.
type Humanoid struct {
	cfg    config.HumanoidConfig
	logger *zap.Logger

	// mu guards rng, which is not safe for concurrent use.
	mu    sync.Mutex
	rng   *rand.Rand
	sleep SleepFunc
}

// New creates a Humanoid seeded from the clock.
func New(cfg config.HumanoidConfig, logger *zap.Logger) *Humanoid {
	return &Humanoid{
		cfg:    cfg,
		logger: logger.Named("humanoid"),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  Sleep,
	}
}

// Enabled reports whether motion synthesis is active.
func (h *Humanoid) Enabled() bool {
	return h.cfg.Enabled
}

// MoveTo plans a trajectory to (x, y) and replays it on p, pausing where the
// plan says to. It returns early with the context error if ctx is done.
func (h *Humanoid) MoveTo(ctx context.Context, p Pointer, x, y float64) error {
	if !h.cfg.Enabled {
		return nil
	}

	h.mu.Lock()
	path := Plan(h.rng, Vector2D{X: x, Y: y}, h.cfg)
	h.mu.Unlock()

	h.logger.Debug("Replaying pointer path.",
		zap.Float64("x", x),
		zap.Float64("y", y),
		zap.Int("samples", len(path.Samples)),
	)

	for i, s := range path.Samples {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.MouseMove(ctx, s.Point.X, s.Point.Y); err != nil {
			return fmt.Errorf("pointer move %d/%d failed: %w", i+1, len(path.Samples), err)
		}
		if s.Pause > 0 {
			if err := h.sleep(ctx, s.Pause); err != nil {
				return err
			}
		}
	}
	return nil
}

// Settle sleeps the short pause taken between arriving at a target and
// acting on it.
func (h *Humanoid) Settle(ctx context.Context) error {
	if !h.cfg.Enabled {
		return nil
	}
	h.mu.Lock()
	d := randomDuration(h.rng, h.cfg.SettleMin, h.cfg.SettleMax)
	h.mu.Unlock()
	return h.sleep(ctx, d)
}

// Sleep is a context-aware time.Sleep.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
