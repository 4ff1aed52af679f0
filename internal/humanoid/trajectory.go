package humanoid

import (
	"time"

	"github.com/xkilldash9x/stealthbrowse/internal/config"
)

// Rand is the source of uniform randomness in [0, 1) the planner draws from.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Sample is one pointer position of a motion path.
type Sample struct {
	// T is the curve parameter in [0, 1].
	T float64
	// Ideal is the exact point on the Bezier curve.
	Ideal Vector2D
	// Point is Ideal plus jitter; this is what gets dispatched.
	Point Vector2D
	// Pause is slept after the move is dispatched. Zero for most samples.
	Pause time.Duration
}

// Path is a planned pointer trajectory from Start to Target.
type Path struct {
	Start    Vector2D
	Control1 Vector2D
	Control2 Vector2D
	Target   Vector2D
	Samples  []Sample
}

// Plan computes a human-like trajectory ending at target. It has no side
// effects: all randomness comes from rng, so a seeded source yields the same
// path every time.
//
// The start is a random point within cfg.StartRadius of the origin, both
// control points are drawn independently per axis between start and target,
// and every sample carries up to cfg.Jitter of uniform noise per axis. Every
// cfg.PauseEvery-th sample (including the first) carries a pause drawn from
// [cfg.PauseMin, cfg.PauseMax).
func Plan(rng Rand, target Vector2D, cfg config.HumanoidConfig) Path {
	start := Vector2D{X: rng.Float64() * cfg.StartRadius, Y: rng.Float64() * cfg.StartRadius}

	steps := cfg.MinSteps + int(rng.Float64()*float64(cfg.StepSpread))
	if steps < 1 {
		steps = 1
	}

	span := target.Sub(start)
	cp1 := start.Add(span.Scale(Vector2D{X: rng.Float64(), Y: rng.Float64()}))
	cp2 := start.Add(span.Scale(Vector2D{X: rng.Float64(), Y: rng.Float64()}))

	path := Path{
		Start:    start,
		Control1: cp1,
		Control2: cp2,
		Target:   target,
		Samples:  make([]Sample, 0, steps+1),
	}

	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		ideal := cubicBezier(start, cp1, cp2, target, t)
		if i == steps {
			// Pin the endpoint so float error never leaves it off target.
			ideal = target
		}

		jitter := Vector2D{
			X: (rng.Float64() - 0.5) * 2 * cfg.Jitter,
			Y: (rng.Float64() - 0.5) * 2 * cfg.Jitter,
		}

		sample := Sample{T: t, Ideal: ideal, Point: ideal.Add(jitter)}
		if cfg.PauseEvery > 0 && i%cfg.PauseEvery == 0 {
			sample.Pause = randomDuration(rng, cfg.PauseMin, cfg.PauseMax)
		}
		path.Samples = append(path.Samples, sample)
	}

	return path
}

// randomDuration draws uniformly from [lo, hi). It returns lo when the range is empty.
func randomDuration(rng Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Float64()*float64(hi-lo))
}
