// Filename: internal/humanoid/trajectory_test.go
package humanoid

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/stealthbrowse/internal/config"
	"pgregory.net/rapid"
)

const eps = 1e-9

// constRand always returns the same value.
type constRand float64

func (c constRand) Float64() float64 { return float64(c) }

func bounds(points ...Vector2D) (lo, hi Vector2D) {
	lo = Vector2D{X: math.Inf(1), Y: math.Inf(1)}
	hi = Vector2D{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, p := range points {
		lo.X, lo.Y = math.Min(lo.X, p.X), math.Min(lo.Y, p.Y)
		hi.X, hi.Y = math.Max(hi.X, p.X), math.Max(hi.Y, p.Y)
	}
	return lo, hi
}

func TestPlan_DeterministicMidpoints(t *testing.T) {
	cfg := config.DefaultHumanoidConfig()
	path := Plan(constRand(0.5), Vector2D{X: 650, Y: 450}, cfg)

	assert.Equal(t, Vector2D{X: 50, Y: 50}, path.Start)
	// 20 + floor(0.5 * 10) steps, inclusive of both ends.
	require.Len(t, path.Samples, 26)
	assert.Equal(t, Vector2D{X: 350, Y: 250}, path.Control1)
	assert.Equal(t, path.Control1, path.Control2)

	for _, s := range path.Samples {
		// (0.5 - 0.5) * 2 is no jitter at all.
		assert.Equal(t, s.Ideal, s.Point)
	}
	assert.Equal(t, path.Start, path.Samples[0].Point)
	assert.Equal(t, Vector2D{X: 650, Y: 450}, path.Samples[25].Point)
}

func TestPlan_PauseCadence(t *testing.T) {
	cfg := config.DefaultHumanoidConfig()
	path := Plan(rand.New(rand.NewSource(7)), Vector2D{X: 300, Y: 200}, cfg)

	for i, s := range path.Samples {
		if i%5 == 0 {
			assert.GreaterOrEqual(t, s.Pause, 10*time.Millisecond, "sample %d", i)
			assert.Less(t, s.Pause, 30*time.Millisecond, "sample %d", i)
		} else {
			assert.Zero(t, s.Pause, "sample %d", i)
		}
	}
}

func TestPlan_NoPausesWhenDisabled(t *testing.T) {
	cfg := config.DefaultHumanoidConfig()
	cfg.PauseEvery = 0
	path := Plan(rand.New(rand.NewSource(1)), Vector2D{X: 10, Y: 10}, cfg)

	for _, s := range path.Samples {
		assert.Zero(t, s.Pause)
	}
}

func TestPlan_Properties(t *testing.T) {
	cfg := config.DefaultHumanoidConfig()

	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		target := Vector2D{
			X: rapid.Float64Range(-2000, 4000).Draw(t, "x"),
			Y: rapid.Float64Range(-2000, 4000).Draw(t, "y"),
		}

		path := Plan(rand.New(rand.NewSource(seed)), target, cfg)
		n := len(path.Samples)

		// Step count is drawn from [20, 30), plus the t=0 sample.
		if n < 21 || n > 30 {
			t.Fatalf("unexpected sample count %d", n)
		}

		// Endpoint: the unjittered final point is the target, and the emitted
		// point is within the jitter bound of it.
		last := path.Samples[n-1]
		if last.Ideal != target {
			t.Fatalf("final ideal point %v != target %v", last.Ideal, target)
		}
		if math.Abs(last.Point.X-target.X) > cfg.Jitter+eps || math.Abs(last.Point.Y-target.Y) > cfg.Jitter+eps {
			t.Fatalf("final point %v outside jitter bound of %v", last.Point, target)
		}

		// Start near the origin corner.
		if path.Start.X < 0 || path.Start.X >= cfg.StartRadius || path.Start.Y < 0 || path.Start.Y >= cfg.StartRadius {
			t.Fatalf("start %v outside [0, %v)", path.Start, cfg.StartRadius)
		}

		lo, hi := bounds(path.Start, path.Control1, path.Control2, path.Target)
		prevT := -1.0
		for i, s := range path.Samples {
			if s.T <= prevT {
				t.Fatalf("sample %d: T=%v not strictly increasing (prev %v)", i, s.T, prevT)
			}
			prevT = s.T

			if d := s.Point.Sub(s.Ideal); math.Abs(d.X) > cfg.Jitter+eps || math.Abs(d.Y) > cfg.Jitter+eps {
				t.Fatalf("sample %d: jitter %v exceeds %v", i, d, cfg.Jitter)
			}

			// The curve stays in the hull of its control polygon, so only
			// jitter can push a sample outside the bounding box.
			if s.Ideal.X < lo.X-eps || s.Ideal.X > hi.X+eps || s.Ideal.Y < lo.Y-eps || s.Ideal.Y > hi.Y+eps {
				t.Fatalf("sample %d: ideal %v outside [%v, %v]", i, s.Ideal, lo, hi)
			}
			if s.Point.X < lo.X-cfg.Jitter-eps || s.Point.X > hi.X+cfg.Jitter+eps {
				t.Fatalf("sample %d: point %v overshoots", i, s.Point)
			}
		}
		if path.Samples[0].T != 0 || last.T != 1 {
			t.Fatalf("parametrization must span [0, 1], got [%v, %v]", path.Samples[0].T, last.T)
		}
	})
}

func TestCubicBezier_Endpoints(t *testing.T) {
	p0 := Vector2D{X: 1, Y: 2}
	p1 := Vector2D{X: 10, Y: -4}
	p2 := Vector2D{X: -3, Y: 8}
	p3 := Vector2D{X: 7, Y: 7}

	assert.Equal(t, p0, cubicBezier(p0, p1, p2, p3, 0))
	assert.Equal(t, p3, cubicBezier(p0, p1, p2, p3, 1))
}

func TestRandomDuration(t *testing.T) {
	assert.Equal(t, 10*time.Millisecond, randomDuration(constRand(0), 10*time.Millisecond, 30*time.Millisecond))
	assert.Equal(t, 20*time.Millisecond, randomDuration(constRand(0.5), 10*time.Millisecond, 30*time.Millisecond))
	assert.Equal(t, 5*time.Millisecond, randomDuration(constRand(0.9), 5*time.Millisecond, 5*time.Millisecond))
}
