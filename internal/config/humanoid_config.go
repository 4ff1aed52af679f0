// File: internal/config/humanoid_config.go
// This file defines the HumanoidConfig struct, which contains the tunable
// parameters of the pointer motion synthesizer: where a synthetic move starts,
// how many samples it has, how much the cursor jitters, the pauses
// inserted during and after a move, and the rhythm of typed keys.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// HumanoidConfig holds the parameters for human-like pointer movement.
type HumanoidConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// -- Trajectory --
	// StartRadius bounds the random start offset from the viewport origin.
	StartRadius float64 `mapstructure:"start_radius" yaml:"start_radius"`
	MinSteps    int     `mapstructure:"min_steps" yaml:"min_steps"`
	// StepSpread is the width of the random range added to MinSteps.
	StepSpread int `mapstructure:"step_spread" yaml:"step_spread"`
	// Jitter is the maximum per-axis deviation added to each sample.
	Jitter float64 `mapstructure:"jitter" yaml:"jitter"`

	// -- Cadence --
	PauseEvery int           `mapstructure:"pause_every" yaml:"pause_every"`
	PauseMin   time.Duration `mapstructure:"pause_min" yaml:"pause_min"`
	PauseMax   time.Duration `mapstructure:"pause_max" yaml:"pause_max"`
	SettleMin  time.Duration `mapstructure:"settle_min" yaml:"settle_min"`
	SettleMax  time.Duration `mapstructure:"settle_max" yaml:"settle_max"`

	// -- Typing --
	// KeyDelayMean and KeyDelayStdDev shape the normal distribution of
	// pauses between keystrokes; KeyDelayMin is the floor.
	KeyDelayMean   time.Duration `mapstructure:"key_delay_mean" yaml:"key_delay_mean"`
	KeyDelayStdDev time.Duration `mapstructure:"key_delay_stddev" yaml:"key_delay_stddev"`
	KeyDelayMin    time.Duration `mapstructure:"key_delay_min" yaml:"key_delay_min"`
}

func setHumanoidDefaults(v *viper.Viper) {
	v.SetDefault("browser.humanoid.enabled", true)
	v.SetDefault("browser.humanoid.start_radius", 100.0)
	v.SetDefault("browser.humanoid.min_steps", 20)
	v.SetDefault("browser.humanoid.step_spread", 10)
	v.SetDefault("browser.humanoid.jitter", 1.0)
	v.SetDefault("browser.humanoid.pause_every", 5)
	v.SetDefault("browser.humanoid.pause_min", "10ms")
	v.SetDefault("browser.humanoid.pause_max", "30ms")
	v.SetDefault("browser.humanoid.settle_min", "100ms")
	v.SetDefault("browser.humanoid.settle_max", "300ms")
	v.SetDefault("browser.humanoid.key_delay_mean", "70ms")
	v.SetDefault("browser.humanoid.key_delay_stddev", "28ms")
	v.SetDefault("browser.humanoid.key_delay_min", "35ms")
}

// DefaultHumanoidConfig returns the humanoid defaults without going through viper.
func DefaultHumanoidConfig() HumanoidConfig {
	return HumanoidConfig{
		Enabled:     true,
		StartRadius: 100,
		MinSteps:    20,
		StepSpread:  10,
		Jitter:      1,
		PauseEvery:  5,
		PauseMin:    10 * time.Millisecond,
		PauseMax:    30 * time.Millisecond,
		SettleMin:   100 * time.Millisecond,
		SettleMax:   300 * time.Millisecond,

		KeyDelayMean:   70 * time.Millisecond,
		KeyDelayStdDev: 28 * time.Millisecond,
		KeyDelayMin:    35 * time.Millisecond,
	}
}

// Validate checks the humanoid parameters for consistency.
func (h HumanoidConfig) Validate() error {
	if h.MinSteps < 1 {
		return fmt.Errorf("min_steps must be at least 1")
	}
	if h.StepSpread < 0 || h.StartRadius < 0 || h.Jitter < 0 {
		return fmt.Errorf("step_spread, start_radius and jitter cannot be negative")
	}
	if h.PauseMax < h.PauseMin {
		return fmt.Errorf("pause_max (%s) is lower than pause_min (%s)", h.PauseMax, h.PauseMin)
	}
	if h.SettleMax < h.SettleMin {
		return fmt.Errorf("settle_max (%s) is lower than settle_min (%s)", h.SettleMax, h.SettleMin)
	}
	if h.KeyDelayMean < 0 || h.KeyDelayStdDev < 0 || h.KeyDelayMin < 0 {
		return fmt.Errorf("key delays cannot be negative")
	}
	return nil
}
