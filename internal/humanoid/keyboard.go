package humanoid

import (
	"context"
	"strings"
	"time"
)

// commonNgrams are letter sequences practiced typists hit faster than
// average.
var commonNgrams = map[string]bool{
	"th": true, "he": true, "in": true, "er": true, "an": true, "re": true,
	"es": true, "on": true, "st": true, "nt": true,
	"the": true, "and": true, "ing": true, "ion": true, "tio": true,
}

// ngramFactor shortens the delay before text[i] when it completes a common
// trigram or digram.
func ngramFactor(text []rune, i int) float64 {
	if i <= 0 || i >= len(text) {
		return 1
	}
	if i >= 2 && commonNgrams[strings.ToLower(string(text[i-2:i+1]))] {
		return 0.55
	}
	if commonNgrams[strings.ToLower(string(text[i-1:i+1]))] {
		return 0.7
	}
	return 1
}

// KeyDelay draws the pause taken before typing text[i]: a normal sample
// around the configured mean, floored, and scaled down inside common n-grams.
func (h *Humanoid) KeyDelay(text []rune, i int) time.Duration {
	factor := ngramFactor(text, i)
	mean := float64(h.cfg.KeyDelayMean) * factor
	floor := float64(h.cfg.KeyDelayMin) * factor

	h.mu.Lock()
	d := h.rng.NormFloat64()*float64(h.cfg.KeyDelayStdDev) + mean
	h.mu.Unlock()

	if d < floor {
		d = floor
	}
	return time.Duration(d)
}

// KeyPause sleeps the inter-key delay before text[i]. The first key is typed
// without delay.
func (h *Humanoid) KeyPause(ctx context.Context, text []rune, i int) error {
	if !h.cfg.Enabled || i == 0 {
		return ctx.Err()
	}
	return h.sleep(ctx, h.KeyDelay(text, i))
}
