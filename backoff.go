package crudclient

import (
	"math"
	"time"

	"github.com/sethvargo/go-retry"
)

// newBackoff returns the delay policy for one call: at most retries delays of
// InitialDelay * Multiplier^n, each capped at MaxDelay. The policy is stateful,
// so every call needs its own.
func newBackoff(cfg Config, retries int) retry.Backoff {
	if retries < 0 {
		retries = 0
	}
	return retry.WithMaxRetries(
		uint64(retries), // #nosec G115 - bounds checked above
		cappedExponential(cfg),
	)
}

// cappedExponential yields a non-decreasing, unbounded sequence of delays.
// No jitter is added, so successive delays never shrink.
func cappedExponential(cfg Config) retry.Backoff {
	multiplier := cfg.Multiplier
	if multiplier < 1 {
		multiplier = 2.0
	}
	initial := cfg.InitialDelay
	if initial < 0 {
		initial = 0
	}
	ceiling := cfg.MaxDelay
	if ceiling < initial {
		ceiling = initial
	}

	attempt := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		delay := float64(initial) * math.Pow(multiplier, float64(attempt))
		attempt++
		if delay > float64(ceiling) || math.IsInf(delay, 0) || math.IsNaN(delay) {
			return ceiling, false
		}
		return time.Duration(delay), false
	})
}

// BackoffSchedule returns the first n delays the executor would wait between
// attempts under cfg.
func BackoffSchedule(cfg Config, n int) []time.Duration {
	if n <= 0 {
		return nil
	}
	b := cappedExponential(cfg)
	out := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		d, _ := b.Next()
		out = append(out, d)
	}
	return out
}
