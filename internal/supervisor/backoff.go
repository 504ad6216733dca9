package supervisor

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig holds the configuration for exponential backoff.
type BackoffConfig struct {
	Initial    time.Duration // first delay
	Max        time.Duration // delay cap
	Multiplier float64       // growth per attempt
	JitterPct  float64       // jitter as a fraction of the delay (0.4 = ±20%)
}

// DefaultBackoffConfig returns the readiness probe schedule.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    10 * time.Millisecond,
		Max:        250 * time.Millisecond,
		Multiplier: 1.7,
		JitterPct:  0.4,
	}
}

// IdleBackoffConfig returns a jitter-free doubling schedule from initial
// to max, used by stream monitors while waiting for the next line.
func IdleBackoffConfig(initial, max time.Duration) BackoffConfig {
	return BackoffConfig{
		Initial:    initial,
		Max:        max,
		Multiplier: 2,
	}
}

// Backoff calculates exponential backoff delays with optional jitter.
// Not safe for concurrent use; each waiter owns its Backoff.
type Backoff struct {
	config   BackoffConfig
	attempts int
	rng      *rand.Rand
}

// NewBackoff creates a Backoff. The seed makes jitter deterministic.
func NewBackoff(seed int64, cfg BackoffConfig) *Backoff {
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	return &Backoff{
		config: cfg,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Next returns the next delay and increments the attempt counter.
func (b *Backoff) Next() time.Duration {
	delay := b.Calculate()
	b.attempts++
	return delay
}

// Calculate returns the current delay without incrementing attempts.
func (b *Backoff) Calculate() time.Duration {
	delay := float64(b.config.Initial) * math.Pow(b.config.Multiplier, float64(b.attempts))
	if delay > float64(b.config.Max) || math.IsInf(delay, 0) {
		delay = float64(b.config.Max)
	}

	if b.config.JitterPct > 0 {
		jitterRange := delay * b.config.JitterPct
		delay += jitterRange*b.rng.Float64() - jitterRange/2
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Reset resets the attempt counter to zero.
func (b *Backoff) Reset() {
	b.attempts = 0
}

// Attempts returns the current attempt count.
func (b *Backoff) Attempts() int {
	return b.attempts
}

// Config returns the effective configuration.
func (b *Backoff) Config() BackoffConfig {
	return b.config
}
