package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

const (
	defaultMaxRetries   = 3
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 60 * time.Second
	defaultJitterLow    = 0.5
	defaultJitterHigh   = 1.5
)

// BackoffPolicy controls how rate-limited calls are retried: the number
// of retries and the shape of the exponential delay between them.
type BackoffPolicy struct {
	// MaxRetries is the number of retries after the first attempt, so a
	// call makes at most MaxRetries+1 attempts. Zero disables retrying.
	MaxRetries int

	// InitialDelay is the base delay before the first retry. Each
	// further retry doubles it.
	InitialDelay time.Duration

	// MaxDelay caps the exponential growth. The cap applies before
	// jitter, so a jitter factor above 1 can still push a single wait
	// past it.
	MaxDelay time.Duration

	// JitterLow and JitterHigh bound the random factor multiplied into
	// every delay. Equal values make delays deterministic.
	JitterLow  float64
	JitterHigh float64
}

// DefaultBackoff returns the policy used when WithBackoff is not given:
// 3 retries from 500ms up to 60s, jittered by a factor in [0.5, 1.5).
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		MaxRetries:   defaultMaxRetries,
		InitialDelay: defaultInitialDelay,
		MaxDelay:     defaultMaxDelay,
		JitterLow:    defaultJitterLow,
		JitterHigh:   defaultJitterHigh,
	}
}

// Validate reports whether the policy is usable.
func (p BackoffPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return errors.New("MaxRetries must be >= 0")
	}
	if p.InitialDelay <= 0 {
		return errors.New("InitialDelay must be > 0")
	}
	if p.MaxDelay < p.InitialDelay {
		return errors.New("MaxDelay must be >= InitialDelay")
	}
	if p.JitterLow < 0 {
		return errors.New("JitterLow must be >= 0")
	}
	if p.JitterHigh < p.JitterLow {
		return errors.New("JitterHigh must be >= JitterLow")
	}
	return nil
}

// Delay computes the wait after the given failed attempt (1-indexed):
// min(MaxDelay, InitialDelay*2^(attempt-1)) scaled by a jitter factor
// drawn uniformly from [JitterLow, JitterHigh).
func (p BackoffPolicy) Delay(attempt int, rng *rand.Rand) time.Duration {
	base := math.Min(
		p.MaxDelay.Seconds(),
		p.InitialDelay.Seconds()*math.Pow(2, float64(attempt-1)),
	)
	jitter := p.JitterLow + rng.Float64()*(p.JitterHigh-p.JitterLow)
	return time.Duration(base * jitter * float64(time.Second))
}

// newRNG returns an independent jitter source for one call, so that
// concurrent calls never synchronize their retry schedules.
func newRNG() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
