package llm

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBackoff(t *testing.T) {
	p := DefaultBackoff()

	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, p.InitialDelay)
	assert.Equal(t, 60*time.Second, p.MaxDelay)
	assert.Equal(t, 0.5, p.JitterLow)
	assert.Equal(t, 1.5, p.JitterHigh)
	assert.NoError(t, p.Validate())
}

func TestBackoffPolicy_Validate(t *testing.T) {
	valid := BackoffPolicy{
		MaxRetries:   2,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		JitterLow:    1,
		JitterHigh:   1,
	}

	tests := []struct {
		name    string
		mutate  func(*BackoffPolicy)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(p *BackoffPolicy) {},
		},
		{
			name:   "zero retries is valid",
			mutate: func(p *BackoffPolicy) { p.MaxRetries = 0 },
		},
		{
			name:    "negative retries",
			mutate:  func(p *BackoffPolicy) { p.MaxRetries = -1 },
			wantErr: "MaxRetries",
		},
		{
			name:    "zero initial delay",
			mutate:  func(p *BackoffPolicy) { p.InitialDelay = 0 },
			wantErr: "InitialDelay",
		},
		{
			name:    "max below initial",
			mutate:  func(p *BackoffPolicy) { p.MaxDelay = 50 * time.Millisecond },
			wantErr: "MaxDelay",
		},
		{
			name:    "negative jitter",
			mutate:  func(p *BackoffPolicy) { p.JitterLow = -0.1 },
			wantErr: "JitterLow",
		},
		{
			name:    "jitter bounds inverted",
			mutate:  func(p *BackoffPolicy) { p.JitterLow = 1.5; p.JitterHigh = 0.5 },
			wantErr: "JitterHigh",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)

			err := p.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestBackoffPolicy_Delay_DoublesPerAttempt(t *testing.T) {
	// Jitter pinned to 1.0 makes the schedule deterministic.
	p := BackoffPolicy{
		MaxRetries:   10,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     60 * time.Second,
		JitterLow:    1,
		JitterHigh:   1,
	}
	rng := rand.New(rand.NewPCG(1, 2))

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 8 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt, rng), "attempt %d", tt.attempt)
	}
}

func TestBackoffPolicy_Delay_CappedAtMax(t *testing.T) {
	p := BackoffPolicy{
		MaxRetries:   10,
		InitialDelay: 10 * time.Second,
		MaxDelay:     15 * time.Second,
		JitterLow:    1,
		JitterHigh:   1,
	}
	rng := rand.New(rand.NewPCG(1, 2))

	// Attempt 2 would be 20s unclamped, attempt 5 would be 160s.
	assert.Equal(t, 15*time.Second, p.Delay(2, rng))
	assert.Equal(t, 15*time.Second, p.Delay(5, rng))
}

func TestBackoffPolicy_Delay_JitterWithinBounds(t *testing.T) {
	p := BackoffPolicy{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     60 * time.Second,
		JitterLow:    0.5,
		JitterHigh:   1.5,
	}
	rng := rand.New(rand.NewPCG(42, 7))

	for i := 0; i < 200; i++ {
		d := p.Delay(1, rng)
		assert.GreaterOrEqual(t, d, 250*time.Millisecond)
		assert.Less(t, d, 750*time.Millisecond)
	}
}

func TestSleepContext(t *testing.T) {
	t.Run("returns after the duration", func(t *testing.T) {
		err := sleepContext(context.Background(), time.Millisecond)
		assert.NoError(t, err)
	})

	t.Run("returns early on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		err := sleepContext(ctx, 10*time.Second)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), time.Second)
	})
}
