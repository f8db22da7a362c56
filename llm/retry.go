package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/i2y/chiron/provider"
)

// callState is one phase of the retry loop.
type callState int

const (
	stateAttempting callState = iota
	stateDelaying
	stateSucceeded
	stateExhausted
	stateFatal
)

// sleepFunc waits out a retry delay. Tests substitute it to observe the
// delays without sleeping.
type sleepFunc func(context.Context, time.Duration) error

// runWithRetry drives a provider call through an explicit state machine:
//
//	Attempting -> Succeeded                     (provider returned)
//	Attempting -> Delaying   -> Attempting      (rate limited, retries left)
//	Attempting -> Exhausted                     (rate limited, none left)
//	Attempting -> Fatal                         (any other error)
//
// Only rate-limit errors (provider.IsRateLimited) ever reach Delaying;
// everything else fails the call on the first occurrence. Attempts are
// 1-indexed and capped at MaxRetries+1, with exactly one delay between
// consecutive attempts. A context cancellation during the delay ends the
// call with ctx.Err().
func runWithRetry(ctx context.Context, p provider.Provider, req *provider.Request, policy BackoffPolicy, sleep sleepFunc, logger *slog.Logger) (*provider.Response, error) {
	if sleep == nil {
		sleep = sleepContext
	}
	rng := newRNG()

	var (
		resp    *provider.Response
		lastErr error
	)

	attempt := 1
	state := stateAttempting
	for {
		switch state {
		case stateAttempting:
			resp, lastErr = p.Complete(ctx, req)
			switch {
			case lastErr == nil:
				state = stateSucceeded
			case !provider.IsRateLimited(lastErr):
				state = stateFatal
			case attempt > policy.MaxRetries:
				state = stateExhausted
			default:
				state = stateDelaying
			}

		case stateDelaying:
			delay := policy.Delay(attempt, rng)
			logger.Warn("rate limited, backing off",
				"provider", p.Name(),
				"attempt", attempt,
				"max_attempts", policy.MaxRetries+1,
				"delay", delay)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			attempt++
			state = stateAttempting

		case stateSucceeded:
			return resp, nil

		case stateExhausted:
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, lastErr)

		default: // stateFatal
			return nil, fmt.Errorf("calling provider: %w", lastErr)
		}
	}
}
