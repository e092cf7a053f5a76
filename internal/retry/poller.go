package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/logfields"
)

// Policy configures the backoff of a Poller.
type Policy struct {
	Attempts            int
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultPolicy is used to wait for GitHub to settle asynchronously computed
// pull request fields. In the worst case it blocks for several seconds.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:            5,
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         5 * time.Second,
		Multiplier:          3,
		RandomizationFactor: 0.5,
	}
}

// Poller repeatedly runs a function until it reports that its condition is
// met or the attempt ceiling is reached.
type Poller struct {
	policy Policy
	logger *zap.Logger
}

func NewPoller(policy Policy) *Poller {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}

	return &Poller{
		policy: policy,
		logger: zap.L().Named("poller"),
	}
}

func (p *Poller) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.policy.InitialInterval
	bo.MaxInterval = p.policy.MaxInterval
	bo.Multiplier = p.policy.Multiplier
	bo.RandomizationFactor = p.policy.RandomizationFactor
	bo.MaxElapsedTime = 0
	bo.Reset()

	return bo
}

// Poll runs fn until it returns done == true.
// Errors returned by fn count as a failed attempt, the last one is wrapped in
// the returned error.
// When all attempts were used up, an error wrapping ErrAttemptsExhausted is
// returned. The number of attempts that were run is always returned.
func (p *Poller) Poll(ctx context.Context, fn func(context.Context) (done bool, err error), logF []zap.Field) (int, error) {
	var lastErr error

	bo := p.newBackOff()
	logger := p.logger.With(logF...)

	for attempt := 1; attempt <= p.policy.Attempts; attempt++ {
		done, err := fn(ctx)
		if err == nil && done {
			return attempt, nil
		}

		lastErr = err
		if attempt == p.policy.Attempts {
			break
		}

		wait := bo.NextBackOff()
		var retryErr *RetryableError
		if errors.As(err, &retryErr) && !retryErr.After.IsZero() {
			if d := time.Until(retryErr.After); d > wait {
				wait = d
			}
		}

		logger.Debug(
			"condition not reached, polling again",
			logfields.Event("poll_attempt_failed"),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.policy.Attempts),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}

	logger.Debug(
		"giving up polling, attempts exhausted",
		logfields.Event("poll_attempts_exhausted"),
		zap.Int("max_attempts", p.policy.Attempts),
		zap.Error(lastErr),
	)

	if lastErr != nil {
		return p.policy.Attempts, fmt.Errorf("%w after %d attempts, last error: %w", ErrAttemptsExhausted, p.policy.Attempts, lastErr)
	}

	return p.policy.Attempts, fmt.Errorf("%w after %d attempts", ErrAttemptsExhausted, p.policy.Attempts)
}
