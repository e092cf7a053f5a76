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

// DefRetryTimeout is the default maximum duration for which Retryer.Run
// repeats an operation.
const DefRetryTimeout = 30 * time.Minute

// Retryer executes a function repeatedly until it was successful or a cancel
// condition happened.
// It is used for operations that are not time-critical, like delivering
// audit records.
type Retryer struct {
	logger                     *zap.Logger
	defTimeout                 time.Duration
	backoffInitialInterval     time.Duration
	backoffRandomizationFactor float64
	shutdownChan               chan struct{}
}

func NewRetryer() *Retryer {
	return &Retryer{
		logger:                     zap.L().Named("retryer"),
		defTimeout:                 DefRetryTimeout,
		backoffInitialInterval:     5 * time.Second,
		backoffRandomizationFactor: backoff.DefaultRandomizationFactor,
		shutdownChan:               make(chan struct{}),
	}
}

// Run executes fn until it was successful, it returned an error that
// does not wrap RetryableError or the execution was aborted via the
// context.
// If ctx has no deadline, the retry timeout is DefRetryTimeout.
func (r *Retryer) Run(ctx context.Context, fn func(context.Context) error, logF []zap.Field) error {
	var tryCnt uint

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancelFn context.CancelFunc
		ctx, cancelFn = context.WithTimeout(ctx, r.defTimeout)
		defer cancelFn()
	}

	retryTimer := time.NewTimer(0)
	defer retryTimer.Stop()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.backoffInitialInterval
	bo.RandomizationFactor = r.backoffRandomizationFactor
	bo.MaxElapsedTime = 0
	bo.Reset()

	logger := r.logger.With(logF...)

	for {
		select {
		case <-ctx.Done():
			logger.Info(
				"operation execution cancelled",
				logfields.Event("retryer_operation_cancelled"),
				zap.Uint("try_count", tryCnt),
				zap.Error(ctx.Err()),
			)

			return ctx.Err()

		case <-r.shutdownChan:
			logger.Info(
				"retryer terminating, operation not executed",
				logfields.Event("retryer_operation_cancelled_terminated"),
				zap.Uint("try_count", tryCnt),
			)

			return errors.New("retryer terminated")

		case <-retryTimer.C:
			tryCnt++

			err := fn(ctx)
			if err == nil {
				logger.Debug(
					"operation executed successfully",
					logfields.Event("retryer_operation_succeeded"),
					zap.Uint("try_count", tryCnt),
				)

				return nil
			}

			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			var retryError *RetryableError
			if !errors.As(err, &retryError) {
				logger.Warn(
					"operation failed, not retryable",
					logfields.Event("retryer_operation_failed"),
					zap.Uint("try_count", tryCnt),
					zap.Error(err),
				)

				return err
			}

			retryIn := bo.NextBackOff()
			if !retryError.After.IsZero() {
				if d := time.Until(retryError.After); d > retryIn {
					retryIn = d
				}
			}

			if deadline, _ := ctx.Deadline(); time.Now().Add(retryIn).After(deadline) {
				logger.Warn(
					"operation failed, next possible retry time is after timeout expiration",
					logfields.Event("retryer_operation_failed"),
					zap.Uint("try_count", tryCnt),
					zap.Duration("retry_in", retryIn),
					zap.Error(err),
				)

				return fmt.Errorf("giving up, next retry would be after the retry deadline: %w", err)
			}

			logger.Info(
				"operation failed, retry scheduled",
				logfields.Event("retryer_operation_retry_scheduled"),
				zap.Uint("try_count", tryCnt),
				zap.Duration("retry_in", retryIn),
				zap.Error(err),
			)

			retryTimer.Reset(retryIn)
		}
	}
}

// Stop notifies all Run() methods to terminate.
// It does not wait for their termination.
func (r *Retryer) Stop() {
	r.logger.Debug("retryer terminating", logfields.Event("retryer_terminating"))

	select {
	case <-r.shutdownChan:
		return // already closed
	default:
		close(r.shutdownChan)
	}
}
