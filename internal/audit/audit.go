// Package audit records the results of pull request evaluations.
// Records are delivered asynchronously to all configured sinks, failed
// deliveries are retried.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/automerge"
	"github.com/simplesurance/automerger/internal/logfields"
	"github.com/simplesurance/automerger/internal/retry"
)

const loggerName = "audit"

// Record is the audit entry of an evaluation.
type Record struct {
	Time            time.Time `json:"time"`
	DeliveryID      string    `json:"delivery_id"`
	EventType       string    `json:"event_type"`
	RepositoryOwner string    `json:"repository_owner"`
	Repository      string    `json:"repository"`
	// PullRequest is 0 for results aggregated over multiple pull requests.
	PullRequest int    `json:"pull_request"`
	Code        int    `json:"code"`
	Visibility  string `json:"visibility"`
	Reason      string `json:"reason"`
}

// NewRecord returns a Record of the result with the current time.
func NewRecord(res *automerge.Result) *Record {
	return &Record{
		Time:       time.Now(),
		Code:       res.Code,
		Visibility: res.Visibility.String(),
		Reason:     res.Reason,
	}
}

func (r *Record) LogFields() []zap.Field {
	fields := []zap.Field{
		logfields.RepositoryOwner(r.RepositoryOwner),
		logfields.Repository(r.Repository),
	}

	if r.DeliveryID != "" {
		fields = append(fields, logfields.DeliveryID(r.DeliveryID))
	}

	if r.PullRequest != 0 {
		fields = append(fields, logfields.PullRequest(r.PullRequest))
	}

	return fields
}

// Sink stores audit records.
// Write returns a retry.RetryableError when writing the record can be
// retried.
type Sink interface {
	Write(ctx context.Context, rec *Record) error
	String() string
}

// Retryer runs an operation repeatedly while it fails with a retryable error.
type Retryer interface {
	Run(context.Context, func(context.Context) error, []zap.Field) error
	Stop()
}

// Auditor delivers records to sinks.
type Auditor struct {
	sinks   []Sink
	retryer Retryer
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// WithRetryer sets the retryer that is used to deliver records.
func WithRetryer(r Retryer) func(*Auditor) {
	return func(a *Auditor) {
		a.retryer = r
	}
}

func New(sinks []Sink, opts ...func(*Auditor)) *Auditor {
	a := Auditor{
		sinks:  sinks,
		logger: zap.L().Named(loggerName),
	}

	for _, opt := range opts {
		opt(&a)
	}

	if a.retryer == nil {
		a.retryer = retry.NewRetryer()
	}

	return &a
}

// Record delivers rec asynchronously to all sinks.
func (a *Auditor) Record(ctx context.Context, rec *Record) {
	for _, sink := range a.sinks {
		sink := sink

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()

			logF := append(rec.LogFields(), zap.Stringer("audit_sink", sink))

			err := a.retryer.Run(ctx, func(ctx context.Context) error {
				return sink.Write(ctx, rec)
			}, logF)
			if err != nil {
				a.logger.Warn("writing audit record failed",
					append(logF,
						logfields.Event("audit_record_writing_failed"),
						zap.Error(err),
					)...,
				)
			}
		}()
	}
}

// Stop aborts retrying failed deliveries and waits until all started
// deliveries terminated.
func (a *Auditor) Stop() {
	a.logger.Debug("auditor terminating", logfields.Event("auditor_terminating"))

	a.retryer.Stop()
	a.wg.Wait()

	a.logger.Debug("auditor terminated", logfields.Event("auditor_terminated"))
}
