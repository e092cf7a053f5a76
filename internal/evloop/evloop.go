// Package evloop processes GitHub webhook events.
// Events are filtered, the affected pull requests are retrieved and
// evaluated, the results are recorded in the audit log.
package evloop

import (
	"context"

	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/audit"
	"github.com/simplesurance/automerger/internal/automerge"
	"github.com/simplesurance/automerger/internal/githubclt"
	"github.com/simplesurance/automerger/internal/logfields"
	"github.com/simplesurance/automerger/internal/provider/github"
	"github.com/simplesurance/automerger/internal/retry"
)

const DefEventChannelBufferSize = 512

const loggerName = "event-loop"

// GithubClient retrieves the pull requests affected by an event.
type GithubClient interface {
	PullRequestSnapshot(ctx context.Context, owner, repo string, prNumber int) (*githubclt.PullRequest, error)
	OpenPullRequestsForCommit(ctx context.Context, owner, repo, sha string) ([]int, error)
}

// Evaluator decides if pull requests are auto-merged.
type Evaluator interface {
	Evaluate(ctx context.Context, pr *githubclt.PullRequest) *automerge.Result
	EvaluateAll(ctx context.Context, prs []*githubclt.PullRequest) *automerge.Result
}

// LabelConverger labels newly opened pull requests.
type LabelConverger interface {
	Converge(ctx context.Context, pr *githubclt.PullRequest) *automerge.Result
}

// Auditor records evaluation results.
type Auditor interface {
	Record(ctx context.Context, rec *audit.Record)
}

// EvLoop receives events and evaluates the pull requests they refer to.
// Events are processed sequentially in the order they are received.
type EvLoop struct {
	ch     chan *github.Event
	done   chan struct{}
	logger *zap.Logger

	clt       GithubClient
	evaluator Evaluator
	converger LabelConverger
	auditor   Auditor
	filter    *Filter
	poller    *retry.Poller
}

type Option func(*EvLoop)

// WithFilter sets the filter that events must match to be processed.
func WithFilter(f *Filter) Option {
	return func(e *EvLoop) {
		e.filter = f
	}
}

// WithLabelConverger enables labelling pull requests when they are opened.
func WithLabelConverger(c LabelConverger) Option {
	return func(e *EvLoop) {
		e.converger = c
	}
}

// WithAuditor sets the auditor that results are recorded with.
func WithAuditor(a Auditor) Option {
	return func(e *EvLoop) {
		e.auditor = a
	}
}

// WithRetryPolicy configures the retries of failed pull request
// retrievals.
func WithRetryPolicy(p retry.Policy) Option {
	return func(e *EvLoop) {
		e.poller = retry.NewPoller(p)
	}
}

func New(clt GithubClient, evaluator Evaluator, opts ...Option) *EvLoop {
	evl := EvLoop{
		ch:        make(chan *github.Event, DefEventChannelBufferSize),
		done:      make(chan struct{}),
		clt:       clt,
		evaluator: evaluator,
	}

	for _, opt := range opts {
		opt(&evl)
	}

	if evl.logger == nil {
		evl.logger = zap.L().Named(loggerName)
	}

	if evl.poller == nil {
		evl.poller = retry.NewPoller(retry.DefaultPolicy())
	}

	if evl.filter == nil {
		// DefFilterQuery is a valid query, parsing can not fail
		evl.filter, _ = NewFilter(DefFilterQuery)
	}

	return &evl
}

// C returns the event channel.
// Events sent to this channel will be processed.
// The channel is closed when Stop() is called.
func (e *EvLoop) C() chan<- *github.Event {
	return e.ch
}

// Start processes events until Stop() is called.
func (e *EvLoop) Start() {
	defer close(e.done)

	ctx := context.Background()
	e.logger.Info(
		"ready to process events",
		logfields.Event("eventloop_started"),
		zap.Stringer("event_filter", e.filter),
	)

	for ev := range e.ch {
		e.processEvent(ctx, ev)
	}

	e.logger.Info(
		"event loop terminated, event channel was closed",
		logfields.Event("eventloop_terminated"),
	)
}

// Stop closes the event channel and waits until the events that were
// already queued are processed.
// Start() must have been called before.
func (e *EvLoop) Stop() {
	e.logger.Debug("event loop terminating", logfields.Event("eventloop_terminating"))
	close(e.ch)
	<-e.done
}

func (e *EvLoop) processEvent(ctx context.Context, ev *github.Event) {
	logger := e.logger.With(ev.LogFields...)

	logger.Debug("event received", logfields.Event("event_received"))

	match, err := e.filter.Match(ctx, ev.JSON)
	if err != nil {
		logger.Error(
			"matching event with filter query failed, event is ignored",
			logfields.Event("event_filter_failed"),
			zap.Error(err),
		)
		metrics.ProcessedEventsInc(ev.Type, eventOutcomeFailed)
		return
	}

	if !match {
		logger.Debug(
			"event does not match filter query, ignoring it",
			logfields.Event("event_filtered"),
		)
		metrics.ProcessedEventsInc(ev.Type, eventOutcomeFiltered)
		return
	}

	results := e.dispatch(ctx, logger, ev)
	if len(results) == 0 {
		logger.Debug("event is not relevant, ignoring it", logfields.Event("event_ignored"))
		metrics.ProcessedEventsInc(ev.Type, eventOutcomeIgnored)
		return
	}

	for _, res := range results {
		e.record(ctx, logger, ev, res)
	}

	metrics.ProcessedEventsInc(ev.Type, eventOutcomeEvaluated)
}

func (e *EvLoop) record(ctx context.Context, logger *zap.Logger, ev *github.Event, res *evaluation) {
	rec := audit.NewRecord(res.Result)
	rec.DeliveryID = ev.DeliveryID
	rec.EventType = ev.Type
	rec.RepositoryOwner = res.owner
	rec.Repository = res.repo
	rec.PullRequest = res.prNumber

	logger.Info(
		"event processed",
		append(
			rec.LogFields(),
			logfields.Event("event_processed"),
			zap.Int("result_code", rec.Code),
			zap.String("result_visibility", rec.Visibility),
			zap.String("result_reason", rec.Reason),
		)...,
	)

	if e.auditor != nil {
		e.auditor.Record(ctx, rec)
	}
}
