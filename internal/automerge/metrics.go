package automerge

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/githubclt"
	"github.com/simplesurance/automerger/internal/logfields"
)

const metricNamespace = "automerger"

const (
	evaluationsMetricName  = "evaluations_total"
	mergesMetricName       = "merges_total"
	ruleFailuresMetricName = "rule_failures_total"
	pollAttemptsMetricName = "mergeability_poll_attempts"
)

const (
	outcomeLabel = "outcome"
	methodLabel  = "method"
	dryRunLabel  = "dry_run"
	ruleLabel    = "rule"
)

type outcome string

const (
	outcomeIgnored      outcome = "ignored"
	outcomeNotTagged    outcome = "not_tagged"
	outcomeRulesFailed  outcome = "rules_failed"
	outcomeNotMergeable outcome = "not_mergeable"
	outcomeMerged       outcome = "merged"
	outcomeDryRun       outcome = "dry_run"
)

type metricCollector struct {
	logger       *zap.Logger
	evaluations  *prometheus.CounterVec
	merges       *prometheus.CounterVec
	ruleFailures *prometheus.CounterVec
	pollAttempts prometheus.Histogram
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		evaluations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      evaluationsMetricName,
				Help:      "count of pull request evaluations by outcome",
			},
			[]string{outcomeLabel},
		),
		merges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      mergesMetricName,
				Help:      "count of merged pull requests and dry-run previews",
			},
			[]string{methodLabel, dryRunLabel},
		),
		ruleFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      ruleFailuresMetricName,
				Help:      "count of failed auto-merge rules",
			},
			[]string{ruleLabel},
		),
		pollAttempts: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricNamespace,
				Name:      pollAttemptsMetricName,
				Help:      "number of attempts until github reported the mergeability of a pull request",
				Buckets:   []float64{1, 2, 3, 4, 5, 10},
			},
		),
	}
}

func (m *metricCollector) logGetMetricFailed(metricName string, err error) {
	m.logger.Warn(
		"could not record metric",
		zap.String("metric", metricName),
		logfields.Event("recording_metric_failed"),
		zap.Error(err),
	)
}

func (m *metricCollector) EvaluationsInc(o outcome) {
	cnt, err := m.evaluations.GetMetricWith(prometheus.Labels{outcomeLabel: string(o)})
	if err != nil {
		m.logGetMetricFailed(evaluationsMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) MergesInc(method githubclt.MergeMethod, dryRun bool) {
	cnt, err := m.merges.GetMetricWith(prometheus.Labels{
		methodLabel: string(method),
		dryRunLabel: strconv.FormatBool(dryRun),
	})
	if err != nil {
		m.logGetMetricFailed(mergesMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) RuleFailuresInc(r RuleKind) {
	cnt, err := m.ruleFailures.GetMetricWith(prometheus.Labels{ruleLabel: r.metricLabel()})
	if err != nil {
		m.logGetMetricFailed(ruleFailuresMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) PollAttemptsObserve(attempts int) {
	m.pollAttempts.Observe(float64(attempts))
}
