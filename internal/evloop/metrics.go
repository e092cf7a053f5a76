package evloop

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/logfields"
)

const (
	metricNamespace           = "automerger"
	processedEventsMetricName = "processed_github_events_total"
)

const (
	eventTypeLabel = "event_type"
	resultLabel    = "result"
)

type eventOutcome string

const (
	eventOutcomeEvaluated eventOutcome = "evaluated"
	eventOutcomeFiltered  eventOutcome = "filtered"
	eventOutcomeIgnored   eventOutcome = "ignored"
	eventOutcomeFailed    eventOutcome = "failed"
)

type metricCollector struct {
	logger          *zap.Logger
	processedEvents *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		processedEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      processedEventsMetricName,
				Help:      "count of processed github webhook events",
			},
			[]string{eventTypeLabel, resultLabel},
		),
	}
}

func (m *metricCollector) ProcessedEventsInc(eventType string, o eventOutcome) {
	cnt, err := m.processedEvents.GetMetricWith(prometheus.Labels{
		eventTypeLabel: eventType,
		resultLabel:    string(o),
	})
	if err != nil {
		m.logger.Warn(
			"could not record metric",
			zap.String("metric", processedEventsMetricName),
			logfields.Event("recording_metric_failed"),
			zap.Error(err),
		)
		return
	}

	cnt.Inc()
}
