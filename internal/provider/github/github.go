// Package github receives GitHub webhook deliveries and forwards the events
// that can change the auto-merge state of pull requests.
package github

import (
	"net/http"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/logfields"
)

const loggerName = "github-webhook"

// forwardedEventTypes are the webhook types that are forwarded, deliveries
// of other types are acknowledged and dropped.
var forwardedEventTypes = map[string]struct{}{
	"pull_request":        {},
	"pull_request_review": {},
	"status":              {},
	"check_suite":         {},
	"check_run":           {},
}

// Provider is a http handler for GitHub webhook deliveries.
// Deliveries are authenticated with the webhook secret, parsed and sent
// to the event channel. The handler never blocks on the channel, when it is
// full the delivery is rejected and GitHub can redeliver it.
type Provider struct {
	logger        *zap.Logger
	webhookSecret []byte
	c             chan<- *Event
}

type option func(*Provider)

// WithPayloadSecret sets the webhook secret that the signatures of
// deliveries are verified with.
func WithPayloadSecret(secret string) option {
	return func(p *Provider) {
		p.webhookSecret = []byte(secret)
	}
}

func New(eventChan chan<- *Event, opts ...option) *Provider {
	p := Provider{c: eventChan}

	for _, o := range opts {
		o(&p)
	}

	if p.logger == nil {
		p.logger = zap.L().Named(loggerName)
	}

	return &p
}

func (p *Provider) HTTPHandler(resp http.ResponseWriter, req *http.Request) {
	ev := Event{
		DeliveryID: github.DeliveryID(req),
		Type:       github.WebHookType(req),
	}
	ev.LogFields = []zap.Field{
		logfields.EventProvider("github"),
		logfields.DeliveryID(ev.DeliveryID),
		logfields.WebhookType(ev.Type),
	}

	logger := p.logger.With(ev.LogFields...)

	payload, err := github.ValidatePayload(req, p.webhookSecret)
	if err != nil {
		logger.Info(
			"rejecting webhook delivery, signature or payload is invalid",
			logfields.Event("github_webhook_validation_failed"),
			zap.Error(err),
		)
		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	if ev.Type == "ping" {
		logger.Info("webhook ping received", logfields.Event("github_webhook_ping_received"))
		return
	}

	if _, ok := forwardedEventTypes[ev.Type]; !ok {
		logger.Debug(
			"dropping webhook delivery, event type is not relevant for auto-merge",
			logfields.Event("github_webhook_event_dropped"),
		)
		return
	}

	ev.Event, err = github.ParseWebHook(ev.Type, payload)
	if err != nil {
		logger.Info(
			"rejecting webhook delivery, parsing payload failed",
			logfields.Event("github_webhook_parsing_failed"),
			zap.Error(err),
		)
		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	ev.JSON = payload

	select {
	case p.c <- &ev:
		logger.Debug(
			"webhook event queued",
			logfields.Event("github_webhook_event_queued"),
			zap.ByteString("payload", payload),
		)

	default:
		logger.Warn(
			"rejecting webhook delivery, event queue is full",
			logfields.Event("github_webhook_event_queue_full"),
			zap.Int("queue_capacity", cap(p.c)),
		)
		http.Error(resp, "event queue full", http.StatusServiceUnavailable)
	}
}
