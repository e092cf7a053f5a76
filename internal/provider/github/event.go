package github

import "go.uber.org/zap"

// Event is a validated webhook delivery.
type Event struct {
	// DeliveryID is the value of the X-GitHub-Delivery header.
	DeliveryID string
	// Type is the value of the X-GitHub-Event header, e.g. "check_run".
	Type string
	// JSON is the raw payload, the event filter query is evaluated on it.
	JSON []byte
	// Event is the payload parsed into its go-github type, e.g.
	// *github.CheckRunEvent.
	Event     any
	LogFields []zap.Field
}
