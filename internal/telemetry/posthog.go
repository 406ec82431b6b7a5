package telemetry

import (
	"context"
	"errors"

	"github.com/posthog/posthog-go"
)

const defaultPostHogHost = "https://app.posthog.com"

// eventPrefix namespaces tierup events in PostHog.
const eventPrefix = "tierup_"

// PostHogSink emits events to PostHog keyed by the hashed user id.
type PostHogSink struct {
	client posthog.Client
}

// NewPostHogSink creates a PostHog-backed sink.
func NewPostHogSink(apiKey, host string) (*PostHogSink, error) {
	if apiKey == "" {
		return nil, errors.New("posthog api key is required")
	}

	endpoint := host
	if endpoint == "" {
		endpoint = defaultPostHogHost
	}

	client, err := posthog.NewWithConfig(apiKey, posthog.Config{Endpoint: endpoint})
	if err != nil {
		return nil, err
	}
	return &PostHogSink{client: client}, nil
}

// Emit enqueues e as a PostHog capture.
func (s *PostHogSink) Emit(_ context.Context, e Event) error {
	if s == nil || s.client == nil {
		return errors.New("posthog client not initialized")
	}

	distinctID := e.UserHash
	if distinctID == "" {
		distinctID = AnonymousUser
	}

	props := posthog.NewProperties()
	for key, value := range e.Properties() {
		props = props.Set(key, value)
	}

	return s.client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      eventPrefix + string(e.Type),
		Properties: props,
		Timestamp:  e.Timestamp,
	})
}

// Close flushes buffered events.
func (s *PostHogSink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
