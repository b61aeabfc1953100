// Package replay implements the built-in handler for EventReplayRequested:
// on receipt, it rescans the store for the requested identity since the
// requested time and republishes every record byte-for-byte.
package replay

import (
	"context"

	"github.com/akeemphilbert/eventcore/pkg/eventlog/domain"
	"github.com/akeemphilbert/eventcore/pkg/eventlog/orchestrator"
)

// Logger is the narrow slice of logging the handler needs.
type Logger interface {
	Error(msg string, err error, kv ...any)
}

// Handle rescans store for every event of the requested identity created
// at or after the requested time and republishes each one, unchanged, to
// its own subject. Errors are logged rather than returned, since a replay
// failure must not nack or recurse the EventReplayRequested delivery that
// triggered it.
func Handle(ctx context.Context, store domain.Store, broker domain.Broker, logger Logger, req domain.EventReplayRequested) error {
	records, err := store.ReadEventsSince(ctx, req.RequestedEventNamespace, req.RequestedEventType, req.Since)
	if err != nil {
		logger.Error("replay: failed to scan events", err,
			"namespace", req.RequestedEventNamespace, "type", req.RequestedEventType, "since", req.Since)
		return nil
	}

	subject := req.RequestedEventNamespace + "." + req.RequestedEventType
	for _, rec := range records {
		if err := broker.Publish(ctx, subject, rec.Envelope); err != nil {
			logger.Error("replay: failed to republish event", err,
				"event_id", rec.ID, "subject", subject)
		}
	}
	return nil
}

// Start subscribes the orchestrator's own EventReplayRequested handler, as
// required on every orchestrator's startup: this subscription never saves
// the replay request itself and never triggers a further replay.
func Start(ctx context.Context, o *orchestrator.Orchestrator) (domain.Subscription, error) {
	return orchestrator.Subscribe(ctx, o, orchestrator.Options{SaveOnReceive: false, ReplayPreviousEvents: false},
		func(ctx context.Context, ev domain.Event[domain.EventReplayRequested]) error {
			return Handle(ctx, o.Store, o.Broker, o.Logger, ev.Data)
		})
}
