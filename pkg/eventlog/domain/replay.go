package domain

import "time"

// EventReplayRequested is the core's own built-in event: a request to
// republish every event of one identity created at or after Since. The
// subscription orchestrator emits it on startup when asked to replay, and
// a replay handler is the only thing that ever needs to subscribe to it.
type EventReplayRequested struct {
	RequestedEventNamespace string    `json:"requested_event_namespace"`
	RequestedEventType      string    `json:"requested_event_type"`
	Since                   time.Time `json:"since"`
}

func (EventReplayRequested) EventNamespace() string { return "_eventstore" }
func (EventReplayRequested) EventType() string      { return "EventReplayRequested" }
