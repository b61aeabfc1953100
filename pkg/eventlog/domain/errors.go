package domain

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Adapters wrap these with fmt.Errorf("...: %w", ...)
// so callers can still errors.Is/errors.As down to the kind while the
// message carries the offending id or query.
var (
	// ErrDuplicate marks an event id that already exists. Store.Save itself
	// reports a duplicate as the AlreadyPresent outcome with a nil error;
	// callers that treat a duplicate as a failure wrap this sentinel.
	ErrDuplicate = errors.New("event store: duplicate event id")

	// ErrNotFound marks a missing record. Optional lookups, such as a
	// watermark read with nothing recorded yet, report absence as a zero
	// value plus ok=false instead, so this is reserved for callers that
	// treat an expected record as mandatory.
	ErrNotFound = errors.New("event store: not found")

	// ErrTransient marks connection, timeout, or temporary broker
	// unavailability. The core never retries internally; callers retry at
	// the application level.
	ErrTransient = errors.New("event store: transient failure")

	// ErrMalformedIdentity is returned when a wire record carries neither
	// the modern event_namespace/event_type pair nor the legacy combined
	// "type" field.
	ErrMalformedIdentity = errors.New("event store: malformed identity")

	// ErrUnknownVariant is returned when a decoded identity does not match
	// any variant registered in a Registry.
	ErrUnknownVariant = errors.New("event store: unknown variant")

	// ErrCorrupt marks a stored record that failed to parse. Aggregation
	// fails loudly with the offending id; subscriptions log, skip, and ack.
	ErrCorrupt = errors.New("event store: corrupt record")

	// ErrFatal marks schema initialization or credential failures; the
	// component refuses to start.
	ErrFatal = errors.New("event store: fatal")
)

// CorruptErr wraps ErrCorrupt with the offending record id so callers can
// log it without string-parsing the error message.
type CorruptErr struct {
	ID    string
	Cause error
}

func (e *CorruptErr) Error() string {
	return fmt.Sprintf("event store: corrupt record %s: %v", e.ID, e.Cause)
}

func (e *CorruptErr) Unwrap() []error { return []error{ErrCorrupt, e.Cause} }
