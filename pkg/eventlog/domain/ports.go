package domain

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Outcome reports what Store.Save actually did, so callers can distinguish
// a fresh write from a benign replay of an event they already hold.
type Outcome int

const (
	// Saved means the record did not previously exist and was written.
	Saved Outcome = iota
	// AlreadyPresent means a record with this id already existed; Save is
	// a no-op in this case rather than an error, because at-least-once
	// delivery makes duplicate saves an expected event, not a fault.
	AlreadyPresent
)

// Store is the durable append-only event log (C2). Implementations never
// mutate or delete a saved record.
type Store interface {
	// Save appends rec if its id is not already present. It is expected to
	// be called concurrently by many writers; concurrent saves of the same
	// id must not both report Saved.
	Save(ctx context.Context, rec RawRecord) (Outcome, error)

	// Read returns every event matching q, in ascending context-time
	// order, wrapped as AnyEvent for registry dispatch. If since is
	// non-nil, only events with context time >= since are returned.
	Read(ctx context.Context, q Query, since *time.Time) ([]AnyEvent, error)

	// LastEvent returns the most recently created event of the given
	// identity, or ok=false if none has ever been saved.
	LastEvent(ctx context.Context, namespace, typ string) (AnyEvent, bool, error)

	// ReadEventsSince returns every event of the given identity created
	// at or after since, in ascending creation order, as byte-exact
	// RawRecords suitable for republishing unchanged.
	ReadEventsSince(ctx context.Context, namespace, typ string, since time.Time) ([]RawRecord, error)

	// EventExists reports whether an event with this id has ever been
	// saved, independent of its identity.
	EventExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Cache is the aggregation accelerator (C3). A cache entry pairs a
// snapshot with the time at which it was written; aggregation only needs
// to fold events at or after that cutoff on its next read.
type Cache interface {
	// Read decodes the snapshot stored under fingerprint into dest (a
	// pointer) and returns the time it was saved at. ok is false if no
	// snapshot is cached under that fingerprint.
	Read(ctx context.Context, fingerprint string, dest any) (cutoff time.Time, ok bool, err error)

	// Save upserts snapshot under fingerprint. The adapter stamps the
	// entry's cutoff with its own clock at write time; callers do not
	// supply it, since the cutoff must reflect when the read that
	// produced snapshot actually completed, not any event's own time.
	Save(ctx context.Context, fingerprint string, snapshot any) error
}

// Handler processes one message payload delivered by a Broker
// subscription. Returning nil acks the message; returning an error nacks
// it for redelivery, except where the caller chooses to ack-and-log
// instead (poison-pill isolation).
type Handler func(ctx context.Context, payload []byte) error

// Broker is the publish/subscribe transport (C4): a topic exchange keyed
// by subject, with one durable queue per (consuming domain, subject).
type Broker interface {
	// Publish sends payload to every queue bound to subject.
	Publish(ctx context.Context, subject string, payload []byte) error

	// Subscribe binds a durable, non-exclusive, non-auto-delete queue
	// named "<domain>-<subject>" to subject and starts delivering messages
	// to handler until the returned Subscription is closed. Re-subscribing
	// with the same (domain, subject) resumes the same queue, including
	// whatever it queued while no consumer was attached.
	Subscribe(ctx context.Context, domain, subject string, handler Handler) (Subscription, error)
}

// Subscription is a running broker consumer.
type Subscription interface {
	io.Closer
}

// Watermark records the most recent event an orchestrator's consumer has
// durably processed for one (namespace, type).
type Watermark struct {
	EventID uuid.UUID
	Time    time.Time
}

// WatermarkStore persists per-consumer watermarks (C6), so a restarted
// subscription resumes from where it left off instead of from the start
// of the log.
type WatermarkStore interface {
	// Get returns the stored watermark for (consumerDomain, namespace,
	// type), or ok=false if the consumer has never recorded one.
	Get(ctx context.Context, consumerDomain, namespace, typ string) (Watermark, bool, error)

	// Set stores wm as the watermark for (consumerDomain, namespace,
	// type), replacing any previous value.
	Set(ctx context.Context, consumerDomain, namespace, typ string, wm Watermark) error
}
