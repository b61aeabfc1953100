// Package orchestrator binds the store, broker, and watermark adapters
// into the subscription lifecycle: saving an event publishes it, and
// subscribing to an identity starts a durable consumer with optional
// save-on-receive idempotency and optional replay-on-start.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/akeemphilbert/eventcore/pkg/eventlog/domain"
)

// Logger is the narrow slice of logging the orchestrator needs; any
// structured logger satisfying it can be plugged in.
type Logger interface {
	Info(msg string, kv ...any)
	Error(msg string, err error, kv ...any)
}

// Metrics is the narrow slice of metrics recording the orchestrator needs.
// A nil Metrics is valid: every call site checks before recording.
type Metrics interface {
	RecordSaveDuration(namespace, typ string, d time.Duration)
	IncrementSaveErrors(namespace, typ string)
	RecordPublishDuration(subject string, d time.Duration)
	IncrementPublishErrors(subject string)
}

// Orchestrator wires one store, broker, and watermark store together for
// a single consuming domain.
type Orchestrator struct {
	Domain     string
	Store      domain.Store
	Broker     domain.Broker
	Watermarks domain.WatermarkStore
	Logger     Logger
	Metrics    Metrics
}

// New builds an Orchestrator for the given consuming domain.
func New(consumerDomain string, store domain.Store, broker domain.Broker, watermarks domain.WatermarkStore, logger Logger) *Orchestrator {
	return &Orchestrator{Domain: consumerDomain, Store: store, Broker: broker, Watermarks: watermarks, Logger: logger}
}

// Save appends ev to the store and, if it was newly written, publishes it
// to every subscriber of its identity. A save of an id the store already
// holds is a no-op publish, since whoever saved it first already
// published it.
func Save[D domain.Data](ctx context.Context, o *Orchestrator, ev domain.Event[D]) (domain.Outcome, error) {
	var zero D
	namespace, typ := zero.EventNamespace(), zero.EventType()

	rec, err := domain.Encode(ev)
	if err != nil {
		return domain.AlreadyPresent, fmt.Errorf("orchestrator: encode event: %w", err)
	}

	start := time.Now()
	outcome, err := o.Store.Save(ctx, rec)
	if o.Metrics != nil {
		o.Metrics.RecordSaveDuration(namespace, typ, time.Since(start))
	}
	if err != nil {
		if o.Metrics != nil {
			o.Metrics.IncrementSaveErrors(namespace, typ)
		}
		return outcome, fmt.Errorf("orchestrator: save event: %w", err)
	}
	if outcome != domain.Saved {
		return outcome, nil
	}

	subject := domain.CombinedType(ev.Data)
	pubStart := time.Now()
	err = o.Broker.Publish(ctx, subject, rec.Envelope)
	if o.Metrics != nil {
		o.Metrics.RecordPublishDuration(subject, time.Since(pubStart))
	}
	if err != nil {
		if o.Metrics != nil {
			o.Metrics.IncrementPublishErrors(subject)
		}
		return outcome, fmt.Errorf("orchestrator: publish event: %w", err)
	}
	return outcome, nil
}

// Options configures a Subscribe call.
type Options struct {
	// SaveOnReceive persists each delivered event before invoking the
	// handler, skipping the handler (but still acking) for an event the
	// store already held. Use this for consumers that are themselves the
	// system of record for what they've seen.
	SaveOnReceive bool
	// ReplayPreviousEvents publishes an EventReplayRequested on subscribe,
	// asking replay handlers to republish every event of this identity
	// created since the consumer's last recorded watermark (or the Unix
	// epoch, if none is recorded).
	ReplayPreviousEvents bool
}

// Subscribe starts a durable consumer for D's identity. handle is invoked
// once per delivered event, after save-on-receive has deduplicated it if
// enabled; a successful handle advances the consumer's watermark.
func Subscribe[D domain.Data](
	ctx context.Context,
	o *Orchestrator,
	opts Options,
	handle func(context.Context, domain.Event[D]) error,
) (domain.Subscription, error) {
	var zero D
	namespace, typ := zero.EventNamespace(), zero.EventType()
	subject := namespace + "." + typ

	sub, err := o.Broker.Subscribe(ctx, o.Domain, subject, func(ctx context.Context, payload []byte) error {
		var ev domain.Event[D]
		if err := json.Unmarshal(payload, &ev); err != nil {
			o.Logger.Error("orchestrator: discarding unparseable message", err,
				"domain", o.Domain, "subject", subject)
			return nil
		}

		if opts.SaveOnReceive {
			rec, err := domain.Encode(ev)
			if err != nil {
				return fmt.Errorf("orchestrator: encode received event: %w", err)
			}
			outcome, err := o.Store.Save(ctx, rec)
			if err != nil {
				return fmt.Errorf("orchestrator: save received event: %w", err)
			}
			if outcome != domain.Saved {
				return nil
			}
		}

		if err := handle(ctx, ev); err != nil {
			return err
		}

		if o.Watermarks != nil {
			wm := domain.Watermark{EventID: ev.ID, Time: ev.Context.Time}
			if err := o.Watermarks.Set(ctx, o.Domain, namespace, typ, wm); err != nil {
				return fmt.Errorf("orchestrator: set watermark: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: subscribe %s: %w", subject, err)
	}

	if opts.ReplayPreviousEvents {
		since := time.Unix(0, 0).UTC()
		if o.Watermarks != nil {
			if wm, ok, err := o.Watermarks.Get(ctx, o.Domain, namespace, typ); err == nil && ok {
				since = wm.Time
			}
		}
		replayEv := domain.FromData(domain.EventReplayRequested{
			RequestedEventNamespace: namespace,
			RequestedEventType:      typ,
			Since:                   since,
		})
		rec, err := domain.Encode(replayEv)
		if err != nil {
			return sub, fmt.Errorf("orchestrator: encode replay request: %w", err)
		}
		replaySubject := domain.CombinedType(replayEv.Data)
		pubStart := time.Now()
		err = o.Broker.Publish(ctx, replaySubject, rec.Envelope)
		if o.Metrics != nil {
			o.Metrics.RecordPublishDuration(replaySubject, time.Since(pubStart))
		}
		if err != nil {
			if o.Metrics != nil {
				o.Metrics.IncrementPublishErrors(replaySubject)
			}
			return sub, fmt.Errorf("orchestrator: publish replay request: %w", err)
		}
	}

	return sub, nil
}
