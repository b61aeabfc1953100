// Package aggregate implements the cache-accelerated aggregation engine:
// look up a cached snapshot, delta-scan the log for anything newer, fold,
// and write the refreshed snapshot back to the cache.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/akeemphilbert/eventcore/pkg/eventlog/domain"
)

// Metrics is the narrow slice of metrics recording the aggregation engine
// needs. A nil Metrics is valid: Aggregate checks before recording.
type Metrics interface {
	RecordAggregateDuration(aggregateType string, d time.Duration)
}

// Aggregator separates the state T an aggregation produces from the
// (usually stateless) value that knows how to produce it. Go has no way to
// express "T implements a trait whose methods construct T", so Default and
// Query live on a distinct value rather than on T itself.
//
// A is the caller's query argument; E is the events enum a domain.Registry
// dispatches into.
type Aggregator[T any, A any, E any] interface {
	// Default is the initial state before any event has been folded in.
	Default() T
	// Query builds the store predicate selecting the events this
	// aggregation depends on, given the caller's argument.
	Query(args A) domain.Query
	// ApplyEvent folds one event into the accumulated state. It must be a
	// pure function of its inputs: given the same (acc, event) it always
	// returns the same result.
	ApplyEvent(acc T, event E) T
}

// Aggregate runs the cache-lookup -> delta-scan -> fold -> cache-write
// algorithm described for the aggregation engine. registry dispatches raw
// store records into the enum type E that agg.ApplyEvent consumes.
func Aggregate[T any, A any, E any](
	ctx context.Context,
	agg Aggregator[T, A, E],
	registry *domain.Registry[E],
	store domain.Store,
	cache domain.Cache,
	args A,
	metrics Metrics,
) (T, error) {
	start := time.Now()
	if metrics != nil {
		defer func() { metrics.RecordAggregateDuration(fmt.Sprintf("%T", agg), time.Since(start)) }()
	}

	q := agg.Query(args)
	fp := domain.Fingerprint(q)

	state := agg.Default()
	cutoff, cached, err := cache.Read(ctx, fp, &state)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("aggregate: read cache: %w", err)
	}

	var since *time.Time
	if cached {
		since = &cutoff
	} else {
		state = agg.Default()
	}

	raw, err := store.Read(ctx, q, since)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("aggregate: read store: %w", err)
	}

	for _, rec := range raw {
		event, err := registry.Decode(rec)
		if err != nil {
			var zero T
			return zero, fmt.Errorf("aggregate: decode event %s: %w", rec.ID, err)
		}
		state = agg.ApplyEvent(state, event)
	}

	if err := cache.Save(ctx, fp, state); err != nil {
		var zero T
		return zero, fmt.Errorf("aggregate: save cache: %w", err)
	}

	return state, nil
}
