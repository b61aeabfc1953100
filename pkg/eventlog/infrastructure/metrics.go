package infrastructure

import (
	"sync"
	"time"
)

// MetricsCollector records durations and error counts for the three hot
// paths through the event store: saving an event, aggregating a
// projection, and publishing to the broker.
type MetricsCollector interface {
	RecordSaveDuration(namespace, typ string, d time.Duration)
	RecordAggregateDuration(aggregateType string, d time.Duration)
	RecordPublishDuration(subject string, d time.Duration)
	IncrementSaveErrors(namespace, typ string)
	IncrementPublishErrors(subject string)
}

// simpleMetricsCollector is an in-memory MetricsCollector, logging each
// observation at debug level as it's recorded.
type simpleMetricsCollector struct {
	logger Logger

	mu               sync.RWMutex
	saveDurations    map[string][]time.Duration
	aggregateDur     map[string][]time.Duration
	publishDurations map[string][]time.Duration
	saveErrors       map[string]int
	publishErrors    map[string]int
}

// NewSimpleMetricsCollector returns a MetricsCollector that keeps counters
// and duration samples in memory.
func NewSimpleMetricsCollector(logger Logger) MetricsCollector {
	return &simpleMetricsCollector{
		logger:           logger,
		saveDurations:    make(map[string][]time.Duration),
		aggregateDur:     make(map[string][]time.Duration),
		publishDurations: make(map[string][]time.Duration),
		saveErrors:       make(map[string]int),
		publishErrors:    make(map[string]int),
	}
}

func identityKey(namespace, typ string) string { return namespace + "." + typ }

func (m *simpleMetricsCollector) RecordSaveDuration(namespace, typ string, d time.Duration) {
	key := identityKey(namespace, typ)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveDurations[key] = append(m.saveDurations[key], d)
	m.logger.Debug("event save duration recorded", "identity", key, "duration", d)
}

func (m *simpleMetricsCollector) RecordAggregateDuration(aggregateType string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregateDur[aggregateType] = append(m.aggregateDur[aggregateType], d)
	m.logger.Debug("aggregate duration recorded", "aggregate_type", aggregateType, "duration", d)
}

func (m *simpleMetricsCollector) RecordPublishDuration(subject string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishDurations[subject] = append(m.publishDurations[subject], d)
	m.logger.Debug("publish duration recorded", "subject", subject, "duration", d)
}

func (m *simpleMetricsCollector) IncrementSaveErrors(namespace, typ string) {
	key := identityKey(namespace, typ)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErrors[key]++
	m.logger.Debug("save error count incremented", "identity", key, "total_errors", m.saveErrors[key])
}

func (m *simpleMetricsCollector) IncrementPublishErrors(subject string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErrors[subject]++
	m.logger.Debug("publish error count incremented", "subject", subject, "total_errors", m.publishErrors[subject])
}

// SaveMetrics returns recorded save durations and error count for an
// identity, for tests and monitoring endpoints.
func (m *simpleMetricsCollector) SaveMetrics(namespace, typ string) ([]time.Duration, int) {
	key := identityKey(namespace, typ)
	m.mu.RLock()
	defer m.mu.RUnlock()
	durations := make([]time.Duration, len(m.saveDurations[key]))
	copy(durations, m.saveDurations[key])
	return durations, m.saveErrors[key]
}
