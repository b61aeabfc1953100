package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/akeemphilbert/eventcore/pkg/eventlog/domain"
	"github.com/akeemphilbert/eventcore/pkg/eventlog/orchestrator"
)

type itemPriced struct {
	ItemID string  `json:"item_id"`
	Price  float64 `json:"price"`
}

func (itemPriced) EventNamespace() string { return "catalog" }
func (itemPriced) EventType() string      { return "ItemPriced" }

type testLogger struct{ t *testing.T }

func (l testLogger) Info(msg string, kv ...any)            {}
func (l testLogger) Error(msg string, err error, kv ...any) { l.t.Logf("%s: %v %v", msg, err, kv) }

// fakeBroker is an in-process topic exchange: Publish fans out to every
// handler bound to a subject under any domain.
type fakeBroker struct {
	mu       sync.Mutex
	handlers map[string][]domain.Handler
	published []publishedMsg
}

type publishedMsg struct {
	subject string
	payload []byte
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string][]domain.Handler)}
}

func (b *fakeBroker) Publish(ctx context.Context, subject string, payload []byte) error {
	b.mu.Lock()
	b.published = append(b.published, publishedMsg{subject: subject, payload: payload})
	handlers := append([]domain.Handler(nil), b.handlers[subject]...)
	b.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, payload); err != nil {
			return err
		}
	}
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, consumerDomain, subject string, handler domain.Handler) (domain.Subscription, error) {
	b.mu.Lock()
	b.handlers[subject] = append(b.handlers[subject], handler)
	b.mu.Unlock()
	return fakeSubscription{}, nil
}

type fakeSubscription struct{}

func (fakeSubscription) Close() error { return nil }

// fakeStore tracks saved ids for duplicate detection; it does not
// implement the query-based reads the aggregator needs.
type fakeStore struct {
	mu   sync.Mutex
	seen map[string]domain.RawRecord
}

func newFakeStore() *fakeStore { return &fakeStore{seen: make(map[string]domain.RawRecord)} }

func (s *fakeStore) Save(ctx context.Context, rec domain.RawRecord) (domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.seen[rec.ID]; exists {
		return domain.AlreadyPresent, nil
	}
	s.seen[rec.ID] = rec
	return domain.Saved, nil
}

func (s *fakeStore) Read(ctx context.Context, q domain.Query, since *time.Time) ([]domain.AnyEvent, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) LastEvent(ctx context.Context, namespace, typ string) (domain.AnyEvent, bool, error) {
	return domain.AnyEvent{}, false, nil
}

func (s *fakeStore) ReadEventsSince(ctx context.Context, namespace, typ string, since time.Time) ([]domain.RawRecord, error) {
	return nil, nil
}

func (s *fakeStore) EventExists(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id.String()]
	return ok, nil
}

type memWatermarks struct {
	mu   sync.Mutex
	byKey map[string]domain.Watermark
}

func newMemWatermarks() *memWatermarks { return &memWatermarks{byKey: make(map[string]domain.Watermark)} }

func (m *memWatermarks) key(consumerDomain, namespace, typ string) string {
	return consumerDomain + "/" + namespace + "." + typ
}

func (m *memWatermarks) Get(ctx context.Context, consumerDomain, namespace, typ string) (domain.Watermark, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wm, ok := m.byKey[m.key(consumerDomain, namespace, typ)]
	return wm, ok, nil
}

func (m *memWatermarks) Set(ctx context.Context, consumerDomain, namespace, typ string, wm domain.Watermark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey[m.key(consumerDomain, namespace, typ)] = wm
	return nil
}

func TestSaveSkipsPublishOnDuplicate(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	broker := newFakeBroker()
	o := orchestrator.New("catalog-service", store, broker, newMemWatermarks(), testLogger{t})

	ev := domain.FromData(itemPriced{ItemID: "i-1", Price: 9.99})

	outcome, err := orchestrator.Save(context.Background(), o, ev)
	if err != nil || outcome != domain.Saved {
		t.Fatalf("first save: outcome=%v err=%v", outcome, err)
	}

	outcome, err = orchestrator.Save(context.Background(), o, ev)
	if err != nil || outcome != domain.AlreadyPresent {
		t.Fatalf("second save: outcome=%v err=%v", outcome, err)
	}

	if len(broker.published) != 1 {
		t.Fatalf("expected exactly one publish, got %d", len(broker.published))
	}
}

func TestSubscribeReceivesSavedEventAndAdvancesWatermark(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	broker := newFakeBroker()
	watermarks := newMemWatermarks()
	o := orchestrator.New("catalog-service", store, broker, watermarks, testLogger{t})

	var received itemPriced
	sub, err := orchestrator.Subscribe[itemPriced](context.Background(), o, orchestrator.Options{},
		func(ctx context.Context, ev domain.Event[itemPriced]) error {
			received = ev.Data
			return nil
		})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	ev := domain.FromData(itemPriced{ItemID: "i-1", Price: 9.99})
	if _, err := orchestrator.Save(context.Background(), o, ev); err != nil {
		t.Fatalf("save: %v", err)
	}

	if received != (itemPriced{ItemID: "i-1", Price: 9.99}) {
		t.Fatalf("handler did not receive event: got %+v", received)
	}

	wm, ok, err := watermarks.Get(context.Background(), "catalog-service", "catalog", "ItemPriced")
	if err != nil || !ok {
		t.Fatalf("expected watermark, ok=%v err=%v", ok, err)
	}
	if wm.EventID != ev.ID {
		t.Fatalf("watermark event id: got %v, want %v", wm.EventID, ev.ID)
	}
}

func TestSubscribeSaveOnReceiveSkipsHandlerForDuplicate(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	broker := newFakeBroker()
	o := orchestrator.New("catalog-service", store, broker, newMemWatermarks(), testLogger{t})

	calls := 0
	_, err := orchestrator.Subscribe[itemPriced](context.Background(), o, orchestrator.Options{SaveOnReceive: true},
		func(ctx context.Context, ev domain.Event[itemPriced]) error {
			calls++
			return nil
		})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev := domain.FromData(itemPriced{ItemID: "i-1", Price: 9.99})
	rec, err := domain.Encode(ev)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if err := broker.Publish(context.Background(), "catalog.ItemPriced", rec.Envelope); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := broker.Publish(context.Background(), "catalog.ItemPriced", rec.Envelope); err != nil {
		t.Fatalf("second publish: %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected handler invoked once, got %d", calls)
	}
}

func TestSubscribeHandlerErrorDoesNotAdvanceWatermark(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	broker := newFakeBroker()
	watermarks := newMemWatermarks()
	o := orchestrator.New("catalog-service", store, broker, watermarks, testLogger{t})

	boom := errors.New("boom")
	_, err := orchestrator.Subscribe[itemPriced](context.Background(), o, orchestrator.Options{},
		func(ctx context.Context, ev domain.Event[itemPriced]) error {
			return boom
		})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev := domain.FromData(itemPriced{ItemID: "i-1", Price: 9.99})
	if _, err := orchestrator.Save(context.Background(), o, ev); !errors.Is(err, boom) {
		t.Fatalf("save: got %v, want wrapped %v", err, boom)
	}

	if _, ok, _ := watermarks.Get(context.Background(), "catalog-service", "catalog", "ItemPriced"); ok {
		t.Fatal("expected no watermark recorded after handler failure")
	}
}
