package catalog

import (
	"context"
	"fmt"

	"github.com/akeemphilbert/eventcore/pkg/eventlog/aggregate"
	"github.com/akeemphilbert/eventcore/pkg/eventlog/domain"
	"github.com/akeemphilbert/eventcore/pkg/eventlog/orchestrator"
)

// Service is the catalog's command/query surface, wiring the registry,
// cache, and orchestrator into item-level operations.
type Service struct {
	orchestrator *orchestrator.Orchestrator
	registry     *domain.Registry[Event]
	cache        domain.Cache
	aggregator   ItemAggregator
	metrics      aggregate.Metrics
}

// NewService builds a catalog Service over an already-wired orchestrator,
// cache, and metrics collector. metrics may be nil.
func NewService(o *orchestrator.Orchestrator, cache domain.Cache, metrics aggregate.Metrics) *Service {
	return &Service{orchestrator: o, registry: NewRegistry(), cache: cache, metrics: metrics}
}

// AddItem records a new catalog item.
func (s *Service) AddItem(ctx context.Context, itemID, name string, price int) error {
	ev := domain.FromData(ItemAdded{ItemID: itemID, Name: name, Price: price})
	outcome, err := orchestrator.Save(ctx, s.orchestrator, ev)
	if err != nil {
		return fmt.Errorf("add item %s: %w", itemID, err)
	}
	if outcome == domain.AlreadyPresent {
		return fmt.Errorf("add item %s: %w", itemID, domain.ErrDuplicate)
	}
	return nil
}

// ChangePrice records a price change for an existing item.
func (s *Service) ChangePrice(ctx context.Context, itemID string, price int) error {
	ev := domain.FromData(PriceChanged{ItemID: itemID, Price: price})
	if _, err := orchestrator.Save(ctx, s.orchestrator, ev); err != nil {
		return fmt.Errorf("change price for item %s: %w", itemID, err)
	}
	return nil
}

// CurrentItem returns the up-to-date ItemSummary for itemID, using the
// cache-accelerated aggregation engine.
func (s *Service) CurrentItem(ctx context.Context, itemID string) (ItemSummary, error) {
	return aggregate.Aggregate[ItemSummary, ItemQuery, Event](
		ctx, s.aggregator, s.registry, s.orchestrator.Store, s.cache, ItemQuery{ItemID: itemID}, s.metrics,
	)
}

// StartSubscriptions binds durable consumers for both catalog event
// identities, replaying anything the consumer missed since its last
// recorded watermark.
func (s *Service) StartSubscriptions(ctx context.Context, onAdded func(context.Context, domain.Event[ItemAdded]) error, onPriced func(context.Context, domain.Event[PriceChanged]) error) ([]domain.Subscription, error) {
	opts := orchestrator.Options{SaveOnReceive: false, ReplayPreviousEvents: true}

	addedSub, err := orchestrator.Subscribe(ctx, s.orchestrator, opts, onAdded)
	if err != nil {
		return nil, fmt.Errorf("subscribe ItemAdded: %w", err)
	}

	pricedSub, err := orchestrator.Subscribe(ctx, s.orchestrator, opts, onPriced)
	if err != nil {
		addedSub.Close()
		return nil, fmt.Errorf("subscribe PriceChanged: %w", err)
	}

	return []domain.Subscription{addedSub, pricedSub}, nil
}
