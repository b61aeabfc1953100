package catalog

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/akeemphilbert/eventcore/pkg/eventlog/domain"
	"github.com/akeemphilbert/eventcore/pkg/eventlog/infrastructure"
	"github.com/akeemphilbert/eventcore/pkg/eventlog/orchestrator"
	"github.com/akeemphilbert/eventcore/pkg/eventlog/replay"
)

// Module provides the catalog demo domain's Orchestrator and Service on
// top of whatever store/broker/cache/watermark adapters
// infrastructure.Module has already provided, and starts the
// orchestrator's own EventReplayRequested consumer.
var Module = fx.Options(
	fx.Provide(OrchestratorProvider, ServiceProvider),
	fx.Invoke(registerReplayLifecycle),
)

// OrchestratorProvider wires the catalog's consumer domain name (from
// configuration) to the shared store/broker/watermark adapters.
func OrchestratorProvider(
	config *infrastructure.Config,
	store domain.Store,
	broker domain.Broker,
	watermarks domain.WatermarkStore,
	logger infrastructure.Logger,
	metrics infrastructure.MetricsCollector,
) *orchestrator.Orchestrator {
	o := orchestrator.New(config.Broker.Domain, store, broker, watermarks, logger)
	o.Metrics = metrics
	return o
}

// ServiceProvider builds the catalog Service.
func ServiceProvider(o *orchestrator.Orchestrator, cache domain.Cache, metrics infrastructure.MetricsCollector) *Service {
	return NewService(o, cache, metrics)
}

// registerReplayLifecycle starts the orchestrator's built-in
// EventReplayRequested handler on application start, and closes its
// subscription on stop. Every orchestrator must run this, so it is wired
// here rather than left for each entry point to remember.
func registerReplayLifecycle(lc fx.Lifecycle, o *orchestrator.Orchestrator, logger infrastructure.Logger) {
	var sub domain.Subscription
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			started, err := replay.Start(ctx, o)
			if err != nil {
				return fmt.Errorf("start replay handler: %w", err)
			}
			sub = started
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if sub == nil {
				return nil
			}
			if err := sub.Close(); err != nil {
				logger.Error("close replay subscription", err)
				return err
			}
			return nil
		},
	})
}
