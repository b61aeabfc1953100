package infrastructure

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/akeemphilbert/eventcore/pkg/eventlog/domain"
)

// Module wires the infrastructure layer: config, database, the Gorm-backed
// store/cache/watermark adapters, the broker selected by configuration,
// logging, and metrics.
var Module = fx.Options(
	fx.Provide(
		LoadConfig,
		DatabaseProvider,
		LoggerProvider,
		WatermillLoggerProvider,
		MetricsProvider,
		StoreProvider,
		CacheProvider,
		WatermarkStoreProvider,
		BrokerProvider,
	),
	fx.Invoke(registerDatabaseLifecycle, registerBrokerLifecycle),
)

func registerDatabaseLifecycle(lc fx.Lifecycle, db *gorm.DB, logger Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting database connection")
			if err := HealthCheck(db); err != nil {
				logger.Error("database ping failed", err)
				return err
			}
			logger.Info("database connection established")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing database connection")
			sqlDB, err := db.DB()
			if err != nil {
				logger.Error("get underlying database connection for closing", err)
				return err
			}
			if err := sqlDB.Close(); err != nil {
				logger.Error("close database connection", err)
				return err
			}
			return nil
		},
	})
}

func registerBrokerLifecycle(lc fx.Lifecycle, broker domain.Broker, logger Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing broker")
			if closer, ok := broker.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					logger.Error("close broker", err)
					return err
				}
			}
			return nil
		},
	})
}

// DatabaseProvider opens the shared *gorm.DB from configuration.
func DatabaseProvider(config *Config) (*gorm.DB, error) {
	return NewDatabase(config.Database)
}

// LoggerProvider builds the process logger from configuration.
func LoggerProvider(config *Config) Logger {
	return NewLogger(config.Logging.Level, config.Logging.Format)
}

// WatermillLoggerProvider adapts Logger to watermill.LoggerAdapter for the
// broker adapters.
func WatermillLoggerProvider(logger Logger) watermill.LoggerAdapter {
	return &WatermillLoggerAdapter{Logger: logger}
}

// MetricsProvider builds the in-memory metrics collector.
func MetricsProvider(logger Logger) MetricsCollector {
	return NewSimpleMetricsCollector(logger)
}

// StoreProvider builds the durable event log from the shared database.
func StoreProvider(db *gorm.DB) (domain.Store, error) {
	return NewGormStore(db)
}

// CacheProvider builds the aggregation cache from the shared database.
func CacheProvider(db *gorm.DB) (domain.Cache, error) {
	return NewGormCache(db)
}

// WatermarkStoreProvider builds the watermark store from the shared database.
func WatermarkStoreProvider(db *gorm.DB) (domain.WatermarkStore, error) {
	return NewGormWatermarkStore(db)
}

// BrokerProvider selects and constructs the broker named by configuration.
func BrokerProvider(config *Config, logger watermill.LoggerAdapter) (domain.Broker, error) {
	switch config.Broker.Kind {
	case "amqp":
		return NewAMQPBroker(config.Broker.AMQPURI, config.Broker.Exchange, logger)
	case "channel":
		return NewChannelBroker(logger)
	default:
		return nil, fmt.Errorf("unsupported broker kind: %s", config.Broker.Kind)
	}
}
