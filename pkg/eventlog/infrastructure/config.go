package infrastructure

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level process configuration for an event-store
// participant.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BrokerConfig selects and configures the subscription broker.
type BrokerConfig struct {
	Kind     string `mapstructure:"kind"` // channel, amqp
	AMQPURI  string `mapstructure:"amqp_uri"`
	Exchange string `mapstructure:"exchange"`
	Domain   string `mapstructure:"domain"` // consumer domain for queue naming
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error, fatal
	Format string `mapstructure:"format"` // json, text
}

// LoadConfig loads configuration from ./config.yaml (or ./configs,
// ./config) and EVENTCORE_-prefixed environment variables, falling back
// to defaults when no file is present.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("EVENTCORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "file:eventcore.db?cache=shared&mode=rwc")

	viper.SetDefault("broker.kind", "channel")
	viper.SetDefault("broker.exchange", "eventcore")
	viper.SetDefault("broker.domain", "eventcore")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres)", config.Database.Driver)
	}
	if config.Database.DSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}

	switch config.Broker.Kind {
	case "channel":
	case "amqp":
		if config.Broker.AMQPURI == "" {
			return fmt.Errorf("broker.amqp_uri is required when broker.kind is amqp")
		}
	default:
		return fmt.Errorf("unsupported broker kind: %s (supported: channel, amqp)", config.Broker.Kind)
	}
	if config.Broker.Domain == "" {
		return fmt.Errorf("broker.domain cannot be empty")
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("unsupported logging level: %s (supported: debug, info, warn, error, fatal)", config.Logging.Level)
	}

	switch config.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported logging format: %s (supported: json, text)", config.Logging.Format)
	}

	return nil
}
