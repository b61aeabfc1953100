package infrastructure

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/akeemphilbert/eventcore/pkg/eventlog/domain"
)

// queueName renders the per-consumer durable queue name, "<domain>-<subject>".
func queueName(consumerDomain, subject string) string {
	return consumerDomain + "-" + subject
}

// closerFunc adapts a plain function to domain.Subscription.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// AMQPBroker is a topic-exchange broker (C4) over a real AMQP server,
// built on watermill paired with watermill-amqp/v3. Ack/nack is handled
// entirely by watermill's router: a nil handler return acks, a non-nil
// return leaves the delivery unacked for redelivery.
type AMQPBroker struct {
	exchange  string
	publisher *amqp.Publisher
	amqpURI   string
	logger    watermill.LoggerAdapter

	mu     sync.Mutex
	router *message.Router
}

// NewAMQPBroker connects to the AMQP server at amqpURI and declares
// exchange as a durable topic exchange.
func NewAMQPBroker(amqpURI, exchange string, logger watermill.LoggerAdapter) (*AMQPBroker, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	publisher, err := amqp.NewPublisher(publisherConfig(amqpURI, exchange), logger)
	if err != nil {
		return nil, fmt.Errorf("%w: connect amqp publisher: %v", domain.ErrTransient, err)
	}

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: create amqp router: %v", domain.ErrFatal, err)
	}
	go func() {
		if err := router.Run(context.Background()); err != nil {
			logger.Error("amqp router stopped", err, nil)
		}
	}()

	return &AMQPBroker{exchange: exchange, publisher: publisher, amqpURI: amqpURI, logger: logger, router: router}, nil
}

func publisherConfig(amqpURI, exchange string) amqp.Config {
	cfg := amqp.NewDurableQueueConfig(amqpURI)
	cfg.Exchange = amqp.Exchange{
		GenerateName: func(topic string) string { return exchange },
		Type:         "topic",
		Durable:      true,
	}
	cfg.Publish.GenerateRoutingKey = func(topic string) string { return topic }
	return cfg
}

func subscriberConfig(amqpURI, exchange, consumerDomain string) amqp.Config {
	cfg := publisherConfig(amqpURI, exchange)
	cfg.Queue = amqp.QueueConfig{
		GenerateName: func(topic string) string { return queueName(consumerDomain, topic) },
		Durable:      true,
		Exclusive:    false,
		AutoDelete:   false,
	}
	cfg.QueueBind.GenerateRoutingKey = func(topic string) string { return topic }
	return cfg
}

func (b *AMQPBroker) Publish(ctx context.Context, subject string, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.publisher.Publish(subject, msg); err != nil {
		return fmt.Errorf("%w: publish to %s: %v", domain.ErrTransient, subject, err)
	}
	return nil
}

func (b *AMQPBroker) Subscribe(ctx context.Context, consumerDomain, subject string, handler domain.Handler) (domain.Subscription, error) {
	subscriber, err := amqp.NewSubscriber(subscriberConfig(b.amqpURI, b.exchange, consumerDomain), b.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: connect amqp subscriber: %v", domain.ErrTransient, err)
	}

	handlerName := queueName(consumerDomain, subject)
	b.mu.Lock()
	b.router.AddNoPublisherHandler(handlerName, subject, subscriber, func(msg *message.Message) error {
		return handler(msg.Context(), msg.Payload)
	})
	b.mu.Unlock()

	// The router is already running, so handlers added now must be started
	// explicitly.
	<-b.router.Running()
	if err := b.router.RunHandlers(context.Background()); err != nil {
		return nil, fmt.Errorf("%w: start amqp handler %s: %v", domain.ErrFatal, handlerName, err)
	}

	return closerFunc(subscriber.Close), nil
}

// Close shuts down the router and the publisher connection.
func (b *AMQPBroker) Close() error {
	if err := b.router.Close(); err != nil {
		return err
	}
	return b.publisher.Close()
}

// ChannelBroker is an in-process topic exchange (C4) over
// watermill/pubsub/gochannel, for tests and the in-process demo: same
// subject/queue semantics, no real broker behind it.
type ChannelBroker struct {
	pubSub *gochannel.GoChannel
	router *message.Router
	logger watermill.LoggerAdapter
}

// NewChannelBroker builds an in-memory broker.
func NewChannelBroker(logger watermill.LoggerAdapter) (*ChannelBroker, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64, Persistent: true}, logger)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: create channel router: %v", domain.ErrFatal, err)
	}
	go func() {
		if err := router.Run(context.Background()); err != nil {
			logger.Error("channel router stopped", err, nil)
		}
	}()

	return &ChannelBroker{pubSub: pubSub, router: router, logger: logger}, nil
}

func (b *ChannelBroker) Publish(ctx context.Context, subject string, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubSub.Publish(subject, msg); err != nil {
		return fmt.Errorf("%w: publish to %s: %v", domain.ErrTransient, subject, err)
	}
	return nil
}

func (b *ChannelBroker) Subscribe(ctx context.Context, consumerDomain, subject string, handler domain.Handler) (domain.Subscription, error) {
	handlerName := queueName(consumerDomain, subject)
	h := b.router.AddNoPublisherHandler(handlerName, subject, b.pubSub, func(msg *message.Message) error {
		return handler(msg.Context(), msg.Payload)
	})

	// The router is already running, so handlers added now must be started
	// explicitly.
	<-b.router.Running()
	if err := b.router.RunHandlers(context.Background()); err != nil {
		return nil, fmt.Errorf("%w: start channel handler %s: %v", domain.ErrFatal, handlerName, err)
	}

	return closerFunc(func() error { h.Stop(); return nil }), nil
}

// Close shuts down the router and the underlying channel pub/sub.
func (b *ChannelBroker) Close() error {
	if err := b.router.Close(); err != nil {
		return err
	}
	return b.pubSub.Close()
}
