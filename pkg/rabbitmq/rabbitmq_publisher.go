package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/zkemail/paytox/pkg/utilities"
)

type PublisherAlias string

type IRabbitmqPublisher interface {
	Publish(ctx context.Context, body utilities.Serializable) error
}

// AmqpPublishChannel is the part of *amqp.Channel a publisher needs.
type AmqpPublishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type PublisherRegistry struct {
	mu         sync.RWMutex
	publishers map[PublisherAlias]IRabbitmqPublisher
}

func NewPublisherRegistry() *PublisherRegistry {
	return &PublisherRegistry{publishers: map[PublisherAlias]IRabbitmqPublisher{}}
}

// InitializePublisherRegistry opens one channel per configured publisher.
func InitializePublisherRegistry(conn *amqp.Connection, publisherConfig []RabbitmqPublishersConfig) (*PublisherRegistry, error) {
	registry := NewPublisherRegistry()

	for _, publisher := range publisherConfig {
		channel, err := conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("open channel for publisher %s: %w", publisher.PublisherAlias, err)
		}

		registry.Register(publisher.PublisherAlias, NewPublisher(
			channel,
			publisher.Exchange,
			publisher.RoutingKey,
		))
	}

	return registry, nil
}

func (r *PublisherRegistry) Register(alias PublisherAlias, publisher IRabbitmqPublisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishers[alias] = publisher
}

// GetPublisher returns nil when alias is unknown.
func (r *PublisherRegistry) GetPublisher(alias PublisherAlias) IRabbitmqPublisher {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.publishers[alias]
}

type RabbitmqPublisher struct {
	Channel    AmqpPublishChannel
	Exchange   string
	RoutingKey string
}

func NewPublisher(ch AmqpPublishChannel, exchange, routingKey string) *RabbitmqPublisher {
	return &RabbitmqPublisher{
		Channel:    ch,
		Exchange:   exchange,
		RoutingKey: routingKey,
	}
}

func (rp *RabbitmqPublisher) Publish(ctx context.Context, body utilities.Serializable) error {
	json, err := body.Serialize()
	if err != nil {
		return err
	}

	return rp.Channel.PublishWithContext(
		ctx,
		rp.Exchange,
		rp.RoutingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         json,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
}
