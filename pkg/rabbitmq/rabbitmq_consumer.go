package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/zkemail/paytox/pkg/logger"
)

type ConsumerAlias string

type IRabbitmqConsumer interface {
	StartConsuming(ctx context.Context, handler func(amqp.Delivery) error) error
}

// AmqpConsumeChannel is the part of *amqp.Channel a consumer needs.
type AmqpConsumeChannel interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type ConsumerRegistry struct {
	mu        sync.RWMutex
	consumers map[ConsumerAlias]IRabbitmqConsumer
}

func NewConsumerRegistry() *ConsumerRegistry {
	return &ConsumerRegistry{consumers: map[ConsumerAlias]IRabbitmqConsumer{}}
}

func InitializeConsumerRegistry(conn *amqp.Connection, consumerConfig []RabbitmqConsumerConfig, l *logger.Logger) (*ConsumerRegistry, error) {
	registry := NewConsumerRegistry()

	for _, consumer := range consumerConfig {
		channel, err := conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("open channel for consumer %s: %w", consumer.ConsumerAlias, err)
		}

		registry.Register(consumer.ConsumerAlias, NewConsumer(
			channel,
			consumer.QueueName,
			consumer.ConsumerTag,
			l,
		))
	}

	return registry, nil
}

func (r *ConsumerRegistry) Register(alias ConsumerAlias, consumer IRabbitmqConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumers[alias] = consumer
}

func (r *ConsumerRegistry) GetConsumer(alias ConsumerAlias) IRabbitmqConsumer {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.consumers[alias]
}

type RabbitmqConsumer struct {
	Channel     AmqpConsumeChannel
	QueueName   string
	ConsumerTag string
	log         *logger.Logger
}

func NewConsumer(ch AmqpConsumeChannel, queueName, consumerTag string, l *logger.Logger) *RabbitmqConsumer {
	return &RabbitmqConsumer{
		Channel:     ch,
		QueueName:   queueName,
		ConsumerTag: consumerTag,
		log:         logger.OrDefault(l),
	}
}

// StartConsuming blocks until ctx is done or the delivery channel closes.
// Handler errors and panics are logged; the consumer keeps going.
func (rc *RabbitmqConsumer) StartConsuming(ctx context.Context, handler func(amqp.Delivery) error) error {
	msgs, err := rc.Channel.Consume(
		rc.QueueName,   // queue
		rc.ConsumerTag, // consumer
		true,           // auto-ack
		false,          // exclusive
		false,          // no-local
		false,          // no-wait
		nil,            // args
	)
	if err != nil {
		return fmt.Errorf("register consumer %s: %w", rc.ConsumerTag, err)
	}

	rc.log.Infof("Waiting for messages in queue: %s", rc.QueueName)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			rc.handle(handler, d)
		}
	}
}

func (rc *RabbitmqConsumer) handle(handler func(amqp.Delivery) error, d amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			rc.log.Errorf(nil, "[%s] Recovered from panic for consumer: %s, %v", rc.QueueName, rc.ConsumerTag, r)
		}
	}()

	rc.log.Debugf("[%s] %s", rc.QueueName, d.Body)
	if err := handler(d); err != nil {
		rc.log.Errorf(err, "[%s] handler failed", rc.QueueName)
	}
}
