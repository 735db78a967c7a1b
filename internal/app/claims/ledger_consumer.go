package claims

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/zkemail/paytox/pkg/logger"
	"github.com/zkemail/paytox/pkg/rabbitmq"
)

const ledgerConsumerName = "ClaimLedgerConsumer"

var ErrNoConsumer = errors.New("no consumer configured for claim events")

// LedgerConsumer applies queued claim events to the ledger.
type LedgerConsumer struct {
	consumer rabbitmq.IRabbitmqConsumer
	handler  EventHandler
	log      *logger.Logger
}

func NewLedgerConsumer(consumer rabbitmq.IRabbitmqConsumer, handler EventHandler, l *logger.Logger) *LedgerConsumer {
	return &LedgerConsumer{
		consumer: consumer,
		handler:  handler,
		log:      logger.OrDefault(l).Named("ledger_consumer"),
	}
}

func (c *LedgerConsumer) GetServiceName() string {
	return ledgerConsumerName
}

func (c *LedgerConsumer) StartService(ctx context.Context) error {
	if c.consumer == nil {
		return ErrNoConsumer
	}
	return c.consumer.StartConsuming(ctx, func(d amqp.Delivery) error {
		return c.apply(ctx, d.Body)
	})
}

func (c *LedgerConsumer) apply(ctx context.Context, body []byte) error {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return fmt.Errorf("decode claim event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()
	if err := c.handler.Handle(ctx, e); err != nil {
		return fmt.Errorf("apply %s for session %s: %w", e.Kind, e.SessionID, err)
	}
	return nil
}
