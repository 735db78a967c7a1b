package logaudit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/zkemail/paytox/pkg/logger"
	"github.com/zkemail/paytox/pkg/rabbitmq"
	"github.com/zkemail/paytox/pkg/utilities"
	"github.com/zkemail/paytox/pkg/utilities/logmessage"
)

const sinkWorkerName = "LogSinkWorker"

var ErrNoConsumer = errors.New("no consumer configured for log messages")

// SinkWorker drains the log queue into the audit table. Its logger must not
// publish to the same queue it consumes.
type SinkWorker struct {
	consumer       rabbitmq.IRabbitmqConsumer
	repo           Repository
	defaultService string
	log            *logger.Logger
}

func NewSinkWorker(consumer rabbitmq.IRabbitmqConsumer, repo Repository, defaultService string, l *logger.Logger) *SinkWorker {
	return &SinkWorker{
		consumer:       consumer,
		repo:           repo,
		defaultService: defaultService,
		log:            logger.OrDefault(l).Named("log_sink"),
	}
}

func (w *SinkWorker) GetServiceName() string {
	return sinkWorkerName
}

func (w *SinkWorker) StartService(ctx context.Context) error {
	if w.consumer == nil {
		return ErrNoConsumer
	}
	w.log.Info("Starting Log Sink Worker")
	return w.consumer.StartConsuming(ctx, func(d amqp.Delivery) error {
		return w.store(ctx, d.Body)
	})
}

func (w *SinkWorker) store(ctx context.Context, body []byte) error {
	var msg logmessage.LoggerMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode log message: %w", err)
	}

	entry := Entry{
		Service:   utilities.FirstNonEmpty(msg.Service, w.defaultService),
		Level:     msg.Level,
		Message:   msg.Message,
		Timestamp: msg.Timestamp.Time(),
	}
	if err := w.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("save log message: %w", err)
	}
	w.log.Debugf("Stored %s log line from %s", entry.Level, entry.Service)
	return nil
}
