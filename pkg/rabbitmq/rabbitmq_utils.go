package rabbitmq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/zkemail/paytox/pkg/logger"
)

const maxConnectRetries = 7

// ConnectToRabbitmq dials with exponential backoff (1s, 2s, 4s, ...).
func ConnectToRabbitmq(ctx context.Context, cfg RabbitmqConfig, l *logger.Logger) (*amqp.Connection, error) {
	queueLogger := logger.OrDefault(l)
	waitTime := 1 * time.Second

	var err error
	for i := 0; i < maxConnectRetries; i++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(cfg.URL())
		if err == nil {
			return conn, nil
		}

		queueLogger.Warnf("Attempt %d failed: %v. Retrying in %v...", i+1, err, waitTime)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}
		waitTime *= 2
	}
	return nil, err
}
