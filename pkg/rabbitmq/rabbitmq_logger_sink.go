package rabbitmq

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/zkemail/paytox/pkg/logger"
	"github.com/zkemail/paytox/pkg/utilities/logmessage"
	"github.com/zkemail/paytox/pkg/utilities/timeutil"
)

const sinkPublishTimeout = 2 * time.Second

func CreateRabbitmqLoggerSink(service string, publisher IRabbitmqPublisher) logger.Sink {
	return func(msg string, level zerolog.Level, timestamp timeutil.TimeUTC) {
		loggerMessage := logmessage.LoggerMessage{
			Service:   service,
			Level:     level.String(),
			Message:   msg,
			Timestamp: timestamp,
		}

		ctx, cancel := context.WithTimeout(context.Background(), sinkPublishTimeout)
		defer cancel()

		if err := publisher.Publish(ctx, loggerMessage); err != nil {
			// not through the logger: that would recurse into this sink
			fmt.Fprintf(os.Stderr, "Failed to publish log message to RabbitMQ: %v\n", err)
		}
	}
}
