package logger

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/zkemail/paytox/pkg/utilities/timeutil"
)

// Sink receives a copy of every message that passes the level filter.
type Sink func(msg string, level zerolog.Level, timestamp timeutil.TimeUTC)

func AddSinkToLoggerInstance(loggerInstance *Logger, sink Sink) {
	loggerInstance.sink = sink
}

func (l *Logger) activateSinkFormatted(level zerolog.Level, format string, v ...interface{}) {
	if l.sink == nil {
		return
	}
	l.activateSink(level, fmt.Sprintf(format, v...))
}

func (l *Logger) activateSink(level zerolog.Level, msg string) {
	if l.sink == nil || level < l.zl.GetLevel() {
		return
	}
	l.sink(msg, level, now())
}
