package logger

import "sync"

type LoggerArg struct {
	Key   string
	Value string
}

type GlobalLoggerConfig struct {
	Args   []LoggerArg
	Config *LoggerConfig
}

var (
	defaultLogger *Logger
	onceLogger    sync.Once
	defaultMu     sync.RWMutex
)

func InitDefaultLogger(config GlobalLoggerConfig) {
	onceLogger.Do(func() {
		l := New()
		if config.Config != nil {
			l = NewFromConfig(*config.Config)
		}

		ctx := l.zl.With()
		for _, arg := range config.Args {
			ctx = ctx.Str(arg.Key, arg.Value)
		}
		l.zl = ctx.Logger()

		defaultMu.Lock()
		defaultLogger = l
		defaultMu.Unlock()
	})
}

func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()

	if defaultLogger == nil {
		panic("Default logger not initialized: call InitDefaultLogger() first")
	}
	return defaultLogger
}

// OrDefault returns l when set, the default logger when initialized and a no-op logger otherwise.
func OrDefault(l *Logger) *Logger {
	if l != nil {
		return l
	}

	defaultMu.RLock()
	defer defaultMu.RUnlock()
	if defaultLogger != nil {
		return defaultLogger
	}
	return Nop()
}
