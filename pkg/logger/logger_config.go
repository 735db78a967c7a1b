package logger

import (
	"strings"

	"github.com/rs/zerolog"
)

type LoggerConfigJson struct {
	LogLevel string `json:"log_level"`
	Console  bool   `json:"console"`
}

type LoggerConfig struct {
	LogLevel zerolog.Level
	Console  bool
}

func (lcj LoggerConfigJson) ConvertToDomain() LoggerConfig {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(lcj.LogLevel)))
	if err != nil {
		level = zerolog.InfoLevel
	}

	return LoggerConfig{
		LogLevel: level,
		Console:  lcj.Console,
	}
}
