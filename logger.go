// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmpv3engine

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	LoggerJSON = iota
	LoggerConsole
)

// NewLogger returns a zerolog logger writing to w with Unix timestamps.
// A nil w writes human readable lines to stderr. An empty level means info.
func NewLogger(w io.Writer, format int, level string) (zerolog.Logger, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if w == nil {
		w = os.Stderr
		format = LoggerConsole
	}
	if format == LoggerConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: zerolog.TimeFormatUnix}
	}
	logger := zerolog.New(w).With().Timestamp().Logger()

	return SetLogLevel(logger, level)
}

// SetLogLevel parses level (trace, debug, info, warn, error, disabled).
func SetLogLevel(logger zerolog.Logger, level string) (zerolog.Logger, error) {
	if level == "" {
		level = zerolog.InfoLevel.String()
	}

	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return logger, err
	}

	return logger.Level(logLevel), nil
}
