package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.elastic.co/ecszerolog"
)

// Output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
	FormatECS     = "ecs"
)

// Config holds logger configuration
type Config struct {
	Level   string
	Format  string
	Service string
	Output  io.Writer
}

// New builds a logger for cfg without touching global state.
func New(cfg Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	var logger zerolog.Logger
	switch strings.ToLower(cfg.Format) {
	case "", FormatConsole:
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	case FormatJSON:
		logger = zerolog.New(out).With().Timestamp().Logger()
	case FormatECS:
		logger = ecszerolog.New(out)
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.Service != "" {
		logger = logger.With().Str("service", cfg.Service).Logger()
	}
	return logger.Level(level), nil
}

// Setup installs the logger as the global logger and as the fallback for
// zerolog.Ctx on contexts that carry none.
func Setup(cfg Config) (zerolog.Logger, error) {
	logger, err := New(cfg)
	if err != nil {
		return logger, err
	}
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return logger, nil
}
