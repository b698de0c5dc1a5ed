package logger

import (
	"context"
	"fmt"
	"io"
	"line_chatbot/src/model"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var Logger = zerolog.Nop()

var timeFormats = map[string]string{
	"rfc3339": time.RFC3339,
	"unix":    zerolog.TimeFormatUnix,
	"iso8601": "2006-01-02T15:04:05.000Z07:00",
}

// InitLogger replaces the global logger according to config
func InitLogger(config model.LogConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		return fmt.Errorf("invalid log level '%s': %w", config.Level, err)
	}

	out, err := openOutput(config)
	if err != nil {
		return err
	}
	if strings.EqualFold(config.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if f, ok := timeFormats[strings.ToLower(config.TimeFormat)]; ok {
		zerolog.TimeFieldFormat = f
	}

	Logger = zerolog.New(out).With().Timestamp().Caller().Logger()
	log.Logger = Logger
	zerolog.DefaultContextLogger = &Logger

	Logger.Info().
		Str("level", level.String()).
		Str("format", config.Format).
		Str("output", config.Output).
		Msg("Logger ready")
	return nil
}

// openOutput resolves LOG_OUTPUT; anything unknown writes to stdout
func openOutput(config model.LogConfig) (io.Writer, error) {
	switch strings.ToLower(config.Output) {
	case "stderr":
		return os.Stderr, nil
	case "file":
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file '%s': %w", config.FilePath, err)
		}
		return f, nil
	default:
		return os.Stdout, nil
	}
}

// Ctx returns the logger attached to ctx, falling back to the global logger
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return &Logger
	}
	return l
}

// WithFields returns a context carrying a child logger with the given fields
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	l := Ctx(ctx).With().Fields(fields).Logger()
	return l.WithContext(ctx)
}

func Info() *zerolog.Event  { return Logger.Info() }
func Warn() *zerolog.Event  { return Logger.Warn() }
func Error() *zerolog.Event { return Logger.Error() }
