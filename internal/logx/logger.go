package logx

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	Format      string // json | console
	Output      io.Writer
}

type Logger struct {
	base *zerolog.Logger
}

type ctxKey struct{}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}

	var output io.Writer = opts.Output
	if output == nil {
		output = os.Stdout
	}
	if opts.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	l := zerolog.New(output).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger().
		Level(opts.Level)
	return &Logger{base: &l}
}

// Nop discards everything. Handy default for optional loggers.
func Nop() *Logger {
	l := zerolog.Nop()
	return &Logger{base: &l}
}

func ParseLevel(value string) zerolog.Level {
	s := strings.ToLower(strings.TrimSpace(value))
	if s == "" {
		return zerolog.InfoLevel
	}
	if lvl, err := zerolog.ParseLevel(s); err == nil && lvl != zerolog.NoLevel {
		return lvl
	}
	return zerolog.InfoLevel
}

func (l *Logger) from(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return entry
		}
	}
	return l.base
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	entry := l.from(ctx).With().Interface(key, value).Logger()
	return context.WithValue(ctx, ctxKey{}, &entry)
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	b := l.from(ctx).With()
	for k, v := range fields {
		b = b.Interface(k, v)
	}
	entry := b.Logger()
	return context.WithValue(ctx, ctxKey{}, &entry)
}

func (l *Logger) Debug(ctx context.Context, msg string) { l.from(ctx).Debug().Msg(msg) }

func (l *Logger) Info(ctx context.Context, msg string) { l.from(ctx).Info().Msg(msg) }

func (l *Logger) Warn(ctx context.Context, msg string, err error) {
	ev := l.from(ctx).Warn()
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error) {
	ev := l.from(ctx).Error()
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(msg)
}
