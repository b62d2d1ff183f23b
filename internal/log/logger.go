package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Env   string
	Level slog.Level
	// File, when set, receives a JSON copy of every record and is rotated
	// at FileMaxMB.
	File           string
	FileMaxMB      int
	FileMaxBackups int
}

// New builds the process logger: tint on stdout for ENV=local, JSON
// otherwise, each wrapped in a ContextHandler.
func New(opts Options) *slog.Logger {
	var inner slog.Handler
	if opts.Env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      opts.Level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: opts.Level,
		})
	}

	if opts.File != "" {
		var sink io.Writer = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.FileMaxMB,
			MaxBackups: opts.FileMaxBackups,
			Compress:   true,
		}
		inner = fanout{inner, slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: opts.Level})}
	}
	return slog.New(NewContextHandler(inner))
}

// fanout writes every record to each handler in turn.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
