package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Level     slog.Level
	Format    string
	Output    io.Writer
	AddSource bool
}

func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Format:    "text",
		Output:    os.Stderr,
		AddSource: false,
	}
}

// ParseLevel accepts debug, info, warn and error in any case, with an
// optional offset such as "debug-2".
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// ConfigFrom builds a Config from the string settings kept in the config
// file.
func ConfigFrom(level, format string, out io.Writer) (Config, error) {
	cfg := DefaultConfig()
	lvl, err := ParseLevel(level)
	if err != nil {
		return cfg, err
	}
	cfg.Level = lvl
	switch strings.ToLower(format) {
	case "", "text":
		cfg.Format = "text"
	case "json":
		cfg.Format = "json"
	default:
		return cfg, fmt.Errorf("invalid log format %q", format)
	}
	if out != nil {
		cfg.Output = out
	}
	return cfg, nil
}

func Init(cfg Config) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func Debug(msg string, args ...any) { slog.Debug(msg, args...) }
func Info(msg string, args ...any)  { slog.Info(msg, args...) }
func Warn(msg string, args ...any)  { slog.Warn(msg, args...) }
func Error(msg string, args ...any) { slog.Error(msg, args...) }

// ForComponent returns a logger tagged with component. It resolves the
// default handler on every record, so package-level loggers created before
// Init still follow the configured level and format.
func ForComponent(component string) *slog.Logger {
	return slog.New(lateHandler{}).With("component", component)
}

func With(args ...any) *slog.Logger {
	return slog.Default().With(args...)
}

type lateHandler struct {
	wrap []func(slog.Handler) slog.Handler
}

func (h lateHandler) resolve() slog.Handler {
	handler := slog.Default().Handler()
	for _, w := range h.wrap {
		handler = w(handler)
	}
	return handler
}

func (h lateHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.resolve().Enabled(ctx, level)
}

func (h lateHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.resolve().Handle(ctx, r)
}

func (h lateHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.extend(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

func (h lateHandler) WithGroup(name string) slog.Handler {
	return h.extend(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

func (h lateHandler) extend(w func(slog.Handler) slog.Handler) lateHandler {
	wrap := make([]func(slog.Handler) slog.Handler, len(h.wrap), len(h.wrap)+1)
	copy(wrap, h.wrap)
	return lateHandler{wrap: append(wrap, w)}
}
