package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"monitoring/internal/config"
)

// New builds a logger for configured sinks and returns a cleanup function.
// Params: cfg contains console/file sink settings; attrs are attached to every record.
// Returns: slog logger, cleanup callback, and setup error.
func New(cfg config.LogConfig, attrs ...slog.Attr) (*slog.Logger, func(), error) {
	return newWithConsole(cfg, os.Stdout, attrs...)
}

func newWithConsole(cfg config.LogConfig, console io.Writer, attrs ...slog.Attr) (*slog.Logger, func(), error) {
	var (
		handlers []slog.Handler
		closers  []io.Closer
	)
	closeFn := func() {
		for _, closer := range closers {
			_ = closer.Close()
		}
	}

	if cfg.Console.Enabled {
		handler, err := consoleHandler(cfg.Console, console)
		if err != nil {
			return nil, nil, fmt.Errorf("build console handler: %w", err)
		}
		handlers = append(handlers, handler)
	}
	if cfg.File.Enabled {
		handler, closer, err := fileHandler(cfg.File)
		if err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("build file handler: %w", err)
		}
		handlers = append(handlers, handler)
		closers = append(closers, closer)
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		return nil, nil, fmt.Errorf("no log sinks enabled")
	case 1:
		handler = handlers[0]
	default:
		handler = fanout(handlers)
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}
	return slog.New(handler), closeFn, nil
}

// consoleHandler writes without timestamps; line format is colorized by level,
// notification type, and state.
func consoleHandler(sink config.LogSinkConfig, w io.Writer) (slog.Handler, error) {
	level, err := parseLevel(sink.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return attr
		},
	}
	return formatHandler(sink.Format, &colorWriter{dst: w}, w, opts)
}

// fileHandler opens the sink path for append.
// Params: sink contains path, level, and format.
// Returns: handler, file closer, and error.
func fileHandler(sink config.LogSinkConfig) (slog.Handler, io.Closer, error) {
	level, err := parseLevel(sink.Level)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(sink.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open file %q: %w", sink.Path, err)
	}
	handler, err := formatHandler(sink.Format, file, file, &slog.HandlerOptions{Level: level})
	if err != nil {
		_ = file.Close()
		return nil, nil, err
	}
	return handler, file, nil
}

func formatHandler(format string, line, json io.Writer, opts *slog.HandlerOptions) (slog.Handler, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "line":
		return slog.NewTextHandler(line, opts), nil
	case "json":
		return slog.NewJSONHandler(json, opts), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// parseLevel converts configuration level into slog.Level.
// Params: value is log level name (debug, info, warn, error).
// Returns: slog level or error.
func parseLevel(value string) (slog.Level, error) {
	var level slog.Level
	switch name := strings.TrimSpace(strings.ToLower(value)); name {
	case "debug", "info", "warn", "error":
		if err := level.UnmarshalText([]byte(name)); err != nil {
			return slog.LevelInfo, err
		}
		return level, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported level %q", value)
	}
}
