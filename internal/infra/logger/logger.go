// Package logger provides structured logging for the rag orchestrator.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
)

// New builds a JSON slog.Logger whose level is taken from LOG_LEVEL
// (debug/info/warn/error, defaulting to info) and installs it as the
// process default. Records are written to stdout and, once
// internal/infra/otel.InitProvider has installed a global
// LoggerProvider, mirrored to it via the otelslog bridge so every log
// line carries the active span's trace/span ID.
func New() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	stdout := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	handler := newMultiHandler(stdout, level)

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// multiHandler fans a slog.Record out to every wrapped handler: the
// stdout JSON handler and the OTel bridge handler. Before
// internal/infra/otel.InitProvider installs a real LoggerProvider, the
// bridge handler's Emit is a harmless no-op against the SDK's default
// provider.
type multiHandler struct {
	handlers []slog.Handler
}

func newMultiHandler(stdout slog.Handler, level slog.Level) *multiHandler {
	otelHandler := otelslog.NewHandler(
		"agentic-rag",
		otelslog.WithLoggerProvider(global.GetLoggerProvider()),
	)
	return &multiHandler{handlers: []slog.Handler{stdout, otelHandler}}
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		out[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: out}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		out[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: out}
}
