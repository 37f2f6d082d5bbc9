package observability

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tavola-kitchen/api/internal/platform/requestctx"
)

const defaultLogLevel = "info"

// NewLogger builds a JSON zap logger using Cloud Logging field names. An empty or
// unknown level falls back to info.
func NewLogger(levelName string) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(levelName)))); err != nil || strings.TrimSpace(levelName) == "" {
		_ = level.UnmarshalText([]byte(defaultLogLevel))
	}

	cfg := zap.Config{
		Level:    level,
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:    "message",
			TimeKey:       "timestamp",
			LevelKey:      "severity",
			CallerKey:     "caller",
			StacktraceKey: "stacktrace",
			EncodeTime:    zapcore.RFC3339NanoTimeEncoder,
			EncodeCaller:  zapcore.ShortCallerEncoder,
			EncodeLevel: func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
				enc.AppendString(strings.ToUpper(level.String()))
			},
		},
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	return cfg.Build()
}

// WithLogger injects the logger into the provided context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// FromContext retrieves the logger from context, defaulting to a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	return requestctx.Logger(ctx)
}

// EventLogger adapts zap to the event-style logger taken by the services. The
// request-scoped logger wins over fallback so events carry request fields.
func EventLogger(fallback *zap.Logger) func(context.Context, string, map[string]any) {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() {
			logger = fallback
		}
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		zfields := make([]zap.Field, 0, len(keys)+1)
		zfields = append(zfields, zap.String("event", event))
		var failed bool
		for _, key := range keys {
			value := fields[key]
			if err, ok := value.(error); ok {
				failed = true
				zfields = append(zfields, zap.NamedError(key, err))
				continue
			}
			zfields = append(zfields, zap.Any(key, value))
		}
		if failed {
			logger.Warn(event, zfields...)
			return
		}
		logger.Info(event, zfields...)
	}
}
