package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pdf-conversion-billing/internal/config"
)

// New builds the root logger. Level and format come from config; dev mode
// forces the console writer. Production JSON goes to stdout for the log
// collector to pick up.
func New(cfg config.LogConfig, dev bool) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var root zerolog.Logger
	if dev || strings.EqualFold(cfg.Format, "console") {
		root = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	} else {
		root = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	if cfg.Sampling && !dev {
		root = root.Sample(&zerolog.BasicSampler{N: 100})
	}
	return &root
}

type ctxKey struct{}

// WithTraceID stamps the request trace id into ctx; request-scoped loggers
// pick it up through With.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// TraceID returns the trace id stamped by the request middleware, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// With returns base enriched with the ctx trace id when one is present.
func With(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	if id := TraceID(ctx); id != "" {
		l := base.With().Str("trace_id", id).Logger()
		return &l
	}
	return base
}

// TraceDuration marks entry and exit of a hot path at trace level.
// Use as: defer logging.TraceDuration(log, "PaymentUC.HandleWebhook")()
func TraceDuration(logger *zerolog.Logger, name string) func() {
	start := time.Now()
	logger.Trace().Str("op", name).Msg("enter")
	return func() {
		logger.Trace().Str("op", name).Dur("took", time.Since(start)).Msg("exit")
	}
}
