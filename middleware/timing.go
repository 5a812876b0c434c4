package middleware

import (
	"context"
	"log/slog"
	"time"
)

type timingKey struct{ scope string }

// TimingMiddleware logs wall-clock durations for turns and tool calls.
type TimingMiddleware struct {
	BaseMiddleware
	logger *slog.Logger
}

// NewTimingMiddleware creates a timing middleware.
func NewTimingMiddleware(logger *slog.Logger) *TimingMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimingMiddleware{logger: logger}
}

func (m *TimingMiddleware) OnTurnStart(ctx context.Context, conversationID, _ string) context.Context {
	return context.WithValue(ctx, timingKey{"turn"}, time.Now())
}

func (m *TimingMiddleware) OnTurnComplete(ctx context.Context, _ string, err error) {
	start, ok := ctx.Value(timingKey{"turn"}).(time.Time)
	if !ok {
		return
	}
	m.logger.Info("turn timing", "duration", time.Since(start), "failed", err != nil)
}

func (m *TimingMiddleware) OnToolStart(ctx context.Context, _ string, _ any) context.Context {
	return context.WithValue(ctx, timingKey{"tool"}, time.Now())
}

func (m *TimingMiddleware) OnToolComplete(ctx context.Context, capability string, _ any, err error) {
	start, ok := ctx.Value(timingKey{"tool"}).(time.Time)
	if !ok {
		return
	}
	m.logger.Debug("tool timing", "capability", capability, "duration", time.Since(start), "failed", err != nil)
}
