// Package middleware provides hooks into turn processing for observability
// and instrumentation.
package middleware

import "context"

// Middleware receives callbacks at the boundaries of turn processing.
type Middleware interface {
	OnTurnStart(ctx context.Context, conversationID, message string) context.Context
	OnTurnComplete(ctx context.Context, reply string, err error)
	OnToolStart(ctx context.Context, capability string, args any) context.Context
	OnToolComplete(ctx context.Context, capability string, result any, err error)
	OnPlannerCall(ctx context.Context, phase string) context.Context
	OnPlannerResponse(ctx context.Context, phase string, err error)
}

// BaseMiddleware provides no-op implementations for Middleware.
// Embed this in custom middleware to implement only the hooks you need.
type BaseMiddleware struct{}

func (BaseMiddleware) OnTurnStart(ctx context.Context, _, _ string) context.Context { return ctx }
func (BaseMiddleware) OnTurnComplete(context.Context, string, error)                {}
func (BaseMiddleware) OnToolStart(ctx context.Context, _ string, _ any) context.Context {
	return ctx
}
func (BaseMiddleware) OnToolComplete(context.Context, string, any, error)            {}
func (BaseMiddleware) OnPlannerCall(ctx context.Context, _ string) context.Context   { return ctx }
func (BaseMiddleware) OnPlannerResponse(context.Context, string, error)              {}
