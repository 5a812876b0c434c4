// Package router resolves capability names to reachable endpoints and
// executes invocations with bounded retries. Routing decisions consume the
// registry's latest health snapshot; the router never blocks a request on a
// fresh probe and never flips health state itself.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	voyago "github.com/voyago/voyago"
	"github.com/voyago/voyago/capability"
	"github.com/voyago/voyago/internal/retry"
	"github.com/voyago/voyago/registry"
)

const tracerName = "github.com/voyago/voyago/router"

// Router dispatches validated invocations to capability clients.
type Router struct {
	registry *registry.Registry
	clients  map[string]capability.Client
	retry    retry.Config
	timeout  time.Duration
	logger   *slog.Logger
}

// Config configures routing behavior.
type Config struct {
	Retry       retry.Config  // attempts and backoff for provider calls
	CallTimeout time.Duration // bound on a single invocation attempt; 0 disables
}

// New creates a router over the given registry. Clients are attached with
// Register before the first Route call; the set is fixed at startup and read
// without locking afterwards.
func New(reg *registry.Registry, cfg Config, logger *slog.Logger) *Router {
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.Delay == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Retry.RetryableErrors = []error{voyago.ErrCallFailed, voyago.ErrTimeout}
	return &Router{
		registry: reg,
		clients:  make(map[string]capability.Client),
		retry:    cfg.Retry,
		timeout:  cfg.CallTimeout,
		logger:   logger,
	}
}

// Register attaches a capability client under its spec name.
func (r *Router) Register(client capability.Client) {
	r.clients[client.Spec().Name()] = client
}

// Route resolves a capability and executes the invocation.
//
// Unknown names fail closed. Endpoints marked Down fail fast with no network
// call so known-bad backends cannot eat the turn's time budget. Healthy,
// Degraded and Unknown endpoints are all tried: Degraded reflects probe
// latency, not confirmed failure. Call failures after retries are reported
// back to the registry as hints only; the periodic health check remains the
// sole authority over health transitions.
func (r *Router) Route(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "router.route")
	span.SetAttributes(attribute.String("capability", name))
	defer span.End()

	client, ok := r.clients[name]
	if !ok {
		span.SetStatus(codes.Error, "unknown capability")
		return nil, fmt.Errorf("%w: no client for %q", voyago.ErrUnknownCapability, name)
	}

	endpoint, err := r.registry.Lookup(name)
	if err != nil {
		span.SetStatus(codes.Error, "unregistered capability")
		return nil, fmt.Errorf("%w: %q has no registry entry", voyago.ErrUnknownCapability, name)
	}

	if endpoint.Health == registry.HealthDown {
		r.logger.Debug("short-circuiting call to down endpoint", "capability", name)
		span.SetStatus(codes.Error, "endpoint down")
		return nil, fmt.Errorf("%w: %q is down (last checked %s)",
			voyago.ErrUnavailable, name, endpoint.LastChecked.Format(time.RFC3339))
	}

	payload, err := retry.WithRetry(ctx, r.retry, func() (map[string]any, error) {
		callCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		return client.Invoke(callCtx, args)
	})
	if err != nil {
		kind := voyago.ClassifyError(err)
		if kind == voyago.KindCallFailed || kind == voyago.KindTimeout || kind == voyago.KindAuthExpired {
			r.registry.ReportFailure(name)
		}
		r.logger.Warn("capability call failed", "capability", name, "kind", string(kind), "error", err)
		span.SetStatus(codes.Error, string(kind))
		if kind == voyago.KindCallFailed && !errors.Is(err, voyago.ErrCallFailed) {
			err = fmt.Errorf("%w: %w", voyago.ErrCallFailed, err)
		}
		return nil, err
	}

	r.registry.ReportSuccess(name)
	return payload, nil
}
