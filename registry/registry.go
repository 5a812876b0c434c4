// Package registry tracks capability endpoints and their liveness. It is the
// single owner of health state: the periodic check loop is the only writer of
// health transitions, while request-path lookups read the latest snapshot
// without ever waiting on a probe.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Health is the last observed liveness of a capability endpoint.
type Health string

const (
	HealthUnknown  Health = "unknown"  // registered, never probed
	HealthHealthy  Health = "healthy"  // last probe succeeded
	HealthDegraded Health = "degraded" // last probe timed out
	HealthDown     Health = "down"     // last probe failed outright
)

// ErrNotFound is returned when looking up an unregistered capability.
var ErrNotFound = errors.New("registry: capability not found")

// Endpoint is the registry's view of one capability.
type Endpoint struct {
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Health      Health    `json:"health"`
	LastChecked time.Time `json:"last_checked,omitempty"`

	// Request-path failure hints reported by the router. Hints are
	// informational only and never change Health; the periodic probe is the
	// sole authority, which keeps transient request failures from flapping
	// routing decisions.
	LastFailure         time.Time `json:"last_failure,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures,omitempty"`
}

// Prober issues one liveness probe against an endpoint address.
type Prober interface {
	Probe(ctx context.Context, address string) error
}

// HTTPProber probes endpoints with a GET against their health path.
type HTTPProber struct {
	Client *http.Client
	Path   string // defaults to "/health"
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, address string) error {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	path := p.Path
	if path == "" {
		path = "/health"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address+path, nil)
	if err != nil {
		return fmt.Errorf("registry: build probe request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry: probe returned status %d", resp.StatusCode)
	}
	return nil
}

// ReachabilityProber probes third-party APIs that expose no health route.
// Any HTTP response, whatever the status, proves the backend is reachable;
// only transport failures count against it.
type ReachabilityProber struct {
	Client *http.Client
}

// Probe implements Prober.
func (p *ReachabilityProber) Probe(ctx context.Context, address string) error {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return fmt.Errorf("registry: build probe request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Config configures the registry's health checking.
type Config struct {
	Interval     time.Duration // cadence of the periodic check loop
	ProbeTimeout time.Duration // bound on a single probe
}

// DefaultConfig returns the default health-check cadence. The interval and
// timeout are deliberate defaults, not tuned constants; override them in
// configuration when the deployment calls for it.
func DefaultConfig() Config {
	return Config{
		Interval:     30 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// Registry is the process-wide capability endpoint map. Reads take the
// shared lock so many lookups proceed in parallel; the infrequent health
// writes take the exclusive lock.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint

	prober Prober
	cfg    Config
	logger *slog.Logger
}

// New creates a registry. A nil prober defaults to HTTP health probes.
func New(prober Prober, cfg Config, logger *slog.Logger) *Registry {
	if prober == nil {
		prober = &HTTPProber{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultConfig().ProbeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		endpoints: make(map[string]*Endpoint),
		prober:    prober,
		cfg:       cfg,
		logger:    logger,
	}
}

// Register inserts or replaces an endpoint with health Unknown. Idempotent.
func (r *Registry) Register(name, address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[name] = &Endpoint{
		Name:    name,
		Address: address,
		Health:  HealthUnknown,
	}
}

// Lookup returns the latest known snapshot for a capability without
// blocking on a fresh probe.
func (r *Registry) Lookup(name string) (Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.endpoints[name]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return *ep, nil
}

// Snapshot returns all endpoints sorted by name.
func (r *Registry) Snapshot() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		out = append(out, *ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ReportFailure records a request-path failure hint for an endpoint.
// Health state is untouched.
func (r *Registry) ReportFailure(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ep, ok := r.endpoints[name]; ok {
		ep.LastFailure = time.Now()
		ep.ConsecutiveFailures++
	}
}

// ReportSuccess clears the request-path failure hint for an endpoint.
func (r *Registry) ReportSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ep, ok := r.endpoints[name]; ok {
		ep.ConsecutiveFailures = 0
	}
}

// CheckAll probes every registered endpoint once. Probes run outside the
// lock; each result is applied under the exclusive lock so concurrent
// lookups never observe a partially written endpoint.
func (r *Registry) CheckAll(ctx context.Context) {
	r.mu.RLock()
	targets := make([]Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		targets = append(targets, *ep)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func(target Endpoint) {
			defer wg.Done()
			health := r.probe(ctx, target)
			r.setHealth(target.Name, health)
		}(target)
	}
	wg.Wait()
}

func (r *Registry) probe(ctx context.Context, target Endpoint) Health {
	probeCtx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()

	err := r.prober.Probe(probeCtx, target.Address)
	switch {
	case err == nil:
		return HealthHealthy
	case errors.Is(err, context.DeadlineExceeded):
		// Slow, not confirmed dead. Degraded endpoints are still routed to.
		r.logger.Warn("health probe timed out", "capability", target.Name)
		return HealthDegraded
	default:
		r.logger.Warn("health probe failed", "capability", target.Name, "error", err)
		return HealthDown
	}
}

func (r *Registry) setHealth(name string, health Health) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ep, ok := r.endpoints[name]; ok {
		ep.Health = health
		ep.LastChecked = time.Now()
	}
}

// Run executes the periodic health-check loop until the context is
// cancelled. An initial check runs immediately so endpoints leave the
// Unknown state without waiting a full interval.
func (r *Registry) Run(ctx context.Context) {
	r.CheckAll(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.CheckAll(ctx)
		}
	}
}
