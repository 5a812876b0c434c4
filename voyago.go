// Package voyago implements a conversational travel assistant. A planner
// model proposes capability invocations for each user message; the dispatcher
// validates them, executes independent invocations concurrently through a
// health-aware router, and feeds the results back to the planner for the
// final reply.
package voyago

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/voyago/voyago/internal/timeout"
	"github.com/voyago/voyago/middleware"
	"github.com/voyago/voyago/planner"
)

// CapabilityRouter executes a single validated invocation against a backend.
// Implementations decide reachability; the dispatcher never talks to
// providers directly.
type CapabilityRouter interface {
	Route(ctx context.Context, capability string, args map[string]any) (map[string]any, error)
}

// DefaultMaxParallel bounds concurrent capability invocations per turn.
const DefaultMaxParallel = 5

// DefaultSystemPrompt frames the planner as a travel assistant.
const DefaultSystemPrompt = `You are a helpful travel assistant. You can search flights, find hotels and check the weather using the tools available to you. Use tools whenever the user's request needs live data; answer directly when it does not. Be concise and concrete, and mention prices and dates from tool results when you have them.`

// Config holds dispatcher configuration.
type Config struct {
	// Planner proposes invocations and synthesizes replies. Required.
	Planner planner.Planner

	// Router executes invocations. Required.
	Router CapabilityRouter

	// Catalog declares the capabilities the planner may invoke. Required.
	Catalog *Catalog

	// Store persists conversation history. Defaults to an in-memory store.
	Store ConversationStore

	// SystemPrompt is prepended to every planner call.
	SystemPrompt string

	// MaxParallel bounds concurrent invocations within one turn.
	MaxParallel int

	// Timeouts bound the turn, its planner calls and each capability
	// invocation.
	Timeouts *timeout.Config

	// Logging configures dispatcher logging.
	Logging *LoggingConfig
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Planner == nil {
		return errors.New("voyago: config requires a planner")
	}
	if c.Router == nil {
		return errors.New("voyago: config requires a router")
	}
	if c.Catalog == nil {
		return errors.New("voyago: config requires a capability catalog")
	}
	return nil
}

// Dispatcher runs conversation turns.
type Dispatcher struct {
	planner      planner.Planner
	router       CapabilityRouter
	catalog      *Catalog
	store        ConversationStore
	systemPrompt string
	maxParallel  int
	timeouts     timeout.Config
	logging      LoggingConfig
	logger       *slog.Logger
	middlewares  []middleware.Middleware
}

// New creates a dispatcher from the given configuration.
func New(cfg Config) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := cfg.Store
	if store == nil {
		store = NewMemoryConversationStore()
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	timeouts := timeout.DefaultConfig()
	if cfg.Timeouts != nil {
		timeouts = *cfg.Timeouts
	}
	logging := DefaultLoggingConfig()
	if cfg.Logging != nil {
		logging = *cfg.Logging
	}

	return &Dispatcher{
		planner:      cfg.Planner,
		router:       cfg.Router,
		catalog:      cfg.Catalog,
		store:        store,
		systemPrompt: systemPrompt,
		maxParallel:  maxParallel,
		timeouts:     timeouts,
		logging:      logging,
		logger:       resolveLogger(logging),
	}, nil
}

// Use appends a middleware. Middlewares run in registration order and must be
// attached before the first ProcessTurn call.
func (d *Dispatcher) Use(m middleware.Middleware) {
	d.middlewares = append(d.middlewares, m)
}

// ProcessTurn runs one conversation turn: the user message is planned,
// proposed invocations are validated and executed, and the planner turns the
// results into a reply. History gains exactly the user message and the reply;
// a failed turn leaves the conversation untouched.
func (d *Dispatcher) ProcessTurn(ctx context.Context, conversationID, message string) (*TurnResult, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "dispatch.turn")
	span.SetAttributes(attribute.String("conversation_id", conversationID))
	defer span.End()

	if d.timeouts.TurnExecution > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeouts.TurnExecution)
		defer cancel()
	}

	for _, m := range d.middlewares {
		ctx = m.OnTurnStart(ctx, conversationID, message)
	}

	conv, err := d.store.Load(ctx, conversationID)
	if err != nil {
		span.SetStatus(codes.Error, "load conversation")
		err = fmt.Errorf("voyago: load conversation %q: %w", conversationID, err)
		d.notifyTurnComplete(ctx, "", err)
		return nil, err
	}

	actions, err := d.propose(ctx, conv, message)
	if err != nil {
		span.SetStatus(codes.Error, "planner proposal")
		if ctx.Err() != nil {
			err = ctx.Err()
		} else {
			err = fmt.Errorf("%w: planner proposal: %w", ErrSynthesisFailed, err)
		}
		d.notifyTurnComplete(ctx, "", err)
		return nil, err
	}

	invocations, results := d.validateActions(actions)
	d.execute(ctx, invocations, results)

	if ctx.Err() != nil {
		// The turn is abandoned mid-flight; do not persist a half-turn.
		span.SetStatus(codes.Error, "turn cancelled")
		d.notifyTurnComplete(ctx, "", ctx.Err())
		return nil, ctx.Err()
	}

	ordered := orderResults(results)
	reply, err := d.synthesize(ctx, conv, message, ordered)
	if err != nil {
		span.SetStatus(codes.Error, "synthesis")
		if ctx.Err() != nil {
			err = ctx.Err()
		} else {
			err = fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
		}
		d.notifyTurnComplete(ctx, "", err)
		return nil, err
	}

	now := time.Now().UTC()
	turns := []ConversationTurn{
		{Role: RoleUser, Content: message, Timestamp: now},
		{Role: RoleAssistant, Content: reply, Timestamp: now},
	}
	if err := d.store.Append(ctx, conversationID, turns...); err != nil {
		span.SetStatus(codes.Error, "append conversation")
		err = fmt.Errorf("voyago: append conversation %q: %w", conversationID, err)
		d.notifyTurnComplete(ctx, "", err)
		return nil, err
	}

	result := &TurnResult{
		ConversationID: conversationID,
		Reply:          reply,
		Results:        ordered,
	}
	d.notifyTurnComplete(ctx, reply, nil)
	if d.logging.LogReplies {
		d.logger.Info("turn complete",
			"conversation_id", conversationID,
			"invocations", len(ordered),
			"reply_len", len(reply))
	}
	return result, nil
}

func (d *Dispatcher) notifyTurnComplete(ctx context.Context, reply string, err error) {
	for _, m := range d.middlewares {
		m.OnTurnComplete(ctx, reply, err)
	}
}

func (d *Dispatcher) propose(ctx context.Context, conv Conversation, message string) ([]planner.Action, error) {
	messages := d.plannerMessages(conv, message)
	tools := d.toolDefinitions()

	callCtx := ctx
	for _, m := range d.middlewares {
		callCtx = m.OnPlannerCall(callCtx, "propose")
	}
	if d.timeouts.PlannerCall > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, d.timeouts.PlannerCall)
		defer cancel()
	}

	actions, err := d.planner.ProposeActions(callCtx, messages, tools)
	for _, m := range d.middlewares {
		m.OnPlannerResponse(ctx, "propose", err)
	}
	if err != nil {
		return nil, err
	}
	return actions, nil
}

// validateActions turns proposals into invocations. Proposals naming unknown
// capabilities or carrying malformed arguments are rejected here, before any
// network traffic, and surface as failure results rather than aborting the
// turn. Returned results are keyed by invocation sequence.
func (d *Dispatcher) validateActions(actions []planner.Action) ([]ToolInvocation, map[int]ToolResult) {
	invocations := make([]ToolInvocation, 0, len(actions))
	results := make(map[int]ToolResult, len(actions))

	for seq, action := range actions {
		inv := ToolInvocation{
			ID:         uuid.NewString(),
			Capability: action.Capability,
			Arguments:  action.Arguments,
			Seq:        seq,
		}

		spec, err := d.catalog.Resolve(action.Capability)
		if err != nil {
			d.logger.Warn("planner proposed unknown capability", "capability", action.Capability)
			results[seq] = failureResult(inv, KindUnknownCapability, err.Error())
			continue
		}
		if err := spec.ValidateArgs(action.Arguments); err != nil {
			d.logger.Warn("planner proposed invalid arguments",
				"capability", action.Capability, "error", err)
			results[seq] = failureResult(inv, KindInvalidParameters, err.Error())
			continue
		}
		invocations = append(invocations, inv)
	}
	return invocations, results
}

// execute runs invocations in dependency waves. Invocations whose arguments
// carry no result references all start together; an invocation referencing an
// earlier result waits for that result, then has its references resolved
// before dispatch. Failures never cancel siblings.
func (d *Dispatcher) execute(ctx context.Context, invocations []ToolInvocation, results map[int]ToolResult) {
	var mu sync.Mutex
	sem := make(chan struct{}, d.maxParallel)
	pending := invocations

	for len(pending) > 0 {
		var ready, blocked []ToolInvocation
		for _, inv := range pending {
			if depsSettled(inv, results) {
				ready = append(ready, inv)
			} else {
				blocked = append(blocked, inv)
			}
		}
		if len(ready) == 0 {
			// References form a cycle or point past the proposal list.
			for _, inv := range blocked {
				results[inv.Seq] = failureResult(inv, KindInvalidParameters,
					"unresolvable result reference in arguments")
			}
			return
		}

		var wg sync.WaitGroup
		for _, inv := range ready {
			wg.Add(1)
			go func(inv ToolInvocation) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				res := d.invoke(ctx, inv, results, &mu)
				mu.Lock()
				results[inv.Seq] = res
				mu.Unlock()
			}(inv)
		}
		wg.Wait()
		pending = blocked
	}
}

// invoke resolves result references, dispatches through the router and
// builds the result. Only map reads take mu; the network call runs unlocked
// so siblings in the same wave overlap.
func (d *Dispatcher) invoke(ctx context.Context, inv ToolInvocation, results map[int]ToolResult, mu *sync.Mutex) ToolResult {
	mu.Lock()
	args, err := resolveRefs(inv.Arguments, results)
	mu.Unlock()
	if err != nil {
		return failureResult(inv, KindInvalidParameters, err.Error())
	}

	toolCtx := ctx
	for _, m := range d.middlewares {
		toolCtx = m.OnToolStart(toolCtx, inv.Capability, args)
	}
	if d.logging.LogToolCalls {
		logged := any(args)
		if d.logging.RedactSensitive {
			logged = redactSensitiveValue(args)
		}
		d.logger.Info("invoking capability", "capability", inv.Capability, "args", logged)
	}

	payload, err := d.route(toolCtx, inv.Capability, args)

	var res ToolResult
	if err != nil {
		kind := ClassifyError(err)
		d.logger.Warn("capability invocation failed",
			"capability", inv.Capability, "kind", string(kind), "error", err)
		res = failureResult(inv, kind, err.Error())
	} else {
		res = ToolResult{Invocation: inv, Outcome: OutcomeSuccess, Payload: payload}
	}
	res.Invocation.Arguments = args

	for _, m := range d.middlewares {
		m.OnToolComplete(toolCtx, inv.Capability, payload, err)
	}
	return res
}

func (d *Dispatcher) route(ctx context.Context, capability string, args map[string]any) (map[string]any, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "dispatch.invoke")
	span.SetAttributes(attribute.String("capability", capability))
	defer span.End()

	if d.timeouts.CapabilityCall > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeouts.CapabilityCall)
		defer cancel()
	}

	payload, err := d.router.Route(ctx, capability, args)
	if err != nil {
		span.SetStatus(codes.Error, string(ClassifyError(err)))
		return nil, err
	}
	return payload, nil
}

func (d *Dispatcher) synthesize(ctx context.Context, conv Conversation, message string, results []ToolResult) (string, error) {
	messages := d.plannerMessages(conv, message)
	actionResults := make([]planner.ActionResult, len(results))
	for i, res := range results {
		actionResults[i] = planner.ActionResult{
			Capability: res.Invocation.Capability,
			Arguments:  res.Invocation.Arguments,
			Success:    res.Outcome == OutcomeSuccess,
			Payload:    res.Payload,
			Reason:     res.Reason,
		}
	}

	callCtx := ctx
	for _, m := range d.middlewares {
		callCtx = m.OnPlannerCall(callCtx, "synthesize")
	}
	if d.timeouts.PlannerCall > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, d.timeouts.PlannerCall)
		defer cancel()
	}
	reply, err := d.planner.Synthesize(callCtx, messages, actionResults)
	for _, m := range d.middlewares {
		m.OnPlannerResponse(ctx, "synthesize", err)
	}
	return reply, err
}

func (d *Dispatcher) plannerMessages(conv Conversation, message string) []planner.Message {
	messages := make([]planner.Message, 0, len(conv.Turns)+2)
	messages = append(messages, planner.Message{Role: planner.RoleSystem, Content: d.systemPrompt})
	for _, turn := range conv.Turns {
		messages = append(messages, planner.Message{Role: string(turn.Role), Content: turn.Content})
	}
	return append(messages, planner.Message{Role: planner.RoleUser, Content: message})
}

func (d *Dispatcher) toolDefinitions() []planner.ToolDefinition {
	specs := d.catalog.Specs()
	defs := make([]planner.ToolDefinition, len(specs))
	for i, spec := range specs {
		defs[i] = planner.ToolDefinition{
			Name:        spec.Name(),
			Description: spec.Description(),
			Parameters:  spec.JSONSchema(),
		}
	}
	return defs
}

func failureResult(inv ToolInvocation, kind FailureKind, reason string) ToolResult {
	return ToolResult{
		Invocation: inv,
		Outcome:    OutcomeFailure,
		Failure:    kind,
		Reason:     reason,
	}
}

// depsSettled reports whether every result reference in the invocation's
// arguments already has a recorded result. A reference to a sequence that can
// never settle is caught by the caller when no progress is possible.
func depsSettled(inv ToolInvocation, results map[int]ToolResult) bool {
	for seq := range refDependencies(inv.Arguments) {
		if _, ok := results[seq]; !ok {
			return false
		}
	}
	return true
}

func orderResults(results map[int]ToolResult) []ToolResult {
	ordered := make([]ToolResult, 0, len(results))
	for _, res := range results {
		ordered = append(ordered, res)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Invocation.Seq < ordered[j].Invocation.Seq
	})
	return ordered
}
