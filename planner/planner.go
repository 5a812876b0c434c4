// Package planner defines the interface to the language-model collaborator
// that proposes capability invocations and synthesizes replies.
package planner

import "context"

// Message is a provider-agnostic conversation message.
type Message struct {
	Role    string
	Content string
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolDefinition describes an invokable capability to the planner.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Action is one capability invocation proposed by the planner. Proposals are
// untrusted input: the dispatch loop validates them against the tool catalog
// before anything is executed.
type Action struct {
	Capability string
	Arguments  map[string]any
}

// ActionResult feeds a completed invocation back in for synthesis.
type ActionResult struct {
	Capability string
	Arguments  map[string]any
	Success    bool
	Payload    map[string]any
	Reason     string
}

// Planner is the language-model collaborator. Both calls are bounded by the
// caller's context; failures map to the dispatch loop's Failed state.
// Implementations are non-deterministic: proposing twice for the same input
// may yield different actions.
type Planner interface {
	// ProposeActions decides which capabilities (zero, one or several) the
	// latest user turn requires and with what arguments.
	ProposeActions(ctx context.Context, messages []Message, tools []ToolDefinition) ([]Action, error)

	// Synthesize folds all invocation results, successes and failures alike,
	// into the final natural-language reply.
	Synthesize(ctx context.Context, messages []Message, results []ActionResult) (string, error)

	// Name identifies the planner implementation.
	Name() string
}
