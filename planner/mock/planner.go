// Package mock implements a scripted Planner for testing.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/voyago/voyago/planner"
)

var (
	ErrNoProposal  = errors.New("mock: no proposal configured")
	ErrNoSynthesis = errors.New("mock: no synthesis configured")
)

// Planner implements planner.Planner with scripted responses. Each configured
// proposal and synthesis is consumed in order, which makes it easy to script
// multi-turn scenarios and to demonstrate non-deterministic planning.
type Planner struct {
	mu            sync.Mutex
	proposals     [][]planner.Action
	proposalErrs  []error
	syntheses     []string
	synthesisErrs []error
	proposeCalls  int
	synthCalls    int
	lastResults   []planner.ActionResult
}

// New creates an empty scripted planner.
func New() *Planner {
	return &Planner{}
}

// WithProposal appends a scripted set of actions for the next ProposeActions call.
func (m *Planner) WithProposal(actions ...planner.Action) *Planner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proposals = append(m.proposals, actions)
	m.proposalErrs = append(m.proposalErrs, nil)
	return m
}

// WithProposalError appends a scripted ProposeActions failure.
func (m *Planner) WithProposalError(err error) *Planner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proposals = append(m.proposals, nil)
	m.proposalErrs = append(m.proposalErrs, err)
	return m
}

// WithSynthesis appends a scripted reply for the next Synthesize call.
func (m *Planner) WithSynthesis(reply string) *Planner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syntheses = append(m.syntheses, reply)
	m.synthesisErrs = append(m.synthesisErrs, nil)
	return m
}

// WithSynthesisError appends a scripted Synthesize failure.
func (m *Planner) WithSynthesisError(err error) *Planner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syntheses = append(m.syntheses, "")
	m.synthesisErrs = append(m.synthesisErrs, err)
	return m
}

// Name returns the planner name.
func (m *Planner) Name() string { return "mock" }

// ProposeActions returns the next scripted proposal.
func (m *Planner) ProposeActions(ctx context.Context, messages []planner.Message, tools []planner.ToolDefinition) ([]planner.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.proposals) == 0 {
		return nil, ErrNoProposal
	}
	actions, err := m.proposals[0], m.proposalErrs[0]
	m.proposals, m.proposalErrs = m.proposals[1:], m.proposalErrs[1:]
	m.proposeCalls++
	return actions, err
}

// Synthesize returns the next scripted reply and records the results it saw.
func (m *Planner) Synthesize(ctx context.Context, messages []planner.Message, results []planner.ActionResult) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastResults = append([]planner.ActionResult(nil), results...)
	if len(m.syntheses) == 0 {
		return "", ErrNoSynthesis
	}
	reply, err := m.syntheses[0], m.synthesisErrs[0]
	m.syntheses, m.synthesisErrs = m.syntheses[1:], m.synthesisErrs[1:]
	m.synthCalls++
	return reply, err
}

// ProposeCalls returns how many times ProposeActions ran.
func (m *Planner) ProposeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.proposeCalls
}

// SynthesizeCalls returns how many times Synthesize ran.
func (m *Planner) SynthesizeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.synthCalls
}

// LastResults returns the results passed to the most recent Synthesize call.
func (m *Planner) LastResults() []planner.ActionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]planner.ActionResult(nil), m.lastResults...)
}
