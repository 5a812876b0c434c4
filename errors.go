package voyago

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies a tool invocation failure. Kinds up to and including
// KindTimeout are recovered within the turn and folded into the reply;
// KindSynthesisFailed is fatal to the turn.
type FailureKind string

const (
	// KindInvalidParameters means schema validation rejected the arguments
	// before any network call was made.
	KindInvalidParameters FailureKind = "invalid_parameters"
	// KindUnknownCapability means no tool spec or registry entry exists.
	KindUnknownCapability FailureKind = "unknown_capability"
	// KindUnavailable means the endpoint was known Down and the call was skipped.
	KindUnavailable FailureKind = "unavailable"
	// KindCallFailed means the provider call failed after retries were exhausted.
	KindCallFailed FailureKind = "call_failed"
	// KindAuthExpired means the provider rejected credentials even after a refresh.
	KindAuthExpired FailureKind = "auth_expired"
	// KindTimeout means the bounded wait was exceeded.
	KindTimeout FailureKind = "timeout"
	// KindSynthesisFailed means the language-model collaborator was unreachable
	// or produced output that could not be used.
	KindSynthesisFailed FailureKind = "synthesis_failed"
)

// Sentinel errors for the failure taxonomy.
var (
	ErrInvalidParameters = errors.New("voyago: invalid parameters")
	ErrUnknownCapability = errors.New("voyago: unknown capability")
	ErrUnavailable       = errors.New("voyago: capability unavailable")
	ErrCallFailed        = errors.New("voyago: capability call failed")
	ErrAuthExpired       = errors.New("voyago: provider auth expired")
	ErrTimeout           = errors.New("voyago: call timed out")
	ErrSynthesisFailed   = errors.New("voyago: synthesis failed")
)

// ToolError carries a classified failure for a single tool invocation.
type ToolError struct {
	Capability string
	Kind       FailureKind
	Err        error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("voyago: %s: %s: %v", e.Capability, e.Kind, e.Err)
	}
	return fmt.Sprintf("voyago: %s: %s", e.Capability, e.Kind)
}

func (e *ToolError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return sentinelFor(e.Kind)
}

// NewToolError builds a ToolError wrapping the taxonomy sentinel for kind.
func NewToolError(capability string, kind FailureKind, err error) *ToolError {
	sentinel := sentinelFor(kind)
	if err == nil {
		err = sentinel
	} else if !errors.Is(err, sentinel) {
		err = fmt.Errorf("%w: %w", sentinel, err)
	}
	return &ToolError{Capability: capability, Kind: kind, Err: err}
}

func sentinelFor(kind FailureKind) error {
	switch kind {
	case KindInvalidParameters:
		return ErrInvalidParameters
	case KindUnknownCapability:
		return ErrUnknownCapability
	case KindUnavailable:
		return ErrUnavailable
	case KindAuthExpired:
		return ErrAuthExpired
	case KindTimeout:
		return ErrTimeout
	case KindSynthesisFailed:
		return ErrSynthesisFailed
	default:
		return ErrCallFailed
	}
}

// ClassifyError maps an arbitrary invocation error onto the taxonomy.
// Errors that already carry a ToolError keep their kind. A bare deadline
// expiry is a bounded wait exceeded, so it classifies as Timeout.
func ClassifyError(err error) FailureKind {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrInvalidParameters):
		return KindInvalidParameters
	case errors.Is(err, ErrUnknownCapability):
		return KindUnknownCapability
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrAuthExpired):
		return KindAuthExpired
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrSynthesisFailed):
		return KindSynthesisFailed
	default:
		return KindCallFailed
	}
}
