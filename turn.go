package voyago

import (
	"fmt"
	"strconv"
	"strings"
)

const refPrefix = "$ref:"

// ToolInvocation is one concrete capability call planned for the current
// turn. Seq is the invocation's position in the planner's proposed order and
// is what reference placeholders point at.
type ToolInvocation struct {
	ID         string         `json:"id"`
	Capability string         `json:"capability"`
	Arguments  map[string]any `json:"arguments"`
	Seq        int            `json:"seq"`
}

// Outcome states for a tool result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ToolResult is the immutable outcome of one invocation.
type ToolResult struct {
	Invocation ToolInvocation `json:"invocation"`
	Outcome    Outcome        `json:"outcome"`
	Payload    map[string]any `json:"payload,omitempty"`
	Failure    FailureKind    `json:"failure,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// TurnResult is what one processed user turn hands back to the caller: the
// synthesized reply plus the raw structured payloads so a client can render
// data without re-parsing prose.
type TurnResult struct {
	ConversationID string       `json:"conversation_id"`
	Reply          string       `json:"reply"`
	Results        []ToolResult `json:"results,omitempty"`
}

// isResultRef reports whether a string argument is a placeholder bound to a
// prior invocation's result rather than a literal value.
func isResultRef(s string) bool {
	return strings.HasPrefix(s, refPrefix)
}

// parseResultRef splits a "$ref:<seq>:<dot.path>" placeholder.
func parseResultRef(s string) (seq int, path string, err error) {
	rest := strings.TrimPrefix(s, refPrefix)
	seqStr, path, ok := strings.Cut(rest, ":")
	if !ok || path == "" {
		return 0, "", fmt.Errorf("malformed result reference %q", s)
	}
	seq, err = strconv.Atoi(seqStr)
	if err != nil {
		return 0, "", fmt.Errorf("malformed result reference %q", s)
	}
	return seq, path, nil
}

// refDependencies returns the set of invocation sequence numbers an
// argument map depends on.
func refDependencies(args map[string]any) map[int]struct{} {
	var deps map[int]struct{}
	for _, v := range args {
		s, ok := v.(string)
		if !ok || !isResultRef(s) {
			continue
		}
		seq, _, err := parseResultRef(s)
		if err != nil {
			continue
		}
		if deps == nil {
			deps = make(map[int]struct{})
		}
		deps[seq] = struct{}{}
	}
	return deps
}

// resolveRefs replaces placeholder arguments with values pulled out of the
// referenced results. A reference into a failed or missing result is an
// error; the invocation cannot proceed without its input.
func resolveRefs(args map[string]any, results map[int]ToolResult) (map[string]any, error) {
	resolved := make(map[string]any, len(args))
	for name, v := range args {
		s, ok := v.(string)
		if !ok || !isResultRef(s) {
			resolved[name] = v
			continue
		}
		seq, path, err := parseResultRef(s)
		if err != nil {
			return nil, err
		}
		res, ok := results[seq]
		if !ok {
			return nil, fmt.Errorf("argument %q references unknown invocation %d", name, seq)
		}
		if res.Outcome != OutcomeSuccess {
			return nil, fmt.Errorf("argument %q references failed invocation %d", name, seq)
		}
		value, err := lookupPath(res.Payload, path)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		resolved[name] = value
	}
	return resolved, nil
}

func lookupPath(payload map[string]any, path string) (any, error) {
	var current any = payload
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("path %q does not resolve to a field", path)
		}
		current, ok = m[part]
		if !ok {
			return nil, fmt.Errorf("path %q not present in result payload", path)
		}
	}
	return current, nil
}
