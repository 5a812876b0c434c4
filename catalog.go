package voyago

import (
	"fmt"
	"sort"
)

// ParamType enumerates the argument types a tool parameter accepts.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
)

// ParamSpec describes a single tool parameter.
type ParamSpec struct {
	Type        ParamType
	Description string
	Required    bool
	Enum        []string
}

// ToolSpec is the static description of one capability: its name, parameter
// schema and the natural-language trigger description handed to the planner.
// Specs are immutable after construction and shared read-only across turns.
type ToolSpec struct {
	name        string
	description string
	params      map[string]ParamSpec
}

// SpecBuilder constructs a ToolSpec with a fluent API.
type SpecBuilder struct {
	spec ToolSpec
}

// NewSpec creates a builder for a tool spec with the given capability name.
func NewSpec(name string) *SpecBuilder {
	return &SpecBuilder{spec: ToolSpec{
		name:   name,
		params: map[string]ParamSpec{},
	}}
}

// WithDescription sets the trigger description shown to the planner.
func (b *SpecBuilder) WithDescription(desc string) *SpecBuilder {
	b.spec.description = desc
	return b
}

// WithParameter adds a parameter to the schema.
func (b *SpecBuilder) WithParameter(name string, p ParamSpec) *SpecBuilder {
	b.spec.params[name] = p
	return b
}

// Build returns the constructed spec.
func (b *SpecBuilder) Build() ToolSpec {
	return b.spec
}

// Name returns the capability name.
func (s ToolSpec) Name() string { return s.name }

// Description returns the trigger description.
func (s ToolSpec) Description() string { return s.description }

// Parameters returns a copy of the parameter schema keyed by name.
func (s ToolSpec) Parameters() map[string]ParamSpec {
	out := make(map[string]ParamSpec, len(s.params))
	for k, v := range s.params {
		out[k] = v
	}
	return out
}

// JSONSchema renders the parameter schema as a JSON-schema object suitable
// for a function-calling planner.
func (s ToolSpec) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.params))
	required := make([]string, 0, len(s.params))
	names := make([]string, 0, len(s.params))
	for name := range s.params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := s.params[name]
		entry := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			entry["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			entry["enum"] = p.Enum
		}
		props[name] = entry
		if p.Required {
			required = append(required, name)
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// ValidateArgs checks concrete argument values against the schema. Missing
// required parameters, unknown parameters and type mismatches are rejected.
// Arguments bound to a prior invocation's result (reference placeholders)
// pass type checking because their concrete value is not known yet.
func (s ToolSpec) ValidateArgs(args map[string]any) error {
	for name, p := range s.params {
		v, ok := args[name]
		if !ok || v == nil {
			if p.Required {
				return fmt.Errorf("%w: %s: missing required parameter %q", ErrInvalidParameters, s.name, name)
			}
			continue
		}
		if str, ok := v.(string); ok && isResultRef(str) {
			continue
		}
		if err := checkType(name, p, v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidParameters, s.name, err)
		}
	}
	for name := range args {
		if _, ok := s.params[name]; !ok {
			return fmt.Errorf("%w: %s: unknown parameter %q", ErrInvalidParameters, s.name, name)
		}
	}
	return nil
}

func checkType(name string, p ParamSpec, v any) error {
	switch p.Type {
	case ParamString:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("parameter %q must be a string", name)
		}
		if len(p.Enum) > 0 {
			for _, allowed := range p.Enum {
				if str == allowed {
					return nil
				}
			}
			return fmt.Errorf("parameter %q must be one of %v", name, p.Enum)
		}
	case ParamNumber:
		switch v.(type) {
		case float64, float32, int, int64:
		default:
			return fmt.Errorf("parameter %q must be a number", name)
		}
	case ParamInteger:
		switch n := v.(type) {
		case int, int64:
		case float64:
			if n != float64(int64(n)) {
				return fmt.Errorf("parameter %q must be an integer", name)
			}
		default:
			return fmt.Errorf("parameter %q must be an integer", name)
		}
	case ParamBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("parameter %q must be a boolean", name)
		}
	default:
		return fmt.Errorf("parameter %q has unsupported type %q", name, p.Type)
	}
	return nil
}

// Catalog is the static set of tool specs available to the dispatch loop.
// It is populated once at startup and read concurrently without locking.
type Catalog struct {
	specs map[string]ToolSpec
	order []string
}

// NewCatalog builds a catalog from the given specs. Later specs with the
// same name replace earlier ones.
func NewCatalog(specs ...ToolSpec) *Catalog {
	c := &Catalog{specs: make(map[string]ToolSpec, len(specs))}
	for _, s := range specs {
		if _, exists := c.specs[s.name]; !exists {
			c.order = append(c.order, s.name)
		}
		c.specs[s.name] = s
	}
	return c
}

// Specs returns all specs in registration order.
func (c *Catalog) Specs() []ToolSpec {
	out := make([]ToolSpec, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.specs[name])
	}
	return out
}

// Resolve returns the spec for a capability name.
func (c *Catalog) Resolve(name string) (ToolSpec, error) {
	s, ok := c.specs[name]
	if !ok {
		return ToolSpec{}, fmt.Errorf("%w: %q", ErrUnknownCapability, name)
	}
	return s, nil
}
