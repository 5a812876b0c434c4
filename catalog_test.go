package voyago

import (
	"errors"
	"testing"
)

func flightSpec() ToolSpec {
	return NewSpec("search_flights").
		WithDescription("Search flights").
		WithParameter("origin", ParamSpec{Type: ParamString, Required: true}).
		WithParameter("destination", ParamSpec{Type: ParamString, Required: true}).
		WithParameter("passengers", ParamSpec{Type: ParamInteger}).
		WithParameter("travel_class", ParamSpec{Type: ParamString, Enum: []string{"ECONOMY", "BUSINESS"}}).
		WithParameter("non_stop", ParamSpec{Type: ParamBoolean}).
		Build()
}

func TestValidateArgs(t *testing.T) {
	spec := flightSpec()

	cases := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{
			name: "valid minimal",
			args: map[string]any{"origin": "JFK", "destination": "CDG"},
		},
		{
			name: "valid full",
			args: map[string]any{
				"origin": "JFK", "destination": "CDG",
				"passengers": 2, "travel_class": "ECONOMY", "non_stop": true,
			},
		},
		{
			name:    "missing required",
			args:    map[string]any{"origin": "JFK"},
			wantErr: true,
		},
		{
			name:    "unknown parameter",
			args:    map[string]any{"origin": "JFK", "destination": "CDG", "airline": "AF"},
			wantErr: true,
		},
		{
			name:    "wrong type",
			args:    map[string]any{"origin": "JFK", "destination": 7},
			wantErr: true,
		},
		{
			name:    "enum violation",
			args:    map[string]any{"origin": "JFK", "destination": "CDG", "travel_class": "LUXURY"},
			wantErr: true,
		},
		{
			name: "integer from JSON float",
			args: map[string]any{"origin": "JFK", "destination": "CDG", "passengers": float64(2)},
		},
		{
			name:    "fractional integer",
			args:    map[string]any{"origin": "JFK", "destination": "CDG", "passengers": 2.5},
			wantErr: true,
		},
		{
			name: "result reference passes type checks",
			args: map[string]any{"origin": "JFK", "destination": "$ref:0:destination"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := spec.ValidateArgs(tc.args)
			if tc.wantErr && err == nil {
				t.Error("ValidateArgs() should have failed")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidateArgs() error = %v", err)
			}
			if tc.wantErr && !errors.Is(err, ErrInvalidParameters) {
				t.Errorf("error = %v, want ErrInvalidParameters", err)
			}
		})
	}
}

func TestJSONSchema(t *testing.T) {
	schema := flightSpec().JSONSchema()

	if schema["type"] != "object" {
		t.Errorf("type = %v", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok || len(props) != 5 {
		t.Fatalf("properties = %v", schema["properties"])
	}
	required, ok := schema["required"].([]string)
	if !ok || len(required) != 2 {
		t.Fatalf("required = %v", schema["required"])
	}
	if required[0] != "destination" || required[1] != "origin" {
		t.Errorf("required = %v, want sorted [destination origin]", required)
	}

	class, _ := props["travel_class"].(map[string]any)
	if enum, _ := class["enum"].([]string); len(enum) != 2 {
		t.Errorf("travel_class enum = %v", class["enum"])
	}
}

func TestCatalogResolve(t *testing.T) {
	spec := flightSpec()
	c := NewCatalog(spec)

	got, err := c.Resolve("search_flights")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Name() != "search_flights" {
		t.Errorf("Name = %q", got.Name())
	}

	_, err = c.Resolve("teleport")
	if !errors.Is(err, ErrUnknownCapability) {
		t.Errorf("error = %v, want ErrUnknownCapability", err)
	}
}

func TestCatalogSpecsOrder(t *testing.T) {
	a := NewSpec("alpha").Build()
	b := NewSpec("beta").Build()
	c := NewCatalog(b, a)

	specs := c.Specs()
	if len(specs) != 2 || specs[0].Name() != "beta" || specs[1].Name() != "alpha" {
		t.Errorf("Specs order = %v", []string{specs[0].Name(), specs[1].Name()})
	}
}
