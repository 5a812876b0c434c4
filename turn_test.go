package voyago

import (
	"testing"
)

func TestParseResultRef(t *testing.T) {
	cases := []struct {
		in       string
		wantSeq  int
		wantPath string
		wantErr  bool
	}{
		{"$ref:0:city", 0, "city", false},
		{"$ref:2:offers.price", 2, "offers.price", false},
		{"$ref:x:city", 0, "", true},
		{"$ref:1", 0, "", true},
		{"$ref:1:", 0, "", true},
	}
	for _, tc := range cases {
		seq, path, err := parseResultRef(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseResultRef(%q) should fail", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseResultRef(%q) error = %v", tc.in, err)
			continue
		}
		if seq != tc.wantSeq || path != tc.wantPath {
			t.Errorf("parseResultRef(%q) = %d, %q", tc.in, seq, path)
		}
	}
}

func TestRefDependencies(t *testing.T) {
	args := map[string]any{
		"origin":      "JFK",
		"destination": "$ref:0:city",
		"date":        "$ref:1:departure",
		"count":       3,
	}
	deps := refDependencies(args)
	if len(deps) != 2 {
		t.Fatalf("deps = %v, want 2 entries", deps)
	}
	for _, seq := range []int{0, 1} {
		if _, ok := deps[seq]; !ok {
			t.Errorf("missing dependency on %d", seq)
		}
	}

	if deps := refDependencies(map[string]any{"a": "literal"}); deps != nil {
		t.Errorf("literal args should have no deps, got %v", deps)
	}
}

func TestResolveRefs(t *testing.T) {
	results := map[int]ToolResult{
		0: {
			Outcome: OutcomeSuccess,
			Payload: map[string]any{
				"city": "Paris",
				"best": map[string]any{"price": 412.50},
			},
		},
		1: {Outcome: OutcomeFailure, Failure: KindCallFailed},
	}

	resolved, err := resolveRefs(map[string]any{
		"destination": "$ref:0:city",
		"budget":      "$ref:0:best.price",
		"origin":      "JFK",
	}, results)
	if err != nil {
		t.Fatalf("resolveRefs() error = %v", err)
	}
	if resolved["destination"] != "Paris" {
		t.Errorf("destination = %v", resolved["destination"])
	}
	if resolved["budget"] != 412.50 {
		t.Errorf("budget = %v", resolved["budget"])
	}
	if resolved["origin"] != "JFK" {
		t.Errorf("origin = %v", resolved["origin"])
	}

	if _, err := resolveRefs(map[string]any{"x": "$ref:1:city"}, results); err == nil {
		t.Error("reference into a failed result should error")
	}
	if _, err := resolveRefs(map[string]any{"x": "$ref:9:city"}, results); err == nil {
		t.Error("reference to a missing result should error")
	}
	if _, err := resolveRefs(map[string]any{"x": "$ref:0:nope"}, results); err == nil {
		t.Error("reference to a missing path should error")
	}
}
