package capability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	voyago "github.com/voyago/voyago"
)

func TestStatusErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, voyago.ErrAuthExpired},
		{http.StatusForbidden, voyago.ErrAuthExpired},
		{http.StatusTooManyRequests, voyago.ErrCallFailed},
		{http.StatusNotFound, voyago.ErrCallFailed},
		{http.StatusInternalServerError, voyago.ErrCallFailed},
		{http.StatusBadGateway, voyago.ErrCallFailed},
	}
	for _, tc := range cases {
		err := statusError(tc.status, "body")
		if !errors.Is(err, tc.want) {
			t.Errorf("statusError(%d) = %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestDoJSONTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	err := doJSON(http.DefaultClient, req, nil)
	if !errors.Is(err, voyago.ErrCallFailed) {
		t.Errorf("error = %v, want ErrCallFailed", err)
	}
}

func TestDoJSONDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"value": 42}`))
	}))
	defer srv.Close()

	var out struct {
		Value int `json:"value"`
	}
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	if err := doJSON(srv.Client(), req, &out); err != nil {
		t.Fatalf("doJSON() error = %v", err)
	}
	if out.Value != 42 {
		t.Errorf("value = %d", out.Value)
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"city":   "Paris",
		"guests": float64(3),
		"direct": true,
	}

	if got := stringArg(args, "city", ""); got != "Paris" {
		t.Errorf("stringArg = %q", got)
	}
	if got := stringArg(args, "missing", "fallback"); got != "fallback" {
		t.Errorf("stringArg default = %q", got)
	}
	if got := intArg(args, "guests", 1); got != 3 {
		t.Errorf("intArg = %d", got)
	}
	if got := intArg(args, "missing", 1); got != 1 {
		t.Errorf("intArg default = %d", got)
	}
	if got := floatArg(map[string]any{"max_price": 150.5}, "max_price", 0); got != 150.5 {
		t.Errorf("floatArg = %v", got)
	}
	if got := floatArg(map[string]any{"max_price": 120}, "max_price", 0); got != 120.0 {
		t.Errorf("floatArg from int = %v", got)
	}
	if got := floatArg(args, "missing", 99.5); got != 99.5 {
		t.Errorf("floatArg default = %v", got)
	}
	if got := boolArg(args, "direct", false); got != true {
		t.Errorf("boolArg = %v", got)
	}
	if got := boolArg(args, "missing", false); got != false {
		t.Errorf("boolArg default = %v", got)
	}
}
