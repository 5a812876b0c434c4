package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	voyago "github.com/voyago/voyago"
	"github.com/voyago/voyago/registry"
)

type fakeDispatcher struct {
	result *voyago.TurnResult
	err    error
	lastID string
}

func (d *fakeDispatcher) ProcessTurn(_ context.Context, conversationID, message string) (*voyago.TurnResult, error) {
	d.lastID = conversationID
	if d.err != nil {
		return nil, d.err
	}
	res := *d.result
	res.ConversationID = conversationID
	return &res, nil
}

type fakeRouter struct {
	payload map[string]any
	err     error
	lastCap string
}

func (r *fakeRouter) Route(_ context.Context, capability string, _ map[string]any) (map[string]any, error) {
	r.lastCap = capability
	return r.payload, r.err
}

type probeFunc func(ctx context.Context, address string) error

func (f probeFunc) Probe(ctx context.Context, address string) error { return f(ctx, address) }

func testServer(d *fakeDispatcher, r *fakeRouter, reg *registry.Registry) *Server {
	if reg == nil {
		reg = registry.New(probeFunc(func(context.Context, string) error { return nil }),
			registry.Config{Interval: time.Minute, ProbeTimeout: time.Second}, nil)
	}
	return New(Config{}, d, r, reg, nil)
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChat(t *testing.T) {
	d := &fakeDispatcher{result: &voyago.TurnResult{Reply: "It is sunny in Paris."}}
	srv := testServer(d, &fakeRouter{}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/chat",
		`{"conversation_id": "c1", "message": "weather in Paris?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ConversationID != "c1" || resp.Reply != "It is sunny in Paris." {
		t.Errorf("response = %+v", resp)
	}
}

func TestChatGeneratesConversationID(t *testing.T) {
	d := &fakeDispatcher{result: &voyago.TurnResult{Reply: "hello"}}
	srv := testServer(d, &fakeRouter{}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/chat", `{"message": "hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if d.lastID == "" {
		t.Error("a conversation id should be generated when absent")
	}
}

func TestChatValidation(t *testing.T) {
	srv := testServer(&fakeDispatcher{result: &voyago.TurnResult{}}, &fakeRouter{}, nil)

	cases := []struct {
		name string
		body string
	}{
		{"empty message", `{"message": "  "}`},
		{"malformed json", `{"message": `},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/chat", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestChatTurnFailure(t *testing.T) {
	d := &fakeDispatcher{err: fmt.Errorf("%w: model down", voyago.ErrSynthesisFailed)}
	srv := testServer(d, &fakeRouter{}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/chat", `{"message": "hi"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestDirectFlightSearch(t *testing.T) {
	r := &fakeRouter{payload: map[string]any{"count": float64(2)}}
	srv := testServer(&fakeDispatcher{}, r, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/flights/search",
		`{"origin": "JFK", "destination": "CDG", "departure_date": "2026-09-10"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if r.lastCap != "search_flights" {
		t.Errorf("capability = %q", r.lastCap)
	}
}

func TestDirectSearchUnavailable(t *testing.T) {
	r := &fakeRouter{err: fmt.Errorf("%w: down", voyago.ErrUnavailable)}
	srv := testServer(&fakeDispatcher{}, r, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/hotels/search", `{"city_code": "PAR"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["error"] != "unavailable" {
		t.Errorf("error = %v", resp["error"])
	}
}

func TestWeatherEndpoint(t *testing.T) {
	r := &fakeRouter{payload: map[string]any{"city": "Paris"}}
	srv := testServer(&fakeDispatcher{}, r, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/weather?city=Paris", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if r.lastCap != "get_weather" {
		t.Errorf("capability = %q", r.lastCap)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/weather", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status without city = %d, want 400", rec.Code)
	}
}

func TestServiceHealth(t *testing.T) {
	reg := registry.New(probeFunc(func(_ context.Context, address string) error {
		if address == "http://dead" {
			return errors.New("refused")
		}
		return nil
	}), registry.Config{Interval: time.Minute, ProbeTimeout: time.Second}, nil)
	reg.Register("search_flights", "http://ok")
	reg.Register("get_weather", "http://dead")
	reg.CheckAll(context.Background())

	srv := testServer(&fakeDispatcher{}, &fakeRouter{}, reg)
	rec := doRequest(t, srv, http.MethodGet, "/health/services", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Status   string `json:"status"`
		Services map[string]struct {
			Status string `json:"status"`
		} `json:"services"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if resp.Services["search_flights"].Status != "healthy" {
		t.Errorf("flights = %q", resp.Services["search_flights"].Status)
	}
	if resp.Services["get_weather"].Status != "down" {
		t.Errorf("weather = %q", resp.Services["get_weather"].Status)
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(&fakeDispatcher{}, &fakeRouter{}, nil)
	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
