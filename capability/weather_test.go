package capability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	voyago "github.com/voyago/voyago"
)

const currentWeatherJSON = `{
	"weather": [{"main": "Clear", "description": "clear sky"}],
	"main": {"temp": 24.5, "feels_like": 23.8, "humidity": 40},
	"wind": {"speed": 3.2}
}`

func TestWeatherInvoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/weather" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("q") != "Paris" || q.Get("units") != "metric" || q.Get("appid") != "owm-key" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(currentWeatherJSON))
	}))
	defer srv.Close()

	client := NewWeatherClient(srv.URL, "owm-key", srv.Client(), nil)
	payload, err := client.Invoke(context.Background(), map[string]any{"city": "Paris"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if payload["city"] != "Paris" || payload["summary"] != "clear sky" {
		t.Errorf("payload = %v", payload)
	}
	if payload["temperature"] != 24.5 {
		t.Errorf("temperature = %v", payload["temperature"])
	}
	if _, ok := payload["forecast"]; ok {
		t.Error("forecast present without being requested")
	}
}

func TestWeatherInvokeMissingCity(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	client := NewWeatherClient(srv.URL, "owm-key", srv.Client(), nil)
	_, err := client.Invoke(context.Background(), map[string]any{})
	if !errors.Is(err, voyago.ErrInvalidParameters) {
		t.Errorf("error = %v, want ErrInvalidParameters", err)
	}
	if requests.Load() != 0 {
		t.Errorf("requests = %d, want 0", requests.Load())
	}
}

func TestWeatherForecastFailureIsNotFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/weather", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(currentWeatherJSON))
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewWeatherClient(srv.URL, "owm-key", srv.Client(), nil)
	payload, err := client.Invoke(context.Background(), map[string]any{"city": "Paris", "forecast": true})
	if err != nil {
		t.Fatalf("Invoke() error = %v; current conditions should survive a forecast failure", err)
	}
	if _, ok := payload["forecast"]; ok {
		t.Error("failed forecast should be omitted")
	}
	if payload["summary"] != "clear sky" {
		t.Errorf("summary = %v", payload["summary"])
	}
}

func TestWeatherProviderDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := NewWeatherClient(srv.URL, "owm-key", http.DefaultClient, nil)
	_, err := client.Invoke(context.Background(), map[string]any{"city": "Paris"})
	if !errors.Is(err, voyago.ErrCallFailed) {
		t.Errorf("error = %v, want ErrCallFailed", err)
	}
}
