package capability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const hotelOffersJSON = `{
	"data": [
		{
			"hotel": {"hotelId": "HLPAR123", "name": "Hotel Lumiere", "rating": "4"},
			"offers": [
				{
					"checkInDate": "2026-09-10",
					"checkOutDate": "2026-09-12",
					"price": {"total": "180.00", "currency": "EUR"}
				}
			]
		},
		{
			"hotel": {"hotelId": "HLPAR456", "name": "No Offers Inn"},
			"offers": []
		}
	]
}`

func hotelTestServer(t *testing.T, offersCalls *atomic.Int32, hotelIDs string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var fetches atomic.Int32
	mux.HandleFunc("/v1/security/oauth2/token", tokenHandler(&fetches, 0))
	mux.HandleFunc("/v1/reference-data/locations/hotels/by-city", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cityCode") != "PAR" {
			t.Errorf("cityCode = %q", r.URL.Query().Get("cityCode"))
		}
		w.Write([]byte(`{"data": [{"hotelId": "HLPAR123"}, {"hotelId": "HLPAR456"}]}`))
	})
	mux.HandleFunc("/v3/shopping/hotel-offers", func(w http.ResponseWriter, r *http.Request) {
		if offersCalls != nil {
			offersCalls.Add(1)
		}
		if got := r.URL.Query().Get("hotelIds"); got != hotelIDs {
			t.Errorf("hotelIds = %q, want %q", got, hotelIDs)
		}
		w.Write([]byte(hotelOffersJSON))
	})
	return httptest.NewServer(mux)
}

func TestHotelInvoke(t *testing.T) {
	var offersCalls atomic.Int32
	srv := hotelTestServer(t, &offersCalls, "HLPAR123,HLPAR456")
	defer srv.Close()

	auth := NewAmadeusAuth(srv.URL, "key", "secret", srv.Client())
	client := NewHotelClient(srv.URL, auth, srv.Client(), nil)

	payload, err := client.Invoke(context.Background(), map[string]any{
		"city_code": "par", "check_in": "2026-09-10", "check_out": "2026-09-12",
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if payload["count"] != 1 {
		t.Errorf("count = %v, want 1 (offerless hotels skipped)", payload["count"])
	}
	if payload["city_code"] != "PAR" {
		t.Errorf("city_code = %v", payload["city_code"])
	}
	hotels := payload["hotels"].([]map[string]any)
	hotel := hotels[0]
	if hotel["name"] != "Hotel Lumiere" || hotel["price"] != 180.00 {
		t.Errorf("hotel = %v", hotel)
	}
	if hotel["rating"] != 4 {
		t.Errorf("rating = %v, want 4", hotel["rating"])
	}
	if offersCalls.Load() != 1 {
		t.Errorf("offers calls = %d, want 1", offersCalls.Load())
	}
}

func TestHotelInvokeFractionalMaxPrice(t *testing.T) {
	var priceRange string
	mux := http.NewServeMux()
	var fetches atomic.Int32
	mux.HandleFunc("/v1/security/oauth2/token", tokenHandler(&fetches, 0))
	mux.HandleFunc("/v1/reference-data/locations/hotels/by-city", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data": [{"hotelId": "HLPAR123"}]}`))
	})
	mux.HandleFunc("/v3/shopping/hotel-offers", func(w http.ResponseWriter, r *http.Request) {
		priceRange = r.URL.Query().Get("priceRange")
		w.Write([]byte(hotelOffersJSON))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	auth := NewAmadeusAuth(srv.URL, "key", "secret", srv.Client())
	client := NewHotelClient(srv.URL, auth, srv.Client(), nil)

	_, err := client.Invoke(context.Background(), map[string]any{
		"city_code": "PAR", "check_in": "2026-09-10", "check_out": "2026-09-12",
		"max_price": 150.5,
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if priceRange != "0-150.5" {
		t.Errorf("priceRange = %q, want fractional price preserved", priceRange)
	}
}

func TestHotelInvokeNoHotelsInCity(t *testing.T) {
	var offersCalls atomic.Int32
	mux := http.NewServeMux()
	var fetches atomic.Int32
	mux.HandleFunc("/v1/security/oauth2/token", tokenHandler(&fetches, 0))
	mux.HandleFunc("/v1/reference-data/locations/hotels/by-city", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data": []}`))
	})
	mux.HandleFunc("/v3/shopping/hotel-offers", func(w http.ResponseWriter, _ *http.Request) {
		offersCalls.Add(1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	auth := NewAmadeusAuth(srv.URL, "key", "secret", srv.Client())
	client := NewHotelClient(srv.URL, auth, srv.Client(), nil)

	payload, err := client.Invoke(context.Background(), map[string]any{
		"city_code": "XXX", "check_in": "2026-09-10", "check_out": "2026-09-12",
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if payload["count"] != 0 {
		t.Errorf("count = %v, want 0", payload["count"])
	}
	if offersCalls.Load() != 0 {
		t.Errorf("offers endpoint called %d times with no hotel ids", offersCalls.Load())
	}
}
