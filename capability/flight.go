package capability

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	voyago "github.com/voyago/voyago"
)

// FlightClient searches flight offers through the Amadeus shopping API.
type FlightClient struct {
	baseURL string
	auth    *AmadeusAuth
	client  *http.Client
	spec    voyago.ToolSpec
	logger  *slog.Logger
}

// NewFlightClient creates the flight search capability client.
func NewFlightClient(baseURL string, auth *AmadeusAuth, client *http.Client, logger *slog.Logger) *FlightClient {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FlightClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    auth,
		client:  client,
		spec:    FlightSpec(),
		logger:  logger,
	}
}

// FlightSpec declares the flight search tool.
func FlightSpec() voyago.ToolSpec {
	return voyago.NewSpec("search_flights").
		WithDescription("Search for flights between two airports. Use this when the user wants to find flights, compare prices or plan air travel.").
		WithParameter("origin", voyago.ParamSpec{Type: voyago.ParamString, Required: true,
			Description: "IATA code of the departure airport, e.g. JFK"}).
		WithParameter("destination", voyago.ParamSpec{Type: voyago.ParamString, Required: true,
			Description: "IATA code of the arrival airport, e.g. CDG"}).
		WithParameter("departure_date", voyago.ParamSpec{Type: voyago.ParamString, Required: true,
			Description: "Departure date in YYYY-MM-DD format"}).
		WithParameter("return_date", voyago.ParamSpec{Type: voyago.ParamString,
			Description: "Return date in YYYY-MM-DD format for round trips"}).
		WithParameter("passengers", voyago.ParamSpec{Type: voyago.ParamInteger,
			Description: "Number of adult passengers, defaults to 1"}).
		WithParameter("travel_class", voyago.ParamSpec{Type: voyago.ParamString,
			Enum:        []string{"economy", "premium_economy", "business", "first"},
			Description: "Cabin class, defaults to economy"}).
		WithParameter("non_stop", voyago.ParamSpec{Type: voyago.ParamBoolean,
			Description: "Only return direct flights"}).
		Build()
}

// Spec implements Client.
func (c *FlightClient) Spec() voyago.ToolSpec { return c.spec }

// Invoke implements Client.
func (c *FlightClient) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	if err := c.spec.ValidateArgs(args); err != nil {
		return nil, err
	}

	params := url.Values{
		"originLocationCode":      {strings.ToUpper(stringArg(args, "origin", ""))},
		"destinationLocationCode": {strings.ToUpper(stringArg(args, "destination", ""))},
		"departureDate":           {stringArg(args, "departure_date", "")},
		"adults":                  {strconv.Itoa(intArg(args, "passengers", 1))},
		"nonStop":                 {strconv.FormatBool(boolArg(args, "non_stop", false))},
		"max":                     {"10"},
	}
	if rd := stringArg(args, "return_date", ""); rd != "" {
		params.Set("returnDate", rd)
	}
	if tc := stringArg(args, "travel_class", "economy"); tc != "economy" {
		params.Set("travelClass", strings.ToUpper(tc))
	}

	var body flightOffersResponse
	reqURL := c.baseURL + "/v2/shopping/flight-offers?" + params.Encode()
	if err := withToken(ctx, c.auth, c.client, reqURL, &body); err != nil {
		return nil, err
	}

	return c.translate(body), nil
}

type flightOffersResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Itineraries []struct {
			Duration string `json:"duration"`
			Segments []struct {
				Departure struct {
					IATACode string `json:"iataCode"`
					At       string `json:"at"`
				} `json:"departure"`
				Arrival struct {
					IATACode string `json:"iataCode"`
					At       string `json:"at"`
				} `json:"arrival"`
				CarrierCode string `json:"carrierCode"`
				Number      string `json:"number"`
				Duration    string `json:"duration"`
			} `json:"segments"`
		} `json:"itineraries"`
		Price struct {
			Total    string `json:"total"`
			Currency string `json:"currency"`
		} `json:"price"`
	} `json:"data"`
}

// translate maps the provider response to the payload shape declared by the
// tool spec. Offers that fail to parse are skipped, matching the lenient
// handling search providers need in practice.
func (c *FlightClient) translate(body flightOffersResponse) map[string]any {
	offers := make([]map[string]any, 0, len(body.Data))
	for _, offer := range body.Data {
		if len(offer.Itineraries) == 0 || len(offer.Itineraries[0].Segments) == 0 {
			c.logger.Debug("skipping malformed flight offer", "offer_id", offer.ID)
			continue
		}
		price, err := strconv.ParseFloat(offer.Price.Total, 64)
		if err != nil {
			c.logger.Debug("skipping flight offer with unparsable price", "offer_id", offer.ID)
			continue
		}

		outbound := offer.Itineraries[0]
		segments := make([]map[string]any, 0, len(outbound.Segments))
		for _, seg := range outbound.Segments {
			segments = append(segments, map[string]any{
				"departure_airport": seg.Departure.IATACode,
				"departure_time":    seg.Departure.At,
				"arrival_airport":   seg.Arrival.IATACode,
				"arrival_time":      seg.Arrival.At,
				"airline":           seg.CarrierCode,
				"flight_number":     seg.Number,
				"duration":          seg.Duration,
			})
		}

		first := outbound.Segments[0]
		last := outbound.Segments[len(outbound.Segments)-1]
		offers = append(offers, map[string]any{
			"id":          offer.ID,
			"price":       price,
			"currency":    offer.Price.Currency,
			"origin":      first.Departure.IATACode,
			"destination": last.Arrival.IATACode,
			"duration":    outbound.Duration,
			"stops":       len(outbound.Segments) - 1,
			"round_trip":  len(offer.Itineraries) > 1,
			"segments":    segments,
		})
	}

	payload := map[string]any{
		"offers": offers,
		"count":  len(offers),
	}
	if len(offers) > 0 {
		payload["destination"] = offers[0]["destination"]
	}
	return payload
}

var _ Client = (*FlightClient)(nil)
