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

// HotelClient searches hotel offers through the Amadeus shopping API.
// The search is two-step: resolve hotel ids for the city, then fetch offers
// for those ids.
type HotelClient struct {
	baseURL string
	auth    *AmadeusAuth
	client  *http.Client
	spec    voyago.ToolSpec
	logger  *slog.Logger
}

// NewHotelClient creates the hotel search capability client.
func NewHotelClient(baseURL string, auth *AmadeusAuth, client *http.Client, logger *slog.Logger) *HotelClient {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HotelClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    auth,
		client:  client,
		spec:    HotelSpec(),
		logger:  logger,
	}
}

// HotelSpec declares the hotel search tool.
func HotelSpec() voyago.ToolSpec {
	return voyago.NewSpec("search_hotels").
		WithDescription("Search for hotels in a city. Use this when the user wants accommodation, hotel prices or places to stay.").
		WithParameter("city_code", voyago.ParamSpec{Type: voyago.ParamString, Required: true,
			Description: "IATA city code, e.g. PAR for Paris"}).
		WithParameter("check_in", voyago.ParamSpec{Type: voyago.ParamString, Required: true,
			Description: "Check-in date in YYYY-MM-DD format"}).
		WithParameter("check_out", voyago.ParamSpec{Type: voyago.ParamString, Required: true,
			Description: "Check-out date in YYYY-MM-DD format"}).
		WithParameter("guests", voyago.ParamSpec{Type: voyago.ParamInteger,
			Description: "Number of guests, defaults to 1"}).
		WithParameter("max_price", voyago.ParamSpec{Type: voyago.ParamNumber,
			Description: "Maximum nightly price"}).
		Build()
}

// Spec implements Client.
func (c *HotelClient) Spec() voyago.ToolSpec { return c.spec }

// Invoke implements Client.
func (c *HotelClient) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	if err := c.spec.ValidateArgs(args); err != nil {
		return nil, err
	}

	cityCode := strings.ToUpper(stringArg(args, "city_code", ""))
	hotelIDs, err := c.hotelIDsByCity(ctx, cityCode)
	if err != nil {
		return nil, err
	}
	if len(hotelIDs) == 0 {
		return map[string]any{"hotels": []map[string]any{}, "count": 0, "city_code": cityCode}, nil
	}

	params := url.Values{
		"hotelIds":     {strings.Join(hotelIDs, ",")},
		"checkInDate":  {stringArg(args, "check_in", "")},
		"checkOutDate": {stringArg(args, "check_out", "")},
		"adults":       {strconv.Itoa(intArg(args, "guests", 1))},
	}
	if maxPrice := floatArg(args, "max_price", 0); maxPrice > 0 {
		params.Set("priceRange", "0-"+strconv.FormatFloat(maxPrice, 'f', -1, 64))
	}

	var body hotelOffersResponse
	reqURL := c.baseURL + "/v3/shopping/hotel-offers?" + params.Encode()
	if err := withToken(ctx, c.auth, c.client, reqURL, &body); err != nil {
		return nil, err
	}

	return c.translate(body, cityCode), nil
}

const maxHotelIDs = 20

func (c *HotelClient) hotelIDsByCity(ctx context.Context, cityCode string) ([]string, error) {
	var body struct {
		Data []struct {
			HotelID string `json:"hotelId"`
		} `json:"data"`
	}
	reqURL := c.baseURL + "/v1/reference-data/locations/hotels/by-city?cityCode=" + url.QueryEscape(cityCode)
	if err := withToken(ctx, c.auth, c.client, reqURL, &body); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(body.Data))
	for _, h := range body.Data {
		if h.HotelID == "" {
			continue
		}
		ids = append(ids, h.HotelID)
		if len(ids) == maxHotelIDs {
			break
		}
	}
	return ids, nil
}

type hotelOffersResponse struct {
	Data []struct {
		Hotel struct {
			HotelID string `json:"hotelId"`
			Name    string `json:"name"`
			Rating  string `json:"rating"`
		} `json:"hotel"`
		Offers []struct {
			CheckInDate  string `json:"checkInDate"`
			CheckOutDate string `json:"checkOutDate"`
			Price        struct {
				Total    string `json:"total"`
				Currency string `json:"currency"`
			} `json:"price"`
		} `json:"offers"`
	} `json:"data"`
}

func (c *HotelClient) translate(body hotelOffersResponse, cityCode string) map[string]any {
	hotels := make([]map[string]any, 0, len(body.Data))
	for _, entry := range body.Data {
		if len(entry.Offers) == 0 {
			continue
		}
		offer := entry.Offers[0]
		price, err := strconv.ParseFloat(offer.Price.Total, 64)
		if err != nil {
			c.logger.Debug("skipping hotel offer with unparsable price", "hotel_id", entry.Hotel.HotelID)
			continue
		}

		hotel := map[string]any{
			"id":        entry.Hotel.HotelID,
			"name":      entry.Hotel.Name,
			"price":     price,
			"currency":  offer.Price.Currency,
			"check_in":  offer.CheckInDate,
			"check_out": offer.CheckOutDate,
		}
		if rating, err := strconv.Atoi(entry.Hotel.Rating); err == nil {
			hotel["rating"] = rating
		}
		hotels = append(hotels, hotel)
	}

	return map[string]any{
		"hotels":    hotels,
		"count":     len(hotels),
		"city_code": cityCode,
	}
}

var _ Client = (*HotelClient)(nil)
