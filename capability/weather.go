package capability

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	voyago "github.com/voyago/voyago"
)

// WeatherClient fetches current conditions and a short forecast from
// OpenWeatherMap. No token caching is needed; the API key rides on every
// request.
type WeatherClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	spec    voyago.ToolSpec
	logger  *slog.Logger
}

// NewWeatherClient creates the weather capability client.
func NewWeatherClient(baseURL, apiKey string, client *http.Client, logger *slog.Logger) *WeatherClient {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
		spec:    WeatherSpec(),
		logger:  logger,
	}
}

// WeatherSpec declares the weather tool.
func WeatherSpec() voyago.ToolSpec {
	return voyago.NewSpec("get_weather").
		WithDescription("Get current weather and a short forecast for a city. Use this when the user asks about weather, climate or what to pack.").
		WithParameter("city", voyago.ParamSpec{Type: voyago.ParamString, Required: true,
			Description: "City name, e.g. Paris"}).
		WithParameter("forecast", voyago.ParamSpec{Type: voyago.ParamBoolean,
			Description: "Include a 5-day forecast"}).
		Build()
}

// Spec implements Client.
func (c *WeatherClient) Spec() voyago.ToolSpec { return c.spec }

// Invoke implements Client.
func (c *WeatherClient) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	if err := c.spec.ValidateArgs(args); err != nil {
		return nil, err
	}

	city := stringArg(args, "city", "")
	current, err := c.current(ctx, city)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"city":        city,
		"summary":     current["summary"],
		"temperature": current["temperature"],
		"feels_like":  current["feels_like"],
		"humidity":    current["humidity"],
		"wind_speed":  current["wind_speed"],
	}

	if boolArg(args, "forecast", false) {
		forecast, err := c.forecast(ctx, city)
		if err != nil {
			// The current conditions are still worth returning; forecast
			// degradation is logged, not fatal.
			c.logger.Warn("weather forecast fetch failed", "city", city, "error", err)
		} else {
			payload["forecast"] = forecast
		}
	}

	return payload, nil
}

type weatherConditions struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func (c *WeatherClient) current(ctx context.Context, city string) (map[string]any, error) {
	params := url.Values{
		"q":     {city},
		"appid": {c.apiKey},
		"units": {"metric"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var body weatherConditions
	if err := doJSON(c.client, req, &body); err != nil {
		return nil, err
	}

	summary := ""
	if len(body.Weather) > 0 {
		summary = body.Weather[0].Description
	}
	return map[string]any{
		"summary":     summary,
		"temperature": body.Main.Temp,
		"feels_like":  body.Main.FeelsLike,
		"humidity":    body.Main.Humidity,
		"wind_speed":  body.Wind.Speed,
	}, nil
}

func (c *WeatherClient) forecast(ctx context.Context, city string) ([]map[string]any, error) {
	params := url.Values{
		"q":     {city},
		"appid": {c.apiKey},
		"units": {"metric"},
		"cnt":   {"40"}, // 5 days at 3-hour steps
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/forecast?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		List []struct {
			DT   int64 `json:"dt"`
			Main struct {
				Temp float64 `json:"temp"`
			} `json:"main"`
			Weather []struct {
				Description string `json:"description"`
			} `json:"weather"`
		} `json:"list"`
	}
	if err := doJSON(c.client, req, &body); err != nil {
		return nil, err
	}

	// Collapse 3-hour steps to one entry per day (midday reading).
	out := make([]map[string]any, 0, 5)
	seen := map[string]bool{}
	for _, entry := range body.List {
		ts := time.Unix(entry.DT, 0).UTC()
		day := ts.Format("2006-01-02")
		if seen[day] || ts.Hour() < 11 || ts.Hour() > 13 {
			continue
		}
		seen[day] = true
		desc := ""
		if len(entry.Weather) > 0 {
			desc = entry.Weather[0].Description
		}
		out = append(out, map[string]any{
			"date":        day,
			"temperature": entry.Main.Temp,
			"summary":     desc,
		})
	}
	return out, nil
}

var _ Client = (*WeatherClient)(nil)
