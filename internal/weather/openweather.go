package weather

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	perrors "github.com/harvestlink/advisor/internal/errors"
)

const serviceName = "weather"

// HTTPClient queries an OpenWeatherMap-compatible current-weather endpoint
type HTTPClient struct {
	baseURL    string
	apiKey     string
	country    string
	httpClient *http.Client
}

// NewHTTPClient creates a client for baseURL. country is appended to the
// district query ("Salem,IN") when set.
func NewHTTPClient(baseURL, apiKey, country string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		country: country,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type currentWeather struct {
	Name string `json:"name"`
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Rain *struct {
		OneHour *float64 `json:"1h"`
	} `json:"rain"`
}

// Lookup fetches the current weather for district in metric units
func (c *HTTPClient) Lookup(ctx context.Context, district string) (Snapshot, error) {
	q := district
	if c.country != "" {
		q = district + "," + c.country
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("units", "metric")
	if c.apiKey != "" {
		params.Set("appid", c.apiKey)
	}
	reqURL := fmt.Sprintf("%s/data/2.5/weather?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return Snapshot{}, &perrors.ExternalLookupError{Service: serviceName, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, &perrors.ExternalLookupError{Service: serviceName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Snapshot{}, &perrors.ExternalLookupError{
			Service: serviceName,
			Err:     fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var payload currentWeather
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Snapshot{}, &perrors.ExternalLookupError{
			Service: serviceName,
			Err:     fmt.Errorf("failed to decode response: %w", err),
		}
	}

	snap := Snapshot{District: district}
	if payload.Main != nil {
		snap.Temp = payload.Main.Temp
		snap.Humidity = payload.Main.Humidity
	}
	if payload.Rain != nil {
		snap.Rainfall = payload.Rain.OneHour
	}
	return snap, nil
}
