package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/event-harvester/pkg/logger"
	"github.com/event-harvester/pkg/ratelimit"
)

// Point is a geocoded coordinate pair
type Point struct {
	Lat float64
	Lng float64
}

// Geocoder resolves address lines to coordinates. Implementations return
// (nil, nil) when the address cannot be resolved.
type Geocoder interface {
	Geocode(ctx context.Context, lines []string) (*Point, error)
}

// Client queries a Nominatim-compatible geocoding endpoint
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *ratelimit.MultiLimiter
	log        *logger.Logger
}

// NewClient creates a new geocoding client
func NewClient(baseURL, userAgent string, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: limiter,
		log:     log.WithComponent("geo"),
	}
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode resolves the combined address lines to a coordinate pair
func (c *Client) Geocode(ctx context.Context, lines []string) (*Point, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx, ratelimit.LimiterGeocode); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	query := strings.Join(lines, ", ")
	reqURL := fmt.Sprintf("%s/search?format=json&limit=1&q=%s", c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("geocode API error (status %d): %s", resp.StatusCode, string(body))
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode geocode response: %w", err)
	}
	if len(results) == 0 {
		c.log.Debug().Str("query", query).Msg("Address not found")
		return nil, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", results[0].Lon, err)
	}

	return &Point{Lat: lat, Lng: lng}, nil
}
