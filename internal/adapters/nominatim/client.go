package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/taskpin/internal/core/domain"
)

// DefaultBaseURL is the public OpenStreetMap search endpoint.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Client implements ports.Geocoder against a Nominatim server.
type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	http      *fasthttp.Client
}

// New creates a geocoder. Nominatim's usage policy requires an identifying
// user agent.
func New(baseURL, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		timeout:   timeout,
		http:      &fasthttp.Client{ReadTimeout: timeout, WriteTimeout: timeout},
	}
}

type result struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Search runs a free-text search and returns at most limit places.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.Place, error) {
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Set("format", "json")
	args.Set("q", query)
	if limit > 0 {
		args.SetUint("limit", limit)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/search?" + args.String())
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if c.userAgent != "" {
		req.Header.SetUserAgent(c.userAgent)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("nominatim search: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("nominatim search: status %d", resp.StatusCode())
	}

	var results []result
	if err := json.Unmarshal(resp.Body(), &results); err != nil {
		return nil, fmt.Errorf("nominatim decode: %w", err)
	}

	places := make([]domain.Place, 0, len(results))
	for _, r := range results {
		lat, err1 := strconv.ParseFloat(r.Lat, 64)
		lon, err2 := strconv.ParseFloat(r.Lon, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		places = append(places, domain.Place{Name: r.DisplayName, Location: domain.GeoPoint{Lat: lat, Lon: lon}})
	}
	if limit > 0 && len(places) > limit {
		places = places[:limit]
	}
	return places, nil
}
