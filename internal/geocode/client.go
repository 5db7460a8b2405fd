// Package geocode resolves free-text locations into "City, Country" suggestions
// using the Nominatim search API.
package geocode

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"home-planner/internal/common/config"
	apperrors "home-planner/internal/common/errors"
	apphttp "home-planner/internal/common/http"
	"home-planner/internal/models"
)

const (
	serviceName    = "nominatim"
	resultLimit    = 5
	minQueryLength = 3
	defaultBaseURL = "https://nominatim.openstreetmap.org"
	defaultAgent   = "home-planner/1.0"
)

type place struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

// Client queries Nominatim. Requests share one rate limiter, as the public
// instance allows a single request per second.
type Client struct {
	http    *apphttp.Client
	baseURL string
	limiter *rate.Limiter
}

func NewClient(cfg config.GeocodeConfig) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	agent := cfg.UserAgent
	if agent == "" {
		agent = defaultAgent
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 1
	}
	return &Client{
		http:    apphttp.NewClient(serviceName, config.GetDuration(cfg.Timeout)).WithUserAgent(agent),
		baseURL: strings.TrimRight(base, "/"),
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
	}
}

// Search returns up to five suggestions that resolve to a place and a country.
// Queries shorter than three characters return nothing without a request.
func (c *Client) Search(ctx context.Context, query string) ([]models.Suggestion, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minQueryLength {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.FromTransport(serviceName, ctx, err)
	}

	var places []place
	err := c.http.DoJSON(ctx, apphttp.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/search",
		Query: url.Values{
			"format":         {"json"},
			"q":              {query},
			"limit":          {strconv.Itoa(resultLimit)},
			"addressdetails": {"1"},
		},
		Idempotent: true,
	}, &places)
	if err != nil {
		return nil, err
	}
	return toSuggestions(places), nil
}

func toSuggestions(places []place) []models.Suggestion {
	out := make([]models.Suggestion, 0, len(places))
	seen := make(map[string]bool, len(places))
	for _, p := range places {
		city := firstNonEmpty(p.Address.City, p.Address.Town, p.Address.Village)
		if (city == "" && p.Address.State == "") || p.Address.Country == "" {
			continue
		}
		s := models.Suggestion{
			DisplayName: p.DisplayName,
			City:        city,
			State:       p.Address.State,
			Country:     p.Address.Country,
		}
		s.Lat, _ = strconv.ParseFloat(p.Lat, 64)
		s.Lng, _ = strconv.ParseFloat(p.Lon, 64)

		label := s.Label()
		if seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, s)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
