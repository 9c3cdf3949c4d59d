package providers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

const (
	// DefaultSMHIBaseURL is the SMHI open data meteorological forecast host.
	DefaultSMHIBaseURL = "https://opendata-download-metfcst.smhi.se"

	smhiPointPath = "/api/category/pmp3g/version/2/geotype/point/lon/%s/lat/%s/data.json"
)

// SMHIProvider implements weather.ForecastFetcher for the SMHI point forecast API.
type SMHIProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewSMHIProvider creates a provider against baseURL (DefaultSMHIBaseURL when empty).
func NewSMHIProvider(cfg HTTPClientConfig, baseURL string) *SMHIProvider {
	if baseURL == "" {
		baseURL = DefaultSMHIBaseURL
	}

	return &SMHIProvider{
		name:    "smhi",
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: cfg,
		circuit: newCircuitBreaker("smhi", cfg),
	}
}

func (p *SMHIProvider) Name() string {
	return p.name
}

// Fetch issues one GET for coord and decodes the payload.
func (p *SMHIProvider) Fetch(ctx context.Context, coord weather.Coordinate) (*weather.RawForecast, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		u := p.baseURL + fmt.Sprintf(smhiPointPath, formatDegrees(coord.Longitude), formatDegrees(coord.Latitude))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequest(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, &weather.StatusError{StatusCode: resp.StatusCode}
	}

	return weather.DecodeForecast(resp.Body)
}

// formatDegrees renders the shortest exact form, e.g. 18.0215 rather than 18.021500.
func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
