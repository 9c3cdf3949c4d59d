// Package geocode adapts the Google geocoding API (via kelvins/geocoder) to
// weather.Geocoder.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-dashboard/internal/common"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

// DefaultTimeout bounds one Geocode call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// GoogleGeocoder resolves place names with the Google geocoding API.
type GoogleGeocoder struct {
	timeout time.Duration
	logger  *slog.Logger

	// The library exposes package-level functions only.
	forward func(geocoder.Address) (geocoder.Location, error)
	reverse func(geocoder.Location) ([]geocoder.Address, error)
}

// NewGoogleGeocoder configures the library with apiKey. The key is process
// global in kelvins/geocoder, so one instance per process is expected.
func NewGoogleGeocoder(apiKey string, timeout time.Duration, logger *slog.Logger) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleGeocoder{
		timeout: timeout,
		logger:  logger,
		forward: geocoder.Geocoding,
		reverse: geocoder.GeocodingReverse,
	}
}

// Geocode resolves query to its best match. The display name is the city of
// the match when the provider reports one, else the first part of the query.
func (g *GoogleGeocoder) Geocode(ctx context.Context, query string) (weather.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return weather.Place{}, fmt.Errorf("%w: empty query", weather.ErrGeocodeNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	loc, err := callWithContext(ctx, func() (geocoder.Location, error) {
		return g.forward(geocoder.Address{City: query})
	})
	if err != nil {
		return weather.Place{}, classify(ctx, err)
	}
	if loc.Latitude == 0 && loc.Longitude == 0 {
		return weather.Place{}, fmt.Errorf("%w: %s", weather.ErrGeocodeNotFound, query)
	}

	coord := weather.NewCoordinate(loc.Latitude, loc.Longitude)
	return weather.Place{Name: g.displayName(ctx, query, loc), Coordinate: coord}, nil
}

func (g *GoogleGeocoder) displayName(ctx context.Context, query string, loc geocoder.Location) string {
	fallback := common.FirstField(query)

	addrs, err := callWithContext(ctx, func() ([]geocoder.Address, error) {
		return g.reverse(loc)
	})
	if err != nil {
		g.logger.Debug("reverse geocoding failed; using query as display name", "query", query, "err", err)
		return fallback
	}
	for _, a := range addrs {
		if city := strings.TrimSpace(a.City); city != "" {
			return city
		}
	}
	return fallback
}

// callWithContext runs fn and gives up when ctx ends. fn keeps running in
// the background since the library takes no context.
func callWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- result{err: fmt.Errorf("geocoder panic: %v", p)}
			}
		}()
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", weather.ErrGeocodeTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", weather.ErrGeocodeTimeout, err)
	}
	if common.HasAny(strings.ToLower(err.Error()), "no results", "zero_results", "not found") {
		return fmt.Errorf("%w: %v", weather.ErrGeocodeNotFound, err)
	}
	return fmt.Errorf("%w: %v", weather.ErrGeocodeService, err)
}
