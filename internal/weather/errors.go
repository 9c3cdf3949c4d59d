package weather

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrGeocodeNotFound is returned when a query resolves to no place.
	ErrGeocodeNotFound = errors.New("location not found")
	// ErrGeocodeTimeout is returned when the geocoding provider did not answer in time.
	ErrGeocodeTimeout = errors.New("geocoder service timed out")
	// ErrGeocodeService covers any other geocoding provider fault.
	ErrGeocodeService = errors.New("geocoder service error")

	// ErrFetchHTTP is matched by every non-200 forecast response.
	ErrFetchHTTP = errors.New("forecast request failed")
	// ErrOutsideCoverage is matched by a 404 forecast response.
	ErrOutsideCoverage = errors.New("location is outside the forecast coverage area")
	// ErrFetchNetwork is returned for transport-level failures.
	ErrFetchNetwork = errors.New("forecast provider unreachable")

	ErrNoData        = errors.New("no forecast data to transform")
	ErrMalformedData = errors.New("malformed forecast data")

	// ErrStoreIO wraps every workbook read/write failure.
	ErrStoreIO = errors.New("workbook i/o failure")
)

// StatusError is a non-200 answer from the forecast provider.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.StatusCode == http.StatusNotFound {
		return fmt.Sprintf("%s (HTTP %d)", ErrOutsideCoverage, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP status code %d", ErrFetchHTTP, e.StatusCode)
}

// Unwrap lets errors.Is match ErrFetchHTTP for any status and
// ErrOutsideCoverage for 404 only.
func (e *StatusError) Unwrap() []error {
	if e.StatusCode == http.StatusNotFound {
		return []error{ErrOutsideCoverage, ErrFetchHTTP}
	}
	return []error{ErrFetchHTTP}
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedData, fmt.Sprintf(format, args...))
}
