package weather

import (
	"context"
)

// Geocoder resolves free text to a place.
// Failures match ErrGeocodeNotFound, ErrGeocodeTimeout or ErrGeocodeService.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (Place, error)
}

// ForecastFetcher retrieves the raw forecast for a coordinate.
type ForecastFetcher interface {
	Name() string
	Fetch(ctx context.Context, coord Coordinate) (*RawForecast, error)
}

// Store is the contract the workbook store must satisfy.
type Store interface {
	Upsert(location string, rows []ObservationRow) (UpsertResult, error)
	SheetNames() ([]string, error)
	Rows(sheet string) ([]ObservationRow, error)
}
