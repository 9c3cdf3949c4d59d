package weather

import (
	"math"
)

// Coordinate is a point in decimal degrees, rounded to 6 decimals when built
// through NewCoordinate.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewCoordinate rounds lat/lon to 6 decimal places.
func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{
		Latitude:  round6(lat),
		Longitude: round6(lon),
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Place is a geocoded location: the display name plus its coordinate.
type Place struct {
	Name       string     `json:"name"`
	Coordinate Coordinate `json:"coordinate"`
}

// RawForecast is the decoded forecast payload. Only timeSeries is consumed.
type RawForecast struct {
	TimeSeries []Observation `json:"timeSeries"`
}

// Observation is one timestamped bundle of named parameters.
type Observation struct {
	ValidTime  string      `json:"validTime"`
	Parameters []Parameter `json:"parameters"`
}

// Parameter is a named series of values; only the first value is used.
type Parameter struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Parameter names read from each observation.
const (
	ParamTemperature  = "t"
	ParamPrecipCat    = "pcat"
	ParamPrecipMedian = "pmedian"
)

// Header holds the column titles of every location sheet, in ObservationRow order.
var Header = []string{
	"Fetched",
	"Latitude",
	"Longitude",
	"Date",
	"Hour",
	"Temperature",
	"Precipitation Category",
	"Precipitation in mm",
}

// ObservationRow is one flat row of a location sheet.
type ObservationRow struct {
	Fetched               string  `json:"fetched"`
	Latitude              float64 `json:"latitude"`
	Longitude             float64 `json:"longitude"`
	Date                  string  `json:"date"`
	Hour                  string  `json:"hour"`
	Temperature           float64 `json:"temperatureC"`
	PrecipitationCategory string  `json:"precipitationCategory"`
	PrecipitationMM       float64 `json:"precipitationMm"`
}

// Values returns the row cells in column order.
func (r ObservationRow) Values() []interface{} {
	return []interface{}{
		r.Fetched,
		r.Latitude,
		r.Longitude,
		r.Date,
		r.Hour,
		r.Temperature,
		r.PrecipitationCategory,
		r.PrecipitationMM,
	}
}

// UpsertResult reports what the store did with a location sheet.
type UpsertResult struct {
	Created   bool   `json:"created"`
	SheetName string `json:"sheetName"`
	Rows      int    `json:"rows"`
}

// LocationFailure records one location that could not be refreshed.
type LocationFailure struct {
	Location string `json:"location"`
	Err      error  `json:"-"`
	Message  string `json:"error"`
}

// RefreshReport summarises a refresh-all pass.
type RefreshReport struct {
	RunID     string            `json:"runId"`
	Refreshed []string          `json:"refreshed"`
	Failed    []LocationFailure `json:"failed"`
}
