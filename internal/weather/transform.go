package weather

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	DefaultForecastHours = 24

	fetchedLayout = "2006-01-02 15:04"
	dateLayout    = "2006-01-02"
	hourLayout    = "15:00"
)

// DecodeForecast parses a forecast payload. Wrong-typed fields fail here
// with ErrMalformedData instead of surfacing mid-transform.
func DecodeForecast(r io.Reader) (*RawForecast, error) {
	var raw RawForecast
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoData
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, malformed("field %q: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	return &raw, nil
}

// TransformConfig configures a Transformer.
type TransformConfig struct {
	// Hours is the horizon length; zero means DefaultForecastHours.
	Hours int
	// Zone is the wall clock the anchor hour and the fetched column are read
	// in; nil means UTC. Observations are matched on their own validTime.
	Zone *time.Location
	// Categories defaults to DefaultPrecipitationCategories.
	Categories PrecipitationCategories
}

// Transformer aligns a raw forecast to a fixed window of future hourly slots.
type Transformer struct {
	hours      int
	zone       *time.Location
	categories PrecipitationCategories
}

// NewTransformer creates a Transformer, filling unset config with defaults.
func NewTransformer(cfg TransformConfig) *Transformer {
	t := &Transformer{
		hours:      cfg.Hours,
		zone:       cfg.Zone,
		categories: cfg.Categories,
	}
	if t.hours <= 0 {
		t.hours = DefaultForecastHours
	}
	if t.zone == nil {
		t.zone = time.UTC
	}
	if t.categories == nil {
		t.categories = DefaultPrecipitationCategories()
	}
	return t
}

// AnchorHour returns the first hour covered by a transform run at now: the
// next full hour strictly after now, so 12:00 and 12:10 both anchor at 13:00.
// The result is the zone's wall clock carried in a UTC value; stepping it by
// an hour never repeats or skips a label across a DST change.
func (t *Transformer) AnchorHour(now time.Time) time.Time {
	local := now.In(t.zone)
	top := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, time.UTC)
	return top.Add(time.Hour)
}

// Transform converts raw into one row per covered hour of the window that
// starts at AnchorHour(now). Hours without an observation are skipped.
func (t *Transformer) Transform(raw *RawForecast, coord Coordinate, now time.Time) ([]ObservationRow, error) {
	if raw == nil || len(raw.TimeSeries) == 0 {
		return nil, ErrNoData
	}

	byHour := make(map[string]Observation, len(raw.TimeSeries))
	for i, obs := range raw.TimeSeries {
		if obs.ValidTime == "" {
			return nil, malformed("timeSeries[%d]: missing validTime", i)
		}
		ts, err := time.Parse(time.RFC3339, obs.ValidTime)
		if err != nil {
			return nil, malformed("timeSeries[%d]: invalid validTime %q", i, obs.ValidTime)
		}
		// Matched on the timestamp's own date and hour, offset dropped.
		key := ts.Format(fetchedLayout)
		if _, seen := byHour[key]; !seen {
			byHour[key] = obs
		}
	}

	fetched := now.In(t.zone).Format(fetchedLayout)
	slot := t.AnchorHour(now)
	rows := make([]ObservationRow, 0, t.hours)

	for i := 0; i < t.hours; i, slot = i+1, slot.Add(time.Hour) {
		obs, ok := byHour[slot.Format(fetchedLayout)]
		if !ok {
			continue
		}

		row, err := t.row(obs, coord, slot)
		if err != nil {
			return nil, err
		}
		row.Fetched = fetched
		rows = append(rows, row)
	}

	return rows, nil
}

func (t *Transformer) row(obs Observation, coord Coordinate, slot time.Time) (ObservationRow, error) {
	temp, err := firstValue(obs, ParamTemperature)
	if err != nil {
		return ObservationRow{}, err
	}
	pcat, err := firstValue(obs, ParamPrecipCat)
	if err != nil {
		return ObservationRow{}, err
	}
	pmedian, err := firstValue(obs, ParamPrecipMedian)
	if err != nil {
		return ObservationRow{}, err
	}
	label, err := t.categories.Label(pcat)
	if err != nil {
		return ObservationRow{}, fmt.Errorf("%s: %w", obs.ValidTime, err)
	}

	return ObservationRow{
		Latitude:              coord.Latitude,
		Longitude:             coord.Longitude,
		Date:                  slot.Format(dateLayout),
		Hour:                  slot.Format(hourLayout),
		Temperature:           temp,
		PrecipitationCategory: label,
		PrecipitationMM:       pmedian,
	}, nil
}

func firstValue(obs Observation, name string) (float64, error) {
	for _, p := range obs.Parameters {
		if p.Name != name {
			continue
		}
		if len(p.Values) == 0 {
			return 0, malformed("parameter %q has no values at %s", name, obs.ValidTime)
		}
		return p.Values[0], nil
	}
	return 0, malformed("missing parameter %q at %s", name, obs.ValidTime)
}
