package weather

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obsAt(ts time.Time, temp, pcat, pmedian float64) Observation {
	return Observation{
		ValidTime: ts.UTC().Format("2006-01-02T15:04:05Z"),
		Parameters: []Parameter{
			{Name: "msl", Values: []float64{1012}},
			{Name: ParamTemperature, Values: []float64{temp}},
			{Name: ParamPrecipCat, Values: []float64{pcat}},
			{Name: ParamPrecipMedian, Values: []float64{pmedian}},
		},
	}
}

func hourlySeries(start time.Time, n int) *RawForecast {
	raw := &RawForecast{}
	for i := 0; i < n; i++ {
		raw.TimeSeries = append(raw.TimeSeries, obsAt(start.Add(time.Duration(i)*time.Hour), float64(i), float64(i%7), 0.1*float64(i)))
	}
	return raw
}

func TestTransform_SingleObservationScenario(t *testing.T) {
	tr := NewTransformer(TransformConfig{})
	now := time.Date(2024, 1, 1, 12, 10, 0, 0, time.UTC)
	coord := NewCoordinate(59.3099, 18.0215)

	raw := &RawForecast{TimeSeries: []Observation{{
		ValidTime: "2024-01-01T13:00:00Z",
		Parameters: []Parameter{
			{Name: "t", Values: []float64{-3.5}},
			{Name: "pcat", Values: []float64{1}},
			{Name: "pmedian", Values: []float64{0.2}},
		},
	}}}

	rows, err := tr.Transform(raw, coord, now)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, ObservationRow{
		Fetched:               "2024-01-01 12:10",
		Latitude:              59.3099,
		Longitude:             18.0215,
		Date:                  "2024-01-01",
		Hour:                  "13:00",
		Temperature:           -3.5,
		PrecipitationCategory: "Snow",
		PrecipitationMM:       0.2,
	}, rows[0])
}

func TestTransform_FullWindow(t *testing.T) {
	tr := NewTransformer(TransformConfig{})
	now := time.Date(2024, 3, 10, 21, 45, 30, 0, time.UTC)
	anchor := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)

	// Starts before the anchor and runs past the horizon.
	raw := hourlySeries(anchor.Add(-3*time.Hour), 40)

	rows, err := tr.Transform(raw, Coordinate{}, now)
	require.NoError(t, err)
	require.Len(t, rows, 24)

	for i, row := range rows {
		want := anchor.Add(time.Duration(i) * time.Hour)
		assert.Equal(t, want.Format("2006-01-02"), row.Date, "row %d", i)
		assert.Equal(t, want.Format("15:00"), row.Hour, "row %d", i)
		// hourlySeries encodes the offset from its start as the temperature.
		assert.Equal(t, float64(i+3), row.Temperature, "row %d", i)
	}
	assert.Equal(t, "2024-03-11", rows[len(rows)-1].Date)
	assert.Equal(t, "21:00", rows[len(rows)-1].Hour)
}

func TestTransform_AnchorOnTheHourSkipsToNextHour(t *testing.T) {
	tr := NewTransformer(TransformConfig{})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC), tr.AnchorHour(now))

	raw := hourlySeries(now, 3)
	rows, err := tr.Transform(raw, Coordinate{}, now)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "13:00", rows[0].Hour)
}

func TestTransform_GapsAreSkippedNotPadded(t *testing.T) {
	tr := NewTransformer(TransformConfig{})
	now := time.Date(2024, 6, 1, 8, 5, 0, 0, time.UTC)
	raw := hourlySeries(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), 24)

	// Drop 11:00 and 15:00.
	var kept []Observation
	for _, obs := range raw.TimeSeries {
		if strings.HasPrefix(obs.ValidTime, "2024-06-01T11") || strings.HasPrefix(obs.ValidTime, "2024-06-01T15") {
			continue
		}
		kept = append(kept, obs)
	}
	raw.TimeSeries = kept

	rows, err := tr.Transform(raw, Coordinate{}, now)
	require.NoError(t, err)
	require.Len(t, rows, 22)

	var hours []string
	for _, row := range rows {
		hours = append(hours, row.Hour)
	}
	assert.NotContains(t, hours, "11:00")
	assert.NotContains(t, hours, "15:00")
	assert.Equal(t, "10:00", rows[1].Hour)
	assert.Equal(t, "12:00", rows[2].Hour)
	assert.Equal(t, float64(3), rows[2].Temperature)
}

func TestTransform_DuplicateHourFirstMatchWins(t *testing.T) {
	tr := NewTransformer(TransformConfig{})
	now := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	slot := time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)

	raw := &RawForecast{TimeSeries: []Observation{
		obsAt(slot, 1.5, 0, 0),
		obsAt(slot, 9.9, 3, 4),
	}}

	rows, err := tr.Transform(raw, Coordinate{}, now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1.5, rows[0].Temperature)
	assert.Equal(t, "No precipitation", rows[0].PrecipitationCategory)
}

func TestTransform_NoData(t *testing.T) {
	tr := NewTransformer(TransformConfig{})
	now := time.Now()

	_, err := tr.Transform(nil, Coordinate{}, now)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = tr.Transform(&RawForecast{TimeSeries: []Observation{}}, Coordinate{}, now)
	assert.ErrorIs(t, err, ErrNoData)

	raw, err := DecodeForecast(strings.NewReader(`{"timeSeries": []}`))
	require.NoError(t, err)
	_, err = tr.Transform(raw, Coordinate{}, now)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestTransform_NoMatchingHoursIsEmptySuccess(t *testing.T) {
	tr := NewTransformer(TransformConfig{})
	now := time.Date(2024, 1, 1, 12, 10, 0, 0, time.UTC)
	raw := hourlySeries(time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), 5)

	rows, err := tr.Transform(raw, Coordinate{}, now)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestTransform_MissingParameter(t *testing.T) {
	tr := NewTransformer(TransformConfig{})
	now := time.Date(2024, 1, 1, 12, 10, 0, 0, time.UTC)

	for _, name := range []string{ParamTemperature, ParamPrecipCat, ParamPrecipMedian} {
		t.Run(name, func(t *testing.T) {
			obs := obsAt(time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC), 1, 1, 1)
			var params []Parameter
			for _, p := range obs.Parameters {
				if p.Name != name {
					params = append(params, p)
				}
			}
			obs.Parameters = params

			_, err := tr.Transform(&RawForecast{TimeSeries: []Observation{obs}}, Coordinate{}, now)
			require.ErrorIs(t, err, ErrMalformedData)
			assert.Contains(t, err.Error(), fmt.Sprintf("%q", name))
		})
	}
}

func TestTransform_MissingParameterOutsideWindowIsIgnored(t *testing.T) {
	tr := NewTransformer(TransformConfig{})
	now := time.Date(2024, 1, 1, 12, 10, 0, 0, time.UTC)

	broken := Observation{ValidTime: "2024-01-05T00:00:00Z"}
	raw := &RawForecast{TimeSeries: []Observation{obsAt(time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC), 2, 0, 0), broken}}

	rows, err := tr.Transform(raw, Coordinate{}, now)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestTransform_InvalidValidTime(t *testing.T) {
	tr := NewTransformer(TransformConfig{})
	raw := &RawForecast{TimeSeries: []Observation{{ValidTime: "yesterday"}}}

	_, err := tr.Transform(raw, Coordinate{}, time.Now())
	assert.ErrorIs(t, err, ErrMalformedData)
}

func TestPrecipitationCategories(t *testing.T) {
	cats := DefaultPrecipitationCategories()
	want := map[float64]string{
		0: "No precipitation",
		1: "Snow",
		2: "Snow and rain",
		3: "Rain",
		4: "Drizzle",
		5: "Freezing rain",
		6: "Freezing drizzle",
	}
	for code, label := range want {
		got, err := cats.Label(code)
		require.NoError(t, err)
		assert.Equal(t, label, got)
	}

	for _, code := range []float64{7, -1, 2.5, 99} {
		_, err := cats.Label(code)
		assert.ErrorIs(t, err, ErrMalformedData, "code %v", code)
	}
}

func TestTransform_OutOfRangeCategory(t *testing.T) {
	tr := NewTransformer(TransformConfig{})
	now := time.Date(2024, 1, 1, 12, 10, 0, 0, time.UTC)
	raw := &RawForecast{TimeSeries: []Observation{obsAt(time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC), 0, 7, 0)}}

	_, err := tr.Transform(raw, Coordinate{}, now)
	assert.ErrorIs(t, err, ErrMalformedData)
}

func TestTransform_ZoneSetsWallClockNotObservationKeys(t *testing.T) {
	stockholm, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)
	tr := NewTransformer(TransformConfig{Zone: stockholm, Hours: 2})
	now := time.Date(2024, 1, 1, 12, 10, 0, 0, stockholm)

	raw := hourlySeries(time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC), 3)
	rows, err := tr.Transform(raw, Coordinate{}, now)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2024-01-01 12:10", rows[0].Fetched)
	assert.Equal(t, "13:00", rows[0].Hour)
	assert.Equal(t, float64(0), rows[0].Temperature)
	assert.Equal(t, "14:00", rows[1].Hour)
	assert.Equal(t, float64(1), rows[1].Temperature)
}

func TestTransform_DSTFallBackDoesNotRepeatHours(t *testing.T) {
	stockholm, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)
	tr := NewTransformer(TransformConfig{Zone: stockholm, Hours: 4})
	// Clocks go back from 03:00 CEST to 02:00 CET later this night.
	now := time.Date(2024, 10, 27, 0, 30, 0, 0, stockholm)

	raw := hourlySeries(time.Date(2024, 10, 27, 0, 0, 0, 0, time.UTC), 8)
	rows, err := tr.Transform(raw, Coordinate{}, now)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	hours := make([]string, 0, len(rows))
	temps := make([]float64, 0, len(rows))
	for _, r := range rows {
		assert.Equal(t, "2024-10-27", r.Date)
		hours = append(hours, r.Hour)
		temps = append(temps, r.Temperature)
	}
	assert.Equal(t, []string{"01:00", "02:00", "03:00", "04:00"}, hours)
	assert.Equal(t, []float64{1, 2, 3, 4}, temps)
}

func TestTransform_OffsetValidTimeMatchesOnItsOwnClock(t *testing.T) {
	tr := NewTransformer(TransformConfig{Hours: 1})
	now := time.Date(2024, 1, 1, 12, 10, 0, 0, time.UTC)

	raw := &RawForecast{TimeSeries: []Observation{obsAt(time.Time{}, 4, 0, 0)}}
	raw.TimeSeries[0].ValidTime = "2024-01-01T13:00:00+01:00"

	rows, err := tr.Transform(raw, Coordinate{}, now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "13:00", rows[0].Hour)
	assert.Equal(t, float64(4), rows[0].Temperature)
}

func TestDecodeForecast(t *testing.T) {
	raw, err := DecodeForecast(strings.NewReader(`{
		"approvedTime": "2024-01-01T11:00:00Z",
		"timeSeries": [
			{"validTime": "2024-01-01T13:00:00Z", "parameters": [
				{"name": "t", "levelType": "hl", "level": 2, "unit": "Cel", "values": [-3.5]}
			]}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, raw.TimeSeries, 1)
	assert.Equal(t, "2024-01-01T13:00:00Z", raw.TimeSeries[0].ValidTime)
	assert.Equal(t, []float64{-3.5}, raw.TimeSeries[0].Parameters[0].Values)

	_, err = DecodeForecast(strings.NewReader(`{"timeSeries": "nope"}`))
	assert.ErrorIs(t, err, ErrMalformedData)

	_, err = DecodeForecast(strings.NewReader(`{"timeSeries": [{"validTime": 12}]}`))
	assert.ErrorIs(t, err, ErrMalformedData)

	_, err = DecodeForecast(strings.NewReader(`{not json`))
	assert.ErrorIs(t, err, ErrMalformedData)

	_, err = DecodeForecast(strings.NewReader(``))
	assert.True(t, errors.Is(err, ErrNoData))
}
