package weather

import (
	"math"
)

// PrecipitationCategories maps provider precipitation codes to labels.
type PrecipitationCategories map[int]string

// DefaultPrecipitationCategories is the closed 0-6 table used by the
// SMHI pmp3g "pcat" parameter.
func DefaultPrecipitationCategories() PrecipitationCategories {
	return PrecipitationCategories{
		0: "No precipitation",
		1: "Snow",
		2: "Snow and rain",
		3: "Rain",
		4: "Drizzle",
		5: "Freezing rain",
		6: "Freezing drizzle",
	}
}

// Label resolves a raw code. Non-integral or unknown codes are malformed data.
func (c PrecipitationCategories) Label(code float64) (string, error) {
	if math.IsNaN(code) || math.IsInf(code, 0) || code != math.Trunc(code) {
		return "", malformed("precipitation category %v is not an integer code", code)
	}
	label, ok := c[int(code)]
	if !ok {
		return "", malformed("unknown precipitation category %d", int(code))
	}
	return label, nil
}
