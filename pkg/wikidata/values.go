package wikidata

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Datavalue encoders for wbcreateclaim / wbsetreference / wbsetqualifier.
// Each returns the JSON-ready value object for its datatype.

const (
	calendarGregorian = "http://www.wikidata.org/entity/Q1985727"
	globeEarth        = "http://www.wikidata.org/entity/Q2"
)

var (
	dateYearRe  = regexp.MustCompile(`^\d{4}$`)
	dateMonthRe = regexp.MustCompile(`^\d{4}-\d{2}$`)
	dateFullRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// EntityValue encodes an item reference for wikibase-item properties.
func EntityValue(qid string) (map[string]any, error) {
	extracted := ExtractQID(qid)
	if extracted == "" {
		return nil, fmt.Errorf("%w: invalid entity id %q", ErrWrite, qid)
	}
	var numericID int
	if _, err := fmt.Sscanf(extracted, "Q%d", &numericID); err != nil {
		return nil, fmt.Errorf("%w: invalid entity id %q", ErrWrite, qid)
	}
	return map[string]any{
		"entity-type": "item",
		"numeric-id":  numericID,
	}, nil
}

// TimeValue encodes a date for time properties. Accepted input shapes are
// YYYY, YYYY-MM, and YYYY-MM-DD, mapping to precision 9, 10, and 11.
func TimeValue(date string) (map[string]any, error) {
	var timestamp string
	var precision int
	switch {
	case dateYearRe.MatchString(date):
		timestamp = "+" + date + "-00-00T00:00:00Z"
		precision = 9
	case dateMonthRe.MatchString(date):
		timestamp = "+" + date + "-00T00:00:00Z"
		precision = 10
	case dateFullRe.MatchString(date):
		timestamp = "+" + date + "T00:00:00Z"
		precision = 11
	default:
		return nil, fmt.Errorf("%w: invalid date %q, want YYYY, YYYY-MM, or YYYY-MM-DD", ErrWrite, date)
	}
	return map[string]any{
		"time":          timestamp,
		"timezone":      0,
		"before":        0,
		"after":         0,
		"precision":     precision,
		"calendarmodel": calendarGregorian,
	}, nil
}

// TodayValue encodes the current date at day precision, used for
// retrieved-on reference snaks.
func TodayValue() map[string]any {
	v, _ := TimeValue(time.Now().UTC().Format("2006-01-02"))
	return v
}

// CoordinateValue encodes a WGS84 point for globe-coordinate properties.
func CoordinateValue(lat, lon float64) (map[string]any, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range (%f, %f)", ErrWrite, lat, lon)
	}
	return map[string]any{
		"latitude":  lat,
		"longitude": lon,
		"precision": 0.0001,
		"globe":     globeEarth,
	}, nil
}

// QuantityValue encodes a dimensioned number. unitQID may be empty for a
// unitless quantity.
func QuantityValue(amount float64, unitQID string) map[string]any {
	formatted := strconv.FormatFloat(amount, 'f', -1, 64)
	if amount >= 0 {
		formatted = "+" + formatted
	}
	unit := "1"
	if qid := ExtractQID(unitQID); qid != "" {
		unit = EntityURI(qid)
	}
	return map[string]any{
		"amount": formatted,
		"unit":   unit,
	}
}

// MonolingualValue encodes a language-tagged string. The language must look
// like a Wikibase language code.
func MonolingualValue(text, language string) (map[string]any, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty monolingual text", ErrWrite)
	}
	if !langCodeRe.MatchString(language) {
		return nil, fmt.Errorf("%w: invalid language code %q", ErrWrite, language)
	}
	return map[string]any{
		"text":     text,
		"language": language,
	}, nil
}
