package bison

import (
	"time"

	bisonerrors "github.com/randalmurphal/emailbison/errors"
)

// DateLayout is the date format the stats endpoint expects.
const DateLayout = "2006-01-02"

// DefaultStatsWindow is the span covered when no start date is given.
const DefaultStatsWindow = 30 * 24 * time.Hour

var dateInputLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	DateLayout,
}

// ParseDate accepts a date or ISO datetime. Values without an offset are
// interpreted in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateInputLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, bisonerrors.Validationf("date", "invalid datetime %q, use ISO format (YYYY-MM-DD)", value)
}

// StatsRange resolves optional start and end inputs into YYYY-MM-DD dates.
// end defaults to today in loc and start to DefaultStatsWindow before end.
func StatsRange(now time.Time, loc *time.Location, start, end string) (string, string, error) {
	if loc == nil {
		loc = time.Local
	}

	endT := now.In(loc)
	if end != "" {
		t, err := ParseDate(end, loc)
		if err != nil {
			return "", "", err
		}
		endT = t
	}

	startT := endT.Add(-DefaultStatsWindow)
	if start != "" {
		t, err := ParseDate(start, loc)
		if err != nil {
			return "", "", err
		}
		startT = t
	}

	s, e := startT.Format(DateLayout), endT.Format(DateLayout)
	if s > e {
		return "", "", bisonerrors.Validationf("start", "start date %s is after end date %s", s, e)
	}
	return s, e, nil
}
